package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/neonotify/neonotify/config"
	"github.com/neonotify/neonotify/node"
)

// addEngineFlags exposes the options for reaching the NEO node.
func addEngineFlags(cmd *cobra.Command, conf *config.Config) {
	cmd.Flags().String("engine.rpc-address", conf.Engine.RPCAddress,
		"JSON-RPC endpoint of the NEO node to follow; empty serves the existing index only")
	cmd.Flags().Duration("engine.poll-interval", conf.Engine.PollInterval,
		"how often to poll the node for new blocks")
	cmd.Flags().Uint32("engine.start-height", conf.Engine.StartHeight,
		"first block to index when the store is empty")
}

// AddNodeFlags exposes the options of a running indexer on the command line.
func AddNodeFlags(cmd *cobra.Command, conf *config.Config) {
	cmd.Flags().String("rpc.laddr", conf.RPC.ListenAddress, "query API listen address")
	cmd.Flags().Int("index.queue-size", conf.Index.QueueSize,
		"executed transactions that may wait for the indexer")
	cmd.Flags().Bool("instrumentation.prometheus", conf.Instrumentation.Prometheus,
		"serve Prometheus metrics")

	addEngineFlags(cmd, conf)
	addDBFlags(cmd, conf)
}

// NewRunNodeCmd returns the command that follows the chain and serves the
// query API until interrupted.
func NewRunNodeCmd(conf *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "start",
		Aliases: []string{"run", "node"},
		Short:   "Index notifications and serve the query API",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(conf)
			if err != nil {
				return err
			}

			n, err := node.New(conf, logger)
			if err != nil {
				return fmt.Errorf("failed to create node: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := n.Start(ctx); err != nil {
				return fmt.Errorf("failed to start node: %w", err)
			}
			logger.Info("started node", "rpc", n.RPCAddr().String())

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				select {
				case <-n.Failed():
					return fmt.Errorf("indexer stopped: %w", n.Err())
				case <-n.Quit():
					return nil
				case <-gctx.Done():
					return nil
				}
			})
			g.Go(func() error {
				select {
				case <-n.Quit():
				case <-gctx.Done():
				}
				return nil
			})
			err = g.Wait()
			if n.IsRunning() {
				if serr := n.Stop(); serr != nil {
					logger.Error("unable to stop the node", "err", serr)
				}
			}
			return err
		},
	}

	AddNodeFlags(cmd, conf)
	return cmd
}
