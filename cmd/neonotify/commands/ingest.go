package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/neonotify/neonotify/config"
	"github.com/neonotify/neonotify/internal/engine"
	"github.com/neonotify/neonotify/internal/engine/neorpc"
	"github.com/neonotify/neonotify/internal/indexer"
	"github.com/neonotify/neonotify/internal/token"
	"github.com/neonotify/neonotify/version"
)

// NewIngestCmd returns the command that indexes a dump of application logs,
// one JSON object per line, without following a node. When an engine is
// configured it is used for token detection only.
func NewIngestCmd(conf *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Index application logs read from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(conf)
			if err != nil {
				return err
			}

			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			s, err := config.DefaultDBProvider(&config.DBContext{ID: "notifications", Config: conf})
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer s.Close()
			if err := indexer.EnsureLayoutVersion(s, version.StoreVersion); err != nil {
				return err
			}

			var heights neorpc.HeightSetter = new(engine.Height)
			pargs := indexer.PipelineArgs{
				Store:    s,
				Registry: token.NewRegistry(s, conf.Index.TokenCacheSizeMB*1024*1024, logger.With("module", "token")),
				Logger:   logger.With("module", "indexer"),
			}
			if conf.Engine.RPCAddress != "" {
				rpcNode, err := neorpc.NewNode(conf.Engine.RPCAddress, conf.Engine.RequestTimeout)
				if err != nil {
					return err
				}
				heights = rpcNode
				pargs.Detector = token.NewDetector(rpcNode, logger.With("module", "token"))
			}
			pargs.Heights = heights

			svc := indexer.NewService(indexer.ServiceArgs{
				Pipeline:  indexer.NewPipeline(pargs),
				QueueSize: conf.Index.QueueSize,
				Logger:    logger.With("module", "indexer"),
			})
			if err := svc.Start(cmd.Context()); err != nil {
				return err
			}
			defer func() {
				if svc.IsRunning() {
					_ = svc.Stop()
				}
			}()

			stats, err := neorpc.Replay(cmd.Context(), in, neorpc.ReplayArgs{
				Publisher: svc,
				Heights:   heights,
				Store:     s,
				Logger:    logger.With("module", "replay"),
			})
			if err != nil {
				return err
			}
			logger.Info("ingested application logs",
				"blocks", stats.Blocks,
				"txs", stats.Txs,
				"skipped", stats.Skipped,
			)
			return nil
		},
	}

	cmd.Flags().Int("index.queue-size", conf.Index.QueueSize,
		"executed transactions that may wait for the indexer")
	cmd.Flags().String("engine.rpc-address", conf.Engine.RPCAddress,
		"JSON-RPC endpoint of a NEO node used for token detection")
	addDBFlags(cmd, conf)
	return cmd
}
