package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/neonotify/neonotify/config"
	"github.com/neonotify/neonotify/internal/engine/neorpc"
	"github.com/neonotify/neonotify/internal/indexer"
	"github.com/neonotify/neonotify/internal/store"
	"github.com/neonotify/neonotify/internal/token"
	"github.com/neonotify/neonotify/libs/log"
	"github.com/neonotify/neonotify/libs/service"
	"github.com/neonotify/neonotify/rpc/core"
	"github.com/neonotify/neonotify/version"
)

// Node is the composition root: it owns the store and runs the indexer, the
// chain follower and the query API on top of it.
type Node struct {
	service.BaseService

	config *config.Config
	logger log.Logger

	store    store.Store
	engine   *neorpc.Node // nil when no node is configured
	heights  indexer.HeightProvider
	registry *token.Registry
	indexer  *indexer.Service
	follower *neorpc.Follower
	env      *core.Environment

	rpcListener net.Listener
	servers     *errgroup.Group
	cancel      context.CancelFunc
}

// New constructs a Node from conf, opening the store with the default
// provider.
func New(conf *config.Config, logger log.Logger) (*Node, error) {
	return NewWithDBProvider(conf, config.DefaultDBProvider, logger)
}

// NewWithDBProvider constructs a Node whose store is opened by dbProvider.
func NewWithDBProvider(conf *config.Config, dbProvider config.DBProvider, logger log.Logger) (*Node, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}

	s, err := dbProvider(&config.DBContext{ID: "notifications", Config: conf})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if err := indexer.EnsureLayoutVersion(s, version.StoreVersion); err != nil {
		_ = s.Close()
		return nil, err
	}

	n := &Node{
		config: conf,
		logger: logger,
		store:  s,
	}

	metrics := indexer.NopMetrics()
	if conf.Instrumentation.Prometheus {
		metrics = indexer.PrometheusMetrics(conf.Instrumentation.Namespace)
	}

	n.registry = token.NewRegistry(s, conf.Index.TokenCacheSizeMB*1024*1024, logger.With("module", "token"))
	pargs := indexer.PipelineArgs{
		Store:    s,
		Registry: n.registry,
		Metrics:  metrics,
		Logger:   logger.With("module", "indexer"),
	}

	if conf.Engine.RPCAddress != "" {
		n.engine, err = neorpc.NewNode(conf.Engine.RPCAddress, conf.Engine.RequestTimeout)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("creating node client: %w", err)
		}
		n.heights = n.engine
		pargs.Detector = token.NewDetector(n.engine, logger.With("module", "token"))
	} else {
		n.heights = syncedHeight{store: s}
	}
	pargs.Heights = n.heights

	n.indexer = indexer.NewService(indexer.ServiceArgs{
		Pipeline:  indexer.NewPipeline(pargs),
		QueueSize: conf.Index.QueueSize,
		Logger:    logger.With("module", "indexer"),
	})

	if n.engine != nil {
		n.follower = neorpc.NewFollower(neorpc.FollowerArgs{
			Node:         n.engine,
			Publisher:    n.indexer,
			Store:        s,
			StartHeight:  conf.Engine.StartHeight,
			PollInterval: conf.Engine.PollInterval,
			Logger:       logger.With("module", "follower"),
		})
	}

	n.env = &core.Environment{
		Query:   indexer.NewQuery(s),
		Tokens:  n.registry,
		Heights: n.heights,
		Logger:  logger.With("module", "rpc"),
	}

	n.BaseService = *service.NewBaseService(logger, "Node", n)
	return n, nil
}

// OnStart starts the indexer, the follower when a node is configured, the
// query API and the Prometheus endpoint when enabled.
func (n *Node) OnStart(ctx context.Context) error {
	// Components are stopped explicitly by OnStop, in order, so they do not
	// watch ctx themselves.
	cctx := context.Background()

	if err := n.indexer.Start(cctx); err != nil {
		return fmt.Errorf("starting indexer: %w", err)
	}

	if n.follower != nil {
		if err := n.follower.Start(cctx); err != nil {
			_ = n.indexer.Stop()
			return fmt.Errorf("starting follower: %w", err)
		}
	} else {
		n.logger.Info("no node configured, serving the existing index only")
	}

	listener, err := net.Listen("tcp", n.config.RPC.ListenAddress)
	if err != nil {
		if n.follower != nil {
			_ = n.follower.Stop()
		}
		_ = n.indexer.Stop()
		return fmt.Errorf("listening on %s: %w", n.config.RPC.ListenAddress, err)
	}
	n.rpcListener = listener

	sctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	n.servers, sctx = errgroup.WithContext(sctx)
	n.servers.Go(func() error {
		return core.Serve(sctx, listener, n.env.Handler(n.config.RPC), n.config.RPC, n.logger.With("module", "rpc"))
	})
	if n.config.Instrumentation.Prometheus {
		n.servers.Go(func() error { return n.servePrometheus(sctx) })
	}
	return nil
}

// OnStop stops every component in reverse start order and closes the store.
func (n *Node) OnStop() {
	if n.follower != nil && n.follower.IsRunning() {
		if err := n.follower.Stop(); err != nil {
			n.logger.Error("failed to stop follower", "err", err)
		}
	}
	n.cancel()
	if err := n.servers.Wait(); err != nil {
		n.logger.Error("server stopped with error", "err", err)
	}
	if n.indexer.IsRunning() {
		if err := n.indexer.Stop(); err != nil {
			n.logger.Error("failed to stop indexer", "err", err)
		}
	}
	if err := n.store.Close(); err != nil {
		n.logger.Error("failed to close store", "err", err)
	}
}

// Failed is closed when the indexer stops on a commit failure.
func (n *Node) Failed() <-chan struct{} { return n.indexer.Failed() }

// Err returns the error that stopped the indexer, if any.
func (n *Node) Err() error { return n.indexer.Err() }

// RPCAddr returns the address the query API listens on, once started.
func (n *Node) RPCAddr() net.Addr {
	if n.rpcListener == nil {
		return nil
	}
	return n.rpcListener.Addr()
}

// Store returns the node's store.
func (n *Node) Store() store.Store { return n.store }

// Indexer returns the node's indexer service.
func (n *Node) Indexer() *indexer.Service { return n.indexer }

func (n *Node) servePrometheus(ctx context.Context) error {
	srv := &http.Server{
		Addr:              n.config.Instrumentation.PrometheusListenAddr,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		n.logger.Error("prometheus server stopped", "err", err)
		return err
	}
}

// syncedHeight reports the last block indexed when no node is attached.
type syncedHeight struct {
	store store.Store
}

func (h syncedHeight) CurrentHeight() uint32 {
	height, _, err := indexer.SyncHeight(h.store)
	if err != nil {
		return 0
	}
	return height
}
