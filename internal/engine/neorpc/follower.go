package neorpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neonotify/neonotify/internal/indexer"
	"github.com/neonotify/neonotify/internal/store"
	"github.com/neonotify/neonotify/libs/log"
	"github.com/neonotify/neonotify/libs/service"
	"github.com/neonotify/neonotify/types"
)

// Publisher accepts executed transactions for indexing. indexer.Service
// implements it.
type Publisher interface {
	Publish(ctx context.Context, tx *types.ExecutedTx) error
	Sync(ctx context.Context) error
}

var _ Publisher = (*indexer.Service)(nil)

// FollowerArgs are arguments for constructing a Follower.
type FollowerArgs struct {
	Node         *Node
	Publisher    Publisher
	Store        store.Store
	StartHeight  uint32
	PollInterval time.Duration
	Logger       log.Logger
}

// Follower walks the chain block by block and publishes the application
// log of every invocation transaction, in chain order. The last block fully
// indexed is persisted so a restart resumes after it.
type Follower struct {
	service.BaseService

	node      *Node
	publisher Publisher
	store     store.Store
	start     uint32
	interval  time.Duration
	logger    log.Logger

	done chan struct{}
	stop chan struct{}
}

// NewFollower constructs a new Follower.
func NewFollower(args FollowerArgs) *Follower {
	f := &Follower{
		node:      args.Node,
		publisher: args.Publisher,
		store:     args.Store,
		start:     args.StartHeight,
		interval:  args.PollInterval,
		logger:    args.Logger,
		done:      make(chan struct{}),
		stop:      make(chan struct{}),
	}
	if f.interval <= 0 {
		f.interval = 5 * time.Second
	}
	if f.logger == nil {
		f.logger = log.NewNopLogger()
	}
	f.BaseService = *service.NewBaseService(f.logger, "Follower", f)
	return f
}

// OnStart implements service.Service.
func (f *Follower) OnStart(ctx context.Context) error {
	next, err := f.resumeHeight()
	if err != nil {
		return err
	}
	f.logger.Info("following chain", "from", next)
	go f.loop(ctx, next)
	return nil
}

// OnStop implements service.Service.
func (f *Follower) OnStop() {
	close(f.stop)
	<-f.done
}

func (f *Follower) resumeHeight() (uint32, error) {
	synced, ok, err := indexer.SyncHeight(f.store)
	if err != nil {
		return 0, err
	}
	if ok && synced+1 > f.start {
		return synced + 1, nil
	}
	return f.start, nil
}

func (f *Follower) loop(ctx context.Context, next uint32) {
	defer close(f.done)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		var err error
		next, err = f.catchUp(ctx, next)
		if err != nil && ctx.Err() == nil {
			f.logger.Error("failed to follow chain", "height", next, "err", err)
			if errors.Is(err, indexer.ErrServiceStopped) || f.publisherFailed() {
				go func() { _ = f.Stop() }()
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-f.stop:
			return
		case <-ticker.C:
		}
	}
}

func (f *Follower) publisherFailed() bool {
	svc, ok := f.publisher.(*indexer.Service)
	return ok && svc.Err() != nil
}

// catchUp indexes blocks from next up to the node's tip and returns the
// next height to index.
func (f *Follower) catchUp(ctx context.Context, next uint32) (uint32, error) {
	count, err := f.node.BlockCount(ctx)
	if err != nil {
		return next, err
	}
	for ; next < count; next++ {
		select {
		case <-ctx.Done():
			return next, nil
		case <-f.stop:
			return next, nil
		default:
		}
		if err := f.indexBlock(ctx, next); err != nil {
			return next, err
		}
	}
	return next, nil
}

// indexBlock fetches every application log of the block before publishing
// any of them, so a fetch error never leaves the block half published.
func (f *Follower) indexBlock(ctx context.Context, height uint32) error {
	block, err := f.node.Block(ctx, height)
	if err != nil {
		return err
	}

	txs := make([]*types.ExecutedTx, 0, len(block.Tx))
	for _, tx := range block.Tx {
		if tx.Type != InvocationTransaction {
			continue
		}
		appLog, err := f.node.ApplicationLog(ctx, tx.TxID)
		if err != nil {
			return err
		}
		if appLog == nil {
			continue
		}
		executed, err := appLog.ExecutedTx()
		if err != nil {
			return fmt.Errorf("decoding application log of %s: %w", tx.TxID, err)
		}
		txs = append(txs, executed)
	}

	// A previous run may have stopped halfway through this block.
	pending, err := indexer.Unindexed(f.store, height, txs)
	if err != nil {
		return err
	}
	if skipped := len(txs) - len(pending); skipped > 0 {
		f.logger.Info("resuming partly indexed block", "height", height, "skipped", skipped)
	}

	// The engine's height trails the block being executed by one. At
	// genesis this wraps, and the pipeline's +1 wraps back to zero.
	f.node.SetCurrentHeight(height - 1)
	for _, tx := range pending {
		if err := f.publisher.Publish(ctx, tx); err != nil {
			return err
		}
	}
	if err := f.publisher.Sync(ctx); err != nil {
		return err
	}
	f.node.SetCurrentHeight(height)

	if err := indexer.SetSyncHeight(f.store, height); err != nil {
		return err
	}
	f.logger.Debug("indexed block", "height", height, "txs", len(pending))
	return nil
}
