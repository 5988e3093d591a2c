package neorpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/neonotify/neonotify/internal/indexer"
	"github.com/neonotify/neonotify/internal/store"
	"github.com/neonotify/neonotify/libs/log"
	"github.com/neonotify/neonotify/types"
)

// HeightSetter is the engine height a replay drives.
type HeightSetter interface {
	CurrentHeight() uint32
	SetCurrentHeight(uint32)
}

// ReplayArgs are arguments for Replay.
type ReplayArgs struct {
	Publisher Publisher
	Heights   HeightSetter
	Store     store.Store
	Logger    log.Logger
}

// ReplayStats summarizes a replay.
type ReplayStats struct {
	Blocks  int
	Txs     int
	Skipped int
}

// Replay publishes a stream of application logs, as written by a node dump,
// one JSON object per transaction carrying its block height. Logs must be in
// chain order. Blocks at or below the store's sync height are skipped, and
// so are transactions of a partly indexed block that already committed, so
// a dump can be replayed again after an interruption.
func Replay(ctx context.Context, r io.Reader, args ReplayArgs) (ReplayStats, error) {
	var stats ReplayStats
	logger := args.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}

	synced, resumed, err := indexer.SyncHeight(args.Store)
	if err != nil {
		return stats, err
	}

	var (
		current uint32
		block   []*types.ExecutedTx
		started bool
	)
	flush := func() error {
		pending, err := indexer.Unindexed(args.Store, current, block)
		if err != nil {
			return err
		}
		stats.Skipped += len(block) - len(pending)

		args.Heights.SetCurrentHeight(current - 1)
		for _, tx := range pending {
			if err := args.Publisher.Publish(ctx, tx); err != nil {
				return err
			}
			stats.Txs++
		}
		if err := args.Publisher.Sync(ctx); err != nil {
			return err
		}
		args.Heights.SetCurrentHeight(current)
		if err := indexer.SetSyncHeight(args.Store, current); err != nil {
			return err
		}
		stats.Blocks++
		logger.Debug("replayed block", "height", current, "txs", len(pending))
		block = block[:0]
		return nil
	}

	dec := json.NewDecoder(r)
	for line := 1; ; line++ {
		var appLog types.ApplicationLog
		if err := dec.Decode(&appLog); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return stats, fmt.Errorf("application log %d: %w", line, err)
		}

		if resumed && appLog.Block <= synced {
			stats.Skipped++
			continue
		}
		if started && appLog.Block < current {
			return stats, fmt.Errorf("application log %d: block %d after block %d", line, appLog.Block, current)
		}
		tx, err := appLog.ExecutedTx()
		if err != nil {
			return stats, fmt.Errorf("application log %d: %w", line, err)
		}

		if started && appLog.Block != current {
			if err := flush(); err != nil {
				return stats, err
			}
		}
		started = true
		current = appLog.Block
		block = append(block, tx)
	}

	if started {
		if err := flush(); err != nil {
			return stats, err
		}
	}
	return stats, nil
}
