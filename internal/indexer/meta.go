package indexer

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/neonotify/neonotify/internal/store"
	"github.com/neonotify/neonotify/types"
)

var syncHeightKey = MetaKey("sync_height")

// SyncHeight returns the last block height fully handed to the index. ok is
// false when nothing has been synced yet.
func SyncHeight(s store.Store) (height uint32, ok bool, err error) {
	raw, err := s.Get(syncHeightKey)
	if err != nil {
		return 0, false, fmt.Errorf("reading sync height: %w", err)
	}
	if raw == nil {
		return 0, false, nil
	}
	if len(raw) != 4 {
		return 0, false, fmt.Errorf("corrupt sync height: %d bytes", len(raw))
	}
	return binary.BigEndian.Uint32(raw), true, nil
}

// SetSyncHeight records height as fully synced.
func SetSyncHeight(s store.Store, height uint32) error {
	if err := s.Set(syncHeightKey, binary.BigEndian.AppendUint32(nil, height)); err != nil {
		return fmt.Errorf("writing sync height: %w", err)
	}
	return nil
}

var lastIndexedKey = MetaKey("last_tx")

// Checkpoint identifies the last transaction whose batch committed.
type Checkpoint struct {
	Height uint32
	Tx     types.UInt256
}

// LastIndexed returns the checkpoint written by the most recent commit. ok
// is false when nothing has been indexed yet.
func LastIndexed(s store.Store) (cp Checkpoint, ok bool, err error) {
	raw, err := s.Get(lastIndexedKey)
	if err != nil {
		return cp, false, fmt.Errorf("reading checkpoint: %w", err)
	}
	if raw == nil {
		return cp, false, nil
	}
	if len(raw) != 4+len(cp.Tx) {
		return cp, false, fmt.Errorf("corrupt checkpoint: %d bytes", len(raw))
	}
	cp.Height = binary.BigEndian.Uint32(raw)
	copy(cp.Tx[:], raw[4:])
	return cp, true, nil
}

// stageCheckpoint records cp in b, so it commits together with the
// transaction it names.
func stageCheckpoint(b *Batch, cp Checkpoint) error {
	value := binary.BigEndian.AppendUint32(nil, cp.Height)
	value = append(value, cp.Tx[:]...)
	if err := b.Set(lastIndexedKey, value); err != nil {
		return fmt.Errorf("staging checkpoint: %w", err)
	}
	return nil
}

// Unindexed drops the transactions of block height that were already
// committed by an earlier, interrupted run. txs must be the block's
// transactions in chain order.
func Unindexed(s store.Store, height uint32, txs []*types.ExecutedTx) ([]*types.ExecutedTx, error) {
	cp, ok, err := LastIndexed(s)
	if err != nil || !ok || cp.Height != height {
		return txs, err
	}
	for i, tx := range txs {
		if tx.Hash == cp.Tx {
			return txs[i+1:], nil
		}
	}
	return txs, nil
}

var layoutVersionKey = MetaKey("layout_version")

// ErrLayoutMismatch is returned when a store was written with a different
// key layout than the running binary uses.
var ErrLayoutMismatch = errors.New("store layout version mismatch")

// EnsureLayoutVersion stamps an empty store with version, or checks that a
// used store carries it.
func EnsureLayoutVersion(s store.Store, version uint64) error {
	raw, err := s.Get(layoutVersionKey)
	if err != nil {
		return fmt.Errorf("reading layout version: %w", err)
	}
	if raw == nil {
		if err := s.Set(layoutVersionKey, binary.BigEndian.AppendUint64(nil, version)); err != nil {
			return fmt.Errorf("writing layout version: %w", err)
		}
		return nil
	}
	if len(raw) != 8 {
		return fmt.Errorf("corrupt layout version: %d bytes", len(raw))
	}
	if got := binary.BigEndian.Uint64(raw); got != version {
		return fmt.Errorf("%w: store has %d, want %d", ErrLayoutMismatch, got, version)
	}
	return nil
}
