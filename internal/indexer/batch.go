package indexer

import (
	"errors"
	"fmt"

	"github.com/neonotify/neonotify/internal/store"
)

// ErrBatchDone is returned when a committed or closed batch is reused.
var ErrBatchDone = errors.New("batch already committed or closed")

// Batch collects every write produced by one transaction: index records,
// the counters that sequence them, contract markers and token descriptors.
// Commit applies all of it atomically, exactly once.
type Batch struct {
	store   store.Store
	batch   store.Batch
	ledger  *Ledger
	after   []func()
	records int
	done    bool
}

// NewBatch opens a batch against s.
func NewBatch(s store.Store) *Batch {
	return &Batch{
		store:  s,
		batch:  s.NewBatch(),
		ledger: newLedger(s),
	}
}

// Set stages a raw key/value write.
func (b *Batch) Set(key, value []byte) error {
	if b.done {
		return ErrBatchDone
	}
	return b.batch.Set(key, value)
}

// Reserve mints sequence numbers for slots without writing records. See
// Ledger.Reserve.
func (b *Batch) Reserve(slots ...Slot) ([]uint32, error) {
	if b.done {
		return nil, ErrBatchDone
	}
	return b.ledger.Reserve(slots...)
}

// PutAt stages value under a sequence previously returned by Reserve.
func (b *Batch) PutAt(kind Kind, bucketID []byte, seq uint32, value []byte) error {
	if err := b.Set(EncodeKey(kind, bucketID, seq), value); err != nil {
		return fmt.Errorf("staging %s record: %w", kind, err)
	}
	b.records++
	return nil
}

// Put appends value to a bucket and returns the sequence it was stored at.
func (b *Batch) Put(kind Kind, bucketID []byte, value []byte) (uint32, error) {
	seqs, err := b.Reserve(Slot{Kind: kind, Bucket: bucketID})
	if err != nil {
		return 0, err
	}
	return seqs[0], b.PutAt(kind, bucketID, seqs[0], value)
}

// AfterCommit registers fn to run once the batch has been durably written.
// Callbacks do not run if the commit fails.
func (b *Batch) AfterCommit(fn func()) {
	b.after = append(b.after, fn)
}

// Records returns the number of index records staged so far.
func (b *Batch) Records() int { return b.records }

// Commit flushes the counters and writes the batch synchronously. The batch
// is closed afterwards whether or not the write succeeded.
func (b *Batch) Commit() error {
	if b.done {
		return ErrBatchDone
	}
	defer b.Close()

	if err := b.ledger.flush(b.batch); err != nil {
		return err
	}
	if err := b.batch.WriteSync(); err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}
	for _, fn := range b.after {
		fn()
	}
	return nil
}

// Close discards the batch if it has not been committed. It is safe to call
// more than once.
func (b *Batch) Close() error {
	if b.done {
		return nil
	}
	b.done = true
	return b.batch.Close()
}
