package store

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
)

var _ Store = (*PebbleStore)(nil)

// PebbleStore is a Store backed by cockroachdb/pebble.
type PebbleStore struct {
	db     *pebble.DB
	closed atomic.Bool
}

// OpenPebble opens (creating if needed) a pebble database at path.
func OpenPebble(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %q: %w", path, err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Get(key []byte) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	value, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	// the returned slice is only valid until closer is closed
	return append([]byte{}, value...), nil
}

func (s *PebbleStore) Set(key, value []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.db.Set(key, value, pebble.Sync)
}

func (s *PebbleStore) NewBatch() Batch {
	return &pebbleBatch{batch: s.db.NewBatch()}
}

func (s *PebbleStore) Iterator(start []byte) (Iterator, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: start})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	iter.First()
	return &pebbleIterator{iter: iter}, nil
}

func (s *PebbleStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	return s.db.Close()
}

type pebbleBatch struct {
	batch *pebble.Batch
}

func (b *pebbleBatch) Set(key, value []byte) error {
	if b.batch == nil {
		return errBatchClosed
	}
	return b.batch.Set(key, value, nil)
}

func (b *pebbleBatch) WriteSync() error {
	if b.batch == nil {
		return errBatchClosed
	}
	err := b.batch.Commit(pebble.Sync)
	if err != nil {
		return err
	}
	return b.Close()
}

func (b *pebbleBatch) Close() error {
	if b.batch == nil {
		return nil
	}
	err := b.batch.Close()
	b.batch = nil
	return err
}

var errBatchClosed = errors.New("batch has been written or closed")

type pebbleIterator struct {
	iter *pebble.Iterator
}

func (it *pebbleIterator) Valid() bool   { return it.iter.Valid() }
func (it *pebbleIterator) Next()         { it.iter.Next() }
func (it *pebbleIterator) Key() []byte   { return append([]byte{}, it.iter.Key()...) }
func (it *pebbleIterator) Value() []byte { return append([]byte{}, it.iter.Value()...) }
func (it *pebbleIterator) Error() error  { return it.iter.Error() }
func (it *pebbleIterator) Close() error  { return it.iter.Close() }
