// Package store is the ordered key-value layer every index lives in. It
// exposes point reads and writes, atomic batches and forward iteration from a
// start key; callers enforce their own prefix termination.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"

	dbm "github.com/tendermint/tm-db"
)

const (
	BackendGoLevelDB = "goleveldb"
	BackendMemDB     = "memdb"
	BackendPebble    = "pebble"
)

var (
	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown db backend")
	// ErrClosed is returned when a closed store is used.
	ErrClosed = errors.New("store is closed")
)

// Store is an ordered, durable key-value store.
//
// Implementations must be safe for concurrent use. Reads never block a
// concurrent batch commit beyond what the backend itself serializes.
type Store interface {
	// Get returns nil, nil when the key is absent.
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	// NewBatch returns a write batch that is applied atomically by WriteSync.
	NewBatch() Batch
	// Iterator iterates forward from start (inclusive) to the end of the
	// keyspace. There is no upper bound.
	Iterator(start []byte) (Iterator, error)
	Close() error
}

// Batch accumulates writes until WriteSync commits them atomically and
// durably. A batch must be closed after use and cannot be reused once
// written.
type Batch interface {
	Set(key, value []byte) error
	WriteSync() error
	Close() error
}

// Iterator is a forward cursor over the store. Key and Value are only valid
// until the next call to Next.
type Iterator interface {
	Valid() bool
	Next()
	Key() []byte
	Value() []byte
	Error() error
	Close() error
}

// Open returns a store for backend rooted at dir. name identifies the
// database within dir.
func Open(name, backend, dir string) (Store, error) {
	switch backend {
	case BackendMemDB:
		return NewTMStore(dbm.NewMemDB()), nil
	case BackendGoLevelDB:
		db, err := dbm.NewDB(name, dbm.GoLevelDBBackend, dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open goleveldb %q: %w", name, err)
		}
		return NewTMStore(db), nil
	case BackendPebble:
		return OpenPebble(filepath.Join(dir, name+".db"))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// IteratePrefix calls fn for every key that starts with prefix, in key order.
// Iteration stops at the first key outside the prefix, when fn returns false,
// or when fn returns an error.
func IteratePrefix(s Store, prefix []byte, fn func(key, value []byte) (bool, error)) error {
	it, err := s.Iterator(prefix)
	if err != nil {
		return err
	}
	defer it.Close()

	for ; it.Valid(); it.Next() {
		key := it.Key()
		if !bytes.HasPrefix(key, prefix) {
			break
		}
		ok, err := fn(key, it.Value())
		if err != nil {
			return err
		}
		if !ok {
			break
		}
	}

	return it.Error()
}
