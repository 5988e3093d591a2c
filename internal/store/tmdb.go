package store

import (
	dbm "github.com/tendermint/tm-db"
)

var _ Store = (*TMStore)(nil)

// TMStore adapts a tm-db database (goleveldb, memdb) to Store.
type TMStore struct {
	db dbm.DB
}

// NewTMStore wraps db.
func NewTMStore(db dbm.DB) *TMStore {
	return &TMStore{db: db}
}

func (s *TMStore) Get(key []byte) ([]byte, error) {
	return s.db.Get(key)
}

func (s *TMStore) Set(key, value []byte) error {
	return s.db.SetSync(key, value)
}

func (s *TMStore) NewBatch() Batch {
	return s.db.NewBatch()
}

func (s *TMStore) Iterator(start []byte) (Iterator, error) {
	return s.db.Iterator(start, nil)
}

func (s *TMStore) Close() error {
	return s.db.Close()
}
