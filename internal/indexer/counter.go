package indexer

import (
	"encoding/binary"
	"fmt"

	"github.com/neonotify/neonotify/internal/store"
)

const counterSize = 4

// Ledger mints per-bucket sequence numbers. Counters read from the store
// are combined with the values already minted in the current batch, and the
// new values are flushed into that same batch so a counter never advances
// without the records it sequences.
//
// A Ledger is not safe for concurrent use. Writes are serialized by Service.
type Ledger struct {
	store   store.Store
	pending map[string]uint32
	order   []string
}

func newLedger(s store.Store) *Ledger {
	return &Ledger{store: s, pending: make(map[string]uint32)}
}

// Slot names one bucket a record is appended to.
type Slot struct {
	Kind   Kind
	Bucket []byte
}

// Next returns the sequence number for the next record of the bucket.
// Sequences start at 1.
func (l *Ledger) Next(kind Kind, bucketID []byte) (uint32, error) {
	seqs, err := l.Reserve(Slot{Kind: kind, Bucket: bucketID})
	if err != nil {
		return 0, err
	}
	return seqs[0], nil
}

// Reserve mints one sequence per slot, in order. A slot repeated in the
// list gets consecutive sequences. If any counter cannot be read the ledger
// is left unchanged.
func (l *Ledger) Reserve(slots ...Slot) ([]uint32, error) {
	keys := make([]string, len(slots))
	local := make(map[string]uint32, len(slots))
	seqs := make([]uint32, len(slots))
	for i, s := range slots {
		key := string(CounterKey(s.Kind, s.Bucket))
		cur, ok := local[key]
		if !ok {
			cur, ok = l.pending[key]
		}
		if !ok {
			var err error
			cur, err = readCounter(l.store, []byte(key))
			if err != nil {
				return nil, err
			}
		}
		cur++
		local[key] = cur
		keys[i] = key
		seqs[i] = cur
	}
	for _, key := range keys {
		if _, seen := l.pending[key]; !seen {
			l.order = append(l.order, key)
		}
		l.pending[key] = local[key]
	}
	return seqs, nil
}

// flush writes every counter minted since the ledger was created.
func (l *Ledger) flush(b store.Batch) error {
	for _, key := range l.order {
		if err := b.Set([]byte(key), encodeCounter(l.pending[key])); err != nil {
			return fmt.Errorf("writing counter: %w", err)
		}
	}
	return nil
}

// ReadCounter returns the persisted counter of a bucket, zero if the bucket
// has never been written.
func ReadCounter(s store.Store, kind Kind, bucketID []byte) (uint32, error) {
	return readCounter(s, CounterKey(kind, bucketID))
}

func readCounter(s store.Store, key []byte) (uint32, error) {
	raw, err := s.Get(key)
	if err != nil {
		return 0, fmt.Errorf("reading counter: %w", err)
	}
	if raw == nil {
		return 0, nil
	}
	if len(raw) != counterSize {
		return 0, fmt.Errorf("corrupt counter: expected %d bytes, got %d", counterSize, len(raw))
	}
	return binary.LittleEndian.Uint32(raw), nil
}

func encodeCounter(v uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, v)
}
