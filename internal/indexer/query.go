package indexer

import (
	"encoding/json"
	"fmt"

	"github.com/neonotify/neonotify/internal/store"
	"github.com/neonotify/neonotify/types"
)

// Unset is the sentinel value of a block bound that is not set.
const Unset int64 = -1

// Filter selects records by event type and by exclusive block bounds.
type Filter struct {
	// EventType, if not empty, must equal the record's notify_type.
	EventType string
	// AfterBlock, unless Unset, requires block > AfterBlock.
	AfterBlock int64
	// BeforeBlock, unless Unset, requires block < BeforeBlock.
	BeforeBlock int64
}

// NewFilter returns a filter that matches everything.
func NewFilter() Filter {
	return Filter{AfterBlock: Unset, BeforeBlock: Unset}
}

// Match reports whether a record with the given type and block passes.
func (f Filter) Match(notifyType string, block uint32) bool {
	if f.EventType != "" && notifyType != f.EventType {
		return false
	}
	return f.MatchBlock(block)
}

// MatchBlock applies only the block bounds.
func (f Filter) MatchBlock(block uint32) bool {
	if f.AfterBlock > Unset && int64(block) <= f.AfterBlock {
		return false
	}
	if f.BeforeBlock > Unset && int64(block) >= f.BeforeBlock {
		return false
	}
	return true
}

// Query is the read path of the index. It takes no locks and is safe for
// concurrent use with a running Pipeline.
type Query struct {
	store store.Store
}

// NewQuery returns a Query reading from s.
func NewQuery(s store.Store) *Query {
	return &Query{store: s}
}

// QueryBucket returns the records of one bucket that pass filter, in the
// order they were written.
func (q *Query) QueryBucket(kind Kind, bucketID []byte, filter Filter) ([]types.NotificationRecord, error) {
	results := []types.NotificationRecord{}
	err := store.IteratePrefix(q.store, BucketPrefix(kind, bucketID), func(key, value []byte) (bool, error) {
		var rec types.NotificationRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return false, fmt.Errorf("decoding record %X: %w", key, err)
		}
		if filter.Match(rec.NotifyType, rec.Block) {
			results = append(results, rec)
		}
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s bucket: %w", kind, err)
	}
	return results, nil
}

// ByAddress returns the transfers, refunds, mints and burns involving addr.
func (q *Query) ByAddress(addr types.UInt160, filter Filter) ([]types.NotificationRecord, error) {
	return q.QueryBucket(KindAddress, AddressBucket(addr), filter)
}

// ByContract returns the notifications raised by contract.
func (q *Query) ByContract(contract types.UInt160, filter Filter) ([]types.NotificationRecord, error) {
	return q.QueryBucket(KindContract, ContractBucket(contract), filter)
}

// ByBlock returns the notifications raised in the block at height.
func (q *Query) ByBlock(height uint32, filter Filter) ([]types.NotificationRecord, error) {
	return q.QueryBucket(KindBlock, BlockBucket(height), filter)
}

// ByTransaction returns the notifications raised by tx.
func (q *Query) ByTransaction(tx types.UInt256, filter Filter) ([]types.NotificationRecord, error) {
	return q.QueryBucket(KindTransaction, TransactionBucket(tx), filter)
}
