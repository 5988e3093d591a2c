// Package token keeps track of which contracts have been probed for token
// metadata and stores the descriptors of those found to be tokens.
package token

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/coocood/freecache"

	"github.com/neonotify/neonotify/internal/indexer"
	"github.com/neonotify/neonotify/internal/store"
	"github.com/neonotify/neonotify/libs/log"
	"github.com/neonotify/neonotify/types"
)

var _ indexer.TokenRegistry = (*Registry)(nil)

// seenMarker is the value of a contract-seen entry. Only presence matters.
var seenMarker = []byte{0x00}

// Registry persists contract-seen markers and token descriptors and caches
// both in memory. Cache entries are added only after the batch holding
// them has committed, so the cache never runs ahead of the store.
type Registry struct {
	store  store.Store
	cache  *freecache.Cache
	logger log.Logger
}

// NewRegistry returns a registry over s with a cache of cacheSize bytes.
func NewRegistry(s store.Store, cacheSize int, logger log.Logger) *Registry {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Registry{
		store:  s,
		cache:  freecache.NewCache(cacheSize),
		logger: logger,
	}
}

func seenKey(hash types.UInt160) []byte {
	return indexer.BucketPrefix(indexer.KindContractSeen, hash.Bytes())
}

func tokenKey(hash types.UInt160) []byte {
	return indexer.BucketPrefix(indexer.KindToken, hash.Bytes())
}

// HasBeenChecked reports whether detection was already attempted for hash.
func (r *Registry) HasBeenChecked(hash types.UInt160) (bool, error) {
	key := seenKey(hash)
	if _, err := r.cache.Get(key); err == nil {
		return true, nil
	}
	raw, err := r.store.Get(key)
	if err != nil {
		return false, fmt.Errorf("reading contract marker: %w", err)
	}
	if raw == nil {
		return false, nil
	}
	r.cacheSet(key, seenMarker)
	return true, nil
}

// MarkChecked stages the contract-seen marker for hash into b.
func (r *Registry) MarkChecked(b *indexer.Batch, hash types.UInt160) error {
	key := seenKey(hash)
	if err := b.Set(key, seenMarker); err != nil {
		return fmt.Errorf("staging contract marker: %w", err)
	}
	b.AfterCommit(func() { r.cacheSet(key, seenMarker) })
	return nil
}

// Lookup returns the descriptor of the token at hash, or nil if the
// contract is not a known token.
func (r *Registry) Lookup(hash types.UInt160) (*types.TokenDescriptor, error) {
	key := tokenKey(hash)
	raw, err := r.cache.Get(key)
	if err != nil {
		raw, err = r.store.Get(key)
		if err != nil {
			return nil, fmt.Errorf("reading token: %w", err)
		}
		if raw == nil {
			return nil, nil
		}
		r.cacheSet(key, raw)
	}
	desc := new(types.TokenDescriptor)
	if err := json.Unmarshal(raw, desc); err != nil {
		return nil, fmt.Errorf("decoding token %s: %w", hash, err)
	}
	return desc, nil
}

// Store stages desc into b. A descriptor that already exists is left
// untouched.
func (r *Registry) Store(b *indexer.Batch, desc *types.TokenDescriptor) error {
	if desc == nil {
		return errors.New("nil token descriptor")
	}
	hash, err := types.ParseUInt160(desc.Token.ScriptHash)
	if err != nil {
		return fmt.Errorf("token script hash: %w", err)
	}
	key := tokenKey(hash)

	existing, err := r.store.Get(key)
	if err != nil {
		return fmt.Errorf("reading token: %w", err)
	}
	if existing != nil {
		return nil
	}

	raw, err := json.Marshal(desc)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	if err := b.Set(key, raw); err != nil {
		return fmt.Errorf("staging token: %w", err)
	}
	b.AfterCommit(func() { r.cacheSet(key, raw) })
	return nil
}

// List returns every stored token whose originating block passes the
// filter's block bounds. The event type of the filter does not apply.
func (r *Registry) List(filter indexer.Filter) ([]*types.TokenDescriptor, error) {
	results := []*types.TokenDescriptor{}
	prefix := []byte{byte(indexer.KindToken)}
	err := store.IteratePrefix(r.store, prefix, func(key, value []byte) (bool, error) {
		desc := new(types.TokenDescriptor)
		if err := json.Unmarshal(value, desc); err != nil {
			return false, fmt.Errorf("decoding token %X: %w", key, err)
		}
		if filter.MatchBlock(desc.Block) {
			results = append(results, desc)
		}
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing tokens: %w", err)
	}
	return results, nil
}

func (r *Registry) cacheSet(key, value []byte) {
	if err := r.cache.Set(key, value, 0); err != nil {
		r.logger.Debug("token cache rejected entry", "key", log.Hexadecimal(key), "err", err)
	}
}
