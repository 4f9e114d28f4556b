package policy

import (
	"context"

	"github.com/roach88/precedent-offline/internal/store"
)

// Cache is the response cache a strategy reads and writes.
// *store.Cache implements it for one cache generation.
type Cache interface {
	Match(ctx context.Context, key string) (store.CachedResponse, bool, error)
	Put(ctx context.Context, r store.CachedResponse) error
}

// NoCache never matches and drops every write. Strategies backed by it
// behave as network-only, which is how the layer degrades when the
// persistent store is unavailable.
type NoCache struct{}

// Match always misses.
func (NoCache) Match(context.Context, string) (store.CachedResponse, bool, error) {
	return store.CachedResponse{}, false, nil
}

// Put discards r.
func (NoCache) Put(context.Context, store.CachedResponse) error {
	return nil
}
