package authz

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// RistrettoCache is an in-process Cache backed by ristretto.
type RistrettoCache struct {
	cache *ristretto.Cache[int64, string]
	ttl   time.Duration
}

// NewRistrettoCache creates an in-process role cache. Entries expire after
// ttl so a missed invalidation heals on its own.
func NewRistrettoCache(ttl time.Duration) (*RistrettoCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[int64, string]{
		NumCounters: 1e5,
		MaxCost:     1 << 22,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	return &RistrettoCache{cache: c, ttl: ttl}, nil
}

// Get returns the cached role for the user, if present.
func (c *RistrettoCache) Get(_ context.Context, userID int64) (string, bool) {
	return c.cache.Get(userID)
}

// Set stores the role for the user.
func (c *RistrettoCache) Set(_ context.Context, userID int64, role string) {
	c.cache.SetWithTTL(userID, role, int64(len(role)), c.ttl)
	// Admission is buffered; flush so a Get right after Set hits.
	c.cache.Wait()
}

// Remove drops the cached role for the user.
func (c *RistrettoCache) Remove(_ context.Context, userID int64) {
	c.cache.Del(userID)
}

// Clear drops every cached entry.
func (c *RistrettoCache) Clear(_ context.Context) {
	c.cache.Clear()
}

// Close releases the cache's internal resources.
func (c *RistrettoCache) Close() {
	c.cache.Close()
}
