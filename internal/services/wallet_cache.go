package services

import (
	"sync"
	"time"
)

// WalletCache maps a social-identity user id to a previously resolved wallet
// address. Pure TTL cache semantics: stale entries read as absent and the
// caller re-resolves through the external lookup. No invalidation beyond
// expiry.
type WalletCache struct {
	mu      sync.RWMutex
	entries map[string]walletCacheEntry
	ttl     time.Duration
	maxSize int
}

type walletCacheEntry struct {
	address  string
	cachedAt time.Time
}

func NewWalletCache(ttl time.Duration, maxSize int) *WalletCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &WalletCache{
		entries: make(map[string]walletCacheEntry),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Get returns the cached address for a user, treating expired entries as
// absent.
func (c *WalletCache) Get(userID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[userID]
	if !ok || time.Since(entry.cachedAt) > c.ttl {
		return "", false
	}
	return entry.address, true
}

// Put stores a resolved address, evicting the oldest entry past the size
// bound.
func (c *WalletCache) Put(userID, address string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[userID] = walletCacheEntry{address: address, cachedAt: time.Now()}
	if len(c.entries) > c.maxSize {
		c.evictOldest()
	}
}

func (c *WalletCache) evictOldest() {
	var oldestKey string
	var oldestAt time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.cachedAt.Before(oldestAt) {
			oldestKey = k
			oldestAt = e.cachedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
