package services

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sonicframe/api/internal/models"
	"github.com/sonicframe/api/internal/utils"
)

const (
	contentKeyPrefix  = "media_"
	fallbackKeyPrefix = "token_"
)

// FingerprintService derives the canonical content key for a token. Two tokens
// whose normalized media references match always produce the same key, no
// matter which contract minted them. Fingerprinting is pure and total; the
// memoization cache is an optional layer in front of it.
type FingerprintService struct {
	cache *FingerprintCache
}

func NewFingerprintService(cache *FingerprintCache) *FingerprintService {
	return &FingerprintService{
		cache: cache,
	}
}

// Fingerprint returns the media key for a token. Tokens with no usable media
// reference get a fallback key derived from (contract, tokenId); the two key
// namespaces carry distinct prefixes so a fallback key can never collide with
// a content-derived one.
func (s *FingerprintService) Fingerprint(nft models.NormalizedNFT) string {
	memoKey := ""
	if nft.Contract != "" && nft.TokenID != "" {
		memoKey = nft.Contract + "/" + nft.TokenID
		if s.cache != nil {
			if key, ok := s.cache.Get(memoKey); ok {
				return key
			}
		}
	}

	key := computeFingerprint(nft)

	if memoKey != "" && s.cache != nil {
		s.cache.Set(memoKey, key)
	}
	return key
}

func computeFingerprint(nft models.NormalizedNFT) string {
	seen := make(map[string]bool, 3)
	var normalized []string
	for _, raw := range []string{nft.Image, nft.Audio, nft.AnimationURL} {
		// Lowercase before dedupe: the final key is lowercased anyway, and a
		// mixed-case ipfs:// form must collapse with the lowercased subdomain
		// gateway form of the same id.
		n := strings.ToLower(utils.NormalizeReference(raw))
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		normalized = append(normalized, n)
	}

	if len(normalized) == 0 {
		return fallbackKeyPrefix + sanitizeKeyPart(nft.Contract+"_"+nft.TokenID)
	}

	sort.Strings(normalized)
	return contentKeyPrefix + sanitizeKeyPart(strings.Join(normalized, "_"))
}

// sanitizeKeyPart lowercases and maps everything outside [a-z0-9_] to '_',
// collapsing runs so the result is stable and safe as a document id.
func sanitizeKeyPart(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastUnderscore := false
	for _, r := range strings.ToLower(s) {
		ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if ok {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	return strings.Trim(b.String(), "_")
}

// FingerprintCache memoizes (contract, tokenId) -> media key with a TTL and a
// size bound. It is constructed explicitly and injected so tests stay
// isolated; the TTL also bounds how long a stale fingerprint survives if the
// underlying metadata for a token changes.
type FingerprintCache struct {
	mu      sync.RWMutex
	entries map[string]fingerprintEntry
	ttl     time.Duration
	maxSize int
}

type fingerprintEntry struct {
	key      string
	cachedAt time.Time
}

func NewFingerprintCache(ttl time.Duration, maxSize int) *FingerprintCache {
	return &FingerprintCache{
		entries: make(map[string]fingerprintEntry),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

func (c *FingerprintCache) Get(memoKey string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[memoKey]
	if !ok || time.Since(entry.cachedAt) > c.ttl {
		return "", false
	}
	return entry.key, true
}

func (c *FingerprintCache) Set(memoKey, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[memoKey] = fingerprintEntry{key: key, cachedAt: time.Now()}
	if len(c.entries) > c.maxSize {
		c.evictOldest()
	}
}

// Invalidate drops the memoized key for a token, for callers that learn its
// metadata changed.
func (c *FingerprintCache) Invalidate(memoKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, memoKey)
}

func (c *FingerprintCache) evictOldest() {
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
