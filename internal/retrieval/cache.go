package retrieval

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/wardlink/clinic-comms-platform/pkg/logging"
)

const maxResultTextLen = 4000

// Cache wraps a Searcher with a short-TTL in-memory result cache. The key
// includes the scope filter so cached results never leak across patients.
// Retrieval is best-effort: backend failures log and return an empty set.
type Cache struct {
	inner  Searcher
	ttl    time.Duration
	logger *logging.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	results  []Result
	cachedAt time.Time
}

// NewCache wraps the searcher with TTL caching.
func NewCache(inner Searcher, ttl time.Duration, logger *logging.Logger) *Cache {
	if inner == nil {
		panic("retrieval: searcher cannot be nil")
	}
	if ttl <= 0 {
		ttl = 4 * time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Cache{
		inner:   inner,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// Search returns ranked results for the query, serving repeats from cache
// within the TTL. It never returns an error.
func (c *Cache) Search(ctx context.Context, query string, filter ScopeFilter, topK int) []Result {
	if topK <= 0 {
		topK = 3
	}
	key := fmt.Sprintf("%s|%s|%d", filter.key(), normalizeQuery(query), topK)

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok && c.now().Sub(entry.cachedAt) < c.ttl {
		results := entry.results
		c.mu.Unlock()
		return results
	}
	c.mu.Unlock()

	results, err := c.inner.Search(ctx, query, filter, topK)
	if err != nil {
		c.logger.Warn("retrieval backend failed, returning empty set", "error", err)
		return nil
	}
	for i := range results {
		if len(results[i].Text) > maxResultTextLen {
			// Back off to a rune boundary so the cap never stores a
			// split multi-byte character.
			cut := maxResultTextLen
			for cut > 0 && !utf8.RuneStart(results[i].Text[cut]) {
				cut--
			}
			results[i].Text = results[i].Text[:cut]
		}
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{results: results, cachedAt: c.now()}
	c.evictExpiredLocked()
	c.mu.Unlock()
	return results
}

func (c *Cache) evictExpiredLocked() {
	cutoff := c.now().Add(-c.ttl)
	for key, entry := range c.entries {
		if entry.cachedAt.Before(cutoff) {
			delete(c.entries, key)
		}
	}
}

func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
