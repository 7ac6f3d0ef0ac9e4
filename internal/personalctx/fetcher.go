package personalctx

import (
	"context"
	"sync"
	"time"

	"github.com/wardlink/clinic-comms-platform/pkg/logging"
)

// CachedFetcher memoizes context bundles per patient. Failures are cached
// as an empty bundle for the same TTL so a failing dependency is not
// hammered on every inbound message.
type CachedFetcher struct {
	repo   Repository
	ttl    time.Duration
	logger *logging.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]fetchEntry
}

type fetchEntry struct {
	bundle   *Bundle
	cachedAt time.Time
}

// NewCachedFetcher wraps the repository with TTL caching.
func NewCachedFetcher(repo Repository, ttl time.Duration, logger *logging.Logger) *CachedFetcher {
	if repo == nil {
		panic("personalctx: repository cannot be nil")
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CachedFetcher{
		repo:    repo,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]fetchEntry),
	}
}

// Fetch returns the context bundle for the patient. It never returns an
// error: on repository failure the caller gets an empty bundle and the
// miss is remembered until the TTL lapses.
func (f *CachedFetcher) Fetch(ctx context.Context, patientID string) *Bundle {
	f.mu.Lock()
	if entry, ok := f.entries[patientID]; ok && f.now().Sub(entry.cachedAt) < f.ttl {
		bundle := entry.bundle
		f.mu.Unlock()
		return bundle
	}
	f.mu.Unlock()

	bundle, err := f.repo.FetchBundle(ctx, patientID)
	if err != nil {
		f.logger.Warn("personal context fetch failed, caching empty bundle", "patient_id", patientID, "error", err)
		bundle = &Bundle{}
	}

	f.mu.Lock()
	f.entries[patientID] = fetchEntry{bundle: bundle, cachedAt: f.now()}
	f.mu.Unlock()
	return bundle
}
