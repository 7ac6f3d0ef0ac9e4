package approval

import (
	"context"
	"errors"
	"time"

	"github.com/wardlink/clinic-comms-platform/pkg/logging"
)

type expiryStore interface {
	ListExpiredPending(ctx context.Context, now time.Time) ([]Request, error)
	UpdateStatus(ctx context.Context, id string, expectedVersion int64, to Status, meetingLink, calendarEventID string) error
}

// Sweeper actively transitions lapsed pending requests to expired so
// dashboards reflect true state without waiting for a read to trigger
// the lazy expiry check.
type Sweeper struct {
	store    expiryStore
	interval time.Duration
	logger   *logging.Logger
	now      func() time.Time
}

// NewSweeper builds a sweeper over the request store.
func NewSweeper(store expiryStore, interval time.Duration, logger *logging.Logger) *Sweeper {
	if store == nil {
		panic("approval: store cannot be nil")
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	expired, err := s.store.ListExpiredPending(ctx, s.now())
	if err != nil {
		s.logger.Error("expiry sweep fetch failed", "error", err)
		return
	}
	var transitioned int
	for _, req := range expired {
		err := s.store.UpdateStatus(ctx, req.ID, req.Version, StatusExpired, "", "")
		if err != nil {
			// A concurrent resolve or an earlier sweep already moved it.
			if errors.Is(err, ErrAlreadyResolved) {
				continue
			}
			s.logger.Error("expiry transition failed", "request_id", req.ID, "error", err)
			continue
		}
		transitioned++
	}
	if transitioned > 0 {
		s.logger.Info("expired pending requests", "count", transitioned)
	}
}
