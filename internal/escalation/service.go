package escalation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	obsmetrics "github.com/wardlink/clinic-comms-platform/internal/observability/metrics"
	"github.com/wardlink/clinic-comms-platform/pkg/logging"
)

type recordStore interface {
	Put(ctx context.Context, esc *Escalation) error
}

type archiver interface {
	Archive(ctx context.Context, esc *Escalation) error
}

type notifier interface {
	Notify(ctx context.Context, esc *Escalation)
}

// Service coordinates escalation creation: the record write must succeed,
// archival and fan-out are best-effort afterwards.
type Service struct {
	store    recordStore
	archiver archiver
	notifier notifier
	logger   *logging.Logger
	metrics  *obsmetrics.PlatformMetrics
}

// NewService wires the escalation pipeline. archiver may be nil.
func NewService(store recordStore, arch archiver, notif notifier, logger *logging.Logger) *Service {
	if store == nil {
		panic("escalation: store cannot be nil")
	}
	if notif == nil {
		panic("escalation: notifier cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:    store,
		archiver: arch,
		notifier: notif,
		logger:   logger,
	}
}

// WithMetrics attaches platform metrics. All counters are nil-safe.
func (s *Service) WithMetrics(m *obsmetrics.PlatformMetrics) *Service {
	s.metrics = m
	return s
}

// Create persists the escalation and fans it out. The returned id is
// valid even when some provider sends fail.
func (s *Service) Create(ctx context.Context, esc *Escalation) (string, error) {
	if esc == nil {
		return "", fmt.Errorf("escalation: record cannot be nil")
	}
	if esc.ID == "" {
		esc.ID = uuid.NewString()
	}

	if err := s.store.Put(ctx, esc); err != nil {
		return "", err
	}

	if s.archiver != nil && esc.Media != nil {
		if err := s.archiver.Archive(ctx, esc); err != nil {
			s.logger.Warn("escalation archive failed", "escalation_id", esc.ID, "error", err)
		}
	}

	s.metrics.ObserveEscalation()
	s.notifier.Notify(ctx, esc)
	return esc.ID, nil
}
