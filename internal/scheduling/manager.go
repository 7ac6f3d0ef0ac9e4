package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wardlink/clinic-comms-platform/internal/approval"
	"github.com/wardlink/clinic-comms-platform/internal/identity"
	"github.com/wardlink/clinic-comms-platform/pkg/logging"
)

// sessionStore abstracts session persistence for testing.
type sessionStore interface {
	Put(ctx context.Context, sess *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Transition(ctx context.Context, sess *Session, status SessionStatus) error
}

// providerDirectory lists providers a patient can be scheduled with.
type providerDirectory interface {
	GetProvider(ctx context.Context, id string) (*identity.Provider, error)
	ListProviders(ctx context.Context) ([]identity.Provider, error)
}

// approvalStarter hands a finished session to the approval workflow.
type approvalStarter interface {
	Create(ctx context.Context, req *approval.Request) (*approval.Request, error)
}

// StartInput carries everything needed to open a scheduling session.
type StartInput struct {
	PatientID    string
	PatientPhone string
	PatientName  string
	// ProviderRef is the patient's loose provider reference, may be empty.
	ProviderRef string
}

// Manager runs the scheduling session state machine and hands completed
// sessions off to the approval workflow.
type Manager struct {
	store     sessionStore
	providers providerDirectory
	approvals approvalStarter
	timezone  string
	logger    *logging.Logger
	now       func() time.Time
}

// NewManager builds a scheduling manager. All dependencies are required.
func NewManager(store sessionStore, providers providerDirectory, approvals approvalStarter, timezone string, logger *logging.Logger) *Manager {
	if store == nil {
		panic("scheduling: session store cannot be nil")
	}
	if providers == nil {
		panic("scheduling: provider directory cannot be nil")
	}
	if approvals == nil {
		panic("scheduling: approval workflow cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{
		store:     store,
		providers: providers,
		approvals: approvals,
		timezone:  timezone,
		logger:    logger,
		now:       time.Now,
	}
}

// Start opens a session in selecting_time, resolving the patient's provider
// reference against the directory. An empty directory is the only failure
// the patient sees; a bad or missing reference quietly falls back to the
// first provider.
func (m *Manager) Start(ctx context.Context, in StartInput) (*Session, error) {
	providers, err := m.providers.ListProviders(ctx)
	if err != nil {
		return nil, fmt.Errorf("scheduling: failed to list providers: %w", err)
	}
	provider, err := matchProvider(providers, in.ProviderRef)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		ID:           uuid.NewString(),
		PatientID:    in.PatientID,
		PatientPhone: in.PatientPhone,
		PatientName:  in.PatientName,
		ProviderID:   provider.ID,
	}
	if err := m.store.Put(ctx, sess); err != nil {
		return nil, err
	}

	m.logger.Info("scheduling session started",
		"session_id", sess.ID,
		"provider_id", provider.ID,
	)
	return sess, nil
}

// SubmitTime records the patient's preferred time, creates the meeting
// request, and completes the session. The session must exist, still be
// within its TTL, and still be in selecting_time.
func (m *Manager) SubmitTime(ctx context.Context, sessionID, rawTime, reason string) (*approval.Request, error) {
	sess, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Expired(m.now()) {
		return nil, ErrSessionExpired
	}
	if sess.Status != StatusSelectingTime {
		// A replayed selection against a session that already produced a
		// request must not create a second one.
		return nil, ErrSessionConsumed
	}

	loc, err := time.LoadLocation(m.timezone)
	if err != nil {
		loc = time.UTC
	}
	selected := ParsePreferredTime(rawTime, m.now(), loc)

	sess.SelectedTime = selected.Format(time.RFC3339)
	sess.Reason = reason
	if err := m.store.Transition(ctx, sess, StatusAwaitingApproval); err != nil {
		return nil, err
	}

	provider, err := m.providers.GetProvider(ctx, sess.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("scheduling: failed to load provider %s: %w", sess.ProviderID, err)
	}

	req, err := m.approvals.Create(ctx, &approval.Request{
		PatientPhone:  sess.PatientPhone,
		PatientName:   sess.PatientName,
		ProviderID:    provider.ID,
		ProviderName:  provider.Name,
		ProviderPhone: provider.PhoneE164,
		ProviderEmail: provider.Email,
		RequestedTime: sess.SelectedTime,
		Reason:        reason,
	})
	if err != nil {
		return nil, err
	}

	// The request now exists on its own; a failure here leaves the session
	// in awaiting_approval, which is harmless since it never gets reused.
	if err := m.store.Transition(ctx, sess, StatusCompleted); err != nil {
		m.logger.Warn("failed to complete scheduling session",
			"session_id", sess.ID,
			"error", err,
		)
	}

	m.logger.Info("meeting request submitted",
		"session_id", sess.ID,
		"request_id", req.ID,
		"requested_time", sess.SelectedTime,
	)
	return req, nil
}
