package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wardlink/clinic-comms-platform/internal/calendar"
	obsmetrics "github.com/wardlink/clinic-comms-platform/internal/observability/metrics"
	"github.com/wardlink/clinic-comms-platform/pkg/logging"
)

type requestStore interface {
	Put(ctx context.Context, req *Request) error
	Get(ctx context.Context, id string) (*Request, error)
	LatestPendingByProviderPhone(ctx context.Context, providerPhone string, now time.Time) (*Request, error)
	UpdateStatus(ctx context.Context, id string, expectedVersion int64, to Status, meetingLink, calendarEventID string) error
	UpdateDelivery(ctx context.Context, id string, delivery Delivery) error
}

type messageSender interface {
	Send(ctx context.Context, phoneE164, message string) error
}

// Outcome is the result of a resolved request.
type Outcome struct {
	Request     *Request
	Status      Status
	MeetingLink string
}

// Workflow owns the pending → terminal lifecycle of meeting requests.
type Workflow struct {
	store    requestStore
	calendar calendar.Client
	sender   messageSender
	timezone string
	logger   *logging.Logger
	metrics  *obsmetrics.PlatformMetrics
	now      func() time.Time
}

// NewWorkflow wires the approval workflow.
func NewWorkflow(store requestStore, cal calendar.Client, sender messageSender, timezone string, logger *logging.Logger) *Workflow {
	if store == nil {
		panic("approval: store cannot be nil")
	}
	if cal == nil {
		panic("approval: calendar client cannot be nil")
	}
	if sender == nil {
		panic("approval: message sender cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Workflow{
		store:    store,
		calendar: cal,
		sender:   sender,
		timezone: timezone,
		logger:   logger,
		now:      time.Now,
	}
}

// WithMetrics attaches platform metrics. All counters are nil-safe.
func (w *Workflow) WithMetrics(m *obsmetrics.PlatformMetrics) *Workflow {
	w.metrics = m
	return w
}

// LatestPending returns the provider's most recently created open request
// without resolving it. Used to answer "pending" status checks.
func (w *Workflow) LatestPending(ctx context.Context, providerPhone string) (*Request, error) {
	return w.store.LatestPendingByProviderPhone(ctx, providerPhone, w.now())
}

// Create persists the request, then best-effort notifies the provider and
// acknowledges the patient. Persistence failure is fatal; send failures
// are captured in the delivery record and never roll anything back.
func (w *Workflow) Create(ctx context.Context, req *Request) (*Request, error) {
	if req == nil {
		return nil, errors.New("approval: request cannot be nil")
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	if err := w.store.Put(ctx, req); err != nil {
		return nil, err
	}

	delivery := Delivery{}
	providerMsg := fmt.Sprintf(
		"Meeting request from %s (%s) for %s.%s Reply \"yes\" to approve or \"no\" to decline.",
		displayName(req.PatientName, "a patient"),
		req.PatientPhone,
		formatRequestedTime(req),
		reasonClause(req.Reason),
	)
	if err := w.sender.Send(ctx, req.ProviderPhone, providerMsg); err != nil {
		delivery.ProviderNotifyError = err.Error()
		w.logger.Error("provider approval prompt failed", "request_id", req.ID, "error", err)
	} else {
		delivery.ProviderNotified = true
	}

	patientMsg := fmt.Sprintf(
		"Your meeting request was sent to %s. We'll message you as soon as they respond.",
		displayName(req.ProviderName, "the provider"),
	)
	if err := w.sender.Send(ctx, req.PatientPhone, patientMsg); err != nil {
		delivery.PatientAckError = err.Error()
		w.logger.Error("patient acknowledgment failed", "request_id", req.ID, "error", err)
	} else {
		delivery.PatientAcked = true
	}

	req.Delivery = delivery
	if err := w.store.UpdateDelivery(ctx, req.ID, delivery); err != nil {
		w.logger.Warn("failed to record delivery state", "request_id", req.ID, "error", err)
	}
	w.metrics.ObserveTransition(string(StatusPending))
	return req, nil
}

// Resolve applies a provider decision to a specific request.
func (w *Workflow) Resolve(ctx context.Context, requestID string, decision Decision, providerPhone string) (*Outcome, error) {
	req, err := w.store.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return w.resolve(ctx, req, decision, providerPhone)
}

// ResolveLatest applies a bare yes/no against the most recently created
// pending non-expired request for the provider.
func (w *Workflow) ResolveLatest(ctx context.Context, providerPhone string, decision Decision) (*Outcome, error) {
	req, err := w.store.LatestPendingByProviderPhone(ctx, providerPhone, w.now())
	if err != nil {
		return nil, err
	}
	return w.resolve(ctx, req, decision, providerPhone)
}

func (w *Workflow) resolve(ctx context.Context, req *Request, decision Decision, providerPhone string) (*Outcome, error) {
	if req.ProviderPhone != providerPhone {
		return nil, ErrUnauthorized
	}
	if req.Status != StatusPending {
		return nil, ErrAlreadyResolved
	}
	if req.Expired(w.now()) {
		if err := w.store.UpdateStatus(ctx, req.ID, req.Version, StatusExpired, "", ""); err != nil && !errors.Is(err, ErrAlreadyResolved) {
			w.logger.Warn("failed to mark request expired", "request_id", req.ID, "error", err)
		}
		return nil, ErrExpired
	}

	switch decision {
	case DecisionDecline:
		return w.decline(ctx, req)
	case DecisionConfirm:
		return w.confirm(ctx, req)
	default:
		return nil, fmt.Errorf("approval: unknown decision %q", decision)
	}
}

func (w *Workflow) decline(ctx context.Context, req *Request) (*Outcome, error) {
	if err := w.store.UpdateStatus(ctx, req.ID, req.Version, StatusDeclined, "", ""); err != nil {
		return nil, err
	}
	req.Status = StatusDeclined
	req.Version++
	w.metrics.ObserveTransition(string(StatusDeclined))

	patientMsg := fmt.Sprintf(
		"%s can't make the requested time. Please send another time that works for you.",
		displayName(req.ProviderName, "The provider"),
	)
	if err := w.sender.Send(ctx, req.PatientPhone, patientMsg); err != nil {
		w.logger.Error("decline notification failed", "request_id", req.ID, "error", err)
	}
	return &Outcome{Request: req, Status: StatusDeclined}, nil
}

func (w *Workflow) confirm(ctx context.Context, req *Request) (*Outcome, error) {
	start, err := req.RequestedTimeAsTime()
	if err != nil {
		return nil, fmt.Errorf("approval: invalid requested time on %s: %w", req.ID, err)
	}

	// Calendar creation comes first: if it fails the request stays
	// pending, never confirmed without a link.
	event, err := w.calendar.CreateMeeting(ctx, calendar.MeetingRequest{
		Title:          fmt.Sprintf("Consultation: %s / %s", displayName(req.PatientName, req.PatientPhone), displayName(req.ProviderName, "provider")),
		Description:    req.Reason,
		Start:          start,
		End:            start.Add(MeetingDuration),
		AttendeeEmails: []string{req.ProviderEmail},
		Timezone:       w.timezone,
	})
	if err != nil {
		return nil, fmt.Errorf("approval: calendar event creation failed: %w", err)
	}

	if err := w.store.UpdateStatus(ctx, req.ID, req.Version, StatusConfirmed, event.MeetLink, event.ID); err != nil {
		return nil, err
	}
	req.Status = StatusConfirmed
	req.Version++
	req.MeetingLink = event.MeetLink
	req.CalendarEventID = event.ID
	w.metrics.ObserveTransition(string(StatusConfirmed))

	confirmation := fmt.Sprintf("Your meeting on %s is confirmed. Join link: %s", formatRequestedTime(req), event.MeetLink)
	if err := w.sender.Send(ctx, req.PatientPhone, confirmation); err != nil {
		w.logger.Error("patient confirmation failed", "request_id", req.ID, "error", err)
	}
	if err := w.sender.Send(ctx, req.ProviderPhone, confirmation); err != nil {
		w.logger.Error("provider confirmation failed", "request_id", req.ID, "error", err)
	}
	return &Outcome{Request: req, Status: StatusConfirmed, MeetingLink: event.MeetLink}, nil
}

func displayName(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

func reasonClause(reason string) string {
	if reason == "" {
		return ""
	}
	return fmt.Sprintf(" Reason: %s.", reason)
}

func formatRequestedTime(req *Request) string {
	if t, err := req.RequestedTimeAsTime(); err == nil {
		return t.Format("Mon Jan 2 at 3:04 PM")
	}
	return req.RequestedTime
}
