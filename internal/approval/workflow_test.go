package approval

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/wardlink/clinic-comms-platform/internal/calendar"
	"github.com/wardlink/clinic-comms-platform/pkg/logging"
)

type memoryRequestStore struct {
	requests map[string]*Request
	putErr   error
}

func newMemoryRequestStore() *memoryRequestStore {
	return &memoryRequestStore{requests: make(map[string]*Request)}
}

func (m *memoryRequestStore) Put(ctx context.Context, req *Request) error {
	if m.putErr != nil {
		return m.putErr
	}
	now := time.Now().UTC()
	req.Status = StatusPending
	if req.CreatedAt == "" {
		req.CreatedAt = now.Format(time.RFC3339Nano)
	}
	if req.ExpiresAt == 0 {
		req.ExpiresAt = now.Add(RequestTTL).Unix()
	}
	if req.Version == 0 {
		req.Version = 1
	}
	cp := *req
	m.requests[req.ID] = &cp
	return nil
}

func (m *memoryRequestStore) Get(ctx context.Context, id string) (*Request, error) {
	req, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *req
	return &cp, nil
}

func (m *memoryRequestStore) LatestPendingByProviderPhone(ctx context.Context, providerPhone string, now time.Time) (*Request, error) {
	var pending []*Request
	for _, req := range m.requests {
		if req.ProviderPhone == providerPhone && req.Status == StatusPending && !req.Expired(now) {
			pending = append(pending, req)
		}
	}
	if len(pending) == 0 {
		return nil, ErrNothingPending
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt > pending[j].CreatedAt })
	cp := *pending[0]
	return &cp, nil
}

func (m *memoryRequestStore) UpdateStatus(ctx context.Context, id string, expectedVersion int64, to Status, meetingLink, calendarEventID string) error {
	req, ok := m.requests[id]
	if !ok {
		return ErrNotFound
	}
	if req.Status != StatusPending || req.Version != expectedVersion {
		return ErrAlreadyResolved
	}
	req.Status = to
	req.Version++
	req.MeetingLink = meetingLink
	req.CalendarEventID = calendarEventID
	return nil
}

func (m *memoryRequestStore) UpdateDelivery(ctx context.Context, id string, delivery Delivery) error {
	req, ok := m.requests[id]
	if !ok {
		return ErrNotFound
	}
	req.Delivery = delivery
	return nil
}

func (m *memoryRequestStore) ListExpiredPending(ctx context.Context, now time.Time) ([]Request, error) {
	var out []Request
	for _, req := range m.requests {
		if req.Status == StatusPending && req.Expired(now) {
			out = append(out, *req)
		}
	}
	return out, nil
}

type recordingSender struct {
	failFor map[string]error
	sent    map[string][]string
}

func newRecordingSender() *recordingSender {
	return &recordingSender{sent: make(map[string][]string)}
}

func (s *recordingSender) Send(ctx context.Context, phoneE164, message string) error {
	if err, ok := s.failFor[phoneE164]; ok {
		return err
	}
	s.sent[phoneE164] = append(s.sent[phoneE164], message)
	return nil
}

type stubCalendar struct {
	event *calendar.Event
	err   error
	calls int
}

func (c *stubCalendar) CreateMeeting(ctx context.Context, req calendar.MeetingRequest) (*calendar.Event, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	if c.event != nil {
		return c.event, nil
	}
	return &calendar.Event{ID: "evt-1", MeetLink: "https://meet.example/abc", Start: req.Start, End: req.End}, nil
}

func pendingRequest(id, providerPhone string, requested time.Time) *Request {
	return &Request{
		ID:            id,
		PatientPhone:  "+15551234567",
		PatientName:   "Amina",
		ProviderID:    "prov-1",
		ProviderName:  "Dr. Okafor",
		ProviderPhone: providerPhone,
		ProviderEmail: "okafor@clinic.example",
		RequestedTime: requested.Format(time.RFC3339),
	}
}

func newTestWorkflow(store requestStore, cal calendar.Client, sender messageSender) *Workflow {
	return NewWorkflow(store, cal, sender, "Africa/Lagos", logging.Default())
}

func TestCreatePersistsDespiteSendFailures(t *testing.T) {
	store := newMemoryRequestStore()
	sender := newRecordingSender()
	sender.failFor = map[string]error{"+15550000001": errors.New("gateway down")}
	wf := newTestWorkflow(store, &stubCalendar{}, sender)

	req, err := wf.Create(context.Background(), pendingRequest("", "+15550000001", time.Now().Add(24*time.Hour)))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	stored, err := store.Get(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("request not persisted: %v", err)
	}
	if stored.Status != StatusPending {
		t.Fatalf("expected pending status, got %s", stored.Status)
	}
	if stored.Delivery.ProviderNotified {
		t.Fatal("expected provider notify failure recorded")
	}
	if stored.Delivery.ProviderNotifyError == "" {
		t.Fatal("expected provider notify error captured")
	}
	if !stored.Delivery.PatientAcked {
		t.Fatal("expected patient ack to succeed independently")
	}
}

func TestResolveConfirmCreatesEventAndNotifiesBoth(t *testing.T) {
	store := newMemoryRequestStore()
	sender := newRecordingSender()
	cal := &stubCalendar{}
	wf := newTestWorkflow(store, cal, sender)

	req := pendingRequest("req-1", "+15550000001", time.Now().Add(24*time.Hour))
	if err := store.Put(context.Background(), req); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	outcome, err := wf.Resolve(context.Background(), "req-1", DecisionConfirm, "+15550000001")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if outcome.Status != StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", outcome.Status)
	}
	if outcome.MeetingLink != "https://meet.example/abc" {
		t.Fatalf("unexpected link %q", outcome.MeetingLink)
	}
	if cal.calls != 1 {
		t.Fatalf("expected one calendar event, got %d", cal.calls)
	}

	patientMsgs := sender.sent["+15551234567"]
	providerMsgs := sender.sent["+15550000001"]
	if len(patientMsgs) != 1 || len(providerMsgs) != 1 {
		t.Fatalf("expected both parties notified, got %d/%d", len(patientMsgs), len(providerMsgs))
	}
	if patientMsgs[0] != providerMsgs[0] {
		t.Fatal("expected both parties to receive the same confirmation")
	}
}

func TestResolveConfirmTwiceReturnsAlreadyResolved(t *testing.T) {
	store := newMemoryRequestStore()
	cal := &stubCalendar{}
	wf := newTestWorkflow(store, cal, newRecordingSender())

	req := pendingRequest("req-1", "+15550000001", time.Now().Add(24*time.Hour))
	_ = store.Put(context.Background(), req)

	if _, err := wf.Resolve(context.Background(), "req-1", DecisionConfirm, "+15550000001"); err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}
	if _, err := wf.Resolve(context.Background(), "req-1", DecisionConfirm, "+15550000001"); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}
	if cal.calls != 1 {
		t.Fatalf("expected no second calendar event, got %d calls", cal.calls)
	}
}

func TestResolveCalendarFailureAbortsConfirm(t *testing.T) {
	store := newMemoryRequestStore()
	cal := &stubCalendar{err: errors.New("calendar down")}
	wf := newTestWorkflow(store, cal, newRecordingSender())

	req := pendingRequest("req-1", "+15550000001", time.Now().Add(24*time.Hour))
	_ = store.Put(context.Background(), req)

	if _, err := wf.Resolve(context.Background(), "req-1", DecisionConfirm, "+15550000001"); err == nil {
		t.Fatal("expected calendar failure to propagate")
	}
	stored, _ := store.Get(context.Background(), "req-1")
	if stored.Status != StatusPending {
		t.Fatalf("expected request to stay pending, got %s", stored.Status)
	}
}

func TestResolveUnauthorizedPhone(t *testing.T) {
	store := newMemoryRequestStore()
	wf := newTestWorkflow(store, &stubCalendar{}, newRecordingSender())

	req := pendingRequest("req-1", "+15550000001", time.Now().Add(24*time.Hour))
	_ = store.Put(context.Background(), req)

	if _, err := wf.Resolve(context.Background(), "req-1", DecisionConfirm, "+15559999999"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestResolveExpiredTransitionsAndFails(t *testing.T) {
	store := newMemoryRequestStore()
	wf := newTestWorkflow(store, &stubCalendar{}, newRecordingSender())

	req := pendingRequest("req-1", "+15550000001", time.Now().Add(24*time.Hour))
	req.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	_ = store.Put(context.Background(), req)
	store.requests["req-1"].ExpiresAt = time.Now().Add(-time.Minute).Unix()

	if _, err := wf.Resolve(context.Background(), "req-1", DecisionConfirm, "+15550000001"); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	stored, _ := store.Get(context.Background(), "req-1")
	if stored.Status != StatusExpired {
		t.Fatalf("expected lazy expiry transition, got %s", stored.Status)
	}
}

func TestResolveDeclineNotifiesPatient(t *testing.T) {
	store := newMemoryRequestStore()
	sender := newRecordingSender()
	wf := newTestWorkflow(store, &stubCalendar{}, sender)

	req := pendingRequest("req-1", "+15550000001", time.Now().Add(24*time.Hour))
	_ = store.Put(context.Background(), req)

	outcome, err := wf.Resolve(context.Background(), "req-1", DecisionDecline, "+15550000001")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if outcome.Status != StatusDeclined || outcome.MeetingLink != "" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if len(sender.sent["+15551234567"]) != 1 {
		t.Fatal("expected patient notified of decline")
	}
}

func TestResolveLatestPicksMostRecentPending(t *testing.T) {
	store := newMemoryRequestStore()
	wf := newTestWorkflow(store, &stubCalendar{}, newRecordingSender())

	older := pendingRequest("req-old", "+15550000001", time.Now().Add(24*time.Hour))
	older.CreatedAt = time.Now().Add(-time.Hour).UTC().Format(time.RFC3339Nano)
	_ = store.Put(context.Background(), older)

	newer := pendingRequest("req-new", "+15550000001", time.Now().Add(48*time.Hour))
	newer.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	_ = store.Put(context.Background(), newer)

	outcome, err := wf.ResolveLatest(context.Background(), "+15550000001", DecisionConfirm)
	if err != nil {
		t.Fatalf("resolve latest failed: %v", err)
	}
	if outcome.Request.ID != "req-new" {
		t.Fatalf("expected most recent request resolved, got %s", outcome.Request.ID)
	}

	stillPending, _ := store.Get(context.Background(), "req-old")
	if stillPending.Status != StatusPending {
		t.Fatalf("expected older request untouched, got %s", stillPending.Status)
	}
}

func TestResolveLatestNothingPending(t *testing.T) {
	wf := newTestWorkflow(newMemoryRequestStore(), &stubCalendar{}, newRecordingSender())
	if _, err := wf.ResolveLatest(context.Background(), "+15550000001", DecisionConfirm); !errors.Is(err, ErrNothingPending) {
		t.Fatalf("expected ErrNothingPending, got %v", err)
	}
}

func TestSweeperExpiresLapsedPending(t *testing.T) {
	store := newMemoryRequestStore()
	req := pendingRequest("req-1", "+15550000001", time.Now().Add(24*time.Hour))
	_ = store.Put(context.Background(), req)
	store.requests["req-1"].ExpiresAt = time.Now().Add(-time.Minute).Unix()

	fresh := pendingRequest("req-2", "+15550000001", time.Now().Add(24*time.Hour))
	_ = store.Put(context.Background(), fresh)

	sweeper := NewSweeper(store, time.Minute, logging.Default())
	sweeper.sweep(context.Background())

	expired, _ := store.Get(context.Background(), "req-1")
	if expired.Status != StatusExpired {
		t.Fatalf("expected swept request expired, got %s", expired.Status)
	}
	kept, _ := store.Get(context.Background(), "req-2")
	if kept.Status != StatusPending {
		t.Fatalf("expected fresh request untouched, got %s", kept.Status)
	}
}
