package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/wardlink/clinic-comms-platform/internal/approval"
	"github.com/wardlink/clinic-comms-platform/internal/identity"
	"github.com/wardlink/clinic-comms-platform/pkg/logging"
)

type memorySessionStore struct {
	sessions map[string]*Session
	putErr   error
}

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{sessions: make(map[string]*Session)}
}

func (s *memorySessionStore) Put(_ context.Context, sess *Session) error {
	if s.putErr != nil {
		return s.putErr
	}
	now := time.Now().UTC()
	sess.Status = StatusSelectingTime
	if sess.CreatedAt == "" {
		sess.CreatedAt = now.Format("2006-01-02T15:04:05.000000000Z07:00")
	}
	if sess.ExpiresAt == 0 {
		sess.ExpiresAt = now.Add(SessionTTL).Unix()
	}
	if sess.Version == 0 {
		sess.Version = 1
	}
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

func (s *memorySessionStore) Get(_ context.Context, id string) (*Session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *memorySessionStore) Transition(_ context.Context, sess *Session, status SessionStatus) error {
	stored, ok := s.sessions[sess.ID]
	if !ok {
		return ErrSessionNotFound
	}
	if stored.Version != sess.Version {
		return errors.New("version conflict")
	}
	stored.Status = status
	stored.SelectedTime = sess.SelectedTime
	stored.Reason = sess.Reason
	stored.Version++
	sess.Status = status
	sess.Version++
	return nil
}

type stubDirectory struct {
	providers []identity.Provider
	listErr   error
}

func (d *stubDirectory) ListProviders(_ context.Context) ([]identity.Provider, error) {
	if d.listErr != nil {
		return nil, d.listErr
	}
	return d.providers, nil
}

func (d *stubDirectory) GetProvider(_ context.Context, id string) (*identity.Provider, error) {
	for _, p := range d.providers {
		if p.ID == id {
			cp := p
			return &cp, nil
		}
	}
	return nil, identity.ErrNotFound
}

type recordingApprovals struct {
	created []*approval.Request
	err     error
}

func (a *recordingApprovals) Create(_ context.Context, req *approval.Request) (*approval.Request, error) {
	if a.err != nil {
		return nil, a.err
	}
	cp := *req
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	cp.Status = approval.StatusPending
	a.created = append(a.created, &cp)
	return &cp, nil
}

func testProviders() []identity.Provider {
	return []identity.Provider{
		{ID: "prov-1", Name: "Dr. Amina Bello", PhoneE164: "+2348030000001", Email: "amina@clinic.test"},
		{ID: "prov-2", Name: "Dr. Chinedu Okafor", PhoneE164: "+2348030000002", Email: "chinedu@clinic.test"},
	}
}

func newTestManager(store sessionStore, dir providerDirectory, approvals approvalStarter) *Manager {
	return NewManager(store, dir, approvals, "Africa/Lagos", logging.Default())
}

func TestStartMatchesNamedProvider(t *testing.T) {
	store := newMemorySessionStore()
	dir := &stubDirectory{providers: testProviders()}
	mgr := newTestManager(store, dir, &recordingApprovals{})

	sess, err := mgr.Start(context.Background(), StartInput{
		PatientID:    "pat-1",
		PatientPhone: "+2348090000001",
		PatientName:  "Ngozi",
		ProviderRef:  "dr okafor",
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if sess.ProviderID != "prov-2" {
		t.Fatalf("expected prov-2, got %s", sess.ProviderID)
	}
	if sess.Status != StatusSelectingTime {
		t.Fatalf("expected selecting_time, got %s", sess.Status)
	}
	if sess.ExpiresAt <= time.Now().Unix() {
		t.Fatal("expected a future expiry")
	}
}

func TestStartFallsBackToFirstProvider(t *testing.T) {
	store := newMemorySessionStore()
	dir := &stubDirectory{providers: testProviders()}
	mgr := newTestManager(store, dir, &recordingApprovals{})

	for _, ref := range []string{"", "dr nobody", "Dr."} {
		sess, err := mgr.Start(context.Background(), StartInput{
			PatientID:    "pat-1",
			PatientPhone: "+2348090000001",
			ProviderRef:  ref,
		})
		if err != nil {
			t.Fatalf("Start(%q) failed: %v", ref, err)
		}
		if sess.ProviderID != "prov-1" {
			t.Fatalf("Start(%q): expected prov-1 fallback, got %s", ref, sess.ProviderID)
		}
	}
}

func TestStartEmptyDirectory(t *testing.T) {
	store := newMemorySessionStore()
	mgr := newTestManager(store, &stubDirectory{}, &recordingApprovals{})

	_, err := mgr.Start(context.Background(), StartInput{PatientID: "pat-1"})
	if !errors.Is(err, ErrNoProviderAvailable) {
		t.Fatalf("expected ErrNoProviderAvailable, got %v", err)
	}
}

func TestSubmitTimeCreatesRequestAndCompletes(t *testing.T) {
	store := newMemorySessionStore()
	dir := &stubDirectory{providers: testProviders()}
	approvals := &recordingApprovals{}
	mgr := newTestManager(store, dir, approvals)

	sess, err := mgr.Start(context.Background(), StartInput{
		PatientID:    "pat-1",
		PatientPhone: "+2348090000001",
		PatientName:  "Ngozi",
		ProviderRef:  "amina",
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	req, err := mgr.SubmitTime(context.Background(), sess.ID, "tomorrow at 2 PM", "follow-up on results")
	if err != nil {
		t.Fatalf("SubmitTime failed: %v", err)
	}
	if req.ID == "" {
		t.Fatal("expected request id")
	}
	if req.ProviderPhone != "+2348030000001" {
		t.Fatalf("unexpected provider phone %s", req.ProviderPhone)
	}
	if req.Reason != "follow-up on results" {
		t.Fatalf("unexpected reason %q", req.Reason)
	}

	when, err := time.Parse(time.RFC3339, req.RequestedTime)
	if err != nil {
		t.Fatalf("requested time not RFC3339: %v", err)
	}
	if when.Hour() != 14 {
		t.Fatalf("expected 14:00 local, got %v", when)
	}

	stored, err := store.Get(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", stored.Status)
	}
	if stored.SelectedTime != req.RequestedTime {
		t.Fatalf("session time %q != request time %q", stored.SelectedTime, req.RequestedTime)
	}
}

func TestSubmitTimeUnknownSession(t *testing.T) {
	mgr := newTestManager(newMemorySessionStore(), &stubDirectory{providers: testProviders()}, &recordingApprovals{})

	_, err := mgr.SubmitTime(context.Background(), "missing", "tomorrow", "")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSubmitTimeExpiredSession(t *testing.T) {
	store := newMemorySessionStore()
	dir := &stubDirectory{providers: testProviders()}
	approvals := &recordingApprovals{}
	mgr := newTestManager(store, dir, approvals)

	sess, err := mgr.Start(context.Background(), StartInput{PatientID: "pat-1", PatientPhone: "+2348090000001"})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	store.sessions[sess.ID].ExpiresAt = time.Now().Add(-time.Minute).Unix()

	_, err = mgr.SubmitTime(context.Background(), sess.ID, "tomorrow", "")
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if len(approvals.created) != 0 {
		t.Fatal("expired session must not create a request")
	}
}

func TestSubmitTimeReplayedAfterCompletion(t *testing.T) {
	store := newMemorySessionStore()
	dir := &stubDirectory{providers: testProviders()}
	approvals := &recordingApprovals{}
	mgr := newTestManager(store, dir, approvals)

	sess, err := mgr.Start(context.Background(), StartInput{PatientID: "pat-1", PatientPhone: "+2348090000001"})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := mgr.SubmitTime(context.Background(), sess.ID, "tomorrow at 2 PM", ""); err != nil {
		t.Fatalf("SubmitTime failed: %v", err)
	}

	_, err = mgr.SubmitTime(context.Background(), sess.ID, "tomorrow at 4 PM", "")
	if !errors.Is(err, ErrSessionConsumed) {
		t.Fatalf("expected ErrSessionConsumed, got %v", err)
	}
	if len(approvals.created) != 1 {
		t.Fatalf("replay must not create a second request, got %d", len(approvals.created))
	}
}

func TestSubmitTimeApprovalFailureLeavesSessionAwaiting(t *testing.T) {
	store := newMemorySessionStore()
	dir := &stubDirectory{providers: testProviders()}
	approvals := &recordingApprovals{err: errors.New("dynamo down")}
	mgr := newTestManager(store, dir, approvals)

	sess, err := mgr.Start(context.Background(), StartInput{PatientID: "pat-1", PatientPhone: "+2348090000001"})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	_, err = mgr.SubmitTime(context.Background(), sess.ID, "tomorrow", "")
	if err == nil {
		t.Fatal("expected error from approval workflow")
	}

	stored, err := store.Get(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.Status != StatusAwaitingApproval {
		t.Fatalf("expected awaiting_approval, got %s", stored.Status)
	}
}
