package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wardlink/clinic-comms-platform/internal/approval"
	"github.com/wardlink/clinic-comms-platform/internal/conversation"
	"github.com/wardlink/clinic-comms-platform/internal/escalation"
	"github.com/wardlink/clinic-comms-platform/internal/http/handlers"
	"github.com/wardlink/clinic-comms-platform/internal/messaging"
	"github.com/wardlink/clinic-comms-platform/pkg/logging"
)

type noopPublisher struct {
	enqueued []conversation.InboundMessage
}

func (p *noopPublisher) Enqueue(_ context.Context, msg conversation.InboundMessage) error {
	p.enqueued = append(p.enqueued, msg)
	return nil
}

type fixedEscalations struct{}

func (fixedEscalations) List(context.Context, int32) ([]escalation.Escalation, error) {
	return []escalation.Escalation{{ID: "esc-1"}}, nil
}

type fixedRequests struct{}

func (fixedRequests) List(context.Context, int32) ([]approval.Request, error) {
	return []approval.Request{{ID: "req-1"}}, nil
}

func newTestRouter(t *testing.T) (http.Handler, *noopPublisher) {
	t.Helper()

	logger := logging.Default()
	publisher := &noopPublisher{}
	cfg := &Config{
		Logger:           logger,
		MessagingHandler: messaging.NewHandler(publisher, logger),
		DashboardHandler: handlers.NewDashboardHandler(fixedEscalations{}, fixedRequests{}, logger),
	}
	return New(cfg), publisher
}

func TestRouterHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterWebhookRoute(t *testing.T) {
	router, publisher := newTestRouter(t)

	body := strings.NewReader(`{"chatId":"2348090000001@c.us","body":"hello"}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/messaging", body))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if len(publisher.enqueued) != 1 {
		t.Fatalf("expected one enqueued message, got %d", len(publisher.enqueued))
	}
}

func TestRouterDashboardRoutes(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, path := range []string{"/api/escalations", "/api/meeting-requests"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", path, rr.Code)
		}
	}
}

func TestRouterUnknownRoute(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
