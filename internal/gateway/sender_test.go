package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wardlink/clinic-comms-platform/pkg/logging"
)

func TestSendPostsPayload(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewSender(server.URL+"/", 5*time.Second, logging.Default())
	if err := sender.Send(context.Background(), "+15551234567", "Your request was sent."); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if gotPath != "/send-whatsapp" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotBody["phoneE164"] != "+15551234567" || gotBody["message"] != "Your request was sent." {
		t.Fatalf("unexpected payload: %v", gotBody)
	}
}

func TestSendSurfacesGatewayError(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "downstream unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	sender := NewSender(server.URL, 5*time.Second, logging.Default())
	if err := sender.Send(context.Background(), "+15551234567", "hello"); err == nil {
		t.Fatal("expected error on non-2xx response")
	}
	if calls != 1 {
		t.Fatalf("expected exactly one attempt, got %d", calls)
	}
}

func TestSendValidatesInput(t *testing.T) {
	sender := NewSender("http://gateway.local", 5*time.Second, logging.Default())
	if err := sender.Send(context.Background(), "", "hello"); err == nil {
		t.Fatal("expected error without phone")
	}
	if err := sender.Send(context.Background(), "+15551234567", "  "); err == nil {
		t.Fatal("expected error without message")
	}
}
