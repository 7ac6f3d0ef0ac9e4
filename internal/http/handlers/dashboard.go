package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/wardlink/clinic-comms-platform/internal/approval"
	"github.com/wardlink/clinic-comms-platform/internal/escalation"
	"github.com/wardlink/clinic-comms-platform/pkg/logging"
)

const defaultListLimit = 50

type escalationLister interface {
	List(ctx context.Context, limit int32) ([]escalation.Escalation, error)
}

type meetingRequestLister interface {
	List(ctx context.Context, limit int32) ([]approval.Request, error)
}

// DashboardHandler serves the read-only projections the clinic dashboard
// polls: recent escalations and meeting requests.
type DashboardHandler struct {
	escalations escalationLister
	requests    meetingRequestLister
	logger      *logging.Logger
}

// NewDashboardHandler creates a dashboard read-side handler.
func NewDashboardHandler(escalations escalationLister, requests meetingRequestLister, logger *logging.Logger) *DashboardHandler {
	if escalations == nil {
		panic("handlers: escalation lister cannot be nil")
	}
	if requests == nil {
		panic("handlers: meeting request lister cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DashboardHandler{
		escalations: escalations,
		requests:    requests,
		logger:      logger,
	}
}

// ListEscalations handles GET /api/escalations.
func (h *DashboardHandler) ListEscalations(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r)
	records, err := h.escalations.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list escalations", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list escalations")
		return
	}
	writeOK(w, map[string]any{"escalations": records, "count": len(records)})
}

// ListMeetingRequests handles GET /api/meeting-requests.
func (h *DashboardHandler) ListMeetingRequests(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r)
	records, err := h.requests.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list meeting requests", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list meeting requests")
		return
	}
	writeOK(w, map[string]any{"meetingRequests": records, "count": len(records)})
}

func parseLimit(r *http.Request) int32 {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > 200 {
		return defaultListLimit
	}
	return int32(n)
}

func writeOK(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
