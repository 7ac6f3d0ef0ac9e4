package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/google/uuid"
	"github.com/wardlink/clinic-comms-platform/internal/conversation"
	"github.com/wardlink/clinic-comms-platform/internal/escalation"
	obsmetrics "github.com/wardlink/clinic-comms-platform/internal/observability/metrics"
	"github.com/wardlink/clinic-comms-platform/pkg/logging"
)

var webhookTracer = otel.Tracer("wardlink.internal.messaging.webhook")

type conversationPublisher interface {
	Enqueue(ctx context.Context, msg conversation.InboundMessage) error
}

// Handler handles inbound gateway webhook requests.
type Handler struct {
	publisher conversationPublisher
	logger    *logging.Logger
	metrics   *obsmetrics.PlatformMetrics
	now       func() time.Time
}

// NewHandler creates a new messaging webhook handler.
func NewHandler(publisher conversationPublisher, logger *logging.Logger) *Handler {
	if publisher == nil {
		panic("messaging: publisher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{publisher: publisher, logger: logger, now: time.Now}
}

// WithMetrics attaches platform metrics. Counters are nil-safe so the
// handler works without them.
func (h *Handler) WithMetrics(m *obsmetrics.PlatformMetrics) *Handler {
	h.metrics = m
	return h
}

// webhookPayload accepts the key variants different gateway versions emit
// for the same fields.
type webhookPayload struct {
	MessageID string `json:"messageId"`
	ID        string `json:"id"`

	ChatID  string `json:"chatId"`
	ChatID2 string `json:"chat_id"`
	From    string `json:"from"`
	Sender  string `json:"sender"`
	Phone   string `json:"phone"`

	Body    string `json:"body"`
	Text    string `json:"text"`
	Message string `json:"message"`
	Caption string `json:"caption"`

	Media      *webhookMedia `json:"media"`
	Attachment *webhookMedia `json:"attachment"`
}

type webhookMedia struct {
	Mimetype string `json:"mimetype"`
	MimeType string `json:"mimeType"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

func (p *webhookPayload) chatID() string {
	for _, v := range []string{p.ChatID, p.ChatID2, p.From, p.Sender, p.Phone} {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func (p *webhookPayload) text() string {
	for _, v := range []string{p.Body, p.Text, p.Message, p.Caption} {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func (p *webhookPayload) media() *escalation.Media {
	m := p.Media
	if m == nil {
		m = p.Attachment
	}
	if m == nil || strings.TrimSpace(m.URL) == "" {
		return nil
	}
	mime := m.Mimetype
	if mime == "" {
		mime = m.MimeType
	}
	return &escalation.Media{
		MimeType:  mime,
		URL:       m.URL,
		Filename:  m.Filename,
		SizeBytes: m.Size,
	}
}

// Webhook handles POST /webhooks/messaging requests from the WhatsApp
// gateway. Malformed chat ids are acked with 200 so the gateway never
// retries garbage.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := webhookTracer.Start(r.Context(), "messaging.webhook")
	defer span.End()

	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.logger.Warn("undecodable webhook body", "error", err)
		span.RecordError(err)
		h.ack(w, http.StatusBadRequest, "invalid_json")
		return
	}

	phone := NormalizeChatID(payload.chatID())
	if phone == "" {
		h.logger.Warn("webhook with invalid chat id", "chat_id", payload.chatID())
		h.ack(w, http.StatusOK, "ignored_invalid_chatId")
		return
	}
	span.SetAttributes(attribute.String("wardlink.messaging.phone", phone))

	messageID := strings.TrimSpace(payload.MessageID)
	if messageID == "" {
		messageID = strings.TrimSpace(payload.ID)
	}
	if messageID == "" {
		messageID = uuid.NewString()
	}

	msg := conversation.InboundMessage{
		MessageID:  messageID,
		Phone:      phone,
		Text:       payload.text(),
		Media:      payload.media(),
		ReceivedAt: h.now().UTC(),
	}
	if msg.Text == "" && msg.Media == nil {
		h.ack(w, http.StatusOK, "ignored_empty")
		return
	}

	if err := h.publisher.Enqueue(ctx, msg); err != nil {
		h.logger.Error("failed to enqueue conversation job", "error", err, "message_id", messageID)
		span.RecordError(err)
		h.ack(w, http.StatusInternalServerError, "queue_unavailable")
		return
	}

	h.logger.Info("webhook accepted", "message_id", messageID, "phone", phone)
	h.ack(w, http.StatusOK, "queued")
}

func (h *Handler) ack(w http.ResponseWriter, code int, status string) {
	h.metrics.ObserveInbound(status)
	writeJSON(w, code, map[string]string{"status": status})
}

// HealthCheck returns a simple health check response.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
