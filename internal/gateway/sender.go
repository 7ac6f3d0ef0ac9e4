package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wardlink/clinic-comms-platform/pkg/logging"
)

var sendTracer = otel.Tracer("wardlink.internal.gateway.send")

// Sender posts outbound WhatsApp messages to the messaging gateway.
// Sends are fire-and-forget: non-2xx responses surface as an error to the
// caller, which logs and moves on. There is no retry.
type Sender struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewSender builds a sender for the messaging gateway.
func NewSender(baseURL string, timeout time.Duration, logger *logging.Logger) *Sender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Sender{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Send dispatches one message to the phone via the gateway.
func (s *Sender) Send(ctx context.Context, phoneE164, message string) error {
	if s.baseURL == "" {
		return errors.New("gateway: base url missing")
	}
	if phoneE164 == "" {
		return errors.New("gateway: phone required")
	}
	if strings.TrimSpace(message) == "" {
		return errors.New("gateway: message required")
	}

	ctx, span := sendTracer.Start(ctx, "gateway.send_whatsapp")
	defer span.End()
	span.SetAttributes(
		attribute.String("wardlink.to", phoneE164),
	)

	payload, err := json.Marshal(map[string]string{
		"phoneE164": phoneE164,
		"message":   message,
	})
	if err != nil {
		return fmt.Errorf("gateway: failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/send-whatsapp", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("gateway: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		s.logger.Error("gateway send failed", "error", err, "to", phoneE164)
		return fmt.Errorf("gateway: send failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("gateway: send failed: status %d, body: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		span.RecordError(err)
		s.logger.Error("gateway send rejected", "status", resp.StatusCode, "to", phoneE164)
		return err
	}

	s.logger.Info("gateway message sent", "to", phoneE164)
	return nil
}
