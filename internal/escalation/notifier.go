package escalation

import (
	"context"
	"fmt"

	"github.com/wardlink/clinic-comms-platform/internal/identity"
	"github.com/wardlink/clinic-comms-platform/internal/notify"
	"github.com/wardlink/clinic-comms-platform/pkg/logging"
)

type providerDirectory interface {
	ListProviders(ctx context.Context) ([]identity.Provider, error)
}

type messageSender interface {
	Send(ctx context.Context, phoneE164, message string) error
}

// Notifier fans an escalation out to every provider with a phone on
// file. Delivery is best-effort: a failure for one provider never blocks
// delivery to the rest, and the overall call never fails because of a
// send error.
type Notifier struct {
	providers providerDirectory
	sender    messageSender
	email     notify.EmailSender
	logger    *logging.Logger
}

// NewNotifier wires the fan-out over the provider directory. email may
// be nil when no email channel is configured.
func NewNotifier(providers providerDirectory, sender messageSender, email notify.EmailSender, logger *logging.Logger) *Notifier {
	if providers == nil {
		panic("escalation: provider directory cannot be nil")
	}
	if sender == nil {
		panic("escalation: message sender cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Notifier{
		providers: providers,
		sender:    sender,
		email:     email,
		logger:    logger,
	}
}

// Notify delivers the escalation to all providers.
func (n *Notifier) Notify(ctx context.Context, esc *Escalation) {
	providers, err := n.providers.ListProviders(ctx)
	if err != nil {
		n.logger.Error("escalation fan-out could not list providers", "error", err, "escalation_id", esc.ID)
		return
	}
	if len(providers) == 0 {
		n.logger.Warn("escalation fan-out found no providers", "escalation_id", esc.ID)
		return
	}

	body := formatAlert(esc)
	var failed int
	for _, provider := range providers {
		if provider.PhoneE164 == "" {
			continue
		}
		if err := n.sender.Send(ctx, provider.PhoneE164, body); err != nil {
			failed++
			n.logger.Error("escalation send failed",
				"provider_id", provider.ID,
				"escalation_id", esc.ID,
				"error", err,
			)
		}
		if n.email != nil && provider.Email != "" {
			msg := notify.EmailMessage{
				To:      provider.Email,
				ToName:  provider.Name,
				Subject: "Patient escalation requires attention",
				Body:    body,
			}
			if err := n.email.Send(ctx, msg); err != nil {
				n.logger.Warn("escalation email failed",
					"provider_id", provider.ID,
					"escalation_id", esc.ID,
					"error", err,
				)
			}
		}
	}

	n.logger.Info("escalation fan-out complete",
		"escalation_id", esc.ID,
		"providers", len(providers),
		"failed_sends", failed,
	)
}

func formatAlert(esc *Escalation) string {
	alert := fmt.Sprintf("ESCALATION from %s (%s): %s", esc.PhoneE164, esc.SubjectType, esc.Summary)
	if esc.Media != nil {
		alert += fmt.Sprintf("\nAttachment: %s (%s)", esc.Media.Filename, esc.Media.MimeType)
	}
	return alert
}
