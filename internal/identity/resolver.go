package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/wardlink/clinic-comms-platform/pkg/logging"
)

// Resolver maps an inbound phone identity to a scope. Patients win over
// providers, and anything unrecognized becomes a visitor.
type Resolver struct {
	repo   Repository
	logger *logging.Logger
}

// NewResolver wires a resolver over the contact repository.
func NewResolver(repo Repository, logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{repo: repo, logger: logger}
}

// Resolve derives the identity for one inbound message. It never caches:
// scope is recomputed per message so a visitor who registers mid
// conversation is picked up immediately.
func (r *Resolver) Resolve(ctx context.Context, rawPhone string) (Identity, error) {
	phone := NormalizeE164(rawPhone)
	if phone == "" {
		return Identity{}, ErrInvalidIdentity
	}

	patient, err := r.repo.FindPatientByPhone(ctx, phone)
	if err == nil {
		return Identity{Scope: ScopePatient, SubjectID: patient.ID, DisplayName: patient.Name, PhoneE164: phone}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Identity{}, fmt.Errorf("identity: patient lookup failed: %w", err)
	}

	provider, err := r.repo.FindProviderByPhone(ctx, phone)
	if err == nil {
		return Identity{Scope: ScopeProvider, SubjectID: provider.ID, DisplayName: provider.Name, PhoneE164: phone}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Identity{}, fmt.Errorf("identity: provider lookup failed: %w", err)
	}

	visitor, err := r.repo.FindOrCreateVisitor(ctx, phone)
	if err != nil {
		return Identity{}, fmt.Errorf("identity: visitor find-or-create failed: %w", err)
	}
	if visitor.Name == "" {
		r.logger.Debug("resolved first-contact visitor", "phone", phone)
	}
	return Identity{Scope: ScopeVisitor, SubjectID: visitor.ID, DisplayName: visitor.Name, PhoneE164: phone}, nil
}
