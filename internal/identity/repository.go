package identity

import "context"

// Repository looks up contact channels and manages visitor records. It
// also serves as the provider directory for scheduling and escalation.
type Repository interface {
	FindPatientByPhone(ctx context.Context, phoneE164 string) (*Patient, error)
	FindProviderByPhone(ctx context.Context, phoneE164 string) (*Provider, error)
	FindOrCreateVisitor(ctx context.Context, phoneE164 string) (*Visitor, error)
	UpdateVisitorName(ctx context.Context, id string, name string) error
	GetProvider(ctx context.Context, id string) (*Provider, error)
	ListProviders(ctx context.Context) ([]Provider, error)
}
