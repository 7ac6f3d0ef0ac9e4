package identity

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository is an in-memory Repository for tests and local dev.
type MemoryRepository struct {
	mu        sync.RWMutex
	patients  map[string]Patient  // keyed by phone
	providers map[string]Provider // keyed by phone
	visitors  map[string]Visitor  // keyed by phone
}

// NewMemoryRepository builds an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patients:  make(map[string]Patient),
		providers: make(map[string]Provider),
		visitors:  make(map[string]Visitor),
	}
}

// SeedPatient registers a patient contact channel.
func (r *MemoryRepository) SeedPatient(p Patient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients[p.PhoneE164] = p
}

// SeedProvider registers a provider contact channel.
func (r *MemoryRepository) SeedProvider(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.PhoneE164] = p
}

// FindPatientByPhone implements Repository.
func (r *MemoryRepository) FindPatientByPhone(ctx context.Context, phoneE164 string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.patients[phoneE164]; ok {
		cp := p
		return &cp, nil
	}
	return nil, ErrNotFound
}

// FindProviderByPhone implements Repository.
func (r *MemoryRepository) FindProviderByPhone(ctx context.Context, phoneE164 string) (*Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.providers[phoneE164]; ok {
		cp := p
		return &cp, nil
	}
	return nil, ErrNotFound
}

// FindOrCreateVisitor implements Repository.
func (r *MemoryRepository) FindOrCreateVisitor(ctx context.Context, phoneE164 string) (*Visitor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.visitors[phoneE164]; ok {
		cp := v
		return &cp, nil
	}
	v := Visitor{ID: uuid.NewString(), PhoneE164: phoneE164}
	r.visitors[phoneE164] = v
	return &v, nil
}

// UpdateVisitorName implements Repository.
func (r *MemoryRepository) UpdateVisitorName(ctx context.Context, id string, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for phone, v := range r.visitors {
		if v.ID == id {
			v.Name = name
			r.visitors[phone] = v
			return nil
		}
	}
	return ErrNotFound
}

// GetProvider implements Repository.
func (r *MemoryRepository) GetProvider(ctx context.Context, id string) (*Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.providers {
		if p.ID == id {
			cp := p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// ListProviders implements Repository.
func (r *MemoryRepository) ListProviders(ctx context.Context) ([]Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	providers := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		providers = append(providers, p)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i].Name < providers[j].Name })
	return providers, nil
}
