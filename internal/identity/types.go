package identity

import "errors"

// Scope classifies who is on the other end of an inbound message.
type Scope string

const (
	ScopePatient  Scope = "patient"
	ScopeProvider Scope = "provider"
	ScopeVisitor  Scope = "visitor"
)

var (
	// ErrInvalidIdentity is returned when the inbound phone cannot be
	// normalized to an E.164 number.
	ErrInvalidIdentity = errors.New("identity: invalid phone identity")
	// ErrNotFound is returned by repository lookups that match no row.
	ErrNotFound = errors.New("identity: not found")
)

// Identity is the resolved scope for one inbound message. It is derived
// fresh per message and never persisted.
type Identity struct {
	Scope       Scope
	SubjectID   string
	DisplayName string
	PhoneE164   string
}

// Patient is a registered patient with a linked contact channel.
type Patient struct {
	ID        string
	Name      string
	PhoneE164 string
}

// Provider is a clinician reachable for approvals and escalations.
type Provider struct {
	ID        string
	Name      string
	PhoneE164 string
	Email     string
}

// Visitor is an unregistered contact created on first inbound message.
type Visitor struct {
	ID        string
	Name      string
	PhoneE164 string
}
