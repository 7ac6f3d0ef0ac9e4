package scheduling

import (
	"errors"
	"time"
)

// SessionStatus is the lifecycle state of a scheduling session.
type SessionStatus string

const (
	StatusSelectingTime    SessionStatus = "selecting_time"
	StatusAwaitingApproval SessionStatus = "awaiting_approval"
	StatusCompleted        SessionStatus = "completed"
)

// SessionTTL bounds how long a patient has to pick a time.
const SessionTTL = 30 * time.Minute

var (
	// ErrSessionNotFound indicates the session id does not exist.
	ErrSessionNotFound = errors.New("scheduling: session not found")
	// ErrSessionExpired indicates the session lapsed before a time was picked.
	ErrSessionExpired = errors.New("scheduling: session expired")
	// ErrSessionConsumed indicates the session already produced a meeting
	// request and cannot accept another time selection.
	ErrSessionConsumed = errors.New("scheduling: session already consumed")
	// ErrNoProviderAvailable indicates the provider directory is empty.
	ErrNoProviderAvailable = errors.New("scheduling: no provider available")
)

// Session tracks one patient's in-flight meeting scheduling.
type Session struct {
	ID           string        `dynamodbav:"id" json:"id"`
	PatientID    string        `dynamodbav:"patientId" json:"patientId"`
	PatientPhone string        `dynamodbav:"patientPhone" json:"patientPhone"`
	PatientName  string        `dynamodbav:"patientName,omitempty" json:"patientName,omitempty"`
	ProviderID   string        `dynamodbav:"providerId" json:"providerId"`
	Status       SessionStatus `dynamodbav:"status" json:"status"`
	SelectedTime string        `dynamodbav:"selectedTime,omitempty" json:"selectedTime,omitempty"`
	Reason       string        `dynamodbav:"reason,omitempty" json:"reason,omitempty"`
	CreatedAt    string        `dynamodbav:"createdAt" json:"createdAt"`
	ExpiresAt    int64         `dynamodbav:"expiresAt" json:"expiresAt"`
	Version      int64         `dynamodbav:"version" json:"version"`
}

// Expired reports whether the session lapsed at the given instant.
func (s *Session) Expired(now time.Time) bool {
	return now.Unix() > s.ExpiresAt
}
