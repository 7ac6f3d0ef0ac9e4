package approval

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a meeting request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusDeclined  Status = "declined"
	StatusExpired   Status = "expired"
)

// Decision is a provider's answer to a pending request.
type Decision string

const (
	DecisionConfirm Decision = "confirm"
	DecisionDecline Decision = "decline"
)

const (
	// RequestTTL bounds how long a provider has to answer.
	RequestTTL = 2 * time.Hour
	// MeetingDuration is the length of created calendar events.
	MeetingDuration = 30 * time.Minute
)

var (
	// ErrNotFound indicates no matching request exists.
	ErrNotFound = errors.New("approval: request not found")
	// ErrUnauthorized indicates the phone does not own the request.
	ErrUnauthorized = errors.New("approval: provider phone does not match request")
	// ErrAlreadyResolved indicates the request left pending earlier.
	ErrAlreadyResolved = errors.New("approval: request already resolved")
	// ErrExpired indicates the request lapsed before resolution.
	ErrExpired = errors.New("approval: request expired")
	// ErrNothingPending indicates a bare yes/no had no target.
	ErrNothingPending = errors.New("approval: no pending request for provider")
)

// Delivery tracks whether the create-time notifications went out.
type Delivery struct {
	ProviderNotified    bool   `dynamodbav:"providerNotified" json:"providerNotified"`
	PatientAcked        bool   `dynamodbav:"patientAcked" json:"patientAcked"`
	ProviderNotifyError string `dynamodbav:"providerNotifyError,omitempty" json:"providerNotifyError,omitempty"`
	PatientAckError     string `dynamodbav:"patientAckError,omitempty" json:"patientAckError,omitempty"`
}

// Request is the durable workflow unit for one meeting request. Records
// are never deleted; terminal states stay as audit trail.
type Request struct {
	ID              string   `dynamodbav:"id" json:"id"`
	PatientPhone    string   `dynamodbav:"patientPhone" json:"patientPhone"`
	PatientName     string   `dynamodbav:"patientName,omitempty" json:"patientName,omitempty"`
	ProviderID      string   `dynamodbav:"providerId" json:"providerId"`
	ProviderName    string   `dynamodbav:"providerName,omitempty" json:"providerName,omitempty"`
	ProviderPhone   string   `dynamodbav:"providerPhone" json:"providerPhone"`
	ProviderEmail   string   `dynamodbav:"providerEmail,omitempty" json:"providerEmail,omitempty"`
	RequestedTime   string   `dynamodbav:"requestedTime" json:"requestedTime"`
	Reason          string   `dynamodbav:"reason,omitempty" json:"reason,omitempty"`
	Status          Status   `dynamodbav:"status" json:"status"`
	CreatedAt       string   `dynamodbav:"createdAt" json:"createdAt"`
	ExpiresAt       int64    `dynamodbav:"expiresAt" json:"expiresAt"`
	MeetingLink     string   `dynamodbav:"meetingLink,omitempty" json:"meetingLink,omitempty"`
	CalendarEventID string   `dynamodbav:"calendarEventId,omitempty" json:"calendarEventId,omitempty"`
	Delivery        Delivery `dynamodbav:"delivery" json:"delivery"`
	Version         int64    `dynamodbav:"version" json:"version"`
}

// Expired reports whether the request lapsed at the given instant.
func (r *Request) Expired(now time.Time) bool {
	return now.Unix() > r.ExpiresAt
}

// RequestedTimeAsTime parses the stored RFC3339 requested time.
func (r *Request) RequestedTimeAsTime() (time.Time, error) {
	return time.Parse(time.RFC3339, r.RequestedTime)
}
