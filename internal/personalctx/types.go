package personalctx

import (
	"context"
	"time"
)

// Prescription is one active medication order.
type Prescription struct {
	Name         string
	Dosage       string
	Instructions string
}

// Reminder is an upcoming care reminder for the patient.
type Reminder struct {
	Label string
	DueAt time.Time
}

// Bundle is the compact per-patient context handed to the decision
// engine. An empty bundle is valid and means nothing is on file.
type Bundle struct {
	Name          string
	ANCSummary    string
	Prescriptions []Prescription
	Reminders     []Reminder
}

// Repository assembles a bundle from storage.
type Repository interface {
	FetchBundle(ctx context.Context, patientID string) (*Bundle, error)
}
