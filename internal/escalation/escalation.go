package escalation

import "errors"

// SubjectType identifies who triggered the escalation.
type SubjectType string

const (
	SubjectPatient SubjectType = "patient"
	SubjectVisitor SubjectType = "visitor"
)

// ErrNotFound indicates the requested escalation id does not exist.
var ErrNotFound = errors.New("escalation: not found")

// Media describes an attachment that could not be classified.
type Media struct {
	MimeType  string `dynamodbav:"mimeType" json:"mimeType"`
	URL       string `dynamodbav:"url" json:"url"`
	Filename  string `dynamodbav:"filename,omitempty" json:"filename,omitempty"`
	SizeBytes int64  `dynamodbav:"sizeBytes,omitempty" json:"sizeBytes,omitempty"`
}

// Escalation is a write-once record of a danger signal or unclassified
// media that needs provider attention.
type Escalation struct {
	ID          string      `dynamodbav:"id" json:"id"`
	PhoneE164   string      `dynamodbav:"phoneE164" json:"phoneE164"`
	Summary     string      `dynamodbav:"summary" json:"summary"`
	SubjectType SubjectType `dynamodbav:"subjectType" json:"subjectType"`
	SubjectID   string      `dynamodbav:"subjectId,omitempty" json:"subjectId,omitempty"`
	Media       *Media      `dynamodbav:"media,omitempty" json:"media,omitempty"`
	CreatedAt   string      `dynamodbav:"createdAt" json:"createdAt"`
}
