package calendar

import (
	"context"
	"time"
)

// Event is the created meeting as returned by the calendar backend.
type Event struct {
	ID       string
	MeetLink string
	Start    time.Time
	End      time.Time
}

// MeetingRequest describes the event to create.
type MeetingRequest struct {
	Title          string
	Description    string
	Start          time.Time
	End            time.Time
	AttendeeEmails []string
	Timezone       string
}

// Client creates meeting events. Implementations must either create the
// event fully or return an error; a half-created meeting is not allowed.
type Client interface {
	CreateMeeting(ctx context.Context, req MeetingRequest) (*Event, error)
}
