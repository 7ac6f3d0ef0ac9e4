package calendar

import (
	"context"
	"testing"
	"time"
)

func TestNewGoogleClientRequiresCredentials(t *testing.T) {
	ctx := context.Background()

	if _, err := NewGoogleClient(ctx, GoogleConfig{PrivateKey: "key"}, nil); err == nil {
		t.Fatal("expected error for missing service account email")
	}
	if _, err := NewGoogleClient(ctx, GoogleConfig{ServiceAccountEmail: "svc@clinic.iam.gserviceaccount.com"}, nil); err == nil {
		t.Fatal("expected error for missing private key")
	}
}

func TestCreateMeetingRejectsInvalidWindow(t *testing.T) {
	client := &GoogleClient{timezone: "Africa/Lagos"}
	start := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	if _, err := client.CreateMeeting(context.Background(), MeetingRequest{End: start.Add(30 * time.Minute)}); err == nil {
		t.Fatal("expected error for zero start")
	}
	if _, err := client.CreateMeeting(context.Background(), MeetingRequest{Start: start, End: start}); err == nil {
		t.Fatal("expected error when end does not follow start")
	}
}
