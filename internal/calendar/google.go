package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/wardlink/clinic-comms-platform/pkg/logging"
)

// GoogleConfig holds service-account credentials for the calendar API.
type GoogleConfig struct {
	ServiceAccountEmail string
	PrivateKey          string
	CalendarID          string
	Timezone            string
}

// GoogleClient implements Client against the Google Calendar API using a
// service-account JWT. The oauth2 transport caches the bearer token and
// refreshes it near expiry.
type GoogleClient struct {
	service    *gcal.Service
	calendarID string
	timezone   string
	logger     *logging.Logger
}

// NewGoogleClient exchanges the service-account key for an API client.
func NewGoogleClient(ctx context.Context, cfg GoogleConfig, logger *logging.Logger) (*GoogleClient, error) {
	if strings.TrimSpace(cfg.ServiceAccountEmail) == "" {
		return nil, errors.New("calendar: service account email is required")
	}
	if strings.TrimSpace(cfg.PrivateKey) == "" {
		return nil, errors.New("calendar: private key is required")
	}
	if cfg.CalendarID == "" {
		cfg.CalendarID = "primary"
	}
	if logger == nil {
		logger = logging.Default()
	}

	conf := &jwt.Config{
		Email:      cfg.ServiceAccountEmail,
		PrivateKey: []byte(cfg.PrivateKey),
		Scopes:     []string{gcal.CalendarEventsScope},
		TokenURL:   google.JWTTokenURL,
	}
	service, err := gcal.NewService(ctx, option.WithHTTPClient(conf.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("calendar: failed to create service: %w", err)
	}

	return &GoogleClient{
		service:    service,
		calendarID: cfg.CalendarID,
		timezone:   cfg.Timezone,
		logger:     logger,
	}, nil
}

// CreateMeeting inserts a calendar event with a Meet link attached.
func (c *GoogleClient) CreateMeeting(ctx context.Context, req MeetingRequest) (*Event, error) {
	if req.Start.IsZero() || req.End.IsZero() {
		return nil, errors.New("calendar: start and end are required")
	}
	if !req.End.After(req.Start) {
		return nil, errors.New("calendar: end must be after start")
	}

	tz := req.Timezone
	if tz == "" {
		tz = c.timezone
	}

	attendees := make([]*gcal.EventAttendee, 0, len(req.AttendeeEmails))
	for _, email := range req.AttendeeEmails {
		if strings.TrimSpace(email) == "" {
			continue
		}
		attendees = append(attendees, &gcal.EventAttendee{Email: email})
	}

	event := &gcal.Event{
		Summary:     req.Title,
		Description: req.Description,
		Start:       &gcal.EventDateTime{DateTime: req.Start.Format(time.RFC3339), TimeZone: tz},
		End:         &gcal.EventDateTime{DateTime: req.End.Format(time.RFC3339), TimeZone: tz},
		Attendees:   attendees,
		ConferenceData: &gcal.ConferenceData{
			CreateRequest: &gcal.CreateConferenceRequest{
				RequestId:             uuid.NewString(),
				ConferenceSolutionKey: &gcal.ConferenceSolutionKey{Type: "hangoutsMeet"},
			},
		},
	}

	created, err := c.service.Events.Insert(c.calendarID, event).
		ConferenceDataVersion(1).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("calendar: event insert failed: %w", err)
	}

	link := created.HangoutLink
	if link == "" && created.ConferenceData != nil {
		for _, ep := range created.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" {
				link = ep.Uri
				break
			}
		}
	}

	c.logger.Info("calendar event created", "event_id", created.Id, "start", req.Start)
	return &Event{
		ID:       created.Id,
		MeetLink: link,
		Start:    req.Start,
		End:      req.End,
	}, nil
}
