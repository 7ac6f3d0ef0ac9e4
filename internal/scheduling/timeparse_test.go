package scheduling

import (
	"testing"
	"time"
)

func TestParsePreferredTime(t *testing.T) {
	loc, err := time.LoadLocation("Africa/Lagos")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	// A Wednesday morning.
	now := time.Date(2025, 3, 12, 9, 30, 0, 0, loc)

	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{
			name: "tomorrow with time",
			raw:  "tomorrow at 2 PM",
			want: time.Date(2025, 3, 13, 14, 0, 0, 0, loc),
		},
		{
			name: "today default hour",
			raw:  "today",
			want: time.Date(2025, 3, 12, 14, 0, 0, 0, loc),
		},
		{
			name: "today with minutes",
			raw:  "today 10:45am",
			want: time.Date(2025, 3, 12, 10, 45, 0, 0, loc),
		},
		{
			name: "next weekday",
			raw:  "next friday",
			want: time.Date(2025, 3, 14, 14, 0, 0, 0, loc),
		},
		{
			name: "bare weekday with time",
			raw:  "Monday 9am",
			want: time.Date(2025, 3, 17, 9, 0, 0, 0, loc),
		},
		{
			name: "same weekday rolls a week",
			raw:  "wednesday",
			want: time.Date(2025, 3, 19, 14, 0, 0, 0, loc),
		},
		{
			name: "noon pm stays twelve",
			raw:  "tomorrow 12pm",
			want: time.Date(2025, 3, 13, 12, 0, 0, 0, loc),
		},
		{
			name: "midnight am",
			raw:  "tomorrow 12am",
			want: time.Date(2025, 3, 13, 0, 0, 0, 0, loc),
		},
		{
			name: "unparseable falls back to tomorrow afternoon",
			raw:  "whenever works for you",
			want: time.Date(2025, 3, 13, 14, 0, 0, 0, loc),
		},
		{
			name: "empty string",
			raw:  "",
			want: time.Date(2025, 3, 13, 14, 0, 0, 0, loc),
		},
		{
			name: "bare clock time defaults to tomorrow",
			raw:  "3pm",
			want: time.Date(2025, 3, 13, 15, 0, 0, 0, loc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParsePreferredTime(tt.raw, now, loc)
			if !got.Equal(tt.want) {
				t.Fatalf("ParsePreferredTime(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParsePreferredTimeNilLocation(t *testing.T) {
	now := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
	got := ParsePreferredTime("tomorrow 2pm", now, nil)
	want := time.Date(2025, 3, 13, 14, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
