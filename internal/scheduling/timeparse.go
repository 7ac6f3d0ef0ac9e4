package scheduling

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// defaultHour is used when the patient names a day but no time of day.
const defaultHour = 14

var clockRe = regexp.MustCompile(`(\d{1,2})(?::(\d{2}))?\s*(am|pm|a\.m\.|p\.m\.)`)

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// ParsePreferredTime turns loose phrases like "tomorrow at 2 PM" or
// "next friday" into a concrete local time. It is deliberately forgiving:
// a missing time of day defaults to 14:00 and anything it cannot read at
// all defaults to tomorrow 14:00. It never returns an error, so callers
// must echo the parsed time back to the patient for confirmation.
func ParsePreferredTime(raw string, now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	text := strings.ToLower(strings.TrimSpace(raw))

	day := now.AddDate(0, 0, 1)
	dayKnown := false

	switch {
	case strings.Contains(text, "today"):
		day = now
		dayKnown = true
	case strings.Contains(text, "tomorrow"):
		day = now.AddDate(0, 0, 1)
		dayKnown = true
	}

	if !dayKnown {
		if wd, ok := findWeekday(text); ok {
			// Always the upcoming occurrence; "friday" said on a
			// Friday means a week out, same as "next friday".
			offset := (int(wd) - int(now.Weekday()) + 7) % 7
			if offset == 0 {
				offset = 7
			}
			day = now.AddDate(0, 0, offset)
		}
	}

	hour, minute, clockFound := findClockTime(text)
	if !clockFound {
		hour, minute = defaultHour, 0
	}

	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
}

// findWeekday scans for a weekday name.
func findWeekday(text string) (time.Weekday, bool) {
	for _, f := range strings.Fields(text) {
		f = strings.Trim(f, ".,!?")
		if wd, ok := weekdayNames[f]; ok {
			return wd, true
		}
	}
	return 0, false
}

// findClockTime extracts an "H(:MM) am/pm" suffix.
func findClockTime(text string) (int, int, bool) {
	m := clockRe.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil || hour < 1 || hour > 12 {
		return 0, 0, false
	}
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
		if minute > 59 {
			minute = 0
		}
	}
	meridiem := strings.ReplaceAll(m[3], ".", "")
	if meridiem == "pm" && hour != 12 {
		hour += 12
	} else if meridiem == "am" && hour == 12 {
		hour = 0
	}
	return hour, minute, true
}
