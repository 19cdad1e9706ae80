package models

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of Event.Date.
const DateLayout = "2006-01-02"

var timeOfDayLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM", "03:04 PM"}

// ParseTimeOfDay accepts 24h ("14:00") and 12h ("2:00 PM") clock values and
// returns the normalised "15:04" form.
func ParseTimeOfDay(raw string) (string, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	for _, layout := range timeOfDayLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("15:04"), nil
		}
	}
	return "", fmt.Errorf("invalid time of day %q", raw)
}

// ParseDate accepts YYYY-MM-DD, optionally followed by an RFC3339 time part
// which is ignored.
func ParseDate(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if t, err := time.Parse(DateLayout, value); err == nil {
		return t.Format(DateLayout), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.Format(DateLayout), nil
	}
	return "", fmt.Errorf("invalid date %q", raw)
}

// Schedule resolves event times in a fixed location.
type Schedule struct {
	Location    *time.Location
	DefaultTime string
	Window      time.Duration
}

// EffectiveStart combines the event date with its time of day, or with the
// default time when the event has none.
func (s Schedule) EffectiveStart(e *Event) (time.Time, error) {
	day, err := s.day(e)
	if err != nil {
		return time.Time{}, err
	}
	clock := e.Time
	if strings.TrimSpace(clock) == "" {
		clock = s.DefaultTime
	}
	normalized, err := ParseTimeOfDay(clock)
	if err != nil {
		return time.Time{}, err
	}
	tod, _ := time.Parse("15:04", normalized)
	return time.Date(day.Year(), day.Month(), day.Day(), tod.Hour(), tod.Minute(), 0, 0, s.location()), nil
}

// SameDay reports whether now falls on the event's calendar date.
func (s Schedule) SameDay(e *Event, now time.Time) (bool, error) {
	day, err := s.day(e)
	if err != nil {
		return false, err
	}
	local := now.In(s.location())
	return local.Year() == day.Year() && local.Month() == day.Month() && local.Day() == day.Day(), nil
}

// WithinAttendanceWindow applies the check-in rule: same calendar day, and
// when the event has a time, within Window of its start (bounds inclusive).
func (s Schedule) WithinAttendanceWindow(e *Event, now time.Time) (bool, error) {
	sameDay, err := s.SameDay(e, now)
	if err != nil || !sameDay {
		return false, err
	}
	if strings.TrimSpace(e.Time) == "" {
		return true, nil
	}
	start, err := s.EffectiveStart(e)
	if err != nil {
		return false, err
	}
	if now.Before(start.Add(-s.Window)) || now.After(start.Add(s.Window)) {
		return false, nil
	}
	return true, nil
}

func (s Schedule) day(e *Event) (time.Time, error) {
	date, err := ParseDate(e.Date)
	if err != nil {
		return time.Time{}, err
	}
	return time.ParseInLocation(DateLayout, date, s.location())
}

func (s Schedule) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}
