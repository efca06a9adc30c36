// Package schedule validates and normalizes appointment date/time selections
// against business-hour constraints.
package schedule

import (
	"fmt"
	"strings"
	"time"
)

// Business-hour bounds in 24-hour notation. 17:00 exactly is the last valid
// instant; 17:05 and later are rejected.
const (
	openingHour = 9
	closingHour = 17
)

// Display formats used for message interpolation.
const (
	longDateFormat = "Monday, January 2, 2006"
	clockFormat    = "3:04 PM"
)

// ValidationError carries a user-facing rejection message. The orchestrator
// does not change state on validation failure; the picker stays open.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// Scheduled is a normalized, validated appointment time along with the
// formatted strings used for message interpolation.
type Scheduled struct {
	Time     time.Time
	LongDate string
	Clock    string
}

// Validate converts a 12-hour (date, hour, minute, am/pm) selection to a
// normalized time and checks it against business hours. Minute granularity
// (multiples of 5) is enforced by the option set the UI exposes and is not
// re-validated here.
func Validate(date time.Time, hour12, minute int, ampm string) (*Scheduled, error) {
	if hour12 < 1 || hour12 > 12 {
		return nil, &ValidationError{Msg: fmt.Sprintf("Hour must be between 1 and 12, got %d.", hour12)}
	}
	if minute < 0 || minute > 59 {
		return nil, &ValidationError{Msg: fmt.Sprintf("Minute must be between 0 and 59, got %d.", minute)}
	}

	var pm bool
	switch strings.ToUpper(strings.TrimSpace(ampm)) {
	case "AM":
		pm = false
	case "PM":
		pm = true
	default:
		return nil, &ValidationError{Msg: fmt.Sprintf("Expected AM or PM, got %q.", ampm)}
	}

	hour24 := hour12 % 12
	if pm {
		hour24 += 12
	}

	if hour24 < openingHour || hour24 > closingHour {
		return nil, &ValidationError{Msg: "Please pick a time between 9:00 AM and 5:00 PM."}
	}
	if hour24 == closingHour && minute != 0 {
		return nil, &ValidationError{Msg: "5:00 PM is the latest time we can call; please pick an earlier slot."}
	}

	normalized := time.Date(date.Year(), date.Month(), date.Day(), hour24, minute, 0, 0, date.Location())
	return &Scheduled{
		Time:     normalized,
		LongDate: normalized.Format(longDateFormat),
		Clock:    normalized.Format(clockFormat),
	}, nil
}
