// Package timefmt parses event timestamps in the accepted input layouts.
package timefmt

import (
	"strings"
	"time"
)

// Layouts lists the accepted timestamp layouts ordered by likelihood.
// Values without a zone are interpreted as UTC.
var Layouts = []string{
	"2006-01-02 15:04:05",                // Space separator
	time.RFC3339Nano,                     // ISO 8601 with offset, optional fraction
	"2006-01-02T15:04:05",                // ISO 8601 local
	"2006-01-02 15:04:05Z07:00",          // Space separator with offset
	"2006-01-02 15:04:05.999999999",      // Space separator with fraction
	"2006-01-02T15:04:05.999999999",      // ISO 8601 local with fraction
	"2006-01-02T15:04:05Z0700",           // ISO 8601 basic offset (+hhmm)
	"2006-01-02T15:04:05.999999999Z0700", // Basic offset with fraction
	"2006-01-02 15:04:05Z0700",           // Space separator with basic offset
	"2006-01-02T15:04:05Z07",             // ISO 8601 hour offset (+hh)
	"2006-01-02T15:04:05.999999999Z07",   // Hour offset with fraction
	"2006-01-02",                         // Date only
}

// ErrInvalidTimestamp indicates a value matched none of the layouts.
var ErrInvalidTimestamp = &TimestampError{"invalid timestamp format"}

// TimestampError represents a timestamp parsing error.
type TimestampError struct {
	msg string
}

func (e *TimestampError) Error() string {
	return e.msg
}

// Parse parses s using the first matching layout.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	// Every accepted layout starts with YYYY-MM-DD.
	if len(s) < 10 || s[4] != '-' || s[7] != '-' {
		return time.Time{}, ErrInvalidTimestamp
	}

	// Date only
	if len(s) == 10 {
		return parse("2006-01-02", s)
	}

	for _, layout := range Layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidTimestamp
}

func parse(layout, s string) (time.Time, error) {
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, ErrInvalidTimestamp
	}
	return t, nil
}
