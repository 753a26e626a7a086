package model

import (
	"strings"
	"time"
)

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

// NoDateLabel is shown wherever a return date is missing or unusable.
const NoDateLabel = "No date returned"

// ParseDate parses a calendar date. Full RFC 3339 timestamps are accepted and
// truncated to their date part, since some clients send midnight timestamps.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// isEpochZero reports whether t falls on 1970-01-01, which is what a zero
// Unix timestamp looks like after a lossy round trip.
func isEpochZero(t time.Time) bool {
	return t.Year() == 1970 && t.Month() == time.January && t.Day() == 1
}

// UsableDate parses s and rejects the epoch-zero artefact.
func UsableDate(s string) (time.Time, bool) {
	t, ok := ParseDate(s)
	if !ok || isEpochZero(t) {
		return time.Time{}, false
	}
	return t, true
}

// FormatReturnDate renders a return date for people, e.g. "Mar 4, 2026".
// Empty, unparseable and epoch-zero dates all render as NoDateLabel.
func FormatReturnDate(s string) string {
	t, ok := UsableDate(s)
	if !ok {
		return NoDateLabel
	}
	return t.Format("Jan 2, 2006")
}
