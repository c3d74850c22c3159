// Package lexical provides the text and value utilities shared by the
// matchers: date parsing and day-window arithmetic, CUIT/CUIL extraction and
// validation, keyword tokenization of bank concepts, and tolerant amount
// comparison including cross-currency equivalence.
package lexical

import (
	"fmt"
	"strings"
	"time"
)

// dateFormats are tried in order when parsing dates from extracted text.
// Argentine sources use day-first forms; ISO forms appear in exports.
var dateFormats = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"02/01/06",
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"2006/01/02",
}

// ParseDate attempts to parse a date from a string using the known formats.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date string cannot be empty")
	}

	var lastErr error
	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date %q: %w", s, lastErr)
}

// DayOffset returns the signed number of whole days from the candidate date
// to the reference date. A positive offset means the reference falls after
// the candidate.
func DayOffset(candidate, reference time.Time) int {
	c := truncateToDay(candidate)
	r := truncateToDay(reference)
	return int(r.Sub(c).Hours() / 24)
}

// DayDistance returns the absolute number of whole days between two dates.
func DayDistance(a, b time.Time) int {
	d := DayOffset(a, b)
	if d < 0 {
		d = -d
	}
	return d
}

// WithinDays reports whether the reference date falls within
// [candidate-before, candidate+after] measured in whole days.
func WithinDays(candidate, reference time.Time, before, after int) bool {
	offset := DayOffset(candidate, reference)
	return offset >= -before && offset <= after
}

func truncateToDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
