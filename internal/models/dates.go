package models

import (
	"fmt"
	"strings"
	"time"
)

var dateLayouts = []string{
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02",
}

// ParseDate accepts the timestamp shapes the counter API has emitted. The
// returned time carries the row's wall clock in UTC so that it can be
// compared against calendar boundaries without zone shifts.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date: %q", s)
}

// MonthStart returns midnight of the first day of t's month in the same
// calendar, expressed in UTC.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// FilterCompleted keeps rows dated strictly before boundary. Rows without
// a parsable date are returned separately as dropped.
func FilterCompleted(rows []CountRecord, boundary time.Time) (kept []CountRecord, dropped int) {
	kept = make([]CountRecord, 0, len(rows))
	for _, row := range rows {
		d, err := row.Date()
		if err != nil {
			dropped++
			continue
		}
		if d.Before(boundary) {
			kept = append(kept, row)
		}
	}
	return kept, dropped
}
