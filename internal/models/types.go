package models

import (
	"fmt"
	"time"
)

// SiteField is the column that identifies a counter location in every table.
const SiteField = "site"

// DateField holds the bucket timestamp of a count row.
const DateField = "date"

// Step is the time bucket width of the count series.
type Step string

const (
	Step15m   Step = "15m"
	StepDay   Step = "day"
	StepMonth Step = "month"
	StepYear  Step = "year"
)

var validSteps = map[Step]bool{
	Step15m:   true,
	StepDay:   true,
	StepMonth: true,
	StepYear:  true,
}

// ParseStep validates a granularity value.
func ParseStep(s string) (Step, error) {
	step := Step(s)
	if !validSteps[step] {
		return "", fmt.Errorf("invalid step: %s", s)
	}
	return step, nil
}

// AuthToken is the bearer credential presented on API calls.
type AuthToken struct {
	Value      string
	AcquiredAt time.Time
}

// Header renders the Authorization header value.
func (t AuthToken) Header() string {
	return "Bearer " + t.Value
}

// String keeps the token out of logs.
func (t AuthToken) String() string {
	return "Bearer [redacted]"
}

// Location is a counter site with the id column renamed to site.
type Location struct {
	Record
}

func (l Location) Site() string {
	v, _ := l.Get(SiteField)
	return v
}

// CountRecord is one time bucket of a site's series. Index is the row
// position in the raw API response.
type CountRecord struct {
	Record
	Index int
}

func (c CountRecord) Site() string {
	v, _ := c.Get(SiteField)
	return v
}

// Date parses the row's date field.
func (c CountRecord) Date() (time.Time, error) {
	v, ok := c.Get(DateField)
	if !ok {
		return time.Time{}, fmt.Errorf("missing %s field", DateField)
	}
	return ParseDate(v)
}
