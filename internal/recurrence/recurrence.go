// Package recurrence expands recurrence specifications into cron-style
// schedule expressions, RFC5545 RRULE strings and concrete occurrence
// instants.
package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Frequency enumerates the supported recurrence frequencies.
type Frequency int

const (
	// FrequencyUnspecified indicates the frequency is not set.
	FrequencyUnspecified Frequency = iota
	// FrequencyDaily repeats every Interval days.
	FrequencyDaily
	// FrequencyWeekly repeats every Interval weeks on DayOfWeek.
	FrequencyWeekly
	// FrequencyMonthly repeats every Interval months on DayOfMonth.
	FrequencyMonthly
)

// ErrUnknownFrequency indicates a frequency outside the supported set. This
// is a hard error: guessing a daily default would mask caller input bugs.
var ErrUnknownFrequency = errors.New("recurrence: unknown frequency")

// ErrInvalidSpec indicates a specification missing a field required by its
// frequency or carrying contradictory bounds.
var ErrInvalidSpec = errors.New("recurrence: invalid spec")

// String returns the RFC5545 name of the frequency.
func (f Frequency) String() string {
	switch f {
	case FrequencyDaily:
		return "DAILY"
	case FrequencyWeekly:
		return "WEEKLY"
	case FrequencyMonthly:
		return "MONTHLY"
	default:
		return "UNSPECIFIED"
	}
}

// ParseFrequency maps a caller-supplied frequency name to the enum. Matching
// is case-insensitive; anything outside daily/weekly/monthly is rejected.
func ParseFrequency(name string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "daily":
		return FrequencyDaily, nil
	case "weekly":
		return FrequencyWeekly, nil
	case "monthly":
		return FrequencyMonthly, nil
	default:
		return FrequencyUnspecified, fmt.Errorf("%w: %q", ErrUnknownFrequency, name)
	}
}

// Spec describes a repeating schedule. At most one of Until and Count may
// bound the repetition; both absent means unbounded.
type Spec struct {
	Frequency  Frequency
	Interval   int
	DayOfWeek  *time.Weekday
	DayOfMonth int
	Until      *time.Time
	Count      int
}

// Clone returns a copy of the spec whose pointer fields are duplicated, so
// mutating the original afterwards cannot reach the copy.
func (s Spec) Clone() Spec {
	out := s
	if s.DayOfWeek != nil {
		day := *s.DayOfWeek
		out.DayOfWeek = &day
	}
	if s.Until != nil {
		until := *s.Until
		out.Until = &until
	}
	return out
}

// Validate checks the spec against its frequency's requirements before any
// schedule generation happens.
func Validate(spec Spec) error {
	switch spec.Frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
	default:
		return fmt.Errorf("%w: %d", ErrUnknownFrequency, spec.Frequency)
	}

	if spec.Interval < 1 {
		return fmt.Errorf("%w: interval must be positive, got %d", ErrInvalidSpec, spec.Interval)
	}

	if spec.Frequency == FrequencyWeekly && spec.DayOfWeek == nil {
		return fmt.Errorf("%w: weekly recurrence requires a day of week", ErrInvalidSpec)
	}
	if spec.Frequency == FrequencyMonthly && (spec.DayOfMonth < 1 || spec.DayOfMonth > 31) {
		return fmt.Errorf("%w: monthly recurrence requires a day of month in 1..31, got %d", ErrInvalidSpec, spec.DayOfMonth)
	}

	if spec.Until != nil && spec.Count > 0 {
		return fmt.Errorf("%w: until and count are mutually exclusive", ErrInvalidSpec)
	}
	if spec.Count < 0 {
		return fmt.Errorf("%w: count must be positive, got %d", ErrInvalidSpec, spec.Count)
	}

	return nil
}
