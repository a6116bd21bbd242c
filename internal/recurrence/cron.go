package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrCronInexpressible indicates a spec that a 5-field cron expression
// cannot represent (weekly recurrence with an interval above one). Callers
// fall back to NextOccurrence for those specs.
var ErrCronInexpressible = errors.New("recurrence: spec not expressible as a 5-field cron schedule")

// CronSchedule renders the spec as a standard 5-field cron expression
// (minute, hour, day-of-month, month, day-of-week) firing at timeOfDay.
// Intervals are honoured for daily and monthly specs; weekly specs with an
// interval above one return ErrCronInexpressible instead of silently
// dropping the interval.
func CronSchedule(spec Spec, timeOfDay string) (string, error) {
	if err := Validate(spec); err != nil {
		return "", err
	}
	hour, minute, err := parseTimeOfDay(timeOfDay)
	if err != nil {
		return "", err
	}

	switch spec.Frequency {
	case FrequencyDaily:
		return fmt.Sprintf("%d %d %s * *", minute, hour, stepField(spec.Interval)), nil
	case FrequencyWeekly:
		if spec.Interval > 1 {
			return "", fmt.Errorf("%w: weekly interval %d", ErrCronInexpressible, spec.Interval)
		}
		return fmt.Sprintf("%d %d * * %d", minute, hour, int(*spec.DayOfWeek)), nil
	case FrequencyMonthly:
		return fmt.Sprintf("%d %d %d %s *", minute, hour, spec.DayOfMonth, stepField(spec.Interval)), nil
	default:
		return "", fmt.Errorf("%w: %d", ErrUnknownFrequency, spec.Frequency)
	}
}

// NextAfter returns the earliest firing of the cron expression strictly
// after the given instant.
func NextAfter(expr string, after time.Time) (time.Time, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("recurrence: parse cron %q: %w", expr, err)
	}
	return schedule.Next(after), nil
}

func stepField(interval int) string {
	if interval <= 1 {
		return "*"
	}
	return fmt.Sprintf("*/%d", interval)
}

// parseTimeOfDay enforces the HH:MM contract; malformed input fails fast.
func parseTimeOfDay(value string) (hour, minute int, err error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, fmt.Errorf("recurrence: time of day must be HH:MM, got %q: %w", value, err)
	}
	return parsed.Hour(), parsed.Minute(), nil
}
