package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// untilLayout is the RFC5545 UTC date-time form used for UNTIL.
const untilLayout = "20060102T150405Z"

// byDayCodes maps weekdays to the RFC5545 two-letter day codes. The codes
// follow calendar convention (THURSDAY→TH, SUNDAY→SU), not a naive
// two-character truncation of arbitrary input.
var byDayCodes = map[time.Weekday]string{
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
	time.Sunday:    "SU",
}

var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
	time.Sunday:    rrule.SU,
}

// RRule renders the spec as an RFC5545 RRULE line. Every produced string is
// round-tripped through the rrule parser so malformed output cannot escape.
func RRule(spec Spec) (string, error) {
	if err := Validate(spec); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("RRULE:FREQ=")
	b.WriteString(spec.Frequency.String())
	if spec.Interval > 0 {
		fmt.Fprintf(&b, ";INTERVAL=%d", spec.Interval)
	}
	if spec.Count > 0 {
		fmt.Fprintf(&b, ";COUNT=%d", spec.Count)
	}
	if spec.Until != nil {
		fmt.Fprintf(&b, ";UNTIL=%s", spec.Until.UTC().Format(untilLayout))
	}
	if spec.DayOfWeek != nil {
		code, ok := byDayCodes[*spec.DayOfWeek]
		if !ok {
			return "", fmt.Errorf("%w: day of week %d", ErrInvalidSpec, *spec.DayOfWeek)
		}
		fmt.Fprintf(&b, ";BYDAY=%s", code)
	}

	line := b.String()
	if _, err := rrule.StrToRRule(strings.TrimPrefix(line, "RRULE:")); err != nil {
		return "", fmt.Errorf("recurrence: generated rule failed validation: %w", err)
	}
	return line, nil
}

// rule materializes the spec as an rrule.RRule anchored at dtstart.
func rule(spec Spec, dtstart time.Time) (*rrule.RRule, error) {
	if err := Validate(spec); err != nil {
		return nil, err
	}

	opt := rrule.ROption{
		Interval: spec.Interval,
		Dtstart:  dtstart.UTC(),
	}
	switch spec.Frequency {
	case FrequencyDaily:
		opt.Freq = rrule.DAILY
	case FrequencyWeekly:
		opt.Freq = rrule.WEEKLY
		opt.Byweekday = []rrule.Weekday{rruleWeekdays[*spec.DayOfWeek]}
	case FrequencyMonthly:
		opt.Freq = rrule.MONTHLY
		opt.Bymonthday = []int{spec.DayOfMonth}
	}
	if spec.Count > 0 {
		opt.Count = spec.Count
	}
	if spec.Until != nil {
		opt.Until = spec.Until.UTC()
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("recurrence: build rule: %w", err)
	}
	return r, nil
}

// Expand materializes the occurrences of the spec anchored at dtstart that
// fall within [rangeStart, rangeEnd], honouring COUNT and UNTIL bounds.
func Expand(spec Spec, dtstart, rangeStart, rangeEnd time.Time) ([]time.Time, error) {
	r, err := rule(spec, dtstart)
	if err != nil {
		return nil, err
	}
	return r.Between(rangeStart.UTC(), rangeEnd.UTC(), true), nil
}

// NextOccurrence returns the earliest firing strictly after the given
// instant for a spec whose occurrences happen at timeOfDay. Cron-expressible
// specs delegate to the cron parser; weekly specs with larger intervals use
// rrule expansion so the interval is honoured. The zero time is returned
// when the spec's bounds leave no future occurrence.
func NextOccurrence(spec Spec, timeOfDay string, after time.Time) (time.Time, error) {
	expr, err := CronSchedule(spec, timeOfDay)
	switch {
	case err == nil:
		if spec.Until == nil && spec.Count == 0 {
			return NextAfter(expr, after)
		}
		// Bounded specs need rrule expansion so COUNT/UNTIL are applied.
	case !errors.Is(err, ErrCronInexpressible):
		return time.Time{}, err
	}

	hour, minute, err := parseTimeOfDay(timeOfDay)
	if err != nil {
		return time.Time{}, err
	}
	anchor := after.UTC()
	dtstart := time.Date(anchor.Year(), anchor.Month(), anchor.Day(), hour, minute, 0, 0, time.UTC)

	r, err := rule(spec, dtstart)
	if err != nil {
		return time.Time{}, err
	}
	return r.After(after.UTC(), false), nil
}
