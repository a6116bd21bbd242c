// Package timezone resolves IANA zone names and evaluates local wall-clock
// time for participants. Instants stay in UTC internally; conversion happens
// only at the boundary where a local hour or display string is needed.
package timezone

import (
	"fmt"
	"time"
)

// DisplayLayout is the format used when presenting an instant in a
// participant's local zone.
const DisplayLayout = "Mon, 02 Jan 2006 15:04 MST"

// Resolve returns the location for an IANA zone name. An empty name
// defaults to UTC; an unknown name is an error rather than a silent
// fallback.
func Resolve(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timezone: unknown zone %q: %w", name, err)
	}
	return loc, nil
}

// Convert re-expresses an instant in the given location. The absolute
// instant is unchanged.
func Convert(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc)
}

// LocalHour returns the wall-clock hour of the instant in the given zone.
func LocalHour(t time.Time, loc *time.Location) int {
	return Convert(t, loc).Hour()
}

// FormatLocal renders the instant in the given zone using DisplayLayout.
func FormatLocal(t time.Time, loc *time.Location) string {
	return Convert(t, loc).Format(DisplayLayout)
}
