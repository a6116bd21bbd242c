// Package suggest proposes concrete meeting start times that fall inside
// every participant's working hours, evaluated in each participant's own
// time zone. It performs no API calls; callers supply participants and
// receive candidates back in chronological order.
package suggest

import (
	"fmt"
	"time"

	"github.com/example/meeting-scheduler/internal/timezone"
)

const (
	// DefaultHorizonDays bounds the candidate walk when no horizon is given.
	DefaultHorizonDays = 7
	// DefaultMaxResults caps the number of returned slots.
	DefaultMaxResults = 5
	// DefaultWorkingHoursStart is the inclusive start of a working day.
	DefaultWorkingHoursStart = 9
	// DefaultWorkingHoursEnd is the exclusive end of a working day.
	DefaultWorkingHoursEnd = 17
)

// Participant identifies one attendee and the zone their working hours are
// evaluated in. An empty TimeZone means UTC; zero working hours fall back to
// the 9-17 defaults.
type Participant struct {
	ID                string
	TimeZone          string
	WorkingHoursStart int
	WorkingHoursEnd   int
}

// Slot is a proposed meeting start time together with its rendering in each
// participant's local zone.
type Slot struct {
	UTC        time.Time
	LocalTimes map[string]string
}

// Options tune the candidate walk. Zero values select the defaults.
type Options struct {
	HorizonDays       int
	WorkingHoursStart int
	WorkingHoursEnd   int
	MaxResults        int
}

// Suggester generates candidate meeting times relative to a reference clock
// and zone.
type Suggester struct {
	now      func() time.Time
	location *time.Location
}

// NewSuggester wires the reference clock and zone used to anchor the
// multi-day walk. Nil arguments select time.Now and UTC.
func NewSuggester(now func() time.Time, loc *time.Location) *Suggester {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Suggester{now: now, location: loc}
}

// Suggest walks the horizon day by day, hour by hour inside the working
// window, and keeps candidates whose local hour also falls inside the
// working window for every participant. Candidates are appended in
// chronological generation order and truncated to MaxResults; no scoring is
// applied beyond the hard filter. Zero participants trivially accept every
// candidate.
func (s *Suggester) Suggest(participants []Participant, duration time.Duration, opts Options) ([]Slot, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("suggest: duration must be positive, got %v", duration)
	}

	horizon := opts.HorizonDays
	if horizon <= 0 {
		horizon = DefaultHorizonDays
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	hoursStart := opts.WorkingHoursStart
	hoursEnd := opts.WorkingHoursEnd
	if hoursStart == 0 && hoursEnd == 0 {
		hoursStart = DefaultWorkingHoursStart
		hoursEnd = DefaultWorkingHoursEnd
	}
	if hoursEnd <= hoursStart {
		return nil, fmt.Errorf("suggest: working hours end %d must be after start %d", hoursEnd, hoursStart)
	}

	zones := make([]*time.Location, len(participants))
	for i, p := range participants {
		loc, err := timezone.Resolve(p.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("suggest: participant %s: %w", p.ID, err)
		}
		zones[i] = loc
	}

	today := s.now().In(s.location)
	year, month, day := today.Date()

	var slots []Slot
	for d := 0; d < horizon && len(slots) < maxResults; d++ {
		for h := hoursStart; h < hoursEnd && len(slots) < maxResults; h++ {
			candidate := time.Date(year, month, day+d, h, 0, 0, 0, s.location)

			if !fitsAll(candidate, participants, zones, hoursStart, hoursEnd) {
				continue
			}

			slot := Slot{UTC: candidate.UTC()}
			if len(participants) > 0 {
				slot.LocalTimes = make(map[string]string, len(participants))
				for i, p := range participants {
					slot.LocalTimes[p.ID] = timezone.FormatLocal(candidate, zones[i])
				}
			}
			slots = append(slots, slot)
		}
	}

	return slots, nil
}

func fitsAll(candidate time.Time, participants []Participant, zones []*time.Location, defaultStart, defaultEnd int) bool {
	for i, p := range participants {
		start, end := p.WorkingHoursStart, p.WorkingHoursEnd
		if start == 0 && end == 0 {
			start, end = defaultStart, defaultEnd
		}
		hour := timezone.LocalHour(candidate, zones[i])
		if hour < start || hour >= end {
			return false
		}
	}
	return true
}
