// Package reminder computes absolute reminder fire times from lead minutes
// and fires them through a notification collaborator. Reminders for a room
// are held together so cancellation invalidates the whole set atomically.
package reminder

import (
	"sort"
	"time"
)

// Reminder is a single planned notification for a meeting.
type Reminder struct {
	RoomID      string
	LeadMinutes int
	FireAt      time.Time
	// Scheduled is false when FireAt was already in the past at planning
	// time; such reminders never fire and are not an error.
	Scheduled bool
}

// Set groups every reminder planned for one meeting, ordered by FireAt
// ascending.
type Set struct {
	RoomID    string
	Reminders []Reminder
}

// Plan computes fire times for each lead minute offset relative to the
// meeting start. Leads whose fire time is not after now are marked
// unscheduled rather than firing immediately.
func Plan(roomID string, meetingStart time.Time, leadMinutes []int, now time.Time) Set {
	set := Set{RoomID: roomID, Reminders: make([]Reminder, 0, len(leadMinutes))}
	for _, lead := range leadMinutes {
		fireAt := meetingStart.Add(-time.Duration(lead) * time.Minute)
		set.Reminders = append(set.Reminders, Reminder{
			RoomID:      roomID,
			LeadMinutes: lead,
			FireAt:      fireAt,
			Scheduled:   fireAt.After(now),
		})
	}
	sort.Slice(set.Reminders, func(i, j int) bool {
		return set.Reminders[i].FireAt.Before(set.Reminders[j].FireAt)
	})
	return set
}

// Pending returns the reminders that are still eligible to fire.
func (s Set) Pending() []Reminder {
	pending := make([]Reminder, 0, len(s.Reminders))
	for _, r := range s.Reminders {
		if r.Scheduled {
			pending = append(pending, r)
		}
	}
	return pending
}
