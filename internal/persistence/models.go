package persistence

import "time"

// Meeting is the persisted snapshot of a scheduled meeting. It is the unit
// exported to scheduling UIs and notification collaborators.
type Meeting struct {
	RoomID          string
	Title           string
	Description     string
	Start           time.Time
	DurationMinutes int
	TimeZone        string
	OrganizerID     string
	Attendees       []string
	// CronSchedule and RRule are empty for one-off meetings. CronSchedule
	// may also be empty for a recurring meeting the 5-field form cannot
	// express; NextOccurrence is authoritative in that case.
	CronSchedule   string
	RRule          string
	NextOccurrence *time.Time
	Status         string
	CreatedAt      time.Time
}
