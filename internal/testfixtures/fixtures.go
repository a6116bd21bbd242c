// Package testfixtures provides deterministic clocks, identifier generators
// and meeting fixtures shared by the engine's test suites.
package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/meeting-scheduler/internal/persistence"
	"github.com/example/meeting-scheduler/internal/recurrence"
	"github.com/example/meeting-scheduler/internal/registry"
)

var meetingCounter uint64

var referenceTime = time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
// It falls on a Monday so weekday arithmetic in recurrence tests stays
// readable.
func ReferenceTime() time.Time {
	return referenceTime
}

// MeetingFixture represents a deterministic meeting that can be materialised
// for registry or persistence tests.
type MeetingFixture struct {
	RoomID          string
	Title           string
	Description     string
	Start           time.Time
	DurationMinutes int
	TimeZone        string
	OrganizerID     string
	Attendees       []string
	Recurrence      *recurrence.Spec
	ReminderLeads   []int
	CreatedAt       time.Time
}

// MeetingOption configures the generated meeting fixture.
type MeetingOption func(*MeetingFixture)

// NewMeetingFixture returns a deterministic meeting fixture with optional
// overrides. Each call yields a distinct room and a start one hour later
// than the previous fixture's, always in the future of ReferenceTime.
func NewMeetingFixture(opts ...MeetingOption) MeetingFixture {
	idx := atomic.AddUint64(&meetingCounter, 1)
	fixture := MeetingFixture{
		RoomID:          fmt.Sprintf("room-%03d", idx),
		Title:           fmt.Sprintf("Meeting %03d", idx),
		Start:           referenceTime.Add(24*time.Hour + time.Duration(idx)*time.Hour),
		DurationMinutes: 60,
		TimeZone:        "UTC",
		OrganizerID:     fmt.Sprintf("user-%03d", idx),
		Attendees:       []string{fmt.Sprintf("user-%03d", idx+1)},
		CreatedAt:       referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRoomID overrides the generated room ID.
func WithRoomID(id string) MeetingOption {
	return func(f *MeetingFixture) {
		f.RoomID = id
	}
}

// WithTitle overrides the generated title.
func WithTitle(title string) MeetingOption {
	return func(f *MeetingFixture) {
		f.Title = title
	}
}

// WithDescription sets the description field.
func WithDescription(description string) MeetingOption {
	return func(f *MeetingFixture) {
		f.Description = description
	}
}

// WithStart sets the start instant.
func WithStart(start time.Time) MeetingOption {
	return func(f *MeetingFixture) {
		f.Start = start
	}
}

// WithDuration sets the duration in minutes.
func WithDuration(minutes int) MeetingOption {
	return func(f *MeetingFixture) {
		f.DurationMinutes = minutes
	}
}

// WithTimeZone sets the display time zone.
func WithTimeZone(name string) MeetingOption {
	return func(f *MeetingFixture) {
		f.TimeZone = name
	}
}

// WithOrganizer sets the organizer identifier.
func WithOrganizer(id string) MeetingOption {
	return func(f *MeetingFixture) {
		f.OrganizerID = id
	}
}

// WithAttendees sets the attendee identifiers.
func WithAttendees(attendees ...string) MeetingOption {
	return func(f *MeetingFixture) {
		f.Attendees = append([]string(nil), attendees...)
	}
}

// WithRecurrence attaches a recurrence spec to the fixture.
func WithRecurrence(spec recurrence.Spec) MeetingOption {
	return func(f *MeetingFixture) {
		s := spec
		f.Recurrence = &s
	}
}

// WithReminderLeads sets the reminder lead minutes.
func WithReminderLeads(leads ...int) MeetingOption {
	return func(f *MeetingFixture) {
		f.ReminderLeads = append([]int(nil), leads...)
	}
}

// CreateParams returns the fixture as registry.CreateParams.
func (f MeetingFixture) CreateParams() registry.CreateParams {
	return registry.CreateParams{
		RoomID:          f.RoomID,
		Title:           f.Title,
		Description:     f.Description,
		Start:           f.Start,
		DurationMinutes: f.DurationMinutes,
		TimeZone:        f.TimeZone,
		OrganizerID:     f.OrganizerID,
		Attendees:       append([]string(nil), f.Attendees...),
		Recurrence:      f.Recurrence,
		ReminderLeads:   append([]int(nil), f.ReminderLeads...),
	}
}

// Snapshot returns the fixture as a persistence.Meeting value.
func (f MeetingFixture) Snapshot() persistence.Meeting {
	return persistence.Meeting{
		RoomID:          f.RoomID,
		Title:           f.Title,
		Description:     f.Description,
		Start:           f.Start,
		DurationMinutes: f.DurationMinutes,
		TimeZone:        f.TimeZone,
		OrganizerID:     f.OrganizerID,
		Attendees:       append([]string(nil), f.Attendees...),
		Status:          "scheduled",
		CreatedAt:       f.CreatedAt,
	}
}
