// Package registry owns the lifecycle of scheduled meetings keyed by room
// identifier. It orchestrates recurrence expansion, reminder planning and
// snapshot persistence on create, and tears both down on cancellation or
// expiry.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/meeting-scheduler/internal/logging"
	"github.com/example/meeting-scheduler/internal/persistence"
	"github.com/example/meeting-scheduler/internal/recurrence"
	"github.com/example/meeting-scheduler/internal/reminder"
	"github.com/example/meeting-scheduler/internal/timezone"
)

// ErrNotFound is returned when no active meeting exists for the room.
var ErrNotFound = errors.New("registry: meeting not found")

// Status tracks the lifecycle state of a meeting.
type Status string

const (
	// StatusScheduled marks an active meeting.
	StatusScheduled Status = "scheduled"
	// StatusCancelled marks a meeting removed by caller request.
	StatusCancelled Status = "cancelled"
)

// Meeting is an active scheduled meeting owned by the registry.
type Meeting struct {
	RoomID          string
	Title           string
	Description     string
	Start           time.Time
	DurationMinutes int
	TimeZone        string
	OrganizerID     string
	Attendees       []string
	Recurrence      *recurrence.Spec
	CreatedAt       time.Time
	Status          Status
}

// End returns the instant the meeting finishes.
func (m Meeting) End() time.Time {
	return m.Start.Add(time.Duration(m.DurationMinutes) * time.Minute)
}

// RecurrenceJob captures the schedule artifacts generated for a recurring
// meeting. CronExpr is empty when the spec is not expressible as a 5-field
// cron schedule; NextRun remains authoritative either way.
type RecurrenceJob struct {
	CronExpr string
	RRule    string
	NextRun  time.Time
}

// ValidationError reports field level problems with a create request.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// CreateParams wraps the data required to schedule a meeting.
type CreateParams struct {
	RoomID          string
	Title           string
	Description     string
	Start           time.Time
	DurationMinutes int
	TimeZone        string
	OrganizerID     string
	Attendees       []string
	Recurrence      *recurrence.Spec
	// ReminderLeads lists lead times in minutes before the start at which
	// reminders fire. Empty means the registry default.
	ReminderLeads []int
}

// Registry holds the active meetings and their recurrence jobs, both keyed
// by room. Reminder sets live in the reminder scheduler, keyed the same
// way. All mutations for one room are serialized through a per-room lock.
type Registry struct {
	mu         sync.RWMutex
	meetings   map[string]Meeting
	recurring  map[string]RecurrenceJob
	roomLocks  map[string]*sync.Mutex
	roomLockMu sync.Mutex

	store        persistence.Store
	reminders    *reminder.Scheduler
	now          func() time.Time
	logger       *slog.Logger
	defaultLeads []int
}

// Option configures a Registry.
type Option func(*Registry)

// WithDefaultReminderLeads overrides the lead minutes used when a create
// request does not supply its own.
func WithDefaultReminderLeads(leads []int) Option {
	return func(r *Registry) {
		if len(leads) > 0 {
			r.defaultLeads = append([]int(nil), leads...)
		}
	}
}

// WithLogger attaches a base logger used when the context carries none.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New wires the registry's collaborators. A nil store falls back to the
// in-memory implementation; a nil clock selects time.Now.
func New(store persistence.Store, reminders *reminder.Scheduler, now func() time.Time, opts ...Option) *Registry {
	if store == nil {
		store = persistence.NewMemoryStore()
	}
	if now == nil {
		now = time.Now
	}
	r := &Registry{
		meetings:     make(map[string]Meeting),
		recurring:    make(map[string]RecurrenceJob),
		roomLocks:    make(map[string]*sync.Mutex),
		store:        store,
		reminders:    reminders,
		now:          now,
		logger:       slog.Default(),
		defaultLeads: []int{30, 10},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create validates the request and installs the meeting: recurrence
// artifacts are generated when a spec is present, reminders are planned
// unconditionally, and the snapshot store is written through. An existing
// active meeting for the room is fully torn down first (reminders and
// recurrence included) rather than silently overwritten.
func (r *Registry) Create(ctx context.Context, params CreateParams) (Meeting, error) {
	now := r.now()

	if err := r.validate(params); err != nil {
		return Meeting{}, err
	}

	// The registry owns the installed spec; callers keep their copy.
	var spec *recurrence.Spec
	if params.Recurrence != nil {
		cloned := params.Recurrence.Clone()
		spec = &cloned
	}

	meeting := Meeting{
		RoomID:          params.RoomID,
		Title:           strings.TrimSpace(params.Title),
		Description:     params.Description,
		Start:           params.Start.UTC(),
		DurationMinutes: params.DurationMinutes,
		TimeZone:        params.TimeZone,
		OrganizerID:     params.OrganizerID,
		Attendees:       uniqueStrings(params.Attendees),
		Recurrence:      spec,
		CreatedAt:       now,
		Status:          StatusScheduled,
	}

	var job *RecurrenceJob
	if spec != nil {
		built, err := r.buildRecurrenceJob(*spec, meeting.Start, now)
		if err != nil {
			return Meeting{}, err
		}
		job = &built
	}

	leads := params.ReminderLeads
	if len(leads) == 0 {
		leads = r.defaultLeads
	}
	set := reminder.Plan(meeting.RoomID, meeting.Start, leads, now)

	unlock := r.lockRoom(meeting.RoomID)
	defer unlock()

	if _, exists := r.getMeeting(meeting.RoomID); exists {
		r.teardownLocked(ctx, meeting.RoomID)
	}

	r.mu.Lock()
	r.meetings[meeting.RoomID] = meeting
	if job != nil {
		r.recurring[meeting.RoomID] = *job
	}
	r.mu.Unlock()

	if r.reminders != nil {
		r.reminders.Schedule(set)
	}

	if err := r.store.PutMeeting(ctx, toSnapshot(meeting, job)); err != nil {
		r.loggerFrom(ctx).Error("failed to persist meeting snapshot",
			"room_id", meeting.RoomID, "error", err, "error_kind", logging.ErrorKind(err))
	}

	return meeting, nil
}

// Cancel tears down the meeting for the room: reminders first, then the
// recurrence job, then the record itself. Each step is best-effort; a
// failure never prevents the remaining steps.
func (r *Registry) Cancel(ctx context.Context, roomID string) error {
	unlock := r.lockRoom(roomID)
	defer unlock()

	if _, exists := r.getMeeting(roomID); !exists {
		return ErrNotFound
	}

	r.teardownLocked(ctx, roomID)
	return nil
}

// Get returns the active meeting for the room.
func (r *Registry) Get(roomID string) (Meeting, error) {
	meeting, exists := r.getMeeting(roomID)
	if !exists {
		return Meeting{}, ErrNotFound
	}
	return meeting, nil
}

// Job returns the recurrence artifacts generated for the room's meeting.
func (r *Registry) Job(roomID string) (RecurrenceJob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.recurring[roomID]
	return job, ok
}

// Occurrences materializes the upcoming occurrences of the room's recurring
// meeting within the window. One-off meetings yield their single start when
// it falls inside the window.
func (r *Registry) Occurrences(roomID string, from, to time.Time) ([]time.Time, error) {
	meeting, exists := r.getMeeting(roomID)
	if !exists {
		return nil, ErrNotFound
	}
	if meeting.Recurrence == nil {
		if !meeting.Start.Before(from) && !meeting.Start.After(to) {
			return []time.Time{meeting.Start}, nil
		}
		return nil, nil
	}
	return recurrence.Expand(*meeting.Recurrence, meeting.Start, from, to)
}

// ByParticipant returns meetings where the given identifier is organizer or
// attendee, ascending by start time.
func (r *Registry) ByParticipant(participantID string) []Meeting {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var meetings []Meeting
	for _, meeting := range r.meetings {
		if meeting.OrganizerID == participantID || containsString(meeting.Attendees, participantID) {
			meetings = append(meetings, meeting)
		}
	}
	sort.Slice(meetings, func(i, j int) bool {
		if meetings[i].Start.Equal(meetings[j].Start) {
			return meetings[i].RoomID < meetings[j].RoomID
		}
		return meetings[i].Start.Before(meetings[j].Start)
	})
	return meetings
}

// Sweep removes meetings whose end is strictly before now, tearing down
// their reminders and recurrence jobs. Future and in-progress meetings are
// untouched. It returns the room identifiers removed.
func (r *Registry) Sweep(ctx context.Context, now time.Time) []string {
	r.mu.RLock()
	var expired []string
	for roomID, meeting := range r.meetings {
		if meeting.End().Before(now) {
			expired = append(expired, roomID)
		}
	}
	r.mu.RUnlock()

	sort.Strings(expired)
	var removed []string
	for _, roomID := range expired {
		unlock := r.lockRoom(roomID)
		// Re-check under the room lock: the meeting may have been replaced
		// or cancelled since the scan.
		if meeting, exists := r.getMeeting(roomID); exists && meeting.End().Before(now) {
			r.teardownLocked(ctx, roomID)
			removed = append(removed, roomID)
		}
		unlock()
	}
	return removed
}

// RunSweeper periodically sweeps expired meetings until the context is
// cancelled.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if removed := r.Sweep(ctx, r.now()); len(removed) > 0 {
				r.loggerFrom(ctx).Info("expired meetings removed", "rooms", removed)
			}
		}
	}
}

func (r *Registry) validate(params CreateParams) error {
	vErr := &ValidationError{}

	if strings.TrimSpace(params.RoomID) == "" {
		vErr.add("room_id", "room id is required")
	}
	if strings.TrimSpace(params.Title) == "" {
		vErr.add("title", "title is required")
	}
	if params.Start.IsZero() {
		vErr.add("start", "start is required")
	}
	if params.DurationMinutes <= 0 {
		vErr.add("duration_minutes", "duration must be positive")
	}
	if _, err := timezone.Resolve(params.TimeZone); err != nil {
		vErr.add("time_zone", err.Error())
	}
	if params.Recurrence != nil {
		if err := recurrence.Validate(*params.Recurrence); err != nil {
			vErr.add("recurrence", err.Error())
		}
	}
	for _, lead := range params.ReminderLeads {
		if lead < 0 {
			vErr.add("reminder_leads", fmt.Sprintf("lead minutes must not be negative, got %d", lead))
			break
		}
	}

	if vErr.HasErrors() {
		return vErr
	}
	return nil
}

func (r *Registry) buildRecurrenceJob(spec recurrence.Spec, start, now time.Time) (RecurrenceJob, error) {
	timeOfDay := start.UTC().Format("15:04")

	rule, err := recurrence.RRule(spec)
	if err != nil {
		return RecurrenceJob{}, err
	}

	job := RecurrenceJob{RRule: rule}

	expr, err := recurrence.CronSchedule(spec, timeOfDay)
	switch {
	case err == nil:
		job.CronExpr = expr
	case errors.Is(err, recurrence.ErrCronInexpressible):
		// NextRun carries the schedule instead.
	default:
		return RecurrenceJob{}, err
	}

	next, err := recurrence.NextOccurrence(spec, timeOfDay, now)
	if err != nil {
		return RecurrenceJob{}, err
	}
	job.NextRun = next

	return job, nil
}

// teardownLocked cancels reminders, drops the recurrence job and removes
// the meeting record, in that order. The caller holds the room lock.
func (r *Registry) teardownLocked(ctx context.Context, roomID string) {
	if r.reminders != nil {
		r.reminders.Cancel(roomID)
	}

	r.mu.Lock()
	delete(r.recurring, roomID)
	delete(r.meetings, roomID)
	r.mu.Unlock()

	if err := r.store.DeleteMeeting(ctx, roomID); err != nil && !errors.Is(err, persistence.ErrNotFound) {
		r.loggerFrom(ctx).Error("failed to delete meeting snapshot",
			"room_id", roomID, "error", err, "error_kind", logging.ErrorKind(err))
	}
}

func (r *Registry) getMeeting(roomID string) (Meeting, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	meeting, ok := r.meetings[roomID]
	return meeting, ok
}

// lockRoom serializes mutations per room so concurrent create and cancel
// on the same room cannot interleave.
func (r *Registry) lockRoom(roomID string) func() {
	r.roomLockMu.Lock()
	lock, ok := r.roomLocks[roomID]
	if !ok {
		lock = &sync.Mutex{}
		r.roomLocks[roomID] = lock
	}
	r.roomLockMu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func (r *Registry) loggerFrom(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func toSnapshot(meeting Meeting, job *RecurrenceJob) persistence.Meeting {
	snapshot := persistence.Meeting{
		RoomID:          meeting.RoomID,
		Title:           meeting.Title,
		Description:     meeting.Description,
		Start:           meeting.Start,
		DurationMinutes: meeting.DurationMinutes,
		TimeZone:        meeting.TimeZone,
		OrganizerID:     meeting.OrganizerID,
		Attendees:       append([]string(nil), meeting.Attendees...),
		Status:          string(meeting.Status),
		CreatedAt:       meeting.CreatedAt,
	}
	if job != nil {
		snapshot.CronSchedule = job.CronExpr
		snapshot.RRule = job.RRule
		if !job.NextRun.IsZero() {
			next := job.NextRun
			snapshot.NextOccurrence = &next
		}
	}
	return snapshot
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	return result
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
