package registry_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/example/meeting-scheduler/internal/persistence"
	"github.com/example/meeting-scheduler/internal/recurrence"
	"github.com/example/meeting-scheduler/internal/registry"
	"github.com/example/meeting-scheduler/internal/reminder"
	"github.com/example/meeting-scheduler/internal/testfixtures"
)

func weekdayPtr(d time.Weekday) *time.Weekday {
	return &d
}

func newTestRegistry(t *testing.T) (*registry.Registry, *reminder.Scheduler, *persistence.MemoryStore, *testfixtures.Clock) {
	t.Helper()
	clock := testfixtures.NewClock(time.Time{})
	store := persistence.NewMemoryStore()
	scheduler := reminder.NewScheduler(nil, clock.NowFunc(), nil, 0)
	reg := registry.New(store, scheduler, clock.NowFunc())
	return reg, scheduler, store, clock
}

func validParams(clock *testfixtures.Clock) registry.CreateParams {
	return testfixtures.NewMeetingFixture(
		testfixtures.WithRoomID("room-1"),
		testfixtures.WithTitle("Weekly sync"),
		testfixtures.WithStart(clock.Now().Add(24*time.Hour)),
		testfixtures.WithTimeZone("Asia/Tokyo"),
		testfixtures.WithOrganizer("alice"),
		testfixtures.WithAttendees("bob", "carol", "bob"),
		testfixtures.WithReminderLeads(30, 10),
	).CreateParams()
}

func TestCreate(t *testing.T) {
	t.Parallel()

	t.Run("installs meeting, reminders and snapshot", func(t *testing.T) {
		t.Parallel()
		reg, scheduler, store, clock := newTestRegistry(t)

		meeting, err := reg.Create(context.Background(), validParams(clock))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if meeting.Status != registry.StatusScheduled {
			t.Fatalf("expected scheduled status, got %s", meeting.Status)
		}
		if len(meeting.Attendees) != 2 {
			t.Fatalf("expected deduplicated attendees, got %v", meeting.Attendees)
		}
		if got := scheduler.PendingCount("room-1"); got != 2 {
			t.Fatalf("expected 2 pending reminders, got %d", got)
		}
		snapshot, err := store.GetMeeting(context.Background(), "room-1")
		if err != nil {
			t.Fatalf("expected snapshot, got %v", err)
		}
		if snapshot.Status != string(registry.StatusScheduled) {
			t.Fatalf("unexpected snapshot status %s", snapshot.Status)
		}
	})

	t.Run("recurring meeting gets cron, rrule and next run", func(t *testing.T) {
		t.Parallel()
		reg, _, store, clock := newTestRegistry(t)

		params := validParams(clock)
		params.Start = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
		params.Recurrence = &recurrence.Spec{
			Frequency: recurrence.FrequencyWeekly,
			Interval:  1,
			DayOfWeek: weekdayPtr(time.Monday),
		}

		if _, err := reg.Create(context.Background(), params); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		job, ok := reg.Job("room-1")
		if !ok {
			t.Fatalf("expected recurrence job")
		}
		if job.CronExpr != "0 9 * * 1" {
			t.Fatalf("unexpected cron expression %q", job.CronExpr)
		}
		if job.RRule != "RRULE:FREQ=WEEKLY;INTERVAL=1;BYDAY=MO" {
			t.Fatalf("unexpected rrule %q", job.RRule)
		}
		if !job.NextRun.After(clock.Now()) {
			t.Fatalf("next run %v is not in the future", job.NextRun)
		}

		snapshot, err := store.GetMeeting(context.Background(), "room-1")
		if err != nil {
			t.Fatalf("expected snapshot, got %v", err)
		}
		if snapshot.RRule == "" || snapshot.CronSchedule == "" || snapshot.NextOccurrence == nil {
			t.Fatalf("expected recurrence artifacts in snapshot, got %+v", snapshot)
		}
	})

	t.Run("biweekly meeting has no cron but keeps next run", func(t *testing.T) {
		t.Parallel()
		reg, _, _, clock := newTestRegistry(t)

		params := validParams(clock)
		params.Recurrence = &recurrence.Spec{
			Frequency: recurrence.FrequencyWeekly,
			Interval:  2,
			DayOfWeek: weekdayPtr(time.Monday),
		}

		if _, err := reg.Create(context.Background(), params); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		job, ok := reg.Job("room-1")
		if !ok {
			t.Fatalf("expected recurrence job")
		}
		if job.CronExpr != "" {
			t.Fatalf("biweekly spec must not produce a cron expression, got %q", job.CronExpr)
		}
		if job.NextRun.IsZero() {
			t.Fatalf("expected a next run")
		}
	})

	t.Run("installed spec is independent of the caller's copy", func(t *testing.T) {
		t.Parallel()
		reg, _, _, clock := newTestRegistry(t)

		params := validParams(clock)
		params.Start = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
		spec := recurrence.Spec{
			Frequency: recurrence.FrequencyWeekly,
			Interval:  1,
			DayOfWeek: weekdayPtr(time.Monday),
		}
		params.Recurrence = &spec

		if _, err := reg.Create(context.Background(), params); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// Mutating the caller's spec after Create must not reach the
		// installed meeting.
		*spec.DayOfWeek = time.Friday
		spec.Interval = 5

		from := params.Start
		occurrences, err := reg.Occurrences("room-1", from, from.AddDate(0, 0, 21))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(occurrences) != 4 {
			t.Fatalf("expected 4 weekly occurrences, got %d: %v", len(occurrences), occurrences)
		}
		for _, occ := range occurrences {
			if occ.Weekday() != time.Monday {
				t.Fatalf("expected Monday occurrence, got %v", occ)
			}
		}
	})

	t.Run("duplicate room performs full teardown then recreate", func(t *testing.T) {
		t.Parallel()
		reg, scheduler, _, clock := newTestRegistry(t)

		first := validParams(clock)
		first.Recurrence = &recurrence.Spec{Frequency: recurrence.FrequencyDaily, Interval: 1}
		if _, err := reg.Create(context.Background(), first); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		second := validParams(clock)
		second.Title = "Replacement"
		second.ReminderLeads = []int{5}
		if _, err := reg.Create(context.Background(), second); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		meeting, err := reg.Get("room-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if meeting.Title != "Replacement" {
			t.Fatalf("expected replacement meeting, got %q", meeting.Title)
		}
		// The old recurrence job must not leak.
		if _, ok := reg.Job("room-1"); ok {
			t.Fatalf("old recurrence job leaked across recreate")
		}
		// Only the replacement's reminder set remains.
		if got := scheduler.PendingCount("room-1"); got != 1 {
			t.Fatalf("expected 1 pending reminder after recreate, got %d", got)
		}
	})

	t.Run("validation failures are synchronous", func(t *testing.T) {
		t.Parallel()
		reg, _, _, clock := newTestRegistry(t)

		params := validParams(clock)
		params.RoomID = ""
		params.DurationMinutes = 0
		params.TimeZone = "Nowhere/Here"

		_, err := reg.Create(context.Background(), params)
		var vErr *registry.ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"room_id", "duration_minutes", "time_zone"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected field error for %s, got %v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("invalid recurrence spec is rejected before scheduling", func(t *testing.T) {
		t.Parallel()
		reg, scheduler, _, clock := newTestRegistry(t)

		params := validParams(clock)
		params.Recurrence = &recurrence.Spec{Frequency: recurrence.FrequencyWeekly, Interval: 1}

		if _, err := reg.Create(context.Background(), params); err == nil {
			t.Fatalf("expected error for weekly spec without day of week")
		}
		if got := scheduler.PendingCount("room-1"); got != 0 {
			t.Fatalf("reminders must not be scheduled for a rejected meeting, got %d", got)
		}
	})
}

func TestCancel(t *testing.T) {
	t.Parallel()

	t.Run("removes meeting, reminders and snapshot", func(t *testing.T) {
		t.Parallel()
		reg, scheduler, store, clock := newTestRegistry(t)

		if _, err := reg.Create(context.Background(), validParams(clock)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := reg.Cancel(context.Background(), "room-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, err := reg.Get("room-1"); !errors.Is(err, registry.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if got := scheduler.PendingCount("room-1"); got != 0 {
			t.Fatalf("expected no pending reminders, got %d", got)
		}
		if _, err := store.GetMeeting(context.Background(), "room-1"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected snapshot removed, got %v", err)
		}
		// A due-but-unfired reminder must never fire after cancellation.
		if fired := scheduler.FireDue(context.Background(), clock.Now().Add(48*time.Hour)); fired != 0 {
			t.Fatalf("cancelled reminder fired")
		}
	})

	t.Run("unknown room returns ErrNotFound", func(t *testing.T) {
		t.Parallel()
		reg, _, _, _ := newTestRegistry(t)
		if err := reg.Cancel(context.Background(), "missing"); !errors.Is(err, registry.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("store failure does not abort the teardown", func(t *testing.T) {
		t.Parallel()
		clock := testfixtures.NewClock(time.Time{})
		store := &failingStore{Store: persistence.NewMemoryStore(), failDelete: true}
		scheduler := reminder.NewScheduler(nil, clock.NowFunc(), nil, 0)

		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		reg := registry.New(store, scheduler, clock.NowFunc(), registry.WithLogger(logger))

		if _, err := reg.Create(context.Background(), validParams(clock)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := reg.Cancel(context.Background(), "room-1"); err != nil {
			t.Fatalf("cancel must be best-effort, got %v", err)
		}
		if _, err := reg.Get("room-1"); !errors.Is(err, registry.ErrNotFound) {
			t.Fatalf("meeting record must be removed despite store failure, got %v", err)
		}
		if got := scheduler.PendingCount("room-1"); got != 0 {
			t.Fatalf("reminders must be cancelled despite store failure, got %d", got)
		}

		logged := buf.String()
		if !strings.Contains(logged, "failed to delete meeting snapshot") {
			t.Fatalf("expected delete failure log, got %q", logged)
		}
		if !strings.Contains(logged, "error_kind=unexpected") {
			t.Fatalf("expected error_kind label in log, got %q", logged)
		}
	})
}

func TestByParticipant(t *testing.T) {
	t.Parallel()

	reg, _, _, clock := newTestRegistry(t)
	rooms := testfixtures.NewIDGenerator("room")

	lateRoom := rooms.Next()
	earlyRoom := rooms.Next()
	otherRoom := rooms.Next()

	later := validParams(clock)
	later.RoomID = lateRoom
	later.Start = clock.Now().Add(72 * time.Hour)
	earlier := validParams(clock)
	earlier.RoomID = earlyRoom
	earlier.Start = clock.Now().Add(24 * time.Hour)
	other := validParams(clock)
	other.RoomID = otherRoom
	other.OrganizerID = "dave"
	other.Attendees = []string{"erin"}

	for _, params := range []registry.CreateParams{later, earlier, other} {
		if _, err := reg.Create(context.Background(), params); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	t.Run("matches organizer and attendees, sorted by start", func(t *testing.T) {
		meetings := reg.ByParticipant("alice")
		if len(meetings) != 2 {
			t.Fatalf("expected 2 meetings, got %d", len(meetings))
		}
		if meetings[0].RoomID != earlyRoom || meetings[1].RoomID != lateRoom {
			t.Fatalf("expected ascending start order, got %s then %s", meetings[0].RoomID, meetings[1].RoomID)
		}

		asAttendee := reg.ByParticipant("bob")
		if len(asAttendee) != 2 {
			t.Fatalf("expected attendee match, got %d", len(asAttendee))
		}
	})

	t.Run("unknown participant yields nothing", func(t *testing.T) {
		if meetings := reg.ByParticipant("nobody"); len(meetings) != 0 {
			t.Fatalf("expected no meetings, got %v", meetings)
		}
	})
}

func TestSweep(t *testing.T) {
	t.Parallel()

	reg, scheduler, store, clock := newTestRegistry(t)

	past := validParams(clock)
	past.RoomID = "room-past"
	past.Start = clock.Now().Add(-3 * time.Hour)

	inProgress := validParams(clock)
	inProgress.RoomID = "room-live"
	inProgress.Start = clock.Now().Add(-30 * time.Minute)

	future := validParams(clock)
	future.RoomID = "room-future"

	for _, params := range []registry.CreateParams{past, inProgress, future} {
		if _, err := reg.Create(context.Background(), params); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	removed := reg.Sweep(context.Background(), clock.Now())
	if len(removed) != 1 || removed[0] != "room-past" {
		t.Fatalf("expected only room-past removed, got %v", removed)
	}

	if _, err := reg.Get("room-live"); err != nil {
		t.Fatalf("in-progress meeting must survive the sweep: %v", err)
	}
	if _, err := reg.Get("room-future"); err != nil {
		t.Fatalf("future meeting must survive the sweep: %v", err)
	}
	if _, err := store.GetMeeting(context.Background(), "room-past"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expired snapshot must be removed, got %v", err)
	}
	if got := scheduler.PendingCount("room-past"); got != 0 {
		t.Fatalf("expired meeting reminders must be cancelled, got %d", got)
	}
}

func TestSweepReportsOnlyTornDownRooms(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(time.Time{})
	store := &hookStore{Store: persistence.NewMemoryStore()}
	scheduler := reminder.NewScheduler(nil, clock.NowFunc(), nil, 0)
	reg := registry.New(store, scheduler, clock.NowFunc())

	for _, roomID := range []string{"room-a", "room-b"} {
		params := testfixtures.NewMeetingFixture(
			testfixtures.WithRoomID(roomID),
			testfixtures.WithStart(clock.Now().Add(-3*time.Hour)),
		).CreateParams()
		if _, err := reg.Create(context.Background(), params); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// While room-a is being torn down, room-b gets re-created with a future
	// start. The re-check under the room lock must then skip room-b, and it
	// must not be reported as removed.
	store.onDelete = func(roomID string) {
		if roomID != "room-a" {
			return
		}
		params := testfixtures.NewMeetingFixture(
			testfixtures.WithRoomID("room-b"),
			testfixtures.WithStart(clock.Now().Add(time.Hour)),
		).CreateParams()
		if _, err := reg.Create(context.Background(), params); err != nil {
			t.Errorf("re-create during sweep failed: %v", err)
		}
	}

	removed := reg.Sweep(context.Background(), clock.Now())
	if len(removed) != 1 || removed[0] != "room-a" {
		t.Fatalf("expected only room-a reported, got %v", removed)
	}
	if _, err := reg.Get("room-b"); err != nil {
		t.Fatalf("re-created meeting must survive the sweep: %v", err)
	}
}

func TestOccurrences(t *testing.T) {
	t.Parallel()

	reg, _, _, clock := newTestRegistry(t)

	params := validParams(clock)
	params.Start = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	params.Recurrence = &recurrence.Spec{
		Frequency: recurrence.FrequencyWeekly,
		Interval:  1,
		DayOfWeek: weekdayPtr(time.Monday),
	}
	if _, err := reg.Create(context.Background(), params); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	from := params.Start
	to := params.Start.AddDate(0, 0, 21)
	occurrences, err := reg.Occurrences("room-1", from, to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(occurrences) != 4 {
		t.Fatalf("expected 4 Mondays in the window, got %d: %v", len(occurrences), occurrences)
	}
	for _, occ := range occurrences {
		if occ.Weekday() != time.Monday {
			t.Fatalf("expected Monday occurrence, got %v", occ)
		}
	}
}

// failingStore wraps a Store and fails selected operations.
type failingStore struct {
	persistence.Store
	failDelete bool
}

func (s *failingStore) DeleteMeeting(ctx context.Context, roomID string) error {
	if s.failDelete {
		return errors.New("disk on fire")
	}
	return s.Store.DeleteMeeting(ctx, roomID)
}

// hookStore wraps a Store and invokes a callback before deletes.
type hookStore struct {
	persistence.Store
	onDelete func(roomID string)
}

func (s *hookStore) DeleteMeeting(ctx context.Context, roomID string) error {
	if s.onDelete != nil {
		s.onDelete(roomID)
	}
	return s.Store.DeleteMeeting(ctx, roomID)
}
