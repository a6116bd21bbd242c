package persistence

import (
	"context"
	"errors"
	"testing"
	"time"
)

func sampleMeeting(roomID string, start time.Time) Meeting {
	next := start.AddDate(0, 0, 7)
	return Meeting{
		RoomID:          roomID,
		Title:           "Planning",
		Description:     "quarterly planning",
		Start:           start,
		DurationMinutes: 45,
		TimeZone:        "Europe/Berlin",
		OrganizerID:     "alice",
		Attendees:       []string{"bob", "carol"},
		CronSchedule:    "0 9 * * 1",
		RRule:           "RRULE:FREQ=WEEKLY;INTERVAL=1;BYDAY=MO",
		NextOccurrence:  &next,
		Status:          "scheduled",
		CreatedAt:       start.Add(-time.Hour),
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	ctx := context.Background()
	start := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

	want := sampleMeeting("room-1", start)
	if err := store.PutMeeting(ctx, want); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.GetMeeting(ctx, "room-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title != want.Title || !got.Start.Equal(want.Start) || len(got.Attendees) != 2 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.NextOccurrence == nil || !got.NextOccurrence.Equal(*want.NextOccurrence) {
		t.Fatalf("next occurrence mismatch: %+v", got.NextOccurrence)
	}
}

func TestMemoryStoreIsolatesCallers(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	ctx := context.Background()
	start := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

	original := sampleMeeting("room-1", start)
	if err := store.PutMeeting(ctx, original); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Mutating either the stored-from value or a fetched copy must not
	// affect what the store returns later.
	original.Attendees[0] = "mallory"
	fetched, err := store.GetMeeting(ctx, "room-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fetched.Attendees[1] = "mallory"

	again, err := store.GetMeeting(ctx, "room-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.Attendees[0] != "bob" || again.Attendees[1] != "carol" {
		t.Fatalf("stored attendees were mutated: %v", again.Attendees)
	}
}

func TestMemoryStorePutReplaces(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	ctx := context.Background()
	start := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

	first := sampleMeeting("room-1", start)
	if err := store.PutMeeting(ctx, first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second := sampleMeeting("room-1", start.Add(time.Hour))
	second.Title = "Replacement"
	if err := store.PutMeeting(ctx, second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.GetMeeting(ctx, "room-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title != "Replacement" {
		t.Fatalf("expected replacement, got %q", got.Title)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	ctx := context.Background()
	start := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

	if err := store.PutMeeting(ctx, sampleMeeting("room-1", start)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.DeleteMeeting(ctx, "room-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.GetMeeting(ctx, "room-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.DeleteMeeting(ctx, "room-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestMemoryStoreListSortsByStart(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

	for _, m := range []Meeting{
		sampleMeeting("room-b", base.Add(2*time.Hour)),
		sampleMeeting("room-a", base),
		sampleMeeting("room-c", base.Add(time.Hour)),
	} {
		if err := store.PutMeeting(ctx, m); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	meetings, err := store.ListMeetings(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(meetings) != 3 {
		t.Fatalf("expected 3 meetings, got %d", len(meetings))
	}
	if meetings[0].RoomID != "room-a" || meetings[1].RoomID != "room-c" || meetings[2].RoomID != "room-b" {
		t.Fatalf("unexpected order: %s, %s, %s", meetings[0].RoomID, meetings[1].RoomID, meetings[2].RoomID)
	}
}
