// Package persistence defines the snapshot store the meeting registry
// writes through to, plus an in-memory implementation for tests and
// storage-less deployments.
package persistence

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("persistence: not found")

// Store exposes CRUD operations for meeting snapshots keyed by room.
type Store interface {
	PutMeeting(ctx context.Context, meeting Meeting) error
	GetMeeting(ctx context.Context, roomID string) (Meeting, error)
	DeleteMeeting(ctx context.Context, roomID string) error
	ListMeetings(ctx context.Context) ([]Meeting, error)
}

// MemoryStore is a mutex-guarded in-memory Store.
type MemoryStore struct {
	mu       sync.RWMutex
	meetings map[string]Meeting
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{meetings: make(map[string]Meeting)}
}

// PutMeeting inserts or replaces the snapshot for the meeting's room.
func (s *MemoryStore) PutMeeting(_ context.Context, meeting Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meetings[meeting.RoomID] = cloneMeeting(meeting)
	return nil
}

// GetMeeting retrieves the snapshot for a room.
func (s *MemoryStore) GetMeeting(_ context.Context, roomID string) (Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meeting, ok := s.meetings[roomID]
	if !ok {
		return Meeting{}, ErrNotFound
	}
	return cloneMeeting(meeting), nil
}

// DeleteMeeting removes the snapshot for a room.
func (s *MemoryStore) DeleteMeeting(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meetings[roomID]; !ok {
		return ErrNotFound
	}
	delete(s.meetings, roomID)
	return nil
}

// ListMeetings returns all snapshots ordered by start time ascending.
func (s *MemoryStore) ListMeetings(_ context.Context) ([]Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meetings := make([]Meeting, 0, len(s.meetings))
	for _, meeting := range s.meetings {
		meetings = append(meetings, cloneMeeting(meeting))
	}
	sort.Slice(meetings, func(i, j int) bool {
		if meetings[i].Start.Equal(meetings[j].Start) {
			return meetings[i].RoomID < meetings[j].RoomID
		}
		return meetings[i].Start.Before(meetings[j].Start)
	})
	return meetings, nil
}

func cloneMeeting(meeting Meeting) Meeting {
	out := meeting
	out.Attendees = append([]string(nil), meeting.Attendees...)
	if meeting.NextOccurrence != nil {
		next := *meeting.NextOccurrence
		out.NextOccurrence = &next
	}
	return out
}
