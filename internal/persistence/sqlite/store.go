// Package sqlite implements the persistence.Store interface on a SQLite
// database using the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/meeting-scheduler/internal/persistence"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS meetings (
	room_id          TEXT PRIMARY KEY,
	title            TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	start_time       TEXT NOT NULL,
	duration_minutes INTEGER NOT NULL,
	time_zone        TEXT NOT NULL DEFAULT '',
	organizer_id     TEXT NOT NULL DEFAULT '',
	attendees        TEXT NOT NULL DEFAULT '[]',
	cron_schedule    TEXT NOT NULL DEFAULT '',
	rrule            TEXT NOT NULL DEFAULT '',
	next_occurrence  TEXT,
	status           TEXT NOT NULL,
	created_at       TEXT NOT NULL
);
`

// Store persists meeting snapshots in a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at the given DSN and
// bootstraps the schema.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", dsn, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: bootstrap schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// PutMeeting inserts or replaces the snapshot for the meeting's room.
func (s *Store) PutMeeting(ctx context.Context, meeting persistence.Meeting) error {
	attendees, err := json.Marshal(meeting.Attendees)
	if err != nil {
		return fmt.Errorf("sqlite: encode attendees: %w", err)
	}

	var next sql.NullString
	if meeting.NextOccurrence != nil {
		next.String = meeting.NextOccurrence.UTC().Format(time.RFC3339)
		next.Valid = true
	}

	query := `
		INSERT INTO meetings (room_id, title, description, start_time, duration_minutes, time_zone, organizer_id, attendees, cron_schedule, rrule, next_occurrence, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(room_id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			start_time = excluded.start_time,
			duration_minutes = excluded.duration_minutes,
			time_zone = excluded.time_zone,
			organizer_id = excluded.organizer_id,
			attendees = excluded.attendees,
			cron_schedule = excluded.cron_schedule,
			rrule = excluded.rrule,
			next_occurrence = excluded.next_occurrence,
			status = excluded.status,
			created_at = excluded.created_at
	`

	_, err = s.db.ExecContext(ctx, query,
		meeting.RoomID,
		meeting.Title,
		meeting.Description,
		meeting.Start.UTC().Format(time.RFC3339),
		meeting.DurationMinutes,
		meeting.TimeZone,
		meeting.OrganizerID,
		string(attendees),
		meeting.CronSchedule,
		meeting.RRule,
		next,
		meeting.Status,
		meeting.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("sqlite: put meeting %s: %w", meeting.RoomID, err)
	}
	return nil
}

// GetMeeting retrieves the snapshot for a room.
func (s *Store) GetMeeting(ctx context.Context, roomID string) (persistence.Meeting, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT room_id, title, description, start_time, duration_minutes, time_zone, organizer_id, attendees, cron_schedule, rrule, next_occurrence, status, created_at
		FROM meetings WHERE room_id = ?
	`, roomID)

	meeting, err := scanMeeting(row)
	if err == sql.ErrNoRows {
		return persistence.Meeting{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.Meeting{}, fmt.Errorf("sqlite: get meeting %s: %w", roomID, err)
	}
	return meeting, nil
}

// DeleteMeeting removes the snapshot for a room.
func (s *Store) DeleteMeeting(ctx context.Context, roomID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM meetings WHERE room_id = ?`, roomID)
	if err != nil {
		return fmt.Errorf("sqlite: delete meeting %s: %w", roomID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: delete meeting %s: %w", roomID, err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// ListMeetings returns all snapshots ordered by start time ascending.
func (s *Store) ListMeetings(ctx context.Context) ([]persistence.Meeting, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT room_id, title, description, start_time, duration_minutes, time_zone, organizer_id, attendees, cron_schedule, rrule, next_occurrence, status, created_at
		FROM meetings ORDER BY start_time ASC, room_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list meetings: %w", err)
	}
	defer rows.Close()

	var meetings []persistence.Meeting
	for rows.Next() {
		meeting, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: list meetings: %w", err)
		}
		meetings = append(meetings, meeting)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list meetings: %w", err)
	}
	return meetings, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeeting(row rowScanner) (persistence.Meeting, error) {
	var (
		meeting   persistence.Meeting
		start     string
		attendees string
		next      sql.NullString
		createdAt string
	)

	err := row.Scan(
		&meeting.RoomID,
		&meeting.Title,
		&meeting.Description,
		&start,
		&meeting.DurationMinutes,
		&meeting.TimeZone,
		&meeting.OrganizerID,
		&attendees,
		&meeting.CronSchedule,
		&meeting.RRule,
		&next,
		&meeting.Status,
		&createdAt,
	)
	if err != nil {
		return persistence.Meeting{}, err
	}

	if meeting.Start, err = time.Parse(time.RFC3339, start); err != nil {
		return persistence.Meeting{}, fmt.Errorf("parse start_time: %w", err)
	}
	if meeting.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return persistence.Meeting{}, fmt.Errorf("parse created_at: %w", err)
	}
	if next.Valid {
		parsed, err := time.Parse(time.RFC3339, next.String)
		if err != nil {
			return persistence.Meeting{}, fmt.Errorf("parse next_occurrence: %w", err)
		}
		meeting.NextOccurrence = &parsed
	}
	if err := json.Unmarshal([]byte(attendees), &meeting.Attendees); err != nil {
		return persistence.Meeting{}, fmt.Errorf("decode attendees: %w", err)
	}

	return meeting, nil
}
