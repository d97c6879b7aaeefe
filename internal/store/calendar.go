// ABOUTME: Calendar event persistence and the per-invocation calendar handle used by tools
// ABOUTME: Each handle pins one pooled connection until the tool releases it

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shivsinghin/Voice-Assistant/internal/tools"
)

// queryer is satisfied by both *sql.DB and *sql.Conn.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const calendarEventColumns = `id, summary, start_at, end_at, all_day, created_at`

// CreateCalendarEvent stores a new event. Generates ID and CreatedAt if not set.
func (s *SQLiteStore) CreateCalendarEvent(ctx context.Context, ev *CalendarEvent) error {
	return insertCalendarEvent(ctx, s.db, ev)
}

// GetCalendarEvent retrieves an event by ID.
// Returns ErrNotFound if the event doesn't exist.
func (s *SQLiteStore) GetCalendarEvent(ctx context.Context, id string) (*CalendarEvent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+calendarEventColumns+` FROM calendar_events WHERE id = ?`, id)
	ev, err := scanCalendarEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ev, err
}

// ListCalendarEvents returns events overlapping [from, to), ordered by start.
func (s *SQLiteStore) ListCalendarEvents(ctx context.Context, from, to time.Time) ([]*CalendarEvent, error) {
	return listCalendarEvents(ctx, s.db, from, to)
}

// DeleteCalendarEvent removes an event.
// Returns ErrNotFound if the event doesn't exist.
func (s *SQLiteStore) DeleteCalendarEvent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM calendar_events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting calendar event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// OpenCalendar acquires a dedicated connection for one tool invocation.
// The caller must Close the returned handle.
func (s *SQLiteStore) OpenCalendar(ctx context.Context) (tools.Calendar, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring calendar connection: %w", err)
	}
	return &calendarHandle{conn: conn}, nil
}

type calendarHandle struct {
	conn *sql.Conn
}

func (h *calendarHandle) Events(ctx context.Context, from, to time.Time) ([]tools.Event, error) {
	stored, err := listCalendarEvents(ctx, h.conn, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]tools.Event, 0, len(stored))
	for _, ev := range stored {
		out = append(out, tools.Event{
			ID:      ev.ID,
			Summary: ev.Summary,
			Start:   ev.StartAt,
			End:     ev.EndAt,
			AllDay:  ev.AllDay,
		})
	}
	return out, nil
}

func (h *calendarHandle) Insert(ctx context.Context, ev tools.Event) (string, error) {
	stored := &CalendarEvent{
		ID:      ev.ID,
		Summary: ev.Summary,
		StartAt: ev.Start,
		EndAt:   ev.End,
		AllDay:  ev.AllDay,
	}
	if err := insertCalendarEvent(ctx, h.conn, stored); err != nil {
		return "", err
	}
	return stored.ID, nil
}

func (h *calendarHandle) Close() error {
	return h.conn.Close()
}

func insertCalendarEvent(ctx context.Context, q queryer, ev *CalendarEvent) error {
	if ev.EndAt.Before(ev.StartAt) {
		return fmt.Errorf("%w: end %s before start %s", ErrInvalidEvent, ev.EndAt, ev.StartAt)
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO calendar_events (`+calendarEventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		ev.ID,
		ev.Summary,
		formatTime(ev.StartAt),
		formatTime(ev.EndAt),
		ev.AllDay,
		formatTime(ev.CreatedAt),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: duplicate id %s", ErrInvalidEvent, ev.ID)
		}
		return fmt.Errorf("inserting calendar event: %w", err)
	}
	return nil
}

func listCalendarEvents(ctx context.Context, q queryer, from, to time.Time) ([]*CalendarEvent, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+calendarEventColumns+`
		FROM calendar_events
		WHERE start_at < ? AND end_at > ?
		ORDER BY start_at ASC, id ASC
	`, formatTime(to), formatTime(from))
	if err != nil {
		return nil, fmt.Errorf("querying calendar events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := []*CalendarEvent{}
	for rows.Next() {
		ev, err := scanCalendarEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating calendar events: %w", err)
	}
	return events, nil
}

func scanCalendarEvent(scanner interface{ Scan(dest ...any) error }) (*CalendarEvent, error) {
	var ev CalendarEvent
	var startStr, endStr, createdStr string
	if err := scanner.Scan(&ev.ID, &ev.Summary, &startStr, &endStr, &ev.AllDay, &createdStr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning calendar event: %w", err)
	}
	var err error
	if ev.StartAt, err = parseTime(startStr); err != nil {
		return nil, err
	}
	if ev.EndAt, err = parseTime(endStr); err != nil {
		return nil, err
	}
	if ev.CreatedAt, err = parseTime(createdStr); err != nil {
		return nil, err
	}
	return &ev, nil
}
