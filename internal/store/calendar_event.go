package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Remijang/cnl-final-project-sub000/internal/database"
	"github.com/Remijang/cnl-final-project-sub000/internal/model"
)

type EventStore struct {
	db database.Querier
}

func NewEventStore(db database.Querier) *EventStore {
	return &EventStore{db: db}
}

const eventCols = `id, calendar_id, title, description, start_time, end_time, created_at`

func scanEvent(scanner interface{ Scan(...any) error }) (*model.CalendarEvent, error) {
	var e model.CalendarEvent
	err := scanner.Scan(&e.ID, &e.CalendarID, &e.Title, &e.Description, &e.StartTime, &e.EndTime, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *EventStore) Create(ctx context.Context, calendarID int64, title, description string, startTime, endTime time.Time) (*model.CalendarEvent, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO calendar_events (calendar_id, title, description, start_time, end_time)
		 VALUES (?, ?, ?, ?, ?)`,
		calendarID, title, description, startTime.UTC(), endTime.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert calendar event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

func (s *EventStore) GetByID(ctx context.Context, id int64) (*model.CalendarEvent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventCols+` FROM calendar_events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query calendar event: %w", err)
	}
	return e, nil
}

// ListByCalendar returns the calendar's events overlapping [start, end).
func (s *EventStore) ListByCalendar(ctx context.Context, calendarID int64, start, end time.Time) ([]model.CalendarEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventCols+`
		 FROM calendar_events
		 WHERE calendar_id = ? AND start_time < ? AND end_time > ?
		 ORDER BY start_time ASC`,
		calendarID, end.UTC(), start.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query calendar events: %w", err)
	}
	defer rows.Close()

	var events []model.CalendarEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan calendar event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (s *EventStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM calendar_events WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete calendar event: %w", err)
	}
	return nil
}
