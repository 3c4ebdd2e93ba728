package access

import (
	"context"
	"database/sql"
	"time"

	"github.com/Remijang/cnl-final-project-sub000/internal/apperr"
	"github.com/Remijang/cnl-final-project-sub000/internal/database"
	"github.com/Remijang/cnl-final-project-sub000/internal/model"
	"github.com/Remijang/cnl-final-project-sub000/internal/store"
)

// EventInput is the writable part of an event.
type EventInput struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
}

func (in EventInput) validate() (EventInput, error) {
	title, err := validTitle(in.Title)
	if err != nil {
		return in, err
	}
	in.Title = title
	if in.StartTime.IsZero() || in.EndTime.IsZero() {
		return in, apperr.Validation("start_time and end_time are required")
	}
	if !in.EndTime.After(in.StartTime) {
		return in, apperr.Validation("end_time must be after start_time")
	}
	return in, nil
}

// Events stores events on calendars. Writers create and delete, readers list.
type Events struct {
	runner *database.Runner
}

func NewEvents(runner *database.Runner) *Events {
	return &Events{runner: runner}
}

func (e *Events) Create(ctx context.Context, calendarID, userID int64, in EventInput) (*model.CalendarEvent, error) {
	in, err := in.validate()
	if err != nil {
		return nil, err
	}
	var ev *model.CalendarEvent
	err = e.runner.InTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		st := store.New(tx)
		if _, err := requireWrite(ctx, st, calendarID, userID); err != nil {
			return err
		}
		var err error
		ev, err = st.Events.Create(ctx, calendarID, in.Title, in.Description, in.StartTime, in.EndTime)
		return err
	})
	return ev, err
}

// List returns events overlapping [start, end).
func (e *Events) List(ctx context.Context, calendarID, userID int64, start, end time.Time) ([]model.CalendarEvent, error) {
	if !end.After(start) {
		return nil, apperr.Validation("end must be after start")
	}
	var events []model.CalendarEvent
	err := e.runner.Read(ctx, func(ctx context.Context, q database.Querier) error {
		st := store.New(q)
		if _, err := requireRead(ctx, st, calendarID, userID); err != nil {
			return err
		}
		var err error
		events, err = st.Events.ListByCalendar(ctx, calendarID, start, end)
		return err
	})
	return events, err
}

func (e *Events) Delete(ctx context.Context, calendarID, eventID, userID int64) error {
	return e.runner.InTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		st := store.New(tx)
		if _, err := requireWrite(ctx, st, calendarID, userID); err != nil {
			return err
		}
		ev, err := st.Events.GetByID(ctx, eventID)
		if err != nil {
			return err
		}
		if ev == nil || ev.CalendarID != calendarID {
			return apperr.NotFound("event %d on calendar %d", eventID, calendarID)
		}
		return st.Events.Delete(ctx, eventID)
	})
}
