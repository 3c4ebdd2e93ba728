package access

import (
	"context"

	"github.com/Remijang/cnl-final-project-sub000/internal/apperr"
	"github.com/Remijang/cnl-final-project-sub000/internal/database"
	"github.com/Remijang/cnl-final-project-sub000/internal/model"
	"github.com/Remijang/cnl-final-project-sub000/internal/store"
)

// Evaluator answers read/write questions against current state. Nothing is
// cached: a revocation is visible to the very next check.
type Evaluator struct {
	runner *database.Runner
}

func NewEvaluator(runner *database.Runner) *Evaluator {
	return &Evaluator{runner: runner}
}

// CanRead is true for the owner, for anyone when the calendar is visible,
// and for holders of a read or write grant.
func (e *Evaluator) CanRead(ctx context.Context, calendarID, userID int64) (bool, error) {
	var ok bool
	err := e.runner.Read(ctx, func(ctx context.Context, q database.Querier) error {
		st := store.New(q)
		cal, err := loadCalendar(ctx, st, calendarID)
		if err != nil {
			return err
		}
		ok, err = canRead(ctx, st, cal, userID)
		return err
	})
	return ok, err
}

// CanWrite is true for the owner and for holders of a write grant.
func (e *Evaluator) CanWrite(ctx context.Context, calendarID, userID int64) (bool, error) {
	var ok bool
	err := e.runner.Read(ctx, func(ctx context.Context, q database.Querier) error {
		st := store.New(q)
		cal, err := loadCalendar(ctx, st, calendarID)
		if err != nil {
			return err
		}
		ok, err = canWrite(ctx, st, cal, userID)
		return err
	})
	return ok, err
}

func canRead(ctx context.Context, st *store.Stores, cal *model.Calendar, userID int64) (bool, error) {
	if cal.OwnerID == userID || cal.Visibility {
		return true, nil
	}
	return st.Grants.Has(ctx, cal.ID, userID, model.RoleRead, model.RoleWrite)
}

func canWrite(ctx context.Context, st *store.Stores, cal *model.Calendar, userID int64) (bool, error) {
	if cal.OwnerID == userID {
		return true, nil
	}
	return st.Grants.Has(ctx, cal.ID, userID, model.RoleWrite)
}

func loadCalendar(ctx context.Context, st *store.Stores, calendarID int64) (*model.Calendar, error) {
	cal, err := st.Calendars.GetByID(ctx, calendarID)
	if err != nil {
		return nil, err
	}
	if cal == nil {
		return nil, apperr.NotFound("calendar %d", calendarID)
	}
	return cal, nil
}

// requireOwner loads the calendar and fails unless callerID owns it.
func requireOwner(ctx context.Context, st *store.Stores, calendarID, callerID int64) (*model.Calendar, error) {
	cal, err := loadCalendar(ctx, st, calendarID)
	if err != nil {
		return nil, err
	}
	if cal.OwnerID != callerID {
		return nil, apperr.PermissionDenied("calendar %d is not owned by user %d", calendarID, callerID)
	}
	return cal, nil
}

func requireRead(ctx context.Context, st *store.Stores, calendarID, userID int64) (*model.Calendar, error) {
	cal, err := loadCalendar(ctx, st, calendarID)
	if err != nil {
		return nil, err
	}
	ok, err := canRead(ctx, st, cal, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.PermissionDenied("user %d cannot read calendar %d", userID, calendarID)
	}
	return cal, nil
}

func requireWrite(ctx context.Context, st *store.Stores, calendarID, userID int64) (*model.Calendar, error) {
	cal, err := loadCalendar(ctx, st, calendarID)
	if err != nil {
		return nil, err
	}
	ok, err := canWrite(ctx, st, cal, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.PermissionDenied("user %d cannot write calendar %d", userID, calendarID)
	}
	return cal, nil
}
