package access

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/Remijang/cnl-final-project-sub000/internal/apperr"
	"github.com/Remijang/cnl-final-project-sub000/internal/database"
	"github.com/Remijang/cnl-final-project-sub000/internal/model"
	"github.com/Remijang/cnl-final-project-sub000/internal/store"
)

// VisibilityStatus is returned by visibility changes.
type VisibilityStatus struct {
	ID         int64 `json:"id"`
	Visibility bool  `json:"visibility"`
}

// Subscriptions owns the subscribed-calendars list of each user and the
// owner actions that can invalidate it.
type Subscriptions struct {
	runner *database.Runner
	logger *slog.Logger
}

func NewSubscriptions(runner *database.Runner, logger *slog.Logger) *Subscriptions {
	return &Subscriptions{runner: runner, logger: logger}
}

// SetVisibility flips public visibility. Turning it off unsubscribes every
// non-owner without an explicit read grant.
func (s *Subscriptions) SetVisibility(ctx context.Context, calendarID, callerID int64, visible bool) (VisibilityStatus, error) {
	var res cascadeResult
	err := s.runner.InTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		st := store.New(tx)
		cal, err := requireOwner(ctx, st, calendarID, callerID)
		if err != nil {
			return err
		}
		if err := st.Calendars.SetVisibility(ctx, cal.ID, visible); err != nil {
			return err
		}
		if visible {
			return nil
		}
		res, err = onVisibilityOff(ctx, st, cal)
		return err
	})
	if err != nil {
		return VisibilityStatus{}, err
	}
	if !visible {
		s.logger.Info("visibility disabled", "calendar_id", calendarID, "subscriptions_removed", res.unsubscribed)
	}
	return VisibilityStatus{ID: calendarID, Visibility: visible}, nil
}

// RevokeGrant removes one of the target user's grants. Removing a read
// grant also removes their subscription; removing a write grant leaves
// the read row and drops the subscription only if nothing else lets the
// user read.
func (s *Subscriptions) RevokeGrant(ctx context.Context, calendarID, callerID, targetID int64, role model.Role) error {
	var res cascadeResult
	err := s.runner.InTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		st := store.New(tx)
		cal, err := requireOwner(ctx, st, calendarID, callerID)
		if err != nil {
			return err
		}
		revoked, err := st.Grants.Revoke(ctx, cal.ID, targetID, &role)
		if err != nil {
			return err
		}
		if len(revoked) == 0 {
			return apperr.NotFound("%s grant for user %d on calendar %d", role, targetID, calendarID)
		}
		if role == model.RoleRead {
			res, err = onRevokeReadGrant(ctx, st, cal, targetID)
			return err
		}
		n, err := dropUnreadable(ctx, st, cal, revoked)
		res = cascadeResult{revoked: revoked, unsubscribed: n}
		return err
	})
	if err != nil {
		return err
	}
	s.logger.Info("grant revoked",
		"calendar_id", calendarID,
		"user_id", targetID,
		"role", role,
		"subscriptions_removed", res.unsubscribed,
	)
	return nil
}

// Subscribe requires read access at the moment of the insert.
func (s *Subscriptions) Subscribe(ctx context.Context, calendarID, userID int64) (*model.Subscription, error) {
	var sub *model.Subscription
	err := s.runner.InTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		st := store.New(tx)
		if _, err := requireRead(ctx, st, calendarID, userID); err != nil {
			return err
		}
		created, err := st.Subscriptions.Create(ctx, userID, calendarID)
		if err != nil {
			return err
		}
		if !created {
			return apperr.Conflict("user %d is already subscribed to calendar %d", userID, calendarID)
		}
		sub, err = st.Subscriptions.Get(ctx, userID, calendarID)
		return err
	})
	return sub, err
}

func (s *Subscriptions) Unsubscribe(ctx context.Context, calendarID, userID int64) error {
	return s.runner.InTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		deleted, err := store.New(tx).Subscriptions.Delete(ctx, userID, calendarID)
		if err != nil {
			return err
		}
		if !deleted {
			return apperr.NotFound("subscription of user %d to calendar %d", userID, calendarID)
		}
		return nil
	})
}

// List returns the calendars the user is subscribed to.
func (s *Subscriptions) List(ctx context.Context, userID int64) ([]model.Calendar, error) {
	var cals []model.Calendar
	err := s.runner.Read(ctx, func(ctx context.Context, q database.Querier) error {
		var err error
		cals, err = store.New(q).Subscriptions.ListCalendars(ctx, userID)
		return err
	})
	return cals, err
}
