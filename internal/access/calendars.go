package access

import (
	"context"
	"database/sql"
	"strings"

	"github.com/Remijang/cnl-final-project-sub000/internal/apperr"
	"github.com/Remijang/cnl-final-project-sub000/internal/database"
	"github.com/Remijang/cnl-final-project-sub000/internal/model"
	"github.com/Remijang/cnl-final-project-sub000/internal/store"
)

const maxTitleLen = 200

// Calendars is calendar CRUD gated by the evaluator.
type Calendars struct {
	runner *database.Runner
}

func NewCalendars(runner *database.Runner) *Calendars {
	return &Calendars{runner: runner}
}

func validTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", apperr.Validation("title is required")
	}
	if len(title) > maxTitleLen {
		return "", apperr.Validation("title must be at most %d characters", maxTitleLen)
	}
	return title, nil
}

// Create makes a private calendar with both links disabled and fresh
// tokens generated for each.
func (c *Calendars) Create(ctx context.Context, ownerID int64, title string) (*model.Calendar, error) {
	title, err := validTitle(title)
	if err != nil {
		return nil, err
	}
	readLink, err := NewLinkToken()
	if err != nil {
		return nil, err
	}
	writeLink, err := NewLinkToken()
	if err != nil {
		return nil, err
	}

	var cal *model.Calendar
	err = c.runner.InTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		cal, err = store.New(tx).Calendars.Create(ctx, ownerID, title, readLink, writeLink)
		return err
	})
	return cal, err
}

// Get returns the calendar to anyone who can read it.
func (c *Calendars) Get(ctx context.Context, calendarID, userID int64) (*model.Calendar, error) {
	var cal *model.Calendar
	err := c.runner.Read(ctx, func(ctx context.Context, q database.Querier) error {
		var err error
		cal, err = requireRead(ctx, store.New(q), calendarID, userID)
		return err
	})
	return cal, err
}

func (c *Calendars) ListOwned(ctx context.Context, ownerID int64) ([]model.Calendar, error) {
	var cals []model.Calendar
	err := c.runner.Read(ctx, func(ctx context.Context, q database.Querier) error {
		var err error
		cals, err = store.New(q).Calendars.ListByOwner(ctx, ownerID)
		return err
	})
	return cals, err
}

// Delete removes the calendar. Grants, subscriptions and events go with it.
func (c *Calendars) Delete(ctx context.Context, calendarID, callerID int64) error {
	return c.runner.InTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		st := store.New(tx)
		if _, err := requireOwner(ctx, st, calendarID, callerID); err != nil {
			return err
		}
		return st.Calendars.Delete(ctx, calendarID)
	})
}

// Subscribers lists the ids of users subscribed to the calendar, for its owner.
func (c *Calendars) Subscribers(ctx context.Context, calendarID, callerID int64) ([]int64, error) {
	var ids []int64
	err := c.runner.Read(ctx, func(ctx context.Context, q database.Querier) error {
		st := store.New(q)
		if _, err := requireOwner(ctx, st, calendarID, callerID); err != nil {
			return err
		}
		var err error
		ids, err = st.Subscriptions.ListUserIDs(ctx, calendarID)
		return err
	})
	if ids == nil && err == nil {
		ids = []int64{}
	}
	return ids, err
}

// Grants lists every grant row on the calendar for its owner.
func (c *Calendars) Grants(ctx context.Context, calendarID, callerID int64) ([]model.Grant, error) {
	var grants []model.Grant
	err := c.runner.Read(ctx, func(ctx context.Context, q database.Querier) error {
		st := store.New(q)
		if _, err := requireOwner(ctx, st, calendarID, callerID); err != nil {
			return err
		}
		var err error
		grants, err = st.Grants.List(ctx, calendarID)
		return err
	})
	return grants, err
}
