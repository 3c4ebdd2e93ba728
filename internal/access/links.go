package access

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/Remijang/cnl-final-project-sub000/internal/apperr"
	"github.com/Remijang/cnl-final-project-sub000/internal/database"
	"github.com/Remijang/cnl-final-project-sub000/internal/model"
	"github.com/Remijang/cnl-final-project-sub000/internal/store"
)

const (
	linkTokenLength   = 32
	linkTokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// NewLinkToken returns a 32-character token drawn uniformly from letters
// and digits. Collisions are not checked.
func NewLinkToken() (string, error) {
	max := big.NewInt(int64(len(linkTokenAlphabet)))
	b := make([]byte, linkTokenLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate link token: %w", err)
		}
		b[i] = linkTokenAlphabet[n.Int64()]
	}
	return string(b), nil
}

// LinkStatus is what the owner sees for one link kind. Token is empty
// while the link is disabled.
type LinkStatus struct {
	ID      int64  `json:"id"`
	Enabled bool   `json:"enabled"`
	Token   string `json:"token,omitempty"`
}

// Links manages the read and write capability links of calendars.
type Links struct {
	runner *database.Runner
	logger *slog.Logger
}

func NewLinks(runner *database.Runner, logger *slog.Logger) *Links {
	return &Links{runner: runner, logger: logger}
}

func linkStatus(cal *model.Calendar, kind model.Role) LinkStatus {
	token, enabled := cal.Link(kind)
	ls := LinkStatus{ID: cal.ID, Enabled: enabled}
	if enabled {
		ls.Token = token
	}
	return ls
}

func (l *Links) Status(ctx context.Context, calendarID, callerID int64, kind model.Role) (LinkStatus, error) {
	var ls LinkStatus
	err := l.runner.Read(ctx, func(ctx context.Context, q database.Querier) error {
		cal, err := requireOwner(ctx, store.New(q), calendarID, callerID)
		if err != nil {
			return err
		}
		ls = linkStatus(cal, kind)
		return nil
	})
	return ls, err
}

func (l *Links) Enable(ctx context.Context, calendarID, callerID int64, kind model.Role) (LinkStatus, error) {
	var ls LinkStatus
	err := l.runner.InTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		st := store.New(tx)
		cal, err := requireOwner(ctx, st, calendarID, callerID)
		if err != nil {
			return err
		}
		if err := st.Calendars.SetLinkEnabled(ctx, cal.ID, kind, true); err != nil {
			return err
		}
		cal, err = loadCalendar(ctx, st, cal.ID)
		if err != nil {
			return err
		}
		ls = linkStatus(cal, kind)
		return nil
	})
	return ls, err
}

// Disable turns the link off and revokes what it handed out. Turning the
// read link off revokes every grant on the calendar together with those
// users' subscriptions; turning the write link off revokes write grants
// only.
func (l *Links) Disable(ctx context.Context, calendarID, callerID int64, kind model.Role) (LinkStatus, error) {
	var ls LinkStatus
	var res cascadeResult
	err := l.runner.InTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		st := store.New(tx)
		cal, err := requireOwner(ctx, st, calendarID, callerID)
		if err != nil {
			return err
		}
		if err := st.Calendars.SetLinkEnabled(ctx, cal.ID, kind, false); err != nil {
			return err
		}
		if kind == model.RoleRead {
			res, err = onReadLinkOff(ctx, st, cal)
		} else {
			res, err = onWriteLinkOff(ctx, st, cal)
		}
		if err != nil {
			return err
		}
		ls = LinkStatus{ID: cal.ID}
		return nil
	})
	if err != nil {
		return LinkStatus{}, err
	}
	l.logger.Info("link disabled",
		"calendar_id", calendarID,
		"kind", kind,
		"users_revoked", len(res.revoked),
		"subscriptions_removed", res.unsubscribed,
	)
	return ls, nil
}

// Claim lets any authenticated user redeem an enabled link. The token
// alone locates the calendar; calendarID must name that same calendar.
// It returns the caller's grants after the claim. The owner already holds
// every permission, so an owner claim grants nothing.
func (l *Links) Claim(ctx context.Context, calendarID int64, kind model.Role, token string, callerID int64) ([]model.Grant, error) {
	var grants []model.Grant
	err := l.runner.InTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		st := store.New(tx)
		cal, err := st.Calendars.GetByLink(ctx, kind, token)
		if err != nil {
			return err
		}
		if cal == nil {
			return apperr.NotFound("%s link", kind)
		}
		if cal.ID != calendarID {
			return apperr.InvalidLink("%s link does not belong to calendar %d", kind, calendarID)
		}
		if _, enabled := cal.Link(kind); !enabled {
			return apperr.PermissionDenied("%s link of calendar %d is disabled", kind, calendarID)
		}
		if cal.OwnerID == callerID {
			return nil
		}

		roles := []model.Role{model.RoleRead}
		if kind == model.RoleWrite {
			roles = []model.Role{model.RoleWrite, model.RoleRead}
		}
		for _, role := range roles {
			if _, err := st.Grants.Grant(ctx, cal.ID, callerID, role); err != nil {
				return err
			}
		}
		grants, err = st.Grants.ListForUser(ctx, cal.ID, callerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if grants == nil {
		grants = []model.Grant{}
	}
	return grants, nil
}
