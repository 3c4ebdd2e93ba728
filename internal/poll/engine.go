// Package poll schedules meetings: an owner proposes fixed time ranges,
// invitees report availability, and the owner confirms one range or
// cancels the poll.
package poll

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/Remijang/cnl-final-project-sub000/internal/apperr"
	"github.com/Remijang/cnl-final-project-sub000/internal/database"
	"github.com/Remijang/cnl-final-project-sub000/internal/model"
	"github.com/Remijang/cnl-final-project-sub000/internal/store"
)

// Poll change actions passed to a Notifier.
const (
	ActionVoted     = "voted"
	ActionConfirmed = "confirmed"
	ActionCancelled = "cancelled"
)

// Notifier is told about poll changes after they commit.
type Notifier interface {
	PollChanged(pollID int64, action string)
}

type nopNotifier struct{}

func (nopNotifier) PollChanged(int64, string) {}

// Range is a proposed time range [Start, End).
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type VoteInput struct {
	TimeRangeID int64 `json:"time_range_id"`
	IsAvailable bool  `json:"is_available"`
}

// GroupInviteResult counts the members newly invited and those that
// already were.
type GroupInviteResult struct {
	Invited        int `json:"invited"`
	AlreadyInvited int `json:"already_invited"`
}

// Created is a new poll with its time ranges.
type Created struct {
	Poll       model.Poll        `json:"poll"`
	TimeRanges []model.TimeRange `json:"time_ranges"`
}

type Engine struct {
	runner   *database.Runner
	notifier Notifier
	logger   *slog.Logger
}

// NewEngine returns an Engine. A nil notifier discards change events.
func NewEngine(runner *database.Runner, notifier Notifier, logger *slog.Logger) *Engine {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Engine{runner: runner, notifier: notifier, logger: logger}
}

func (e *Engine) Create(ctx context.Context, ownerID int64, title, description string, ranges []Range) (*Created, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperr.Validation("title is required")
	}
	if len(ranges) == 0 {
		return nil, apperr.Validation("at least one time range is required")
	}
	for i, r := range ranges {
		if r.Start.IsZero() || r.End.IsZero() {
			return nil, apperr.Validation("time range %d: start and end are required", i)
		}
		if !r.End.After(r.Start) {
			return nil, apperr.Validation("time range %d: end must be after start", i)
		}
	}

	var out Created
	err := e.runner.InTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		st := store.New(tx)
		p, err := st.Polls.Create(ctx, ownerID, title, description)
		if err != nil {
			return err
		}
		out.Poll = *p
		for _, r := range ranges {
			tr, err := st.Polls.AddTimeRange(ctx, p.ID, r.Start, r.End)
			if err != nil {
				return err
			}
			out.TimeRanges = append(out.TimeRanges, *tr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("poll created", "poll_id", out.Poll.ID, "owner_id", ownerID, "time_ranges", len(out.TimeRanges))
	return &out, nil
}

func loadPoll(ctx context.Context, st *store.Stores, pollID int64) (*model.Poll, error) {
	p, err := st.Polls.GetByID(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.NotFound("poll %d", pollID)
	}
	return p, nil
}

func requireOwner(ctx context.Context, st *store.Stores, pollID, callerID int64) (*model.Poll, error) {
	p, err := loadPoll(ctx, st, pollID)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != callerID {
		return nil, apperr.PermissionDenied("poll %d is not owned by user %d", pollID, callerID)
	}
	return p, nil
}

// InviteUser invites one user and reports whether the invitation is new.
func (e *Engine) InviteUser(ctx context.Context, pollID, ownerID, userID int64) (bool, error) {
	var created bool
	err := e.runner.InTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		st := store.New(tx)
		if _, err := requireOwner(ctx, st, pollID, ownerID); err != nil {
			return err
		}
		u, err := st.Users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if u == nil {
			return apperr.NotFound("user %d", userID)
		}
		created, err = st.Polls.Invite(ctx, pollID, userID)
		return err
	})
	return created, err
}

// InviteUsername resolves username and invites that user.
func (e *Engine) InviteUsername(ctx context.Context, pollID, ownerID int64, username string) (int64, bool, error) {
	var (
		userID  int64
		created bool
	)
	err := e.runner.InTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		st := store.New(tx)
		if _, err := requireOwner(ctx, st, pollID, ownerID); err != nil {
			return err
		}
		u, err := st.Users.GetByUsername(ctx, username)
		if err != nil {
			return err
		}
		if u == nil {
			return apperr.NotFound("user %q", username)
		}
		userID = u.ID
		created, err = st.Polls.Invite(ctx, pollID, u.ID)
		return err
	})
	return userID, created, err
}

// InviteGroup invites every current member of the group.
func (e *Engine) InviteGroup(ctx context.Context, pollID, ownerID, groupID int64) (GroupInviteResult, error) {
	var res GroupInviteResult
	err := e.runner.InTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		st := store.New(tx)
		if _, err := requireOwner(ctx, st, pollID, ownerID); err != nil {
			return err
		}
		g, err := st.Groups.GetByID(ctx, groupID)
		if err != nil {
			return err
		}
		if g == nil {
			return apperr.NotFound("group %d", groupID)
		}
		members, err := st.Groups.MemberIDs(ctx, groupID)
		if err != nil {
			return err
		}
		for _, id := range members {
			created, err := st.Polls.Invite(ctx, pollID, id)
			if err != nil {
				return err
			}
			if created {
				res.Invited++
			} else {
				res.AlreadyInvited++
			}
		}
		return nil
	})
	return res, err
}

// Vote records a batch of availabilities. Every time range id must belong
// to the poll or nothing is written. A later vote on the same range
// replaces the earlier one. Votes are accepted in any poll state.
func (e *Engine) Vote(ctx context.Context, pollID, userID int64, votes []VoteInput) error {
	if len(votes) == 0 {
		return apperr.Validation("at least one vote is required")
	}
	seen := make(map[int64]bool, len(votes))
	for _, v := range votes {
		if seen[v.TimeRangeID] {
			return apperr.Validation("time range %d appears more than once", v.TimeRangeID)
		}
		seen[v.TimeRangeID] = true
	}

	err := e.runner.InTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		st := store.New(tx)
		if _, err := loadPoll(ctx, st, pollID); err != nil {
			return err
		}
		ranges, err := st.Polls.TimeRanges(ctx, pollID)
		if err != nil {
			return err
		}
		valid := make(map[int64]bool, len(ranges))
		for _, tr := range ranges {
			valid[tr.ID] = true
		}
		for _, v := range votes {
			if !valid[v.TimeRangeID] {
				return apperr.Validation("time range %d does not belong to poll %d", v.TimeRangeID, pollID)
			}
		}
		for _, v := range votes {
			if err := st.Polls.UpsertVote(ctx, pollID, v.TimeRangeID, userID, v.IsAvailable); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.notifier.PollChanged(pollID, ActionVoted)
	return nil
}

// Confirm fixes the meeting to one of the poll's time ranges.
func (e *Engine) Confirm(ctx context.Context, pollID, ownerID, timeRangeID int64) (*model.Poll, error) {
	var p *model.Poll
	err := e.runner.InTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		st := store.New(tx)
		var err error
		p, err = requireOwner(ctx, st, pollID, ownerID)
		if err != nil {
			return err
		}
		if s := p.State(); s != model.PollOpen {
			return apperr.Conflict("poll %d is %s", pollID, s)
		}
		ok, err := st.Polls.HasTimeRange(ctx, pollID, timeRangeID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NotFound("time range %d in poll %d", timeRangeID, pollID)
		}
		if err := st.Polls.Confirm(ctx, pollID, timeRangeID); err != nil {
			return err
		}
		p, err = loadPoll(ctx, st, pollID)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("poll confirmed", "poll_id", pollID, "time_range_id", timeRangeID)
	e.notifier.PollChanged(pollID, ActionConfirmed)
	return p, nil
}

func (e *Engine) Cancel(ctx context.Context, pollID, ownerID int64) error {
	err := e.runner.InTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		st := store.New(tx)
		p, err := requireOwner(ctx, st, pollID, ownerID)
		if err != nil {
			return err
		}
		if s := p.State(); s != model.PollOpen {
			return apperr.Conflict("poll %d is %s", pollID, s)
		}
		return st.Polls.Cancel(ctx, pollID)
	})
	if err != nil {
		return err
	}
	e.logger.Info("poll cancelled", "poll_id", pollID)
	e.notifier.PollChanged(pollID, ActionCancelled)
	return nil
}

// List returns the polls still open for voting.
func (e *Engine) List(ctx context.Context) ([]model.Poll, error) {
	var polls []model.Poll
	err := e.runner.Read(ctx, func(ctx context.Context, q database.Querier) error {
		var err error
		polls, err = store.New(q).Polls.ListOpen(ctx)
		return err
	})
	if polls == nil && err == nil {
		polls = []model.Poll{}
	}
	return polls, err
}

// Status returns the poll with per-range available counts. A cancelled
// poll is reported as not found.
func (e *Engine) Status(ctx context.Context, pollID int64) (*model.PollStatus, error) {
	var status *model.PollStatus
	err := e.runner.Read(ctx, func(ctx context.Context, q database.Querier) error {
		st := store.New(q)
		p, err := loadPoll(ctx, st, pollID)
		if err != nil {
			return err
		}
		if p.IsCancelled {
			return apperr.NotFound("poll %d", pollID)
		}
		tallies, err := st.Polls.Tallies(ctx, pollID)
		if err != nil {
			return err
		}
		status = &model.PollStatus{Poll: *p, State: p.State(), TimeRanges: tallies}
		return nil
	})
	return status, err
}

// Votes lists every ballot on the poll for its owner.
func (e *Engine) Votes(ctx context.Context, pollID, ownerID int64) ([]model.Vote, error) {
	var votes []model.Vote
	err := e.runner.Read(ctx, func(ctx context.Context, q database.Querier) error {
		st := store.New(q)
		if _, err := requireOwner(ctx, st, pollID, ownerID); err != nil {
			return err
		}
		var err error
		votes, err = st.Polls.Votes(ctx, pollID)
		return err
	})
	if votes == nil && err == nil {
		votes = []model.Vote{}
	}
	return votes, err
}

// Invitations lists invited user ids. Invitations are advisory and do not
// gate voting.
func (e *Engine) Invitations(ctx context.Context, pollID int64) ([]int64, error) {
	var ids []int64
	err := e.runner.Read(ctx, func(ctx context.Context, q database.Querier) error {
		st := store.New(q)
		if _, err := loadPoll(ctx, st, pollID); err != nil {
			return err
		}
		var err error
		ids, err = st.Polls.InvitedUserIDs(ctx, pollID)
		return err
	})
	if ids == nil && err == nil {
		ids = []int64{}
	}
	return ids, err
}
