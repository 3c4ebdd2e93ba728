package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Remijang/cnl-final-project-sub000/internal/database"
	"github.com/Remijang/cnl-final-project-sub000/internal/model"
)

// PollStore persists polls with their time ranges, votes and invitations.
type PollStore struct {
	db database.Querier
}

func NewPollStore(db database.Querier) *PollStore {
	return &PollStore{db: db}
}

func scanPoll(scanner interface{ Scan(...any) error }) (*model.Poll, error) {
	var p model.Poll
	var confirmed sql.NullInt64
	err := scanner.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.IsConfirmed, &confirmed, &p.IsCancelled, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if confirmed.Valid {
		p.ConfirmedTimeRangeID = &confirmed.Int64
	}
	return &p, nil
}

const pollCols = `id, owner_id, title, description, is_confirmed, confirmed_time_range_id, is_cancelled, created_at`

func (s *PollStore) Create(ctx context.Context, ownerID int64, title, description string) (*model.Poll, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO polls (owner_id, title, description) VALUES (?, ?, ?)`,
		ownerID, title, description,
	)
	if err != nil {
		return nil, fmt.Errorf("insert poll: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *PollStore) GetByID(ctx context.Context, id int64) (*model.Poll, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pollCols+` FROM polls WHERE id = ?`, id)
	p, err := scanPoll(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get poll: %w", err)
	}
	return p, nil
}

// ListOpen returns polls that are neither confirmed nor cancelled.
func (s *PollStore) ListOpen(ctx context.Context) ([]model.Poll, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+pollCols+` FROM polls WHERE is_cancelled = 0 AND is_confirmed = 0 ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list polls: %w", err)
	}
	defer rows.Close()

	var polls []model.Poll
	for rows.Next() {
		p, err := scanPoll(rows)
		if err != nil {
			return nil, fmt.Errorf("scan poll: %w", err)
		}
		polls = append(polls, *p)
	}
	return polls, rows.Err()
}

func (s *PollStore) Confirm(ctx context.Context, pollID, timeRangeID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE polls SET is_confirmed = 1, confirmed_time_range_id = ? WHERE id = ?`,
		timeRangeID, pollID,
	)
	if err != nil {
		return fmt.Errorf("confirm poll: %w", err)
	}
	return nil
}

func (s *PollStore) Cancel(ctx context.Context, pollID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE polls SET is_cancelled = 1 WHERE id = ?`, pollID)
	if err != nil {
		return fmt.Errorf("cancel poll: %w", err)
	}
	return nil
}

func (s *PollStore) AddTimeRange(ctx context.Context, pollID int64, start, end time.Time) (*model.TimeRange, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO poll_time_ranges (poll_id, start_time, end_time) VALUES (?, ?, ?)`,
		pollID, start.UTC(), end.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert time range: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &model.TimeRange{ID: id, PollID: pollID, Start: start.UTC(), End: end.UTC()}, nil
}

func (s *PollStore) TimeRanges(ctx context.Context, pollID int64) ([]model.TimeRange, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, poll_id, start_time, end_time FROM poll_time_ranges WHERE poll_id = ? ORDER BY start_time, id`,
		pollID,
	)
	if err != nil {
		return nil, fmt.Errorf("list time ranges: %w", err)
	}
	defer rows.Close()

	var ranges []model.TimeRange
	for rows.Next() {
		var tr model.TimeRange
		if err := rows.Scan(&tr.ID, &tr.PollID, &tr.Start, &tr.End); err != nil {
			return nil, fmt.Errorf("scan time range: %w", err)
		}
		ranges = append(ranges, tr)
	}
	return ranges, rows.Err()
}

// HasTimeRange reports whether timeRangeID belongs to the poll.
func (s *PollStore) HasTimeRange(ctx context.Context, pollID, timeRangeID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM poll_time_ranges WHERE id = ? AND poll_id = ?)`,
		timeRangeID, pollID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check time range: %w", err)
	}
	return exists, nil
}

// Tallies returns each time range of the poll with its count of
// available votes.
func (s *PollStore) Tallies(ctx context.Context, pollID int64) ([]model.TimeRangeTally, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tr.id, tr.poll_id, tr.start_time, tr.end_time,
		        (SELECT COUNT(*) FROM poll_votes v WHERE v.time_range_id = tr.id AND v.is_available = 1)
		 FROM poll_time_ranges tr
		 WHERE tr.poll_id = ?
		 ORDER BY tr.start_time, tr.id`,
		pollID,
	)
	if err != nil {
		return nil, fmt.Errorf("tally votes: %w", err)
	}
	defer rows.Close()

	var tallies []model.TimeRangeTally
	for rows.Next() {
		var t model.TimeRangeTally
		if err := rows.Scan(&t.ID, &t.PollID, &t.Start, &t.End, &t.AvailableCount); err != nil {
			return nil, fmt.Errorf("scan tally: %w", err)
		}
		tallies = append(tallies, t)
	}
	return tallies, rows.Err()
}

// UpsertVote records the user's availability for a time range, replacing
// any earlier vote for the same range.
func (s *PollStore) UpsertVote(ctx context.Context, pollID, timeRangeID, userID int64, available bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO poll_votes (poll_id, time_range_id, user_id, is_available)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (poll_id, time_range_id, user_id)
		 DO UPDATE SET is_available = excluded.is_available, voted_at = CURRENT_TIMESTAMP`,
		pollID, timeRangeID, userID, available,
	)
	if err != nil {
		return fmt.Errorf("upsert vote: %w", err)
	}
	return nil
}

func (s *PollStore) Votes(ctx context.Context, pollID int64) ([]model.Vote, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT poll_id, time_range_id, user_id, is_available, voted_at
		 FROM poll_votes WHERE poll_id = ? ORDER BY time_range_id, user_id`,
		pollID,
	)
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	defer rows.Close()

	var votes []model.Vote
	for rows.Next() {
		var v model.Vote
		if err := rows.Scan(&v.PollID, &v.TimeRangeID, &v.UserID, &v.IsAvailable, &v.VotedAt); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

// Invite records an invitation and reports false if it already existed.
func (s *PollStore) Invite(ctx context.Context, pollID, userID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO poll_invitations (poll_id, user_id) VALUES (?, ?)`,
		pollID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("insert invitation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *PollStore) InvitedUserIDs(ctx context.Context, pollID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM poll_invitations WHERE poll_id = ? ORDER BY user_id`,
		pollID,
	)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
