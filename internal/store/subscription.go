package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Remijang/cnl-final-project-sub000/internal/database"
	"github.com/Remijang/cnl-final-project-sub000/internal/model"
)

type SubscriptionStore struct {
	db database.Querier
}

func NewSubscriptionStore(db database.Querier) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

const subscriptionCols = `user_id, calendar_id, subscribed_at`

// Create inserts the subscription and reports false if it already existed.
func (s *SubscriptionStore) Create(ctx context.Context, userID, calendarID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO subscriptions (user_id, calendar_id) VALUES (?, ?)`,
		userID, calendarID,
	)
	if err != nil {
		return false, fmt.Errorf("insert subscription: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *SubscriptionStore) Get(ctx context.Context, userID, calendarID int64) (*model.Subscription, error) {
	var sub model.Subscription
	err := s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionCols+` FROM subscriptions WHERE user_id = ? AND calendar_id = ?`,
		userID, calendarID,
	).Scan(&sub.UserID, &sub.CalendarID, &sub.SubscribedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return &sub, nil
}

// Delete removes one subscription and reports whether it existed.
func (s *SubscriptionStore) Delete(ctx context.Context, userID, calendarID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE user_id = ? AND calendar_id = ?`,
		userID, calendarID,
	)
	if err != nil {
		return false, fmt.Errorf("delete subscription: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// DeleteExcept removes every subscription to the calendar whose user is not
// in keep, returning the number of rows deleted.
func (s *SubscriptionStore) DeleteExcept(ctx context.Context, calendarID int64, keep []int64) (int64, error) {
	query := `DELETE FROM subscriptions WHERE calendar_id = ?`
	args := []any{calendarID}
	if len(keep) > 0 {
		query += ` AND user_id NOT IN (` + placeholders(len(keep)) + `)`
		args = append(args, int64Args(keep)...)
	}
	return s.exec(ctx, query, args...)
}

// DeleteUsers removes the given users' subscriptions to the calendar.
func (s *SubscriptionStore) DeleteUsers(ctx context.Context, calendarID int64, userIDs []int64) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	args := append([]any{calendarID}, int64Args(userIDs)...)
	return s.exec(ctx,
		`DELETE FROM subscriptions WHERE calendar_id = ? AND user_id IN (`+placeholders(len(userIDs))+`)`,
		args...,
	)
}

func (s *SubscriptionStore) exec(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete subscriptions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// ListUserIDs returns the subscribers of a calendar.
func (s *SubscriptionStore) ListUserIDs(ctx context.Context, calendarID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM subscriptions WHERE calendar_id = ? ORDER BY user_id`,
		calendarID,
	)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListCalendars returns the calendars a user is subscribed to, oldest
// subscription first.
func (s *SubscriptionStore) ListCalendars(ctx context.Context, userID int64) ([]model.Calendar, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.owner_id, c.title, c.visibility, c.read_link, c.read_link_enabled,
		        c.write_link, c.write_link_enabled, c.created_at, c.updated_at
		 FROM calendars c
		 JOIN subscriptions s ON s.calendar_id = c.id
		 WHERE s.user_id = ?
		 ORDER BY s.subscribed_at, c.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list subscribed calendars: %w", err)
	}
	defer rows.Close()

	var calendars []model.Calendar
	for rows.Next() {
		c, err := scanCalendar(rows)
		if err != nil {
			return nil, fmt.Errorf("scan calendar: %w", err)
		}
		calendars = append(calendars, *c)
	}
	return calendars, rows.Err()
}
