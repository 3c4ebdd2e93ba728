package store

import (
	"context"
	"fmt"

	"github.com/Remijang/cnl-final-project-sub000/internal/database"
	"github.com/Remijang/cnl-final-project-sub000/internal/model"
)

// GrantStore is the table of explicit per-user calendar grants. A write
// grant does not imply a read row; callers materialize both.
type GrantStore struct {
	db database.Querier
}

func NewGrantStore(db database.Querier) *GrantStore {
	return &GrantStore{db: db}
}

func scanGrant(scanner interface{ Scan(...any) error }) (*model.Grant, error) {
	var g model.Grant
	err := scanner.Scan(&g.CalendarID, &g.UserID, &g.Role, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

const grantCols = `calendar_id, user_id, role, created_at`

// Grant inserts the row unless the exact (calendar, user, role) already
// exists. It reports whether a row was added.
func (s *GrantStore) Grant(ctx context.Context, calendarID, userID int64, role model.Role) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO calendar_grants (calendar_id, user_id, role) VALUES (?, ?, ?)`,
		calendarID, userID, role,
	)
	if err != nil {
		return false, fmt.Errorf("insert grant: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Revoke deletes the user's grant of role, or every role when role is nil.
// It returns the user ids whose rows were deleted; an empty result means
// there was nothing to revoke.
func (s *GrantStore) Revoke(ctx context.Context, calendarID, userID int64, role *model.Role) ([]int64, error) {
	query := `DELETE FROM calendar_grants WHERE calendar_id = ? AND user_id = ?`
	args := []any{calendarID, userID}
	if role != nil {
		query += ` AND role = ?`
		args = append(args, *role)
	}
	return s.deleteReturning(ctx, query+` RETURNING user_id`, args...)
}

// RevokeAll deletes every grant of role on the calendar, or every grant
// when role is nil, returning the affected user ids.
func (s *GrantStore) RevokeAll(ctx context.Context, calendarID int64, role *model.Role) ([]int64, error) {
	query := `DELETE FROM calendar_grants WHERE calendar_id = ?`
	args := []any{calendarID}
	if role != nil {
		query += ` AND role = ?`
		args = append(args, *role)
	}
	return s.deleteReturning(ctx, query+` RETURNING user_id`, args...)
}

func (s *GrantStore) deleteReturning(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("delete grants: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan revoked grant: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("delete grants: %w", err)
	}
	return uniqueIDs(ids), nil
}

// ListUserIDs returns the users holding at least role: for RoleRead that
// is any read or write row, for RoleWrite only write rows.
func (s *GrantStore) ListUserIDs(ctx context.Context, calendarID int64, role model.Role) ([]int64, error) {
	if role == model.RoleWrite {
		return s.ListUserIDsWithRole(ctx, calendarID, model.RoleWrite)
	}
	return s.queryIDs(ctx,
		`SELECT DISTINCT user_id FROM calendar_grants WHERE calendar_id = ? ORDER BY user_id`,
		calendarID,
	)
}

// ListUserIDsWithRole returns the users holding a row of exactly role.
func (s *GrantStore) ListUserIDsWithRole(ctx context.Context, calendarID int64, role model.Role) ([]int64, error) {
	return s.queryIDs(ctx,
		`SELECT user_id FROM calendar_grants WHERE calendar_id = ? AND role = ? ORDER BY user_id`,
		calendarID, role,
	)
}

func (s *GrantStore) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list granted users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan granted user: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Has reports whether the user holds any of the given roles.
func (s *GrantStore) Has(ctx context.Context, calendarID, userID int64, roles ...model.Role) (bool, error) {
	if len(roles) == 0 {
		return false, nil
	}
	args := []any{calendarID, userID}
	for _, r := range roles {
		args = append(args, r)
	}
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM calendar_grants WHERE calendar_id = ? AND user_id = ? AND role IN (`+placeholders(len(roles))+`))`,
		args...,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check grant: %w", err)
	}
	return exists, nil
}

func (s *GrantStore) List(ctx context.Context, calendarID int64) ([]model.Grant, error) {
	return s.list(ctx,
		`SELECT `+grantCols+` FROM calendar_grants WHERE calendar_id = ? ORDER BY user_id, role`,
		calendarID,
	)
}

func (s *GrantStore) ListForUser(ctx context.Context, calendarID, userID int64) ([]model.Grant, error) {
	return s.list(ctx,
		`SELECT `+grantCols+` FROM calendar_grants WHERE calendar_id = ? AND user_id = ? ORDER BY role`,
		calendarID, userID,
	)
}

func (s *GrantStore) list(ctx context.Context, query string, args ...any) ([]model.Grant, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	var grants []model.Grant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		grants = append(grants, *g)
	}
	return grants, rows.Err()
}
