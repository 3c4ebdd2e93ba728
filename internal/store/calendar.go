package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Remijang/cnl-final-project-sub000/internal/database"
	"github.com/Remijang/cnl-final-project-sub000/internal/model"
)

// CalendarStore persists calendars and their visibility and link flags.
// Link tokens are written once at creation and never changed.
type CalendarStore struct {
	db database.Querier
}

func NewCalendarStore(db database.Querier) *CalendarStore {
	return &CalendarStore{db: db}
}

func scanCalendar(scanner interface{ Scan(...any) error }) (*model.Calendar, error) {
	var c model.Calendar
	err := scanner.Scan(
		&c.ID, &c.OwnerID, &c.Title, &c.Visibility,
		&c.ReadLink, &c.ReadLinkEnabled, &c.WriteLink, &c.WriteLinkEnabled,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const calendarCols = `id, owner_id, title, visibility, read_link, read_link_enabled, write_link, write_link_enabled, created_at, updated_at`

func (s *CalendarStore) Create(ctx context.Context, ownerID int64, title, readLink, writeLink string) (*model.Calendar, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO calendars (owner_id, title, read_link, write_link) VALUES (?, ?, ?, ?)`,
		ownerID, title, readLink, writeLink,
	)
	if err != nil {
		return nil, fmt.Errorf("insert calendar: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *CalendarStore) GetByID(ctx context.Context, id int64) (*model.Calendar, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+calendarCols+` FROM calendars WHERE id = ?`, id)
	c, err := scanCalendar(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get calendar: %w", err)
	}
	return c, nil
}

// GetByLink finds the calendar whose link of the given kind equals token.
func (s *CalendarStore) GetByLink(ctx context.Context, kind model.Role, token string) (*model.Calendar, error) {
	col := "read_link"
	if kind == model.RoleWrite {
		col = "write_link"
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+calendarCols+` FROM calendars WHERE `+col+` = ?`, token)
	c, err := scanCalendar(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get calendar by link: %w", err)
	}
	return c, nil
}

func (s *CalendarStore) ListByOwner(ctx context.Context, ownerID int64) ([]model.Calendar, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+calendarCols+` FROM calendars WHERE owner_id = ? ORDER BY id`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
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

func (s *CalendarStore) SetVisibility(ctx context.Context, id int64, visible bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE calendars SET visibility = ? WHERE id = ?`, visible, id)
	if err != nil {
		return fmt.Errorf("update visibility: %w", err)
	}
	return nil
}

func (s *CalendarStore) SetLinkEnabled(ctx context.Context, id int64, kind model.Role, enabled bool) error {
	col := "read_link_enabled"
	if kind == model.RoleWrite {
		col = "write_link_enabled"
	}
	_, err := s.db.ExecContext(ctx, `UPDATE calendars SET `+col+` = ? WHERE id = ?`, enabled, id)
	if err != nil {
		return fmt.Errorf("update %s: %w", col, err)
	}
	return nil
}

func (s *CalendarStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM calendars WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete calendar: %w", err)
	}
	return nil
}
