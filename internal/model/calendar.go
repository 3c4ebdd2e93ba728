package model

import (
	"fmt"
	"time"
)

// Role is a per-calendar permission level. It doubles as the capability
// link kind: a read link grants RoleRead, a write link grants RoleWrite.
type Role string

const (
	RoleRead  Role = "read"
	RoleWrite Role = "write"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleRead, RoleWrite:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

type Calendar struct {
	ID               int64     `json:"id"`
	OwnerID          int64     `json:"owner_id"`
	Title            string    `json:"title"`
	Visibility       bool      `json:"visibility"`
	ReadLink         string    `json:"-"`
	ReadLinkEnabled  bool      `json:"read_link_enabled"`
	WriteLink        string    `json:"-"`
	WriteLinkEnabled bool      `json:"write_link_enabled"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Link returns the token and enabled flag of the given link kind.
func (c *Calendar) Link(kind Role) (token string, enabled bool) {
	if kind == RoleWrite {
		return c.WriteLink, c.WriteLinkEnabled
	}
	return c.ReadLink, c.ReadLinkEnabled
}

type Grant struct {
	CalendarID int64     `json:"calendar_id"`
	UserID     int64     `json:"user_id"`
	Role       Role      `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
}

type Subscription struct {
	UserID       int64     `json:"user_id"`
	CalendarID   int64     `json:"calendar_id"`
	SubscribedAt time.Time `json:"subscribed_at"`
}
