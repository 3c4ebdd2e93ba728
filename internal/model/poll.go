package model

import "time"

type PollState string

const (
	PollOpen      PollState = "open"
	PollConfirmed PollState = "confirmed"
	PollCancelled PollState = "cancelled"
)

type Poll struct {
	ID                   int64     `json:"id"`
	OwnerID              int64     `json:"owner_id"`
	Title                string    `json:"title"`
	Description          string    `json:"description"`
	IsConfirmed          bool      `json:"is_confirmed"`
	ConfirmedTimeRangeID *int64    `json:"confirmed_time_range_id"`
	IsCancelled          bool      `json:"is_cancelled"`
	CreatedAt            time.Time `json:"created_at"`
}

// State derives the lifecycle state from the stored flags. Cancellation
// wins if both flags are somehow set.
func (p *Poll) State() PollState {
	switch {
	case p.IsCancelled:
		return PollCancelled
	case p.IsConfirmed:
		return PollConfirmed
	default:
		return PollOpen
	}
}

type TimeRange struct {
	ID     int64     `json:"id"`
	PollID int64     `json:"poll_id"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

type Vote struct {
	PollID      int64     `json:"poll_id"`
	TimeRangeID int64     `json:"time_range_id"`
	UserID      int64     `json:"user_id"`
	IsAvailable bool      `json:"is_available"`
	VotedAt     time.Time `json:"voted_at"`
}

// TimeRangeTally is a time range with its count of available votes.
type TimeRangeTally struct {
	TimeRange
	AvailableCount int `json:"available_count"`
}

type PollStatus struct {
	Poll       Poll             `json:"poll"`
	State      PollState        `json:"state"`
	TimeRanges []TimeRangeTally `json:"time_ranges"`
}
