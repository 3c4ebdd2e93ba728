package model

import "time"

type CalendarEvent struct {
	ID          int64     `json:"id"`
	CalendarID  int64     `json:"calendar_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	CreatedAt   time.Time `json:"created_at"`
}
