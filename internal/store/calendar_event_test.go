package store

import (
	"context"
	"testing"
	"time"
)

func TestEventCreateAndList(t *testing.T) {
	_, st := setupTestDB(t)
	ctx := context.Background()
	owner := mustUser(t, st, "owner")
	c := mustCalendar(t, st, owner.ID)
	other := mustCalendar(t, st, owner.ID)

	start := time.Date(2026, 2, 5, 10, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 5, 11, 0, 0, 0, time.UTC)

	e, err := st.Events.Create(ctx, c.ID, "Team Meeting", "Weekly sync", start, end)
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	if e.Title != "Team Meeting" {
		t.Errorf("title = %q, want %q", e.Title, "Team Meeting")
	}
	if e.CalendarID != c.ID {
		t.Errorf("calendar_id = %d, want %d", e.CalendarID, c.ID)
	}
	st.Events.Create(ctx, other.ID, "Elsewhere", "", start, end)

	dayStart := time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)
	events, err := st.Events.ListByCalendar(ctx, c.ID, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}

	nextDay := dayStart.Add(24 * time.Hour)
	events, _ = st.Events.ListByCalendar(ctx, c.ID, nextDay, nextDay.Add(24*time.Hour))
	if len(events) != 0 {
		t.Errorf("events next day = %d, want 0", len(events))
	}
}

func TestEventDelete(t *testing.T) {
	_, st := setupTestDB(t)
	ctx := context.Background()
	owner := mustUser(t, st, "owner")
	c := mustCalendar(t, st, owner.ID)

	start := time.Date(2026, 2, 5, 10, 0, 0, 0, time.UTC)
	e, _ := st.Events.Create(ctx, c.ID, "Dentist", "", start, start.Add(time.Hour))

	if err := st.Events.Delete(ctx, e.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := st.Events.GetByID(ctx, e.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}
