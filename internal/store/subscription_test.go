package store

import (
	"context"
	"fmt"
	"testing"
)

func TestSubscriptionCreateDuplicate(t *testing.T) {
	_, st := setupTestDB(t)
	ctx := context.Background()
	owner := mustUser(t, st, "owner")
	a := mustUser(t, st, "a")
	c := mustCalendar(t, st, owner.ID)

	created, err := st.Subscriptions.Create(ctx, a.ID, c.ID)
	if err != nil || !created {
		t.Fatalf("create = %v, %v", created, err)
	}
	created, err = st.Subscriptions.Create(ctx, a.ID, c.ID)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if created {
		t.Error("duplicate subscription should report false")
	}

	sub, err := st.Subscriptions.Get(ctx, a.ID, c.ID)
	if err != nil || sub == nil {
		t.Fatalf("get = %v, %v", sub, err)
	}
	if sub.SubscribedAt.IsZero() {
		t.Error("expected subscribed_at to be set")
	}
}

func TestSubscriptionDelete(t *testing.T) {
	_, st := setupTestDB(t)
	ctx := context.Background()
	owner := mustUser(t, st, "owner")
	a := mustUser(t, st, "a")
	c := mustCalendar(t, st, owner.ID)

	deleted, err := st.Subscriptions.Delete(ctx, a.ID, c.ID)
	if err != nil || deleted {
		t.Errorf("delete missing = %v, %v; want false", deleted, err)
	}

	st.Subscriptions.Create(ctx, a.ID, c.ID)
	deleted, err = st.Subscriptions.Delete(ctx, a.ID, c.ID)
	if err != nil || !deleted {
		t.Errorf("delete = %v, %v; want true", deleted, err)
	}
}

func TestSubscriptionBulkDeletes(t *testing.T) {
	_, st := setupTestDB(t)
	ctx := context.Background()
	owner := mustUser(t, st, "owner")
	a := mustUser(t, st, "a")
	b := mustUser(t, st, "b")
	d := mustUser(t, st, "d")
	c := mustCalendar(t, st, owner.ID)

	for _, u := range []int64{a.ID, b.ID, d.ID} {
		st.Subscriptions.Create(ctx, u, c.ID)
	}

	n, err := st.Subscriptions.DeleteExcept(ctx, c.ID, []int64{b.ID})
	if err != nil {
		t.Fatalf("delete except: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}
	left, _ := st.Subscriptions.ListUserIDs(ctx, c.ID)
	if fmt.Sprint(left) != fmt.Sprint([]int64{b.ID}) {
		t.Errorf("left = %v, want [%d]", left, b.ID)
	}

	n, err = st.Subscriptions.DeleteUsers(ctx, c.ID, nil)
	if err != nil || n != 0 {
		t.Errorf("delete no users = %d, %v", n, err)
	}
	n, err = st.Subscriptions.DeleteUsers(ctx, c.ID, []int64{b.ID})
	if err != nil || n != 1 {
		t.Errorf("delete users = %d, %v; want 1", n, err)
	}
}

func TestSubscriptionListCalendars(t *testing.T) {
	_, st := setupTestDB(t)
	ctx := context.Background()
	owner := mustUser(t, st, "owner")
	a := mustUser(t, st, "a")
	c1 := mustCalendar(t, st, owner.ID)
	c2 := mustCalendar(t, st, owner.ID)
	mustCalendar(t, st, owner.ID)

	st.Subscriptions.Create(ctx, a.ID, c1.ID)
	st.Subscriptions.Create(ctx, a.ID, c2.ID)

	cals, err := st.Subscriptions.ListCalendars(ctx, a.ID)
	if err != nil {
		t.Fatalf("list calendars: %v", err)
	}
	if len(cals) != 2 {
		t.Fatalf("calendars = %d, want 2", len(cals))
	}
}
