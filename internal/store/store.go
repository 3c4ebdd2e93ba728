package store

import (
	"strings"

	"github.com/Remijang/cnl-final-project-sub000/internal/database"
)

// Stores bundles every store bound to the same querier. Binding it to a
// *sql.Tx makes all of its statements part of that transaction.
type Stores struct {
	Users         *UserStore
	Groups        *GroupStore
	Calendars     *CalendarStore
	Grants        *GrantStore
	Subscriptions *SubscriptionStore
	Events        *EventStore
	Polls         *PollStore
}

func New(q database.Querier) *Stores {
	return &Stores{
		Users:         NewUserStore(q),
		Groups:        NewGroupStore(q),
		Calendars:     NewCalendarStore(q),
		Grants:        NewGrantStore(q),
		Subscriptions: NewSubscriptionStore(q),
		Events:        NewEventStore(q),
		Polls:         NewPollStore(q),
	}
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// uniqueIDs drops duplicates while keeping first-seen order.
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
