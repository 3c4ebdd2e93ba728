// Package access decides who may read or write a calendar, manages
// capability links and keeps subscriptions consistent with permissions.
//
// Every owner-gated mutation re-reads ownership and grants inside the
// transaction that performs it, and every revocation repairs subscriptions
// in that same transaction.
package access

import (
	"log/slog"

	"github.com/Remijang/cnl-final-project-sub000/internal/database"
)

type Manager struct {
	Evaluator     *Evaluator
	Links         *Links
	Subscriptions *Subscriptions
	Calendars     *Calendars
	Events        *Events
}

func New(runner *database.Runner, logger *slog.Logger) *Manager {
	return &Manager{
		Evaluator:     NewEvaluator(runner),
		Links:         NewLinks(runner, logger.With("component", "links")),
		Subscriptions: NewSubscriptions(runner, logger.With("component", "subscriptions")),
		Calendars:     NewCalendars(runner),
		Events:        NewEvents(runner),
	}
}
