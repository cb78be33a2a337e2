// Package booking implements the reservation lifecycle: the status state
// machine and the service that drives reservations through it.
package booking

import "github.com/traverum/booking-service/internal/model"

// transitions is the only place allowed moves are listed.
var transitions = map[model.Status][]model.Status{
	model.StatusPending:        {model.StatusConfirmed, model.StatusDeclined, model.StatusCancelled},
	model.StatusConfirmed:      {model.StatusPendingPayment, model.StatusCancelled},
	model.StatusPendingPayment: {model.StatusCompleted, model.StatusCancelled},
}

// CanTransition reports whether a reservation may move from one status to
// another.  Terminal statuses have no outgoing moves.
func CanTransition(from, to model.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func IsTerminal(s model.Status) bool {
	switch s {
	case model.StatusCompleted, model.StatusDeclined, model.StatusCancelled:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func Valid(s model.Status) bool {
	_, ok := transitions[s]
	return ok || IsTerminal(s)
}
