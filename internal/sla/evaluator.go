package sla

import (
	"time"

	"cargoplan/internal/cargo"
	"cargoplan/internal/network"
)

// Evaluator checks a finished route against an order's timing rules.
type Evaluator struct {
	Policy Policy
	Graph  *network.Graph
}

func (e Evaluator) RespectsReadyTime(r cargo.CandidateRoute, o cargo.Order) bool {
	return !r.Departure.Before(o.ReadyAt)
}

// Deadline uses the origin of the route's first flight; a route without
// flights falls back to the route origin.
func (e Evaluator) Deadline(r cargo.CandidateRoute, o cargo.Order) (time.Time, bool) {
	origin := r.Origin
	for _, id := range r.ArcIDs {
		a, ok := e.Graph.Arc(id)
		if ok && a.Kind == network.KindFlight {
			origin = a.Flight.Origin
			break
		}
	}
	oa, ok1 := e.Graph.Airport(origin)
	da, ok2 := e.Graph.Airport(o.Destination)
	if !ok1 || !ok2 {
		return time.Time{}, false
	}
	return e.Policy.Deadline(o.ReadyAt, e.Policy.Window(oa, da)), true
}

func (e Evaluator) PickupTime(r cargo.CandidateRoute) time.Time { return r.Arrival.Add(e.Policy.Pickup) }

func (e Evaluator) MeetsSLA(r cargo.CandidateRoute, o cargo.Order) bool {
	dl, ok := e.Deadline(r, o)
	if !ok {
		return false
	}
	return !e.PickupTime(r).After(dl)
}
