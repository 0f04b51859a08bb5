// Package cargo holds the order and itinerary values shared by the search,
// optimizer and planner packages.
package cargo

import (
	"strings"
	"time"
)

// Order is a quantity of cargo that becomes available at ReadyAt and must
// reach the airport Destination.
type Order struct {
	ID          string
	ClientID    string
	Destination string
	ReadyAt     time.Time // UTC
	Quantity    int
}

// CandidateRoute is one feasible itinerary for an order: an ordered chain of
// arc ids through the time-expanded network.
type CandidateRoute struct {
	OrderID    string
	Origin     string
	ArcIDs     []string
	Departure  time.Time
	Arrival    time.Time
	Hops       int
	Bottleneck int // minimum residual capacity seen at generation time
}

// Signature identifies a route by its exact arc sequence.
func (c CandidateRoute) Signature() string { return strings.Join(c.ArcIDs, ">") }

// TransitHours is the time between the order becoming ready and the route's arrival.
func (c CandidateRoute) TransitHours(ready time.Time) float64 {
	return c.Arrival.Sub(ready).Hours()
}
