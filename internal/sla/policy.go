// Package sla decides delivery windows and deadlines for orders.
package sla

import (
	"strings"
	"time"

	"cargoplan/internal/network"
)

type Policy struct {
	Intra  time.Duration // origin and destination on the same continent
	Inter  time.Duration
	Pickup time.Duration // reserved for the consignee at the destination
}

func Default() Policy {
	return Policy{Intra: 48 * time.Hour, Inter: 72 * time.Hour, Pickup: 2 * time.Hour}
}

// WithDefaults fills zero durations from Default.
func (p Policy) WithDefaults() Policy {
	d := Default()
	if p.Intra <= 0 {
		p.Intra = d.Intra
	}
	if p.Inter <= 0 {
		p.Inter = d.Inter
	}
	if p.Pickup < 0 {
		p.Pickup = d.Pickup
	}
	return p
}

func SameContinent(a, b network.Airport) bool {
	return strings.EqualFold(strings.TrimSpace(a.Continent), strings.TrimSpace(b.Continent))
}

func (p Policy) Window(origin, dest network.Airport) time.Duration {
	if SameContinent(origin, dest) {
		return p.Intra
	}
	return p.Inter
}

func (p Policy) Deadline(ready time.Time, window time.Duration) time.Time { return ready.Add(window) }

// LatestArrival is the last instant cargo may land and still leave the
// pickup margin before the deadline.
func (p Policy) LatestArrival(deadline time.Time) time.Time { return deadline.Add(-p.Pickup) }
