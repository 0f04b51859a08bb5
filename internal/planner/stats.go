package planner

import (
	"sort"
	"time"

	"cargoplan/internal/ledger"
	"cargoplan/internal/network"
	"cargoplan/internal/opt"
	"cargoplan/internal/sla"
)

type ArcUtilization struct {
	ArcID    string          `json:"arcId"`
	Kind     network.ArcKind `json:"kind"`
	Capacity int             `json:"capacity"`
	Used     int             `json:"used"`
	Percent  float64         `json:"percent"`
}

type Summary struct {
	TotalOrders      int                `json:"totalOrders"`
	Assigned         int                `json:"assigned"`
	AssignedPct      float64            `json:"assignedPct"`
	TotalQuantity    int                `json:"totalQuantity"`
	AssignedQuantity int                `json:"assignedQuantity"`
	AvgTransitHours  float64            `json:"avgTransitHours"`
	AvgHops          float64            `json:"avgHops"`
	Unassigned       []string           `json:"unassigned"`
	Network          network.BuildStats `json:"network"`
	ArcUtilization   []ArcUtilization   `json:"arcUtilization"`
}

// Summarize reports plan coverage and the utilization of every arc the plan
// uses, busiest first.
func Summarize(g *network.Graph, l *ledger.Ledger, sol opt.Solution) Summary {
	s := Summary{TotalOrders: len(sol.Assignments), Network: g.Stats(), Unassigned: []string{}}
	used := map[string]bool{}
	transit, hops := 0.0, 0
	for _, a := range sol.Assignments {
		s.TotalQuantity += a.Order.Quantity
		if !a.Assigned() {
			s.Unassigned = append(s.Unassigned, a.Order.ID)
			continue
		}
		s.Assigned++
		s.AssignedQuantity += a.Order.Quantity
		transit += a.Route.TransitHours(a.Order.ReadyAt)
		hops += a.Route.Hops
		for _, id := range a.Route.ArcIDs {
			used[id] = true
		}
	}
	if s.TotalOrders > 0 {
		s.AssignedPct = 100 * float64(s.Assigned) / float64(s.TotalOrders)
	}
	if s.Assigned > 0 {
		s.AvgTransitHours = transit / float64(s.Assigned)
		s.AvgHops = float64(hops) / float64(s.Assigned)
	}
	for id := range used {
		a, ok := g.Arc(id)
		if !ok {
			continue
		}
		u := ArcUtilization{ArcID: id, Kind: a.Kind, Capacity: a.Capacity, Used: l.Used(id)}
		if a.Capacity > 0 {
			u.Percent = 100 * float64(u.Used) / float64(a.Capacity)
		}
		s.ArcUtilization = append(s.ArcUtilization, u)
	}
	sort.Slice(s.ArcUtilization, func(i, j int) bool {
		a, b := s.ArcUtilization[i], s.ArcUtilization[j]
		if a.Percent != b.Percent {
			return a.Percent > b.Percent
		}
		return a.ArcID < b.ArcID
	})
	return s
}

type RouteCheck struct {
	OrderID           string    `json:"orderId"`
	RespectsReadyTime bool      `json:"respectsReadyTime"`
	MeetsSLA          bool      `json:"meetsSla"`
	Deadline          time.Time `json:"deadline"`
	PickupAt          time.Time `json:"pickupAt"`
}

// Check evaluates every assigned route against its order's timing rules.
func Check(ev sla.Evaluator, sol opt.Solution) []RouteCheck {
	var out []RouteCheck
	for _, a := range sol.Assignments {
		if !a.Assigned() {
			continue
		}
		dl, _ := ev.Deadline(a.Route, a.Order)
		out = append(out, RouteCheck{
			OrderID:           a.Order.ID,
			RespectsReadyTime: ev.RespectsReadyTime(a.Route, a.Order),
			MeetsSLA:          ev.MeetsSLA(a.Route, a.Order),
			Deadline:          dl,
			PickupAt:          ev.PickupTime(a.Route),
		})
	}
	return out
}
