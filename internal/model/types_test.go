package model

import (
    "testing"
    "time"

    "cargoplan/internal/cargo"
    "cargoplan/internal/opt"
    "cargoplan/internal/planner"
)

func TestNewPlanCollectsReservations(t *testing.T) {
    ready := time.Date(2025, 9, 7, 0, 0, 0, 0, time.UTC)
    route := cargo.CandidateRoute{OrderID: "o1", Origin: "SPIM", ArcIDs: []string{"a", "b"}, Departure: ready, Arrival: ready.Add(10 * time.Hour), Hops: 2, Bottleneck: 30}
    res := &planner.Result{
        Hubs: []string{"SPIM"},
        Solution: opt.Solution{Assignments: []opt.Assignment{
            {Order: cargo.Order{ID: "o1", Quantity: 5, ReadyAt: ready}, Index: 0, Route: route},
            {Order: cargo.Order{ID: "o2", Quantity: 3, ReadyAt: ready}, Index: -1},
        }},
    }
    p := NewPlan("pln_1", "t1", res, ready)
    if p.Status != PlanCommitted || len(p.Assignments) != 2 {
        t.Fatalf("unexpected plan %+v", p)
    }
    if p.Reserved["a"] != 5 || p.Reserved["b"] != 5 || len(p.Reserved) != 2 {
        t.Fatalf("reserved %v", p.Reserved)
    }
    if p.Assignments[1].Assigned || p.Assignments[1].Route != nil {
        t.Fatalf("unassigned order carries a route")
    }
    if p.Assignments[0].Route.TransitHours != 10 {
        t.Fatalf("transit %v", p.Assignments[0].Route.TransitHours)
    }
}
