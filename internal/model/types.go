package model

import (
    "time"

    "cargoplan/internal/cargo"
    "cargoplan/internal/ingest"
    "cargoplan/internal/opt"
    "cargoplan/internal/planner"
)

// PlanRequest is the body of POST /v1/plans: an inline scenario plus
// per-run overrides of the tenant's optimizer settings.
type PlanRequest struct {
    TenantID string `json:"tenantId,omitempty"`
    ingest.Scenario
    Seed         int64       `json:"seed,omitempty"`
    Candidates   int         `json:"candidates,omitempty"`
    TimeBudgetMs int         `json:"timeBudgetMs,omitempty"`
    WaitCapacity string      `json:"waitCapacity,omitempty"`
    Optimizer    *opt.Params `json:"optimizer,omitempty"`
    Diagnostics  bool        `json:"diagnostics,omitempty"`
    // FreshLedger plans against empty capacity instead of the tenant's
    // committed reservations.
    FreshLedger bool `json:"freshLedger,omitempty"`
}

type Plan struct {
    ID          string               `json:"id"`
    TenantID    string               `json:"tenantId"`
    Status      string               `json:"status"`
    CreatedAt   time.Time            `json:"createdAt"`
    Hubs        []string             `json:"hubs"`
    Summary     planner.Summary      `json:"summary"`
    Metrics     opt.Metrics          `json:"metrics"`
    Assignments []AssignmentOut      `json:"assignments"`
    Checks      []planner.RouteCheck `json:"checks,omitempty"`
    // Error is set when Status is failed.
    Error string `json:"error,omitempty"`
    // Reserved is this plan's own quantity per arc.
    Reserved map[string]int `json:"reserved"`
}

// PlanListItem is the compact row returned by GET /v1/plans.
type PlanListItem struct {
    ID          string    `json:"id"`
    Status      string    `json:"status"`
    CreatedAt   time.Time `json:"createdAt"`
    TotalOrders int       `json:"totalOrders"`
    Assigned    int       `json:"assigned"`
    BestScore   float64   `json:"bestScore"`
}

// Plan statuses. Only committed plans hold reservations; running and failed
// records exist for background runs.
const (
    PlanRunning   = "running"
    PlanCommitted = "committed"
    PlanFailed    = "failed"
)

type AssignmentOut struct {
    OrderID     string    `json:"orderId"`
    ClientID    string    `json:"clientId,omitempty"`
    Destination string    `json:"destination"`
    ReadyAt     time.Time `json:"readyAt"`
    Quantity    int       `json:"quantity"`
    Assigned    bool      `json:"assigned"`
    Route       *RouteOut `json:"route,omitempty"`
}

type RouteOut struct {
    Origin       string    `json:"origin"`
    ArcIDs       []string  `json:"arcIds"`
    Departure    time.Time `json:"departure"`
    Arrival      time.Time `json:"arrival"`
    Hops         int       `json:"hops"`
    Bottleneck   int       `json:"bottleneck"`
    TransitHours float64   `json:"transitHours"`
}

func NewRouteOut(r cargo.CandidateRoute, readyAt time.Time) *RouteOut {
    return &RouteOut{
        Origin:       r.Origin,
        ArcIDs:       append([]string(nil), r.ArcIDs...),
        Departure:    r.Departure,
        Arrival:      r.Arrival,
        Hops:         r.Hops,
        Bottleneck:   r.Bottleneck,
        TransitHours: r.TransitHours(readyAt),
    }
}

// NewPlan flattens a planner result into the persisted read model.
func NewPlan(id, tenant string, res *planner.Result, now time.Time) Plan {
    p := Plan{
        ID:        id,
        TenantID:  tenant,
        Status:    PlanCommitted,
        CreatedAt: now.UTC(),
        Hubs:      res.Hubs,
        Summary:   res.Summary,
        Metrics:   res.Metrics,
        Checks:    res.Checks,
        Reserved:  map[string]int{},
    }
    for _, a := range res.Solution.Assignments {
        out := AssignmentOut{
            OrderID:     a.Order.ID,
            ClientID:    a.Order.ClientID,
            Destination: a.Order.Destination,
            ReadyAt:     a.Order.ReadyAt,
            Quantity:    a.Order.Quantity,
            Assigned:    a.Assigned(),
        }
        if a.Assigned() {
            out.Route = NewRouteOut(a.Route, a.Order.ReadyAt)
            for _, arc := range a.Route.ArcIDs {
                p.Reserved[arc] += a.Order.Quantity
            }
        }
        p.Assignments = append(p.Assignments, out)
    }
    return p
}

func (p Plan) ListItem() PlanListItem {
    return PlanListItem{ID: p.ID, Status: p.Status, CreatedAt: p.CreatedAt, TotalOrders: p.Summary.TotalOrders, Assigned: p.Summary.Assigned, BestScore: p.Metrics.BestScore}
}

// PlanMetrics is one optimizer run as shown by the admin metrics views.
type PlanMetrics struct {
    PlanID    string    `json:"planId"`
    CreatedAt time.Time `json:"createdAt"`
    opt.Metrics
}

type SubscriptionRequest struct {
    TenantID string   `json:"tenantId"`
    URL      string   `json:"url"`
    Events   []string `json:"events"`
    Secret   string   `json:"secret"`
}

type Subscription struct {
    ID       string   `json:"id"`
    TenantID string   `json:"tenantId"`
    URL      string   `json:"url"`
    Events   []string `json:"events"`
    Secret   string   `json:"secret,omitempty"`
}
