// Package planner runs one planning pass end to end: build the network,
// enumerate candidates, solve, commit to the ledger and summarize.
package planner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"cargoplan/internal/cargo"
	"cargoplan/internal/ledger"
	"cargoplan/internal/network"
	"cargoplan/internal/obs"
	"cargoplan/internal/opt"
	"cargoplan/internal/search"
	"cargoplan/internal/sla"
)

var ErrNoOrders = errors.New("planner: no orders to plan")

type Config struct {
	Hubs         []string // origins searched for every order; empty means every airport with departures
	Start        time.Time
	Days         int // horizon; 0 derives it from the latest order deadline
	Candidates   int // routes kept per order
	WaitCapacity network.WaitCapacityFunc
	SLA          sla.Policy
	Search       search.Options
	Optimizer    opt.Params
	Seed         int64
	TimeBudget   time.Duration
	Diagnostics  bool
}

func DefaultConfig() Config {
	return Config{
		Candidates:   5,
		WaitCapacity: network.GroundCapacity,
		SLA:          sla.Default(),
		Search:       search.DefaultOptions(),
		Optimizer:    opt.DefaultParams(),
	}
}

type Input struct {
	Airports []network.Airport
	Flights  []network.FlightLeg
	Orders   []cargo.Order
	Ledger   map[string]int // quantity already committed per arc
}

type Result struct {
	Graph       *network.Graph
	Ledger      *ledger.Ledger
	Hubs        []string
	Candidates  map[string][]cargo.CandidateRoute
	Solution    opt.Solution
	Metrics     opt.Metrics
	Summary     Summary
	Checks      []RouteCheck
	Diagnostics map[string][]search.ArcDiagnostic
}

// Run plans every order in one pass. The ledger in the result holds the
// prior commitments plus this plan.
func Run(ctx context.Context, in Input, cfg Config) (res *Result, err error) {
	defer obs.Time(ctx, "planner.run")(&err)
	if len(in.Orders) == 0 {
		return nil, ErrNoOrders
	}
	if cfg.Candidates <= 0 {
		cfg.Candidates = DefaultConfig().Candidates
	}
	cfg.SLA = cfg.SLA.WithDefaults()
	start, days := horizon(in.Orders, cfg)

	g, err := network.Build(in.Airports, in.Flights, network.Options{Start: start, Days: days, WaitCapacity: cfg.WaitCapacity})
	if err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}
	l := ledger.FromSnapshot(in.Ledger)
	hubs := cfg.Hubs
	if len(hubs) == 0 {
		hubs = g.Origins()
	}
	gen := search.New(g, cfg.SLA, l, cfg.Search)
	cands := make(map[string][]cargo.CandidateRoute, len(in.Orders))
	for _, o := range in.Orders {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cands[o.ID] = gen.MultiOrigin(o, hubs, cfg.Candidates)
	}

	sol, m, err := opt.Solve(ctx, opt.Problem{Orders: in.Orders, Candidates: cands, Graph: g, Capacity: l, Params: cfg.Optimizer}, cfg.Seed, cfg.TimeBudget)
	if err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}
	if err := opt.Commit(sol, g, l); err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}

	res = &Result{Graph: g, Ledger: l, Hubs: hubs, Candidates: cands, Solution: sol, Metrics: m}
	res.Summary = Summarize(g, l, sol)
	res.Checks = Check(sla.Evaluator{Policy: cfg.SLA, Graph: g}, sol)
	if cfg.Diagnostics {
		res.Diagnostics = map[string][]search.ArcDiagnostic{}
		for _, a := range sol.Assignments {
			if a.Assigned() {
				res.Diagnostics[a.Order.ID] = search.Diagnose(g, l, a.Route, 0)
			}
		}
	}
	return res, nil
}

// horizon picks day 0 and the number of schedule days so that every order's
// widest deadline is covered.
func horizon(orders []cargo.Order, cfg Config) (time.Time, int) {
	first, last := orders[0].ReadyAt, orders[0].ReadyAt
	for _, o := range orders[1:] {
		if o.ReadyAt.Before(first) {
			first = o.ReadyAt
		}
		if o.ReadyAt.After(last) {
			last = o.ReadyAt
		}
	}
	start := cfg.Start
	if start.IsZero() || start.After(first) {
		start = first
	}
	start = start.UTC().Truncate(24 * time.Hour)
	if cfg.Days > 0 {
		return start, cfg.Days
	}
	window := cfg.SLA.Inter
	if cfg.SLA.Intra > window {
		window = cfg.SLA.Intra
	}
	end := last.Add(window)
	return start, int(math.Ceil(end.Sub(start).Hours()/24)) + 1
}
