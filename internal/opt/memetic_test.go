package opt

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"cargoplan/internal/cargo"
	"cargoplan/internal/ledger"
	"cargoplan/internal/network"
	"cargoplan/internal/search"
	"cargoplan/internal/sla"
)

var day0 = time.Date(2025, 9, 7, 0, 0, 0, 0, time.UTC)

func smallParams() Params {
	return Params{PopulationSize: 12, Generations: 15, TournamentSize: 3, LocalSearchEvery: 2, LocalSearchRate: 0.5}
}

func buildProblem(t *testing.T, flights []network.FlightLeg, orders []cargo.Order, l *ledger.Ledger) Problem {
	t.Helper()
	airports := []network.Airport{
		{Code: "A", Continent: "SA", GroundCapacity: 1000},
		{Code: "B", Continent: "SA", GroundCapacity: 1000},
		{Code: "C", Continent: "SA", GroundCapacity: 1000},
	}
	g, err := network.Build(airports, flights, network.Options{Start: day0, Days: 2})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	gen := search.New(g, sla.Default(), l, search.DefaultOptions())
	cands := map[string][]cargo.CandidateRoute{}
	for _, o := range orders {
		cands[o.ID] = gen.MultiOrigin(o, []string{"A"}, 5)
	}
	return Problem{Orders: orders, Candidates: cands, Graph: g, Capacity: l, Params: smallParams()}
}

func oneFlight() []network.FlightLeg {
	return []network.FlightLeg{{Origin: "A", Destination: "B", Departure: 10 * time.Hour, Arrival: 12 * time.Hour, Capacity: 10}}
}

func TestScenarioSingleOrderAssigned(t *testing.T) {
	l := ledger.New()
	orders := []cargo.Order{{ID: "o1", Destination: "B", ReadyAt: day0.Add(8 * time.Hour), Quantity: 6}}
	p := buildProblem(t, oneFlight(), orders, l)
	// keep only the day-0 flight so the assertion is about one arc
	p.Candidates["o1"] = p.Candidates["o1"][:1]
	sol, m, err := Solve(context.Background(), p, 42, 0)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if sol.Assigned() != 1 || !sol.Assignments[0].Assigned() {
		t.Fatalf("order should be assigned: %+v", sol)
	}
	if err := Commit(sol, p.Graph, l); err != nil {
		t.Fatalf("commit: %v", err)
	}
	arcID := sol.Assignments[0].Route.ArcIDs[0]
	if l.Used(arcID) != 6 {
		t.Fatalf("used=%d want 6", l.Used(arcID))
	}
	if m.Generations != 15 || m.StopReason != "generations" || m.Seed != 42 {
		t.Fatalf("unexpected metrics %+v", m)
	}
}

func TestScenarioCompetingOrders(t *testing.T) {
	l := ledger.New()
	orders := []cargo.Order{
		{ID: "o1", Destination: "B", ReadyAt: day0.Add(8 * time.Hour), Quantity: 6},
		{ID: "o2", Destination: "B", ReadyAt: day0.Add(8 * time.Hour), Quantity: 6},
	}
	p := buildProblem(t, oneFlight(), orders, l)
	p.Candidates["o1"] = p.Candidates["o1"][:1]
	p.Candidates["o2"] = p.Candidates["o2"][:1]
	for seed := int64(1); seed <= 5; seed++ {
		sol, _, err := Solve(context.Background(), p, seed, 0)
		if err != nil {
			t.Fatalf("solve: %v", err)
		}
		if sol.Assigned() != 1 {
			t.Fatalf("seed %d: exactly one order fits, got %d", seed, sol.Assigned())
		}
	}
	sol, _, _ := Solve(context.Background(), p, 7, 0)
	if err := Commit(sol, p.Graph, l); err != nil {
		t.Fatalf("commit: %v", err)
	}
	for _, u := range l.Usage(p.Graph) {
		if u.Used > u.Capacity {
			t.Fatalf("arc %s over capacity: %+v", u.ArcID, u)
		}
	}
}

func TestCapacityInvariantManyOrders(t *testing.T) {
	flights := []network.FlightLeg{
		{Origin: "A", Destination: "B", Departure: 6 * time.Hour, Arrival: 8 * time.Hour, Capacity: 30},
		{Origin: "A", Destination: "B", Departure: 14 * time.Hour, Arrival: 16 * time.Hour, Capacity: 20},
		{Origin: "B", Destination: "C", Departure: 9 * time.Hour, Arrival: 11 * time.Hour, Capacity: 25},
		{Origin: "A", Destination: "C", Departure: 12 * time.Hour, Arrival: 18 * time.Hour, Capacity: 15},
	}
	var orders []cargo.Order
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 20; i++ {
		dest := "B"
		if i%2 == 0 {
			dest = "C"
		}
		orders = append(orders, cargo.Order{ID: fmt.Sprintf("o%02d", i), Destination: dest, ReadyAt: day0.Add(time.Duration(rng.Intn(10)) * time.Hour), Quantity: 3 + rng.Intn(8)})
	}
	l := ledger.New()
	p := buildProblem(t, flights, orders, l)
	sol, _, err := Solve(context.Background(), p, 11, 0)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if sol.Assigned() == 0 {
		t.Fatalf("expected some orders assigned")
	}
	if err := Commit(sol, p.Graph, l); err != nil {
		t.Fatalf("commit: %v", err)
	}
	for _, u := range l.Usage(p.Graph) {
		if u.Used > u.Capacity {
			t.Fatalf("arc %s over capacity: %+v", u.ArcID, u)
		}
	}
	for _, a := range sol.Assignments {
		if a.Assigned() && a.Route.OrderID != a.Order.ID {
			t.Fatalf("route belongs to %s, assigned to %s", a.Route.OrderID, a.Order.ID)
		}
	}
}

func TestSolveDeterministicWithSeed(t *testing.T) {
	flights := []network.FlightLeg{
		{Origin: "A", Destination: "B", Departure: 6 * time.Hour, Arrival: 8 * time.Hour, Capacity: 12},
		{Origin: "A", Destination: "B", Departure: 14 * time.Hour, Arrival: 16 * time.Hour, Capacity: 12},
	}
	var orders []cargo.Order
	for i := 0; i < 8; i++ {
		orders = append(orders, cargo.Order{ID: fmt.Sprintf("o%d", i), Destination: "B", ReadyAt: day0, Quantity: 4 + i%3})
	}
	p := buildProblem(t, flights, orders, ledger.New())
	s1, m1, err := Solve(context.Background(), p, 99, 0)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	s2, m2, _ := Solve(context.Background(), p, 99, 0)
	for i := range s1.Assignments {
		if s1.Assignments[i].Index != s2.Assignments[i].Index {
			t.Fatalf("assignment %d differs across runs", i)
		}
	}
	if m1.BestScore != m2.BestScore || m1.Evaluations != m2.Evaluations || m1.Mutations != m2.Mutations {
		t.Fatalf("metrics differ: %+v vs %+v", m1, m2)
	}
}

func TestSolveNoFeasibleAssignment(t *testing.T) {
	orders := []cargo.Order{{ID: "o1", Destination: "C", ReadyAt: day0, Quantity: 1}}
	p := buildProblem(t, oneFlight(), orders, ledger.New())
	if _, _, err := Solve(context.Background(), p, 1, 0); !errors.Is(err, ErrNoFeasibleAssignment) {
		t.Fatalf("expected ErrNoFeasibleAssignment, got %v", err)
	}
}

func TestSolveStopsOnCancel(t *testing.T) {
	orders := []cargo.Order{{ID: "o1", Destination: "B", ReadyAt: day0, Quantity: 1}}
	p := buildProblem(t, oneFlight(), orders, ledger.New())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sol, m, err := Solve(ctx, p, 1, 0)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if m.StopReason != "canceled" || m.Generations != 0 {
		t.Fatalf("unexpected metrics %+v", m)
	}
	if sol.Assigned() != 1 {
		t.Fatalf("initial population should still yield a plan")
	}
}

func TestCommitRejectsStalePlan(t *testing.T) {
	l := ledger.New()
	orders := []cargo.Order{{ID: "o1", Destination: "B", ReadyAt: day0.Add(8 * time.Hour), Quantity: 6}}
	p := buildProblem(t, oneFlight(), orders, l)
	p.Candidates["o1"] = p.Candidates["o1"][:1]
	sol, _, err := Solve(context.Background(), p, 5, 0)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	arc, _ := p.Graph.Arc(sol.Assignments[0].Route.ArcIDs[0])
	l.Reserve(arc, 5)
	if err := Commit(sol, p.Graph, l); !errors.Is(err, ErrCapacityConflict) {
		t.Fatalf("expected ErrCapacityConflict, got %v", err)
	}
	if l.Used(arc.ID) != 5 {
		t.Fatalf("failed commit must not write, used=%d", l.Used(arc.ID))
	}
}

func TestFitnessLexicographic(t *testing.T) {
	more := Fitness{Assigned: 2, Quantity: 2, AvgTransitHours: 90}
	heavy := Fitness{Assigned: 1, Quantity: 5000}
	if !more.Better(heavy) || heavy.Better(more) {
		t.Fatalf("assigned count must dominate quantity")
	}
	fast := Fitness{Assigned: 2, Quantity: 2, AvgTransitHours: 10, AvgHops: 3}
	if !fast.Better(more) {
		t.Fatalf("shorter transit should win at equal counts")
	}
	if more.Score() >= (Fitness{Assigned: 2, Quantity: 2}).Score() {
		t.Fatalf("transit penalty missing from score")
	}
}

func TestOperatorsKeepIndividualsFeasible(t *testing.T) {
	flights := []network.FlightLeg{
		{Origin: "A", Destination: "B", Departure: 6 * time.Hour, Arrival: 8 * time.Hour, Capacity: 10},
		{Origin: "A", Destination: "B", Departure: 14 * time.Hour, Arrival: 16 * time.Hour, Capacity: 10},
	}
	var orders []cargo.Order
	for i := 0; i < 6; i++ {
		orders = append(orders, cargo.Order{ID: fmt.Sprintf("o%d", i), Destination: "B", ReadyAt: day0, Quantity: 4})
	}
	p := buildProblem(t, flights, orders, ledger.New())
	in, err := prepare(p)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	rng := rand.New(rand.NewSource(8))
	check := func(ind *individual) {
		for id, q := range in.arcUse(ind) {
			if q > in.residual[id] {
				t.Fatalf("arc %s carries %d over residual %d", id, q, in.residual[id])
			}
			if ind.delta[id] != q {
				t.Fatalf("delta out of sync on %s: %d vs %d", id, ind.delta[id], q)
			}
		}
	}
	a, b := in.randomIndividual(rng), in.randomIndividual(rng)
	for i := 0; i < 200; i++ {
		c1, c2 := in.crossover(a, b, rng)
		in.mutate(c1, rng)
		in.localSearch(c2, rng)
		check(c1)
		check(c2)
		a, b = c1, c2
	}
}

func TestMutateMovesTheAssignedOrder(t *testing.T) {
	flights := []network.FlightLeg{
		{Origin: "A", Destination: "B", Departure: 6 * time.Hour, Arrival: 8 * time.Hour, Capacity: 10},
		{Origin: "A", Destination: "B", Departure: 14 * time.Hour, Arrival: 16 * time.Hour, Capacity: 10},
	}
	var orders []cargo.Order
	for i := 0; i < 5; i++ {
		orders = append(orders, cargo.Order{ID: fmt.Sprintf("o%d", i), Destination: "B", ReadyAt: day0, Quantity: 4})
	}
	p := buildProblem(t, flights, orders, ledger.New())
	in, err := prepare(p)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	const only = 3
	if len(in.cands[only]) < 2 {
		t.Fatalf("order needs an alternative candidate, got %d", len(in.cands[only]))
	}
	for seed := int64(1); seed <= 50; seed++ {
		ind := in.newIndividual()
		if !in.assign(ind, only, 0) {
			t.Fatalf("initial placement failed")
		}
		if !in.mutate(ind, rand.New(rand.NewSource(seed))) {
			t.Fatalf("seed %d: mutation skipped the only assigned order", seed)
		}
		for oi, ci := range ind.choice {
			switch {
			case oi == only && (ci < 0 || ci == 0):
				t.Fatalf("seed %d: assigned order not moved, choice %d", seed, ci)
			case oi != only && ci >= 0:
				t.Fatalf("seed %d: unassigned order %d became assigned", seed, oi)
			}
		}
	}
	if in.mutate(in.newIndividual(), rand.New(rand.NewSource(1))) {
		t.Fatalf("mutation of an empty plan should report no change")
	}
}

func TestLocalSearchNeverWorsens(t *testing.T) {
	var orders []cargo.Order
	for i := 0; i < 4; i++ {
		orders = append(orders, cargo.Order{ID: fmt.Sprintf("o%d", i), Destination: "B", ReadyAt: day0, Quantity: 3})
	}
	flights := []network.FlightLeg{
		{Origin: "A", Destination: "B", Departure: 6 * time.Hour, Arrival: 8 * time.Hour, Capacity: 9},
		{Origin: "A", Destination: "B", Departure: 14 * time.Hour, Arrival: 16 * time.Hour, Capacity: 9},
	}
	p := buildProblem(t, flights, orders, ledger.New())
	in, err := prepare(p)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	rng := rand.New(rand.NewSource(2))
	ind := in.randomIndividual(rng)
	for i := 0; i < 100; i++ {
		before := ind.fit
		in.localSearch(ind, rng)
		if before.Better(ind.fit) {
			t.Fatalf("local search made the plan worse: %+v -> %+v", before, ind.fit)
		}
	}
}

func TestMetricsStore(t *testing.T) {
	RecordMetrics("t1", "pln_1", Metrics{Generations: 3})
	if m, ok := GetMetrics("t1", "pln_1"); !ok || m.Generations != 3 {
		t.Fatalf("metrics not recorded")
	}
	if _, ok := GetMetrics("t2", "pln_1"); ok {
		t.Fatalf("metrics leaked across tenants")
	}
	if ids := ListMetrics("t1"); len(ids) != 1 || ids[0] != "pln_1" {
		t.Fatalf("list=%v", ids)
	}
}
