package opt

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"cargoplan/internal/cargo"
	"cargoplan/internal/network"
)

var (
	ErrNoFeasibleAssignment = errors.New("opt: no order has a feasible candidate route")
	ErrCapacityConflict     = errors.New("opt: plan no longer fits committed capacity")
)

// CapacityView is the read-only ledger surface used while solving.
type CapacityView interface {
	Residual(a network.Arc) int
}

type Params struct {
	PopulationSize   int     `json:"populationSize" toml:"population_size"`
	Generations      int     `json:"generations" toml:"generations"`
	CrossoverRate    float64 `json:"crossoverRate" toml:"crossover_rate"`
	MutationRate     float64 `json:"mutationRate" toml:"mutation_rate"`
	TournamentSize   int     `json:"tournamentSize" toml:"tournament_size"`
	LocalSearchEvery int     `json:"localSearchEvery" toml:"local_search_every"`
	LocalSearchRate  float64 `json:"localSearchRate" toml:"local_search_rate"`
	InitAssignRate   float64 `json:"initAssignRate" toml:"init_assign_rate"`
}

func DefaultParams() Params {
	return Params{
		PopulationSize:   100,
		Generations:      100,
		CrossoverRate:    0.8,
		MutationRate:     0.1,
		TournamentSize:   5,
		LocalSearchEvery: 5,
		LocalSearchRate:  0.1,
		InitAssignRate:   0.7,
	}
}

// WithDefaults replaces unset or out-of-range values with DefaultParams.
func (p Params) WithDefaults() Params {
	d := DefaultParams()
	if p.PopulationSize < 2 {
		p.PopulationSize = d.PopulationSize
	}
	if p.Generations <= 0 {
		p.Generations = d.Generations
	}
	if p.CrossoverRate <= 0 || p.CrossoverRate > 1 {
		p.CrossoverRate = d.CrossoverRate
	}
	if p.MutationRate < 0 || p.MutationRate > 1 {
		p.MutationRate = d.MutationRate
	}
	if p.TournamentSize <= 0 {
		p.TournamentSize = d.TournamentSize
	}
	if p.LocalSearchEvery < 0 {
		p.LocalSearchEvery = d.LocalSearchEvery
	}
	if p.LocalSearchRate < 0 || p.LocalSearchRate > 1 {
		p.LocalSearchRate = d.LocalSearchRate
	}
	if p.InitAssignRate <= 0 || p.InitAssignRate > 1 {
		p.InitAssignRate = d.InitAssignRate
	}
	return p
}

// Overlay returns p with every positive field of o copied over it.
func (p Params) Overlay(o Params) Params {
	if o.PopulationSize > 0 {
		p.PopulationSize = o.PopulationSize
	}
	if o.Generations > 0 {
		p.Generations = o.Generations
	}
	if o.CrossoverRate > 0 {
		p.CrossoverRate = o.CrossoverRate
	}
	if o.MutationRate > 0 {
		p.MutationRate = o.MutationRate
	}
	if o.TournamentSize > 0 {
		p.TournamentSize = o.TournamentSize
	}
	if o.LocalSearchEvery > 0 {
		p.LocalSearchEvery = o.LocalSearchEvery
	}
	if o.LocalSearchRate > 0 {
		p.LocalSearchRate = o.LocalSearchRate
	}
	if o.InitAssignRate > 0 {
		p.InitAssignRate = o.InitAssignRate
	}
	return p
}

type Problem struct {
	Orders     []cargo.Order
	Candidates map[string][]cargo.CandidateRoute // by order id, best first
	Graph      *network.Graph
	Capacity   CapacityView
	Params     Params
}

// Assignment is the outcome for one order. Index is -1 when unassigned.
type Assignment struct {
	Order cargo.Order
	Index int
	Route cargo.CandidateRoute
}

func (a Assignment) Assigned() bool { return a.Index >= 0 }

type Solution struct {
	Assignments []Assignment // sorted by order id
	Fitness     Fitness
}

func (s Solution) Assigned() int { return s.Fitness.Assigned }

type Metrics struct {
	Generations         int                  `json:"generations"`
	Evaluations         int                  `json:"evaluations"`
	Improvements        int                  `json:"improvements"`
	Crossovers          int                  `json:"crossovers"`
	Mutations           int                  `json:"mutations"`
	LocalSearches       int                  `json:"localSearches"`
	LocalSearchAccepted int                  `json:"localSearchAccepted"`
	InitialScore        float64              `json:"initialScore"`
	BestScore           float64              `json:"bestScore"`
	StopReason          string               `json:"stopReason"`
	Seed                int64                `json:"seed"`
	Snapshots           []GenerationSnapshot `json:"snapshots,omitempty"`
}

type GenerationSnapshot struct {
	Generation   int     `json:"generation"`
	BestScore    float64 `json:"bestScore"`
	MeanScore    float64 `json:"meanScore"`
	BestAssigned int     `json:"bestAssigned"`
}

const snapshotEvery = 10

// Solve runs the memetic search and returns the best plan seen. The shared
// ledger is only read; call Commit to apply the result.
func Solve(ctx context.Context, p Problem, seed int64, timeBudget time.Duration) (Solution, Metrics, error) {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	in, err := prepare(p)
	if err != nil {
		return Solution{}, Metrics{Seed: seed}, err
	}
	par := in.params
	m := Metrics{Seed: seed, StopReason: "generations"}

	pop := make([]*individual, par.PopulationSize)
	for i := range pop {
		pop[i] = in.randomIndividual(rng)
	}
	best := bestOf(pop).clone()
	m.InitialScore = best.fit.Score()

	var deadline time.Time
	if timeBudget > 0 {
		deadline = time.Now().Add(timeBudget)
	}
	for gen := 1; gen <= par.Generations; gen++ {
		if ctx.Err() != nil {
			m.StopReason = "canceled"
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			m.StopReason = "time_budget"
			break
		}
		// elitism: the best-so-far survives unchanged
		next := make([]*individual, 0, par.PopulationSize)
		next = append(next, best.clone())
		for len(next) < par.PopulationSize {
			p1 := in.tournament(pop, rng)
			p2 := in.tournament(pop, rng)
			var c1, c2 *individual
			if rng.Float64() < par.CrossoverRate {
				c1, c2 = in.crossover(p1, p2, rng)
				m.Crossovers++
			} else {
				c1, c2 = p1.clone(), p2.clone()
			}
			for _, c := range []*individual{c1, c2} {
				if rng.Float64() < par.MutationRate && in.mutate(c, rng) {
					m.Mutations++
				}
				if len(next) < par.PopulationSize {
					next = append(next, c)
				}
			}
		}
		if par.LocalSearchEvery > 0 && gen%par.LocalSearchEvery == 0 {
			for _, ind := range next[1:] {
				if rng.Float64() < par.LocalSearchRate {
					m.LocalSearches++
					if in.localSearch(ind, rng) {
						m.LocalSearchAccepted++
					}
				}
			}
		}
		pop = next
		if top := bestOf(pop); top.fit.Better(best.fit) {
			best = top.clone()
			m.Improvements++
		}
		m.Generations = gen
		if gen%snapshotEvery == 0 || gen == par.Generations {
			m.Snapshots = append(m.Snapshots, GenerationSnapshot{Generation: gen, BestScore: best.fit.Score(), MeanScore: meanScore(pop), BestAssigned: best.fit.Assigned})
		}
	}
	m.Evaluations = in.evals
	m.BestScore = best.fit.Score()
	return in.solution(best), m, nil
}

// Reserver is the ledger surface Commit writes to.
type Reserver interface {
	CapacityView
	Reserve(a network.Arc, q int)
}

// Commit re-validates the plan against the ledger and reserves every arc of
// every assigned route. Nothing is written when any arc no longer fits.
func Commit(sol Solution, g *network.Graph, l Reserver) error {
	need := map[string]int{}
	arcs := map[string]network.Arc{}
	for _, a := range sol.Assignments {
		if !a.Assigned() {
			continue
		}
		for _, id := range a.Route.ArcIDs {
			arc, ok := g.Arc(id)
			if !ok {
				return fmt.Errorf("%w: unknown arc %s in route for order %s", ErrCapacityConflict, id, a.Order.ID)
			}
			arcs[id] = arc
			need[id] += a.Order.Quantity
		}
	}
	ids := make([]string, 0, len(need))
	for id := range need {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if r := l.Residual(arcs[id]); r < need[id] {
			return fmt.Errorf("%w: arc %s needs %d, residual %d", ErrCapacityConflict, id, need[id], r)
		}
	}
	for _, id := range ids {
		l.Reserve(arcs[id], need[id])
	}
	return nil
}

func meanScore(pop []*individual) float64 {
	if len(pop) == 0 {
		return 0
	}
	sum := 0.0
	for _, ind := range pop {
		sum += ind.fit.Score()
	}
	return sum / float64(len(pop))
}
