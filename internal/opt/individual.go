package opt

import (
	"fmt"
	"sort"

	"cargoplan/internal/cargo"
)

// Fitness is compared lexicographically: more orders assigned always wins,
// then more quantity, then shorter mean transit, then fewer mean hops.
type Fitness struct {
	Assigned        int     `json:"assigned"`
	Quantity        int     `json:"quantity"`
	AvgTransitHours float64 `json:"avgTransitHours"`
	AvgHops         float64 `json:"avgHops"`
}

func (f Fitness) Better(o Fitness) bool {
	if f.Assigned != o.Assigned {
		return f.Assigned > o.Assigned
	}
	if f.Quantity != o.Quantity {
		return f.Quantity > o.Quantity
	}
	if f.AvgTransitHours != o.AvgTransitHours {
		return f.AvgTransitHours < o.AvgTransitHours
	}
	return f.AvgHops < o.AvgHops
}

// Score flattens the tuple for reporting; comparisons use Better.
func (f Fitness) Score() float64 {
	return float64(f.Assigned)*1e6 + float64(f.Quantity)*1e3 - f.AvgTransitHours*0.01 - f.AvgHops*0.1
}

// instance is a Problem resolved for fast evaluation: orders in stable id
// order, candidate arcs looked up once, residuals frozen at solve start.
type instance struct {
	params   Params
	orders   []cargo.Order
	cands    [][]cargo.CandidateRoute
	arcs     [][][]string
	residual map[string]int
	withCand []int // order positions that have at least one candidate
	evals    int
}

func prepare(p Problem) (*instance, error) {
	if p.Graph == nil || p.Capacity == nil {
		return nil, fmt.Errorf("opt: problem needs a graph and a capacity view")
	}
	in := &instance{params: p.Params.WithDefaults(), residual: map[string]int{}}
	in.orders = append([]cargo.Order(nil), p.Orders...)
	sort.SliceStable(in.orders, func(i, j int) bool { return in.orders[i].ID < in.orders[j].ID })
	for i, o := range in.orders {
		if i > 0 && in.orders[i-1].ID == o.ID {
			return nil, fmt.Errorf("opt: duplicate order id %s", o.ID)
		}
		if o.Quantity <= 0 {
			return nil, fmt.Errorf("opt: order %s has quantity %d", o.ID, o.Quantity)
		}
	}
	in.cands = make([][]cargo.CandidateRoute, len(in.orders))
	in.arcs = make([][][]string, len(in.orders))
	for oi, o := range in.orders {
	next:
		for _, c := range p.Candidates[o.ID] {
			for _, id := range c.ArcIDs {
				a, ok := p.Graph.Arc(id)
				if !ok {
					continue next
				}
				if _, seen := in.residual[id]; !seen {
					in.residual[id] = p.Capacity.Residual(a)
				}
			}
			in.cands[oi] = append(in.cands[oi], c)
			in.arcs[oi] = append(in.arcs[oi], c.ArcIDs)
		}
		if len(in.cands[oi]) > 0 {
			in.withCand = append(in.withCand, oi)
		}
	}
	if len(in.withCand) == 0 {
		return nil, ErrNoFeasibleAssignment
	}
	return in, nil
}

// individual is one assignment plan plus its private capacity delta. The
// delta is the quantity this plan would add per arc on top of the frozen
// residuals.
type individual struct {
	choice []int
	delta  map[string]int
	fit    Fitness
}

func (in *instance) newIndividual() *individual {
	ind := &individual{choice: make([]int, len(in.orders)), delta: map[string]int{}}
	for i := range ind.choice {
		ind.choice[i] = -1
	}
	return ind
}

func (ind *individual) clone() *individual {
	c := &individual{choice: append([]int(nil), ind.choice...), delta: make(map[string]int, len(ind.delta)), fit: ind.fit}
	for k, v := range ind.delta {
		c.delta[k] = v
	}
	return c
}

func (in *instance) canAssign(ind *individual, oi, ci int) bool {
	q := in.orders[oi].Quantity
	for _, id := range in.arcs[oi][ci] {
		if in.residual[id]-ind.delta[id] < q {
			return false
		}
	}
	return true
}

func (in *instance) unassign(ind *individual, oi int) {
	ci := ind.choice[oi]
	if ci < 0 {
		return
	}
	q := in.orders[oi].Quantity
	for _, id := range in.arcs[oi][ci] {
		if v := ind.delta[id] - q; v > 0 {
			ind.delta[id] = v
		} else {
			delete(ind.delta, id)
		}
	}
	ind.choice[oi] = -1
}

func (in *instance) place(ind *individual, oi, ci int) {
	q := in.orders[oi].Quantity
	for _, id := range in.arcs[oi][ci] {
		ind.delta[id] += q
	}
	ind.choice[oi] = ci
}

// assign moves order oi to candidate ci. The previous choice is released
// first and restored when ci does not fit.
func (in *instance) assign(ind *individual, oi, ci int) bool {
	prev := ind.choice[oi]
	in.unassign(ind, oi)
	if in.canAssign(ind, oi, ci) {
		in.place(ind, oi, ci)
		return true
	}
	if prev >= 0 {
		in.place(ind, oi, prev)
	}
	return false
}

func (in *instance) evaluate(ind *individual) {
	in.evals++
	var f Fitness
	transit, hops := 0.0, 0
	for oi, ci := range ind.choice {
		if ci < 0 {
			continue
		}
		o := in.orders[oi]
		r := in.cands[oi][ci]
		f.Assigned++
		f.Quantity += o.Quantity
		transit += r.TransitHours(o.ReadyAt)
		hops += r.Hops
	}
	if f.Assigned > 0 {
		f.AvgTransitHours = transit / float64(f.Assigned)
		f.AvgHops = float64(hops) / float64(f.Assigned)
	}
	ind.fit = f
}

func (in *instance) solution(best *individual) Solution {
	sol := Solution{Assignments: make([]Assignment, len(in.orders)), Fitness: best.fit}
	for oi, o := range in.orders {
		a := Assignment{Order: o, Index: best.choice[oi]}
		if a.Index >= 0 {
			a.Route = in.cands[oi][a.Index]
		}
		sol.Assignments[oi] = a
	}
	return sol
}

// bestOf returns the first individual with the best fitness.
func bestOf(pop []*individual) *individual {
	best := pop[0]
	for _, ind := range pop[1:] {
		if ind.fit.Better(best.fit) {
			best = ind
		}
	}
	return best
}

// arcUse sums the plan's quantity per arc.
func (in *instance) arcUse(ind *individual) map[string]int {
	out := map[string]int{}
	for oi, ci := range ind.choice {
		if ci < 0 {
			continue
		}
		for _, id := range in.arcs[oi][ci] {
			out[id] += in.orders[oi].Quantity
		}
	}
	return out
}
