package opt

import "math/rand"

// randomIndividual seeds a plan: every order with candidates is tried with
// probability InitAssignRate at a random candidate. A plan that ends up empty
// gets one forced attempt.
func (in *instance) randomIndividual(rng *rand.Rand) *individual {
	ind := in.newIndividual()
	assigned := 0
	for _, oi := range in.withCand {
		if rng.Float64() >= in.params.InitAssignRate {
			continue
		}
		if in.assign(ind, oi, rng.Intn(len(in.cands[oi]))) {
			assigned++
		}
	}
	if assigned == 0 {
		oi := in.withCand[rng.Intn(len(in.withCand))]
		in.assign(ind, oi, rng.Intn(len(in.cands[oi])))
	}
	in.evaluate(ind)
	return ind
}

func (in *instance) tournament(pop []*individual, rng *rand.Rand) *individual {
	best := pop[rng.Intn(len(pop))]
	for i := 1; i < in.params.TournamentSize; i++ {
		c := pop[rng.Intn(len(pop))]
		if c.fit.Better(best.fit) {
			best = c
		}
	}
	return best
}

// crossover cuts the stable order sequence at a random point and builds two
// mirrored children. Inherited choices go through the feasibility check, so
// a child may drop an order both parents could carry alone.
func (in *instance) crossover(a, b *individual, rng *rand.Rand) (*individual, *individual) {
	n := len(in.orders)
	cut := 0
	if n > 1 {
		cut = 1 + rng.Intn(n-1)
	}
	c1, c2 := in.newIndividual(), in.newIndividual()
	for oi := 0; oi < n; oi++ {
		x, y := a.choice[oi], b.choice[oi]
		if oi >= cut {
			x, y = y, x
		}
		if x >= 0 {
			in.assign(c1, oi, x)
		}
		if y >= 0 {
			in.assign(c2, oi, y)
		}
	}
	in.evaluate(c1)
	in.evaluate(c2)
	return c1, c2
}

// mutate moves one assigned order to a different candidate of its pool. It
// reports whether the plan changed.
func (in *instance) mutate(ind *individual, rng *rand.Rand) bool {
	var assigned []int
	for oi, ci := range ind.choice {
		if ci >= 0 {
			assigned = append(assigned, oi)
		}
	}
	if len(assigned) == 0 {
		return false
	}
	oi := assigned[rng.Intn(len(assigned))]
	cur := ind.choice[oi]
	if len(in.cands[oi]) < 2 {
		return false
	}
	ci := rng.Intn(len(in.cands[oi]) - 1)
	if ci >= cur {
		ci++
	}
	if !in.assign(ind, oi, ci) {
		return false
	}
	in.evaluate(ind)
	return true
}

// localSearch tries one reassignment of a random order that has candidates
// and keeps it only when fitness does not get worse.
func (in *instance) localSearch(ind *individual, rng *rand.Rand) bool {
	oi := in.withCand[rng.Intn(len(in.withCand))]
	prev := ind.choice[oi]
	n := len(in.cands[oi])
	var ci int
	switch {
	case prev < 0:
		ci = rng.Intn(n)
	case n < 2:
		return false
	default:
		ci = rng.Intn(n - 1)
		if ci >= prev {
			ci++
		}
	}
	before := ind.fit
	if !in.assign(ind, oi, ci) {
		return false
	}
	in.evaluate(ind)
	if before.Better(ind.fit) {
		if prev >= 0 {
			in.assign(ind, oi, prev)
		} else {
			in.unassign(ind, oi)
		}
		ind.fit = before
		return false
	}
	return true
}
