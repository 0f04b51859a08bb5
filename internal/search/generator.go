// Package search enumerates capacity-aware candidate itineraries for an
// order with a multi-criteria label-setting search over the time-expanded
// network.
package search

import (
	"container/heap"
	"math"
	"sort"
	"time"

	"cargoplan/internal/cargo"
	"cargoplan/internal/network"
	"cargoplan/internal/sla"
)

// CapacityView is the read-only ledger surface the search needs.
type CapacityView interface {
	Residual(a network.Arc) int
}

type Options struct {
	MaxHops    int           // flight arcs per route
	MaxLabels  int           // retained labels per node
	MinLayover time.Duration // between a landing and the next flight; 0 disables
}

func DefaultOptions() Options { return Options{MaxHops: 3, MaxLabels: 8} }

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxHops <= 0 {
		o.MaxHops = d.MaxHops
	}
	if o.MaxLabels <= 0 {
		o.MaxLabels = d.MaxLabels
	}
	if o.MinLayover < 0 {
		o.MinLayover = 0
	}
	return o
}

type Generator struct {
	g      *network.Graph
	policy sla.Policy
	cap    CapacityView
	opts   Options
}

func New(g *network.Graph, policy sla.Policy, capacity CapacityView, opts Options) *Generator {
	return &Generator{g: g, policy: policy, cap: capacity, opts: opts.withDefaults()}
}

// LatestArrival is the last landing instant that still meets the order's
// deadline when it leaves from origin.
func (gen *Generator) LatestArrival(o cargo.Order, origin string) (time.Time, bool) {
	oa, ok1 := gen.g.Airport(origin)
	da, ok2 := gen.g.Airport(o.Destination)
	if !ok1 || !ok2 {
		return time.Time{}, false
	}
	deadline := gen.policy.Deadline(o.ReadyAt, gen.policy.Window(oa, da))
	return gen.policy.LatestArrival(deadline), true
}

// Candidates returns up to k routes for the order starting at origin, best
// first. An unreachable destination yields an empty slice, and so does an
// origin equal to the destination: every route carries at least one flight.
func (gen *Generator) Candidates(o cargo.Order, origin string, k int) []cargo.CandidateRoute {
	if k <= 0 || origin == o.Destination {
		return nil
	}
	latest, ok := gen.LatestArrival(o, origin)
	if !ok {
		return nil
	}
	startT, ok := gen.g.FirstEventAtOrAfter(origin, o.ReadyAt)
	if !ok || startT.After(latest) {
		return nil
	}

	pools := map[string][]*label{}
	pq := &queue{}
	seq := 0
	start := &label{node: network.NodeID(origin, startT), airport: origin, t: startT, bn: math.MaxInt, seq: seq}
	pools[start.node] = []*label{start}
	heap.Push(pq, start)

	var out []cargo.CandidateRoute
	for pq.Len() > 0 {
		cur := heap.Pop(pq).(*label)
		if cur.dead || cur.t.After(latest) {
			continue
		}
		if cur.airport == o.Destination {
			out = append(out, cur.route(o.ID, origin, startT))
			if len(out) >= k {
				break
			}
			continue
		}
		for _, id := range gen.g.Out(cur.node) {
			a, ok := gen.g.Arc(id)
			if !ok || a.Dep.Before(cur.t) || a.Arr.After(latest) {
				continue
			}
			hops := cur.hops
			if a.Kind == network.KindFlight {
				hops++
				if hops > gen.opts.MaxHops {
					continue
				}
				if cur.hops > 0 && gen.opts.MinLayover > 0 && a.Dep.Sub(cur.landed) < gen.opts.MinLayover {
					continue
				}
			}
			res := gen.cap.Residual(a)
			if res <= 0 {
				continue
			}
			to, _ := gen.g.Node(a.To)
			seq++
			nx := &label{
				node:    a.To,
				airport: to.Airport,
				t:       a.Arr,
				hops:    hops,
				bn:      min(cur.bn, res),
				path:    append(append(make([]string, 0, len(cur.path)+1), cur.path...), id),
				landed:  cur.landed,
				seq:     seq,
			}
			if a.Kind == network.KindFlight {
				nx.landed = a.Arr
			}
			var kept bool
			pools[nx.node], kept = admit(pools[nx.node], nx, gen.opts.MaxLabels)
			if kept {
				heap.Push(pq, nx)
			}
		}
	}
	sortRoutes(out)
	return out
}

// MultiOrigin runs Candidates from every origin other than the destination,
// merges routes with the same arc sequence and keeps the best k.
func (gen *Generator) MultiOrigin(o cargo.Order, origins []string, k int) []cargo.CandidateRoute {
	if k <= 0 {
		return nil
	}
	bySig := map[string]cargo.CandidateRoute{}
	for _, origin := range origins {
		for _, r := range gen.Candidates(o, origin, k) {
			sig := r.Signature()
			if prev, ok := bySig[sig]; !ok || better(r, prev) {
				bySig[sig] = r
			}
		}
	}
	out := make([]cargo.CandidateRoute, 0, len(bySig))
	for _, r := range bySig {
		out = append(out, r)
	}
	sortRoutes(out)
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// better reports whether a should replace b for the same arc sequence.
func better(a, b cargo.CandidateRoute) bool {
	if !a.Arrival.Equal(b.Arrival) {
		return a.Arrival.Before(b.Arrival)
	}
	if a.Bottleneck != b.Bottleneck {
		return a.Bottleneck > b.Bottleneck
	}
	return a.Hops < b.Hops
}

func sortRoutes(rs []cargo.CandidateRoute) {
	sort.SliceStable(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		if !a.Arrival.Equal(b.Arrival) {
			return a.Arrival.Before(b.Arrival)
		}
		if a.Bottleneck != b.Bottleneck {
			return a.Bottleneck > b.Bottleneck
		}
		if a.Hops != b.Hops {
			return a.Hops < b.Hops
		}
		return a.Signature() < b.Signature()
	})
}
