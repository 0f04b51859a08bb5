package search

import (
	"math"
	"sort"
	"time"

	"cargoplan/internal/cargo"
)

type label struct {
	node    string
	airport string
	t       time.Time // arrival at node
	hops    int
	bn      int // bottleneck residual, math.MaxInt before the first arc
	path    []string
	landed  time.Time // last flight arrival
	seq     int
	dead    bool
}

// dominates is true when a is no worse than b on arrival, hops and
// bottleneck and strictly better on at least one.
func dominates(a, b *label) bool {
	if a.t.After(b.t) || a.hops > b.hops || a.bn < b.bn {
		return false
	}
	return a.t.Before(b.t) || a.hops < b.hops || a.bn > b.bn
}

func (l *label) route(orderID, origin string, startT time.Time) cargo.CandidateRoute {
	r := cargo.CandidateRoute{
		OrderID:    orderID,
		Origin:     origin,
		ArcIDs:     append([]string(nil), l.path...),
		Departure:  startT,
		Arrival:    l.t,
		Hops:       l.hops,
		Bottleneck: l.bn,
	}
	if len(l.path) == 0 || l.bn == math.MaxInt {
		r.Bottleneck = 0
	}
	return r
}

// admit inserts nx into a node's pool unless an existing label dominates it.
// Labels nx dominates are dropped, and the pool is cut to limit entries by
// evicting the worst. Dropped labels are marked dead so the queue skips them.
func admit(pool []*label, nx *label, limit int) ([]*label, bool) {
	for _, l := range pool {
		if dominates(l, nx) {
			return pool, false
		}
	}
	kept := pool[:0]
	for _, l := range pool {
		if dominates(nx, l) {
			l.dead = true
			continue
		}
		kept = append(kept, l)
	}
	kept = append(kept, nx)
	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if !a.t.Equal(b.t) {
			return a.t.Before(b.t)
		}
		if a.hops != b.hops {
			return a.hops < b.hops
		}
		return a.bn > b.bn
	})
	for len(kept) > limit {
		kept[len(kept)-1].dead = true
		kept = kept[:len(kept)-1]
	}
	return kept, !nx.dead
}

// queue orders labels by arrival time, then hops, then creation order.
type queue []*label

func (q queue) Len() int { return len(q) }
func (q queue) Less(i, j int) bool {
	if !q[i].t.Equal(q[j].t) {
		return q[i].t.Before(q[j].t)
	}
	if q[i].hops != q[j].hops {
		return q[i].hops < q[j].hops
	}
	return q[i].seq < q[j].seq
}
func (q queue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *queue) Push(x any)   { *q = append(*q, x.(*label)) }
func (q *queue) Pop() any {
	old := *q
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return x
}
