// Package ledger tracks committed cargo quantity per network arc.
package ledger

import (
	"sort"
	"sync"

	"cargoplan/internal/network"
)

// Ledger maps arc id to committed quantity. Entries are always positive;
// an arc with nothing committed has no entry.
type Ledger struct {
	mu   sync.RWMutex
	used map[string]int
}

func New() *Ledger { return &Ledger{used: map[string]int{}} }

// FromSnapshot rebuilds a ledger from a previous Snapshot. Non-positive
// values are ignored.
func FromSnapshot(snap map[string]int) *Ledger {
	l := New()
	for id, q := range snap {
		if q > 0 {
			l.used[id] = q
		}
	}
	return l
}

func (l *Ledger) Used(arcID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.used[arcID]
}

func (l *Ledger) Residual(a network.Arc) int {
	r := a.Capacity - l.Used(a.ID)
	if r < 0 {
		return 0
	}
	return r
}

func (l *Ledger) CanFit(a network.Arc, q int) bool { return l.Residual(a) >= q }

// Reserve commits q units on the arc. It does not check capacity; callers
// validate with CanFit first.
func (l *Ledger) Reserve(a network.Arc, q int) {
	if q <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.used[a.ID] += q
}

// Release returns q units to the arc and reports how many were actually
// released. Releasing more than is committed clamps at zero.
func (l *Ledger) Release(a network.Arc, q int) int {
	if q <= 0 {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	cur := l.used[a.ID]
	if q >= cur {
		delete(l.used, a.ID)
		return cur
	}
	l.used[a.ID] = cur - q
	return q
}

// ResidualPath is the smallest residual along the path. Unknown arc ids
// are ignored; an empty path has residual 0.
func (l *Ledger) ResidualPath(g *network.Graph, arcIDs []string) int {
	lowest, seen := 0, false
	for _, id := range arcIDs {
		a, ok := g.Arc(id)
		if !ok {
			continue
		}
		r := l.Residual(a)
		if !seen || r < lowest {
			lowest, seen = r, true
		}
	}
	return lowest
}

func (l *Ledger) CanFitPath(g *network.Graph, arcIDs []string, q int) bool {
	return l.ResidualPath(g, arcIDs) >= q
}

func (l *Ledger) Snapshot() map[string]int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]int, len(l.used))
	for k, v := range l.used {
		out[k] = v
	}
	return out
}

type ArcUsage struct {
	ArcID    string          `json:"arcId"`
	Kind     network.ArcKind `json:"kind"`
	Capacity int             `json:"capacity"`
	Used     int             `json:"used"`
	Residual int             `json:"residual"`
}

// Usage lists every arc with committed quantity, sorted by arc id.
func (l *Ledger) Usage(g *network.Graph) []ArcUsage {
	snap := l.Snapshot()
	ids := make([]string, 0, len(snap))
	for id := range snap {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]ArcUsage, 0, len(ids))
	for _, id := range ids {
		u := ArcUsage{ArcID: id, Used: snap[id]}
		if a, ok := g.Arc(id); ok {
			u.Kind = a.Kind
			u.Capacity = a.Capacity
			u.Residual = l.Residual(a)
		}
		out = append(out, u)
	}
	return out
}
