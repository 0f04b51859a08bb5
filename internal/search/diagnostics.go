package search

import (
	"cargoplan/internal/cargo"
	"cargoplan/internal/network"
)

// UsageView exposes committed quantities in addition to residuals.
type UsageView interface {
	CapacityView
	Used(arcID string) int
}

type ArcDiagnostic struct {
	ArcID         string          `json:"arcId"`
	Kind          network.ArcKind `json:"kind"`
	Capacity      int             `json:"capacity"`
	Used          int             `json:"used"`
	Residual      int             `json:"residual"`
	ResidualAfter int             `json:"residualAfter"`
	Fits          bool            `json:"fits"`
}

// Diagnose reports per-arc capacity for a route as if qty were assigned to it.
func Diagnose(g *network.Graph, u UsageView, r cargo.CandidateRoute, qty int) []ArcDiagnostic {
	out := make([]ArcDiagnostic, 0, len(r.ArcIDs))
	for _, id := range r.ArcIDs {
		a, ok := g.Arc(id)
		if !ok {
			continue
		}
		res := u.Residual(a)
		out = append(out, ArcDiagnostic{
			ArcID:         id,
			Kind:          a.Kind,
			Capacity:      a.Capacity,
			Used:          u.Used(id),
			Residual:      res,
			ResidualAfter: res - qty,
			Fits:          res >= qty,
		})
	}
	return out
}
