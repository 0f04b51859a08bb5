package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObservePlan(t *testing.T) {
	RegisterDefault()
	RegisterDefault()
	before := testutil.ToFloat64(PlanRuns.WithLabelValues("committed"))
	assigned := testutil.ToFloat64(PlanOrders.WithLabelValues("assigned"))
	ObservePlan("committed", 0.3, 4, 1, 20, "generations")
	if got := testutil.ToFloat64(PlanRuns.WithLabelValues("committed")); got != before+1 {
		t.Fatalf("plan runs=%v", got)
	}
	if got := testutil.ToFloat64(PlanOrders.WithLabelValues("assigned")); got != assigned+4 {
		t.Fatalf("assigned orders=%v", got)
	}
	if n := testutil.CollectAndCount(OptimizerGenerations); n == 0 {
		t.Fatalf("generations histogram empty")
	}
}
