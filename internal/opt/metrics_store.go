package opt

import (
    "sort"
    "sync"
)

type key struct{
    Tenant string
    PlanID string
}

var (
    mu sync.Mutex
    store = map[key]Metrics{}
)

// RecordMetrics keeps the last optimizer run per plan for the admin views.
func RecordMetrics(tenant, planID string, m Metrics) {
    mu.Lock()
    store[key{Tenant: tenant, PlanID: planID}] = m
    mu.Unlock()
}

func GetMetrics(tenant, planID string) (Metrics, bool) {
    mu.Lock(); defer mu.Unlock()
    m, ok := store[key{Tenant: tenant, PlanID: planID}]
    return m, ok
}

// ListMetrics returns the plan ids with recorded metrics for a tenant, sorted.
func ListMetrics(tenant string) []string {
    mu.Lock(); defer mu.Unlock()
    out := []string{}
    for k := range store {
        if k.Tenant == tenant { out = append(out, k.PlanID) }
    }
    sort.Strings(out)
    return out
}
