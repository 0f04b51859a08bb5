package metrics

import (
    "sync"
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
)

var (
    // Registry is the dedicated Prometheus registry for the API
    Registry = prometheus.NewRegistry()
    // HTTPRequests counts requests by method, route pattern, and status
    HTTPRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
        []string{"method", "path", "status"},
    )
    HTTPDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
        []string{"method", "path", "status"},
    )

    // PlanRuns counts planning passes by outcome (committed, infeasible, invalid, error)
    PlanRuns = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "cargoplan_plan_runs_total", Help: "Planning passes by outcome."},
        []string{"outcome"},
    )
    // PlanOrders counts orders seen by planning passes, split by assigned/unassigned
    PlanOrders = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "cargoplan_plan_orders_total", Help: "Orders planned by result."},
        []string{"result"},
    )
    PlanDuration = prometheus.NewHistogram(
        prometheus.HistogramOpts{Name: "cargoplan_plan_duration_seconds", Help: "Wall time of a planning pass.", Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}},
    )
    // OptimizerGenerations observes generations run per solve; stop reason is the label
    OptimizerGenerations = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "cargoplan_optimizer_generations", Help: "Generations run by the memetic optimizer.", Buckets: []float64{1, 5, 10, 25, 50, 100, 200, 500}},
        []string{"stop_reason"},
    )

    // WebhookDeliveries counts webhook delivery outcomes by event type and status
    WebhookDeliveries = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
        []string{"event_type", "status"},
    )
    WebhookLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
        []string{"event_type", "status"},
    )
)

// RegisterDefault registers every collector on Registry once.
func RegisterDefault() {
    regOnce.Do(func(){
        Registry.MustRegister(HTTPRequests, HTTPDuration)
        Registry.MustRegister(PlanRuns, PlanOrders, PlanDuration, OptimizerGenerations)
        Registry.MustRegister(WebhookDeliveries, WebhookLatency)
        Registry.MustRegister(collectors.NewGoCollector())
        Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    })
}

var regOnce sync.Once

// ObservePlan records one finished planning pass.
func ObservePlan(outcome string, seconds float64, assigned, unassigned int, generations int, stopReason string) {
    PlanRuns.WithLabelValues(outcome).Inc()
    PlanDuration.Observe(seconds)
    if assigned > 0 { PlanOrders.WithLabelValues("assigned").Add(float64(assigned)) }
    if unassigned > 0 { PlanOrders.WithLabelValues("unassigned").Add(float64(unassigned)) }
    if stopReason != "" { OptimizerGenerations.WithLabelValues(stopReason).Observe(float64(generations)) }
}
