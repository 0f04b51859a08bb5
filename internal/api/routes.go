package api

import (
    "net/http"

    "github.com/prometheus/client_golang/prometheus/promhttp"

    "cargoplan/internal/metrics"
)

// Routes registers every endpoint and wraps the mux in the middleware chain.
func (s *Server) Routes() http.Handler {
    metrics.RegisterDefault()
    mux := http.NewServeMux()

    // Plans
    mux.HandleFunc("/v1/plans", s.PlansHandler)
    mux.HandleFunc("/v1/plans/ws", s.PlanWSHandler)
    mux.HandleFunc("/v1/plans/events/stream", s.PlanEventsHandler)
    mux.HandleFunc("/v1/plans/", s.PlanByIDHandler) // includes /ledger, /events/stream

    // Optimizer settings and metrics
    mux.HandleFunc("/v1/optimizer/config", s.OptimizerConfigHandler)
    mux.HandleFunc("/v1/admin/optimizer/config", s.AdminOptimizerConfigHandler)
    mux.HandleFunc("/v1/admin/plan-metrics", s.PlanMetricsHandler)
    mux.HandleFunc("/v1/admin/plan-metrics/snapshots", s.PlanSnapshotsHandler)

    // Webhooks
    mux.HandleFunc("/v1/subscriptions", s.SubscriptionsHandler)
    mux.HandleFunc("/v1/subscriptions/", s.SubscriptionByIDHandler)
    mux.HandleFunc("/v1/admin/webhook-deliveries", s.WebhookDeliveriesHandler)
    mux.HandleFunc("/v1/admin/webhook-deliveries/", s.WebhookDeliveryRetryHandler)

    // Ops
    mux.HandleFunc("/healthz", s.HealthHandler)
    mux.HandleFunc("/readyz", s.ReadyHandler)
    mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
    mux.HandleFunc("/openapi.yaml", s.OpenAPIHandler)
    mux.HandleFunc("/openapi.json", s.OpenAPIHandler)
    mux.HandleFunc("/docs", s.DocsHandler)
    mux.HandleFunc("/debug/info", s.DebugJSON)

    var h http.Handler = mux
    if s.Config != nil && s.Config.RateRPS > 0 {
        h = NewRateLimiter(s.Config.RateRPS, s.Config.RateBurst).Middleware(h)
    }
    return LogMiddleware(h)
}
