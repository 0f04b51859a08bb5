package api

import (
    "context"
    "encoding/json"
    "net/http"
    "strings"
    "time"

    "cargoplan/internal/model"
    "cargoplan/internal/opt"
)

// OptimizerConfigHandler returns the effective planner settings for the tenant
func (s *Server) OptimizerConfigHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    p, ok := s.authorize(w, r, nil, "")
    if !ok { return }
    stored, err := s.Store.GetOptimizerConfig(r.Context(), p.Tenant)
    if err != nil { writeProblem(w, 500, "Read config failed", err.Error(), r.URL.Path); return }
    o, err := decodeOverrides(stored)
    if err != nil { writeProblem(w, 500, "Stored config invalid", err.Error(), r.URL.Path); return }
    base := s.Planner
    defaults := map[string]any{
        "optimizer":    base.Optimizer.WithDefaults().Overlay(o.Params),
        "candidates":   base.Candidates,
        "timeBudgetMs": base.TimeBudget.Milliseconds(),
        "hubs":         base.Hubs,
        "sla": map[string]float64{
            "intraHours":  base.SLA.Intra.Hours(),
            "interHours":  base.SLA.Inter.Hours(),
            "pickupHours": base.SLA.Pickup.Hours(),
        },
    }
    if o.Candidates > 0 { defaults["candidates"] = o.Candidates }
    if o.TimeBudgetMs > 0 { defaults["timeBudgetMs"] = o.TimeBudgetMs }
    if len(o.Hubs) > 0 { defaults["hubs"] = o.Hubs }
    writeJSON(w, 200, map[string]any{"defaults": defaults})
}

// AdminOptimizerConfigHandler gets or replaces the tenant overrides
func (s *Server) AdminOptimizerConfigHandler(w http.ResponseWriter, r *http.Request) {
    p, ok := s.authorize(w, r, Principal.IsAdmin, "admin")
    if !ok { return }
    switch r.Method {
    case http.MethodGet:
        cfg, err := s.Store.GetOptimizerConfig(r.Context(), p.Tenant)
        if err != nil { writeProblem(w, 500, "Read config failed", err.Error(), r.URL.Path); return }
        if cfg == nil { cfg = map[string]any{} }
        writeJSON(w, 200, map[string]any{"config": cfg})
    case http.MethodPut:
        var body struct{ Config map[string]any `json:"config"` }
        if err := json.NewDecoder(r.Body).Decode(&body); err != nil { writeProblem(w, 400, "Invalid JSON", err.Error(), r.URL.Path); return }
        if body.Config == nil { writeProblem(w, 400, "Missing config", "", r.URL.Path); return }
        if _, err := decodeOverrides(body.Config); err != nil { writeProblem(w, 400, "Invalid config", err.Error(), r.URL.Path); return }
        if err := s.Store.SaveOptimizerConfig(r.Context(), p.Tenant, body.Config); err != nil { writeProblem(w, 500, "Save failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, map[string]bool{"ok": true})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// PlanMetricsHandler lists optimizer runs; ?planId= narrows to one plan.
// Falls back to the in-process record when the store has nothing.
func (s *Server) PlanMetricsHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    p, ok := s.authorize(w, r, Principal.IsAdmin, "admin")
    if !ok { return }
    planID := r.URL.Query().Get("planId")
    items, err := s.Store.ListPlanMetrics(r.Context(), p.Tenant, planID)
    if err != nil || len(items) == 0 {
        items = []model.PlanMetrics{}
        ids := opt.ListMetrics(p.Tenant)
        if planID != "" { ids = []string{planID} }
        for _, id := range ids {
            if m, ok := opt.GetMetrics(p.Tenant, id); ok { items = append(items, model.PlanMetrics{PlanID: id, Metrics: m}) }
        }
    }
    if strings.EqualFold(r.URL.Query().Get("includeSnapshots"), "false") {
        for i := range items { items[i].Snapshots = nil }
    }
    writeJSON(w, 200, map[string]any{"items": items})
}

// PlanSnapshotsHandler returns per-generation snapshots of one plan
func (s *Server) PlanSnapshotsHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    p, ok := s.authorize(w, r, Principal.IsAdmin, "admin")
    if !ok { return }
    planID := r.URL.Query().Get("planId")
    if planID == "" { writeProblem(w, 400, "Missing planId", "", r.URL.Path); return }
    items, err := s.Store.ListPlanSnapshots(r.Context(), p.Tenant, planID)
    if err != nil { writeProblem(w, 500, "Snapshots failed", err.Error(), r.URL.Path); return }
    if len(items) == 0 {
        if m, ok := opt.GetMetrics(p.Tenant, planID); ok { items = m.Snapshots }
    }
    writeJSON(w, 200, map[string]any{"items": items})
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
    p, ok := s.authorize(w, r, Principal.IsAdmin, "admin")
    if !ok { return }
    switch r.Method {
    case http.MethodPost:
        var req model.SubscriptionRequest
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil { writeProblem(w, 400, "Invalid JSON", err.Error(), r.URL.Path); return }
        if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") { writeProblem(w, 400, "Invalid subscription", "url must be http(s)", r.URL.Path); return }
        if len(req.Events) == 0 { writeProblem(w, 400, "Invalid subscription", "events must not be empty", r.URL.Path); return }
        req.TenantID = p.Tenant
        sub, err := s.Store.CreateSubscription(r.Context(), req)
        if err != nil { writeProblem(w, 500, "Create subscription failed", err.Error(), r.URL.Path); return }
        writeJSON(w, http.StatusCreated, sub)
    case http.MethodGet:
        items, next, err := s.Store.ListSubscriptions(r.Context(), p.Tenant, r.URL.Query().Get("cursor"), queryLimit(r))
        if err != nil { writeProblem(w, 500, "List subscriptions failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id}
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodDelete { w.WriteHeader(405); return }
    p, ok := s.authorize(w, r, Principal.IsAdmin, "admin")
    if !ok { return }
    id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
    if err := s.Store.DeleteSubscription(r.Context(), p.Tenant, id); err != nil { writeProblem(w, statusFor(err), "Delete subscription failed", err.Error(), r.URL.Path); return }
    w.WriteHeader(204)
}

// WebhookDeliveriesHandler lists the delivery log
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(405); return }
    p, ok := s.authorize(w, r, Principal.IsAdmin, "admin")
    if !ok { return }
    items, next, err := s.Store.ListWebhookDeliveries(r.Context(), p.Tenant, r.URL.Query().Get("status"), r.URL.Query().Get("cursor"), queryLimit(r))
    if err != nil { writeProblem(w, 500, "List deliveries failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

// WebhookDeliveryRetryHandler handles POST /v1/admin/webhook-deliveries/{id}/retry
func (s *Server) WebhookDeliveryRetryHandler(w http.ResponseWriter, r *http.Request) {
    if !strings.HasSuffix(r.URL.Path, "/retry") { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodPost { w.WriteHeader(405); return }
    p, ok := s.authorize(w, r, Principal.IsAdmin, "admin")
    if !ok { return }
    id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/"), "/retry")
    if err := s.Store.RetryWebhookDelivery(r.Context(), p.Tenant, id); err != nil { writeProblem(w, statusFor(err), "Retry delivery failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 202, map[string]int{"accepted": 1})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    type pinger interface{ Ping(ctx context.Context) error }
    if pg, ok := s.Store.(pinger); ok {
        ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
        defer cancel()
        if err := pg.Ping(ctx); err != nil { writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path); return }
    }
    writeJSON(w, 200, map[string]string{"status": "ready"})
}
