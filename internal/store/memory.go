package store

import (
    "context"
    "sort"
    "sync"
    "time"

    "github.com/google/uuid"

    "cargoplan/internal/model"
    "cargoplan/internal/opt"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
    mu      sync.Mutex
    plans   map[string]model.Plan                 // planId -> plan
    byTen   map[string][]string                   // tenant -> plan ids, oldest first
    metrics map[string]map[string]model.PlanMetrics // tenant -> planId -> metrics
    subs    map[string][]model.Subscription       // tenant -> subscriptions
    optCfg  map[string]map[string]any             // tenant -> config
    // Webhooks queue state
    deliveries         map[string]*memDelivery // id -> delivery state
    deliveriesByTenant map[string][]string     // tenant -> delivery ids
    dedup              map[string]string       // tenant|event|url|key -> delivery id
}

func NewMemory() *Memory {
    return &Memory{
        plans:              map[string]model.Plan{},
        byTen:              map[string][]string{},
        metrics:            map[string]map[string]model.PlanMetrics{},
        subs:               map[string][]model.Subscription{},
        optCfg:             map[string]map[string]any{},
        deliveries:         map[string]*memDelivery{},
        deliveriesByTenant: map[string][]string{},
        dedup:              map[string]string{},
    }
}

// memDelivery augments WebhookDelivery with scheduling state
type memDelivery struct {
    WebhookDelivery
    NextAttemptAt time.Time
    LastError     string
    ResponseCode  int
    LatencyMs     int
    DeliveredAt   *time.Time
}

func (m *Memory) SavePlan(ctx context.Context, p model.Plan) error {
    m.mu.Lock(); defer m.mu.Unlock()
    if _, ok := m.plans[p.ID]; !ok {
        m.byTen[p.TenantID] = append(m.byTen[p.TenantID], p.ID)
    }
    m.plans[p.ID] = p
    return nil
}

func (m *Memory) GetPlan(ctx context.Context, tenantID, planID string) (model.Plan, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    p, ok := m.plans[planID]
    if !ok || p.TenantID != tenantID { return model.Plan{}, ErrNotFound }
    return p, nil
}

func (m *Memory) ListPlans(ctx context.Context, tenantID, cursor string, limit int) ([]model.PlanListItem, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    ids := m.byTen[tenantID]
    start := 0
    if cursor != "" {
        for i, id := range ids {
            if id == cursor { start = i + 1; break }
        }
    }
    limit = clampLimit(limit)
    out := []model.PlanListItem{}
    var next string
    for i := start; i < len(ids) && len(out) < limit; i++ {
        out = append(out, m.plans[ids[i]].ListItem())
        next = ids[i]
    }
    if len(out) < limit { next = "" }
    return out, next, nil
}

func (m *Memory) TenantLedger(ctx context.Context, tenantID string) (map[string]int, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := map[string]int{}
    for _, id := range m.byTen[tenantID] {
        for arc, q := range m.plans[id].Reserved { out[arc] += q }
    }
    return out, nil
}

func (m *Memory) SavePlanMetrics(ctx context.Context, tenantID, planID string, mx opt.Metrics) error {
    m.mu.Lock(); defer m.mu.Unlock()
    if m.metrics[tenantID] == nil { m.metrics[tenantID] = map[string]model.PlanMetrics{} }
    m.metrics[tenantID][planID] = model.PlanMetrics{PlanID: planID, CreatedAt: time.Now().UTC(), Metrics: mx}
    return nil
}

func (m *Memory) ListPlanMetrics(ctx context.Context, tenantID, planID string) ([]model.PlanMetrics, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []model.PlanMetrics{}
    for id, pm := range m.metrics[tenantID] {
        if planID != "" && id != planID { continue }
        pm.Snapshots = nil
        out = append(out, pm)
    }
    sort.Slice(out, func(i, j int) bool { return out[i].PlanID < out[j].PlanID })
    return out, nil
}

func (m *Memory) ListPlanSnapshots(ctx context.Context, tenantID, planID string) ([]opt.GenerationSnapshot, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    pm, ok := m.metrics[tenantID][planID]
    if !ok { return []opt.GenerationSnapshot{}, nil }
    return append([]opt.GenerationSnapshot{}, pm.Snapshots...), nil
}

func (m *Memory) GetOptimizerConfig(ctx context.Context, tenantID string) (map[string]any, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if cfg, ok := m.optCfg[tenantID]; ok { return cfg, nil }
    return nil, nil
}

func (m *Memory) SaveOptimizerConfig(ctx context.Context, tenantID string, cfg map[string]any) error {
    m.mu.Lock(); defer m.mu.Unlock()
    m.optCfg[tenantID] = cfg
    return nil
}

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    s := model.Subscription{ID: uuid.New().String(), TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}
    m.subs[req.TenantID] = append(m.subs[req.TenantID], s)
    return s, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []model.Subscription{}
    for _, s := range m.subs[tenantID] {
        for _, e := range s.Events {
            if e == eventType { out = append(out, s); break }
        }
    }
    return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    all := m.subs[tenantID]
    start := 0
    if cursor != "" {
        for i, s := range all {
            if s.ID == cursor { start = i + 1; break }
        }
    }
    limit = clampLimit(limit)
    out := []model.Subscription{}
    var next string
    for i := start; i < len(all) && len(out) < limit; i++ {
        out = append(out, all[i])
        next = all[i].ID
    }
    if len(out) < limit { next = "" }
    return out, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    list := m.subs[tenantID]
    for i, s := range list {
        if s.ID == id {
            m.subs[tenantID] = append(list[:i:i], list[i+1:]...)
            return nil
        }
    }
    return ErrNotFound
}

// Webhook deliveries
func (m *Memory) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    dk := tenantID + "|" + eventType + "|" + url + "|" + dedupKey(payload)
    if id, ok := m.dedup[dk]; ok { return id, nil }
    id := uuid.New().String()
    d := &memDelivery{WebhookDelivery: WebhookDelivery{ID: id, TenantID: tenantID, SubscriptionID: subscriptionID, EventType: eventType, URL: url, Secret: secret, Payload: payload, Status: DeliveryPending}, NextAttemptAt: time.Now()}
    m.deliveries[id] = d
    m.deliveriesByTenant[tenantID] = append(m.deliveriesByTenant[tenantID], id)
    m.dedup[dk] = id
    return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    now := time.Now()
    var due []*memDelivery
    for _, d := range m.deliveries {
        if (d.Status == DeliveryPending || d.Status == DeliveryRetry) && !d.NextAttemptAt.After(now) {
            due = append(due, d)
        }
    }
    sort.Slice(due, func(i, j int) bool { return due[i].NextAttemptAt.Before(due[j].NextAttemptAt) })
    out := []WebhookDelivery{}
    for _, d := range due {
        if limit > 0 && len(out) >= limit { break }
        out = append(out, d.WebhookDelivery)
    }
    return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d == nil { return ErrNotFound }
    d.Attempts++
    d.ResponseCode = responseCode
    d.LatencyMs = latencyMs
    if success {
        d.Status = DeliveryDelivered
        now := time.Now()
        d.DeliveredAt = &now
        return nil
    }
    d.Status = DeliveryRetry
    d.LastError = lastError
    if nextAttemptAt != nil { d.NextAttemptAt = *nextAttemptAt } else { d.NextAttemptAt = time.Now().Add(time.Minute) }
    return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d == nil { return ErrNotFound }
    d.Attempts++
    d.Status = DeliveryFailed
    d.LastError = lastError
    d.ResponseCode = responseCode
    d.LatencyMs = latencyMs
    return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]DeliveryView, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    ids := m.deliveriesByTenant[tenantID]
    start := 0
    if cursor != "" {
        for i, id := range ids {
            if id == cursor { start = i + 1; break }
        }
    }
    limit = clampLimit(limit)
    out := []DeliveryView{}
    var next string
    for i := start; i < len(ids) && len(out) < limit; i++ {
        d := m.deliveries[ids[i]]
        next = ids[i]
        if status != "" && d.Status != status { continue }
        v := DeliveryView{ID: d.ID, EventType: d.EventType, Status: d.Status, Attempts: d.Attempts, URL: d.URL, LastError: d.LastError, ResponseCode: d.ResponseCode}
        if d.Status == DeliveryPending || d.Status == DeliveryRetry {
            at := d.NextAttemptAt
            v.NextAttemptAt = &at
        }
        out = append(out, v)
    }
    if len(out) < limit { next = "" }
    return out, next, nil
}

func (m *Memory) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d == nil || d.TenantID != tenantID { return ErrNotFound }
    d.Status = DeliveryPending
    d.NextAttemptAt = time.Now()
    return nil
}
