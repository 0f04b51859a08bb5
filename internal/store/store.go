package store

import (
    "context"
    "errors"
    "time"

    "cargoplan/internal/model"
    "cargoplan/internal/opt"
)

// Store is the persistence interface used by the API server.
type Store interface {
    // Plans
    SavePlan(ctx context.Context, p model.Plan) error
    GetPlan(ctx context.Context, tenantID, planID string) (model.Plan, error)
    ListPlans(ctx context.Context, tenantID, cursor string, limit int) ([]model.PlanListItem, string, error)
    // TenantLedger sums the reservations of every committed plan of the tenant.
    TenantLedger(ctx context.Context, tenantID string) (map[string]int, error)

    // Optimizer metrics
    SavePlanMetrics(ctx context.Context, tenantID, planID string, m opt.Metrics) error
    ListPlanMetrics(ctx context.Context, tenantID, planID string) ([]model.PlanMetrics, error)
    ListPlanSnapshots(ctx context.Context, tenantID, planID string) ([]opt.GenerationSnapshot, error)

    // Optimizer config per tenant
    GetOptimizerConfig(ctx context.Context, tenantID string) (map[string]any, error)
    SaveOptimizerConfig(ctx context.Context, tenantID string, cfg map[string]any) error

    // Subscriptions
    CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
    GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error)
    ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error)
    DeleteSubscription(ctx context.Context, tenantID, id string) error

    // Webhook deliveries
    EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
    FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
    MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
    FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
    ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]DeliveryView, string, error)
    RetryWebhookDelivery(ctx context.Context, tenantID, id string) error
}

var ErrNotFound = errors.New("not found")

func clampLimit(limit int) int {
    if limit <= 0 || limit > 500 { return 100 }
    return limit
}
