package store

import (
    "context"
    "database/sql"
    "embed"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    "github.com/golang-migrate/migrate/v4"
    migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
    "github.com/golang-migrate/migrate/v4/source/iofs"
    "github.com/google/uuid"
    _ "github.com/jackc/pgx/v5/stdlib"

    "cargoplan/internal/model"
    "cargoplan/internal/opt"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Postgres struct {
    db *sql.DB
}

var _ Store = (*Postgres)(nil)

// NewPostgres opens the database, configures the pool and, when migrateUp is
// set, applies the embedded migrations.
func NewPostgres(dsn string, migrateUp bool) (*Postgres, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil { return nil, fmt.Errorf("open database: %w", err) }
    db.SetMaxOpenConns(20)
    db.SetMaxIdleConns(5)
    db.SetConnMaxLifetime(5 * time.Minute)
    if err := db.Ping(); err != nil {
        db.Close()
        return nil, fmt.Errorf("ping database: %w", err)
    }
    p := &Postgres{db: db}
    if migrateUp {
        if err := p.Migrate(); err != nil {
            db.Close()
            return nil, err
        }
    }
    return p, nil
}

func (p *Postgres) Migrate() error {
    src, err := iofs.New(migrationsFS, "migrations")
    if err != nil { return fmt.Errorf("migration source: %w", err) }
    drv, err := migratepgx.WithInstance(p.db, &migratepgx.Config{})
    if err != nil { return fmt.Errorf("migration driver: %w", err) }
    m, err := migrate.NewWithInstance("iofs", src, "pgx5", drv)
    if err != nil { return fmt.Errorf("migrator: %w", err) }
    if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
        return fmt.Errorf("apply migrations: %w", err)
    }
    return nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

// SavePlan stores the plan document and its per-arc reservations in one transaction.
func (p *Postgres) SavePlan(ctx context.Context, pl model.Plan) error {
    doc, err := json.Marshal(pl)
    if err != nil { return fmt.Errorf("encode plan: %w", err) }
    tx, err := p.db.BeginTx(ctx, nil)
    if err != nil { return err }
    defer func(){ _ = tx.Rollback() }()
    _, err = tx.ExecContext(ctx, `INSERT INTO plans (id, tenant_id, status, created_at, total_orders, assigned, best_score, doc) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (id) DO UPDATE SET status=$3, total_orders=$5, assigned=$6, best_score=$7, doc=$8`,
        pl.ID, pl.TenantID, pl.Status, pl.CreatedAt, pl.Summary.TotalOrders, pl.Summary.Assigned, pl.Metrics.BestScore, doc)
    if err != nil { return fmt.Errorf("insert plan: %w", err) }
    if _, err := tx.ExecContext(ctx, `DELETE FROM plan_reservations WHERE plan_id=$1`, pl.ID); err != nil { return err }
    for arc, q := range pl.Reserved {
        if q <= 0 { continue }
        if _, err := tx.ExecContext(ctx, `INSERT INTO plan_reservations (plan_id, tenant_id, arc_id, quantity) VALUES ($1,$2,$3,$4)`, pl.ID, pl.TenantID, arc, q); err != nil {
            return fmt.Errorf("insert reservation: %w", err)
        }
    }
    return tx.Commit()
}

func (p *Postgres) GetPlan(ctx context.Context, tenantID, planID string) (model.Plan, error) {
    var doc []byte
    err := p.db.QueryRowContext(ctx, `SELECT doc FROM plans WHERE tenant_id=$1 AND id=$2`, tenantID, planID).Scan(&doc)
    if errors.Is(err, sql.ErrNoRows) { return model.Plan{}, ErrNotFound }
    if err != nil { return model.Plan{}, err }
    var pl model.Plan
    if err := json.Unmarshal(doc, &pl); err != nil { return model.Plan{}, fmt.Errorf("decode plan: %w", err) }
    return pl, nil
}

func (p *Postgres) ListPlans(ctx context.Context, tenantID, cursor string, limit int) ([]model.PlanListItem, string, error) {
    limit = clampLimit(limit)
    var rows *sql.Rows
    var err error
    if cursor != "" {
        rows, err = p.db.QueryContext(ctx, `SELECT id, status, created_at, total_orders, assigned, best_score FROM plans WHERE tenant_id=$1 AND id > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
    } else {
        rows, err = p.db.QueryContext(ctx, `SELECT id, status, created_at, total_orders, assigned, best_score FROM plans WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []model.PlanListItem{}
    var last string
    for rows.Next() {
        var it model.PlanListItem
        if err := rows.Scan(&it.ID, &it.Status, &it.CreatedAt, &it.TotalOrders, &it.Assigned, &it.BestScore); err != nil { return nil, "", err }
        out = append(out, it)
        last = it.ID
    }
    if err := rows.Err(); err != nil { return nil, "", err }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) TenantLedger(ctx context.Context, tenantID string) (map[string]int, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT arc_id, SUM(quantity) FROM plan_reservations WHERE tenant_id=$1 GROUP BY arc_id`, tenantID)
    if err != nil { return nil, err }
    defer rows.Close()
    out := map[string]int{}
    for rows.Next() {
        var arc string
        var q int
        if err := rows.Scan(&arc, &q); err != nil { return nil, err }
        out[arc] = q
    }
    return out, rows.Err()
}

func (p *Postgres) SavePlanMetrics(ctx context.Context, tenantID, planID string, m opt.Metrics) error {
    tx, err := p.db.BeginTx(ctx, nil)
    if err != nil { return err }
    defer func(){ _ = tx.Rollback() }()
    _, err = tx.ExecContext(ctx, `INSERT INTO plan_metrics (tenant_id, plan_id, generations, evaluations, improvements, crossovers, mutations, local_searches, local_search_accepted, initial_score, best_score, stop_reason, seed)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        ON CONFLICT (tenant_id, plan_id) DO UPDATE SET
          generations=$3, evaluations=$4, improvements=$5, crossovers=$6, mutations=$7, local_searches=$8, local_search_accepted=$9, initial_score=$10, best_score=$11, stop_reason=$12, seed=$13, created_at=now()`,
        tenantID, planID, m.Generations, m.Evaluations, m.Improvements, m.Crossovers, m.Mutations, m.LocalSearches, m.LocalSearchAccepted, m.InitialScore, m.BestScore, m.StopReason, m.Seed)
    if err != nil { return fmt.Errorf("insert plan metrics: %w", err) }
    for _, s := range m.Snapshots {
        _, err := tx.ExecContext(ctx, `INSERT INTO plan_metrics_snapshots (tenant_id, plan_id, generation, best_score, mean_score, best_assigned) VALUES ($1,$2,$3,$4,$5,$6)
            ON CONFLICT (tenant_id, plan_id, generation) DO UPDATE SET best_score=$4, mean_score=$5, best_assigned=$6`,
            tenantID, planID, s.Generation, s.BestScore, s.MeanScore, s.BestAssigned)
        if err != nil { return fmt.Errorf("insert snapshot: %w", err) }
    }
    return tx.Commit()
}

func (p *Postgres) ListPlanMetrics(ctx context.Context, tenantID, planID string) ([]model.PlanMetrics, error) {
    q := `SELECT plan_id, generations, evaluations, improvements, crossovers, mutations, local_searches, local_search_accepted, initial_score, best_score, stop_reason, seed, created_at FROM plan_metrics WHERE tenant_id=$1`
    args := []any{tenantID}
    if planID != "" { q += ` AND plan_id=$2`; args = append(args, planID) }
    rows, err := p.db.QueryContext(ctx, q+` ORDER BY plan_id`, args...)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.PlanMetrics{}
    for rows.Next() {
        var pm model.PlanMetrics
        if err := rows.Scan(&pm.PlanID, &pm.Generations, &pm.Evaluations, &pm.Improvements, &pm.Crossovers, &pm.Mutations, &pm.LocalSearches, &pm.LocalSearchAccepted, &pm.InitialScore, &pm.BestScore, &pm.StopReason, &pm.Seed, &pm.CreatedAt); err != nil { return nil, err }
        out = append(out, pm)
    }
    return out, rows.Err()
}

func (p *Postgres) ListPlanSnapshots(ctx context.Context, tenantID, planID string) ([]opt.GenerationSnapshot, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT generation, best_score, mean_score, best_assigned FROM plan_metrics_snapshots WHERE tenant_id=$1 AND plan_id=$2 ORDER BY generation`, tenantID, planID)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []opt.GenerationSnapshot{}
    for rows.Next() {
        var s opt.GenerationSnapshot
        if err := rows.Scan(&s.Generation, &s.BestScore, &s.MeanScore, &s.BestAssigned); err != nil { return nil, err }
        out = append(out, s)
    }
    return out, rows.Err()
}

func (p *Postgres) GetOptimizerConfig(ctx context.Context, tenantID string) (map[string]any, error) {
    var js []byte
    if err := p.db.QueryRowContext(ctx, `SELECT config FROM optimizer_config WHERE tenant_id=$1`, tenantID).Scan(&js); err != nil {
        if errors.Is(err, sql.ErrNoRows) { return nil, nil }
        return nil, err
    }
    var cfg map[string]any
    if err := json.Unmarshal(js, &cfg); err != nil { return nil, err }
    return cfg, nil
}

func (p *Postgres) SaveOptimizerConfig(ctx context.Context, tenantID string, cfg map[string]any) error {
    js, err := json.Marshal(cfg)
    if err != nil { return err }
    _, err = p.db.ExecContext(ctx, `INSERT INTO optimizer_config (tenant_id, config, updated_at) VALUES ($1, $2, now())
        ON CONFLICT (tenant_id) DO UPDATE SET config=$2, updated_at=now()`, tenantID, js)
    return err
}

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
    id := uuid.New().String()
    ev, _ := json.Marshal(req.Events)
    _, err := p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, tenant_id, url, events, secret) VALUES ($1,$2,$3,$4,$5)`, id, req.TenantID, req.URL, ev, nullIfEmpty(req.Secret))
    if err != nil { return model.Subscription{}, err }
    return model.Subscription{ID: id, TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
    filter, _ := json.Marshal([]string{eventType})
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, COALESCE(secret,''), events FROM subscriptions WHERE tenant_id=$1 AND events @> $2::jsonb`, tenantID, string(filter))
    if err != nil { return nil, err }
    defer rows.Close()
    return scanSubscriptions(rows, tenantID)
}

func (p *Postgres) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
    limit = clampLimit(limit)
    var rows *sql.Rows
    var err error
    if cursor != "" {
        rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, COALESCE(secret,''), events FROM subscriptions WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
    } else {
        rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, COALESCE(secret,''), events FROM subscriptions WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    out, err := scanSubscriptions(rows, tenantID)
    if err != nil { return nil, "", err }
    next := ""
    if len(out) == limit { next = out[len(out)-1].ID }
    return out, next, nil
}

func scanSubscriptions(rows *sql.Rows, tenantID string) ([]model.Subscription, error) {
    out := []model.Subscription{}
    for rows.Next() {
        var s model.Subscription
        var ev []byte
        if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev); err != nil { return nil, err }
        s.TenantID = tenantID
        _ = json.Unmarshal(ev, &s.Events)
        out = append(out, s)
    }
    return out, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, tenantID, id string) error {
    res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE tenant_id=$1 AND id::text=$2`, tenantID, id)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

// Webhook deliveries
func (p *Postgres) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
    id := uuid.New().String()
    _, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at, dedup_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,'pending',0,now(),$8)
        ON CONFLICT (tenant_id, event_type, url, dedup_key) DO NOTHING`, id, tenantID, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload, dedupKey(payload))
    if err != nil { return "", err }
    return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, tenant_id, COALESCE(subscription_id::text,''), event_type, url, COALESCE(secret,''), payload, status, attempts
        FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []WebhookDelivery{}
    for rows.Next() {
        var d WebhookDelivery
        if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil { return nil, err }
        out = append(out, d)
    }
    return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    if success {
        _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', delivered_at=now(), updated_at=now(), response_code=$2, latency_ms=$3 WHERE id=$1`, id, responseCode, latencyMs)
        return err
    }
    if nextAttemptAt == nil { t := time.Now().Add(time.Minute); nextAttemptAt = &t }
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$2, next_attempt_at=$3, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$1`, id, nullIfEmpty(lastError), *nextAttemptAt, responseCode, latencyMs)
    return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='failed', last_error=$2, updated_at=now(), response_code=$3, latency_ms=$4 WHERE id=$1`, id, nullIfEmpty(lastError), responseCode, latencyMs)
    return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]DeliveryView, string, error) {
    limit = clampLimit(limit)
    q := `SELECT id::text, event_type, status, attempts, url, next_attempt_at, COALESCE(last_error,''), COALESCE(response_code,0) FROM webhook_deliveries WHERE tenant_id=$1`
    args := []any{tenantID}
    if status != "" { args = append(args, status); q += fmt.Sprintf(` AND status=$%d`, len(args)) }
    if cursor != "" { args = append(args, cursor); q += fmt.Sprintf(` AND id::text > $%d`, len(args)) }
    args = append(args, limit)
    q += fmt.Sprintf(` ORDER BY id LIMIT $%d`, len(args))
    rows, err := p.db.QueryContext(ctx, q, args...)
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []DeliveryView{}
    for rows.Next() {
        var v DeliveryView
        var nextAt sql.NullTime
        if err := rows.Scan(&v.ID, &v.EventType, &v.Status, &v.Attempts, &v.URL, &nextAt, &v.LastError, &v.ResponseCode); err != nil { return nil, "", err }
        if nextAt.Valid && (v.Status == DeliveryPending || v.Status == DeliveryRetry) { t := nextAt.Time; v.NextAttemptAt = &t }
        out = append(out, v)
    }
    if err := rows.Err(); err != nil { return nil, "", err }
    next := ""
    if len(out) == limit { next = out[len(out)-1].ID }
    return out, next, nil
}

func (p *Postgres) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
    res, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='pending', next_attempt_at=now(), updated_at=now() WHERE tenant_id=$1 AND id::text=$2`, tenantID, id)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

func nullIfEmpty(s string) any { if s == "" { return nil }; return s }
