//go:build postgres_integration

package store

import (
    "os"
    "testing"
    "time"

    "cargoplan/internal/model"
)

func TestPostgresRoundTrip(t *testing.T) {
    dsn := os.Getenv("DATABASE_URL")
    if dsn == "" { t.Skip("DATABASE_URL not set; skipping integration test") }
    p, err := NewPostgres(dsn, true)
    if err != nil { t.Fatalf("NewPostgres: %v", err) }
    defer p.Close()
    if err := p.Ping(t.Context()); err != nil { t.Fatalf("Ping: %v", err) }

    id := "pln_it_" + time.Now().Format("150405.000000")
    pl := model.Plan{ID: id, TenantID: "t_it", Status: model.PlanCommitted, CreatedAt: time.Now(), Reserved: map[string]int{"A@1→B@2": 4}}
    if err := p.SavePlan(t.Context(), pl); err != nil { t.Fatalf("SavePlan: %v", err) }
    got, err := p.GetPlan(t.Context(), "t_it", id)
    if err != nil || got.Reserved["A@1→B@2"] != 4 { t.Fatalf("GetPlan: %+v %v", got, err) }
    led, err := p.TenantLedger(t.Context(), "t_it")
    if err != nil || led["A@1→B@2"] < 4 { t.Fatalf("TenantLedger: %v %v", led, err) }
}
