package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"cargoplan/internal/model"
	"cargoplan/internal/opt"
)

func newMockPostgres(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return &Postgres{db: db}, mock
}

func TestDedupKeyFromID(t *testing.T) {
	if got := dedupKey([]byte(`{"id":"evt_123","type":"x"}`)); got != "evt_123" {
		t.Fatalf("want evt_123, got %s", got)
	}
}

func TestDedupKeyFromHash(t *testing.T) {
	b, err := hex.DecodeString(dedupKey([]byte(`{"notId":"x"}`)))
	if err != nil || len(b) != 8 {
		t.Fatalf("expected 8 hex-encoded bytes, got %v %d", err, len(b))
	}
}

func TestPostgresSavePlan(t *testing.T) {
	p, mock := newMockPostgres(t)
	pl := model.Plan{ID: "pln_1", TenantID: "t1", Status: model.PlanCommitted, CreatedAt: time.Now(), Reserved: map[string]int{"SPIM@x→SKBO@y": 5}}
	pl.Summary.TotalOrders = 2
	pl.Summary.Assigned = 1

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO plans").
		WithArgs("pln_1", "t1", "committed", sqlmock.AnyArg(), 2, 1, 0.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM plan_reservations").WithArgs("pln_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO plan_reservations").
		WithArgs("pln_1", "t1", "SPIM@x→SKBO@y", 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := p.SavePlan(context.Background(), pl); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}
}

func TestPostgresSavePlanRollsBackOnError(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO plans").WillReturnError(errors.New("boom"))
	mock.ExpectRollback()
	if err := p.SavePlan(context.Background(), model.Plan{ID: "pln_1", TenantID: "t1"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPostgresGetPlan(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectQuery("SELECT doc FROM plans").WithArgs("t1", "pln_1").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow([]byte(`{"id":"pln_1","tenantId":"t1","status":"committed","reserved":{"a":3}}`)))
	got, err := p.GetPlan(context.Background(), "t1", "pln_1")
	if err != nil {
		t.Fatalf("GetPlan: %v", err)
	}
	if got.ID != "pln_1" || got.Reserved["a"] != 3 {
		t.Fatalf("unexpected plan %+v", got)
	}

	mock.ExpectQuery("SELECT doc FROM plans").WithArgs("t1", "missing").WillReturnError(sql.ErrNoRows)
	if _, err := p.GetPlan(context.Background(), "t1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresListPlansCursor(t *testing.T) {
	p, mock := newMockPostgres(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "status", "created_at", "total_orders", "assigned", "best_score"}).
		AddRow("pln_a", "committed", now, 3, 2, 2.0e6).
		AddRow("pln_b", "committed", now, 4, 4, 4.0e6)
	mock.ExpectQuery("SELECT id, status, created_at, total_orders, assigned, best_score FROM plans WHERE tenant_id=\\$1 AND id > \\$2").
		WithArgs("t1", "pln_0", 2).WillReturnRows(rows)
	items, next, err := p.ListPlans(context.Background(), "t1", "pln_0", 2)
	if err != nil {
		t.Fatalf("ListPlans: %v", err)
	}
	if len(items) != 2 || next != "pln_b" || items[1].Assigned != 4 {
		t.Fatalf("items=%+v next=%q", items, next)
	}
}

func TestPostgresTenantLedger(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectQuery("SELECT arc_id, SUM\\(quantity\\) FROM plan_reservations").WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"arc_id", "sum"}).AddRow("a", 5).AddRow("b", 7))
	got, err := p.TenantLedger(context.Background(), "t1")
	if err != nil {
		t.Fatalf("TenantLedger: %v", err)
	}
	if got["a"] != 5 || got["b"] != 7 {
		t.Fatalf("ledger %v", got)
	}
}

func TestPostgresSavePlanMetricsWithSnapshots(t *testing.T) {
	p, mock := newMockPostgres(t)
	m := opt.Metrics{Generations: 20, BestScore: 3e6, StopReason: "generations", Seed: 7,
		Snapshots: []opt.GenerationSnapshot{{Generation: 10, BestScore: 2e6, MeanScore: 1e6, BestAssigned: 2}}}
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO plan_metrics ").
		WithArgs("t1", "pln_1", 20, 0, 0, 0, 0, 0, 0, 0.0, 3e6, "generations", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO plan_metrics_snapshots").
		WithArgs("t1", "pln_1", 10, 2e6, 1e6, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	if err := p.SavePlanMetrics(context.Background(), "t1", "pln_1", m); err != nil {
		t.Fatalf("SavePlanMetrics: %v", err)
	}
}

func TestPostgresListPlanSnapshots(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectQuery("SELECT generation, best_score, mean_score, best_assigned FROM plan_metrics_snapshots").
		WithArgs("t1", "pln_1").
		WillReturnRows(sqlmock.NewRows([]string{"generation", "best_score", "mean_score", "best_assigned"}).AddRow(10, 1.5, 1.0, 1).AddRow(20, 2.5, 2.0, 2))
	got, err := p.ListPlanSnapshots(context.Background(), "t1", "pln_1")
	if err != nil {
		t.Fatalf("ListPlanSnapshots: %v", err)
	}
	if len(got) != 2 || got[1].Generation != 20 || got[1].BestAssigned != 2 {
		t.Fatalf("snapshots %+v", got)
	}
}

func TestPostgresOptimizerConfigMissing(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectQuery("SELECT config FROM optimizer_config").WithArgs("t1").WillReturnError(sql.ErrNoRows)
	cfg, err := p.GetOptimizerConfig(context.Background(), "t1")
	if err != nil || cfg != nil {
		t.Fatalf("missing config should be nil, nil: %v %v", cfg, err)
	}
}

func TestPostgresEnqueueWebhookDedup(t *testing.T) {
	p, mock := newMockPostgres(t)
	body := []byte(`{"id":"evt_1"}`)
	mock.ExpectExec("INSERT INTO webhook_deliveries").
		WithArgs(sqlmock.AnyArg(), "t1", nil, "plan.committed", "http://hook", nil, body, "evt_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if _, err := p.EnqueueWebhook(context.Background(), "t1", "", "plan.committed", "http://hook", "", body); err != nil {
		t.Fatalf("EnqueueWebhook: %v", err)
	}
}

func TestPostgresDeleteSubscriptionNotFound(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectExec("DELETE FROM subscriptions").WithArgs("t1", "nope").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := p.DeleteSubscription(context.Background(), "t1", "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
