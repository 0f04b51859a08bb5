// Package events publishes plan lifecycle events to external consumers.
package events

import (
	"context"
	"time"
)

const (
	TopicPlanCommitted = "cargoplan.plan.committed"
	TopicPlanFailed    = "cargoplan.plan.failed"
)

// PlanCommitted is emitted once a plan's reservations are in the ledger.
type PlanCommitted struct {
	PlanID      string    `json:"planId"`
	Tenant      string    `json:"tenant"`
	Orders      int       `json:"orders"`
	Assigned    int       `json:"assigned"`
	Quantity    int       `json:"assignedQuantity"`
	Score       float64   `json:"score"`
	StopReason  string    `json:"stopReason"`
	CommittedAt time.Time `json:"committedAt"`
}

type PlanFailed struct {
	Tenant string `json:"tenant"`
	Error  string `json:"error"`
}

type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
