package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cargoplan/internal/idgen"
	"cargoplan/internal/store"
)

const EventPlanCommitted = "plan.committed"

// Envelope is the JSON body delivered to subscribers.
type Envelope struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	TenantID string `json:"tenantId"`
	TS       string `json:"ts"`
	Data     any    `json:"data"`
}

type Publisher struct {
	Store store.Store
}

func NewPublisher(s store.Store) *Publisher {
	return &Publisher{Store: s}
}

// Emit enqueues one delivery per subscription of the tenant to eventType and
// reports how many were queued.
func (p *Publisher) Emit(ctx context.Context, tenantID, eventType string, data any) (int, error) {
	subs, err := p.Store.GetSubscriptionsForEvent(ctx, tenantID, eventType)
	if err != nil {
		return 0, fmt.Errorf("webhooks: subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return 0, nil
	}
	id, err := idgen.Event()
	if err != nil {
		return 0, err
	}
	body, err := json.Marshal(Envelope{ID: id, Type: eventType, TenantID: tenantID, TS: time.Now().UTC().Format(time.RFC3339), Data: data})
	if err != nil {
		return 0, fmt.Errorf("webhooks: encode %s: %w", eventType, err)
	}
	n := 0
	for _, s := range subs {
		if _, err := p.Store.EnqueueWebhook(ctx, tenantID, s.ID, eventType, s.URL, s.Secret, body); err != nil {
			return n, fmt.Errorf("webhooks: enqueue: %w", err)
		}
		n++
	}
	return n, nil
}
