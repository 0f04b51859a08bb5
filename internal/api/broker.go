package api

import (
    "sync"
)

// SSEEvent is one plan event as delivered over SSE and WebSocket.
type SSEEvent struct {
    Type string         `json:"type"`
    Data map[string]any `json:"data"`
}

// EventBroker fans plan events out to live subscribers, keyed by plan id.
type EventBroker interface {
    Subscribe(planID string) chan SSEEvent
    Unsubscribe(planID string, ch chan SSEEvent)
    Publish(planID string, evt SSEEvent)
}

// TenantTopic is the broker key that receives every plan event of a tenant.
func TenantTopic(tenant string) string { return "tenant:" + tenant }

type Broker struct {
    mu   sync.Mutex
    subs map[string]map[chan SSEEvent]struct{}
}

func NewBroker() *Broker {
    return &Broker{subs: map[string]map[chan SSEEvent]struct{}{}}
}

func (b *Broker) Subscribe(planID string) chan SSEEvent {
    ch := make(chan SSEEvent, 8)
    b.mu.Lock()
    if b.subs[planID] == nil { b.subs[planID] = map[chan SSEEvent]struct{}{} }
    b.subs[planID][ch] = struct{}{}
    b.mu.Unlock()
    return ch
}

func (b *Broker) Unsubscribe(planID string, ch chan SSEEvent) {
    b.mu.Lock()
    defer b.mu.Unlock()
    m := b.subs[planID]
    if _, ok := m[ch]; !ok { return }
    delete(m, ch)
    if len(m) == 0 { delete(b.subs, planID) }
    close(ch)
}

// Publish never blocks; slow subscribers miss events.
func (b *Broker) Publish(planID string, evt SSEEvent) {
    b.mu.Lock()
    for ch := range b.subs[planID] {
        select { case ch <- evt: default: }
    }
    b.mu.Unlock()
}
