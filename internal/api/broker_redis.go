package api

import (
    "context"
    "encoding/json"
    "log"
    "sync"
    "time"

    redis "github.com/redis/go-redis/v9"
)

// RedisBroker implements EventBroker over Redis Pub/Sub so every API replica
// sees every plan event.
type RedisBroker struct {
    rdb *redis.Client

    mu   sync.Mutex
    subs map[chan SSEEvent]*redis.PubSub
}

func NewRedisBroker(url string) (*RedisBroker, error) {
    opt, err := redis.ParseURL(url)
    if err != nil { return nil, err }
    return newRedisBroker(redis.NewClient(opt)), nil
}

func newRedisBroker(rdb *redis.Client) *RedisBroker {
    return &RedisBroker{rdb: rdb, subs: map[chan SSEEvent]*redis.PubSub{}}
}

func (b *RedisBroker) Subscribe(planID string) chan SSEEvent {
    ch := make(chan SSEEvent, 16)
    ctx := context.Background()
    ps := b.rdb.Subscribe(ctx, b.chanName(planID))
    // wait for the subscription to be confirmed so no publish is missed
    if _, err := ps.Receive(ctx); err != nil { log.Printf("redis broker: subscribe %s: %v", planID, err) }
    b.mu.Lock()
    b.subs[ch] = ps
    b.mu.Unlock()
    go func() {
        defer close(ch)
        for msg := range ps.Channel() {
            var evt SSEEvent
            if err := json.Unmarshal([]byte(msg.Payload), &evt); err == nil {
                select { case ch <- evt: default: }
            }
        }
    }()
    return ch
}

// Unsubscribe closes the Pub/Sub connection; the fan-out goroutine then closes ch.
func (b *RedisBroker) Unsubscribe(planID string, ch chan SSEEvent) {
    b.mu.Lock()
    ps := b.subs[ch]
    delete(b.subs, ch)
    b.mu.Unlock()
    if ps != nil { _ = ps.Close() }
}

func (b *RedisBroker) Publish(planID string, evt SSEEvent) {
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    data, _ := json.Marshal(evt)
    if err := b.rdb.Publish(ctx, b.chanName(planID), data).Err(); err != nil {
        log.Printf("redis broker: publish %s: %v", planID, err)
    }
}

func (b *RedisBroker) Close() error { return b.rdb.Close() }

func (b *RedisBroker) chanName(planID string) string { return "plan:" + planID }
