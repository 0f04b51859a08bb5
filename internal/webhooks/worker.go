package webhooks

import (
    "bytes"
    "context"
    "errors"
    "fmt"
    "log"
    "net/http"
    "net/url"
    "sync"
    "time"

    "github.com/sony/gobreaker"

    "cargoplan/internal/metrics"
    "cargoplan/internal/store"
)

type Worker struct {
    Store       store.Store
    HTTP        *http.Client
    Stop        chan struct{}
    MaxAttempts int

    mu       sync.Mutex
    breakers map[string]*gobreaker.CircuitBreaker // host -> breaker
}

func NewWorker(s store.Store, maxAttempts int) *Worker {
    if maxAttempts <= 0 { maxAttempts = 10 }
    return &Worker{Store: s, HTTP: &http.Client{Timeout: 5 * time.Second}, Stop: make(chan struct{}), MaxAttempts: maxAttempts}
}

func (w *Worker) Start() {
    go func() {
        ticker := time.NewTicker(1 * time.Second)
        defer ticker.Stop()
        for {
            select {
            case <-w.Stop:
                return
            case <-ticker.C:
                w.processOnce()
            }
        }
    }()
}

// breaker returns the circuit breaker of the delivery's host; a receiver that
// keeps failing is skipped until the breaker half-opens.
func (w *Worker) breaker(target string) *gobreaker.CircuitBreaker {
    host := target
    if u, err := url.Parse(target); err == nil && u.Host != "" { host = u.Host }
    w.mu.Lock(); defer w.mu.Unlock()
    if w.breakers == nil { w.breakers = map[string]*gobreaker.CircuitBreaker{} }
    cb, ok := w.breakers[host]
    if !ok {
        cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
            Name:    "webhook " + host,
            Timeout: 30 * time.Second,
            ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 5 },
        })
        w.breakers[host] = cb
    }
    return cb
}

type statusError struct{ code int }

func (e statusError) Error() string { return fmt.Sprintf("receiver answered %d", e.code) }

func (w *Worker) processOnce() {
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    items, err := w.Store.FetchDueWebhookDeliveries(ctx, 50)
    if err != nil {
        log.Printf("webhooks: fetch due deliveries: %v", err)
        return
    }
    for _, it := range items {
        start := time.Now()
        code := 0
        _, err := w.breaker(it.URL).Execute(func() (interface{}, error) {
            c, err := w.send(ctx, it)
            code = c
            return nil, err
        })
        latency := int(time.Since(start).Milliseconds())
        success := err == nil
        lastErr := ""
        if err != nil { lastErr = err.Error() }
        status := store.DeliveryDelivered
        switch {
        case success:
            _ = w.Store.MarkWebhookDelivery(ctx, it.ID, true, nil, "", code, latency)
        case it.Attempts+1 >= w.MaxAttempts:
            status = store.DeliveryFailed
            _ = w.Store.FailWebhookDelivery(ctx, it.ID, lastErr, code, latency)
        default:
            status = store.DeliveryRetry
            if errors.Is(err, gobreaker.ErrOpenState) { status = "circuit_open" }
            next := time.Now().Add(nextBackoff(it.Attempts))
            _ = w.Store.MarkWebhookDelivery(ctx, it.ID, false, &next, lastErr, code, latency)
        }
        metrics.WebhookDeliveries.WithLabelValues(it.EventType, status).Inc()
        metrics.WebhookLatency.WithLabelValues(it.EventType, status).Observe(float64(latency))
    }
}

func (w *Worker) send(ctx context.Context, it store.WebhookDelivery) (int, error) {
    req, err := http.NewRequestWithContext(ctx, http.MethodPost, it.URL, bytes.NewReader(it.Payload))
    if err != nil { return 0, err }
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("X-Event-Type", it.EventType)
    if it.Secret != "" { req.Header.Set("X-Signature", SignHMAC(it.Secret, it.Payload)) }
    resp, err := w.HTTP.Do(req)
    if err != nil { return 0, err }
    _ = resp.Body.Close()
    if resp.StatusCode < 200 || resp.StatusCode >= 300 { return resp.StatusCode, statusError{resp.StatusCode} }
    return resp.StatusCode, nil
}

func nextBackoff(attempts int) time.Duration {
    if attempts < 0 { attempts = 0 }
    if attempts > 10 { attempts = 10 }
    base := time.Second * time.Duration(1<<attempts)
    if base > time.Hour { base = time.Hour }
    return base
}
