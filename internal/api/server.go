// Package api implements the HTTP surface of the cargo planning service.
package api

import (
    "context"
    "fmt"
    "io"
    "log"
    "sync"

    "cargoplan/internal/archive"
    "cargoplan/internal/auth"
    "cargoplan/internal/config"
    "cargoplan/internal/events"
    "cargoplan/internal/planner"
    "cargoplan/internal/store"
    "cargoplan/internal/webhooks"
)

type Server struct {
    Store   store.Store
    Pub     *webhooks.Publisher
    Auth    *auth.Verifier
    Broker  EventBroker
    Events  events.Publisher
    Archive archive.Sink
    Planner planner.Config
    Config  *config.Config

    tenantMu sync.Map // tenant -> *sync.Mutex; one planning pass per tenant at a time
}

// NewServer wires the service from cfg. Without DATABASE_URL it uses the
// in-memory store; without REDIS_URL the in-process broker; NATS and the
// archive are skipped when unset.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
    var s store.Store
    if cfg.DatabaseURL == "" {
        s = store.NewMemory()
    } else {
        sp, err := store.NewPostgres(cfg.DatabaseURL, cfg.DBMigrate)
        if err != nil { return nil, err }
        s = sp
    }
    var broker EventBroker = NewBroker()
    if cfg.RedisURL != "" {
        rb, err := NewRedisBroker(cfg.RedisURL)
        if err != nil { return nil, fmt.Errorf("redis broker: %w", err) }
        broker = rb
    }
    var pub events.Publisher = events.NoopPublisher{}
    if cfg.NATSURL != "" {
        np, err := events.NewNATSPublisher(cfg.NATSURL)
        if err != nil { return nil, err }
        pub = np
    }
    var sink archive.Sink = archive.Noop{}
    if cfg.ArchiveBucket != "" {
        s3, err := archive.NewS3Sink(ctx, cfg.ArchiveBucket, cfg.ArchiveRegion, cfg.ArchiveEndpoint)
        if err != nil { return nil, err }
        sink = s3
    }
    v, err := auth.New(ctx, auth.Options{Mode: cfg.AuthMode, HMACSecret: []byte(cfg.AuthHMACSecret), Issuer: cfg.OIDCIssuer, ClientID: cfg.OIDCClientID})
    if err != nil { return nil, err }
    pc, err := cfg.Planner()
    if err != nil { return nil, err }
    log.Printf("server: store=%T broker=%T events=%T archive=%T auth=%s", s, broker, pub, sink, v.Mode())
    return &Server{Store: s, Pub: webhooks.NewPublisher(s), Auth: v, Broker: broker, Events: pub, Archive: sink, Planner: pc, Config: cfg}, nil
}

// lockTenant serializes planning per tenant so two passes never read the
// same committed ledger.
func (s *Server) lockTenant(tenant string) func() {
    m, _ := s.tenantMu.LoadOrStore(tenant, &sync.Mutex{})
    mu := m.(*sync.Mutex)
    mu.Lock()
    return mu.Unlock
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
    return webhooks.NewWorker(s.Store, s.Config.WebhookMaxAttempts)
}

func (s *Server) Close() error {
    var firstErr error
    for _, c := range []any{s.Events, s.Broker, s.Store} {
        if cl, ok := c.(io.Closer); ok {
            if err := cl.Close(); err != nil && firstErr == nil { firstErr = err }
        }
    }
    return firstErr
}
