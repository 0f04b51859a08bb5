package api

import (
    "net/http"
    "time"

    "cargoplan/internal/buildinfo"
)

// DebugJSON reports build info and the non-secret parts of the configuration.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
    if _, ok := s.authorize(w, r, Principal.IsAdmin, "admin"); !ok { return }
    c := s.Config
    info := map[string]any{
        "build": buildinfo.Info(),
        "time":  time.Now().UTC().Format(time.RFC3339),
        "config": map[string]any{
            "PORT":                 c.Port,
            "AUTH_MODE":            c.AuthMode,
            "RATE_RPS":             c.RateRPS,
            "RATE_BURST":           c.RateBurst,
            "WEBHOOK_MAX_ATTEMPTS": c.WebhookMaxAttempts,
            "PLAN_TIME_BUDGET":     c.PlanTimeBudget.String(),
            "PLAN_HUBS":            c.PlanHubs,
            "HAS_DATABASE_URL":     c.DatabaseURL != "",
            "HAS_REDIS_URL":        c.RedisURL != "",
            "HAS_NATS_URL":         c.NATSURL != "",
            "ARCHIVE_BUCKET":       c.ArchiveBucket,
        },
        "planner": map[string]any{
            "candidates": s.Planner.Candidates,
            "hubs":       s.Planner.Hubs,
            "optimizer":  s.Planner.Optimizer.WithDefaults(),
            "search":     s.Planner.Search,
        },
    }
    writeJSON(w, http.StatusOK, info)
}
