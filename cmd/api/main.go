package main

import (
    "context"
    "errors"
    "log"
    "net/http"
    "os/signal"
    "syscall"
    "time"

    "cargoplan/internal/api"
    "cargoplan/internal/buildinfo"
    "cargoplan/internal/config"
)

func main() {
    config.LoadDotenv()
    cfg, err := config.Load()
    if err != nil {
        log.Fatalf("config: %v", err)
    }
    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()

    srvDeps, err := api.NewServer(ctx, cfg)
    if err != nil {
        log.Fatalf("failed to init server: %v", err)
    }
    if _, err := api.LoadOpenAPI(ctx); err != nil {
        log.Printf("warning: %v", err)
    }

    srv := &http.Server{
        Addr:              ":" + cfg.Port,
        Handler:           srvDeps.Routes(),
        ReadHeaderTimeout: 5 * time.Second,
    }

    worker := srvDeps.NewWebhookWorker()
    worker.Start()

    go func() {
        log.Printf("%s listening on %s", buildinfo.String(), srv.Addr)
        if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            log.Fatalf("server error: %v", err)
        }
    }()

    <-ctx.Done()
    log.Printf("shutting down")
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
    defer cancel()
    if err := srv.Shutdown(shutdownCtx); err != nil {
        log.Printf("shutdown: %v", err)
    }
    close(worker.Stop)
    if err := srvDeps.Close(); err != nil {
        log.Printf("close: %v", err)
    }
}
