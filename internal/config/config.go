// Package config reads service settings from the environment and planner
// tuning from an optional TOML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string // PORT (default 8080)
	DatabaseURL string // DATABASE_URL; empty selects the in-memory store
	DBMigrate   bool   // DB_MIGRATE (default true)
	RedisURL    string // REDIS_URL; empty selects the in-process broker
	NATSURL     string // NATS_URL; empty disables NATS events

	ArchiveBucket   string // ARCHIVE_BUCKET enables the S3 archive
	ArchiveRegion   string // ARCHIVE_REGION (default us-east-1)
	ArchiveEndpoint string // ARCHIVE_ENDPOINT for MinIO and similar

	AuthMode       string // AUTH_MODE: dev, hmac or oidc
	AuthHMACSecret string
	OIDCIssuer     string
	OIDCClientID   string

	RateRPS            float64 // RATE_RPS; 0 disables rate limiting
	RateBurst          int
	WebhookMaxAttempts int

	PlanTimeBudget time.Duration
	PlanHubs       []string
	PlannerFile    string // CARGOPLAN_CONFIG
}

// LoadDotenv loads .env from the working directory when present.
func LoadDotenv() {
	if err := godotenv.Load(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Printf("no .env file found, using process environment")
			return
		}
		log.Printf("config: reading .env: %v", err)
	}
}

func Load() (*Config, error) {
	c := &Config{
		Port:            envOr("PORT", "8080"),
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMigrate:       os.Getenv("DB_MIGRATE") != "false",
		RedisURL:        os.Getenv("REDIS_URL"),
		NATSURL:         os.Getenv("NATS_URL"),
		ArchiveBucket:   os.Getenv("ARCHIVE_BUCKET"),
		ArchiveRegion:   envOr("ARCHIVE_REGION", "us-east-1"),
		ArchiveEndpoint: os.Getenv("ARCHIVE_ENDPOINT"),
		AuthMode:        strings.ToLower(envOr("AUTH_MODE", "dev")),
		AuthHMACSecret:  os.Getenv("AUTH_HMAC_SECRET"),
		OIDCIssuer:      os.Getenv("AUTH_OIDC_ISSUER"),
		OIDCClientID:    os.Getenv("AUTH_OIDC_CLIENT_ID"),
		PlannerFile:     os.Getenv("CARGOPLAN_CONFIG"),
	}
	var err error
	if c.RateRPS, err = envFloat("RATE_RPS", 0); err != nil {
		return nil, err
	}
	if c.RateBurst, err = envInt("RATE_BURST", 20); err != nil {
		return nil, err
	}
	if c.WebhookMaxAttempts, err = envInt("WEBHOOK_MAX_ATTEMPTS", 10); err != nil {
		return nil, err
	}
	if c.PlanTimeBudget, err = envDuration("PLAN_TIME_BUDGET", 0); err != nil {
		return nil, err
	}
	if v := os.Getenv("PLAN_HUBS"); v != "" {
		c.PlanHubs = SplitList(v)
	}
	switch c.AuthMode {
	case "dev", "hmac", "oidc":
	default:
		return nil, fmt.Errorf("AUTH_MODE: unknown mode %q", c.AuthMode)
	}
	if c.AuthMode == "hmac" && c.AuthHMACSecret == "" {
		return nil, fmt.Errorf("AUTH_HMAC_SECRET is required when AUTH_MODE=hmac")
	}
	if c.AuthMode == "oidc" && (c.OIDCIssuer == "" || c.OIDCClientID == "") {
		return nil, fmt.Errorf("AUTH_OIDC_ISSUER and AUTH_OIDC_CLIENT_ID are required when AUTH_MODE=oidc")
	}
	return c, nil
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
