package api

import (
	"bufio"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"cargoplan/internal/idgen"
	"cargoplan/internal/metrics"
	"cargoplan/internal/obs"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack keeps WebSocket upgrades working behind the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	return h.Hijack()
}

// LogMiddleware logs one line per request and records the HTTP metrics.
func LogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID, _ = idgen.WithPrefix("req_")
		}
		w.Header().Set("X-Request-Id", reqID)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(obs.WithRequestID(r.Context(), reqID)))
		dur := time.Since(start)
		path := routeLabel(r.URL.Path)
		status := strconv.Itoa(rec.status)
		metrics.HTTPRequests.WithLabelValues(r.Method, path, status).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, path, status).Observe(dur.Seconds())
		log.Printf("req_id=%s %s %s %s %d %v", reqID, r.RemoteAddr, r.Method, r.URL.Path, rec.status, dur)
	})
}

// routeLabel collapses ids so metric labels stay bounded.
func routeLabel(path string) string {
	switch {
	case path == "/v1/plans/ws", path == "/v1/plans/events/stream":
		return path
	case strings.HasPrefix(path, "/v1/plans/"):
		rest := strings.SplitN(strings.TrimPrefix(path, "/v1/plans/"), "/", 2)
		if len(rest) == 2 {
			return "/v1/plans/{id}/" + rest[1]
		}
		return "/v1/plans/{id}"
	case strings.HasPrefix(path, "/v1/subscriptions/"):
		return "/v1/subscriptions/{id}"
	case strings.HasPrefix(path, "/v1/admin/webhook-deliveries/"):
		return "/v1/admin/webhook-deliveries/{id}/retry"
	}
	return path
}

// RateLimiter keeps one token bucket per client address.
type RateLimiter struct {
	rps   rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*rate.Limiter
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{rps: rate.Limit(rps), burst: burst, clients: map[string]*rate.Limiter{}}
}

func (l *RateLimiter) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.clients[key]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.clients[key] = lim
	}
	return lim
}

// Middleware answers 429 once a client exhausts its bucket. Health and
// metrics probes are never limited.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/healthz", "/readyz", "/metrics":
			next.ServeHTTP(w, r)
			return
		}
		if !l.limiter(clientKey(r)).Allow() {
			w.Header().Set("Retry-After", "1")
			writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	if t := r.Header.Get("X-Tenant-Id"); t != "" {
		return "tenant:" + t
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
