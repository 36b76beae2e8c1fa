// Package healthcheck provides health and readiness checks for the web
// frontend service.
package healthcheck

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// Check is the result of one health check
type Check struct {
	Name        string        `json:"name"`
	Status      Status        `json:"status"`
	Message     string        `json:"message,omitempty"`
	LastChecked time.Time     `json:"last_checked"`
	Duration    time.Duration `json:"duration_ms"`
}

// Response is the aggregate health check response
type Response struct {
	Status    Status    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Checks    []Check   `json:"checks"`
}

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) error

// HealthCheck runs registered checks and caches the aggregate briefly so
// probe storms do not hammer dependencies.
type HealthCheck struct {
	version  string
	logger   *zap.Logger
	mu       sync.RWMutex
	checks   map[string]CheckFunc
	cache    *Response
	cachedAt time.Time
	cacheTTL time.Duration
}

// New creates a health check instance
func New(version string, logger *zap.Logger) *HealthCheck {
	return &HealthCheck{
		version:  version,
		logger:   logger,
		checks:   make(map[string]CheckFunc),
		cacheTTL: 5 * time.Second,
	}
}

// Register adds a named check.
func (h *HealthCheck) Register(name string, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = fn
}

// Check runs all checks, serving from cache within the TTL.
func (h *HealthCheck) Check(ctx context.Context) Response {
	h.mu.RLock()
	if h.cache != nil && time.Since(h.cachedAt) < h.cacheTTL {
		cached := *h.cache
		h.mu.RUnlock()
		return cached
	}
	names := make([]string, 0, len(h.checks))
	fns := make([]CheckFunc, 0, len(h.checks))
	for name, fn := range h.checks {
		names = append(names, name)
		fns = append(fns, fn)
	}
	h.mu.RUnlock()

	resp := Response{
		Status:    StatusHealthy,
		Version:   h.version,
		Timestamp: time.Now(),
	}

	for i, fn := range fns {
		start := time.Now()
		err := fn(ctx)
		check := Check{
			Name:        names[i],
			Status:      StatusHealthy,
			LastChecked: time.Now(),
			Duration:    time.Since(start),
		}
		if err != nil {
			check.Status = StatusUnhealthy
			check.Message = err.Error()
			resp.Status = StatusDegraded
			h.logger.Warn("Health check failed", zap.String("check", names[i]), zap.Error(err))
		}
		resp.Checks = append(resp.Checks, check)
	}

	h.mu.Lock()
	h.cache = &resp
	h.cachedAt = time.Now()
	h.mu.Unlock()
	return resp
}

// Handler serves the aggregate health response.
func (h *HealthCheck) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := h.Check(r.Context())
		status := http.StatusOK
		if resp.Status == StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// LivenessHandler reports process liveness only.
func (h *HealthCheck) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "alive",
			"version": h.version,
		})
	}
}
