package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Checker is a function that checks the health of a dependency.
type Checker func(ctx context.Context) error

// Status represents the health status of a component.
type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

// Response is the JSON response returned by the health endpoint.
type Response struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is the result of a single health check.
type CheckResult struct {
	Status   Status `json:"status"`
	Critical bool   `json:"critical"`
	Error    string `json:"error,omitempty"`
}

type check struct {
	fn       Checker
	critical bool
}

// Handler provides HTTP health check endpoints.
type Handler struct {
	mu     sync.RWMutex
	checks map[string]check
}

// NewHandler creates a new health check handler.
func NewHandler() *Handler {
	return &Handler{
		checks: make(map[string]check),
	}
}

// RegisterCritical adds a named health checker whose failure marks the
// service not ready.
func (h *Handler) RegisterCritical(name string, fn Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check{fn: fn, critical: true}
}

// RegisterNonCritical adds a named health checker that is reported but does
// not affect readiness.
func (h *Handler) RegisterNonCritical(name string, fn Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check{fn: fn, critical: false}
}

// LivenessHandler returns a simple liveness check (always 200 if the process is running).
func (h *Handler) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(Response{
			Status:    StatusUp,
			Timestamp: time.Now().UTC(),
		})
	}
}

// ReadinessHandler checks all registered dependencies and returns 200/503.
func (h *Handler) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		h.mu.RLock()
		checks := make(map[string]check, len(h.checks))
		for k, v := range h.checks {
			checks[k] = v
		}
		h.mu.RUnlock()

		results := make(map[string]CheckResult, len(checks))
		overall := StatusUp

		for name, c := range checks {
			if err := c.fn(ctx); err != nil {
				results[name] = CheckResult{Status: StatusDown, Critical: c.critical, Error: err.Error()}
				if c.critical {
					overall = StatusDown
				}
			} else {
				results[name] = CheckResult{Status: StatusUp, Critical: c.critical}
			}
		}

		resp := Response{
			Status:    overall,
			Timestamp: time.Now().UTC(),
			Checks:    results,
		}

		w.Header().Set("Content-Type", "application/json")
		if overall == StatusDown {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
