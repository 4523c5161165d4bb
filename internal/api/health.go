package api

import (
	"context"
	"net/http"
	"sync"
	"time"
)

const (
	healthOK       = "ok"
	healthDegraded = "degraded"
	healthError    = "error"
	healthDown     = "down"
)

// Dependency is a readiness check. A critical dependency that is down fails readiness (503);
// any other one only marks the service degraded.
type Dependency struct {
	Name     string
	Critical bool
	Ping     func(ctx context.Context) error
}

type HealthHandler struct {
	deps        []Dependency
	env         string
	version     string
	pingTimeout time.Duration
}

func NewHealthHandler(deps []Dependency, env, version string) *HealthHandler {
	return &HealthHandler{
		deps:        deps,
		env:         env,
		version:     version,
		pingTimeout: time.Second,
	}
}

type HealthResponse struct {
	Status       string                      `json:"status"`
	Version      string                      `json:"version,omitempty"`
	Env          string                      `json:"env,omitempty"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

type DependencyStatus struct {
	Status    string `json:"status"`
	Critical  bool   `json:"critical"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: healthOK, Version: h.version, Env: h.env})
}

// Readiness pings every dependency concurrently, each bounded by pingTimeout.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	results := make([]DependencyStatus, len(h.deps))

	var wg sync.WaitGroup
	for i, d := range h.deps {
		wg.Add(1)
		go func(i int, d Dependency) {
			defer wg.Done()
			results[i] = h.check(r.Context(), d)
		}(i, d)
	}
	wg.Wait()

	resp := HealthResponse{
		Status:       healthOK,
		Version:      h.version,
		Env:          h.env,
		Dependencies: make(map[string]DependencyStatus, len(h.deps)),
	}
	for i, d := range h.deps {
		res := results[i]
		resp.Dependencies[d.Name] = res
		if res.Status == healthOK {
			continue
		}
		if d.Critical {
			resp.Status = healthError
		} else if resp.Status == healthOK {
			resp.Status = healthDegraded
		}
	}

	code := http.StatusOK
	if resp.Status == healthError {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (h *HealthHandler) check(ctx context.Context, d Dependency) DependencyStatus {
	ctx, cancel := context.WithTimeout(ctx, h.pingTimeout)
	defer cancel()

	start := time.Now()
	err := d.Ping(ctx)
	res := DependencyStatus{
		Status:    healthOK,
		Critical:  d.Critical,
		LatencyMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		res.Status = healthDown
		res.Error = err.Error()
	}
	return res
}
