package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Check probes a single dependency.
type Check func(ctx context.Context) error

// Status is the reported state of a component.
type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

// Report is the JSON body returned by the health endpoints.
type Report struct {
	Status    Status                  `json:"status"`
	Timestamp time.Time               `json:"timestamp"`
	Checks    map[string]CheckReport  `json:"checks,omitempty"`
}

// CheckReport is the outcome of one dependency probe.
type CheckReport struct {
	Status   Status `json:"status"`
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
}

// Handler exposes liveness and readiness endpoints over registered checks.
type Handler struct {
	mu      sync.RWMutex
	checks  map[string]Check
	timeout time.Duration
}

// NewHandler creates a health handler with a per-request probe timeout.
func NewHandler() *Handler {
	return &Handler{
		checks:  make(map[string]Check),
		timeout: 5 * time.Second,
	}
}

// Register adds a named dependency probe.
func (h *Handler) Register(name string, check Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// Live reports process liveness. It never probes dependencies.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	writeReport(w, http.StatusOK, Report{Status: StatusUp, Timestamp: time.Now().UTC()})
}

// Ready probes every registered dependency concurrently and returns 503 if
// any of them fail.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	h.mu.RLock()
	checks := make(map[string]Check, len(h.checks))
	for name, check := range h.checks {
		checks[name] = check
	}
	h.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]CheckReport, len(checks))
		overall = StatusUp
	)

	for name, check := range checks {
		wg.Add(1)
		go func(name string, check Check) {
			defer wg.Done()
			start := time.Now()
			err := check(ctx)
			result := CheckReport{Status: StatusUp, Duration: time.Since(start).Round(time.Millisecond).String()}
			if err != nil {
				result.Status = StatusDown
				result.Error = err.Error()
			}
			mu.Lock()
			results[name] = result
			if err != nil {
				overall = StatusDown
			}
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()

	status := http.StatusOK
	if overall == StatusDown {
		status = http.StatusServiceUnavailable
	}
	writeReport(w, status, Report{Status: overall, Timestamp: time.Now().UTC(), Checks: results})
}

func writeReport(w http.ResponseWriter, status int, report Report) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(report)
}
