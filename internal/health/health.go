// Package health serves the relay's liveness and readiness checks.
//
// /healthz always answers 200 while the process can serve HTTP. /readyz runs
// every registered [Checker] concurrently and answers 200 only when all of
// them pass, 503 otherwise. Both respond with {"status": "ok"|"fail",
// "checks": {name: result}}.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Checker is a named readiness check. Check returns nil when healthy.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz. The checker list is fixed at
// construction.
type Handler struct {
	checkers []Checker
}

// New returns a Handler evaluating checkers on each /readyz request.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...)}
}

// Healthz always reports ok.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz reports ok only when every checker passes within [checkTimeout].
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	var (
		mu     sync.Mutex
		checks = make(map[string]string, len(h.checkers))
		failed bool
	)

	var g errgroup.Group
	for _, c := range h.checkers {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()

			outcome := "ok"
			if err := c.Check(ctx); err != nil {
				outcome = "fail: " + err.Error()
			}

			mu.Lock()
			defer mu.Unlock()
			checks[c.Name] = outcome
			if outcome != "ok" {
				failed = true
			}
			return nil
		})
	}
	_ = g.Wait()

	res := result{Status: "ok", Checks: checks}
	status := http.StatusOK
	if failed {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// Register adds GET /healthz and GET /readyz to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
