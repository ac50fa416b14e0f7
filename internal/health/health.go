// Package health implements liveness and readiness probes.
//
// /healthz reports 200 whenever the process can serve HTTP. /readyz runs the
// configured [Checker] probes and reports 503 if any of them fails, with a
// per-check breakdown in the JSON body:
//
//	{"status":"fail","checks":{"database":"fail: connection refused"}}
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout bounds a single readiness probe.
const checkTimeout = 5 * time.Second

// Checker is a named probe of one dependency. Check returns nil while the
// dependency can serve traffic.
type Checker struct {
	// Name keys the check's entry in the /readyz response body.
	Name string

	// Check must honor context cancellation.
	Check func(ctx context.Context) error
}

// Pinger is the connectivity probe satisfied by pgxpool.Pool and pgx.Conn.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseChecker probes db connectivity under the name "database".
// Persona lookups and history reads cannot be served while it fails, so the
// instance is reported not ready.
func DatabaseChecker(db Pinger) Checker {
	return Checker{Name: "database", Check: db.Ping}
}

type probeResult struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the two probe endpoints. The checker list is frozen at
// construction, which makes the handler safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] that runs the given checkers, in order, on every
// /readyz request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz always answers 200.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, probeResult{Status: "ok"})
}

// Readyz runs every checker with a [checkTimeout] deadline and answers 503
// as soon as the results include a failure, 200 otherwise.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	res := probeResult{
		Status: "ok",
		Checks: make(map[string]string, len(h.checkers)),
	}
	code := http.StatusOK

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			res.Checks[c.Name] = "fail: " + err.Error()
			res.Status = "fail"
			code = http.StatusServiceUnavailable
			continue
		}
		res.Checks[c.Name] = "ok"
	}

	writeJSON(w, code, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
