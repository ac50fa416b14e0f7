// Package server exposes the HTTP surface: the interaction endpoint, NPC and
// player administration, health probes and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talevox/talevox/internal/conversation"
	"github.com/talevox/talevox/internal/health"
	"github.com/talevox/talevox/internal/history"
	"github.com/talevox/talevox/internal/observe"
	"github.com/talevox/talevox/internal/persona"
)

// Interactor runs one player interaction end to end. Implemented by
// [conversation.Pipeline].
type Interactor interface {
	Interact(ctx context.Context, req conversation.Request) (*conversation.Result, error)
}

// Config carries the listen address and optional TLS material.
type Config struct {
	ListenAddr string
	CertFile   string
	KeyFile    string
}

// Server owns the HTTP listener and routes requests to the conversation
// pipeline and the stores.
type Server struct {
	cfg      Config
	pipeline Interactor
	personas persona.Store
	players  history.Store
	logger   *slog.Logger

	httpSrv *http.Server
}

// New assembles a [Server]. The health handler is mounted as given so callers
// control which readiness checkers run.
func New(cfg Config, pipeline Interactor, personas persona.Store, players history.Store, hc *health.Handler, metrics *observe.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		pipeline: pipeline,
		personas: personas,
		players:  players,
		logger:   logger,
	}
	s.httpSrv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.buildRouter(hc, metrics),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// buildRouter constructs the chi mux with all routes wired.
func (s *Server) buildRouter(hc *health.Handler, metrics *observe.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(observe.Middleware(metrics))

	// Probes and telemetry.
	r.Get("/healthz", hc.Healthz)
	r.Get("/readyz", hc.Readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// The interaction endpoint.
	r.Post("/npc_interaction", s.handleInteraction())

	// NPC administration.
	r.Route("/npcs", func(r chi.Router) {
		r.Post("/", s.handleCreateNPC())
		r.Get("/", s.handleListNPCs())
		r.Get("/{id}", s.handleGetNPC())
		r.Put("/{id}/description", s.handleUpdateDescription())
		r.Put("/{id}/voice", s.handleUpdateVoice())
	})

	// Player administration.
	r.Route("/players", func(r chi.Router) {
		r.Post("/", s.handleCreatePlayer())
		r.Get("/", s.handleListPlayers())
		r.Get("/{id}/history", s.handlePlayerHistory())
	})

	return r
}

// Run serves HTTP (or HTTPS when certificate material is configured) until
// Shutdown is called. It returns nil on graceful close.
func (s *Server) Run() error {
	var err error
	if s.cfg.CertFile != "" && s.cfg.KeyFile != "" {
		err = s.httpSrv.ListenAndServeTLS(s.cfg.CertFile, s.cfg.KeyFile)
	} else {
		err = s.httpSrv.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Handler returns the assembled router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// errorBody is the JSON shape of every non-2xx response.
type errorBody struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response encode failed", "err", err)
	}
}

// writeError writes a JSON error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// decodeBody decodes the request body into dst, rejecting unknown fields.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
