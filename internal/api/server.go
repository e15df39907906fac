// Package api serves the optional status endpoints of a running extraction.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/snarg/lecturescribe/internal/config"
	"github.com/snarg/lecturescribe/internal/metrics"
)

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

// ServerOptions wires the status server. Ledger may be nil.
type ServerOptions struct {
	Progress    ProgressSource
	Ledger      RunLedger
	StorageType string
	Version     string
	StartTime   time.Time
	Log         zerolog.Logger
}

func NewServer(cfg *config.Config, opts ServerOptions) *Server {
	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      NewRouter(cfg.AuthToken, opts),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: opts.Log,
	}
}

// NewRouter builds the route table. Tests use it without a listener.
func NewRouter(authToken string, opts ServerOptions) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(opts.Log))
	r.Use(metrics.InstrumentHandler)
	r.Use(CORS)

	// Health and metrics need no auth
	var pinger Pinger
	if opts.Ledger != nil {
		pinger = opts.Ledger
	}
	r.Get("/api/v1/health", NewHealthHandler(pinger, opts.StorageType, opts.Version, opts.StartTime).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(authToken))
		r.Get("/api/v1/progress", (&ProgressHandler{progress: opts.Progress}).ServeHTTP)
		if opts.Ledger != nil {
			runs := &RunsHandler{ledger: opts.Ledger}
			r.Get("/api/v1/runs", runs.ListRuns)
			r.Get("/api/v1/runs/{runID}/results", runs.RunResults)
		}
	})

	return r
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
