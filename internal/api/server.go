// Package api serves the fleet monitor and alert engine over HTTP.
package api

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rileyhilliard/vmwatch/internal/alerts"
	"github.com/rileyhilliard/vmwatch/internal/logger"
	"github.com/rileyhilliard/vmwatch/internal/monitor"
	"github.com/rileyhilliard/vmwatch/internal/notify"
)

// ShutdownTimeout bounds graceful shutdown of the HTTP server.
const ShutdownTimeout = 10 * time.Second

// Server holds the handlers' dependencies.
type Server struct {
	monitor    *monitor.Monitor
	engine     *alerts.Engine
	thresholds alerts.Thresholds
	sink       notify.Sink
	version    string
	log        logger.Logger
	now        func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for access and error logs.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithThresholds sets the limits used when a request doesn't supply one.
func WithThresholds(th alerts.Thresholds) Option {
	return func(s *Server) {
		s.thresholds = th
	}
}

// WithSink enables POST /api/alerts/send.
func WithSink(sink notify.Sink) Option {
	return func(s *Server) {
		s.sink = sink
	}
}

// WithVersion sets the version reported by the health endpoint.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// New creates a Server.
func New(m *monitor.Monitor, engine *alerts.Engine, opts ...Option) *Server {
	s := &Server{
		monitor:    m,
		engine:     engine,
		thresholds: alerts.DefaultThresholds(),
		version:    "dev",
		log:        logger.NewEnvLogger("[api]"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(s.logMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.health)
		r.Get("/vms", s.listVMs)
		r.Post("/vm/validate", s.validateCredential)

		r.Route("/cache", func(r chi.Router) {
			r.Get("/info", s.cacheInfo)
			r.Post("/clear", s.cacheClear)
		})

		r.Get("/alerts", s.fleetAlerts)
		r.Post("/alerts/send", s.sendAlerts)

		r.Route("/vm/{label}", func(r chi.Router) {
			r.Get("/stats", s.hostStats)
			r.Get("/test", s.testConnection)

			r.Route("/docker", func(r chi.Router) {
				r.Get("/containers", s.listContainers)
				r.Get("/images", s.listImages)
				r.Get("/stopped", s.stoppedContainers)
				r.Get("/container-stats", s.allContainerStats)
				r.Get("/resources", s.containerResources)

				r.Route("/container/{name}", func(r chi.Router) {
					r.Get("/stats", s.containerStats)
					r.Get("/logs", s.containerLogs)
					r.Post("/start", s.startContainer)
					r.Post("/stop", s.stopContainer)
				})
			})

			r.Route("/alerts", func(r chi.Router) {
				r.Get("/ram", s.hostRAMAlert)
				r.Get("/disk", s.hostDiskAlert)
				r.Get("/container/{name}/{metric}", s.containerAlert)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no such endpoint")
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	s.log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
