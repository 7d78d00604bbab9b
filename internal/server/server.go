// Package server exposes the debugger-facing HTTP+JSON API (spec.md §6)
// that replaces the JVM Debug Interface transport named in the original
// spec: every external AgentRuntime operation gets one route, routed with
// gorilla/mux the way the teacher's own internal/app wires its router.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	oteltrace "go.opentelemetry.io/otel/trace"

	"fieldwatch-agent/internal/config"
	"fieldwatch-agent/internal/metrics"
	"fieldwatch-agent/internal/tracing"
	"fieldwatch-agent/pkg/agentruntime"
)

// Server wraps the agent's HTTP API around a Runtime. One Server per
// process, started and stopped by internal/app alongside every other
// long-running component.
type Server struct {
	cfg     config.ServerConfig
	runtime *agentruntime.Runtime
	log     *logrus.Logger
	ids     *containerIDs

	httpServer *http.Server
}

// New builds a Server bound to rt. tracer may be nil, in which case
// requests are served without the tracing middleware (mirroring how the
// teacher only wires tracing.TraceHandler when its tracingManager is
// non-nil).
func New(cfg config.ServerConfig, rt *agentruntime.Runtime, log *logrus.Logger, tracer oteltrace.Tracer) *Server {
	s := &Server{cfg: cfg, runtime: rt, log: log, ids: newContainerIDs()}

	router := mux.NewRouter()
	s.registerRoutes(router)

	var handler http.Handler = router
	if tracer != nil {
		handler = tracing.Middleware(tracer, "http_request")(handler)
	}
	handler = metricsMiddleware(handler)

	readTimeout := parseDurationOr(cfg.ReadTimeout, 10*time.Second)
	writeTimeout := parseDurationOr(cfg.WriteTimeout, 10*time.Second)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
	return s
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// metricsMiddleware records response latency for every route. It is the
// outermost wrapper, so the latency it records includes the tracing
// middleware's time.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		metrics.HTTPResponseTime.WithLabelValues(r.URL.Path, r.Method).Observe(time.Since(start).Seconds())
	})
}

// Start begins serving in a background goroutine. A non-nil error from
// ListenAndServe other than http.ErrServerClosed is logged; Start itself
// never blocks.
func (s *Server) Start() {
	if !s.cfg.Enabled {
		s.log.Info("server: HTTP API disabled, not starting")
		return
	}
	go func() {
		s.log.WithField("addr", s.httpServer.Addr).Info("server: HTTP API listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("server: HTTP API stopped unexpectedly")
		}
	}()
}

// Shutdown gracefully stops the HTTP server, waiting for in-flight
// requests to drain until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
