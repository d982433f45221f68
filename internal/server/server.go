package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthChecker interface for checking component health.
type HealthChecker interface {
	Liveness() bool
	Readiness(ctx context.Context) bool
	IsHealthy() bool
	GetStatus() map[string]string
}

// Config selects which endpoints are served. A zero port picks a free one.
type Config struct {
	HealthPort     int
	MetricsPort    int
	MetricsEnabled bool
}

// Server serves health probes and, optionally, Prometheus metrics.
type Server struct {
	healthServer  *http.Server
	metricsServer *http.Server
	listeners     []net.Listener
	logger        *slog.Logger
}

// NewServer creates the HTTP servers. Nothing listens until Start.
func NewServer(cfg Config, healthChecker HealthChecker, registry *prometheus.Registry, logger *slog.Logger) *Server {
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/health/live", LivenessHandler(healthChecker, logger))
	healthMux.HandleFunc("/health/ready", ReadinessHandler(healthChecker, logger))

	s := &Server{
		healthServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.HealthPort),
			Handler:      healthMux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		logger: logger,
	}

	if cfg.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

		s.metricsServer = &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.MetricsPort),
			Handler:      metricsMux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
	}

	return s
}

// Start binds the listeners and serves in the background.
// Bind errors are returned; later serve errors are logged.
func (s *Server) Start() error {
	servers := []*http.Server{s.healthServer}
	if s.metricsServer != nil {
		servers = append(servers, s.metricsServer)
	}

	for _, srv := range servers {
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			for _, l := range s.listeners {
				l.Close()
			}
			s.listeners = nil
			return fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
		}
		s.listeners = append(s.listeners, ln)
	}

	for i, srv := range servers {
		ln := s.listeners[i]
		go func() {
			s.logger.Info("starting http server", "addr", ln.Addr().String())
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("http server failed", "addr", ln.Addr().String(), "error", err)
			}
		}()
	}

	return nil
}

// HealthAddr returns the bound health address, or "" before Start.
func (s *Server) HealthAddr() string {
	if len(s.listeners) == 0 {
		return ""
	}
	return s.listeners[0].Addr().String()
}

// MetricsAddr returns the bound metrics address, or "" when disabled or before Start.
func (s *Server) MetricsAddr() string {
	if len(s.listeners) < 2 {
		return ""
	}
	return s.listeners[1].Addr().String()
}

// Shutdown gracefully shuts down both servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP servers")

	var result *multierror.Error
	if err := s.healthServer.Shutdown(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("health server: %w", err))
	}
	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("metrics server: %w", err))
		}
	}
	return result.ErrorOrNil()
}
