// Package health serves the operational HTTP surface: a JSON health probe
// and prometheus metrics.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the bot's operational counters.
type Metrics struct {
	registry *prometheus.Registry

	Commands *prometheus.CounterVec // by subcommand
	Entries  prometheus.Counter
	Exports  *prometheus.CounterVec // by outcome: ok / error
	Errors   prometheus.Counter
}

// NewMetrics builds the counters on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Commands: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "keihi_commands_total",
			Help: "Slash commands handled, by subcommand.",
		}, []string{"command"}),
		Entries: factory.NewCounter(prometheus.CounterOpts{
			Name: "keihi_entries_total",
			Help: "Expense entries recorded.",
		}),
		Exports: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "keihi_exports_total",
			Help: "Monthly report exports, by outcome.",
		}, []string{"outcome"}),
		Errors: factory.NewCounter(prometheus.CounterOpts{
			Name: "keihi_errors_total",
			Help: "Commands that ended in an error reply.",
		}),
	}
}

// Server is the health/metrics HTTP listener.
type Server struct {
	srv   *http.Server
	ready atomic.Bool
	now   func() time.Time
}

// NewServer builds a Server on addr. metrics may be nil, in which case
// /metrics serves an empty registry.
func NewServer(addr string, metrics *Metrics) *Server {
	s := &Server{now: time.Now}

	reg := prometheus.NewRegistry()
	if metrics != nil {
		reg = metrics.registry
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// SetReady flips the readiness flag reported by /health.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Handler exposes the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()
	slog.Info("health listener started", "addr", s.srv.Addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutCtx)
}

type healthResponse struct {
	Status    string `json:"status"`
	Ready     bool   `json:"ready"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(healthResponse{
		Status:    "ok",
		Ready:     s.ready.Load(),
		Timestamp: s.now().UTC().Format(time.RFC3339),
	})
}
