// Package ops exposes the operational HTTP surface: liveness and
// Prometheus metrics. It is optional; the bot runs fine without it.
package ops

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics are the process-wide counters the handlers and jobs increment.
type Metrics struct {
	SyncRuns         *prometheus.CounterVec
	UpstreamRequests prometheus.Counter
	RowsAppended     prometheus.Counter
	ReportsGenerated *prometheus.CounterVec
	NLQQueries       *prometheus.CounterVec
	JobFailures      *prometheus.CounterVec
}

// NewMetrics registers the counters on the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SyncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monobudget_sync_runs_total",
			Help: "Sync runs, labeled by outcome.",
		}, []string{"outcome"}),
		UpstreamRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monobudget_upstream_requests_total",
			Help: "Statement and client-info requests sent upstream.",
		}),
		RowsAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monobudget_ledger_rows_appended_total",
			Help: "New rows appended to the ledger.",
		}),
		ReportsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monobudget_reports_generated_total",
			Help: "Report cache refreshes, labeled by period.",
		}, []string{"period"}),
		NLQQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monobudget_nlq_queries_total",
			Help: "NLQ queries, labeled by routed intent.",
		}, []string{"intent"}),
		JobFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monobudget_job_failures_total",
			Help: "Scheduled job failures, labeled by job.",
		}, []string{"job"}),
	}
	reg.MustRegister(m.SyncRuns, m.UpstreamRequests, m.RowsAppended, m.ReportsGenerated, m.NLQQueries, m.JobFailures)
	return m
}

// Server is the ops HTTP listener.
type Server struct {
	srv *http.Server
	log zerolog.Logger
}

func NewServer(addr string, reg *prometheus.Registry, log zerolog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log.With().Str("component", "ops").Logger(),
	}
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() {
	s.log.Info().Str("addr", s.srv.Addr).Msg("ops server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.log.Error().Err(err).Msg("ops server stopped")
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
