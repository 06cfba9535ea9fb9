package telemetry

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lyzr/flowr/common/logger"
)

// Telemetry holds observability components: a pprof profiling endpoint
// and a Prometheus scrape endpoint exposing the scheduler's ready/
// running/blocked gauges (§5 RunState.Idle's three job sets).
type Telemetry struct {
	log         *logger.Logger
	pprofAddr   string
	metricsAddr string
	registry    *prometheus.Registry

	JobsReady    prometheus.Gauge
	JobsRunning  prometheus.Gauge
	JobsBlocked  prometheus.Gauge
	JobsDone     prometheus.Counter
	JobsFailed   prometheus.Counter
}

// New creates telemetry components, registering the scheduler gauges
// against a private registry (not the global default) so multiple
// coordinators in the same process — e.g. in tests — don't collide on
// metric registration.
func New(pprofPort, metricsPort int, log *logger.Logger) *Telemetry {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Telemetry{
		log:         log,
		pprofAddr:   fmt.Sprintf("localhost:%d", pprofPort),
		metricsAddr: fmt.Sprintf("localhost:%d", metricsPort),
		registry:    registry,

		JobsReady: factory.NewGauge(prometheus.GaugeOpts{
			Name: "flowr_jobs_ready",
			Help: "Number of jobs currently ready to dispatch.",
		}),
		JobsRunning: factory.NewGauge(prometheus.GaugeOpts{
			Name: "flowr_jobs_running",
			Help: "Number of jobs currently dispatched to the executor pool.",
		}),
		JobsBlocked: factory.NewGauge(prometheus.GaugeOpts{
			Name: "flowr_jobs_blocked",
			Help: "Number of functions currently blocked on a full output connection.",
		}),
		JobsDone: factory.NewCounter(prometheus.CounterOpts{
			Name: "flowr_jobs_done_total",
			Help: "Total number of jobs that completed without error.",
		}),
		JobsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "flowr_jobs_failed_total",
			Help: "Total number of jobs that completed with an error.",
		}),
	}
}

// Start starts the pprof and Prometheus metrics servers.
func (t *Telemetry) Start(ctx context.Context) error {
	go func() {
		t.log.Info("pprof server starting", "addr", t.pprofAddr)
		if err := http.ListenAndServe(t.pprofAddr, nil); err != nil {
			t.log.Error("pprof server error", "error", err)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{}))
	go func() {
		t.log.Info("metrics server starting", "addr", t.metricsAddr)
		if err := http.ListenAndServe(t.metricsAddr, mux); err != nil {
			t.log.Error("metrics server error", "error", err)
		}
	}()

	return nil
}

// MetricsHandler returns the promhttp handler for this telemetry's
// registry, so cmd/flowr can also mount GET /metrics on the submission
// API's own echo host (§6.E) instead of (or in addition to) the
// standalone metrics server Start spins up.
func (t *Telemetry) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// RecordDuration records operation duration
func (t *Telemetry) RecordDuration(operation string, start time.Time) {
	duration := time.Since(start)
	t.log.Debug("operation completed",
		"operation", operation,
		"duration_ms", duration.Milliseconds(),
	)
}

// RecordEvent records a telemetry event
func (t *Telemetry) RecordEvent(event string, attrs map[string]any) {
	t.log.Info("telemetry_event",
		"event", event,
		"attrs", attrs,
	)
}
