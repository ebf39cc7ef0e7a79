package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fomightez/pdbepisa-binder/pkg/engine"
)

// Metrics provides Prometheus metrics for the pipeline. A disabled instance
// accepts every call and records nothing.
type Metrics struct {
	config MetricsConfig

	// Run metrics
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	lastRun       *prometheus.GaugeVec

	// Planning metrics
	identifiers     *prometheus.GaugeVec
	triggersCreated prometheus.Counter

	// Execution metrics
	executions        *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec

	// Resource metrics
	fetches       *prometheus.CounterVec
	fetchBytes    prometheus.Counter
	fetchDuration prometheus.Histogram

	// Archive metrics
	archiveMembers prometheus.Gauge
	archiveBytes   prometheus.Gauge

	// Reset metrics
	resetRemoved *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of pipeline runs completed",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of pipeline runs in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),
		lastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time of the last completed run",
			},
			[]string{"status"},
		),

		identifiers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "identifiers",
				Help:      "Identifiers in the last plan by state",
			},
			[]string{"state"},
		),
		triggersCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "triggers_created_total",
				Help:      "Total number of trigger files written",
			},
		),

		executions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_total",
				Help:      "Total number of per-identifier executions",
			},
			[]string{"status"},
		),
		executionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "execution_duration_seconds",
				Help:      "Duration of per-identifier executions in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resource_fetches_total",
				Help:      "Total number of shared resource downloads",
			},
			[]string{"success"},
		),
		fetchBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resource_fetch_bytes_total",
				Help:      "Total bytes downloaded for the shared resource",
			},
		),
		fetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "resource_fetch_duration_seconds",
				Help:      "Duration of shared resource downloads in seconds",
				Buckets:   buckets,
			},
		),

		archiveMembers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "archive_members",
				Help:      "Number of outputs in the last archive",
			},
		),
		archiveBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "archive_bytes",
				Help:      "Size of the last archive in bytes",
			},
		),

		resetRemoved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reset_removed_total",
				Help:      "Total number of files removed by reset",
			},
			[]string{"scope"},
		),
	}

	registry.MustRegister(
		m.runsCompleted,
		m.runDuration,
		m.lastRun,
		m.identifiers,
		m.triggersCreated,
		m.executions,
		m.executionDuration,
		m.fetches,
		m.fetchBytes,
		m.fetchDuration,
		m.archiveMembers,
		m.archiveBytes,
		m.resetRemoved,
	)

	return m, nil
}

// Enabled reports whether metrics are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.registry != nil
}

// RecordRun records a completed run with its status and duration.
func (m *Metrics) RecordRun(status engine.RunStatus, duration time.Duration) {
	if !m.Enabled() {
		return
	}
	m.runsCompleted.WithLabelValues(string(status)).Inc()
	m.runDuration.WithLabelValues(string(status)).Observe(duration.Seconds())
	m.lastRun.WithLabelValues(string(status)).SetToCurrentTime()
}

// RecordPlan records the outcome of a planning pass.
func (m *Metrics) RecordPlan(satisfied, pending, created int) {
	if !m.Enabled() {
		return
	}
	m.identifiers.WithLabelValues("satisfied").Set(float64(satisfied))
	m.identifiers.WithLabelValues("pending").Set(float64(pending))
	m.triggersCreated.Add(float64(created))
}

// RecordExecution records one per-identifier execution.
func (m *Metrics) RecordExecution(status engine.ExecutionStatus, duration time.Duration) {
	if !m.Enabled() {
		return
	}
	m.executions.WithLabelValues(string(status)).Inc()
	m.executionDuration.WithLabelValues(string(status)).Observe(duration.Seconds())
}

// RecordFetch records a shared resource download.
func (m *Metrics) RecordFetch(success bool, bytes int64, duration time.Duration) {
	if !m.Enabled() {
		return
	}
	m.fetches.WithLabelValues(strconv.FormatBool(success)).Inc()
	m.fetchBytes.Add(float64(bytes))
	m.fetchDuration.Observe(duration.Seconds())
}

// RecordArchive records a built archive.
func (m *Metrics) RecordArchive(members int, bytes int64) {
	if !m.Enabled() {
		return
	}
	m.archiveMembers.Set(float64(members))
	m.archiveBytes.Set(float64(bytes))
}

// RecordReset records files removed by a reset.
func (m *Metrics) RecordReset(scope engine.ResetScope, removed int) {
	if !m.Enabled() {
		return
	}
	m.resetRemoved.WithLabelValues(string(scope)).Add(float64(removed))
}

// Registry exposes the underlying registry, nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the registry to the configured textfile path. It is
// a no-op when metrics are disabled or no path is configured.
func (m *Metrics) WriteTextfile() error {
	if !m.Enabled() || m.config.TextfilePath == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(m.config.TextfilePath, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if !m.Enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer serves metrics until ctx is done.
func (m *Metrics) StartMetricsServer(ctx context.Context, logger *Logger) error {
	if !m.Enabled() || m.config.ListenAddress == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.zlog.Error().Err(err).Msg("Metrics server stopped")
		}
	}()

	return nil
}

var _ engine.Metrics = (*Metrics)(nil)
