// Package observability exposes Prometheus metrics for migration progress
// and an optional HTTP listener serving them.
package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stylr/migrate/internal/logger"
)

// Metrics holds the migration counters and gauges.
type Metrics struct {
	registry *prometheus.Registry

	RecordsTotal   *prometheus.CounterVec
	UploadsTotal   *prometheus.CounterVec
	RetriesTotal   prometheus.Counter
	StepDuration   *prometheus.HistogramVec
	ReadinessScore prometheus.Gauge
}

// NewMetrics creates and registers the migration metrics on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		RecordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "migrate_records_total",
			Help: "Target records written, by entity and outcome.",
		}, []string{"entity", "outcome"}),
		UploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "migrate_uploads_total",
			Help: "Media object uploads, by outcome.",
		}, []string{"outcome"}),
		RetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "migrate_retries_total",
			Help: "Retry attempts triggered by transient errors.",
		}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "migrate_step_duration_seconds",
			Help:    "Duration of each migration step.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"step"}),
		ReadinessScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "migrate_readiness_score",
			Help: "Last computed 0-100 readiness score.",
		}),
	}

	registry.MustRegister(
		m.RecordsTotal,
		m.UploadsTotal,
		m.RetriesTotal,
		m.StepDuration,
		m.ReadinessScore,
	)
	return m
}

// Serve starts the metrics listener and blocks until ctx is cancelled. Errors
// other than a clean shutdown are returned.
func (m *Metrics) Serve(ctx context.Context, listen string, log logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe()
	}()

	if log != nil {
		log.Info("metrics listener started", logger.String("listen", listen))
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errChan:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
