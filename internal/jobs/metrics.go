package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the gauges and counters the jobs maintain.
type Metrics struct {
	OverdueTasks        prometheus.Gauge
	CertificatesExpired prometheus.Counter
	Runs                *prometheus.CounterVec
	Duration            *prometheus.HistogramVec
	MatrixReloads       *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		OverdueTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "complytrack",
			Subsystem: "jobs",
			Name:      "overdue_tasks",
			Help:      "Tasks past their due date found by the last overdue scan.",
		}),
		CertificatesExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "complytrack",
			Subsystem: "jobs",
			Name:      "certificates_expired_total",
			Help:      "Certificates moved to expired by the expiry sweep.",
		}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "complytrack",
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Job runs by job and outcome.",
		}, []string{"job", "outcome"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "complytrack",
			Subsystem: "jobs",
			Name:      "run_duration_seconds",
			Help:      "Job run latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
		MatrixReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "complytrack",
			Subsystem: "jobs",
			Name:      "matrix_reloads_total",
			Help:      "Training matrix file reloads by outcome.",
		}, []string{"outcome"}),
	}
	for _, c := range []prometheus.Collector{m.OverdueTasks, m.CertificatesExpired, m.Runs, m.Duration, m.MatrixReloads} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering job metrics: %w", err)
		}
	}
	return m, nil
}

// MetricsHandler exposes everything in g in the Prometheus text format.
func MetricsHandler(g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// ServeMetrics serves MetricsHandler on addr until ctx is cancelled, then
// shuts the server down.
func ServeMetrics(ctx context.Context, addr string, g prometheus.Gatherer, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           MetricsHandler(g),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("metrics listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics shutdown: %w", err)
	}
	return nil
}
