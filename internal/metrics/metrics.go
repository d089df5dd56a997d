// Package metrics exports relay activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/tweetrelay/internal/logging"
	"github.com/dmitrijs2005/tweetrelay/internal/relay"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tweetrelay"

// Collector implements relay.Observer on its own registry.
type Collector struct {
	registry *prometheus.Registry

	cycles          *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
	lastCycle       prometheus.Gauge
	published       *prometheus.CounterVec
	duplicates      *prometheus.CounterVec
	accountFailures *prometheus.CounterVec
	maintenanceRuns *prometheus.CounterVec
	pruned          *prometheus.CounterVec
}

func NewCollector(version string) *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.cycles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cycles_total",
		Help:      "Poll cycles by result",
	}, []string{"result"})
	c.cycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "cycle_duration_seconds",
		Help:      "Poll cycle duration",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})
	c.lastCycle = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_cycle_timestamp_seconds",
		Help:      "Unix time the last cycle finished",
	})
	c.published = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "posts_published_total",
		Help:      "Posts delivered to channels",
	}, []string{"handle"})
	c.duplicates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "duplicates_skipped_total",
		Help:      "Fetched posts that were already delivered",
	}, []string{"handle"})
	c.accountFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "account_failures_total",
		Help:      "Accounts whose processing failed, by reason",
	}, []string{"handle", "reason"})
	c.maintenanceRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "maintenance_runs_total",
		Help:      "Maintenance runs by result",
	}, []string{"result"})
	c.pruned = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_pruned_total",
		Help:      "Records removed by maintenance",
	}, []string{"kind"})

	info := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "build_info",
		Help:      "Build information",
	}, []string{"version"})
	info.WithLabelValues(version).Set(1)

	c.registry.MustRegister(
		c.cycles, c.cycleDuration, c.lastCycle, c.published, c.duplicates,
		c.accountFailures, c.maintenanceRuns, c.pruned, info,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (c *Collector) CycleFinished(r relay.CycleReport, err error) {
	c.cycles.WithLabelValues(result(err)).Inc()
	c.cycleDuration.Observe(r.Duration.Seconds())
	c.lastCycle.SetToCurrentTime()
}

func (c *Collector) PostsPublished(handle string, n int) {
	c.published.WithLabelValues(handle).Add(float64(n))
}

func (c *Collector) DuplicateSkipped(handle string) {
	c.duplicates.WithLabelValues(handle).Inc()
}

func (c *Collector) AccountFailed(handle, reason string) {
	c.accountFailures.WithLabelValues(handle, reason).Inc()
}

func (c *Collector) MaintenanceFinished(r relay.MaintenanceReport, err error) {
	c.maintenanceRuns.WithLabelValues(result(err)).Inc()
	c.pruned.WithLabelValues("publications").Add(float64(r.LedgerPruned))
	c.pruned.WithLabelValues("errors").Add(float64(r.ErrorsPruned))
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, c *Collector, log logging.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info(ctx, "metrics server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
