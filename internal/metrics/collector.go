// Package metrics exposes validation measurements to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/JonMunkholm/hsds-validator/internal/core"
	"github.com/JonMunkholm/hsds-validator/internal/resources"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config controls metric naming.
type Config struct {
	Namespace string
	Subsystem string
	// DurationBuckets are histogram buckets in seconds.
	DurationBuckets []float64
}

// Collector implements core.Metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	runs          *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	rowErrors     *prometheus.CounterVec
	inFlight      prometheus.Gauge
	schemaReloads *prometheus.CounterVec
}

var _ core.Metrics = (*Collector)(nil)

// NewCollector registers every validation metric on registry. A nil
// registry gets a fresh one with the Go and process collectors.
func NewCollector(cfg Config, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "hsds"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "validator"
	}
	if len(cfg.DurationBuckets) == 0 {
		// small uploads finish in milliseconds, remote feeds can take minutes
		cfg.DurationBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300}
	}

	c := &Collector{
		registry: registry,
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "runs_total",
			Help:      "Validation runs by resource type and outcome.",
		}, []string{"resource_type", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "run_duration_seconds",
			Help:      "Validation run latency.",
			Buckets:   cfg.DurationBuckets,
		}, []string{"resource_type"}),
		rowErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "row_errors_total",
			Help:      "Positioned errors reported by invalid runs.",
		}, []string{"resource_type"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "in_flight",
			Help:      "Validations currently holding a limiter slot.",
		}),
		schemaReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "schema_reloads_total",
			Help:      "Schema cache invalidations; resource_type is \"all\" for a full reload.",
		}, []string{"resource_type"}),
	}

	registry.MustRegister(c.runs, c.duration, c.rowErrors, c.inFlight, c.schemaReloads)
	return c
}

// ObserveRun records a finished run.
func (c *Collector) ObserveRun(t resources.Type, outcome core.Outcome, d time.Duration, errorCount int) {
	label := typeLabel(t)
	c.runs.WithLabelValues(label, string(outcome)).Inc()
	c.duration.WithLabelValues(label).Observe(d.Seconds())
	if errorCount > 0 {
		c.rowErrors.WithLabelValues(label).Add(float64(errorCount))
	}
}

// SetInFlight sets the in-flight gauge.
func (c *Collector) SetInFlight(n int) {
	c.inFlight.Set(float64(n))
}

// SchemaReloaded counts a schema invalidation.
func (c *Collector) SchemaReloaded(t resources.Type) {
	if t == "" {
		c.schemaReloads.WithLabelValues("all").Inc()
		return
	}
	c.schemaReloads.WithLabelValues(typeLabel(t)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// typeLabel keeps label cardinality bounded: unknown types share one label.
func typeLabel(t resources.Type) string {
	if resources.Known(t) {
		return string(t)
	}
	return "unknown"
}
