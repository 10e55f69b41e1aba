// Package prometheus exports reroaring metrics to Prometheus.
package prometheus

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/reroaring"
)

var _ reroaring.MetricsCollector = (*Collector)(nil)

// Collector implements reroaring.MetricsCollector with Prometheus metrics.
// It is a prometheus.Collector itself; register it with a registry.
type Collector struct {
	commandLatency  *prometheus.HistogramVec
	commands        *prometheus.CounterVec
	snapshotLatency *prometheus.HistogramVec
	snapshotBytes   *prometheus.GaugeVec
	snapshots       *prometheus.CounterVec
	recovered       prometheus.Counter
	recoveries      *prometheus.CounterVec
	rewrites        *prometheus.CounterVec
	rewriteLatency  prometheus.Histogram
}

// Options configure a Collector.
type Options struct {
	// Namespace prefixes every metric name. Defaults to "reroaring".
	Namespace string
	// Buckets are the latency histogram buckets.
	Buckets []float64
	// ConstLabels are attached to every metric.
	ConstLabels prometheus.Labels
}

// DefaultOptions are the defaults of NewCollector.
var DefaultOptions = Options{
	Namespace: "reroaring",
	Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
}

// NewCollector creates the metrics. They are exported once the collector
// is registered.
func NewCollector(optFns ...func(o *Options)) *Collector {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Collector{
		commandLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   opts.Namespace,
			Name:        "command_latency_seconds",
			Help:        "Latency of commands",
			Buckets:     opts.Buckets,
			ConstLabels: opts.ConstLabels,
		}, []string{"kind", "status"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "commands_total",
			Help:        "Total commands executed",
			ConstLabels: opts.ConstLabels,
		}, []string{"command", "status"}),
		snapshotLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   opts.Namespace,
			Name:        "snapshot_latency_seconds",
			Help:        "Latency of snapshot saves and loads",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: opts.ConstLabels,
		}, []string{"op"}),
		snapshotBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        "snapshot_size_bytes",
			Help:        "Size of the last snapshot saved or loaded",
			ConstLabels: opts.ConstLabels,
		}, []string{"op"}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "snapshots_total",
			Help:        "Total snapshot saves and loads",
			ConstLabels: opts.ConstLabels,
		}, []string{"op", "status"}),
		recovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "aof_recovered_entries_total",
			Help:        "Total AOF entries replayed on open",
			ConstLabels: opts.ConstLabels,
		}),
		recoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "aof_recoveries_total",
			Help:        "Total AOF replays",
			ConstLabels: opts.ConstLabels,
		}, []string{"status"}),
		rewrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "aof_rewrites_total",
			Help:        "Total AOF rewrites",
			ConstLabels: opts.ConstLabels,
		}, []string{"status"}),
		rewriteLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   opts.Namespace,
			Name:        "aof_rewrite_latency_seconds",
			Help:        "Latency of AOF rewrites",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: opts.ConstLabels,
		}),
	}
}

func (c *Collector) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.commandLatency, c.commands,
		c.snapshotLatency, c.snapshotBytes, c.snapshots,
		c.recovered, c.recoveries,
		c.rewrites, c.rewriteLatency,
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.collectors() {
		m.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, m := range c.collectors() {
		m.Collect(ch)
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordCommand implements reroaring.MetricsCollector. Command names form
// a closed set, so they are safe as label values.
func (c *Collector) RecordCommand(name string, write bool, d time.Duration, err error) {
	kind := "read"
	if write {
		kind = "write"
	}
	if name == "" {
		name = "unknown"
	}
	c.commandLatency.WithLabelValues(kind, status(err)).Observe(d.Seconds())
	c.commands.WithLabelValues(strings.ToUpper(name), status(err)).Inc()
}

// RecordSnapshot implements reroaring.MetricsCollector.
func (c *Collector) RecordSnapshot(op string, size int64, d time.Duration, err error) {
	c.snapshots.WithLabelValues(op, status(err)).Inc()
	if err != nil {
		return
	}
	c.snapshotLatency.WithLabelValues(op).Observe(d.Seconds())
	c.snapshotBytes.WithLabelValues(op).Set(float64(size))
}

// RecordRecovery implements reroaring.MetricsCollector.
func (c *Collector) RecordRecovery(entries int, _ time.Duration, err error) {
	c.recovered.Add(float64(entries))
	c.recoveries.WithLabelValues(status(err)).Inc()
}

// RecordRewrite implements reroaring.MetricsCollector.
func (c *Collector) RecordRewrite(d time.Duration, err error) {
	c.rewrites.WithLabelValues(status(err)).Inc()
	if err == nil {
		c.rewriteLatency.Observe(d.Seconds())
	}
}
