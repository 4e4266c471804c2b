// Package metrics exposes Prometheus metrics for source reads, sink writes
// and pipeline runs, and keeps per-component totals for run summaries.
//
//	c := metrics.NewCollector("orders-source")
//	c.RecordCounter(metrics.RecordsRead, 1)
//	c.RecordHistogram(metrics.SplitSeconds, elapsed.Seconds())
//	summary := c.GetAll()
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Names accepted by Collector.
const (
	RecordsRead          = "records_read"
	RecordsWritten       = "records_written"
	BytesWritten         = "bytes_written"
	SplitsPlanned        = "splits_planned"
	SplitsCompleted      = "splits_completed"
	PartitionsRegistered = "partitions_registered"
	SplitSeconds         = "split_seconds"
	WriteSeconds         = "write_seconds"
)

var (
	// Records counts records moved by a component.
	// Labels: component, direction (read/write)
	Records = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydrator_records_total",
			Help: "Total number of records read or written",
		},
		[]string{"component", "direction"},
	)

	// Bytes counts bytes written to storage.
	Bytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydrator_bytes_written_total",
			Help: "Total number of bytes written to storage",
		},
		[]string{"component"},
	)

	// Splits counts planned and completed split tasks.
	Splits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydrator_splits_total",
			Help: "Number of split tasks planned or completed",
		},
		[]string{"component", "state"},
	)

	// Partitions counts partition registrations.
	Partitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydrator_partitions_registered_total",
			Help: "Number of partitions registered",
		},
		[]string{"component"},
	)

	// Latency tracks split and write durations in seconds.
	Latency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hydrator_operation_duration_seconds",
			Help:    "Duration of split reads and partition writes",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		},
		[]string{"component", "operation"},
	)

	// Runs counts pipeline runs by outcome.
	Runs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydrator_runs_total",
			Help: "Number of pipeline runs",
		},
		[]string{"job", "status"},
	)

	// RunDuration tracks pipeline run durations in seconds.
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hydrator_run_duration_seconds",
			Help:    "Pipeline run duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	// Throughput tracks records per second of the last run.
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hydrator_throughput_records_per_second",
			Help: "Records per second of the most recent run",
		},
		[]string{"source", "destination"},
	)
)

// Collector records metrics for one component and keeps local totals.
type Collector struct {
	name      string
	startTime time.Time
	export    bool
	mu        sync.Mutex
	totals    map[string]float64
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithExport controls whether values reach the Prometheus vectors. A
// collector that does not export still keeps its local totals.
func WithExport(enabled bool) CollectorOption {
	return func(c *Collector) { c.export = enabled }
}

// NewCollector creates a collector labelled with the component name.
func NewCollector(name string, opts ...CollectorOption) *Collector {
	c := &Collector{
		name:      name,
		startTime: time.Now(),
		export:    true,
		totals:    make(map[string]float64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RecordCounter adds value to the named total and the matching Prometheus counter.
func (c *Collector) RecordCounter(name string, value float64) {
	c.mu.Lock()
	c.totals[name] += value
	c.mu.Unlock()
	if !c.export {
		return
	}

	switch name {
	case RecordsRead:
		Records.WithLabelValues(c.name, "read").Add(value)
	case RecordsWritten:
		Records.WithLabelValues(c.name, "write").Add(value)
	case BytesWritten:
		Bytes.WithLabelValues(c.name).Add(value)
	case SplitsPlanned:
		Splits.WithLabelValues(c.name, "planned").Add(value)
	case SplitsCompleted:
		Splits.WithLabelValues(c.name, "completed").Add(value)
	case PartitionsRegistered:
		Partitions.WithLabelValues(c.name).Add(value)
	}
}

// RecordHistogram observes a duration in seconds.
func (c *Collector) RecordHistogram(name string, seconds float64) {
	c.mu.Lock()
	c.totals[name] += seconds
	c.mu.Unlock()
	if !c.export {
		return
	}

	switch name {
	case SplitSeconds:
		Latency.WithLabelValues(c.name, "split").Observe(seconds)
	case WriteSeconds:
		Latency.WithLabelValues(c.name, "write").Observe(seconds)
	}
}

// Get returns the local total for name.
func (c *Collector) Get(name string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totals[name]
}

// GetAll returns the component totals plus uptime.
func (c *Collector) GetAll() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]interface{}, len(c.totals)+3)
	for k, v := range c.totals {
		out[k] = v
	}
	out["component"] = c.name
	out["start_time"] = c.startTime
	out["uptime"] = time.Since(c.startTime).Seconds()
	return out
}

// Timer measures the duration of an operation.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed duration since creation. It may be called repeatedly.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker computes records per second for a pipeline.
type ThroughputTracker struct {
	mu          sync.Mutex
	count       int64
	lastReset   time.Time
	source      string
	destination string
}

// NewThroughputTracker creates a tracker labelled with the pipeline endpoints.
func NewThroughputTracker(source, destination string) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset:   time.Now(),
		source:      source,
		destination: destination,
	}
}

// Increment adds n to the record count. Safe for concurrent use.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset returns records per second since the last reset, publishes it
// and starts a new window.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}
	throughput := float64(t.count) / elapsed

	t.count = 0
	t.lastReset = time.Now()
	Throughput.WithLabelValues(t.source, t.destination).Set(throughput)
	return throughput
}
