// Package metrics provides frame pool metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// FramePoolMetrics contains Prometheus metrics for frame pool operations
type FramePoolMetrics struct {
	registry *prometheus.Registry

	// Slot lifecycle metrics
	acquiresTotal  *prometheus.CounterVec
	publishesTotal prometheus.Counter
	leasesTotal    *prometheus.CounterVec
	releasesTotal  prometheus.Counter

	// Pool state metrics
	slotsGauge      prometheus.Gauge
	frameBytesGauge prometheus.Gauge
	leasedGauge     prometheus.Gauge

	// Timing metrics
	leaseDuration prometheus.Histogram
	writeDuration prometheus.Histogram
}

// NewFramePoolMetrics creates and registers new frame pool metrics
func NewFramePoolMetrics(registry *prometheus.Registry) (*FramePoolMetrics, error) {
	m := &FramePoolMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *FramePoolMetrics) initMetrics() error {
	m.acquiresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framepool_acquires_total",
			Help: "Total number of write slot acquisition attempts",
		},
		[]string{"status"}, // status: success, busy
	)

	m.publishesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "framepool_publishes_total",
		Help: "Total number of frames published to the pool",
	})

	m.leasesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framepool_leases_total",
			Help: "Total number of read lease attempts",
		},
		[]string{"status"}, // status: success, stale
	)

	m.releasesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "framepool_releases_total",
		Help: "Total number of lease releases",
	})

	m.slotsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "framepool_slots",
		Help: "Number of fixed frame slots in the pool",
	})

	m.frameBytesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "framepool_frame_bytes",
		Help: "Size of a single frame slot in bytes",
	})

	m.leasedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "framepool_active_leases",
		Help: "Number of read leases currently outstanding",
	})

	m.leaseDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "framepool_lease_duration_seconds",
		Help:    "How long read leases are held in seconds",
		Buckets: prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount12),
	})

	m.writeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "framepool_write_duration_seconds",
		Help:    "How long write slots are held before publish in seconds",
		Buckets: prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount12),
	})

	return nil
}

// RecordAcquire records a write slot acquisition attempt.
func (m *FramePoolMetrics) RecordAcquire(status string) {
	m.acquiresTotal.WithLabelValues(status).Inc()
}

// RecordPublish records a completed frame publish.
func (m *FramePoolMetrics) RecordPublish() {
	m.publishesTotal.Inc()
}

// RecordLease records a read lease attempt.
func (m *FramePoolMetrics) RecordLease(status string) {
	m.leasesTotal.WithLabelValues(status).Inc()
}

// RecordRelease records a lease release.
func (m *FramePoolMetrics) RecordRelease() {
	m.releasesTotal.Inc()
}

// SetPoolShape records the fixed pool geometry. Called once at construction.
func (m *FramePoolMetrics) SetPoolShape(slots int, frameBytes int) {
	m.slotsGauge.Set(float64(slots))
	m.frameBytesGauge.Set(float64(frameBytes))
}

// SetActiveLeases records the number of outstanding read leases.
func (m *FramePoolMetrics) SetActiveLeases(n int) {
	m.leasedGauge.Set(float64(n))
}

// ObserveLeaseDuration records how long a read lease was held.
func (m *FramePoolMetrics) ObserveLeaseDuration(seconds float64) {
	m.leaseDuration.Observe(seconds)
}

// ObserveWriteDuration records how long a write slot was held before publish.
func (m *FramePoolMetrics) ObserveWriteDuration(seconds float64) {
	m.writeDuration.Observe(seconds)
}

// Describe implements the prometheus.Collector interface.
func (m *FramePoolMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.acquiresTotal.Describe(ch)
	ch <- m.publishesTotal.Desc()
	m.leasesTotal.Describe(ch)
	ch <- m.releasesTotal.Desc()
	ch <- m.slotsGauge.Desc()
	ch <- m.frameBytesGauge.Desc()
	ch <- m.leasedGauge.Desc()
	ch <- m.leaseDuration.Desc()
	ch <- m.writeDuration.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *FramePoolMetrics) Collect(ch chan<- prometheus.Metric) {
	m.acquiresTotal.Collect(ch)
	ch <- m.publishesTotal
	m.leasesTotal.Collect(ch)
	ch <- m.releasesTotal
	ch <- m.slotsGauge
	ch <- m.frameBytesGauge
	ch <- m.leasedGauge
	ch <- m.leaseDuration
	ch <- m.writeDuration
}
