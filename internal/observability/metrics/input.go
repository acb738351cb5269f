// Package metrics provides input pipeline metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// InputMetrics contains Prometheus metrics for the encoder and button pipeline
type InputMetrics struct {
	registry *prometheus.Registry

	// Edge ingestion metrics
	edgesTotal        *prometheus.CounterVec
	edgesDebounced    *prometheus.CounterVec
	decodeErrorsTotal *prometheus.CounterVec
	ringDroppedTotal  prometheus.Counter
	ringUtilization   prometheus.Gauge

	// Decoded event metrics
	detentsTotal     *prometheus.CounterVec
	buttonPressTotal *prometheus.CounterVec
	detentInterval   prometheus.Histogram
	velocityGauge    prometheus.Gauge
}

// NewInputMetrics creates and registers new input pipeline metrics
func NewInputMetrics(registry *prometheus.Registry) (*InputMetrics, error) {
	m := &InputMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *InputMetrics) initMetrics() error {
	m.edgesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "input_edges_total",
			Help: "Total number of raw edges consumed from the edge ring",
		},
		[]string{"line"}, // line: a, b, button
	)

	m.edgesDebounced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "input_edges_debounced_total",
			Help: "Total number of edges discarded by the debounce floor",
		},
		[]string{"line"},
	)

	m.decodeErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "input_decode_errors_total",
			Help: "Total number of quadrature decode rejections",
		},
		[]string{"reason"}, // reason: invalid_transition
	)

	m.ringDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "input_ring_dropped_total",
		Help: "Total number of edges lost because the edge ring was full",
	})

	m.ringUtilization = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "input_ring_utilization_ratio",
		Help: "Fraction of the edge ring currently occupied",
	})

	m.detentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "input_detents_total",
			Help: "Total number of completed encoder detents",
		},
		[]string{"direction"}, // direction: cw, ccw
	)

	m.buttonPressTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "input_button_presses_total",
			Help: "Total number of recognized button presses",
		},
		[]string{"kind"}, // kind: short, long
	)

	m.detentInterval = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "input_detent_interval_seconds",
		Help:    "Time between consecutive detents in seconds",
		Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12),
	})

	m.velocityGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "input_velocity_detents_per_second",
		Help: "Smoothed rotation velocity estimate",
	})

	return nil
}

// RecordEdge records one raw edge consumed from the ring.
func (m *InputMetrics) RecordEdge(line string) {
	m.edgesTotal.WithLabelValues(line).Inc()
}

// RecordDebouncedEdge records an edge discarded by the debounce floor.
func (m *InputMetrics) RecordDebouncedEdge(line string) {
	m.edgesDebounced.WithLabelValues(line).Inc()
}

// RecordDecodeError records a rejected quadrature transition.
func (m *InputMetrics) RecordDecodeError(reason string) {
	m.decodeErrorsTotal.WithLabelValues(reason).Inc()
}

// RecordRingDrop records edges lost to a full edge ring.
func (m *InputMetrics) RecordRingDrop(count int) {
	m.ringDroppedTotal.Add(float64(count))
}

// SetRingUtilization records the current edge ring fill ratio.
func (m *InputMetrics) SetRingUtilization(ratio float64) {
	m.ringUtilization.Set(ratio)
}

// RecordDetent records one completed detent in the given direction.
func (m *InputMetrics) RecordDetent(direction string) {
	m.detentsTotal.WithLabelValues(direction).Inc()
}

// RecordButtonPress records a recognized short or long press.
func (m *InputMetrics) RecordButtonPress(kind string) {
	m.buttonPressTotal.WithLabelValues(kind).Inc()
}

// ObserveDetentInterval records the gap between consecutive detents.
func (m *InputMetrics) ObserveDetentInterval(seconds float64) {
	m.detentInterval.Observe(seconds)
}

// SetVelocity records the smoothed velocity estimate.
func (m *InputMetrics) SetVelocity(detentsPerSecond float64) {
	m.velocityGauge.Set(detentsPerSecond)
}

// Describe implements the prometheus.Collector interface.
func (m *InputMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.edgesTotal.Describe(ch)
	m.edgesDebounced.Describe(ch)
	m.decodeErrorsTotal.Describe(ch)
	ch <- m.ringDroppedTotal.Desc()
	ch <- m.ringUtilization.Desc()
	m.detentsTotal.Describe(ch)
	m.buttonPressTotal.Describe(ch)
	ch <- m.detentInterval.Desc()
	ch <- m.velocityGauge.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *InputMetrics) Collect(ch chan<- prometheus.Metric) {
	m.edgesTotal.Collect(ch)
	m.edgesDebounced.Collect(ch)
	m.decodeErrorsTotal.Collect(ch)
	ch <- m.ringDroppedTotal
	ch <- m.ringUtilization
	m.detentsTotal.Collect(ch)
	m.buttonPressTotal.Collect(ch)
	ch <- m.detentInterval
	ch <- m.velocityGauge
}
