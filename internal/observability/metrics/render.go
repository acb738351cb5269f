// Package metrics provides preview render loop metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RenderMetrics contains Prometheus metrics for the preview render loop
type RenderMetrics struct {
	registry *prometheus.Registry

	framesTotal     *prometheus.CounterVec
	staleLeases     prometheus.Counter
	missedDeadlines prometheus.Counter
	coalescedTicks  prometheus.Counter
	renderDuration  prometheus.Histogram
	frameInterval   prometheus.Histogram
	targetFPSGauge  prometheus.Gauge
}

// NewRenderMetrics creates and registers new render metrics
func NewRenderMetrics(registry *prometheus.Registry) (*RenderMetrics, error) {
	m := &RenderMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *RenderMetrics) initMetrics() error {
	m.framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "render_frames_total",
			Help: "Total number of render ticks by outcome",
		},
		[]string{"status"}, // status: rendered, repeated, error
	)

	m.staleLeases = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "render_stale_leases_total",
		Help: "Total number of leases invalidated by a newer frame mid-render",
	})

	m.missedDeadlines = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "render_missed_deadlines_total",
		Help: "Total number of ticks where rendering overran the frame interval",
	})

	m.coalescedTicks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "render_coalesced_ticks_total",
		Help: "Total number of ticker fires collapsed into a single render",
	})

	m.renderDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "render_duration_seconds",
		Help:    "Time spent rendering a single frame in seconds",
		Buckets: prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount12),
	})

	m.frameInterval = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "render_frame_interval_seconds",
		Help:    "Observed interval between presented frames in seconds",
		Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount10),
	})

	m.targetFPSGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "render_target_fps",
		Help: "Frame rate the render loop is currently pacing to",
	})

	return nil
}

// RecordFrame records one render tick outcome.
func (m *RenderMetrics) RecordFrame(status string) {
	m.framesTotal.WithLabelValues(status).Inc()
}

// RecordStaleLease records a lease invalidated mid-render.
func (m *RenderMetrics) RecordStaleLease() {
	m.staleLeases.Inc()
}

// RecordMissedDeadline records a render that overran its frame interval.
func (m *RenderMetrics) RecordMissedDeadline() {
	m.missedDeadlines.Inc()
}

// RecordCoalescedTicks records ticker fires collapsed into one render.
func (m *RenderMetrics) RecordCoalescedTicks(count int) {
	m.coalescedTicks.Add(float64(count))
}

// ObserveRenderDuration records the time spent rendering one frame.
func (m *RenderMetrics) ObserveRenderDuration(seconds float64) {
	m.renderDuration.Observe(seconds)
}

// ObserveFrameInterval records the gap between presented frames.
func (m *RenderMetrics) ObserveFrameInterval(seconds float64) {
	m.frameInterval.Observe(seconds)
}

// SetTargetFPS records the frame rate the loop is pacing to.
func (m *RenderMetrics) SetTargetFPS(fps float64) {
	m.targetFPSGauge.Set(fps)
}

// Describe implements the prometheus.Collector interface.
func (m *RenderMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.framesTotal.Describe(ch)
	ch <- m.staleLeases.Desc()
	ch <- m.missedDeadlines.Desc()
	ch <- m.coalescedTicks.Desc()
	ch <- m.renderDuration.Desc()
	ch <- m.frameInterval.Desc()
	ch <- m.targetFPSGauge.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *RenderMetrics) Collect(ch chan<- prometheus.Metric) {
	m.framesTotal.Collect(ch)
	ch <- m.staleLeases
	ch <- m.missedDeadlines
	ch <- m.coalescedTicks
	ch <- m.renderDuration
	ch <- m.frameInterval
	ch <- m.targetFPSGauge
}
