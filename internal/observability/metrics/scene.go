// Package metrics provides scene machine metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SceneMetrics contains Prometheus metrics for scene navigation and power tiering
type SceneMetrics struct {
	registry *prometheus.Registry

	transitionsTotal   *prometheus.CounterVec
	navigationsTotal   *prometheus.CounterVec
	transitionDuration prometheus.Histogram
	overlayToggles     prometheus.Counter
	filterChanges      prometheus.Counter
	powerTierGauge     prometheus.Gauge
	powerTransitions   *prometheus.CounterVec
}

// NewSceneMetrics creates and registers new scene metrics
func NewSceneMetrics(registry *prometheus.Registry) (*SceneMetrics, error) {
	m := &SceneMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *SceneMetrics) initMetrics() error {
	m.transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scene_transitions_total",
			Help: "Total number of completed scene transitions",
		},
		[]string{"from", "to"},
	)

	m.navigationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scene_navigations_total",
			Help: "Total number of navigation requests",
		},
		[]string{"status"}, // status: started, queued, replaced, noop
	)

	m.transitionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scene_transition_duration_seconds",
		Help:    "Wall time of completed scene transitions in seconds",
		Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount10),
	})

	m.overlayToggles = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scene_overlay_toggles_total",
		Help: "Total number of overlay visibility toggles",
	})

	m.filterChanges = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scene_filter_changes_total",
		Help: "Total number of preview filter changes",
	})

	m.powerTierGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scene_power_tier",
		Help: "Current power tier (0 active, 1 idle, 2 sleep)",
	})

	m.powerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scene_power_transitions_total",
			Help: "Total number of power tier changes",
		},
		[]string{"tier"}, // tier: active, idle, sleep
	)

	return nil
}

// RecordTransition records a completed scene transition.
func (m *SceneMetrics) RecordTransition(from, to string) {
	m.transitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordNavigation records a navigation request and how it was handled.
func (m *SceneMetrics) RecordNavigation(status string) {
	m.navigationsTotal.WithLabelValues(status).Inc()
}

// ObserveTransitionDuration records the wall time of a completed transition.
func (m *SceneMetrics) ObserveTransitionDuration(seconds float64) {
	m.transitionDuration.Observe(seconds)
}

// RecordOverlayToggle records one overlay visibility toggle.
func (m *SceneMetrics) RecordOverlayToggle() {
	m.overlayToggles.Inc()
}

// RecordFilterChange records one preview filter change.
func (m *SceneMetrics) RecordFilterChange() {
	m.filterChanges.Inc()
}

// SetPowerTier records the current power tier ordinal.
func (m *SceneMetrics) SetPowerTier(tier int) {
	m.powerTierGauge.Set(float64(tier))
}

// RecordPowerTransition records a change into the named power tier.
func (m *SceneMetrics) RecordPowerTransition(tier string) {
	m.powerTransitions.WithLabelValues(tier).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *SceneMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.transitionsTotal.Describe(ch)
	m.navigationsTotal.Describe(ch)
	ch <- m.transitionDuration.Desc()
	ch <- m.overlayToggles.Desc()
	ch <- m.filterChanges.Desc()
	ch <- m.powerTierGauge.Desc()
	m.powerTransitions.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *SceneMetrics) Collect(ch chan<- prometheus.Metric) {
	m.transitionsTotal.Collect(ch)
	m.navigationsTotal.Collect(ch)
	ch <- m.transitionDuration
	ch <- m.overlayToggles
	ch <- m.filterChanges
	ch <- m.powerTierGauge
	m.powerTransitions.Collect(ch)
}
