// Package metrics provides haptic actuator metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// HapticMetrics contains Prometheus metrics for the haptic actuator driver
type HapticMetrics struct {
	registry *prometheus.Registry

	pulsesTotal    *prometheus.CounterVec
	busErrors      *prometheus.CounterVec
	retriesTotal   prometheus.Counter
	reprobesTotal  *prometheus.CounterVec
	degradedGauge  prometheus.Gauge
	pulseLatency   prometheus.Histogram
	amplitudeGauge prometheus.Gauge
}

// NewHapticMetrics creates and registers new haptic metrics
func NewHapticMetrics(registry *prometheus.Registry) (*HapticMetrics, error) {
	m := &HapticMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *HapticMetrics) initMetrics() error {
	m.pulsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haptic_pulses_total",
			Help: "Total number of haptic pulse requests",
		},
		[]string{"effect", "status"}, // status: success, error, degraded, dropped
	)

	m.busErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haptic_bus_errors_total",
			Help: "Total number of actuator bus write failures",
		},
		[]string{"op"}, // op: init, waveform, go
	)

	m.retriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "haptic_retries_total",
		Help: "Total number of actuator bus write retries",
	})

	m.reprobesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haptic_reprobes_total",
			Help: "Total number of degraded-mode device reprobe attempts",
		},
		[]string{"status"}, // status: success, error
	)

	m.degradedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "haptic_degraded",
		Help: "Whether the haptic driver is in degraded mode (1) or healthy (0)",
	})

	m.pulseLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "haptic_pulse_latency_seconds",
		Help:    "Latency from pulse request to actuator trigger in seconds",
		Buckets: prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount12),
	})

	m.amplitudeGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "haptic_amplitude_scale",
		Help: "Current velocity-adapted amplitude scale applied to pulses",
	})

	return nil
}

// RecordPulse records a haptic pulse request and its outcome.
func (m *HapticMetrics) RecordPulse(effect, status string) {
	m.pulsesTotal.WithLabelValues(effect, status).Inc()
}

// RecordBusError records a failed actuator bus write.
func (m *HapticMetrics) RecordBusError(op string) {
	m.busErrors.WithLabelValues(op).Inc()
}

// RecordRetry records one actuator bus write retry.
func (m *HapticMetrics) RecordRetry() {
	m.retriesTotal.Inc()
}

// RecordReprobe records a degraded-mode reprobe attempt.
func (m *HapticMetrics) RecordReprobe(status string) {
	m.reprobesTotal.WithLabelValues(status).Inc()
}

// SetDegraded records whether the driver is currently degraded.
func (m *HapticMetrics) SetDegraded(degraded bool) {
	if degraded {
		m.degradedGauge.Set(1)
	} else {
		m.degradedGauge.Set(0)
	}
}

// ObservePulseLatency records the request-to-trigger latency of a pulse.
func (m *HapticMetrics) ObservePulseLatency(seconds float64) {
	m.pulseLatency.Observe(seconds)
}

// SetAmplitudeScale records the current adaptive amplitude scale.
func (m *HapticMetrics) SetAmplitudeScale(scale float64) {
	m.amplitudeGauge.Set(scale)
}

// Describe implements the prometheus.Collector interface.
func (m *HapticMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.pulsesTotal.Describe(ch)
	m.busErrors.Describe(ch)
	ch <- m.retriesTotal.Desc()
	m.reprobesTotal.Describe(ch)
	ch <- m.degradedGauge.Desc()
	ch <- m.pulseLatency.Desc()
	ch <- m.amplitudeGauge.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *HapticMetrics) Collect(ch chan<- prometheus.Metric) {
	m.pulsesTotal.Collect(ch)
	m.busErrors.Collect(ch)
	ch <- m.retriesTotal
	m.reprobesTotal.Collect(ch)
	ch <- m.degradedGauge
	ch <- m.pulseLatency
	ch <- m.amplitudeGauge
}
