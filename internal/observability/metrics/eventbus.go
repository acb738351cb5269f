// Package metrics provides event bus metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EventBusMetrics contains Prometheus metrics for event bus activity.
// Its method set matches the bus's MetricsRecorder hook so an instance can
// be handed directly to the bus at construction.
type EventBusMetrics struct {
	registry *prometheus.Registry

	publishedTotal *prometheus.CounterVec
	droppedTotal   *prometheus.CounterVec
}

// NewEventBusMetrics creates and registers new event bus metrics
func NewEventBusMetrics(registry *prometheus.Registry) (*EventBusMetrics, error) {
	m := &EventBusMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *EventBusMetrics) initMetrics() error {
	m.publishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventbus_events_published_total",
			Help: "Total number of events published per topic",
		},
		[]string{"topic"},
	)

	m.droppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventbus_events_dropped_total",
			Help: "Total number of events dropped per topic and subscriber",
		},
		[]string{"topic", "subscriber"},
	)

	return nil
}

// EventPublished records one event published on the given topic.
func (m *EventBusMetrics) EventPublished(topic string) {
	m.publishedTotal.WithLabelValues(topic).Inc()
}

// EventDropped records one event dropped before reaching the subscriber.
func (m *EventBusMetrics) EventDropped(topic, subscriber string) {
	m.droppedTotal.WithLabelValues(topic, subscriber).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *EventBusMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.publishedTotal.Describe(ch)
	m.droppedTotal.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *EventBusMetrics) Collect(ch chan<- prometheus.Metric) {
	m.publishedTotal.Collect(ch)
	m.droppedTotal.Collect(ch)
}
