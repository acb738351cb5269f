// Package metrics provides photo capture pipeline metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CaptureMetrics contains Prometheus metrics for the capture pipeline.
// It implements the Recorder interface so the pipeline can depend on the
// abstraction in tests.
type CaptureMetrics struct {
	registry *prometheus.Registry

	// Generic operation metrics backing the Recorder interface
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	operationErrors   *prometheus.CounterVec

	// Request and device metrics
	captureRequests *prometheus.CounterVec
	deviceFrames    *prometheus.CounterVec

	// Pipeline state metrics
	encodeQueueDepth prometheus.Gauge
	photosSavedTotal prometheus.Counter
	photoSizeBytes   prometheus.Histogram
	shutterLatency   prometheus.Histogram
}

// Compile-time check that CaptureMetrics satisfies the Recorder interface.
var _ Recorder = (*CaptureMetrics)(nil)

// NewCaptureMetrics creates and registers new capture pipeline metrics
func NewCaptureMetrics(registry *prometheus.Registry) (*CaptureMetrics, error) {
	m := &CaptureMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *CaptureMetrics) initMetrics() error {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capture_operations_total",
			Help: "Total number of capture pipeline operations",
		},
		[]string{"operation", "status"}, // operation: capture, encode, save
	)

	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "capture_operation_duration_seconds",
			Help:    "Duration of capture pipeline operations in seconds",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12),
		},
		[]string{"operation"},
	)

	m.operationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capture_operation_errors_total",
			Help: "Total number of capture pipeline errors by type",
		},
		[]string{"operation", "error_type"},
	)

	m.captureRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capture_requests_total",
			Help: "Total number of shutter requests by outcome",
		},
		[]string{"status"}, // status: accepted, dropped
	)

	m.deviceFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capture_device_frames_total",
			Help: "Total number of sensor frame fetches by outcome",
		},
		[]string{"status"}, // status: success, busy, error
	)

	m.encodeQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "capture_encode_queue_depth",
		Help: "Number of capture jobs waiting for an encode worker",
	})

	m.photosSavedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "capture_photos_saved_total",
		Help: "Total number of photos persisted to storage",
	})

	m.photoSizeBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "capture_photo_size_bytes",
		Help:    "Size of encoded photos in bytes",
		Buckets: prometheus.ExponentialBuckets(BucketStart1KB, BucketFactor2, BucketCount20),
	})

	m.shutterLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "capture_shutter_latency_seconds",
		Help:    "Latency from shutter request to sensor frame grab in seconds",
		Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount10),
	})

	return nil
}

// RecordOperation implements the Recorder interface.
// Supported operations: "capture", "encode", "save".
// Status values: "success", "error".
func (m *CaptureMetrics) RecordOperation(operation, status string) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration implements the Recorder interface.
func (m *CaptureMetrics) RecordDuration(operation string, seconds float64) {
	m.operationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements the Recorder interface.
func (m *CaptureMetrics) RecordError(operation, errorType string) {
	m.operationErrors.WithLabelValues(operation, errorType).Inc()
}

// RecordRequest records a shutter request and whether it was accepted.
func (m *CaptureMetrics) RecordRequest(status string) {
	m.captureRequests.WithLabelValues(status).Inc()
}

// RecordDeviceFrame records a sensor frame fetch outcome.
func (m *CaptureMetrics) RecordDeviceFrame(status string) {
	m.deviceFrames.WithLabelValues(status).Inc()
}

// SetEncodeQueueDepth records the number of jobs waiting to encode.
func (m *CaptureMetrics) SetEncodeQueueDepth(depth int) {
	m.encodeQueueDepth.Set(float64(depth))
}

// RecordPhotoSaved records one persisted photo and its encoded size.
func (m *CaptureMetrics) RecordPhotoSaved(sizeBytes int) {
	m.photosSavedTotal.Inc()
	m.photoSizeBytes.Observe(float64(sizeBytes))
}

// ObserveShutterLatency records shutter-to-grab latency.
func (m *CaptureMetrics) ObserveShutterLatency(seconds float64) {
	m.shutterLatency.Observe(seconds)
}

// Describe implements the prometheus.Collector interface.
func (m *CaptureMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.operationsTotal.Describe(ch)
	m.operationDuration.Describe(ch)
	m.operationErrors.Describe(ch)
	m.captureRequests.Describe(ch)
	m.deviceFrames.Describe(ch)
	ch <- m.encodeQueueDepth.Desc()
	ch <- m.photosSavedTotal.Desc()
	ch <- m.photoSizeBytes.Desc()
	ch <- m.shutterLatency.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *CaptureMetrics) Collect(ch chan<- prometheus.Metric) {
	m.operationsTotal.Collect(ch)
	m.operationDuration.Collect(ch)
	m.operationErrors.Collect(ch)
	m.captureRequests.Collect(ch)
	m.deviceFrames.Collect(ch)
	ch <- m.encodeQueueDepth
	ch <- m.photosSavedTotal
	ch <- m.photoSizeBytes
	ch <- m.shutterLatency
}
