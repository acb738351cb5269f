// Package observability provides metrics and monitoring capabilities for the appliance runtime.
package observability

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"

	"github.com/insolesplug-ops/selimcam/internal/events"
	"github.com/insolesplug-ops/selimcam/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the appliance.
type Metrics struct {
	registry  *prometheus.Registry
	FramePool *metrics.FramePoolMetrics
	Input     *metrics.InputMetrics
	Haptic    *metrics.HapticMetrics
	Scene     *metrics.SceneMetrics
	Render    *metrics.RenderMetrics
	Capture   *metrics.CaptureMetrics
	EventBus  *metrics.EventBusMetrics
}

// The event bus accepts its recorder as an interface; the concrete
// collector must keep satisfying it.
var _ events.MetricsRecorder = (*metrics.EventBusMetrics)(nil)

// NewMetrics creates a new instance of Metrics, initializing all metric collectors.
// It returns an error if any metric collector fails to initialize.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	framePoolMetrics, err := metrics.NewFramePoolMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create frame pool metrics: %w", err)
	}

	inputMetrics, err := metrics.NewInputMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create input metrics: %w", err)
	}

	hapticMetrics, err := metrics.NewHapticMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create haptic metrics: %w", err)
	}

	sceneMetrics, err := metrics.NewSceneMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create scene metrics: %w", err)
	}

	renderMetrics, err := metrics.NewRenderMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create render metrics: %w", err)
	}

	captureMetrics, err := metrics.NewCaptureMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture metrics: %w", err)
	}

	eventBusMetrics, err := metrics.NewEventBusMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create event bus metrics: %w", err)
	}

	m := &Metrics{
		registry:  registry,
		FramePool: framePoolMetrics,
		Input:     inputMetrics,
		Haptic:    hapticMetrics,
		Scene:     sceneMetrics,
		Render:    renderMetrics,
		Capture:   captureMetrics,
		EventBus:  eventBusMetrics,
	}

	return m, nil
}

// RegisterHandlers registers the metrics endpoint with the provided http.ServeMux.
func (m *Metrics) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/metrics", m.metricsHandler)
}

// metricsHandler is the HTTP handler for the /metrics endpoint.
func (m *Metrics) metricsHandler(w http.ResponseWriter, r *http.Request) {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      log.New(os.Stderr, "metrics handler: ", log.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
	h.ServeHTTP(w, r)
}

// Gather collects the current state of all registered metrics. It is used
// by diagnostics snapshots and tests.
func (m *Metrics) Gather() ([]*dto.MetricFamily, error) {
	return m.registry.Gather()
}
