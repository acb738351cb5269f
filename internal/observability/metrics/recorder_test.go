package metrics

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// TestRecorder is a test implementation of the Recorder interface.
// It captures all recorded metrics for verification in tests.
type TestRecorder struct {
	mu         sync.RWMutex
	operations map[string]map[string]int // operation -> status -> count
	durations  map[string][]float64      // operation -> list of durations
	errors     map[string]map[string]int // operation -> errorType -> count
}

// NewTestRecorder creates a new test recorder instance.
func NewTestRecorder() *TestRecorder {
	return &TestRecorder{
		operations: make(map[string]map[string]int),
		durations:  make(map[string][]float64),
		errors:     make(map[string]map[string]int),
	}
}

// RecordOperation implements the Recorder interface for testing.
func (r *TestRecorder) RecordOperation(operation, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.operations[operation] == nil {
		r.operations[operation] = make(map[string]int)
	}
	r.operations[operation][status]++
}

// RecordDuration implements the Recorder interface for testing.
func (r *TestRecorder) RecordDuration(operation string, seconds float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.durations[operation] = append(r.durations[operation], seconds)
}

// RecordError implements the Recorder interface for testing.
func (r *TestRecorder) RecordError(operation, errorType string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.errors[operation] == nil {
		r.errors[operation] = make(map[string]int)
	}
	r.errors[operation][errorType]++
}

// GetOperationCount returns the count of a specific operation and status.
func (r *TestRecorder) GetOperationCount(operation, status string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if statusMap, ok := r.operations[operation]; ok {
		return statusMap[status]
	}
	return 0
}

// GetDurations returns all recorded durations for a specific operation.
func (r *TestRecorder) GetDurations(operation string) []float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if durations, ok := r.durations[operation]; ok {
		result := make([]float64, len(durations))
		copy(result, durations)
		return result
	}
	return nil
}

// GetErrorCount returns the count of a specific error type for an operation.
func (r *TestRecorder) GetErrorCount(operation, errorType string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if errorMap, ok := r.errors[operation]; ok {
		return errorMap[errorType]
	}
	return 0
}

// Compile-time check that TestRecorder satisfies the Recorder interface.
var _ Recorder = (*TestRecorder)(nil)

// TestRecordOperation verifies RecordOperation functionality of TestRecorder.
func TestRecordOperation(t *testing.T) {
	t.Parallel()

	recorder := NewTestRecorder()
	recorder.RecordOperation(OpEncode, StatusSuccess)
	recorder.RecordOperation(OpEncode, StatusSuccess)
	recorder.RecordOperation(OpEncode, StatusError)
	recorder.RecordOperation(OpSave, StatusSuccess)

	if count := recorder.GetOperationCount(OpEncode, StatusSuccess); count != 2 {
		t.Errorf("expected 2 successful encodes, got %d", count)
	}
	if count := recorder.GetOperationCount(OpEncode, StatusError); count != 1 {
		t.Errorf("expected 1 error encode, got %d", count)
	}
	if count := recorder.GetOperationCount(OpSave, StatusSuccess); count != 1 {
		t.Errorf("expected 1 successful save, got %d", count)
	}
	if count := recorder.GetOperationCount(OpSave, StatusError); count != 0 {
		t.Errorf("expected 0 error saves, got %d", count)
	}
}

// TestRecordDuration verifies RecordDuration functionality of TestRecorder.
func TestRecordDuration(t *testing.T) {
	t.Parallel()

	recorder := NewTestRecorder()
	recorder.RecordDuration(OpEncode, 0.123)
	recorder.RecordDuration(OpEncode, 0.456)
	recorder.RecordDuration(OpShutter, 0.007)

	encodeDurations := recorder.GetDurations(OpEncode)
	if len(encodeDurations) != 2 {
		t.Fatalf("expected 2 encode durations, got %d", len(encodeDurations))
	}
	if encodeDurations[0] != 0.123 || encodeDurations[1] != 0.456 {
		t.Errorf("unexpected encode durations: %v", encodeDurations)
	}

	shutterDurations := recorder.GetDurations(OpShutter)
	if len(shutterDurations) != 1 {
		t.Fatalf("expected 1 shutter duration, got %d", len(shutterDurations))
	}

	// Test non-existent operation
	if durations := recorder.GetDurations("non_existent"); durations != nil {
		t.Errorf("expected nil for non-existent operation, got %v", durations)
	}
}

// TestRecordError verifies RecordError functionality of TestRecorder.
func TestRecordError(t *testing.T) {
	t.Parallel()

	recorder := NewTestRecorder()
	recorder.RecordError(OpSave, "io")
	recorder.RecordError(OpSave, "io")
	recorder.RecordError(OpCapture, "device_busy")

	if count := recorder.GetErrorCount(OpSave, "io"); count != 2 {
		t.Errorf("expected 2 io save errors, got %d", count)
	}
	if count := recorder.GetErrorCount(OpCapture, "device_busy"); count != 1 {
		t.Errorf("expected 1 device_busy capture error, got %d", count)
	}
}

// TestCaptureMetricsImplementsRecorder verifies the concrete capture metrics
// satisfy the Recorder interface and accept recordings through it.
func TestCaptureMetricsImplementsRecorder(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewCaptureMetrics(registry)
	if err != nil {
		t.Fatalf("NewCaptureMetrics failed: %v", err)
	}

	var r Recorder = m
	r.RecordOperation(OpEncode, StatusSuccess)
	r.RecordDuration(OpEncode, 0.030)
	r.RecordError(OpSave, "io")

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if len(families) == 0 {
		t.Error("expected gathered families after recording through Recorder")
	}
}
