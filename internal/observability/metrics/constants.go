// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Operation type constants used across metric definitions.
// These constants define the categories of operations that can be recorded.
const (
	// OpCapture represents a full shutter-to-file capture operation.
	OpCapture = "capture"
	// OpShutter represents shutter request handling.
	OpShutter = "shutter"
	// OpEncode represents photo encode operations.
	OpEncode = "encode"
	// OpSave represents photo persistence operations.
	OpSave = "save"
)

// Status label values shared by the per-domain metric collectors.
const (
	// StatusSuccess marks an operation that completed normally.
	StatusSuccess = "success"
	// StatusError marks an operation that failed.
	StatusError = "error"
	// StatusBusy marks an operation refused because a resource was held.
	StatusBusy = "busy"
	// StatusStale marks a lease attempt that lost to a newer generation.
	StatusStale = "stale"
	// StatusDropped marks work discarded under backpressure.
	StatusDropped = "dropped"
	// StatusDegraded marks an operation skipped because the device is degraded.
	StatusDegraded = "degraded"
)

// Histogram bucket configuration constants.
// These define the base values and factors for exponential bucket generation.
const (
	// BucketStart100us is the starting bucket for 0.1ms histograms (0.1ms to ~400ms range).
	BucketStart100us = 0.0001
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~1s range).
	BucketStart1ms = 0.001
	// BucketStart10ms is the starting bucket for 10ms histograms (10ms to ~40s range).
	BucketStart10ms = 0.01
	// BucketStart1KB is the starting bucket for 1KB histograms (1KB to ~1GB range).
	BucketStart1KB = 1024.0

	// BucketFactor2 is the common exponential growth factor of 2 for histogram buckets.
	BucketFactor2 = 2

	// BucketCount10 defines 10 exponential buckets.
	BucketCount10 = 10
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
	// BucketCount20 defines 20 exponential buckets.
	BucketCount20 = 20
)

// Time and conversion constants.
const (
	// ShutdownTimeout is the timeout for graceful shutdown operations.
	ShutdownTimeout = 5 * time.Second
	// MillisecondsPerSecond is the conversion factor from seconds to milliseconds.
	MillisecondsPerSecond = 1000.0
)
