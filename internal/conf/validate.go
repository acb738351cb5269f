// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validatePreviewSettings(&settings.Preview); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateCaptureSettings(&settings.Capture); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateInputSettings(&settings.Input); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateHapticSettings(&settings.Haptic); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateSceneSettings(&settings.Scene); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateEventsSettings(&settings.Events); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateMetricsSettings(&settings.Realtime.Metrics); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validatePreviewSettings(p *PreviewSettings) error {
	if p.FPS < 1 || p.FPS > 60 {
		return fmt.Errorf("preview.fps must be between 1 and 60, got %d", p.FPS)
	}
	// The documented buffering target is triple or quadruple buffering.
	if p.BufferCount < 3 || p.BufferCount > 4 {
		return fmt.Errorf("preview.buffer_count must be 3 or 4, got %d", p.BufferCount)
	}
	if p.Width < 1 || p.Height < 1 {
		return fmt.Errorf("preview dimensions must be positive, got %dx%d", p.Width, p.Height)
	}
	switch strings.ToLower(p.PixelFormat) {
	case "rgba", "rgb24":
	default:
		return fmt.Errorf("preview.pixel_format must be rgba or rgb24, got %q", p.PixelFormat)
	}
	return nil
}

func validateCaptureSettings(c *CaptureSettings) error {
	if c.Quality < 1 || c.Quality > 100 {
		return fmt.Errorf("capture.quality must be between 1 and 100, got %d", c.Quality)
	}
	if c.WorkerThreads < 1 || c.WorkerThreads > 8 {
		return fmt.Errorf("capture.worker_threads must be between 1 and 8, got %d", c.WorkerThreads)
	}
	switch c.Device {
	case "pattern", "replay":
	default:
		return fmt.Errorf("capture.device must be pattern or replay, got %q", c.Device)
	}
	if c.Device == "replay" && c.ReplayDir == "" {
		return fmt.Errorf("capture.replay_dir is required when capture.device is replay")
	}
	return nil
}

func validateInputSettings(in *InputSettings) error {
	if in.EncoderDebounceMs < 0 {
		return fmt.Errorf("input.encoder_debounce_ms must not be negative, got %v", in.EncoderDebounceMs)
	}
	if in.ButtonDebounceMs < 0 {
		return fmt.Errorf("input.button_debounce_ms must not be negative, got %v", in.ButtonDebounceMs)
	}
	if in.LongPressMs < 0 {
		return fmt.Errorf("input.long_press_ms must not be negative, got %d", in.LongPressMs)
	}
	if in.EdgeRing < 16 {
		return fmt.Errorf("input.edge_ring must be at least 16, got %d", in.EdgeRing)
	}
	pins := map[string]int{
		"encoder_a":  in.Pins.EncoderA,
		"encoder_b":  in.Pins.EncoderB,
		"encoder_sw": in.Pins.EncoderSW,
		"shutter":    in.Pins.Shutter,
	}
	seen := make(map[int]string, len(pins))
	for name, pin := range pins {
		if pin < 0 {
			return fmt.Errorf("input.pins.%s must not be negative, got %d", name, pin)
		}
		if other, dup := seen[pin]; dup {
			return fmt.Errorf("input.pins.%s and input.pins.%s both use GPIO %d", name, other, pin)
		}
		seen[pin] = name
	}
	return nil
}

func validateHapticSettings(h *HapticSettings) error {
	if !h.Enabled {
		return nil
	}
	if h.Amplitude < 0.0 || h.Amplitude > 1.0 {
		return fmt.Errorf("haptic.amplitude must be between 0.0 and 1.0, got %v", h.Amplitude)
	}
	if h.Curve.Floor < 0.0 || h.Curve.Floor > 1.0 {
		return fmt.Errorf("haptic.curve.floor must be between 0.0 and 1.0, got %v", h.Curve.Floor)
	}
	if h.Curve.Falloff <= 0 {
		return fmt.Errorf("haptic.curve.falloff must be positive, got %v", h.Curve.Falloff)
	}
	if h.Retry.Attempts < 1 {
		return fmt.Errorf("haptic.retry.attempts must be at least 1, got %d", h.Retry.Attempts)
	}
	if h.Retry.BackoffMs < 0 {
		return fmt.Errorf("haptic.retry.backoff_ms must not be negative, got %d", h.Retry.BackoffMs)
	}
	return nil
}

func validateSceneSettings(sc *SceneSettings) error {
	if sc.TransitionMs < 0 {
		return fmt.Errorf("scene.transition_ms must not be negative, got %d", sc.TransitionMs)
	}
	if sc.IdleAfterSec > 0 && sc.SleepAfterSec > 0 && sc.SleepAfterSec <= sc.IdleAfterSec {
		return fmt.Errorf("scene.sleep_after_sec (%d) must be greater than scene.idle_after_sec (%d)",
			sc.SleepAfterSec, sc.IdleAfterSec)
	}
	if sc.IdleFPS < 1 || sc.SleepFPS < 1 {
		return fmt.Errorf("scene tier frame rates must be at least 1, got idle %d sleep %d",
			sc.IdleFPS, sc.SleepFPS)
	}
	return nil
}

func validateEventsSettings(e *EventsSettings) error {
	if e.QueueSize < 1 {
		return fmt.Errorf("events.queue_size must be at least 1, got %d", e.QueueSize)
	}
	return nil
}

func validateMetricsSettings(m *MetricsSettings) error {
	if !m.Enabled {
		return nil
	}
	host, _, err := net.SplitHostPort(m.Listen)
	if err != nil {
		return fmt.Errorf("realtime.metrics.listen must be host:port, got %q: %w", m.Listen, err)
	}
	if ip := net.ParseIP(host); ip != nil && !ip.IsLoopback() {
		// The endpoint serves raw runtime counters. Keep it off the network
		// unless the operator is explicit about it.
		return fmt.Errorf("realtime.metrics.listen must bind a loopback address, got %q", m.Listen)
	}
	return nil
}
