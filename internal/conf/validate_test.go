package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSettingsRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{
			name:    "fps too high",
			mutate:  func(s *Settings) { s.Preview.FPS = 120 },
			wantErr: "preview.fps",
		},
		{
			name:    "fps zero",
			mutate:  func(s *Settings) { s.Preview.FPS = 0 },
			wantErr: "preview.fps",
		},
		{
			name:    "buffer count below triple buffering",
			mutate:  func(s *Settings) { s.Preview.BufferCount = 2 },
			wantErr: "preview.buffer_count",
		},
		{
			name:    "buffer count above quad buffering",
			mutate:  func(s *Settings) { s.Preview.BufferCount = 8 },
			wantErr: "preview.buffer_count",
		},
		{
			name:    "unknown pixel format",
			mutate:  func(s *Settings) { s.Preview.PixelFormat = "yuv420" },
			wantErr: "pixel_format",
		},
		{
			name:    "quality out of range",
			mutate:  func(s *Settings) { s.Capture.Quality = 0 },
			wantErr: "capture.quality",
		},
		{
			name:    "unknown capture device",
			mutate:  func(s *Settings) { s.Capture.Device = "webcam" },
			wantErr: "capture.device",
		},
		{
			name:    "replay without directory",
			mutate:  func(s *Settings) { s.Capture.Device = "replay" },
			wantErr: "replay_dir",
		},
		{
			name:    "negative debounce",
			mutate:  func(s *Settings) { s.Input.EncoderDebounceMs = -1 },
			wantErr: "encoder_debounce_ms",
		},
		{
			name:    "duplicate pins",
			mutate:  func(s *Settings) { s.Input.Pins.Shutter = s.Input.Pins.EncoderA },
			wantErr: "GPIO",
		},
		{
			name:    "amplitude above safe range",
			mutate:  func(s *Settings) { s.Haptic.Amplitude = 1.5 },
			wantErr: "haptic.amplitude",
		},
		{
			name:    "zero retry attempts",
			mutate:  func(s *Settings) { s.Haptic.Retry.Attempts = 0 },
			wantErr: "haptic.retry.attempts",
		},
		{
			name:    "sleep threshold not after idle",
			mutate:  func(s *Settings) { s.Scene.SleepAfterSec = 5 },
			wantErr: "sleep_after_sec",
		},
		{
			name:    "zero queue size",
			mutate:  func(s *Settings) { s.Events.QueueSize = 0 },
			wantErr: "events.queue_size",
		},
		{
			name: "metrics on a public interface",
			mutate: func(s *Settings) {
				s.Realtime.Metrics.Enabled = true
				s.Realtime.Metrics.Listen = "0.0.0.0:9090"
			},
			wantErr: "loopback",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := GetTestSettings()
			tt.mutate(s)

			err := ValidateSettings(s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateSettingsAcceptsDisabledHaptics(t *testing.T) {
	t.Parallel()

	s := GetTestSettings()
	s.Haptic.Enabled = false
	s.Haptic.Amplitude = 9.0 // ignored while disabled

	assert.NoError(t, ValidateSettings(s))
}

func TestValidateSettingsCollectsAllErrors(t *testing.T) {
	t.Parallel()

	s := GetTestSettings()
	s.Preview.FPS = 0
	s.Capture.Quality = 0
	s.Events.QueueSize = 0

	err := ValidateSettings(s)
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 3)
}
