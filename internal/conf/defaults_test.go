package conf

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTestSettingsDefaults(t *testing.T) {
	t.Parallel()

	s := GetTestSettings()
	require.NotNil(t, s)

	assert.False(t, s.Debug)
	assert.Equal(t, "SelimCam", s.Main.Name)
	assert.True(t, s.Main.Log.Enabled)

	assert.Equal(t, 30, s.Preview.FPS)
	assert.Equal(t, 3, s.Preview.BufferCount)
	assert.Equal(t, 480, s.Preview.Width)
	assert.Equal(t, 800, s.Preview.Height)
	assert.Equal(t, "rgba", s.Preview.PixelFormat)

	assert.Equal(t, 90, s.Capture.Quality)
	assert.Equal(t, 2, s.Capture.WorkerThreads)
	assert.Equal(t, "pattern", s.Capture.Device)

	assert.InDelta(t, 2.0, s.Input.EncoderDebounceMs, 0.001)
	assert.Equal(t, 500, s.Input.LongPressMs)
	assert.Equal(t, 200, s.Input.VelocityDecayMs)
	assert.Equal(t, 256, s.Input.EdgeRing)
	assert.Equal(t, 17, s.Input.Pins.EncoderA)
	assert.Equal(t, 27, s.Input.Pins.EncoderB)

	assert.True(t, s.Haptic.Enabled)
	assert.InDelta(t, 0.6, s.Haptic.Amplitude, 0.001)
	assert.Equal(t, uint16(0x5A), s.Haptic.Address)
	assert.Equal(t, byte(6), s.Haptic.Library)
	assert.Equal(t, byte(0x01), s.Haptic.Registers.Mode)
	assert.Equal(t, byte(0x0C), s.Haptic.Registers.Go)
	assert.Equal(t, 3, s.Haptic.Retry.Attempts)

	assert.Equal(t, 250, s.Scene.TransitionMs)
	assert.Equal(t, 10, s.Scene.IdleAfterSec)
	assert.Equal(t, 30, s.Scene.SleepAfterSec)
	assert.Equal(t, 10, s.Scene.IdleFPS)
	assert.Equal(t, 1, s.Scene.SleepFPS)

	assert.Equal(t, 64, s.Events.QueueSize)
	assert.False(t, s.Realtime.Metrics.Enabled)
}

func TestDefaultSettingsValidate(t *testing.T) {
	t.Parallel()

	s := GetTestSettings()
	require.NoError(t, ValidateSettings(s))
}

func TestDurationHelpers(t *testing.T) {
	t.Parallel()

	s := GetTestSettings()
	assert.Equal(t, "2ms", s.EncoderDebounce().String())
	assert.Equal(t, "15ms", s.ButtonDebounce().String())
	assert.Equal(t, "500ms", s.LongPress().String())
	assert.Equal(t, "250ms", s.TransitionDuration().String())
}

// Flat option names from the original appliance config must keep working.
func TestApplyFlatAliases(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setDefaultConfig()
	viper.Set("preview_fps", 24)
	viper.Set("haptic_amplitude", 0.4)
	viper.Set("encoder_debounce_ms", 3.5)

	applyFlatAliases()

	assert.Equal(t, 24, viper.GetInt("preview.fps"))
	assert.InDelta(t, 0.4, viper.GetFloat64("haptic.amplitude"), 0.001)
	assert.InDelta(t, 3.5, viper.GetFloat64("input.encoder_debounce_ms"), 0.001)
	// Untouched keys keep their defaults.
	assert.Equal(t, 3, viper.GetInt("preview.buffer_count"))
}
