package conf

import (
	"github.com/spf13/viper"
)

// setDefaultConfig sets the default values for all configuration parameters
// on the shared viper instance.
func setDefaultConfig() {
	setDefaultsOn(viper.GetViper())
}

// setDefaultsOn sets the documented defaults on the given viper instance.
func setDefaultsOn(v *viper.Viper) {
	// Main configuration
	v.SetDefault("debug", false)
	v.SetDefault("main.name", "SelimCam")
	v.SetDefault("main.log.enabled", true)
	v.SetDefault("main.log.path", "logs/selimcam.log")
	v.SetDefault("main.log.maxsize_mb", 10)
	v.SetDefault("main.log.maxage_days", 14)
	v.SetDefault("main.log.maxbackups", 3)

	// Preview pipeline
	v.SetDefault("preview.fps", 30)
	v.SetDefault("preview.buffer_count", 3)
	v.SetDefault("preview.width", 480)
	v.SetDefault("preview.height", 800)
	v.SetDefault("preview.pixel_format", "rgba")

	// Capture and photo pipeline
	v.SetDefault("capture.quality", 90)
	v.SetDefault("capture.worker_threads", 2)
	v.SetDefault("capture.device", "pattern")
	v.SetDefault("capture.replay_dir", "")
	v.SetDefault("capture.output_dir", "photos")

	// Input decoding
	v.SetDefault("input.encoder_debounce_ms", 2.0)
	v.SetDefault("input.button_debounce_ms", 15.0)
	v.SetDefault("input.long_press_ms", 500)
	v.SetDefault("input.velocity_decay_ms", 200)
	v.SetDefault("input.edge_ring", 256)
	v.SetDefault("input.pins.encoder_a", 17)
	v.SetDefault("input.pins.encoder_b", 27)
	v.SetDefault("input.pins.encoder_sw", 22)
	v.SetDefault("input.pins.shutter", 23)

	// Haptic feedback
	v.SetDefault("haptic.enabled", true)
	v.SetDefault("haptic.amplitude", 0.6)
	v.SetDefault("haptic.bus", "")
	v.SetDefault("haptic.address", 0x5A)
	v.SetDefault("haptic.library", 6)
	v.SetDefault("haptic.registers.mode", 0x01)
	v.SetDefault("haptic.registers.library", 0x03)
	v.SetDefault("haptic.registers.waveform", 0x04)
	v.SetDefault("haptic.registers.go", 0x0C)
	v.SetDefault("haptic.curve.full_speed", 2.0)
	v.SetDefault("haptic.curve.falloff", 8.0)
	v.SetDefault("haptic.curve.floor", 0.3)
	v.SetDefault("haptic.retry.attempts", 3)
	v.SetDefault("haptic.retry.backoff_ms", 2)
	v.SetDefault("haptic.retry.probe_interval_sec", 30)

	// Scene machine and power tiering
	v.SetDefault("scene.transition_ms", 250)
	v.SetDefault("scene.idle_after_sec", 10)
	v.SetDefault("scene.sleep_after_sec", 30)
	v.SetDefault("scene.idle_fps", 10)
	v.SetDefault("scene.sleep_fps", 1)

	// Event bus
	v.SetDefault("events.queue_size", 64)

	// Runtime
	v.SetDefault("realtime.metrics.enabled", false)
	v.SetDefault("realtime.metrics.listen", "127.0.0.1:9090")
}

// GetTestSettings returns a Settings populated with the documented defaults
// without touching the filesystem. Intended for tests.
func GetTestSettings() *Settings {
	v := viper.New()
	setDefaultsOn(v)
	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		panic("default settings failed to unmarshal: " + err.Error())
	}
	return s
}
