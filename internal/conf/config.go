// config.go: settings structs and functions to load and save the
// appliance configuration.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yaml
var configFiles embed.FS

// LogConfig contains settings for the rotating service log file.
type LogConfig struct {
	Enabled    bool   // true to write service logs to a file
	Path       string // log file path
	MaxSizeMB  int    `mapstructure:"maxsize_mb"`  // rotate after this size
	MaxAgeDays int    `mapstructure:"maxage_days"` // days to keep rotated files
	MaxBackups int    // rotated files to keep
}

// PreviewSettings sizes the shared frame pool and the preview cadence.
type PreviewSettings struct {
	FPS         int    `mapstructure:"fps"`          // target preview frame rate
	BufferCount int    `mapstructure:"buffer_count"` // frame slots in the shared pool
	Width       int    // frame width in pixels
	Height      int    // frame height in pixels
	PixelFormat string `mapstructure:"pixel_format"` // rgba or rgb24
}

// CaptureSettings controls the capture device and the still photo pipeline.
type CaptureSettings struct {
	Quality       int    // JPEG quality for saved photos, 1-100
	WorkerThreads int    `mapstructure:"worker_threads"` // encode worker pool size
	Device        string // capture device: pattern or replay
	ReplayDir     string `mapstructure:"replay_dir"` // raw frame directory for the replay device
	OutputDir     string `mapstructure:"output_dir"` // directory photos are saved to
}

// PinConfig names the GPIO lines the appliance uses.
type PinConfig struct {
	EncoderA  int `mapstructure:"encoder_a"`  // encoder phase A
	EncoderB  int `mapstructure:"encoder_b"`  // encoder phase B
	EncoderSW int `mapstructure:"encoder_sw"` // encoder push switch
	Shutter   int // shutter button
}

// InputSettings controls edge debouncing and the decode task.
type InputSettings struct {
	EncoderDebounceMs float64 `mapstructure:"encoder_debounce_ms"` // minimum interval between accepted encoder edges
	ButtonDebounceMs  float64 `mapstructure:"button_debounce_ms"`  // stable-hold window for button levels
	LongPressMs       int     `mapstructure:"long_press_ms"`       // hold threshold for long press
	VelocityDecayMs   int     `mapstructure:"velocity_decay_ms"`   // decay velocity toward zero after this quiet period
	EdgeRing          int     `mapstructure:"edge_ring"`           // edge ring capacity in records
	Pins              PinConfig
}

// HapticRegisters maps the actuator driver registers. Values follow the
// DRV2605 register layout but remain configurable for other drivers.
type HapticRegisters struct {
	Mode     byte // operating mode register
	Library  byte // waveform library select register
	Waveform byte // first waveform sequencer slot
	Go       byte // go bit register
}

// HapticCurve parameterizes the velocity to amplitude mapping for detents.
type HapticCurve struct {
	FullSpeed float64 `mapstructure:"full_speed"` // ticks/sec below which detents play at full amplitude
	Falloff   float64 // ticks/sec span over which amplitude falls to the floor
	Floor     float64 // minimum detent amplitude
}

// HapticRetry bounds actuator bus write retries.
type HapticRetry struct {
	Attempts         int `mapstructure:"attempts"`           // write attempts before degrading
	BackoffMs        int `mapstructure:"backoff_ms"`         // base backoff, doubled per attempt
	ProbeIntervalSec int `mapstructure:"probe_interval_sec"` // degraded-state reprobe interval, 0 disables
}

// HapticSettings controls the tactile feedback subsystem.
type HapticSettings struct {
	Enabled   bool
	Amplitude float64 // global amplitude scale 0.0-1.0
	Bus       string  // I2C bus name, empty for the platform default
	Address   uint16  // actuator driver I2C address
	Library   byte    // waveform library to select at init
	Registers HapticRegisters
	Curve     HapticCurve
	Retry     HapticRetry
}

// SceneSettings controls transitions and power tiering.
type SceneSettings struct {
	TransitionMs  int `mapstructure:"transition_ms"`   // scene transition duration
	IdleAfterSec  int `mapstructure:"idle_after_sec"`  // drop to idle tier after this quiet period
	SleepAfterSec int `mapstructure:"sleep_after_sec"` // drop to sleep tier after this quiet period
	IdleFPS       int `mapstructure:"idle_fps"`        // preview rate in the idle tier
	SleepFPS      int `mapstructure:"sleep_fps"`       // preview rate in the sleep tier
}

// EventsSettings sizes the event bus subscriber queues.
type EventsSettings struct {
	QueueSize int `mapstructure:"queue_size"` // per-subscriber queue depth
}

// MetricsSettings controls the optional local metrics endpoint.
type MetricsSettings struct {
	Enabled bool
	Listen  string // host:port, loopback strongly recommended
}

// RealtimeSettings groups runtime-only concerns.
type RealtimeSettings struct {
	Metrics MetricsSettings
}

// Settings contains all runtime configuration for the appliance.
type Settings struct {
	Debug bool // true to enable debug level logging

	Main struct {
		Name string // instance name used in logs and support bundles
		Log  LogConfig
	}

	Preview  PreviewSettings
	Capture  CaptureSettings
	Input    InputSettings
	Haptic   HapticSettings
	Scene    SceneSettings
	Events   EventsSettings
	Realtime RealtimeSettings
}

// EncoderDebounce returns the encoder debounce floor as a duration.
func (s *Settings) EncoderDebounce() time.Duration {
	return time.Duration(s.Input.EncoderDebounceMs * float64(time.Millisecond))
}

// ButtonDebounce returns the button stable-hold window as a duration.
func (s *Settings) ButtonDebounce() time.Duration {
	return time.Duration(s.Input.ButtonDebounceMs * float64(time.Millisecond))
}

// LongPress returns the long press threshold as a duration.
func (s *Settings) LongPress() time.Duration {
	return time.Duration(s.Input.LongPressMs) * time.Millisecond
}

// TransitionDuration returns the scene transition duration.
func (s *Settings) TransitionDuration() time.Duration {
	return time.Duration(s.Scene.TransitionMs) * time.Millisecond
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a new
// Settings instance and stores it as the package singleton.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	// Initialize viper and read config
	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	// Unmarshal the config into settings
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	// Validate settings
	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	viper.SetEnvPrefix("selimcam")
	viper.AutomaticEnv()

	// Set default values for each configuration parameter
	// function defined in defaults.go
	setDefaultConfig()

	// Read configuration file
	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			if err := createDefaultConfig(); err != nil {
				return err
			}
		} else {
			return fmt.Errorf("fatal error reading config file: %w", err)
		}
	}

	applyFlatAliases()

	return nil
}

// flatKeyAliases keeps the appliance's original flat option names working
// alongside the sectioned layout.
var flatKeyAliases = map[string]string{
	"preview_fps":          "preview.fps",
	"preview_buffer_count": "preview.buffer_count",
	"capture_quality":      "capture.quality",
	"worker_threads":       "capture.worker_threads",
	"haptic_amplitude":     "haptic.amplitude",
	"encoder_debounce_ms":  "input.encoder_debounce_ms",
}

// applyFlatAliases copies any flat-form keys found in the loaded config onto
// their sectioned equivalents before unmarshaling.
func applyFlatAliases() {
	for flat, nested := range flatKeyAliases {
		if viper.IsSet(flat) {
			viper.Set(nested, viper.Get(flat))
		}
	}
}

// createDefaultConfig creates a default config file and writes it to the default config path
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")
	defaultConfig := getDefaultConfig()

	// Create directories for config file
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	// Write default config file
	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}
	return string(data)
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			_, err := Load()
			if err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}
