package haptic

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/insolesplug-ops/selimcam/internal/errors"
	"github.com/insolesplug-ops/selimcam/internal/events"
	"github.com/insolesplug-ops/selimcam/internal/observability/metrics"
)

// Player is the playback half of the driver, split out so tests can
// observe command flow without a register transport.
type Player interface {
	Play(cmd Command) error
	Degraded() bool
}

// ControllerConfig controls controller construction.
type ControllerConfig struct {
	// Bus is the event bus to subscribe on. Required.
	Bus *events.Bus
	// Player executes resolved commands. Required.
	Player Player
	// Curve shapes detent amplitude from encoder velocity. Zero value
	// uses DefaultCurve.
	Curve Curve
	// Amplitude is the master output scale in [0, 1]. Zero means full.
	Amplitude float64
	// QueueSize overrides the subscription queue depth.
	QueueSize int
	// Logger receives controller logs. Defaults to slog.Default().
	Logger *slog.Logger
	// Metrics receives controller activity. Optional.
	Metrics *metrics.HapticMetrics
}

// ControllerStats is a point-in-time snapshot of controller counters.
type ControllerStats struct {
	Played  uint64
	Dropped uint64
}

// Controller translates bus events into haptic commands. It consumes
// input, scene, and capture topics and publishes a lifecycle notice
// whenever the driver's degraded state flips.
type Controller struct {
	bus    *events.Bus
	sub    *events.Subscription
	player Player
	curve  Curve
	log    *slog.Logger
	stats  *metrics.HapticMetrics

	scale atomic.Uint64 // float64 bits

	played  atomic.Uint64
	dropped atomic.Uint64

	lastDegraded bool // touched only by the run goroutine
}

// NewController subscribes to the feedback-relevant topics and wires the
// event-to-pattern mapping. Call before Bus.Start.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Bus == nil {
		return nil, errors.Newf("haptic: event bus is required").
			Component("haptic").
			Category(errors.CategoryValidation).
			Build()
	}
	if cfg.Player == nil {
		return nil, errors.Newf("haptic: player is required").
			Component("haptic").
			Category(errors.CategoryValidation).
			Build()
	}
	curve := cfg.Curve
	if curve == (Curve{}) {
		curve = DefaultCurve
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sub, err := cfg.Bus.Subscribe("haptic", cfg.QueueSize,
		events.TopicInput, events.TopicScene, events.TopicCapture)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		bus:    cfg.Bus,
		sub:    sub,
		player: cfg.Player,
		curve:  curve,
		log:    logger.With("service", "haptic"),
		stats:  cfg.Metrics,
	}
	c.SetAmplitudeScale(cfg.Amplitude)
	return c, nil
}

// SetAmplitudeScale updates the master output scale. Values above 1 are
// clamped; zero and below fall back to full output, so an unset config
// does not silence feedback.
func (c *Controller) SetAmplitudeScale(scale float64) {
	if scale <= 0 {
		scale = 1.0
	}
	if scale > 1.0 {
		scale = 1.0
	}
	c.scale.Store(math.Float64bits(scale))
	if c.stats != nil {
		c.stats.SetAmplitudeScale(scale)
	}
}

func (c *Controller) amplitudeScale() float64 {
	return math.Float64frombits(c.scale.Load())
}

// Start launches the event consumer.
func (c *Controller) Start(wg *sync.WaitGroup, quit <-chan struct{}) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.run(quit)
	}()
}

func (c *Controller) run(quit <-chan struct{}) {
	c.log.Info("haptic controller started",
		"full_speed", c.curve.FullSpeed,
		"falloff", c.curve.Falloff,
		"floor", c.curve.Floor)

	for {
		select {
		case env, ok := <-c.sub.Events():
			if !ok {
				return
			}
			c.handle(env.Payload)
		case <-quit:
			c.log.Info("haptic controller stopping")
			return
		}
	}
}

// handle maps one event to at most one command. Events with no tactile
// meaning fall through silently.
func (c *Controller) handle(p events.Payload) {
	scale := c.amplitudeScale()

	var cmd Command
	switch ev := p.(type) {
	case events.EncoderTick:
		cmd = NewCommand(PatternDetent, c.curve.Amplitude(ev.Velocity)*scale)
	case events.ButtonDown:
		cmd = NewCommand(PatternClickDown, scale)
	case events.ButtonUp:
		cmd = NewCommand(PatternClickUp, scale)
	case events.ButtonLongPress:
		cmd = NewCommand(PatternLongPress, scale)
	case events.SceneChanged:
		cmd = NewCommand(PatternSceneChange, scale)
	case events.CaptureRequest:
		cmd = NewCommand(PatternShutter, scale)
	case events.CaptureSaved:
		cmd = NewCommand(PatternSuccess, scale)
	case events.CaptureFailed:
		cmd = NewCommand(PatternError, scale)
	default:
		return
	}

	err := c.player.Play(cmd)
	switch {
	case err == nil:
		c.played.Add(1)
	case errors.Is(err, ErrDegraded):
		c.dropped.Add(1)
	default:
		c.dropped.Add(1)
		c.log.Debug("haptic command failed", "pattern", cmd.Pattern, "error", err)
	}
	c.noteDegraded()
}

// noteDegraded publishes a lifecycle notice when the driver's degraded
// state flips. Only the run goroutine calls this.
func (c *Controller) noteDegraded() {
	degraded := c.player.Degraded()
	if degraded == c.lastDegraded {
		return
	}
	c.lastDegraded = degraded
	c.bus.Publish(events.SubsystemDegraded{Subsystem: "haptic", Degraded: degraded})
	if degraded {
		c.log.Warn("haptic feedback degraded")
	} else {
		c.log.Info("haptic feedback restored")
	}
}

// Stats returns a snapshot of controller counters.
func (c *Controller) Stats() ControllerStats {
	return ControllerStats{
		Played:  c.played.Load(),
		Dropped: c.dropped.Load(),
	}
}
