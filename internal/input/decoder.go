package input

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/insolesplug-ops/selimcam/internal/errors"
	"github.com/insolesplug-ops/selimcam/internal/events"
	"github.com/insolesplug-ops/selimcam/internal/observability/metrics"
)

// DefaultEncoderDebounce is the hard floor between accepted edges on one
// encoder phase.
const DefaultEncoderDebounce = 2 * time.Millisecond

// DefaultPollInterval paces the decode task. One millisecond keeps worst
// case edge-to-event delay far inside the feedback budget while staying
// cheap enough for the target board.
const DefaultPollInterval = time.Millisecond

var monoStart = time.Now()

// MonoNanos returns nanoseconds on the process monotonic clock. Edge
// producers and the decode task must stamp time from the same source or
// debounce windows are meaningless.
func MonoNanos() int64 {
	return int64(time.Since(monoStart))
}

// Config controls decoder construction.
type Config struct {
	// Ring is the edge handoff the hardware layer pushes into. Required.
	Ring *EdgeRing
	// Bus receives decoded events. Required.
	Bus *events.Bus

	// EncoderDebounce is the per-phase accepted-edge floor.
	EncoderDebounce time.Duration
	// ButtonDebounce is the stable-hold window for button levels.
	ButtonDebounce time.Duration
	// LongPress is the hold threshold for a long press.
	LongPress time.Duration
	// VelocityWeight is the EWMA new-sample weight.
	VelocityWeight float64
	// VelocityDecay is the quiet period after which velocity decays.
	VelocityDecay time.Duration
	// PollInterval paces the decode task.
	PollInterval time.Duration

	// Clock overrides the monotonic time source. Tests inject synthetic
	// time here; production uses MonoNanos.
	Clock func() int64
	// Logger receives lifecycle logs. Defaults to slog.Default().
	Logger *slog.Logger
	// Metrics receives decode activity. Optional.
	Metrics *metrics.InputMetrics
}

// Stats is a point-in-time snapshot of decoder state and counters.
type Stats struct {
	Position           int64
	Velocity           float64
	Edges              uint64
	Debounced          uint64
	InvalidTransitions uint64
	Detents            uint64
	ButtonPresses      uint64
	RingDropped        uint64
	RingUtilization    float64
}

type buttonBinding struct {
	line      Line
	id        events.Button
	tracker   *ButtonTracker
	longFired bool
}

// Decoder drains the edge ring, applies debounce and quadrature rules,
// and publishes encoder ticks and button events. All decode state is
// confined to the decode goroutine; Stats reads cross over via atomics.
type Decoder struct {
	ring  *EdgeRing
	bus   *events.Bus
	log   *slog.Logger
	stats *metrics.InputMetrics

	encoderDebounce int64
	pollInterval    time.Duration
	clock           func() int64

	quad         Quadrature
	velocity     *VelocityTracker
	buttons      []*buttonBinding
	lastAccepted [2]int64
	lastDetent   int64

	position     atomic.Int64
	velocityBits atomic.Uint64
	edges        atomic.Uint64
	debounced    atomic.Uint64
	invalid      atomic.Uint64
	detents      atomic.Uint64
	presses      atomic.Uint64

	ringDropSeen uint64
}

// New validates the configuration and builds a decoder.
func New(cfg Config) (*Decoder, error) {
	if cfg.Ring == nil {
		return nil, errors.Newf("input: edge ring is required").
			Component("input").
			Category(errors.CategoryValidation).
			Build()
	}
	if cfg.Bus == nil {
		return nil, errors.Newf("input: event bus is required").
			Component("input").
			Category(errors.CategoryValidation).
			Build()
	}

	encoderDebounce := cfg.EncoderDebounce
	if encoderDebounce <= 0 {
		encoderDebounce = DefaultEncoderDebounce
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	clock := cfg.Clock
	if clock == nil {
		clock = MonoNanos
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	d := &Decoder{
		ring:            cfg.Ring,
		bus:             cfg.Bus,
		log:             logger.With("service", "input"),
		stats:           cfg.Metrics,
		encoderDebounce: encoderDebounce.Nanoseconds(),
		pollInterval:    pollInterval,
		clock:           clock,
		velocity:        NewVelocityTracker(cfg.VelocityWeight, cfg.VelocityDecay),
		buttons: []*buttonBinding{
			{line: LineEncoderSW, id: events.ButtonEncoder, tracker: NewButtonTracker(cfg.ButtonDebounce, cfg.LongPress)},
			{line: LineShutter, id: events.ButtonShutter, tracker: NewButtonTracker(cfg.ButtonDebounce, cfg.LongPress)},
		},
	}
	// First edge on a phase must always clear the floor.
	d.lastAccepted[0] = math.MinInt64 / 2
	d.lastAccepted[1] = math.MinInt64 / 2
	return d, nil
}

// Start launches the decode task. It exits when quit closes.
func (d *Decoder) Start(wg *sync.WaitGroup, quit <-chan struct{}) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.run(quit)
	}()
}

func (d *Decoder) run(quit <-chan struct{}) {
	d.log.Info("input decoder started",
		"poll_interval", d.pollInterval,
		"encoder_debounce_ms", float64(d.encoderDebounce)/1e6,
		"ring_capacity", d.ring.Capacity())

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			d.log.Info("input decoder stopping",
				"position", d.position.Load(),
				"detents", d.detents.Load(),
				"ring_dropped", d.ring.Dropped())
			return
		case <-ticker.C:
			d.cycle(d.clock())
		}
	}
}

// cycle drains every buffered edge, then advances the button trackers and
// gauges to now.
func (d *Decoder) cycle(now int64) {
	for {
		e, ok := d.ring.Pop()
		if !ok {
			break
		}
		d.processEdge(e)
	}

	for _, b := range d.buttons {
		for _, ch := range b.tracker.Poll(now) {
			d.emitButton(b, ch)
		}
	}

	v := d.velocity.At(now)
	d.velocityBits.Store(math.Float64bits(v))
	if d.stats != nil {
		d.stats.SetVelocity(v)
		d.stats.SetRingUtilization(d.ring.Utilization())
		if dropped := d.ring.Dropped(); dropped > d.ringDropSeen {
			d.stats.RecordRingDrop(int(dropped - d.ringDropSeen))
			d.ringDropSeen = dropped
		}
	}
}

func (d *Decoder) processEdge(e Edge) {
	d.edges.Add(1)
	if d.stats != nil {
		d.stats.RecordEdge(e.Line.String())
	}

	switch e.Line {
	case LineA, LineB:
		d.processEncoderEdge(e)
	case LineEncoderSW, LineShutter:
		for _, b := range d.buttons {
			if b.line == e.Line {
				b.tracker.Edge(e.High, e.Nanos)
				return
			}
		}
	default:
		d.log.Warn("edge on unknown line", "line", uint8(e.Line))
	}
}

func (d *Decoder) processEncoderEdge(e Edge) {
	phase := 0
	if e.Line == LineB {
		phase = 1
	}
	if e.Nanos-d.lastAccepted[phase] < d.encoderDebounce {
		d.debounced.Add(1)
		if d.stats != nil {
			d.stats.RecordDebouncedEdge(e.Line.String())
		}
		return
	}
	d.lastAccepted[phase] = e.Nanos

	delta, valid := d.quad.Apply(e.LevelA, e.LevelB)
	if !valid {
		d.invalid.Add(1)
		if d.stats != nil {
			d.stats.RecordDecodeError("invalid_transition")
		}
		return
	}
	if delta == 0 {
		return
	}

	d.position.Store(d.quad.Position())
	rate := d.velocity.Tick(e.Nanos)
	if d.lastDetent != 0 && d.stats != nil {
		d.stats.ObserveDetentInterval(float64(e.Nanos-d.lastDetent) / 1e9)
	}
	d.lastDetent = e.Nanos
	d.detents.Add(1)

	dir := events.Clockwise
	if delta < 0 {
		dir = events.CounterClockwise
	}
	if d.stats != nil {
		d.stats.RecordDetent(dir.String())
	}
	d.bus.Publish(events.EncoderTick{
		Direction: dir,
		Position:  d.quad.Position(),
		Velocity:  rate,
	})
}

func (d *Decoder) emitButton(b *buttonBinding, ch ButtonChange) {
	switch ch.Action {
	case ButtonActionDown:
		b.longFired = false
		d.bus.Publish(events.ButtonDown{Button: b.id})
	case ButtonActionUp:
		d.bus.Publish(events.ButtonUp{Button: b.id, Held: ch.Held})
		if !b.longFired {
			d.presses.Add(1)
			if d.stats != nil {
				d.stats.RecordButtonPress("short")
			}
		}
	case ButtonActionLongPress:
		b.longFired = true
		d.presses.Add(1)
		if d.stats != nil {
			d.stats.RecordButtonPress("long")
		}
		d.bus.Publish(events.ButtonLongPress{Button: b.id})
	}
}

// Stats returns a snapshot of decoder counters. Safe to call from any
// goroutine.
func (d *Decoder) Stats() Stats {
	return Stats{
		Position:           d.position.Load(),
		Velocity:           math.Float64frombits(d.velocityBits.Load()),
		Edges:              d.edges.Load(),
		Debounced:          d.debounced.Load(),
		InvalidTransitions: d.invalid.Load(),
		Detents:            d.detents.Load(),
		ButtonPresses:      d.presses.Load(),
		RingDropped:        d.ring.Dropped(),
		RingUtilization:    d.ring.Utilization(),
	}
}
