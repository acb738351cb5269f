package haptic

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/insolesplug-ops/selimcam/internal/errors"
	"github.com/insolesplug-ops/selimcam/internal/observability/metrics"
)

// Registers maps the actuator driver's command registers. The defaults
// follow the DRV2605 layout; other drivers remap through configuration.
type Registers struct {
	Mode     byte // operating mode
	Library  byte // waveform library select
	Waveform byte // first waveform sequencer slot
	Go       byte // playback trigger
}

// DefaultRegisters is the DRV2605 register layout.
var DefaultRegisters = Registers{Mode: 0x01, Library: 0x03, Waveform: 0x04, Go: 0x0C}

// Driver defaults.
const (
	DefaultLibrary       = 6 // generic LRA library
	DefaultAttempts      = 3
	DefaultBackoff       = 2 * time.Millisecond
	DefaultProbeInterval = 30 * time.Second

	// modeStandby is written on Close to park the actuator.
	modeStandby = 0x40
	// modeInternalTrigger selects register-triggered playback.
	modeInternalTrigger = 0x00
)

// ErrDegraded reports that the driver has given up on the actuator bus
// and is dropping commands. Feedback is best effort; callers must treat
// this as flow control, not a fault.
var ErrDegraded = errors.NewStd("haptic: actuator degraded, command dropped")

// DriverConfig controls driver construction.
type DriverConfig struct {
	// Bus is the register transport. Required.
	Bus RegisterBus
	// Registers is the device register map. Zero value uses DefaultRegisters.
	Registers Registers
	// Library is the waveform library selected at Init.
	Library byte
	// Attempts bounds write retries before degrading.
	Attempts int
	// Backoff is the base retry delay, doubled per attempt.
	Backoff time.Duration
	// ProbeInterval spaces degraded-state reprobe attempts. Zero disables
	// reprobing; the driver then stays degraded until restart.
	ProbeInterval time.Duration
	// Clock overrides the time source for probe spacing. Tests inject
	// synthetic time here.
	Clock func() time.Time
	// Logger receives driver lifecycle logs. Defaults to slog.Default().
	Logger *slog.Logger
	// Metrics receives driver activity. Optional.
	Metrics *metrics.HapticMetrics
}

// DriverStats is a point-in-time snapshot of driver counters.
type DriverStats struct {
	Pulses    uint64
	Dropped   uint64
	BusErrors uint64
	Retries   uint64
	Reprobes  uint64
	Degraded  bool
}

// Driver owns the actuator register protocol: effect selection, playback
// trigger, bounded retry, and the degraded latch. All register sequences
// are serialized; a Play in flight is never interleaved with another.
type Driver struct {
	bus   RegisterBus
	regs  Registers
	lib   byte
	log   *slog.Logger
	stats *metrics.HapticMetrics

	attempts int
	backoff  time.Duration
	probe    time.Duration
	now      func() time.Time

	mu        sync.Mutex
	lastProbe time.Time

	degraded  atomic.Bool
	pulses    atomic.Uint64
	dropped   atomic.Uint64
	busErrors atomic.Uint64
	retries   atomic.Uint64
	reprobes  atomic.Uint64
}

// NewDriver validates the configuration and builds a driver. The device
// is not touched until Init.
func NewDriver(cfg DriverConfig) (*Driver, error) {
	if cfg.Bus == nil {
		return nil, errors.Newf("haptic: register bus is required").
			Component("haptic").
			Category(errors.CategoryValidation).
			Build()
	}
	regs := cfg.Registers
	if regs == (Registers{}) {
		regs = DefaultRegisters
	}
	lib := cfg.Library
	if lib == 0 {
		lib = DefaultLibrary
	}
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Driver{
		bus:      cfg.Bus,
		regs:     regs,
		lib:      lib,
		log:      logger.With("service", "haptic"),
		stats:    cfg.Metrics,
		attempts: attempts,
		backoff:  backoff,
		probe:    cfg.ProbeInterval,
		now:      now,
	}, nil
}

// Init wakes the device and selects the waveform library. Failure here
// degrades the driver immediately; the appliance keeps running without
// tactile feedback.
func (d *Driver) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.writeRetry(d.regs.Mode, modeInternalTrigger, "init"); err != nil {
		d.setDegraded(true)
		return errors.New(err).
			Component("haptic").
			Category(errors.CategoryActuatorBus).
			Context("op", "init").
			Build()
	}
	if err := d.writeRetry(d.regs.Library, d.lib, "init"); err != nil {
		d.setDegraded(true)
		return errors.New(err).
			Component("haptic").
			Category(errors.CategoryActuatorBus).
			Context("op", "init").
			Context("library", d.lib).
			Build()
	}
	d.log.Info("actuator initialized", "library", d.lib)
	return nil
}

// Play transmits one command: effect into the first sequencer slot, a
// terminator, then the go bit. While degraded it drops the command
// immediately and, at most once per probe interval, attempts to revive
// the device instead.
func (d *Driver) Play(cmd Command) error {
	effect := resolveEffect(cmd)

	if d.degraded.Load() {
		if !d.tryReprobe() {
			d.dropped.Add(1)
			if d.stats != nil {
				d.stats.RecordPulse(effect.String(), metrics.StatusDegraded)
			}
			return ErrDegraded
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	start := d.now()

	if err := d.playLocked(effect); err != nil {
		d.setDegraded(true)
		d.dropped.Add(1)
		if d.stats != nil {
			d.stats.RecordPulse(effect.String(), metrics.StatusError)
		}
		return errors.New(err).
			Component("haptic").
			Category(errors.CategoryActuatorBus).
			Context("pattern", string(cmd.Pattern)).
			Context("effect", effect.String()).
			Build()
	}

	d.pulses.Add(1)
	if d.stats != nil {
		d.stats.RecordPulse(effect.String(), metrics.StatusSuccess)
		d.stats.ObservePulseLatency(d.now().Sub(start).Seconds())
	}
	return nil
}

// playLocked writes the three-register playback sequence. Caller holds mu.
func (d *Driver) playLocked(effect Effect) error {
	if err := d.writeRetry(d.regs.Waveform, byte(effect), "waveform"); err != nil {
		return err
	}
	if err := d.writeRetry(d.regs.Waveform+1, byte(EffectNone), "waveform"); err != nil {
		return err
	}
	return d.writeRetry(d.regs.Go, 1, "go")
}

// writeRetry attempts one register write with bounded doubling backoff.
// Caller holds mu.
func (d *Driver) writeRetry(reg, value byte, op string) error {
	backoff := d.backoff
	var err error
	for attempt := 1; attempt <= d.attempts; attempt++ {
		err = d.bus.WriteRegister(reg, value)
		if err == nil {
			return nil
		}
		d.busErrors.Add(1)
		if d.stats != nil {
			d.stats.RecordBusError(op)
		}
		if attempt == d.attempts {
			break
		}
		d.retries.Add(1)
		if d.stats != nil {
			d.stats.RecordRetry()
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	return err
}

// tryReprobe attempts to revive a degraded device, at most once per
// probe interval. Returns true when the device answered and the driver
// is healthy again.
func (d *Driver) tryReprobe() bool {
	if d.probe <= 0 {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if now.Sub(d.lastProbe) < d.probe {
		return false
	}
	d.lastProbe = now
	d.reprobes.Add(1)

	// A single untried write: reprobing must not inherit the retry storm
	// that degraded the driver in the first place.
	if err := d.bus.WriteRegister(d.regs.Mode, modeInternalTrigger); err != nil {
		d.busErrors.Add(1)
		if d.stats != nil {
			d.stats.RecordReprobe(metrics.StatusError)
		}
		return false
	}
	if err := d.bus.WriteRegister(d.regs.Library, d.lib); err != nil {
		d.busErrors.Add(1)
		if d.stats != nil {
			d.stats.RecordReprobe(metrics.StatusError)
		}
		return false
	}
	if d.stats != nil {
		d.stats.RecordReprobe(metrics.StatusSuccess)
	}
	d.setDegraded(false)
	d.log.Info("actuator revived after reprobe")
	return true
}

// setDegraded latches the degraded state. Callers hold mu or run before
// concurrent use.
func (d *Driver) setDegraded(degraded bool) {
	if d.degraded.Swap(degraded) != degraded {
		if d.stats != nil {
			d.stats.SetDegraded(degraded)
		}
		if degraded {
			d.lastProbe = d.now()
			d.log.Warn("actuator degraded, dropping haptic commands",
				"bus_errors", d.busErrors.Load())
		}
	}
}

// Degraded reports whether the driver is currently dropping commands.
func (d *Driver) Degraded() bool {
	return d.degraded.Load()
}

// Stats returns a snapshot of driver counters.
func (d *Driver) Stats() DriverStats {
	return DriverStats{
		Pulses:    d.pulses.Load(),
		Dropped:   d.dropped.Load(),
		BusErrors: d.busErrors.Load(),
		Retries:   d.retries.Load(),
		Reprobes:  d.reprobes.Load(),
		Degraded:  d.degraded.Load(),
	}
}

// Close parks the actuator in standby and releases the bus. Standby
// failure is ignored: the bus may be the reason we are shutting down.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.degraded.Load() {
		_ = d.bus.WriteRegister(d.regs.Mode, modeStandby)
	}
	return d.bus.Close()
}
