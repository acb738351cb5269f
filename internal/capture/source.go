package capture

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/insolesplug-ops/selimcam/internal/errors"
	"github.com/insolesplug-ops/selimcam/internal/events"
	"github.com/insolesplug-ops/selimcam/internal/framebuf"
	"github.com/insolesplug-ops/selimcam/internal/observability/metrics"
	"github.com/insolesplug-ops/selimcam/internal/scene"
)

// DefaultFPS is the capture cadence when Config.FPS is unset.
const DefaultFPS = 30

// dropLogInterval throttles busy-drop logging. Drops are normal under a
// slow consumer; the counters carry the signal.
const dropLogInterval = 10 * time.Second

// SceneSource provides the scene snapshot whose filter the capture cycle
// applies. The scene machine satisfies it.
type SceneSource interface {
	Snapshot() scene.State
}

// SourceConfig controls frame source construction.
type SourceConfig struct {
	// Device delivers raw frames. Required.
	Device Device
	// Pool receives published frames. Required.
	Pool *framebuf.Pool
	// Bus carries power tier changes and degradation notices. Required.
	Bus *events.Bus
	// Scenes provides the active filter. Required.
	Scenes SceneSource
	// Transform is applied in place before publish. Defaults to identity.
	Transform FrameTransform
	// Strength is the filter blend passed to the transform. Defaults to 1.
	Strength float64
	// FPS is the initial cadence. Defaults to DefaultFPS.
	FPS int
	// QueueSize overrides the subscription queue depth.
	QueueSize int
	// Clock overrides the time source. Tests inject synthetic time.
	Clock func() time.Time
	// Logger receives source logs. Defaults to slog.Default().
	Logger *slog.Logger
	// Metrics receives source activity. Optional.
	Metrics *metrics.CaptureMetrics
}

// SourceStats is a point-in-time snapshot of source counters.
type SourceStats struct {
	Captured        uint64
	BusyDrops       uint64
	TransformErrors uint64
	Running         bool
}

// Source paces the capture device against the frame pool. A device
// failure stops the producer; the pool keeps serving the last published
// frames and the rest of the runtime carries on degraded.
type Source struct {
	device    Device
	pool      *framebuf.Pool
	bus       *events.Bus
	scenes    SceneSource
	transform FrameTransform
	strength  float64
	sub       *events.Subscription
	log       *slog.Logger
	stats     *metrics.CaptureMetrics
	now       func() time.Time
	dropLog   rate.Sometimes

	interval time.Duration // run goroutine only
	sequence uint64        // run goroutine only

	captured        atomic.Uint64
	busyDrops       atomic.Uint64
	transformErrors atomic.Uint64
	running         atomic.Bool
}

// NewSource validates the configuration and subscribes for cadence
// retargeting. The device is not opened until Start.
func NewSource(cfg SourceConfig) (*Source, error) {
	if cfg.Device == nil {
		return nil, errors.Newf("capture: device is required").
			Component("capture").
			Category(errors.CategoryValidation).
			Build()
	}
	if cfg.Pool == nil {
		return nil, errors.Newf("capture: frame pool is required").
			Component("capture").
			Category(errors.CategoryValidation).
			Build()
	}
	if cfg.Bus == nil {
		return nil, errors.Newf("capture: event bus is required").
			Component("capture").
			Category(errors.CategoryValidation).
			Build()
	}
	if cfg.Scenes == nil {
		return nil, errors.Newf("capture: scene source is required").
			Component("capture").
			Category(errors.CategoryValidation).
			Build()
	}
	if cfg.Transform == nil {
		cfg.Transform = IdentityTransform{}
	}
	if cfg.Strength <= 0 || cfg.Strength > 1 {
		cfg.Strength = 1
	}
	fps := cfg.FPS
	if fps <= 0 {
		fps = DefaultFPS
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	sub, err := cfg.Bus.Subscribe("capture", cfg.QueueSize, events.TopicScene)
	if err != nil {
		return nil, err
	}

	return &Source{
		device:    cfg.Device,
		pool:      cfg.Pool,
		bus:       cfg.Bus,
		scenes:    cfg.Scenes,
		transform: cfg.Transform,
		strength:  cfg.Strength,
		sub:       sub,
		log:       cfg.Logger.With("service", "capture"),
		stats:     cfg.Metrics,
		now:       cfg.Clock,
		dropLog:   rate.Sometimes{Interval: dropLogInterval},
		interval:  time.Second / time.Duration(fps),
	}, nil
}

// Start launches the capture goroutine.
func (s *Source) Start(wg *sync.WaitGroup, quit <-chan struct{}) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.run(quit)
	}()
}

func (s *Source) run(quit <-chan struct{}) {
	geo := s.pool.Geometry()
	if err := s.device.Open(geo); err != nil {
		s.fail(errors.New(err).
			Component("capture").
			Category(errors.CategoryCapture).
			Context("op", "open").
			Context("width", geo.Width).
			Context("height", geo.Height).
			Build())
		return
	}
	defer func() {
		if err := s.device.Close(); err != nil {
			s.log.Warn("capture device close failed", "error", err)
		}
	}()

	s.running.Store(true)
	defer s.running.Store(false)
	s.log.Info("frame source started",
		"interval", s.interval,
		"frame_bytes", geo.FrameBytes)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case env, ok := <-s.sub.Events():
			if !ok {
				return
			}
			if tc, isTier := env.Payload.(events.PowerTierChanged); isTier {
				s.retarget(tc, ticker)
			}
		case <-ticker.C:
			if !s.captureOne() {
				return
			}
		case <-quit:
			s.log.Info("frame source stopping", "captured", s.captured.Load())
			return
		}
	}
}

// retarget moves the capture cadence to the tier's rate.
func (s *Source) retarget(tc events.PowerTierChanged, ticker *time.Ticker) {
	if tc.FPS <= 0 {
		return
	}
	next := time.Second / time.Duration(tc.FPS)
	if next == s.interval {
		return
	}
	s.interval = next
	ticker.Reset(next)
	s.log.Debug("capture cadence retargeted", "tier", tc.Tier, "fps", tc.FPS)
}

// captureOne runs one capture cycle. The false return means the device
// failed and the producer must exit.
func (s *Source) captureOne() bool {
	slot, err := s.pool.AcquireForWrite()
	if errors.Is(err, framebuf.ErrBusy) {
		// Every slot is leased or awaiting consumption. Drop this cycle;
		// the consumer will catch up.
		s.busyDrops.Add(1)
		if s.stats != nil {
			s.stats.RecordDeviceFrame(metrics.StatusBusy)
		}
		s.dropLog.Do(func() {
			s.log.Debug("capture cycle dropped, pool busy", "drops", s.busyDrops.Load())
		})
		return true
	}
	if err != nil {
		s.fail(errors.New(err).
			Component("capture").
			Category(errors.CategoryFramePool).
			Context("op", "acquire").
			Build())
		return false
	}

	if err := s.device.ReadInto(slot); err != nil {
		slot.Cancel()
		if s.stats != nil {
			s.stats.RecordDeviceFrame(metrics.StatusError)
		}
		s.fail(errors.New(err).
			Component("capture").
			Category(errors.CategoryCapture).
			Context("op", "read").
			Context("sequence", s.sequence).
			Build())
		return false
	}

	st := s.scenes.Snapshot()
	if err := s.transform.Transform(slot, st.Filter, s.strength); err != nil {
		// A filter bug must not cost the frame; publish it unfiltered.
		s.transformErrors.Add(1)
		s.dropLog.Do(func() {
			s.log.Warn("frame transform failed", "filter", st.Filter, "error", err)
		})
	}

	s.sequence++
	slot.Publish(framebuf.FrameMeta{Sequence: s.sequence, CapturedAt: s.now()})
	s.captured.Add(1)
	if s.stats != nil {
		s.stats.RecordDeviceFrame(metrics.StatusSuccess)
	}
	return true
}

// fail reports a fatal producer error and announces the degradation on
// the lifecycle topic.
func (s *Source) fail(err error) {
	s.log.Error("frame source failed, preview is frozen", "error", err)
	if s.stats != nil {
		s.stats.RecordError(metrics.OpCapture, "device")
	}
	s.bus.Publish(events.SubsystemDegraded{Subsystem: "capture", Degraded: true})
}

// Stats returns a snapshot of source counters.
func (s *Source) Stats() SourceStats {
	return SourceStats{
		Captured:        s.captured.Load(),
		BusyDrops:       s.busyDrops.Load(),
		TransformErrors: s.transformErrors.Load(),
		Running:         s.running.Load(),
	}
}
