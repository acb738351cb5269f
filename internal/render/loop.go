package render

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

// DefaultFPS is the render cadence when Config.FPS is unset.
const DefaultFPS = 30

// errorLogInterval throttles render-failure logging so a broken display
// does not flood the journal at frame rate.
const errorLogInterval = 5 * time.Second

// SceneSource provides the scene snapshot each cycle reads. The scene
// machine satisfies it.
type SceneSource interface {
	Snapshot() scene.State
}

// Config controls loop construction.
type Config struct {
	// Pool is the frame pool to lease from. Required.
	Pool *framebuf.Pool
	// Scenes provides scene snapshots. Required.
	Scenes SceneSource
	// Renderer draws each cycle. Required.
	Renderer Renderer
	// Bus carries power tier changes that retarget the cadence. Required.
	Bus *events.Bus
	// FPS is the initial cadence. Defaults to DefaultFPS.
	FPS int
	// QueueSize overrides the subscription queue depth.
	QueueSize int
	// Clock overrides the time source. Tests inject synthetic time.
	Clock func() time.Time
	// Logger receives loop logs. Defaults to slog.Default().
	Logger *slog.Logger
	// Metrics receives loop activity. Optional.
	Metrics *metrics.RenderMetrics
}

// LoopStats is a point-in-time snapshot of loop counters.
type LoopStats struct {
	Cycles          uint64
	Rendered        uint64
	Repeated        uint64
	Errors          uint64
	StaleLeases     uint64
	MissedDeadlines uint64
	CoalescedTicks  uint64
	TargetFPS       int
}

// Loop runs the render cadence. One goroutine owns the ticker, the
// subscription, and every per-cycle field; Stats reads atomics only.
type Loop struct {
	pool     *framebuf.Pool
	scenes   SceneSource
	renderer Renderer
	sub      *events.Subscription
	log      *slog.Logger
	stats    *metrics.RenderMetrics
	now      func() time.Time
	errLog   rate.Sometimes

	// interval and the last* fields belong to the run goroutine.
	interval     time.Duration
	lastCycle    time.Time
	lastSequence uint64
	hasRendered  bool

	fps             atomic.Int64
	cycles          atomic.Uint64
	rendered        atomic.Uint64
	repeated        atomic.Uint64
	renderErrors    atomic.Uint64
	staleLeases     atomic.Uint64
	missedDeadlines atomic.Uint64
	coalescedTicks  atomic.Uint64
}

// NewLoop validates the configuration and subscribes for cadence
// retargeting. Call before Bus.Start.
func NewLoop(cfg Config) (*Loop, error) {
	if cfg.Pool == nil {
		return nil, errors.Newf("render: frame pool is required").
			Component("render").
			Category(errors.CategoryValidation).
			Build()
	}
	if cfg.Scenes == nil {
		return nil, errors.Newf("render: scene source is required").
			Component("render").
			Category(errors.CategoryValidation).
			Build()
	}
	if cfg.Renderer == nil {
		return nil, errors.Newf("render: renderer is required").
			Component("render").
			Category(errors.CategoryValidation).
			Build()
	}
	if cfg.Bus == nil {
		return nil, errors.Newf("render: event bus is required").
			Component("render").
			Category(errors.CategoryValidation).
			Build()
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

	sub, err := cfg.Bus.Subscribe("render", cfg.QueueSize, events.TopicScene)
	if err != nil {
		return nil, err
	}

	l := &Loop{
		pool:     cfg.Pool,
		scenes:   cfg.Scenes,
		renderer: cfg.Renderer,
		sub:      sub,
		log:      cfg.Logger.With("service", "render"),
		stats:    cfg.Metrics,
		now:      cfg.Clock,
		errLog:   rate.Sometimes{Interval: errorLogInterval},
		interval: time.Second / time.Duration(fps),
	}
	l.fps.Store(int64(fps))
	if l.stats != nil {
		l.stats.SetTargetFPS(float64(fps))
	}
	return l, nil
}

// Start launches the render goroutine.
func (l *Loop) Start(wg *sync.WaitGroup, quit <-chan struct{}) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.run(quit)
	}()
}

func (l *Loop) run(quit <-chan struct{}) {
	l.log.Info("render loop started",
		"fps", l.fps.Load(),
		"interval", l.interval)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case env, ok := <-l.sub.Events():
			if !ok {
				return
			}
			if tc, isTier := env.Payload.(events.PowerTierChanged); isTier {
				l.retarget(tc, ticker)
			}
		case <-ticker.C:
			l.cycle(l.now())
			l.drainTicks(ticker)
		case <-quit:
			l.log.Info("render loop stopping", "cycles", l.cycles.Load())
			return
		}
	}
}

// retarget moves the cadence to the tier's rate. Called from the run
// goroutine only.
func (l *Loop) retarget(tc events.PowerTierChanged, ticker *time.Ticker) {
	if tc.FPS <= 0 || int64(tc.FPS) == l.fps.Load() {
		return
	}
	l.interval = time.Second / time.Duration(tc.FPS)
	ticker.Reset(l.interval)
	l.fps.Store(int64(tc.FPS))
	if l.stats != nil {
		l.stats.SetTargetFPS(float64(tc.FPS))
	}
	l.log.Debug("render cadence retargeted", "tier", tc.Tier, "fps", tc.FPS)
}

// drainTicks discards ticks that queued while a cycle ran so a slow
// cycle is never followed by a burst of catch-up cycles.
func (l *Loop) drainTicks(ticker *time.Ticker) {
	drained := 0
	for {
		select {
		case <-ticker.C:
			drained++
		default:
			if drained > 0 {
				l.coalescedTicks.Add(uint64(drained))
				if l.stats != nil {
					l.stats.RecordCoalescedTicks(drained)
				}
			}
			return
		}
	}
}

// cycle executes one render pass. Called from the run goroutine; tests
// call it directly with synthetic time.
func (l *Loop) cycle(start time.Time) {
	l.cycles.Add(1)
	if !l.lastCycle.IsZero() && l.stats != nil {
		l.stats.ObserveFrameInterval(start.Sub(l.lastCycle).Seconds())
	}
	l.lastCycle = start

	st := l.scenes.Snapshot()

	var lease *framebuf.Lease
	fresh := false
	if frame, ok := l.pool.Latest(); ok {
		ls, err := l.pool.Lease(frame)
		switch {
		case err == nil:
			lease = ls
			fresh = !l.hasRendered || frame.Sequence != l.lastSequence
		case errors.Is(err, framebuf.ErrStale):
			// A publish superseded the handle between Latest and Lease.
			// Keep the previous imagery for this cycle.
			l.staleLeases.Add(1)
			if l.stats != nil {
				l.stats.RecordStaleLease()
			}
		default:
			l.errLog.Do(func() {
				l.log.Warn("frame lease failed", "error", err)
			})
		}
	}

	err := l.renderer.Render(RenderContext{At: start, Scene: st, Lease: lease, Fresh: fresh})

	if lease != nil {
		if fresh {
			l.lastSequence = lease.Frame().Sequence
			l.hasRendered = true
		}
		lease.Release()
	}

	switch {
	case err != nil:
		l.renderErrors.Add(1)
		if l.stats != nil {
			l.stats.RecordFrame("error")
		}
		l.errLog.Do(func() {
			l.log.Warn("render failed", "scene", st.Scene, "error", err)
		})
	case fresh:
		l.rendered.Add(1)
		if l.stats != nil {
			l.stats.RecordFrame("rendered")
		}
	default:
		l.repeated.Add(1)
		if l.stats != nil {
			l.stats.RecordFrame("repeated")
		}
	}

	elapsed := l.now().Sub(start)
	if l.stats != nil {
		l.stats.ObserveRenderDuration(elapsed.Seconds())
	}
	if elapsed > l.interval {
		l.missedDeadlines.Add(1)
		if l.stats != nil {
			l.stats.RecordMissedDeadline()
		}
	}
}

// Stats returns a snapshot of loop counters.
func (l *Loop) Stats() LoopStats {
	return LoopStats{
		Cycles:          l.cycles.Load(),
		Rendered:        l.rendered.Load(),
		Repeated:        l.repeated.Load(),
		Errors:          l.renderErrors.Load(),
		StaleLeases:     l.staleLeases.Load(),
		MissedDeadlines: l.missedDeadlines.Load(),
		CoalescedTicks:  l.coalescedTicks.Load(),
		TargetFPS:       int(l.fps.Load()),
	}
}
