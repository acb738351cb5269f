package render

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/insolesplug-ops/selimcam/internal/errors"
	"github.com/insolesplug-ops/selimcam/internal/events"
	"github.com/insolesplug-ops/selimcam/internal/framebuf"
	"github.com/insolesplug-ops/selimcam/internal/scene"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeScenes struct {
	mu sync.Mutex
	st scene.State
}

func (f *fakeScenes) Snapshot() scene.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st
}

func (f *fakeScenes) set(st scene.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.st = st
}

// slowRenderer advances the clock inside Render to simulate a cycle that
// overruns its deadline.
type slowRenderer struct {
	clock *fakeClock
	delay time.Duration
	inner Renderer
}

func (r *slowRenderer) Render(ctx RenderContext) error {
	r.clock.Advance(r.delay)
	if r.inner != nil {
		return r.inner.Render(ctx)
	}
	return nil
}

type failingRenderer struct{}

func (failingRenderer) Render(RenderContext) error {
	return errors.NewStd("display unreachable")
}

type loopHarness struct {
	pool   *framebuf.Pool
	bus    *events.Bus
	scenes *fakeScenes
	clock  *fakeClock
	sink   *StatsRenderer
	loop   *Loop
	seq    uint64
}

func newLoopHarness(t *testing.T, r Renderer) *loopHarness {
	t.Helper()

	pool, err := framebuf.NewPool(framebuf.Config{
		Slots:       3,
		Width:       8,
		Height:      8,
		PixelFormat: framebuf.FormatRGBA,
	})
	require.NoError(t, err)

	bus := events.NewBus(events.Config{QueueSize: 64})
	scenes := &fakeScenes{}
	scenes.set(scene.State{Scene: events.SceneCamera, Filter: events.FilterNone, Tier: events.TierActive, FPS: 30})
	clock := newFakeClock()

	h := &loopHarness{pool: pool, bus: bus, scenes: scenes, clock: clock}
	if r == nil {
		h.sink = &StatsRenderer{}
		r = h.sink
	}

	loop, err := NewLoop(Config{
		Pool:     pool,
		Scenes:   scenes,
		Renderer: r,
		Bus:      bus,
		FPS:      30,
		Clock:    clock.Now,
	})
	require.NoError(t, err)
	h.loop = loop

	bus.Start()
	t.Cleanup(func() { _ = bus.Close(time.Second) })
	return h
}

func (h *loopHarness) publishFrame(t *testing.T) framebuf.Frame {
	t.Helper()
	slot, err := h.pool.AcquireForWrite()
	require.NoError(t, err)
	h.seq++
	return slot.Publish(framebuf.FrameMeta{Sequence: h.seq, CapturedAt: h.clock.Now()})
}

func (h *loopHarness) cycle() {
	h.loop.cycle(h.clock.Now())
	h.clock.Advance(h.loop.interval)
}

func TestNewLoopValidation(t *testing.T) {
	t.Parallel()

	pool, err := framebuf.NewPool(framebuf.Config{Slots: 3, Width: 4, Height: 4, PixelFormat: framebuf.FormatRGBA})
	require.NoError(t, err)
	bus := events.NewBus(events.Config{})
	scenes := &fakeScenes{}

	_, err = NewLoop(Config{Scenes: scenes, Renderer: NullRenderer{}, Bus: bus})
	assert.Error(t, err)
	_, err = NewLoop(Config{Pool: pool, Renderer: NullRenderer{}, Bus: bus})
	assert.Error(t, err)
	_, err = NewLoop(Config{Pool: pool, Scenes: scenes, Bus: bus})
	assert.Error(t, err)
	_, err = NewLoop(Config{Pool: pool, Scenes: scenes, Renderer: NullRenderer{}})
	assert.Error(t, err)
}

func TestCycleWithEmptyPoolRepeats(t *testing.T) {
	t.Parallel()

	h := newLoopHarness(t, nil)
	h.cycle()

	stats := h.loop.Stats()
	assert.Equal(t, uint64(1), stats.Cycles)
	assert.Equal(t, uint64(0), stats.Rendered)
	assert.Equal(t, uint64(1), stats.Repeated)

	snap := h.sink.Snapshot()
	assert.Equal(t, uint64(1), snap.Cycles)
	assert.Equal(t, uint64(0), snap.WithFrame, "no lease without a published frame")
	assert.Equal(t, events.SceneCamera, snap.LastScene.Scene)
}

// TestCycleFreshAndRepeat renders a published frame once as fresh, then
// re-renders it, then picks up the next publish as fresh again.
func TestCycleFreshAndRepeat(t *testing.T) {
	t.Parallel()

	h := newLoopHarness(t, nil)

	h.publishFrame(t)
	h.cycle()
	h.cycle()
	h.publishFrame(t)
	h.cycle()

	stats := h.loop.Stats()
	assert.Equal(t, uint64(3), stats.Cycles)
	assert.Equal(t, uint64(2), stats.Rendered)
	assert.Equal(t, uint64(1), stats.Repeated)

	snap := h.sink.Snapshot()
	assert.Equal(t, uint64(3), snap.WithFrame, "repeat cycles still lease the newest frame")
	assert.Equal(t, uint64(2), snap.FreshFrames)
	assert.Equal(t, uint64(2), snap.LastSequence)
	assert.Equal(t, 8*8*4, snap.LastBytes)
}

func TestCycleReleasesLease(t *testing.T) {
	t.Parallel()

	h := newLoopHarness(t, nil)
	h.publishFrame(t)

	for i := 0; i < 10; i++ {
		h.cycle()
	}
	assert.Equal(t, int64(0), h.pool.Stats().ActiveLeases, "every cycle releases before it ends")
}

func TestCycleOverrunCountsMissedDeadline(t *testing.T) {
	t.Parallel()

	slow := &slowRenderer{delay: 50 * time.Millisecond}
	h := newLoopHarness(t, slow)
	slow.clock = h.clock

	h.publishFrame(t)
	h.loop.cycle(h.clock.Now())

	stats := h.loop.Stats()
	assert.Equal(t, uint64(1), stats.MissedDeadlines, "50ms render against a 33ms budget")
	assert.Equal(t, uint64(1), stats.Rendered, "the overrun cycle still rendered exactly once")
}

func TestRenderErrorIsCountedNotFatal(t *testing.T) {
	t.Parallel()

	h := newLoopHarness(t, failingRenderer{})
	h.publishFrame(t)
	h.cycle()
	h.cycle()

	stats := h.loop.Stats()
	assert.Equal(t, uint64(2), stats.Errors)
	assert.Equal(t, uint64(0), stats.Rendered)
	assert.Equal(t, int64(0), h.pool.Stats().ActiveLeases)
}

func TestRetargetChangesCadence(t *testing.T) {
	t.Parallel()

	h := newLoopHarness(t, nil)
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	h.loop.retarget(events.PowerTierChanged{Tier: events.TierIdle, FPS: 10}, ticker)
	assert.Equal(t, 10, h.loop.Stats().TargetFPS)
	assert.Equal(t, 100*time.Millisecond, h.loop.interval)

	// Unusable rates are ignored.
	h.loop.retarget(events.PowerTierChanged{Tier: events.TierSleep, FPS: 0}, ticker)
	assert.Equal(t, 10, h.loop.Stats().TargetFPS)
}

func TestLoopStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	pool, err := framebuf.NewPool(framebuf.Config{Slots: 3, Width: 4, Height: 4, PixelFormat: framebuf.FormatRGBA})
	require.NoError(t, err)
	bus := events.NewBus(events.Config{QueueSize: 64})
	scenes := &fakeScenes{}
	sink := &StatsRenderer{}

	loop, err := NewLoop(Config{
		Pool:     pool,
		Scenes:   scenes,
		Renderer: sink,
		Bus:      bus,
		FPS:      100,
	})
	require.NoError(t, err)
	bus.Start()
	defer func() { _ = bus.Close(time.Second) }()

	slot, err := pool.AcquireForWrite()
	require.NoError(t, err)
	slot.Publish(framebuf.FrameMeta{Sequence: 1, CapturedAt: time.Now()})

	var wg sync.WaitGroup
	quit := make(chan struct{})
	loop.Start(&wg, quit)

	bus.Publish(events.PowerTierChanged{Tier: events.TierIdle, FPS: 50})

	require.Eventually(t, func() bool {
		return sink.Snapshot().Cycles >= 3 && loop.Stats().TargetFPS == 50
	}, time.Second, time.Millisecond)

	close(quit)
	wg.Wait()
	assert.Equal(t, int64(0), pool.Stats().ActiveLeases)
}
