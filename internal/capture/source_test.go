package capture

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

// failingDevice opens fine and fails every read.
type failingDevice struct{ opened bool }

func (d *failingDevice) Open(framebuf.Geometry) error { d.opened = true; return nil }
func (d *failingDevice) ReadInto(*framebuf.WriteSlot) error {
	return errors.NewStd("sensor gone")
}
func (d *failingDevice) Close() error { d.opened = false; return nil }

type failingTransform struct{}

func (failingTransform) Transform(*framebuf.WriteSlot, events.FilterID, float64) error {
	return errors.NewStd("lut missing")
}

type sourceHarness struct {
	pool      *framebuf.Pool
	bus       *events.Bus
	lifecycle *events.Subscription
	scenes    *fakeScenes
	dev       Device
	src       *Source
}

func newSourceHarness(t *testing.T, dev Device, tr FrameTransform) *sourceHarness {
	t.Helper()

	pool := testPool(t)
	bus := events.NewBus(events.Config{QueueSize: 64})
	lifecycle, err := bus.Subscribe("test", 16, events.TopicLifecycle)
	require.NoError(t, err)

	scenes := &fakeScenes{}
	scenes.set(scene.State{Scene: events.SceneCamera, Filter: events.FilterNone})

	if dev == nil {
		dev = NewPatternDevice()
	}
	src, err := NewSource(SourceConfig{
		Device:    dev,
		Pool:      pool,
		Bus:       bus,
		Scenes:    scenes,
		Transform: tr,
	})
	require.NoError(t, err)

	bus.Start()
	t.Cleanup(func() { _ = bus.Close(time.Second) })
	require.NoError(t, dev.Open(pool.Geometry()))

	return &sourceHarness{pool: pool, bus: bus, lifecycle: lifecycle, scenes: scenes, dev: dev, src: src}
}

func (h *sourceHarness) degradedNotices() []events.SubsystemDegraded {
	var out []events.SubsystemDegraded
	for {
		select {
		case env := <-h.lifecycle.Events():
			if n, ok := env.Payload.(events.SubsystemDegraded); ok {
				out = append(out, n)
			}
		default:
			return out
		}
	}
}

func TestNewSourceValidation(t *testing.T) {
	t.Parallel()

	pool := testPool(t)
	bus := events.NewBus(events.Config{})
	scenes := &fakeScenes{}

	_, err := NewSource(SourceConfig{Pool: pool, Bus: bus, Scenes: scenes})
	assert.Error(t, err)
	_, err = NewSource(SourceConfig{Device: NewPatternDevice(), Bus: bus, Scenes: scenes})
	assert.Error(t, err)
	_, err = NewSource(SourceConfig{Device: NewPatternDevice(), Pool: pool, Scenes: scenes})
	assert.Error(t, err)
	_, err = NewSource(SourceConfig{Device: NewPatternDevice(), Pool: pool, Bus: bus})
	assert.Error(t, err)
}

func TestCaptureOnePublishesSequencedFrames(t *testing.T) {
	t.Parallel()

	h := newSourceHarness(t, nil, nil)

	require.True(t, h.src.captureOne())
	require.True(t, h.src.captureOne())

	frame, ok := h.pool.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(2), frame.Sequence)
	assert.Equal(t, uint64(2), h.src.Stats().Captured)
}

func TestCaptureOneDropsWhenPoolBusy(t *testing.T) {
	t.Parallel()

	h := newSourceHarness(t, nil, nil)

	// Hold every slot mid-write so no capture can start.
	var held []*framebuf.WriteSlot
	for {
		slot, err := h.pool.AcquireForWrite()
		if err != nil {
			break
		}
		held = append(held, slot)
	}
	require.NotEmpty(t, held)

	require.True(t, h.src.captureOne(), "a busy pool is a drop, not a failure")
	assert.Equal(t, uint64(1), h.src.Stats().BusyDrops)
	assert.Equal(t, uint64(0), h.src.Stats().Captured)

	for _, slot := range held {
		slot.Cancel()
	}
	require.True(t, h.src.captureOne())
	assert.Equal(t, uint64(1), h.src.Stats().Captured)
}

func TestDeviceFailureStopsProducer(t *testing.T) {
	t.Parallel()

	dev := &failingDevice{}
	h := newSourceHarness(t, dev, nil)

	assert.False(t, h.src.captureOne(), "a device read failure is fatal to the producer")

	notices := h.degradedNotices()
	require.Len(t, notices, 1)
	assert.Equal(t, events.SubsystemDegraded{Subsystem: "capture", Degraded: true}, notices[0])

	_, ok := h.pool.Latest()
	assert.False(t, ok, "the failed read must not publish")
}

func TestTransformFailurePublishesUnfiltered(t *testing.T) {
	t.Parallel()

	h := newSourceHarness(t, nil, failingTransform{})
	h.scenes.set(scene.State{Scene: events.SceneCamera, Filter: events.FilterBW})

	require.True(t, h.src.captureOne(), "a filter bug must not cost the frame")
	assert.Equal(t, uint64(1), h.src.Stats().Captured)
	assert.Equal(t, uint64(1), h.src.Stats().TransformErrors)

	_, ok := h.pool.Latest()
	assert.True(t, ok)
}

func TestCaptureAppliesActiveFilter(t *testing.T) {
	t.Parallel()

	pool := testPool(t)
	bus := events.NewBus(events.Config{QueueSize: 16})
	scenes := &fakeScenes{}
	scenes.set(scene.State{Scene: events.SceneCamera, Filter: events.FilterBW})

	dev := NewPatternDevice()
	src, err := NewSource(SourceConfig{
		Device:    dev,
		Pool:      pool,
		Bus:       bus,
		Scenes:    scenes,
		Transform: NewColorTransform(pool.Geometry()),
	})
	require.NoError(t, err)
	bus.Start()
	t.Cleanup(func() { _ = bus.Close(time.Second) })
	require.NoError(t, dev.Open(pool.Geometry()))

	require.True(t, src.captureOne())

	frame, ok := pool.Latest()
	require.True(t, ok)
	lease, err := pool.Lease(frame)
	require.NoError(t, err)
	defer lease.Release()

	// Check a pixel past the counter stamp.
	buf := lease.Bytes()
	assert.Equal(t, buf[16], buf[17], "black and white frame")
	assert.Equal(t, buf[17], buf[18])
}

func TestRetargetChangesInterval(t *testing.T) {
	t.Parallel()

	h := newSourceHarness(t, nil, nil)
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	h.src.retarget(events.PowerTierChanged{Tier: events.TierSleep, FPS: 1}, ticker)
	assert.Equal(t, time.Second, h.src.interval)

	h.src.retarget(events.PowerTierChanged{Tier: events.TierSleep, FPS: 0}, ticker)
	assert.Equal(t, time.Second, h.src.interval, "a zero rate is ignored")
}

func TestSourceStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	pool := testPool(t)
	bus := events.NewBus(events.Config{QueueSize: 64})
	scenes := &fakeScenes{}
	dev := NewPatternDevice()

	src, err := NewSource(SourceConfig{
		Device: dev,
		Pool:   pool,
		Bus:    bus,
		Scenes: scenes,
		FPS:    200,
	})
	require.NoError(t, err)
	bus.Start()
	defer func() { _ = bus.Close(time.Second) }()

	var wg sync.WaitGroup
	quit := make(chan struct{})
	src.Start(&wg, quit)

	require.Eventually(t, func() bool {
		return src.Stats().Captured >= 2
	}, time.Second, time.Millisecond)
	assert.True(t, src.Stats().Running)

	close(quit)
	wg.Wait()
	assert.False(t, src.Stats().Running)
}
