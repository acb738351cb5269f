package framebuf

import (
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insolesplug-ops/selimcam/internal/errors"
)

func newTestPool(t *testing.T, slots int) *Pool {
	t.Helper()
	p, err := NewPool(Config{
		Slots:       slots,
		Width:       8,
		Height:      4,
		PixelFormat: FormatRGBA,
	})
	require.NoError(t, err)
	return p
}

func TestNewPoolValidation(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		cfg  Config
	}{
		{"too few slots", Config{Slots: 2, Width: 8, Height: 4, PixelFormat: FormatRGBA}},
		{"too many slots", Config{Slots: 5, Width: 8, Height: 4, PixelFormat: FormatRGBA}},
		{"zero width", Config{Slots: 3, Width: 0, Height: 4, PixelFormat: FormatRGBA}},
		{"negative height", Config{Slots: 3, Width: 8, Height: -1, PixelFormat: FormatRGBA}},
		{"unknown format", Config{Slots: 3, Width: 8, Height: 4, PixelFormat: "yuv422"}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewPool(tc.cfg)
			assert.Error(t, err)
		})
	}
}

func TestGeometry(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, 3)
	geo := p.Geometry()
	assert.Equal(t, 8, geo.Width)
	assert.Equal(t, 4, geo.Height)
	assert.Equal(t, 4, geo.BytesPerPixel)
	assert.Equal(t, 8*4*4, geo.FrameBytes)
	assert.Equal(t, geo.FrameBytes, len(mustAcquire(t, p).Bytes()))
}

func mustAcquire(t *testing.T, p *Pool) *WriteSlot {
	t.Helper()
	w, err := p.AcquireForWrite()
	require.NoError(t, err)
	return w
}

func TestAcquireBusyWhenExhausted(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, 3)

	w1 := mustAcquire(t, p)
	w2 := mustAcquire(t, p)
	w3 := mustAcquire(t, p)

	_, err := p.AcquireForWrite()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBusy))
	assert.Equal(t, uint64(1), p.Stats().Busy)

	// Publishing does not free the slot: the newest frame awaits a consumer.
	w1.Publish(FrameMeta{Sequence: 1, CapturedAt: time.Now()})
	_, err = p.AcquireForWrite()
	assert.True(t, errors.Is(err, ErrBusy))

	// Cancel returns a slot to the free list.
	w2.Cancel()
	w4, err := p.AcquireForWrite()
	require.NoError(t, err)

	w3.Cancel()
	w4.Cancel()
}

func TestPublishGenerationsStrictlyIncrease(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, 3)

	var last uint64
	for i := 0; i < 10; i++ {
		w := mustAcquire(t, p)
		f := w.Publish(FrameMeta{Sequence: uint64(i)})
		assert.Greater(t, f.Generation, last, "generation must strictly increase")
		last = f.Generation

		latest, ok := p.Latest()
		require.True(t, ok)
		assert.Equal(t, f, latest)
	}
	assert.Equal(t, uint64(10), p.Stats().Publishes)
}

func TestLatestBeforeFirstPublish(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, 3)
	_, ok := p.Latest()
	assert.False(t, ok)
}

func TestLeaseStaleAfterRecycle(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, 3)

	w := mustAcquire(t, p)
	f1 := w.Publish(FrameMeta{Sequence: 1})

	// Drive enough publishes through the pool that f1's slot is recycled.
	for i := 2; i <= 4; i++ {
		w := mustAcquire(t, p)
		w.Publish(FrameMeta{Sequence: uint64(i)})
	}

	_, err := p.Lease(f1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStale))
	assert.Equal(t, uint64(1), p.Stats().Stale)
}

func TestLeaseOutOfRangeHandleIsStale(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, 3)
	_, err := p.Lease(Frame{Slot: 99, Generation: 1})
	assert.True(t, errors.Is(err, ErrStale))
}

// TestLeaseBlocksRecycling drives continuous publishes through a pool of 3
// while one frame is held under lease, and verifies the leased pixels are
// never overwritten until release.
func TestLeaseBlocksRecycling(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, 3)

	w := mustAcquire(t, p)
	for i := range w.Bytes() {
		w.Bytes()[i] = 0xAA
	}
	f1 := w.Publish(FrameMeta{Sequence: 1})

	lease, err := p.Lease(f1)
	require.NoError(t, err)

	// Two slots keep rotating; the leased slot must sit out every cycle.
	for i := 2; i <= 12; i++ {
		w, err := p.AcquireForWrite()
		require.NoError(t, err, "two unleased slots must keep the producer running")
		for j := range w.Bytes() {
			w.Bytes()[j] = 0xBB
		}
		w.Publish(FrameMeta{Sequence: uint64(i)})
	}

	for _, b := range lease.Bytes() {
		require.Equal(t, byte(0xAA), b, "leased frame mutated while held")
	}
	lease.Release()

	// After release the slot rejoins the rotation.
	seen := make(map[int]bool)
	for i := 13; i <= 18; i++ {
		w := mustAcquire(t, p)
		seen[w.idx] = true
		w.Publish(FrameMeta{Sequence: uint64(i)})
	}
	assert.True(t, seen[f1.Slot], "released slot should be recycled")
}

func TestReleaseIsIdempotent(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, 3)
	w := mustAcquire(t, p)
	f := w.Publish(FrameMeta{Sequence: 1})

	lease, err := p.Lease(f)
	require.NoError(t, err)
	lease.Release()
	lease.Release()

	stats := p.Stats()
	assert.Equal(t, uint64(1), stats.Releases)
	assert.Equal(t, int64(0), stats.ActiveLeases)
}

func TestLeaseCountsInStats(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, 3)
	w := mustAcquire(t, p)
	f := w.Publish(FrameMeta{Sequence: 1})

	l1, err := p.Lease(f)
	require.NoError(t, err)
	l2, err := p.Lease(f)
	require.NoError(t, err)

	assert.Equal(t, int64(2), p.Stats().ActiveLeases)
	l1.Release()
	l2.Release()
	assert.Equal(t, int64(0), p.Stats().ActiveLeases)
	assert.Equal(t, uint64(2), p.Stats().Leases)
}

// TestConcurrentProduceConsume runs a producer and a consumer flat out and
// checks that every leased frame's pixels match its sequence stamp. Torn
// reads or premature recycling would break the stamp.
func TestConcurrentProduceConsume(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, 3)
	const frames = 2000

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		seq := uint64(0)
		for seq < frames {
			w, err := p.AcquireForWrite()
			if err != nil {
				continue // pool busy, drop this capture
			}
			seq++
			binary.LittleEndian.PutUint64(w.Bytes()[:8], seq)
			w.Publish(FrameMeta{Sequence: seq, CapturedAt: time.Now()})
		}
	}()

	var mismatches int
	go func() {
		defer wg.Done()
		for {
			f, ok := p.Latest()
			if !ok {
				continue
			}
			lease, err := p.Lease(f)
			if err != nil {
				continue // superseded between Latest and Lease
			}
			got := binary.LittleEndian.Uint64(lease.Bytes()[:8])
			if got != f.Sequence {
				mismatches++
			}
			done := f.Sequence >= frames
			lease.Release()
			if done {
				return
			}
		}
	}()

	wg.Wait()
	assert.Zero(t, mismatches, "leased frames must never change under the reader")
	assert.Equal(t, int64(0), p.Stats().ActiveLeases)
}
