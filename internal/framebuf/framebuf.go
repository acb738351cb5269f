// Package framebuf implements the shared frame pool between the capture
// producer and its consumers. Slots are allocated once at construction and
// recycled through a generation and lease protocol; no operation copies
// pixel data and no operation blocks.
package framebuf

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/insolesplug-ops/selimcam/internal/errors"
	"github.com/insolesplug-ops/selimcam/internal/observability/metrics"
)

// Pixel formats the pool can carry.
const (
	FormatRGBA  = "rgba"
	FormatRGB24 = "rgb24"
)

// Pool sizing bounds. The pool is deliberately tiny: one slot being
// written, one published, and one or two held by readers.
const (
	MinSlots = 3
	MaxSlots = 4
)

// Expected-status sentinels. Busy and Stale are flow control, not faults:
// producers drop the capture on Busy, consumers refresh their handle on
// Stale.
var (
	ErrBusy  = errors.NewStd("framebuf: no free slot")
	ErrStale = errors.NewStd("framebuf: frame superseded")
)

// BytesPerPixel returns the per-pixel byte width of a supported format.
func BytesPerPixel(format string) (int, error) {
	switch format {
	case FormatRGBA:
		return 4, nil
	case FormatRGB24:
		return 3, nil
	default:
		return 0, errors.Newf("framebuf: unsupported pixel format %q", format).
			Component("framebuf").
			Category(errors.CategoryValidation).
			Build()
	}
}

// FrameMeta is the producer-supplied metadata stored with a published frame.
type FrameMeta struct {
	// Sequence is the producer's capture counter. Distinct from the pool
	// generation: sequences may skip when captures are dropped.
	Sequence uint64
	// CapturedAt is when the sensor delivered the frame.
	CapturedAt time.Time
}

// Frame is a value handle naming one published frame. It is valid only
// while its generation matches the slot's current generation; a stale
// handle is rejected at lease time, never dereferenced.
type Frame struct {
	Slot        int
	Generation  uint64
	Width       int
	Height      int
	PixelFormat string
	Sequence    uint64
	CapturedAt  time.Time
}

// Geometry describes the fixed shape of every slot in a pool.
type Geometry struct {
	Width         int
	Height        int
	PixelFormat   string
	BytesPerPixel int
	FrameBytes    int
}

// Stats is a point-in-time snapshot of pool counters.
type Stats struct {
	Slots        int
	FrameBytes   int
	Acquires     uint64
	Busy         uint64
	Publishes    uint64
	Leases       uint64
	Stale        uint64
	Releases     uint64
	ActiveLeases int64
}

type slotState uint8

const (
	slotFree slotState = iota
	slotWriting
	slotFilled
)

type slot struct {
	buf        []byte
	state      slotState
	generation uint64
	leases     int
	meta       FrameMeta
}

// Config controls pool construction.
type Config struct {
	// Slots is the fixed slot count, MinSlots..MaxSlots.
	Slots int
	// Width and Height are the frame dimensions in pixels.
	Width  int
	Height int
	// PixelFormat is one of the Format constants.
	PixelFormat string
	// Logger receives misuse reports. Defaults to slog.Default().
	Logger *slog.Logger
	// Metrics receives pool activity. Optional.
	Metrics *metrics.FramePoolMetrics
}

// Pool owns all frame slots. One goroutine writes at a time per slot;
// any number of goroutines may hold read leases on published slots.
// State transitions are serialized by a mutex; pixel buffers are touched
// outside it under the protocol's single-writer guarantee.
type Pool struct {
	mu      sync.Mutex
	slots   []slot
	latest  int // slot index of the newest published frame, -1 if none
	nextGen uint64

	geo     Geometry
	log     *slog.Logger
	metrics *metrics.FramePoolMetrics

	acquires     atomic.Uint64
	busy         atomic.Uint64
	publishes    atomic.Uint64
	leaseCount   atomic.Uint64
	staleCount   atomic.Uint64
	releases     atomic.Uint64
	activeLeases atomic.Int64
}

// NewPool allocates every slot buffer up front and returns the pool.
func NewPool(cfg Config) (*Pool, error) {
	if cfg.Slots < MinSlots || cfg.Slots > MaxSlots {
		return nil, errors.Newf("framebuf: slot count %d outside %d..%d", cfg.Slots, MinSlots, MaxSlots).
			Component("framebuf").
			Category(errors.CategoryValidation).
			Context("slots", cfg.Slots).
			Build()
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.Newf("framebuf: invalid frame dimensions %dx%d", cfg.Width, cfg.Height).
			Component("framebuf").
			Category(errors.CategoryValidation).
			Build()
	}
	bpp, err := BytesPerPixel(cfg.PixelFormat)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	frameBytes := cfg.Width * cfg.Height * bpp
	p := &Pool{
		slots:  make([]slot, cfg.Slots),
		latest: -1,
		geo: Geometry{
			Width:         cfg.Width,
			Height:        cfg.Height,
			PixelFormat:   cfg.PixelFormat,
			BytesPerPixel: bpp,
			FrameBytes:    frameBytes,
		},
		log:     logger.With("service", "framebuf"),
		metrics: cfg.Metrics,
	}
	for i := range p.slots {
		p.slots[i].buf = make([]byte, frameBytes)
	}
	if p.metrics != nil {
		p.metrics.SetPoolShape(cfg.Slots, frameBytes)
	}
	return p, nil
}

// Geometry returns the fixed frame shape shared by every slot.
func (p *Pool) Geometry() Geometry {
	return p.geo
}

// AcquireForWrite claims a Free slot for the producer. It returns ErrBusy
// when every slot is leased or filled awaiting consumption; the caller
// must drop the capture rather than wait.
func (p *Pool) AcquireForWrite() (*WriteSlot, error) {
	p.mu.Lock()
	idx := -1
	for i := range p.slots {
		if p.slots[i].state == slotFree {
			idx = i
			break
		}
	}
	if idx < 0 {
		p.mu.Unlock()
		p.busy.Add(1)
		if p.metrics != nil {
			p.metrics.RecordAcquire(metrics.StatusBusy)
		}
		return nil, ErrBusy
	}
	p.slots[idx].state = slotWriting
	p.mu.Unlock()

	p.acquires.Add(1)
	if p.metrics != nil {
		p.metrics.RecordAcquire(metrics.StatusSuccess)
	}
	return &WriteSlot{pool: p, idx: idx, acquiredAt: time.Now()}, nil
}

// Lease pins the frame named by the handle for reading. It returns
// ErrStale when the slot has moved past the handle's generation; the
// caller should refresh via Latest and retry or skip.
func (p *Pool) Lease(frame Frame) (*Lease, error) {
	p.mu.Lock()
	if frame.Slot < 0 || frame.Slot >= len(p.slots) {
		p.mu.Unlock()
		p.staleCount.Add(1)
		if p.metrics != nil {
			p.metrics.RecordLease(metrics.StatusStale)
		}
		return nil, ErrStale
	}
	s := &p.slots[frame.Slot]
	if s.state != slotFilled || s.generation != frame.Generation {
		p.mu.Unlock()
		p.staleCount.Add(1)
		if p.metrics != nil {
			p.metrics.RecordLease(metrics.StatusStale)
		}
		return nil, ErrStale
	}
	s.leases++
	p.activeLeases.Add(1)
	p.mu.Unlock()

	p.leaseCount.Add(1)
	if p.metrics != nil {
		p.metrics.RecordLease(metrics.StatusSuccess)
		p.metrics.SetActiveLeases(int(p.activeLeases.Load()))
	}
	return &Lease{pool: p, frame: frame, leasedAt: time.Now()}, nil
}

// Latest returns a handle for the most recently published frame. The
// second return is false before the first publish.
func (p *Pool) Latest() (Frame, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latest < 0 {
		return Frame{}, false
	}
	return p.frameHandleLocked(p.latest), true
}

// Stats returns a snapshot of the pool counters. Reads are lock-free so
// the diagnostics surface never contends with the producer.
func (p *Pool) Stats() Stats {
	return Stats{
		Slots:        len(p.slots),
		FrameBytes:   p.geo.FrameBytes,
		Acquires:     p.acquires.Load(),
		Busy:         p.busy.Load(),
		Publishes:    p.publishes.Load(),
		Leases:       p.leaseCount.Load(),
		Stale:        p.staleCount.Load(),
		Releases:     p.releases.Load(),
		ActiveLeases: p.activeLeases.Load(),
	}
}

// frameHandleLocked builds a Frame for the given filled slot. Caller holds mu.
func (p *Pool) frameHandleLocked(idx int) Frame {
	s := &p.slots[idx]
	return Frame{
		Slot:        idx,
		Generation:  s.generation,
		Width:       p.geo.Width,
		Height:      p.geo.Height,
		PixelFormat: p.geo.PixelFormat,
		Sequence:    s.meta.Sequence,
		CapturedAt:  s.meta.CapturedAt,
	}
}

// WriteSlot is the producer's exclusive claim on one slot. Exactly one of
// Publish or Cancel must be called; both are single-shot.
type WriteSlot struct {
	pool       *Pool
	idx        int
	acquiredAt time.Time
	done       bool
}

// Bytes returns the slot's pixel buffer for writing. The buffer is only
// the producer's between acquire and publish.
func (w *WriteSlot) Bytes() []byte {
	return w.pool.slots[w.idx].buf
}

// Publish transitions the slot to Filled, bumps the pool generation, and
// stores the metadata. It is the only operation that invalidates prior
// Frame handles for this slot index. The returned handle names the new
// frame.
func (w *WriteSlot) Publish(meta FrameMeta) Frame {
	p := w.pool
	p.mu.Lock()
	if w.done {
		p.mu.Unlock()
		p.log.Error("publish on completed write slot", "slot", w.idx)
		return Frame{}
	}
	w.done = true

	s := &p.slots[w.idx]
	p.nextGen++
	s.generation = p.nextGen
	s.state = slotFilled
	s.meta = meta

	prev := p.latest
	p.latest = w.idx
	if prev >= 0 && prev != w.idx {
		ps := &p.slots[prev]
		// The superseded frame recycles as soon as nobody is reading it.
		if ps.state == slotFilled && ps.leases == 0 {
			ps.state = slotFree
		}
	}
	frame := p.frameHandleLocked(w.idx)
	p.mu.Unlock()

	p.publishes.Add(1)
	if p.metrics != nil {
		p.metrics.RecordPublish()
		p.metrics.ObserveWriteDuration(time.Since(w.acquiredAt).Seconds())
	}
	return frame
}

// Cancel returns the slot to Free without publishing. Used when the
// producer fails mid-frame.
func (w *WriteSlot) Cancel() {
	p := w.pool
	p.mu.Lock()
	if w.done {
		p.mu.Unlock()
		return
	}
	w.done = true
	p.slots[w.idx].state = slotFree
	p.mu.Unlock()
}

// Lease is a pinned read claim on one published frame. The slot cannot be
// recycled while the lease is outstanding.
type Lease struct {
	pool     *Pool
	frame    Frame
	leasedAt time.Time
	released atomic.Bool
}

// Frame returns the handle this lease pins.
func (l *Lease) Frame() Frame {
	return l.frame
}

// Bytes returns the pinned frame's pixel buffer. Valid until Release.
func (l *Lease) Bytes() []byte {
	return l.pool.slots[l.frame.Slot].buf
}

// Release drops the lease. A slot becomes acquirable again only when its
// lease count reaches zero. Release is idempotent per lease.
func (l *Lease) Release() {
	if !l.released.CompareAndSwap(false, true) {
		return
	}
	p := l.pool
	p.mu.Lock()
	s := &p.slots[l.frame.Slot]
	s.leases--
	p.activeLeases.Add(-1)
	if s.leases == 0 && s.state == slotFilled && p.latest != l.frame.Slot {
		s.state = slotFree
	}
	p.mu.Unlock()

	p.releases.Add(1)
	if p.metrics != nil {
		p.metrics.RecordRelease()
		p.metrics.ObserveLeaseDuration(time.Since(l.leasedAt).Seconds())
		p.metrics.SetActiveLeases(int(p.activeLeases.Load()))
	}
}
