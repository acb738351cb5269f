package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/insolesplug-ops/selimcam/internal/errors"
	"github.com/insolesplug-ops/selimcam/internal/events"
	"github.com/insolesplug-ops/selimcam/internal/framebuf"
	"github.com/insolesplug-ops/selimcam/internal/observability/metrics"
)

// Pipeline defaults.
const (
	DefaultQuality = 90
	DefaultWorkers = 2

	// toastFor is how long save notices stay on screen.
	toastFor = 2 * time.Second
)

// PipelineConfig controls photo pipeline construction.
type PipelineConfig struct {
	// Pool is leased for the frame being saved. Required.
	Pool *framebuf.Pool
	// Bus delivers capture requests and receives results. Required.
	Bus *events.Bus
	// Sink persists encoded photos. Required.
	Sink Sink
	// Quality is the JPEG quality, 1..100. Defaults to DefaultQuality.
	Quality int
	// Workers bounds concurrent encodes. Defaults to DefaultWorkers.
	Workers int
	// QueueSize overrides the subscription queue depth.
	QueueSize int
	// Clock overrides the time source. Tests inject synthetic time.
	Clock func() time.Time
	// Logger receives pipeline logs. Defaults to slog.Default().
	Logger *slog.Logger
	// Metrics receives pipeline activity. Optional.
	Metrics *metrics.CaptureMetrics
}

// PipelineStats is a point-in-time snapshot of pipeline counters.
type PipelineStats struct {
	Requested uint64
	Saved     uint64
	Failed    uint64
	Dropped   uint64
	Encoding  int64
}

// Pipeline turns capture requests into saved JPEG files. The request
// handler only leases and dispatches; encoding and file writes run on a
// bounded worker pool so a burst of shutter presses never stalls input
// or capture.
type Pipeline struct {
	pool    *framebuf.Pool
	bus     *events.Bus
	sink    Sink
	sub     *events.Subscription
	quality int
	geo     framebuf.Geometry
	log     *slog.Logger
	stats   *metrics.CaptureMetrics
	now     func() time.Time

	group *errgroup.Group

	counter   atomic.Uint64
	requested atomic.Uint64
	saved     atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
	encoding  atomic.Int64
}

// NewPipeline validates the configuration and subscribes to capture
// requests. Call before Bus.Start.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
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
	if cfg.Sink == nil {
		return nil, errors.Newf("capture: photo sink is required").
			Component("capture").
			Category(errors.CategoryValidation).
			Build()
	}
	quality := cfg.Quality
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	sub, err := cfg.Bus.Subscribe("photo", cfg.QueueSize, events.TopicCapture)
	if err != nil {
		return nil, err
	}

	group := &errgroup.Group{}
	group.SetLimit(workers)

	return &Pipeline{
		pool:    cfg.Pool,
		bus:     cfg.Bus,
		sink:    cfg.Sink,
		sub:     sub,
		quality: quality,
		geo:     cfg.Pool.Geometry(),
		log:     cfg.Logger.With("service", "photo"),
		stats:   cfg.Metrics,
		now:     cfg.Clock,
		group:   group,
	}, nil
}

// Start launches the request consumer.
func (p *Pipeline) Start(wg *sync.WaitGroup, quit <-chan struct{}) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.run(quit)
	}()
}

func (p *Pipeline) run(quit <-chan struct{}) {
	p.log.Info("photo pipeline started", "quality", p.quality)

	for {
		select {
		case env, ok := <-p.sub.Events():
			if !ok {
				_ = p.group.Wait()
				return
			}
			if req, isReq := env.Payload.(events.CaptureRequest); isReq {
				p.handleRequest(req, env.At)
			}
		case <-quit:
			// In-flight encodes are short and bounded; finish them.
			_ = p.group.Wait()
			p.log.Info("photo pipeline stopped", "saved", p.saved.Load())
			return
		}
	}
}

// handleRequest leases the newest frame and dispatches the encode. It
// never blocks: saturation or lease failure fails the capture instead.
func (p *Pipeline) handleRequest(req events.CaptureRequest, requestedAt time.Time) {
	p.requested.Add(1)

	lease := p.leaseNewest()
	if lease == nil {
		if p.stats != nil {
			p.stats.RecordRequest(metrics.StatusDropped)
		}
		p.fail("no frame available")
		return
	}

	accepted := p.group.TryGo(func() error {
		defer p.trackEncode()()
		p.encodeAndSave(lease, req, requestedAt)
		return nil
	})
	if !accepted {
		lease.Release()
		p.dropped.Add(1)
		if p.stats != nil {
			p.stats.RecordRequest(metrics.StatusDropped)
		}
		p.fail("encode workers saturated")
		return
	}
	if p.stats != nil {
		p.stats.RecordRequest("accepted")
	}
}

// leaseNewest leases the most recent frame, retrying once when a publish
// races the handle.
func (p *Pipeline) leaseNewest() *framebuf.Lease {
	for i := 0; i < 2; i++ {
		frame, ok := p.pool.Latest()
		if !ok {
			return nil
		}
		lease, err := p.pool.Lease(frame)
		if err == nil {
			return lease
		}
		if !errors.Is(err, framebuf.ErrStale) {
			return nil
		}
	}
	return nil
}

// trackEncode maintains the encode depth gauge.
func (p *Pipeline) trackEncode() func() {
	depth := p.encoding.Add(1)
	if p.stats != nil {
		p.stats.SetEncodeQueueDepth(int(depth))
	}
	return func() {
		depth := p.encoding.Add(-1)
		if p.stats != nil {
			p.stats.SetEncodeQueueDepth(int(depth))
		}
	}
}

// encodeAndSave runs on the worker pool. It owns the lease.
func (p *Pipeline) encodeAndSave(lease *framebuf.Lease, req events.CaptureRequest, requestedAt time.Time) {
	defer lease.Release()

	frame := lease.Frame()
	img, err := imageOver(lease.Bytes(), p.geo)
	if err != nil {
		p.fail(err.Error())
		if p.stats != nil {
			p.stats.RecordError(metrics.OpEncode, "pixel-format")
		}
		return
	}

	encodeStart := p.now()
	var buf bytes.Buffer
	buf.Grow(p.geo.FrameBytes / 8)
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.quality}); err != nil {
		p.fail("encode failed")
		if p.stats != nil {
			p.stats.RecordError(metrics.OpEncode, "jpeg")
		}
		p.log.Error("jpeg encode failed", "sequence", frame.Sequence, "error", err)
		return
	}
	if p.stats != nil {
		p.stats.RecordDuration(metrics.OpEncode, p.now().Sub(encodeStart).Seconds())
	}

	name := p.photoName(requestedAt)
	saveStart := p.now()
	path, err := p.sink.Save(name, &buf)
	if err != nil {
		p.fail("save failed")
		if p.stats != nil {
			p.stats.RecordError(metrics.OpSave, "sink")
		}
		p.log.Error("photo save failed", "name", name, "error", err)
		return
	}

	elapsed := p.now().Sub(requestedAt)
	p.saved.Add(1)
	if p.stats != nil {
		p.stats.RecordDuration(metrics.OpSave, p.now().Sub(saveStart).Seconds())
		p.stats.RecordOperation(metrics.OpCapture, metrics.StatusSuccess)
		p.stats.RecordPhotoSaved(buf.Len())
		p.stats.ObserveShutterLatency(elapsed.Seconds())
	}

	p.bus.Publish(events.CaptureSaved{Path: path, Elapsed: elapsed})
	p.bus.Publish(events.Toast{Text: "saved " + name, For: toastFor})
	p.log.Info("photo saved",
		"path", path,
		"bytes", buf.Len(),
		"filter", req.Filter,
		"elapsed_ms", elapsed.Milliseconds())
}

// fail reports one failed capture on the bus and the toast line.
func (p *Pipeline) fail(reason string) {
	p.failed.Add(1)
	if p.stats != nil {
		p.stats.RecordOperation(metrics.OpCapture, metrics.StatusError)
	}
	p.bus.Publish(events.CaptureFailed{Reason: reason})
	p.bus.Publish(events.Toast{Text: "capture failed", For: toastFor})
}

// photoName builds a unique sortable file name.
func (p *Pipeline) photoName(at time.Time) string {
	n := p.counter.Add(1)
	return fmt.Sprintf("img_%s_%04d.jpg", at.Format("20060102_150405"), n%10000)
}

// Stats returns a snapshot of pipeline counters.
func (p *Pipeline) Stats() PipelineStats {
	return PipelineStats{
		Requested: p.requested.Load(),
		Saved:     p.saved.Load(),
		Failed:    p.failed.Load(),
		Dropped:   p.dropped.Load(),
		Encoding:  p.encoding.Load(),
	}
}

// imageOver wraps a pixel plane as an image without copying it.
func imageOver(pix []byte, geo framebuf.Geometry) (image.Image, error) {
	switch geo.PixelFormat {
	case framebuf.FormatRGBA:
		return &image.RGBA{
			Pix:    pix,
			Stride: geo.Width * 4,
			Rect:   image.Rect(0, 0, geo.Width, geo.Height),
		}, nil
	case framebuf.FormatRGB24:
		return &rgb24Image{pix: pix, w: geo.Width, h: geo.Height}, nil
	default:
		return nil, errors.Newf("capture: cannot encode pixel format %q", geo.PixelFormat).
			Component("capture").
			Category(errors.CategoryPhotoEncode).
			Build()
	}
}

// rgb24Image adapts a packed 24-bit plane to image.Image for the
// encoder's generic path.
type rgb24Image struct {
	pix []byte
	w   int
	h   int
}

func (i *rgb24Image) ColorModel() color.Model { return color.RGBAModel }

func (i *rgb24Image) Bounds() image.Rectangle { return image.Rect(0, 0, i.w, i.h) }

func (i *rgb24Image) At(x, y int) color.Color {
	o := (y*i.w + x) * 3
	return color.RGBA{R: i.pix[o], G: i.pix[o+1], B: i.pix[o+2], A: 0xFF}
}
