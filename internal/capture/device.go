// Package capture produces preview frames and saves still photos. The
// frame source paces a capture device against the frame pool at the
// active power tier's rate; the photo pipeline turns shutter requests
// into JPEG files through a bounded encode worker pool.
package capture

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/insolesplug-ops/selimcam/internal/errors"
	"github.com/insolesplug-ops/selimcam/internal/framebuf"
)

// Device delivers raw frames into pool slots. Open is called once with
// the pool geometry before the first read; ReadInto must fill the slot's
// entire pixel plane. Implementations need not be safe for concurrent
// reads; the source serializes them.
type Device interface {
	Open(geo framebuf.Geometry) error
	ReadInto(slot *framebuf.WriteSlot) error
	Close() error
}

// PatternDevice synthesizes a moving diagonal gradient with the frame
// counter stamped into the first pixels. It backs simulation mode and
// tests; no camera hardware is touched.
type PatternDevice struct {
	mu     sync.Mutex
	geo    framebuf.Geometry
	frames uint64
	opened bool
}

// NewPatternDevice returns an unopened pattern device.
func NewPatternDevice() *PatternDevice {
	return &PatternDevice{}
}

// Open implements Device.
func (d *PatternDevice) Open(geo framebuf.Geometry) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if geo.FrameBytes <= 0 {
		return errors.Newf("capture: pattern device needs a sized geometry").
			Component("capture").
			Category(errors.CategoryValidation).
			Build()
	}
	d.geo = geo
	d.opened = true
	return nil
}

// ReadInto implements Device. The gradient phase advances one step per
// read so consecutive frames differ visibly.
func (d *PatternDevice) ReadInto(slot *framebuf.WriteSlot) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.opened {
		return errors.Newf("capture: pattern device read before open").
			Component("capture").
			Category(errors.CategoryState).
			Build()
	}

	buf := slot.Bytes()
	bpp := d.geo.BytesPerPixel
	phase := byte(d.frames)
	for y := 0; y < d.geo.Height; y++ {
		row := y * d.geo.Width * bpp
		for x := 0; x < d.geo.Width; x++ {
			px := row + x*bpp
			v := byte(x+y) + phase
			buf[px] = v
			buf[px+1] = v / 2
			buf[px+2] = 255 - v
			if bpp == 4 {
				buf[px+3] = 0xFF
			}
		}
	}
	binary.LittleEndian.PutUint64(buf[:8], d.frames)
	d.frames++
	return nil
}

// Frames returns how many frames the device has produced.
func (d *PatternDevice) Frames() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames
}

// Close implements Device.
func (d *PatternDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opened = false
	return nil
}

// ReplayDevice loops raw frame dumps from a directory, sorted by file
// name. Every file must be exactly one frame. It serves development on
// machines without a sensor.
type ReplayDevice struct {
	mu    sync.Mutex
	dir   string
	geo   framebuf.Geometry
	files []string
	next  int
}

// NewReplayDevice returns an unopened replay device for the directory.
func NewReplayDevice(dir string) *ReplayDevice {
	return &ReplayDevice{dir: dir}
}

// Open implements Device. It scans the directory once; frames recorded
// after Open are not picked up.
func (d *ReplayDevice) Open(geo framebuf.Geometry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return errors.New(err).
			Component("capture").
			Category(errors.CategoryFileIO).
			Context("dir", d.dir).
			Build()
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		files = append(files, filepath.Join(d.dir, e.Name()))
	}
	sort.Strings(files)
	if len(files) == 0 {
		return errors.Newf("capture: no replay frames in %s", d.dir).
			Component("capture").
			Category(errors.CategoryValidation).
			Build()
	}

	d.geo = geo
	d.files = files
	d.next = 0
	return nil
}

// ReadInto implements Device.
func (d *ReplayDevice) ReadInto(slot *framebuf.WriteSlot) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.files) == 0 {
		return errors.Newf("capture: replay device read before open").
			Component("capture").
			Category(errors.CategoryState).
			Build()
	}

	path := d.files[d.next]
	d.next = (d.next + 1) % len(d.files)

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.New(err).
			Component("capture").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	if len(data) != d.geo.FrameBytes {
		return errors.Newf("capture: replay frame %s is %d bytes, frame needs %d",
			filepath.Base(path), len(data), d.geo.FrameBytes).
			Component("capture").
			Category(errors.CategoryValidation).
			Build()
	}
	copy(slot.Bytes(), data)
	return nil
}

// Close implements Device.
func (d *ReplayDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files = nil
	return nil
}
