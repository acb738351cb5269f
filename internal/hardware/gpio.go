// Package hardware binds the appliance to the board: GPIO edge watching
// for the encoder and buttons, and the I2C register bus the haptic driver
// writes to. Simulated implementations of both live here as well so the
// rest of the runtime never needs to know whether real hardware is
// attached.
package hardware

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/insolesplug-ops/selimcam/internal/errors"
	"github.com/insolesplug-ops/selimcam/internal/input"
)

// hostOnce guards periph host initialization, which must run exactly once
// per process before any line or bus is opened.
var (
	hostOnce sync.Once
	hostErr  error
)

func initHost() error {
	hostOnce.Do(func() {
		_, hostErr = host.Init()
	})
	return hostErr
}

// edgeWait bounds WaitForEdge so watcher goroutines notice quit without
// needing a way to interrupt the kernel wait.
const edgeWait = 100 * time.Millisecond

// muxDepth sizes the per-line to single-producer funnel. A full funnel
// drops the edge; the ring's framing requires a single writer.
const muxDepth = 64

// Pins names the GPIO lines by their board numbers.
type Pins struct {
	EncoderA  int
	EncoderB  int
	EncoderSW int
	Shutter   int
}

// GPIOConfig controls edge source construction.
type GPIOConfig struct {
	// Pins are the monitored line numbers. Required.
	Pins Pins
	// Ring receives edges; the source is its only producer. Required.
	Ring *input.EdgeRing
	// Logger receives lifecycle logs. Defaults to slog.Default().
	Logger *slog.Logger
}

type watchedLine struct {
	pin  gpio.PinIO
	line input.Line
	// activeLow is set for the button lines: they switch to ground
	// behind the pull-up, so the wire reads low while pressed.
	activeLow bool
}

// pressedFromLevel maps a sampled wire level to the decoder's edge
// convention, where High means the input is physically actuated.
func pressedFromLevel(level gpio.Level, activeLow bool) bool {
	if activeLow {
		return level == gpio.Low
	}
	return level == gpio.High
}

// GPIOEdgeSource watches the four input lines and funnels their edges
// into the decoder's ring. Each line gets a watcher goroutine because the
// kernel wait is per line; a mux goroutine is the ring's single producer.
type GPIOEdgeSource struct {
	ring   *input.EdgeRing
	log    *slog.Logger
	lines  []watchedLine
	pinA   gpio.PinIO
	pinB   gpio.PinIO
	funnel chan input.Edge

	muxDropped atomic.Uint64
	closeOnce  sync.Once
}

// OpenGPIO initializes the periph host, claims the four lines with
// pull-ups and both-edge detection, and returns the source ready to
// start. Lines are claimed in a fixed order and released in reverse.
func OpenGPIO(cfg GPIOConfig) (*GPIOEdgeSource, error) {
	if cfg.Ring == nil {
		return nil, errors.Newf("hardware: edge ring is required").
			Component("hardware").
			Category(errors.CategoryValidation).
			Build()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err := initHost(); err != nil {
		return nil, errors.New(err).
			Component("hardware").
			Category(errors.CategoryHardware).
			Context("operation", "host-init").
			Build()
	}

	s := &GPIOEdgeSource{
		ring:   cfg.Ring,
		log:    logger.With("service", "hardware"),
		funnel: make(chan input.Edge, muxDepth),
	}

	order := []struct {
		number    int
		line      input.Line
		activeLow bool
	}{
		{cfg.Pins.EncoderA, input.LineA, false},
		{cfg.Pins.EncoderB, input.LineB, false},
		{cfg.Pins.EncoderSW, input.LineEncoderSW, true},
		{cfg.Pins.Shutter, input.LineShutter, true},
	}
	for _, o := range order {
		pin, err := claimPin(o.number)
		if err != nil {
			s.releaseLines()
			return nil, errors.New(err).
				Component("hardware").
				Category(errors.CategoryGPIO).
				Context("line", o.line.String()).
				Context("pin", o.number).
				Build()
		}
		s.lines = append(s.lines, watchedLine{pin: pin, line: o.line, activeLow: o.activeLow})
		switch o.line {
		case input.LineA:
			s.pinA = pin
		case input.LineB:
			s.pinB = pin
		}
	}
	return s, nil
}

func claimPin(number int) (gpio.PinIO, error) {
	name := fmt.Sprintf("GPIO%d", number)
	pin := gpioreg.ByName(name)
	if pin == nil {
		pin = gpioreg.ByName(fmt.Sprintf("%d", number))
	}
	if pin == nil {
		return nil, fmt.Errorf("gpio line %s not found", name)
	}
	if err := pin.In(gpio.PullUp, gpio.BothEdges); err != nil {
		return nil, fmt.Errorf("configuring %s: %w", name, err)
	}
	return pin, nil
}

// Start launches one watcher per line plus the ring mux. Watchers stamp
// edges and sample both encoder phases in the notification context, then
// hand off; nothing in this path ever blocks on the decoder.
func (s *GPIOEdgeSource) Start(wg *sync.WaitGroup, quit <-chan struct{}) {
	for _, wl := range s.lines {
		wl := wl
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.watch(wl, quit)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.mux(quit)
	}()
	s.log.Info("gpio edge source started", "lines", len(s.lines))
}

func (s *GPIOEdgeSource) watch(wl watchedLine, quit <-chan struct{}) {
	for {
		select {
		case <-quit:
			return
		default:
		}
		if !wl.pin.WaitForEdge(edgeWait) {
			continue
		}
		e := input.Edge{
			Line:  wl.line,
			High:  pressedFromLevel(wl.pin.Read(), wl.activeLow),
			Nanos: input.MonoNanos(),
		}
		// Both phases sampled now, not at drain time: the Gray table
		// judges the pair as the contacts actually were.
		e.LevelA = s.pinA.Read() == gpio.High
		e.LevelB = s.pinB.Read() == gpio.High
		select {
		case s.funnel <- e:
		default:
			s.muxDropped.Add(1)
		}
	}
}

func (s *GPIOEdgeSource) mux(quit <-chan struct{}) {
	for {
		select {
		case <-quit:
			return
		case e := <-s.funnel:
			s.ring.Push(e)
		}
	}
}

// MuxDropped returns edges lost in the watcher-to-ring funnel.
func (s *GPIOEdgeSource) MuxDropped() uint64 {
	return s.muxDropped.Load()
}

// Close releases the lines in reverse claim order. Call after the
// watchers have exited.
func (s *GPIOEdgeSource) Close() error {
	s.closeOnce.Do(s.releaseLines)
	return nil
}

func (s *GPIOEdgeSource) releaseLines() {
	for i := len(s.lines) - 1; i >= 0; i-- {
		if err := s.lines[i].pin.Halt(); err != nil {
			s.log.Warn("failed to release gpio line",
				"line", s.lines[i].line.String(), "error", err)
		}
	}
	s.lines = nil
}
