// Package appliance assembles the runtime: it constructs every component
// in dependency order, starts them against one quit channel, and tears
// hardware down in reverse acquisition order on shutdown. Nothing here
// holds domain logic; this is the wiring harness.
package appliance

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/insolesplug-ops/selimcam/internal/capture"
	"github.com/insolesplug-ops/selimcam/internal/conf"
	"github.com/insolesplug-ops/selimcam/internal/diagnostics"
	"github.com/insolesplug-ops/selimcam/internal/errors"
	"github.com/insolesplug-ops/selimcam/internal/events"
	"github.com/insolesplug-ops/selimcam/internal/framebuf"
	"github.com/insolesplug-ops/selimcam/internal/haptic"
	"github.com/insolesplug-ops/selimcam/internal/hardware"
	"github.com/insolesplug-ops/selimcam/internal/input"
	"github.com/insolesplug-ops/selimcam/internal/observability"
	"github.com/insolesplug-ops/selimcam/internal/render"
	"github.com/insolesplug-ops/selimcam/internal/scene"
)

// busDrain bounds how long shutdown waits for queued events to deliver.
const busDrain = 2 * time.Second

// edgeSource is the shape both the GPIO watcher and the simulator expose.
type edgeSource interface {
	Start(wg *sync.WaitGroup, quit <-chan struct{})
	Close() error
}

// hwCloser is one acquired hardware handle, recorded at acquisition time
// so teardown can release in reverse order.
type hwCloser struct {
	name  string
	close func() error
}

// closeReverse releases handles in reverse acquisition order and keeps
// the first error.
func closeReverse(hw []hwCloser) error {
	var firstErr error
	for i := len(hw) - 1; i >= 0; i-- {
		if err := hw[i].close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Options selects the hardware binding and the renderer collaborator.
type Options struct {
	// Settings is the validated configuration. Required.
	Settings *conf.Settings
	// Sim replaces GPIO and I2C with in-memory simulators.
	Sim bool
	// Script feeds the simulated edge source. Ignored unless Sim is set.
	Script []hardware.SimEdge
	// LoopScript repeats the script forever.
	LoopScript bool
	// Renderer draws each cycle. Defaults to the null renderer.
	Renderer render.Renderer
	// Logger is the root logger. Defaults to slog.Default().
	Logger *slog.Logger
}

// Appliance owns every runtime component between construction and Run
// returning.
type Appliance struct {
	settings *conf.Settings
	log      *slog.Logger

	metrics   *observability.Metrics
	bus       *events.Bus
	pool      *framebuf.Pool
	ring      *input.EdgeRing
	decoder   *input.Decoder
	machine   *scene.Machine
	driver    *haptic.Driver
	feedback  *haptic.Controller
	source    *capture.Source
	pipeline  *capture.Pipeline
	loop      *render.Loop
	edges     edgeSource
	endpoint  *observability.Endpoint
	collector *diagnostics.Collector

	// hw holds the acquired hardware handles in acquisition order.
	hw []hwCloser
}

// New builds the full pipeline without touching hardware clocks or
// starting goroutines. Every subscription is registered here, before the
// bus starts delivering.
func New(opts Options) (*Appliance, error) {
	if opts.Settings == nil {
		return nil, errors.Newf("appliance: settings are required").
			Component("appliance").
			Category(errors.CategoryValidation).
			Build()
	}
	settings := opts.Settings
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = render.NullRenderer{}
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		return nil, err
	}

	bus := events.NewBus(events.Config{
		QueueSize: settings.Events.QueueSize,
		Logger:    logger,
		Metrics:   metrics.EventBus,
	})

	pool, err := framebuf.NewPool(framebuf.Config{
		Slots:       settings.Preview.BufferCount,
		Width:       settings.Preview.Width,
		Height:      settings.Preview.Height,
		PixelFormat: settings.Preview.PixelFormat,
		Logger:      logger,
		Metrics:     metrics.FramePool,
	})
	if err != nil {
		return nil, err
	}

	ring := input.NewEdgeRing(settings.Input.EdgeRing)
	decoder, err := input.New(input.Config{
		Ring:            ring,
		Bus:             bus,
		EncoderDebounce: settings.EncoderDebounce(),
		ButtonDebounce:  settings.ButtonDebounce(),
		LongPress:       settings.LongPress(),
		VelocityDecay:   time.Duration(settings.Input.VelocityDecayMs) * time.Millisecond,
		Logger:          logger,
		Metrics:         metrics.Input,
	})
	if err != nil {
		return nil, err
	}

	machine, err := scene.New(scene.Config{
		Bus:        bus,
		Transition: settings.TransitionDuration(),
		IdleAfter:  time.Duration(settings.Scene.IdleAfterSec) * time.Second,
		SleepAfter: time.Duration(settings.Scene.SleepAfterSec) * time.Second,
		ActiveFPS:  settings.Preview.FPS,
		IdleFPS:    settings.Scene.IdleFPS,
		SleepFPS:   settings.Scene.SleepFPS,
		QueueSize:  settings.Events.QueueSize,
		Logger:     logger,
		Metrics:    metrics.Scene,
	})
	if err != nil {
		return nil, err
	}

	a := &Appliance{
		settings: settings,
		log:      logger.With("service", "appliance"),
		metrics:  metrics,
		bus:      bus,
		pool:     pool,
		ring:     ring,
		decoder:  decoder,
		machine:  machine,
	}

	if settings.Haptic.Enabled {
		if err := a.buildHaptics(opts); err != nil {
			return nil, err
		}
	}
	if err := a.buildCapture(opts, renderer); err != nil {
		return nil, err
	}
	if err := a.buildEdgeSource(opts); err != nil {
		return nil, err
	}

	if settings.Realtime.Metrics.Enabled {
		endpoint, err := observability.NewEndpoint(settings, metrics)
		if err != nil {
			return nil, err
		}
		a.endpoint = endpoint
	}

	src := diagnostics.Sources{
		Pool:      pool,
		Decoder:   decoder,
		Haptic:    a.driver,
		HapticCtl: a.feedback,
		Scene:     machine,
		Render:    a.loop,
		Capture:   a.source,
		Photos:    a.pipeline,
		Bus:       bus,
	}
	if gpio, ok := a.edges.(*hardware.GPIOEdgeSource); ok {
		src.EdgeSource = gpio
	}
	a.collector = diagnostics.NewCollector(src)
	return a, nil
}

func (a *Appliance) buildHaptics(opts Options) error {
	h := a.settings.Haptic

	var regBus haptic.RegisterBus
	if opts.Sim {
		regBus = hardware.NewSimRegisterBus()
	} else {
		bus, err := hardware.OpenI2C(h.Bus, h.Address)
		if err != nil {
			return err
		}
		regBus = bus
	}

	driver, err := haptic.NewDriver(haptic.DriverConfig{
		Bus: regBus,
		Registers: haptic.Registers{
			Mode:     h.Registers.Mode,
			Library:  h.Registers.Library,
			Waveform: h.Registers.Waveform,
			Go:       h.Registers.Go,
		},
		Library:       h.Library,
		Attempts:      h.Retry.Attempts,
		Backoff:       time.Duration(h.Retry.BackoffMs) * time.Millisecond,
		ProbeInterval: time.Duration(h.Retry.ProbeIntervalSec) * time.Second,
		Logger:        a.log,
		Metrics:       a.metrics.Haptic,
	})
	if err != nil {
		return err
	}

	feedback, err := haptic.NewController(haptic.ControllerConfig{
		Bus:    a.bus,
		Player: driver,
		Curve: haptic.Curve{
			FullSpeed: h.Curve.FullSpeed,
			Falloff:   h.Curve.Falloff,
			Floor:     h.Curve.Floor,
		},
		Amplitude: h.Amplitude,
		QueueSize: a.settings.Events.QueueSize,
		Logger:    a.log,
		Metrics:   a.metrics.Haptic,
	})
	if err != nil {
		return err
	}

	a.driver = driver
	a.feedback = feedback
	a.hw = append(a.hw, hwCloser{name: "haptic-driver", close: driver.Close})
	return nil
}

func (a *Appliance) buildCapture(opts Options, renderer render.Renderer) error {
	settings := a.settings

	var device capture.Device
	switch {
	case opts.Sim:
		device = capture.NewPatternDevice()
	case settings.Capture.Device == "replay":
		device = capture.NewReplayDevice(settings.Capture.ReplayDir)
	default:
		device = capture.NewPatternDevice()
	}

	source, err := capture.NewSource(capture.SourceConfig{
		Device:    device,
		Pool:      a.pool,
		Bus:       a.bus,
		Scenes:    a.machine,
		Transform: capture.NewColorTransform(a.pool.Geometry()),
		FPS:       settings.Preview.FPS,
		QueueSize: settings.Events.QueueSize,
		Logger:    a.log,
		Metrics:   a.metrics.Capture,
	})
	if err != nil {
		return err
	}

	sink, err := capture.NewDirSink(settings.Capture.OutputDir)
	if err != nil {
		return err
	}
	pipeline, err := capture.NewPipeline(capture.PipelineConfig{
		Pool:      a.pool,
		Bus:       a.bus,
		Sink:      sink,
		Quality:   settings.Capture.Quality,
		Workers:   settings.Capture.WorkerThreads,
		QueueSize: settings.Events.QueueSize,
		Logger:    a.log,
		Metrics:   a.metrics.Capture,
	})
	if err != nil {
		return err
	}

	loop, err := render.NewLoop(render.Config{
		Pool:      a.pool,
		Scenes:    a.machine,
		Renderer:  renderer,
		Bus:       a.bus,
		FPS:       settings.Preview.FPS,
		QueueSize: settings.Events.QueueSize,
		Logger:    a.log,
		Metrics:   a.metrics.Render,
	})
	if err != nil {
		return err
	}

	a.source = source
	a.pipeline = pipeline
	a.loop = loop
	return nil
}

func (a *Appliance) buildEdgeSource(opts Options) error {
	if opts.Sim {
		sim := hardware.NewSimEdgeSource(a.ring, opts.Script, opts.LoopScript, a.log)
		a.edges = sim
		a.hw = append(a.hw, hwCloser{name: "edge-source", close: sim.Close})
		return nil
	}
	pins := a.settings.Input.Pins
	gpio, err := hardware.OpenGPIO(hardware.GPIOConfig{
		Pins: hardware.Pins{
			EncoderA:  pins.EncoderA,
			EncoderB:  pins.EncoderB,
			EncoderSW: pins.EncoderSW,
			Shutter:   pins.Shutter,
		},
		Ring:   a.ring,
		Logger: a.log,
	})
	if err != nil {
		return err
	}
	a.edges = gpio
	a.hw = append(a.hw, hwCloser{name: "edge-source", close: gpio.Close})
	return nil
}

// Collector exposes the diagnostics aggregate for commands and tests.
func (a *Appliance) Collector() *diagnostics.Collector {
	return a.collector
}

// Bus exposes the event bus so callers can publish (navigation from an
// external UI) or subscribe before Run starts delivery.
func (a *Appliance) Bus() *events.Bus {
	return a.bus
}

// Run starts every component and blocks until the context is cancelled, a
// termination signal arrives, or something publishes ShutdownRequested on
// the bus. It returns after the full teardown has completed.
func (a *Appliance) Run(ctx context.Context) error {
	// The lifecycle subscription must exist before the bus starts so no
	// shutdown request can slip past.
	lifecycle, err := a.bus.Subscribe("appliance", a.settings.Events.QueueSize, events.TopicLifecycle)
	if err != nil {
		return err
	}

	if a.driver != nil {
		// A dead actuator at boot is a degraded appliance, not a failed
		// one; the driver latches and the input path carries on.
		if err := a.driver.Init(); err != nil {
			a.log.Warn("haptic actuator unavailable at startup", "error", err)
		}
	}

	quit := make(chan struct{})
	var wg sync.WaitGroup

	a.bus.Start()
	a.machine.Start(&wg, quit)
	if a.feedback != nil {
		a.feedback.Start(&wg, quit)
	}
	a.decoder.Start(&wg, quit)
	a.edges.Start(&wg, quit)
	a.source.Start(&wg, quit)
	a.pipeline.Start(&wg, quit)
	a.loop.Start(&wg, quit)
	if a.endpoint != nil {
		a.endpoint.Start(&wg, quit)
	}

	a.log.Info("appliance running",
		"preview_fps", a.settings.Preview.FPS,
		"pool_slots", a.settings.Preview.BufferCount,
		"haptics", a.settings.Haptic.Enabled,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

wait:
	for {
		select {
		case <-ctx.Done():
			a.log.Info("context cancelled, shutting down")
			break wait
		case sig := <-sigChan:
			a.log.Info("received signal, shutting down", "signal", sig.String())
			a.bus.Publish(events.ShutdownRequested{Reason: sig.String()})
			break wait
		case env := <-lifecycle.Events():
			// The lifecycle topic also carries degradation notices;
			// only an explicit shutdown request ends the run.
			if req, ok := env.Payload.(events.ShutdownRequested); ok {
				a.log.Info("shutdown requested", "reason", req.Reason)
				break wait
			}
		}
	}

	return a.shutdown(quit, &wg)
}

// shutdown stops the loops, then releases hardware in reverse acquisition
// order: the GPIO lines first (claimed last), then the actuator driver
// (parks in standby and closes the I2C handle), then the bus drains.
func (a *Appliance) shutdown(quit chan struct{}, wg *sync.WaitGroup) error {
	close(quit)
	wg.Wait()

	firstErr := closeReverse(a.hw)
	if err := a.bus.Close(busDrain); err != nil && firstErr == nil {
		firstErr = err
	}

	a.log.Info("appliance stopped")
	return firstErr
}
