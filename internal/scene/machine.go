// Package scene owns the appliance's navigation state: which scene is
// live, in-flight transitions, camera sub-state (filter, info overlay),
// and the activity-based power tier. A single goroutine consumes bus
// events and timed ticks; everyone else reads an immutable snapshot.
package scene

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/insolesplug-ops/selimcam/internal/errors"
	"github.com/insolesplug-ops/selimcam/internal/events"
	"github.com/insolesplug-ops/selimcam/internal/observability/metrics"
)

// Defaults applied when Config fields are zero.
const (
	DefaultTransition = 250 * time.Millisecond
	DefaultIdleAfter  = 10 * time.Second
	DefaultSleepAfter = 30 * time.Second
	DefaultActiveFPS  = 30
	DefaultIdleFPS    = 10
	DefaultSleepFPS   = 1

	// DefaultTickInterval paces transition progress and tier checks.
	DefaultTickInterval = 25 * time.Millisecond

	// DefaultToastFor is the toast display time when the publisher
	// leaves it unset.
	DefaultToastFor = 2 * time.Second
)

// SettingsEntries lists the settings scene's rows in display order. The
// machine owns only the selection index; rendering and editing live with
// the renderer.
var SettingsEntries = []string{"haptics", "brightness", "power", "storage", "about"}

// sceneOrder is the long-press cycling order.
var sceneOrder = []events.SceneID{events.SceneCamera, events.SceneGallery, events.SceneSettings}

// Config controls machine construction.
type Config struct {
	// Bus is the event bus. Required.
	Bus *events.Bus
	// Transition is the scene transition duration.
	Transition time.Duration
	// IdleAfter and SleepAfter are the quiet periods before the power
	// tier drops.
	IdleAfter  time.Duration
	SleepAfter time.Duration
	// ActiveFPS, IdleFPS, SleepFPS are the preview rates per tier.
	ActiveFPS int
	IdleFPS   int
	SleepFPS  int
	// TickInterval paces the timed work loop.
	TickInterval time.Duration
	// QueueSize overrides the subscription queue depth.
	QueueSize int
	// Clock overrides the time source. Tests inject synthetic time.
	Clock func() time.Time
	// Logger receives machine logs. Defaults to slog.Default().
	Logger *slog.Logger
	// Metrics receives machine activity. Optional.
	Metrics *metrics.SceneMetrics
}

// State is an immutable snapshot of the machine. Renderers read it every
// cycle; all fields are values.
type State struct {
	// Scene is the live scene. During a transition it is still the
	// origin scene; To names where the transition is headed.
	Scene         events.SceneID
	Transitioning bool
	From          events.SceneID
	To            events.SceneID
	Started       time.Time
	Ends          time.Time

	Overlay bool
	Filter  events.FilterID

	GalleryIndex  int
	SettingsIndex int

	Tier events.PowerTier
	FPS  int

	Toast      string
	ToastUntil time.Time
}

// Progress reports transition completion in [0, 1] at the given time.
// A stable state reports 1.
func (s State) Progress(now time.Time) float64 {
	if !s.Transitioning {
		return 1
	}
	total := s.Ends.Sub(s.Started)
	if total <= 0 {
		return 1
	}
	p := float64(now.Sub(s.Started)) / float64(total)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// ToastVisible reports whether the toast should be drawn at the given time.
func (s State) ToastVisible(now time.Time) bool {
	return s.Toast != "" && now.Before(s.ToastUntil)
}

// Stats is a point-in-time snapshot of machine counters.
type Stats struct {
	Navigations     uint64
	ReplacedTargets uint64
	Transitions     uint64
	OverlayToggles  uint64
	FilterChanges   uint64
	CaptureRequests uint64
	TierChanges     uint64
}

// Machine is the scene state machine. Construction wires the bus
// subscription; Start launches the single consumer goroutine.
type Machine struct {
	bus   *events.Bus
	sub   *events.Subscription
	log   *slog.Logger
	stats *metrics.SceneMetrics

	transition time.Duration
	idleAfter  time.Duration
	sleepAfter time.Duration
	tierFPS    map[events.PowerTier]int
	tick       time.Duration
	now        func() time.Time

	// cur is the authoritative state, touched only by the run goroutine
	// (tests drive handle/step directly). snap is its published copy.
	cur  State
	snap atomic.Pointer[State]

	lastInput        time.Time
	encoderLongPress bool

	navigations     atomic.Uint64
	replacedTargets atomic.Uint64
	transitions     atomic.Uint64
	overlayToggles  atomic.Uint64
	filterChanges   atomic.Uint64
	captureRequests atomic.Uint64
	tierChanges     atomic.Uint64
}

// New subscribes to the input, navigation, and toast topics and builds
// the machine in its initial state. Call before Bus.Start.
func New(cfg Config) (*Machine, error) {
	if cfg.Bus == nil {
		return nil, errors.Newf("scene: event bus is required").
			Component("scene").
			Category(errors.CategoryValidation).
			Build()
	}
	if cfg.Transition <= 0 {
		cfg.Transition = DefaultTransition
	}
	if cfg.IdleAfter <= 0 {
		cfg.IdleAfter = DefaultIdleAfter
	}
	if cfg.SleepAfter <= cfg.IdleAfter {
		cfg.SleepAfter = DefaultSleepAfter
		if cfg.SleepAfter <= cfg.IdleAfter {
			cfg.SleepAfter = cfg.IdleAfter * 3
		}
	}
	if cfg.ActiveFPS <= 0 {
		cfg.ActiveFPS = DefaultActiveFPS
	}
	if cfg.IdleFPS <= 0 {
		cfg.IdleFPS = DefaultIdleFPS
	}
	if cfg.SleepFPS <= 0 {
		cfg.SleepFPS = DefaultSleepFPS
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	sub, err := cfg.Bus.Subscribe("scene", cfg.QueueSize,
		events.TopicInput, events.TopicNavigation, events.TopicUI)
	if err != nil {
		return nil, err
	}

	m := &Machine{
		bus:        cfg.Bus,
		sub:        sub,
		log:        cfg.Logger.With("service", "scene"),
		stats:      cfg.Metrics,
		transition: cfg.Transition,
		idleAfter:  cfg.IdleAfter,
		sleepAfter: cfg.SleepAfter,
		tierFPS: map[events.PowerTier]int{
			events.TierActive: cfg.ActiveFPS,
			events.TierIdle:   cfg.IdleFPS,
			events.TierSleep:  cfg.SleepFPS,
		},
		tick: cfg.TickInterval,
		now:  cfg.Clock,
	}

	start := m.now()
	m.cur = State{
		Scene:  events.SceneCamera,
		Filter: events.FilterNone,
		Tier:   events.TierActive,
		FPS:    cfg.ActiveFPS,
	}
	m.lastInput = start
	m.publishSnapshot()
	if m.stats != nil {
		m.stats.SetPowerTier(tierOrdinal(events.TierActive))
	}
	return m, nil
}

// Snapshot returns the current state. Lock-free; safe from any goroutine.
func (m *Machine) Snapshot() State {
	return *m.snap.Load()
}

// Stats returns a snapshot of machine counters.
func (m *Machine) Stats() Stats {
	return Stats{
		Navigations:     m.navigations.Load(),
		ReplacedTargets: m.replacedTargets.Load(),
		Transitions:     m.transitions.Load(),
		OverlayToggles:  m.overlayToggles.Load(),
		FilterChanges:   m.filterChanges.Load(),
		CaptureRequests: m.captureRequests.Load(),
		TierChanges:     m.tierChanges.Load(),
	}
}

// Start launches the consumer goroutine.
func (m *Machine) Start(wg *sync.WaitGroup, quit <-chan struct{}) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.run(quit)
	}()
}

func (m *Machine) run(quit <-chan struct{}) {
	m.log.Info("scene machine started",
		"scene", m.cur.Scene,
		"transition_ms", m.transition.Milliseconds(),
		"idle_after", m.idleAfter,
		"sleep_after", m.sleepAfter)

	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		select {
		case env, ok := <-m.sub.Events():
			if !ok {
				return
			}
			m.handle(env.Payload, m.now())
		case <-ticker.C:
			m.step(m.now())
		case <-quit:
			m.log.Info("scene machine stopping", "scene", m.cur.Scene)
			return
		}
	}
}

// handle applies one event. Only the run goroutine (or a test) calls it.
func (m *Machine) handle(p events.Payload, now time.Time) {
	switch ev := p.(type) {
	case events.EncoderTick:
		m.wake(now)
		m.onEncoderTick(ev)
	case events.ButtonDown:
		m.wake(now)
		m.onButtonDown(ev)
	case events.ButtonUp:
		m.wake(now)
		m.onButtonUp(ev)
	case events.ButtonLongPress:
		m.wake(now)
		m.onLongPress(ev, now)
	case events.Navigate:
		// Navigation is user input too (touch), so it restores the
		// active tier like any encoder or button event.
		m.wake(now)
		m.navigate(ev.Target, now)
	case events.Toast:
		d := ev.For
		if d <= 0 {
			d = DefaultToastFor
		}
		m.cur.Toast = ev.Text
		m.cur.ToastUntil = now.Add(d)
	}
	m.publishSnapshot()
}

// step advances timed work: transition completion, power tiering, toast
// expiry. Only the run goroutine (or a test) calls it.
func (m *Machine) step(now time.Time) {
	if m.cur.Transitioning && !now.Before(m.cur.Ends) {
		m.completeTransition(now)
	}

	quiet := now.Sub(m.lastInput)
	switch {
	case quiet >= m.sleepAfter && m.cur.Tier != events.TierSleep:
		m.setTier(events.TierSleep)
	case quiet >= m.idleAfter && m.cur.Tier == events.TierActive:
		m.setTier(events.TierIdle)
	}

	if m.cur.Toast != "" && !now.Before(m.cur.ToastUntil) {
		m.cur.Toast = ""
		m.cur.ToastUntil = time.Time{}
	}

	m.publishSnapshot()
}

func (m *Machine) onEncoderTick(ev events.EncoderTick) {
	if m.cur.Transitioning {
		return
	}
	step := int(ev.Direction)
	switch m.cur.Scene {
	case events.SceneCamera:
		m.cur.Filter = cycleFilter(m.cur.Filter, step)
		m.filterChanges.Add(1)
		if m.stats != nil {
			m.stats.RecordFilterChange()
		}
		m.bus.Publish(events.FilterChanged{Filter: m.cur.Filter})
	case events.SceneGallery:
		m.cur.GalleryIndex += step
		if m.cur.GalleryIndex < 0 {
			m.cur.GalleryIndex = 0
		}
	case events.SceneSettings:
		n := len(SettingsEntries)
		m.cur.SettingsIndex = ((m.cur.SettingsIndex+step)%n + n) % n
	}
}

func (m *Machine) onButtonDown(ev events.ButtonDown) {
	if ev.Button != events.ButtonShutter {
		return
	}
	if m.cur.Scene != events.SceneCamera || m.cur.Transitioning {
		return
	}
	m.captureRequests.Add(1)
	m.bus.Publish(events.CaptureRequest{Filter: m.cur.Filter})
}

func (m *Machine) onButtonUp(ev events.ButtonUp) {
	if ev.Button != events.ButtonEncoder {
		return
	}
	// The release that ends a long press already had its effect.
	if m.encoderLongPress {
		m.encoderLongPress = false
		return
	}
	if m.cur.Scene != events.SceneCamera || m.cur.Transitioning {
		return
	}
	m.cur.Overlay = !m.cur.Overlay
	m.overlayToggles.Add(1)
	if m.stats != nil {
		m.stats.RecordOverlayToggle()
	}
	m.bus.Publish(events.OverlayToggled{Visible: m.cur.Overlay})
}

// onLongPress cycles to the next scene. Per-topic publish order
// guarantees the matching ButtonUp arrives after this event.
func (m *Machine) onLongPress(ev events.ButtonLongPress, now time.Time) {
	if ev.Button != events.ButtonEncoder {
		return
	}
	m.encoderLongPress = true
	m.navigate(nextScene(m.currentOrTarget()), now)
}

// currentOrTarget is the scene a new navigation should be relative to:
// the pending target while transitioning, the live scene otherwise.
func (m *Machine) currentOrTarget() events.SceneID {
	if m.cur.Transitioning {
		return m.cur.To
	}
	return m.cur.Scene
}

func (m *Machine) navigate(target events.SceneID, now time.Time) {
	if !validScene(target) {
		m.log.Warn("navigation to unknown scene ignored", "target", target)
		if m.stats != nil {
			m.stats.RecordNavigation("noop")
		}
		return
	}
	m.navigations.Add(1)

	if m.cur.Transitioning {
		// Replace the pending target, never stack.
		if m.cur.To != target {
			m.cur.To = target
			m.replacedTargets.Add(1)
			if m.stats != nil {
				m.stats.RecordNavigation("replaced")
			}
		} else if m.stats != nil {
			m.stats.RecordNavigation("noop")
		}
		return
	}

	if target == m.cur.Scene {
		if m.stats != nil {
			m.stats.RecordNavigation("noop")
		}
		return
	}

	m.cur.Transitioning = true
	m.cur.From = m.cur.Scene
	m.cur.To = target
	m.cur.Started = now
	m.cur.Ends = now.Add(m.transition)
	if m.stats != nil {
		m.stats.RecordNavigation("started")
	}
	m.log.Debug("transition started", "from", m.cur.From, "to", m.cur.To)
}

// completeTransition enters the pending target and announces the stable
// scene entry. A transition whose replaced target circled back to its
// origin completes silently; no scene changed.
func (m *Machine) completeTransition(now time.Time) {
	from := m.cur.From
	to := m.cur.To
	elapsed := now.Sub(m.cur.Started)

	m.cur.Scene = to
	m.cur.Transitioning = false
	m.cur.Started = time.Time{}
	m.cur.Ends = time.Time{}
	m.transitions.Add(1)

	if from == to {
		return
	}
	if m.cur.Scene != events.SceneCamera {
		m.cur.Overlay = false
	}
	if m.stats != nil {
		m.stats.RecordTransition(string(from), string(to))
		m.stats.ObserveTransitionDuration(elapsed.Seconds())
	}
	m.bus.Publish(events.SceneChanged{From: from, To: to})
	m.log.Debug("transition complete", "from", from, "to", to)
}

// wake records input activity and restores the active tier.
func (m *Machine) wake(now time.Time) {
	m.lastInput = now
	if m.cur.Tier != events.TierActive {
		m.setTier(events.TierActive)
	}
}

func (m *Machine) setTier(tier events.PowerTier) {
	m.cur.Tier = tier
	m.cur.FPS = m.tierFPS[tier]
	m.tierChanges.Add(1)
	if m.stats != nil {
		m.stats.SetPowerTier(tierOrdinal(tier))
		m.stats.RecordPowerTransition(string(tier))
	}
	m.bus.Publish(events.PowerTierChanged{Tier: tier, FPS: m.cur.FPS})
	m.log.Debug("power tier changed", "tier", tier, "fps", m.cur.FPS)
}

func (m *Machine) publishSnapshot() {
	s := m.cur
	m.snap.Store(&s)
}

func tierOrdinal(t events.PowerTier) int {
	switch t {
	case events.TierIdle:
		return 1
	case events.TierSleep:
		return 2
	default:
		return 0
	}
}

func validScene(s events.SceneID) bool {
	switch s {
	case events.SceneCamera, events.SceneGallery, events.SceneSettings:
		return true
	default:
		return false
	}
}

func nextScene(s events.SceneID) events.SceneID {
	for i, id := range sceneOrder {
		if id == s {
			return sceneOrder[(i+1)%len(sceneOrder)]
		}
	}
	return events.SceneCamera
}

func cycleFilter(f events.FilterID, step int) events.FilterID {
	n := len(events.Filters)
	idx := 0
	for i, id := range events.Filters {
		if id == f {
			idx = i
			break
		}
	}
	return events.Filters[((idx+step)%n+n)%n]
}
