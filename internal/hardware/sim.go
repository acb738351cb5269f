package hardware

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/insolesplug-ops/selimcam/internal/input"
)

// RegisterWrite records one simulated bus transaction.
type RegisterWrite struct {
	Register byte
	Value    byte
}

// SimRegisterBus is an in-memory actuator bus. Simulation mode runs the
// full haptic stack against it; tests use it to script bus failures.
type SimRegisterBus struct {
	mu       sync.Mutex
	writes   []RegisterWrite
	failNext int
	failAll  bool
	err      error
}

// NewSimRegisterBus returns a bus that accepts every write.
func NewSimRegisterBus() *SimRegisterBus {
	return &SimRegisterBus{err: errSimBus}
}

var errSimBus = simBusError{}

type simBusError struct{}

func (simBusError) Error() string { return "sim bus: injected write failure" }

// FailNext makes the next n writes fail.
func (b *SimRegisterBus) FailNext(n int) {
	b.mu.Lock()
	b.failNext = n
	b.mu.Unlock()
}

// SetFailing makes every write fail until cleared. Models an unplugged
// actuator rather than a transient glitch.
func (b *SimRegisterBus) SetFailing(failing bool) {
	b.mu.Lock()
	b.failAll = failing
	b.mu.Unlock()
}

// WriteRegister records the write, or fails if a failure is scripted.
func (b *SimRegisterBus) WriteRegister(reg, value byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failAll {
		return b.err
	}
	if b.failNext > 0 {
		b.failNext--
		return b.err
	}
	b.writes = append(b.writes, RegisterWrite{Register: reg, Value: value})
	return nil
}

// Writes returns a copy of the accepted writes.
func (b *SimRegisterBus) Writes() []RegisterWrite {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]RegisterWrite, len(b.writes))
	copy(out, b.writes)
	return out
}

// Close satisfies the hardware bus surface; nothing to release.
func (b *SimRegisterBus) Close() error { return nil }

// SimEdge is one scripted input event: wait After, then raise the edge.
type SimEdge struct {
	After time.Duration
	Edge  input.Edge
}

// SimEdgeSource replays a script of edges into the decoder ring, stamping
// each edge with the monotonic clock at replay time. With an empty script
// it is a silent input device, which is what headless simulation wants.
type SimEdgeSource struct {
	ring   *input.EdgeRing
	log    *slog.Logger
	script []SimEdge
	loop   bool

	replayed atomic.Uint64
}

// NewSimEdgeSource builds a source replaying script once, or forever when
// loop is set.
func NewSimEdgeSource(ring *input.EdgeRing, script []SimEdge, loop bool, logger *slog.Logger) *SimEdgeSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &SimEdgeSource{
		ring:   ring,
		log:    logger.With("service", "hardware"),
		script: script,
		loop:   loop,
	}
}

// Start launches the replay goroutine.
func (s *SimEdgeSource) Start(wg *sync.WaitGroup, quit <-chan struct{}) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.run(quit)
	}()
}

func (s *SimEdgeSource) run(quit <-chan struct{}) {
	if len(s.script) == 0 {
		<-quit
		return
	}
	timer := time.NewTimer(0)
	defer timer.Stop()
	if !timer.Stop() {
		<-timer.C
	}
	for {
		for _, step := range s.script {
			timer.Reset(step.After)
			select {
			case <-quit:
				return
			case <-timer.C:
			}
			e := step.Edge
			e.Nanos = input.MonoNanos()
			s.ring.Push(e)
			s.replayed.Add(1)
		}
		if !s.loop {
			<-quit
			return
		}
	}
}

// Replayed returns the number of edges pushed so far.
func (s *SimEdgeSource) Replayed() uint64 {
	return s.replayed.Load()
}

// Close satisfies the edge source surface; no lines to release.
func (s *SimEdgeSource) Close() error { return nil }

// quadCycle is one full quadrature cycle in Gray order. Each entry is
// the line that moved plus the resulting (A, B) pair. Clockwise walks
// 00 -> 01 -> 11 -> 10 -> 00; counter-clockwise the mirror.
type quadStep struct {
	line input.Line
	a, b bool
}

var cwCycle = []quadStep{
	{input.LineB, false, true},
	{input.LineA, true, true},
	{input.LineB, true, false},
	{input.LineA, false, false},
}

var ccwCycle = []quadStep{
	{input.LineA, true, false},
	{input.LineB, true, true},
	{input.LineA, false, true},
	{input.LineB, false, false},
}

// DetentScript builds a script of n full quadrature cycles, one edge
// every step.
func DetentScript(n int, clockwise bool, step time.Duration) []SimEdge {
	cycle := cwCycle
	if !clockwise {
		cycle = ccwCycle
	}
	script := make([]SimEdge, 0, n*len(cycle))
	for i := 0; i < n; i++ {
		for _, c := range cycle {
			high := c.a
			if c.line == input.LineB {
				high = c.b
			}
			script = append(script, SimEdge{
				After: step,
				Edge: input.Edge{
					Line:   c.line,
					High:   high,
					LevelA: c.a,
					LevelB: c.b,
				},
			})
		}
	}
	return script
}

// ButtonScript builds a press-then-release on one button line, held for
// hold. High carries the decoder's convention, true while pressed; the
// real watcher normalizes the active-low wire level before an edge
// reaches the ring, so scripts are written post-normalization.
func ButtonScript(line input.Line, hold time.Duration) []SimEdge {
	return []SimEdge{
		{After: time.Millisecond, Edge: input.Edge{Line: line, High: true}},
		{After: hold, Edge: input.Edge{Line: line, High: false}},
	}
}
