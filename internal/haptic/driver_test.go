package haptic

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insolesplug-ops/selimcam/internal/errors"
)

// regWrite is one recorded register write.
type regWrite struct {
	reg   byte
	value byte
}

// fakeRegisterBus records register traffic and injects failures. failFor
// counts down: while positive, every write fails.
type fakeRegisterBus struct {
	mu      sync.Mutex
	writes  []regWrite
	failFor int
	failErr error
	closed  bool
}

func newFakeBus() *fakeRegisterBus {
	return &fakeRegisterBus{failErr: errors.NewStd("bus write failed")}
}

func (f *fakeRegisterBus) WriteRegister(reg, value byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor != 0 {
		if f.failFor > 0 {
			f.failFor--
		}
		return f.failErr
	}
	f.writes = append(f.writes, regWrite{reg: reg, value: value})
	return nil
}

func (f *fakeRegisterBus) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeRegisterBus) failNext(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failFor = n
}

func (f *fakeRegisterBus) failAlways() { f.failNext(-1) }

func (f *fakeRegisterBus) recorded() []regWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]regWrite, len(f.writes))
	copy(out, f.writes)
	return out
}

func (f *fakeRegisterBus) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = nil
	f.failFor = 0
}

// fakeClock is a manually advanced time source.
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

func newTestDriver(t *testing.T, bus *fakeRegisterBus, clock *fakeClock) *Driver {
	t.Helper()
	cfg := DriverConfig{
		Bus:           bus,
		Backoff:       time.Microsecond,
		ProbeInterval: 30 * time.Second,
	}
	if clock != nil {
		cfg.Clock = clock.Now
	}
	d, err := NewDriver(cfg)
	require.NoError(t, err)
	return d
}

func TestNewDriverRequiresBus(t *testing.T) {
	t.Parallel()

	_, err := NewDriver(DriverConfig{})
	assert.Error(t, err)
}

func TestDriverInitSelectsLibrary(t *testing.T) {
	t.Parallel()

	bus := newFakeBus()
	d := newTestDriver(t, bus, nil)
	require.NoError(t, d.Init())

	want := []regWrite{
		{reg: DefaultRegisters.Mode, value: modeInternalTrigger},
		{reg: DefaultRegisters.Library, value: DefaultLibrary},
	}
	assert.Equal(t, want, bus.recorded())
	assert.False(t, d.Degraded())
}

func TestDriverPlaySequence(t *testing.T) {
	t.Parallel()

	bus := newFakeBus()
	d := newTestDriver(t, bus, nil)
	require.NoError(t, d.Init())
	bus.reset()

	require.NoError(t, d.Play(NewCommand(PatternShutter, 1.0)))

	want := []regWrite{
		{reg: DefaultRegisters.Waveform, value: byte(EffectStrongClick)},
		{reg: DefaultRegisters.Waveform + 1, value: byte(EffectNone)}, // sequence terminator
		{reg: DefaultRegisters.Go, value: 1},
	}
	assert.Equal(t, want, bus.recorded())
	assert.Equal(t, uint64(1), d.Stats().Pulses)
}

// TestDriverDetentLadder checks that amplitude picks the effect rung:
// weak detents bump, mid detents click lightly, strong detents click hard.
func TestDriverDetentLadder(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		amplitude float64
		want      Effect
	}{
		{"floor", 0.0, EffectSoftBump},
		{"low", 0.2, EffectSoftBump},
		{"mid", 0.5, EffectLightClick},
		{"high", 0.8, EffectSharpClick},
		{"full", 1.0, EffectSharpClick},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := resolveEffect(NewCommand(PatternDetent, tc.amplitude))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDriverRetriesTransientFailure(t *testing.T) {
	t.Parallel()

	bus := newFakeBus()
	d := newTestDriver(t, bus, nil)
	require.NoError(t, d.Init())
	bus.reset()

	// Two failures leave one attempt within the default budget of three.
	bus.failNext(2)
	require.NoError(t, d.Play(NewCommand(PatternDetent, 1.0)))

	stats := d.Stats()
	assert.Equal(t, uint64(1), stats.Pulses)
	assert.Equal(t, uint64(2), stats.Retries)
	assert.Equal(t, uint64(2), stats.BusErrors)
	assert.False(t, d.Degraded())
}

func TestDriverDegradesAfterExhaustedRetries(t *testing.T) {
	t.Parallel()

	bus := newFakeBus()
	d := newTestDriver(t, bus, nil)
	require.NoError(t, d.Init())
	bus.reset()

	bus.failAlways()
	err := d.Play(NewCommand(PatternDetent, 1.0))
	require.Error(t, err)
	assert.True(t, d.Degraded())
	assert.Equal(t, uint64(DefaultAttempts), d.Stats().BusErrors)

	// Degraded commands are dropped without touching the bus.
	bus.reset()
	err = d.Play(NewCommand(PatternShutter, 1.0))
	assert.ErrorIs(t, err, ErrDegraded)
	assert.Empty(t, bus.recorded())
	assert.Equal(t, uint64(2), d.Stats().Dropped)
}

func TestDriverReprobeRevives(t *testing.T) {
	t.Parallel()

	bus := newFakeBus()
	clock := newFakeClock()
	d := newTestDriver(t, bus, clock)
	require.NoError(t, d.Init())

	bus.failAlways()
	require.Error(t, d.Play(NewCommand(PatternDetent, 1.0)))
	require.True(t, d.Degraded())
	bus.reset()

	// Within the probe interval commands are dropped without a probe.
	clock.Advance(10 * time.Second)
	assert.ErrorIs(t, d.Play(NewCommand(PatternDetent, 1.0)), ErrDegraded)
	assert.Empty(t, bus.recorded())

	// Past the interval the next command reprobes, revives, and plays.
	clock.Advance(25 * time.Second)
	require.NoError(t, d.Play(NewCommand(PatternShutter, 1.0)))
	assert.False(t, d.Degraded())

	writes := bus.recorded()
	require.Len(t, writes, 5)
	assert.Equal(t, regWrite{reg: DefaultRegisters.Mode, value: modeInternalTrigger}, writes[0])
	assert.Equal(t, regWrite{reg: DefaultRegisters.Library, value: DefaultLibrary}, writes[1])
	assert.Equal(t, regWrite{reg: DefaultRegisters.Go, value: 1}, writes[4])
	assert.Equal(t, uint64(1), d.Stats().Reprobes)
}

func TestDriverReprobeFailureStaysDegraded(t *testing.T) {
	t.Parallel()

	bus := newFakeBus()
	clock := newFakeClock()
	d := newTestDriver(t, bus, clock)
	require.NoError(t, d.Init())

	bus.failAlways()
	require.Error(t, d.Play(NewCommand(PatternDetent, 1.0)))

	clock.Advance(time.Minute)
	assert.ErrorIs(t, d.Play(NewCommand(PatternDetent, 1.0)), ErrDegraded)
	assert.True(t, d.Degraded())
	assert.Equal(t, uint64(1), d.Stats().Reprobes)

	// The failed probe restarts the interval: an immediate retry is dropped
	// without another probe.
	assert.ErrorIs(t, d.Play(NewCommand(PatternDetent, 1.0)), ErrDegraded)
	assert.Equal(t, uint64(1), d.Stats().Reprobes)
}

func TestDriverCloseParksActuator(t *testing.T) {
	t.Parallel()

	bus := newFakeBus()
	d := newTestDriver(t, bus, nil)
	require.NoError(t, d.Init())
	bus.reset()

	require.NoError(t, d.Close())
	assert.True(t, bus.closed)
	assert.Equal(t, []regWrite{{reg: DefaultRegisters.Mode, value: modeStandby}}, bus.recorded())
}

func TestDriverCloseSkipsStandbyWhenDegraded(t *testing.T) {
	t.Parallel()

	bus := newFakeBus()
	d := newTestDriver(t, bus, nil)
	require.NoError(t, d.Init())

	bus.failAlways()
	require.Error(t, d.Play(NewCommand(PatternDetent, 1.0)))
	bus.reset()

	require.NoError(t, d.Close())
	assert.True(t, bus.closed)
	assert.Empty(t, bus.recorded(), "standby write is skipped on a dead bus")
}
