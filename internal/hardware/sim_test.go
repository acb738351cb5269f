package hardware

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/insolesplug-ops/selimcam/internal/input"
)

func TestDetentScriptWalksValidGrayPath(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name      string
		clockwise bool
		want      int64
	}{
		{name: "clockwise", clockwise: true, want: 8},
		{name: "counter_clockwise", clockwise: false, want: -8},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			script := DetentScript(2, tc.clockwise, time.Millisecond)
			require.Len(t, script, 8)

			var q input.Quadrature
			for _, step := range script {
				_, valid := q.Apply(step.Edge.LevelA, step.Edge.LevelB)
				assert.True(t, valid, "scripted edge must be a valid transition")
			}
			assert.Equal(t, tc.want, q.Position())
		})
	}
}

func TestDetentScriptEdgeLevelsMatchMovedLine(t *testing.T) {
	t.Parallel()

	for _, step := range DetentScript(1, true, time.Millisecond) {
		switch step.Edge.Line {
		case input.LineA:
			assert.Equal(t, step.Edge.LevelA, step.Edge.High)
		case input.LineB:
			assert.Equal(t, step.Edge.LevelB, step.Edge.High)
		default:
			t.Fatalf("unexpected line %v in detent script", step.Edge.Line)
		}
	}
}

func TestSimEdgeSourceReplaysScriptIntoRing(t *testing.T) {
	defer goleak.VerifyNone(t)

	ring := input.NewEdgeRing(64)
	src := NewSimEdgeSource(ring, DetentScript(1, true, 0), false, nil)

	var wg sync.WaitGroup
	quit := make(chan struct{})
	src.Start(&wg, quit)

	require.Eventually(t, func() bool {
		return src.Replayed() == 4
	}, time.Second, time.Millisecond)

	close(quit)
	wg.Wait()

	assert.Equal(t, 4, ring.Len())
	last := int64(0)
	for {
		e, ok := ring.Pop()
		if !ok {
			break
		}
		assert.GreaterOrEqual(t, e.Nanos, last, "replay stamps must be monotonic")
		last = e.Nanos
	}
	require.NoError(t, src.Close())
}

func TestSimEdgeSourceEmptyScriptIsSilent(t *testing.T) {
	defer goleak.VerifyNone(t)

	ring := input.NewEdgeRing(8)
	src := NewSimEdgeSource(ring, nil, false, nil)

	var wg sync.WaitGroup
	quit := make(chan struct{})
	src.Start(&wg, quit)

	time.Sleep(10 * time.Millisecond)
	close(quit)
	wg.Wait()

	assert.Zero(t, ring.Len())
}

func TestButtonScriptPressRelease(t *testing.T) {
	t.Parallel()

	script := ButtonScript(input.LineShutter, 50*time.Millisecond)
	require.Len(t, script, 2)
	assert.True(t, script[0].Edge.High)
	assert.False(t, script[1].Edge.High)
	assert.Equal(t, input.LineShutter, script[1].Edge.Line)
	assert.Equal(t, 50*time.Millisecond, script[1].After)
}

func TestSimRegisterBusRecordsWrites(t *testing.T) {
	t.Parallel()

	bus := NewSimRegisterBus()
	require.NoError(t, bus.WriteRegister(0x01, 0x00))
	require.NoError(t, bus.WriteRegister(0x0C, 0x01))

	writes := bus.Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, RegisterWrite{Register: 0x01, Value: 0x00}, writes[0])
	assert.Equal(t, RegisterWrite{Register: 0x0C, Value: 0x01}, writes[1])
}

func TestSimRegisterBusFailureInjection(t *testing.T) {
	t.Parallel()

	bus := NewSimRegisterBus()
	bus.FailNext(2)
	assert.Error(t, bus.WriteRegister(0x04, 1))
	assert.Error(t, bus.WriteRegister(0x04, 1))
	assert.NoError(t, bus.WriteRegister(0x04, 1))
	assert.Len(t, bus.Writes(), 1)

	bus.SetFailing(true)
	assert.Error(t, bus.WriteRegister(0x04, 1))
	assert.Error(t, bus.WriteRegister(0x04, 1))
	bus.SetFailing(false)
	assert.NoError(t, bus.WriteRegister(0x04, 1))
}
