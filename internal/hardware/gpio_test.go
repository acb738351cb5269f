package hardware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"

	"github.com/insolesplug-ops/selimcam/internal/input"
)

func TestPressedFromLevel(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name      string
		level     gpio.Level
		activeLow bool
		want      bool
	}{
		{name: "button_pressed_reads_low", level: gpio.Low, activeLow: true, want: true},
		{name: "button_released_reads_high", level: gpio.High, activeLow: true, want: false},
		{name: "encoder_phase_high", level: gpio.High, activeLow: false, want: true},
		{name: "encoder_phase_low", level: gpio.Low, activeLow: false, want: false},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, pressedFromLevel(tc.level, tc.activeLow))
		})
	}
}

// TestActiveLowButtonClickDecodes replays a short click exactly as the
// watcher samples it from the pull-up wiring: the wire drops to low on
// press and returns to high on release. The normalized edges must yield
// one ButtonDown at press, one ButtonUp at release, and no long press
// after the button is back up.
func TestActiveLowButtonClickDecodes(t *testing.T) {
	t.Parallel()

	const (
		debounce  = 10 * time.Millisecond
		longPress = 500 * time.Millisecond
	)
	tracker := input.NewButtonTracker(debounce, longPress)

	press := int64(0)
	release := press + (100 * time.Millisecond).Nanoseconds()

	tracker.Edge(pressedFromLevel(gpio.Low, true), press)
	changes := tracker.Poll(press + debounce.Nanoseconds())
	require.Len(t, changes, 1)
	assert.Equal(t, input.ButtonActionDown, changes[0].Action)
	assert.True(t, tracker.Pressed())

	tracker.Edge(pressedFromLevel(gpio.High, true), release)
	changes = tracker.Poll(release + debounce.Nanoseconds())
	require.Len(t, changes, 1)
	assert.Equal(t, input.ButtonActionUp, changes[0].Action)
	assert.Equal(t, 100*time.Millisecond, changes[0].Held)
	assert.False(t, tracker.Pressed())

	// Well past the long-press threshold with the button up: nothing may
	// fire.
	assert.Empty(t, tracker.Poll(release+(2*longPress).Nanoseconds()))
}

// TestActiveLowButtonHoldFiresLongPressWhileDown pins the long press to
// the held period of the normalized level, not to the release.
func TestActiveLowButtonHoldFiresLongPressWhileDown(t *testing.T) {
	t.Parallel()

	const (
		debounce  = 10 * time.Millisecond
		longPress = 500 * time.Millisecond
	)
	tracker := input.NewButtonTracker(debounce, longPress)

	tracker.Edge(pressedFromLevel(gpio.Low, true), 0)
	changes := tracker.Poll(debounce.Nanoseconds())
	require.Len(t, changes, 1)
	require.Equal(t, input.ButtonActionDown, changes[0].Action)

	changes = tracker.Poll(longPress.Nanoseconds())
	require.Len(t, changes, 1)
	assert.Equal(t, input.ButtonActionLongPress, changes[0].Action)
	assert.True(t, tracker.Pressed(), "long press fires while physically held")
}
