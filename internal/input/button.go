package input

import "time"

// Button debounce defaults. A press shorter than the stable-hold window
// is chatter and never surfaces.
const (
	DefaultButtonDebounce = 15 * time.Millisecond
	DefaultLongPress      = 500 * time.Millisecond
)

// ButtonAction is a recognized button state change.
type ButtonAction uint8

const (
	ButtonActionDown ButtonAction = iota
	ButtonActionUp
	ButtonActionLongPress
)

// ButtonChange is one recognized action. Held is populated for Up only.
type ButtonChange struct {
	Action ButtonAction
	Held   time.Duration
}

// ButtonTracker debounces one push input. A raw level change becomes a
// candidate; the candidate commits only after holding for the debounce
// window with no further edge. A committed press that stays held past the
// long-press threshold fires a single long-press at the crossing; release
// before the threshold is a short press. Not safe for concurrent use.
type ButtonTracker struct {
	debounce  int64
	longPress int64

	stable         bool // committed level, true while pressed
	pending        bool
	candidate      bool
	candidateNanos int64
	pressedNanos   int64
	longFired      bool
}

// NewButtonTracker builds a tracker. Non-positive windows fall back to
// the defaults.
func NewButtonTracker(debounce, longPress time.Duration) *ButtonTracker {
	if debounce <= 0 {
		debounce = DefaultButtonDebounce
	}
	if longPress <= 0 {
		longPress = DefaultLongPress
	}
	return &ButtonTracker{
		debounce:  debounce.Nanoseconds(),
		longPress: longPress.Nanoseconds(),
	}
}

// Edge feeds a raw level change. pressed must already be normalized so
// that true means the button is physically down.
func (b *ButtonTracker) Edge(pressed bool, nanos int64) {
	if pressed == b.stable {
		// Bounced back to the committed level before the window closed.
		b.pending = false
		return
	}
	b.pending = true
	b.candidate = pressed
	b.candidateNanos = nanos
}

// Poll advances time and returns the actions recognized since the last
// call, in order.
func (b *ButtonTracker) Poll(nanos int64) []ButtonChange {
	var out []ButtonChange

	if b.pending && nanos-b.candidateNanos >= b.debounce {
		b.pending = false
		b.stable = b.candidate
		if b.stable {
			b.pressedNanos = b.candidateNanos
			b.longFired = false
			out = append(out, ButtonChange{Action: ButtonActionDown})
		} else {
			held := time.Duration(b.candidateNanos - b.pressedNanos)
			out = append(out, ButtonChange{Action: ButtonActionUp, Held: held})
		}
	}

	if b.stable && !b.longFired && nanos-b.pressedNanos >= b.longPress {
		b.longFired = true
		out = append(out, ButtonChange{Action: ButtonActionLongPress})
	}
	return out
}

// Pressed reports the committed level.
func (b *ButtonTracker) Pressed() bool {
	return b.stable
}
