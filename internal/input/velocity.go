package input

import (
	"math"
	"time"
)

// Velocity smoothing parameters. The new-sample weight keeps single fast
// flicks from spiking the estimate; the decay half-life pulls the
// estimate to zero once rotation stops.
const (
	DefaultVelocityWeight = 0.2
	DefaultVelocityDecay  = 200 * time.Millisecond
)

// VelocityTracker maintains an exponentially weighted ticks-per-second
// estimate of encoder rotation. Not safe for concurrent use; the decode
// task owns it.
type VelocityTracker struct {
	weight     float64
	decayAfter int64 // nanos
	rate       float64
	lastNanos  int64
	haveTick   bool
}

// NewVelocityTracker builds a tracker. Out-of-range weights and
// non-positive decays fall back to the defaults.
func NewVelocityTracker(weight float64, decayAfter time.Duration) *VelocityTracker {
	if weight <= 0 || weight > 1 {
		weight = DefaultVelocityWeight
	}
	if decayAfter <= 0 {
		decayAfter = DefaultVelocityDecay
	}
	return &VelocityTracker{
		weight:     weight,
		decayAfter: decayAfter.Nanoseconds(),
	}
}

// Tick folds an accepted encoder tick at the given monotonic time into
// the estimate and returns the updated rate.
func (v *VelocityTracker) Tick(nanos int64) float64 {
	if !v.haveTick {
		v.haveTick = true
		v.lastNanos = nanos
		return v.rate
	}
	dt := nanos - v.lastNanos
	if dt <= 0 {
		return v.rate
	}
	sample := float64(time.Second) / float64(dt)
	v.rate = v.weight*sample + (1-v.weight)*v.rate
	v.lastNanos = nanos
	return v.rate
}

// At returns the estimate at the given time. Past the decay window the
// rate halves for every further window elapsed, so a stopped encoder
// reads as (near) zero instead of freezing at its last speed.
func (v *VelocityTracker) At(nanos int64) float64 {
	if !v.haveTick || v.rate == 0 {
		return 0
	}
	elapsed := nanos - v.lastNanos
	if elapsed <= v.decayAfter {
		return v.rate
	}
	halvings := float64(elapsed-v.decayAfter) / float64(v.decayAfter)
	return v.rate * math.Pow(0.5, halvings)
}

// Reset clears the estimate.
func (v *VelocityTracker) Reset() {
	v.rate = 0
	v.haveTick = false
}
