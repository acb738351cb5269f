package haptic

// Curve maps encoder velocity to detent amplitude. Slow turns get full
// strength; fast spins fade toward Floor so the actuator does not buzz
// continuously while the user scrubs through a long list.
type Curve struct {
	// FullSpeed is the velocity (detents per second) up to which detents
	// play at full amplitude.
	FullSpeed float64
	// Falloff is the velocity span over which amplitude fades from full
	// to Floor.
	Falloff float64
	// Floor is the minimum amplitude. Detents never vanish entirely.
	Floor float64
}

// DefaultCurve matches a 24-detent encoder turned by thumb.
var DefaultCurve = Curve{FullSpeed: 2.0, Falloff: 8.0, Floor: 0.3}

// Amplitude returns the detent amplitude for the given velocity in
// detents per second. The result is in [Floor, 1].
func (c Curve) Amplitude(velocity float64) float64 {
	if velocity < 0 {
		velocity = -velocity
	}
	falloff := c.Falloff
	if falloff <= 0 {
		falloff = DefaultCurve.Falloff
	}
	a := 1.0 - (velocity-c.FullSpeed)/falloff
	if a > 1.0 {
		a = 1.0
	}
	floor := c.Floor
	if floor < 0 {
		floor = 0
	}
	if a < floor {
		a = floor
	}
	return a
}
