package input

// grayTable maps (previous AB state, current AB state) to a position
// delta. Zero for a changed state marks a transition that skips a Gray
// step, which only contact bounce can produce; those are discarded
// without touching the position.
var grayTable = [4][4]int8{
	{0, 1, -1, 0},
	{-1, 0, 0, 1},
	{1, 0, 0, -1},
	{0, -1, 1, 0},
}

// Quadrature tracks the two-phase encoder state and absolute position.
type Quadrature struct {
	state    uint8
	position int64
	primed   bool
}

func abState(a, b bool) uint8 {
	var s uint8
	if a {
		s |= 2
	}
	if b {
		s |= 1
	}
	return s
}

// Apply feeds the current (A, B) levels after an edge. It returns the
// position delta and whether the transition was valid. The first call
// only latches the starting state.
func (q *Quadrature) Apply(a, b bool) (delta int8, valid bool) {
	next := abState(a, b)
	if !q.primed {
		q.primed = true
		q.state = next
		return 0, true
	}
	if next == q.state {
		return 0, true
	}
	delta = grayTable[q.state][next]
	// Latch the observed state either way: after a bounce skip the
	// contacts really are at next, and decoding resumes from there.
	q.state = next
	if delta == 0 {
		return 0, false
	}
	q.position += int64(delta)
	return delta, true
}

// Position returns the absolute position in quadrature steps.
func (q *Quadrature) Position() int64 {
	return q.position
}
