// Package input turns raw GPIO edge notifications into encoder ticks and
// button events. The edge callback context hands records to a fixed-size
// single-producer single-consumer ring; a decode task drains the ring and
// publishes validated events, so decoding never runs in the callback
// context.
package input

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/smallnest/ringbuffer"
)

// Line identifies one monitored input line.
type Line uint8

const (
	LineA Line = iota
	LineB
	LineEncoderSW
	LineShutter
	lineCount
)

func (l Line) String() string {
	switch l {
	case LineA:
		return "a"
	case LineB:
		return "b"
	case LineEncoderSW:
		return "encoder_sw"
	case LineShutter:
		return "shutter"
	default:
		return "unknown"
	}
}

// Edge is one level change on a line. Nanos is a monotonic timestamp taken
// in the notification context; all debounce and velocity math uses these
// stamps, never the drain time. For encoder phase edges the producer
// samples BOTH phases at notification time: a lost or debounced edge then
// shows up as a two-bit jump the Gray table can reject.
type Edge struct {
	Line   Line
	High   bool
	LevelA bool
	LevelB bool
	Nanos  int64
}

// EdgeRecordSize is the fixed wire size of one edge in the ring.
const EdgeRecordSize = 16

// DefaultRingCapacity holds a burst of roughly two full revolutions of a
// 24-detent encoder with both phases bouncing.
const DefaultRingCapacity = 256

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func encodeEdge(buf *[EdgeRecordSize]byte, e Edge) {
	buf[0] = byte(e.Line)
	buf[1] = boolByte(e.High)
	buf[2] = boolByte(e.LevelA)
	buf[3] = boolByte(e.LevelB)
	binary.LittleEndian.PutUint64(buf[8:], uint64(e.Nanos))
}

func decodeEdge(buf *[EdgeRecordSize]byte) Edge {
	return Edge{
		Line:   Line(buf[0]),
		High:   buf[1] != 0,
		LevelA: buf[2] != 0,
		LevelB: buf[3] != 0,
		Nanos:  int64(binary.LittleEndian.Uint64(buf[8:])),
	}
}

// EdgeRing is the single-producer single-consumer handoff between the edge
// notification context and the decode task. Push is called only from the
// producer goroutine and Pop only from the consumer goroutine; the ring
// itself never blocks either side.
type EdgeRing struct {
	rb       *ringbuffer.RingBuffer
	capacity int
	dropped  atomic.Uint64
}

// NewEdgeRing sizes the ring for the given number of edge records.
// Non-positive capacities fall back to DefaultRingCapacity.
func NewEdgeRing(capacity int) *EdgeRing {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	return &EdgeRing{
		rb:       ringbuffer.New(capacity * EdgeRecordSize),
		capacity: capacity,
	}
}

// Push appends an edge. When the ring is full the edge is dropped and
// counted; the producer must never wait on the consumer.
func (r *EdgeRing) Push(e Edge) bool {
	// Whole records only: a partial write would shear the framing.
	if r.rb.Free() < EdgeRecordSize {
		r.dropped.Add(1)
		return false
	}
	var buf [EdgeRecordSize]byte
	encodeEdge(&buf, e)
	if _, err := r.rb.Write(buf[:]); err != nil {
		r.dropped.Add(1)
		return false
	}
	return true
}

// Pop removes the oldest edge. The second return is false when the ring
// is empty.
func (r *EdgeRing) Pop() (Edge, bool) {
	if r.rb.Length() < EdgeRecordSize {
		return Edge{}, false
	}
	var buf [EdgeRecordSize]byte
	if _, err := r.rb.Read(buf[:]); err != nil {
		return Edge{}, false
	}
	return decodeEdge(&buf), true
}

// Len returns the number of buffered edges.
func (r *EdgeRing) Len() int {
	return r.rb.Length() / EdgeRecordSize
}

// Capacity returns the ring capacity in edges.
func (r *EdgeRing) Capacity() int {
	return r.capacity
}

// Dropped returns the number of edges lost to a full ring.
func (r *EdgeRing) Dropped() uint64 {
	return r.dropped.Load()
}

// Utilization returns the current fill ratio.
func (r *EdgeRing) Utilization() float64 {
	return float64(r.Len()) / float64(r.capacity)
}
