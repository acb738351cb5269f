package input

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEdgeRingRoundTrip(t *testing.T) {
	t.Parallel()

	r := NewEdgeRing(8)
	in := []Edge{
		{Line: LineA, High: true, LevelA: true, Nanos: 1_000_000},
		{Line: LineB, High: false, LevelA: true, LevelB: false, Nanos: 2_500_000},
		{Line: LineShutter, High: true, Nanos: int64(3 * time.Second)},
	}
	for _, e := range in {
		require.True(t, r.Push(e))
	}
	assert.Equal(t, 3, r.Len())

	for _, want := range in {
		got, ok := r.Pop()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	_, ok := r.Pop()
	assert.False(t, ok)
}

func TestEdgeRingDropsNewestWhenFull(t *testing.T) {
	t.Parallel()

	r := NewEdgeRing(4)
	for i := 0; i < 4; i++ {
		require.True(t, r.Push(Edge{Line: LineA, Nanos: int64(i)}))
	}

	assert.False(t, r.Push(Edge{Line: LineA, Nanos: 99}))
	assert.Equal(t, uint64(1), r.Dropped())
	assert.Equal(t, 4, r.Len())

	// The buffered edges are the oldest four, untouched by the drop.
	first, ok := r.Pop()
	require.True(t, ok)
	assert.Equal(t, int64(0), first.Nanos)
}

func TestEdgeRingUtilization(t *testing.T) {
	t.Parallel()

	r := NewEdgeRing(4)
	assert.Zero(t, r.Utilization())
	r.Push(Edge{Line: LineA})
	r.Push(Edge{Line: LineB})
	assert.InDelta(t, 0.5, r.Utilization(), 1e-9)
	assert.Equal(t, 4, r.Capacity())
}

func TestEdgeRingZeroCapacityFallsBack(t *testing.T) {
	t.Parallel()

	r := NewEdgeRing(0)
	assert.Equal(t, DefaultRingCapacity, r.Capacity())
}

func TestEdgeRecordCodec(t *testing.T) {
	t.Parallel()

	var buf [EdgeRecordSize]byte
	e := Edge{Line: LineEncoderSW, High: true, LevelA: true, LevelB: false, Nanos: 0x1122334455667788}
	encodeEdge(&buf, e)
	assert.Equal(t, e, decodeEdge(&buf))
}
