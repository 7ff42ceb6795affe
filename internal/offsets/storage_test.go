package offsets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndAtRoundTrip(t *testing.T) {
	s := New()
	var want []uint64
	var off uint64
	for i := 0; i < 3000; i++ {
		off += uint64(1 + i%200)
		want = append(want, off)
		s.Append(off)
	}
	require.Equal(t, len(want), s.Len())
	for i, w := range want {
		assert.Equal(t, w, s.At(i), "index %d", i)
	}
}

func TestAtCursorSequentialAndRandom(t *testing.T) {
	s := New()
	var want []uint64
	var off uint64
	for i := 0; i < 1000; i++ {
		off += uint64(10 + i)
		want = append(want, off)
		s.Append(off)
	}

	c := s.NewCursor()
	for i, w := range want {
		assert.Equal(t, w, s.AtCursor(c, i))
	}

	// random access through the same cursor must still be correct
	for _, i := range []int{500, 10, 999, 0, 250} {
		assert.Equal(t, want[i], s.AtCursor(c, i))
	}
}

func TestBlockBoundaryPopBack(t *testing.T) {
	s := New()
	for i := 0; i < BlockSize; i++ {
		s.Append(uint64((i + 1) * 10))
	}
	require.Equal(t, 1, len(s.pool32))
	s.Append(uint64((BlockSize + 1) * 10))
	require.Equal(t, 2, len(s.pool32))

	// popping the lone entry of the freshly allocated block frees it
	s.PopBack()
	assert.Equal(t, 1, len(s.pool32))
	assert.Equal(t, BlockSize, s.Len())
}

func TestPopBackMidBlock(t *testing.T) {
	s := New()
	offs := []uint64{5, 12, 140, 20000, 20005}
	for _, o := range offs {
		s.Append(o)
	}
	s.PopBack()
	require.Equal(t, len(offs)-1, s.Len())
	for i := 0; i < s.Len(); i++ {
		assert.Equal(t, offs[i], s.At(i))
	}
}

func Test64BitFallbackForLongLines(t *testing.T) {
	s := New()
	s.Append(10)
	s.Append(1 << 33) // forces the 64-bit pool
	s.Append((1 << 33) + 100)

	assert.Equal(t, 1, s.FirstLongLine())
	assert.Equal(t, uint64(10), s.At(0))
	assert.Equal(t, uint64(1<<33), s.At(1))
	assert.Equal(t, uint64((1<<33)+100), s.At(2))
}

func TestAbsoluteFallbackForPathologicalDelta(t *testing.T) {
	s := New()
	s.Append(0)
	s.Append(1 << 20) // delta far exceeds the 14-bit relative range
	assert.Equal(t, uint64(0), s.At(0))
	assert.Equal(t, uint64(1<<20), s.At(1))
}

func TestAppendList(t *testing.T) {
	s := New()
	batch := []uint64{1, 5, 9, 1000, 1001}
	s.AppendList(batch)
	require.Equal(t, len(batch), s.Len())
	for i, w := range batch {
		assert.Equal(t, w, s.At(i))
	}
}
