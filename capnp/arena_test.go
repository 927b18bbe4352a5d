package capnp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleSegmentArena_Allocate(t *testing.T) {
	a, err := NewSingleSegmentArena(nil)
	require.NoError(t, err)
	require.Equal(t, 0, a.NumSegments(), "empty arena has no segments")

	_, err = a.Buffer(0)
	require.ErrorIs(t, err, ErrSegmentOutOfBounds)

	alloc, err := a.Allocate(10, nil)
	require.NoError(t, err)
	assert.Equal(t, SegmentID(0), alloc.ID)
	assert.Len(t, alloc.Buffer, 4096, "growth is at least 4096 bytes")
	assert.Equal(t, 1, a.NumSegments())

	alloc, err = a.Allocate(5001, nil)
	require.NoError(t, err)
	assert.Equal(t, SegmentID(0), alloc.ID)
	assert.Len(t, alloc.Buffer, 4096+5008, "growth pads the request to a word")

	_, err = a.Buffer(1)
	require.ErrorIs(t, err, ErrSegmentOutOfBounds)
}

func TestSingleSegmentArena_GrowthKeepsContent(t *testing.T) {
	m := NewMessage()
	seg, err := m.Segment(0)
	require.NoError(t, err)

	seg.SetUint64(0, 0xdeadbeefcafef00d)
	a := m.arena.(*SingleSegmentArena)
	alloc, err := a.Allocate(16, m.segments)
	require.NoError(t, err)
	require.Len(t, alloc.Buffer, 8192)
	assert.Equal(t, uint64(0xdeadbeefcafef00d), readU64(alloc.Buffer, 0), "prefix copied into new buffer")
}

func TestSingleSegmentArena_RejectsUnaligned(t *testing.T) {
	_, err := NewSingleSegmentArena(make([]byte, 12))
	require.ErrorIs(t, err, ErrNotWordAligned)
}

func TestMultiSegmentArena_Allocate(t *testing.T) {
	a, err := NewMultiSegmentArena(nil)
	require.NoError(t, err)
	require.Equal(t, 0, a.NumSegments())

	first, err := a.Allocate(10, nil)
	require.NoError(t, err)
	assert.Equal(t, SegmentID(0), first.ID)
	assert.Len(t, first.Buffer, 4096)

	second, err := a.Allocate(10001, nil)
	require.NoError(t, err)
	assert.Equal(t, SegmentID(1), second.ID)
	assert.Len(t, second.Buffer, 10008)
	assert.Equal(t, 2, a.NumSegments())

	b, err := a.Buffer(1)
	require.NoError(t, err)
	assert.Len(t, b, 10008)

	_, err = a.Buffer(2)
	require.ErrorIs(t, err, ErrSegmentOutOfBounds)
}

func TestMultiSegmentArena_RejectsUnaligned(t *testing.T) {
	_, err := NewMultiSegmentArena([][]byte{make([]byte, 8), make([]byte, 9)})
	require.ErrorIs(t, err, ErrNotWordAligned)
}

// shortArena hands out buffers smaller than requested.
type shortArena struct{ MultiSegmentArena }

func (a *shortArena) Allocate(minSize int, segments []*Segment) (ArenaAllocation, error) {
	alloc, err := a.MultiSegmentArena.Allocate(8, segments)
	alloc.Buffer = alloc.Buffer[:8]
	return alloc, err
}

func TestMessage_ShortArenaAllocation(t *testing.T) {
	m := NewMessage(WithArena(&shortArena{}))
	_, err := m.InitRoot(ObjectSize{DataByteLength: 64})
	require.ErrorIs(t, err, ErrArenaShortAllocation)
}
