package walker

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/capnkit/capnp"
	"github.com/joshuapare/capnkit/internal/format"
)

var fullRootSize = capnp.ObjectSize{DataByteLength: 4080, PointerLength: 1}

func TestCounter_Sample(t *testing.T) {
	m := buildSample(t)
	stats, err := NewCounter(m).Count(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(1), stats.Structs)
	assert.Equal(t, uint64(4), stats.Lists)
	assert.Equal(t, uint64(1), stats.CompositeLists)
	assert.Equal(t, uint64(3), stats.Texts)
	assert.Equal(t, uint64(1), stats.Capabilities)
	assert.Zero(t, stats.FarPointers)
	assert.Equal(t, 2, stats.MaxDepth)

	// root pointer + root struct + "hello" + composite list + "a" + "b"
	assert.Equal(t, uint64(1+4+1+5+1+1), stats.ReachableWords)
	assert.Equal(t, stats.ReachableWords, stats.AllocatedWords)
	assert.Zero(t, stats.UnreachableWords())
	assert.Contains(t, stats.String(), "Reachable: 13")
}

func TestCounter_ErasedContentIsUnreachable(t *testing.T) {
	m := buildSample(t)
	root, err := m.Root(rootSize)
	require.NoError(t, err)
	require.NoError(t, root.ErasePointer(0))

	c := NewCounter(m)
	stats, err := c.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(12), stats.ReachableWords)
	assert.Equal(t, uint64(13), stats.AllocatedWords)
	assert.Equal(t, uint64(1), stats.UnreachableWords())
	assert.False(t, c.Reachable(0).Contains(5), "the erased text word is a hole")
}

func TestCounter_AliasedContentCountedOnce(t *testing.T) {
	m := unmarshalWords(t,
		format.EncodeStruct(0, 0, 2),
		format.EncodeList(1, uint8(capnp.ElementByte), 4),
		format.EncodeList(0, uint8(capnp.ElementByte), 4),
		uint64('a')|uint64('b')<<8|uint64('c')<<16,
	)

	stats, err := NewCounter(m).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.Lists)
	assert.Equal(t, uint64(2), stats.Texts)
	assert.Equal(t, uint64(4), stats.ReachableWords)
	assert.Equal(t, uint64(4), stats.AllocatedWords)
}

func TestCounter_FarPointer(t *testing.T) {
	m := capnp.NewMessage(capnp.WithMultiSegment())
	root, err := m.InitRoot(fullRootSize)
	require.NoError(t, err)
	require.NoError(t, root.SetText(0, "far away"))

	c := NewCounter(m)
	stats, err := c.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.FarPointers)
	assert.Zero(t, stats.DoubleFars)
	assert.Equal(t, uint64(1), stats.Texts)

	// Segment 1 holds the text and its landing pad.
	assert.Equal(t, uint64(3), c.Reachable(1).GetCardinality())
	assert.Equal(t, uint64(512+3), stats.ReachableWords)
	assert.Zero(t, stats.UnreachableWords())
}

func TestCounter_DoubleFarPointer(t *testing.T) {
	m := capnp.NewMessage(capnp.WithMultiSegment())
	root, err := m.InitRoot(fullRootSize)
	require.NoError(t, err)
	require.NoError(t, root.SetData(0, bytes.Repeat([]byte{1, 2, 3, 4, 5, 6, 7, 8}, 512)))

	c := NewCounter(m)
	stats, err := c.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.FarPointers)
	assert.Equal(t, uint64(1), stats.DoubleFars)
	assert.Zero(t, stats.Texts)
	assert.Equal(t, uint64(512), c.Reachable(1).GetCardinality())
	assert.Equal(t, uint64(2), c.Reachable(2).GetCardinality())
	assert.Equal(t, uint64(512+512+2), stats.ReachableWords)
}

func TestCounter_EmptyMessage(t *testing.T) {
	stats, err := NewCounter(capnp.NewMessage()).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.ReachableWords, "the root pointer word")
	assert.Equal(t, uint64(1), stats.AllocatedWords)
	assert.Zero(t, stats.Structs)
}
