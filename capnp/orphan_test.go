package capnp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrphan_DisownAdoptStruct(t *testing.T) {
	m := NewMessage()
	root, err := m.InitRoot(ObjectSize{PointerLength: 2})
	require.NoError(t, err)
	child, err := root.InitStruct(0, ObjectSize{DataByteLength: 8, PointerLength: 1})
	require.NoError(t, err)
	require.NoError(t, child.SetUint64(0, 11))
	require.NoError(t, child.SetText(0, "kept"))

	o, err := root.Disown(0)
	require.NoError(t, err)
	assert.False(t, root.HasPointer(0), "slot cleared")
	assert.False(t, o.IsNull())
	assert.Equal(t, StructPointer, o.Type())
	assert.Equal(t, ObjectSize{DataByteLength: 8, PointerLength: 1}, o.StructSize())

	view, err := o.Struct()
	require.NoError(t, err)
	assert.Equal(t, uint64(11), view.Uint64(0))

	require.NoError(t, root.Adopt(1, o))
	assert.True(t, o.Consumed())

	s, err := root.Struct(1, ObjectSize{DataByteLength: 8, PointerLength: 1}, Pointer{})
	require.NoError(t, err)
	assert.Equal(t, uint64(11), s.Uint64(0))
	text, err := s.Text(0, "")
	require.NoError(t, err)
	assert.Equal(t, "kept", text)

	require.ErrorIs(t, root.Adopt(0, o), ErrOrphanConsumed)
	require.ErrorIs(t, o.Dispose(), ErrOrphanConsumed)
	_, err = o.Struct()
	require.ErrorIs(t, err, ErrOrphanConsumed)
}

func TestOrphan_Lists(t *testing.T) {
	m := NewMessage()
	root, err := m.InitRoot(ObjectSize{PointerLength: 2})
	require.NoError(t, err)
	_, err = root.InitList(0, ElementFourBytes, 5, ObjectSize{})
	require.NoError(t, err)
	_, err = root.InitList(1, ElementComposite, 3, ObjectSize{DataByteLength: 8})
	require.NoError(t, err)

	prim, err := root.Disown(0)
	require.NoError(t, err)
	assert.Equal(t, ListPointer, prim.Type())
	assert.Equal(t, ElementFourBytes, prim.ElementSize())
	assert.Equal(t, 5, prim.Len())

	comp, err := root.Disown(1)
	require.NoError(t, err)
	assert.Equal(t, ElementComposite, comp.ElementSize())
	assert.Equal(t, 3, comp.Len(), "element count comes from the tag")

	l, err := comp.List()
	require.NoError(t, err)
	assert.Equal(t, 3, l.Len())
	_, err = comp.Struct()
	require.ErrorIs(t, err, ErrInvalidPointerType)

	// Swap the two lists.
	require.NoError(t, root.Adopt(0, comp))
	require.NoError(t, root.Adopt(1, prim))

	got, err := root.List(0, ElementComposite, ObjectSize{DataByteLength: 8}, Pointer{})
	require.NoError(t, err)
	assert.Equal(t, 3, got.Len())
	got, err = root.List(1, ElementFourBytes, ObjectSize{}, Pointer{})
	require.NoError(t, err)
	assert.Equal(t, 5, got.Len())
}

func TestOrphan_FarPointerPads(t *testing.T) {
	m := NewMessage(WithMultiSegment())
	root, err := m.InitRoot(fullRootSize)
	require.NoError(t, err)
	require.NoError(t, root.SetText(0, "far away"))

	p, err := root.Pointer(0)
	require.NoError(t, err)
	c, err := p.Content()
	require.NoError(t, err)
	require.True(t, c.Far)

	o, err := p.Disown()
	require.NoError(t, err)
	assert.True(t, c.PadSegment.isWordZero(c.PadOffset), "landing pad zeroed")
	assert.True(t, p.IsNull())

	require.NoError(t, p.Adopt(o))
	text, err := p.Text()
	require.NoError(t, err)
	assert.Equal(t, "far away", text)
}

func TestOrphan_Dispose(t *testing.T) {
	m := NewMessage()
	root, err := m.InitRoot(ObjectSize{PointerLength: 1})
	require.NoError(t, err)
	require.NoError(t, root.SetText(0, "secret"))

	o, err := root.Disown(0)
	require.NoError(t, err)
	seg, err := m.Segment(0)
	require.NoError(t, err)
	require.Contains(t, string(seg.Data()), "secret", "disown leaves content in place")

	require.NoError(t, o.Dispose())
	assert.True(t, o.Consumed())
	assert.NotContains(t, string(seg.Data()), "secret")
}

func TestOrphan_NewStructOrphan(t *testing.T) {
	m := NewMessage()
	o, err := m.NewStructOrphan(ObjectSize{DataByteLength: 4, PointerLength: 1})
	require.NoError(t, err)
	assert.Equal(t, ObjectSize{DataByteLength: 8, PointerLength: 1}, o.StructSize(), "data padded to a word")

	s, err := o.Struct()
	require.NoError(t, err)
	require.NoError(t, s.SetUint32(0, 123))
	require.NoError(t, s.SetText(0, "orphan"))

	rp, err := m.RootPointer()
	require.NoError(t, err)
	require.NoError(t, rp.Adopt(o))

	root, err := m.Root(ObjectSize{DataByteLength: 8, PointerLength: 1})
	require.NoError(t, err)
	assert.Equal(t, uint32(123), root.Uint32(0))
	text, err := root.Text(0, "")
	require.NoError(t, err)
	assert.Equal(t, "orphan", text)
}

func TestOrphan_NullAndCapability(t *testing.T) {
	m := NewMessage()
	root, err := m.InitRoot(ObjectSize{PointerLength: 2})
	require.NoError(t, err)
	require.NoError(t, root.SetInterface(1, 3))

	null, err := root.Disown(0)
	require.NoError(t, err)
	assert.True(t, null.IsNull())
	s, err := null.Struct()
	require.NoError(t, err)
	assert.False(t, s.IsValid())

	capOrphan, err := root.Disown(1)
	require.NoError(t, err)
	assert.Equal(t, OtherPointer, capOrphan.Type())
	assert.Equal(t, CapabilityID(3), capOrphan.CapabilityID())
	assert.False(t, root.HasPointer(1))

	require.NoError(t, root.Adopt(0, capOrphan))
	id, ok, err := root.Interface(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, CapabilityID(3), id)

	require.NoError(t, root.Adopt(0, null))
	assert.False(t, root.HasPointer(0), "adopting a null orphan clears the slot")
}

func TestOrphan_Errors(t *testing.T) {
	m := buildNumText(t)
	root, err := m.Root(sizeNumText)
	require.NoError(t, err)
	o, err := root.Disown(0)
	require.NoError(t, err)

	other := NewMessage()
	orp, err := other.InitRoot(ObjectSize{PointerLength: 1})
	require.NoError(t, err)
	require.ErrorIs(t, orp.Adopt(0, o), ErrAdoptWrongMessage)
	assert.False(t, o.Consumed())

	require.ErrorIs(t, root.Adopt(0, nil), ErrOrphanConsumed)

	wire, err := buildNumText(t).Marshal()
	require.NoError(t, err)
	ro, err := Unmarshal(wire, WithReadOnly())
	require.NoError(t, err)
	rr, err := ro.Root(sizeNumText)
	require.NoError(t, err)
	_, err = rr.Disown(0)
	require.ErrorIs(t, err, ErrReadOnly)
}
