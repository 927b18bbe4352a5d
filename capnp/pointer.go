package capnp

import (
	"fmt"

	"github.com/joshuapare/capnkit/internal/format"
)

// PointerType is the kind encoded in the low two bits of a pointer word.
type PointerType uint8

const (
	StructPointer PointerType = format.PointerStruct
	ListPointer   PointerType = format.PointerList
	FarPointer    PointerType = format.PointerFar
	OtherPointer  PointerType = format.PointerOther
)

func (t PointerType) String() string {
	switch t {
	case StructPointer:
		return "struct"
	case ListPointer:
		return "list"
	case FarPointer:
		return "far"
	case OtherPointer:
		return "other"
	default:
		return fmt.Sprintf("PointerType(%d)", uint8(t))
	}
}

// CapabilityID indexes the capability table that travels alongside a message.
type CapabilityID uint32

// Pointer is a view of one pointer slot: the root, a field of a struct's
// pointer section or an element of a pointer list. Pointers are cheap values
// that must not outlive their Message.
//
// Constructing a Pointer charges the message's traversal budget and
// requires a positive depth.
type Pointer struct {
	seg   *Segment
	off   int
	depth int
}

func newPointer(seg *Segment, off, depth int) (Pointer, error) {
	if depth < 1 {
		return Pointer{}, ErrDepthLimit
	}
	if err := seg.msg.charge(); err != nil {
		return Pointer{}, err
	}
	if off < 0 || off+format.PointerSize > seg.used {
		return Pointer{}, fmt.Errorf("%w: pointer at %d in segment %d of %d bytes", ErrPointerOutOfRange, off, seg.id, seg.used)
	}
	return Pointer{seg: seg, off: off, depth: depth}, nil
}

// IsValid reports whether p refers to a slot at all. The zero Pointer does not.
func (p Pointer) IsValid() bool { return p.seg != nil }

// Segment returns the segment holding the pointer word.
func (p Pointer) Segment() *Segment { return p.seg }

// Offset returns the byte offset of the pointer word within its segment.
func (p Pointer) Offset() int { return p.off }

// Depth returns the remaining nesting budget of p.
func (p Pointer) Depth() int { return p.depth }

// Message returns the owning message, or nil for the zero Pointer.
func (p Pointer) Message() *Message {
	if p.seg == nil {
		return nil
	}
	return p.seg.msg
}

// Word returns the raw pointer word.
func (p Pointer) Word() uint64 {
	if p.seg == nil {
		return 0
	}
	return p.seg.word(p.off)
}

// IsNull reports whether the pointer word is zero.
func (p Pointer) IsNull() bool { return p.Word() == 0 }

// Type returns the kind of the pointer word itself (FarPointer for far pointers).
func (p Pointer) Type() PointerType { return PointerType(format.Kind(p.Word())) }

// IsFar reports whether the pointer is a far pointer.
func (p Pointer) IsFar() bool { return p.Type() == FarPointer }

// IsDoubleFar reports whether the pointer is a far pointer with a two-word landing pad.
func (p Pointer) IsDoubleFar() bool {
	w := p.Word()
	return format.Kind(w) == format.PointerFar && format.IsDoubleFar(w)
}

// Content describes where a pointer's content lives after far pointers are
// followed.
type Content struct {
	Type      PointerType // StructPointer, ListPointer or OtherPointer; zero for null
	Null      bool
	Segment   *Segment
	Offset    int // first content byte; the tag word for composite lists
	Words     int // content length including the composite tag word
	Far       bool
	DoubleFar bool

	PadSegment *Segment
	PadOffset  int
	PadWords   int
}

// Content resolves p and describes its content.
func (p Pointer) Content() (Content, error) {
	if p.seg == nil {
		return Content{Null: true}, nil
	}
	t, err := p.resolve()
	if err != nil {
		return Content{}, err
	}
	c := Content{
		Type:       PointerType(t.kind()),
		Null:       t.isNull(),
		Far:        p.IsFar(),
		DoubleFar:  p.IsDoubleFar(),
		PadSegment: t.padSeg,
		PadOffset:  t.padOff,
		PadWords:   t.padWords,
	}
	if !c.Null && c.Type != OtherPointer {
		c.Segment = t.seg
		c.Offset = t.off
		c.Words = t.contentWords()
	}
	return c, nil
}

// Struct returns the struct p refers to without modifying the message. A
// null pointer yields the null Struct, whose getters return defaults.
func (p Pointer) Struct() (Struct, error) {
	if p.seg == nil {
		return Struct{}, nil
	}
	t, err := p.resolve()
	if err != nil {
		return Struct{}, err
	}
	if t.isNull() {
		return Struct{}, nil
	}
	if t.kind() != format.PointerStruct {
		return Struct{}, fmt.Errorf("%w: want struct, have %s", ErrInvalidPointerType, PointerType(t.kind()))
	}
	return structView(t, p), nil
}

// List returns the list p refers to without modifying the message. A null
// pointer yields an empty list.
func (p Pointer) List() (List, error) {
	if p.seg == nil {
		return List{}, nil
	}
	t, err := p.resolve()
	if err != nil {
		return List{}, err
	}
	if t.isNull() {
		return List{}, nil
	}
	if t.kind() != format.PointerList {
		return List{}, fmt.Errorf("%w: want list, have %s", ErrInvalidPointerType, PointerType(t.kind()))
	}
	return listView(t), nil
}

// Interface returns the capability index of an interface pointer; ok is
// false for a null pointer.
func (p Pointer) Interface() (id CapabilityID, ok bool, err error) {
	if p.seg == nil {
		return 0, false, nil
	}
	t, err := p.resolve()
	if err != nil {
		return 0, false, err
	}
	if t.isNull() {
		return 0, false, nil
	}
	if t.kind() != format.PointerOther {
		return 0, false, fmt.Errorf("%w: want capability, have %s", ErrInvalidPointerType, PointerType(t.kind()))
	}
	return CapabilityID(format.CapabilityID(t.word)), true, nil
}

func (p Pointer) writable() error {
	if p.seg == nil {
		return ErrNullStruct
	}
	if p.seg.msg.readOnly {
		return ErrReadOnly
	}
	return nil
}

// InitStruct erases the current content and points p at a new zeroed struct.
func (p Pointer) InitStruct(size ObjectSize) (Struct, error) {
	if err := p.writable(); err != nil {
		return Struct{}, err
	}
	if err := size.validate(); err != nil {
		return Struct{}, err
	}
	if err := eraseSlot(p); err != nil {
		return Struct{}, err
	}

	size = size.Padded()
	cseg, coff, err := p.seg.allocate(size.ByteLength())
	if err != nil {
		return Struct{}, fmt.Errorf("init struct %s: %w", size, err)
	}
	if err := writeContent(p.seg, p.off, structWord(size), cseg, coff); err != nil {
		return Struct{}, err
	}
	return Struct{seg: cseg, off: coff, size: size, depth: p.depth - 1, slot: p}, nil
}

// InitList erases the current content and points p at a new zeroed list of
// n elements. compositeSize is the element size of composite lists and is
// ignored otherwise.
func (p Pointer) InitList(elem ListElementSize, n int, compositeSize ObjectSize) (List, error) {
	if err := p.writable(); err != nil {
		return List{}, err
	}
	if elem > ElementComposite {
		return List{}, fmt.Errorf("%w: %d", ErrInvalidElementSize, elem)
	}
	if n < 0 || n > format.MaxListCount {
		return List{}, fmt.Errorf("%w: %d elements", ErrObjectTooLarge, n)
	}

	if elem == ElementComposite {
		return p.initCompositeList(n, compositeSize)
	}

	if err := eraseSlot(p); err != nil {
		return List{}, err
	}
	words := listContentWords(elem, n)
	cseg, coff, err := p.seg.allocate(words * format.WordSize)
	if err != nil {
		return List{}, fmt.Errorf("init list of %d %s: %w", n, elem, err)
	}
	w := format.EncodeList(0, uint8(elem), uint32(n))
	if err := writeContent(p.seg, p.off, w, cseg, coff); err != nil {
		return List{}, err
	}
	return List{seg: cseg, off: coff, length: n, elem: elem, size: primitiveSize(elem), depth: p.depth - 1}, nil
}

func (p Pointer) initCompositeList(n int, size ObjectSize) (List, error) {
	if err := size.validate(); err != nil {
		return List{}, err
	}
	size = size.Padded()
	words := n * size.Words()
	if words > format.MaxListCount {
		return List{}, fmt.Errorf("%w: %d words of composite elements", ErrObjectTooLarge, words)
	}
	if err := eraseSlot(p); err != nil {
		return List{}, err
	}

	cseg, coff, err := p.seg.allocate((words + 1) * format.WordSize)
	if err != nil {
		return List{}, fmt.Errorf("init composite list of %d %s: %w", n, size, err)
	}
	cseg.setWord(coff, format.EncodeStruct(int32(n), uint16(size.DataWords()), size.PointerLength))
	w := format.EncodeList(0, format.ElementComposite, uint32(words))
	if err := writeContent(p.seg, p.off, w, cseg, coff); err != nil {
		return List{}, err
	}
	return List{
		seg:    cseg,
		off:    coff + format.WordSize,
		length: n,
		elem:   ElementComposite,
		size:   size,
		depth:  p.depth - 1,
	}, nil
}

// Set replaces the content of p with a deep copy of the content of src. src
// may belong to another message; the zero Pointer clears p.
func (p Pointer) Set(src Pointer) error {
	if err := p.writable(); err != nil {
		return err
	}
	if src.seg == nil {
		return eraseSlot(p)
	}
	st, err := src.resolve()
	if err != nil {
		return fmt.Errorf("copy source: %w", err)
	}
	return p.setTarget(st)
}

// setTarget copies st into fresh space, then erases and rewrites p. Copying
// first keeps st intact when it lives under p's old content.
func (p Pointer) setTarget(st target) error {
	w, cseg, coff, err := copyContent(st, p.seg, p.depth-1)
	if err != nil {
		return err
	}
	if err := eraseSlot(p); err != nil {
		return err
	}
	return writeContent(p.seg, p.off, w, cseg, coff)
}

// SetInterface erases the current content and stores a capability pointer.
func (p Pointer) SetInterface(id CapabilityID) error {
	if err := p.writable(); err != nil {
		return err
	}
	if err := eraseSlot(p); err != nil {
		return err
	}
	p.seg.setWord(p.off, format.EncodeOther(uint32(id)))
	return nil
}

// Erase zeroes the content reachable from p, any far landing pads, and the
// pointer word itself. The zeroed words stay allocated.
func (p Pointer) Erase() error {
	if err := p.writable(); err != nil {
		return err
	}
	return eraseSlot(p)
}

// structValue implements struct getters: a null slot is filled from def or
// initialized, a struct smaller than size is grown. Read-only messages are
// never modified.
func (p Pointer) structValue(size ObjectSize, def Pointer) (Struct, error) {
	t, err := p.resolve()
	if err != nil {
		return Struct{}, err
	}
	readOnly := p.seg.msg.readOnly

	if t.isNull() {
		switch {
		case readOnly && def.IsValid():
			return def.Struct()
		case readOnly:
			return Struct{}, nil
		case def.IsValid() && !def.IsNull():
			if err := p.Set(def); err != nil {
				return Struct{}, fmt.Errorf("copy default: %w", err)
			}
			return p.structValue(size, Pointer{})
		default:
			return p.InitStruct(size)
		}
	}

	if t.kind() != format.PointerStruct {
		return Struct{}, fmt.Errorf("%w: want struct, have %s", ErrInvalidPointerType, PointerType(t.kind()))
	}
	if err := size.validate(); err != nil {
		return Struct{}, err
	}
	want := size.Padded()
	if have := structSizeOf(t.word); !readOnly && !have.covers(want) {
		return p.resizeStruct(t, have.union(want))
	}
	return structView(t, p), nil
}

// listValue implements list getters: a null slot is filled from def, a
// composite list whose elements are smaller than compositeSize is grown.
func (p Pointer) listValue(elem ListElementSize, compositeSize ObjectSize, def Pointer) (List, error) {
	t, err := p.resolve()
	if err != nil {
		return List{}, err
	}
	readOnly := p.seg.msg.readOnly

	if t.isNull() {
		switch {
		case readOnly && def.IsValid():
			return def.List()
		case !readOnly && def.IsValid() && !def.IsNull():
			if err := p.Set(def); err != nil {
				return List{}, fmt.Errorf("copy default: %w", err)
			}
			return p.listValue(elem, compositeSize, Pointer{})
		default:
			return List{elem: elem, size: primitiveSize(elem), depth: t.depth}, nil
		}
	}

	if t.kind() != format.PointerList {
		return List{}, fmt.Errorf("%w: want list, have %s", ErrInvalidPointerType, PointerType(t.kind()))
	}
	l := listView(t)
	if l.elem != elem {
		return List{}, fmt.Errorf("%w: want %s, have %s", ErrInvalidElementSize, elem, l.elem)
	}
	if elem == ElementComposite && !readOnly {
		if err := compositeSize.validate(); err != nil {
			return List{}, err
		}
		if want := compositeSize.Padded(); !l.size.covers(want) {
			return p.resizeList(t, l.size.union(want))
		}
	}
	return l, nil
}
