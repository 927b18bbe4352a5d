package capnp

import (
	"fmt"

	"github.com/joshuapare/capnkit/internal/format"
)

// List is a resolved view of list content. The typed wrappers (UInt8List,
// TextList, StructList, ...) embed it and add element accessors.
//
// Primitive element getters past the end of the list return zero; setters
// return ErrListIndexOutOfBounds.
type List struct {
	seg    *Segment
	off    int // first element; past the tag word for composite lists
	length int
	elem   ListElementSize
	size   ObjectSize // element size
	depth  int
}

func listView(t target) List {
	e := ListElementSize(format.ListElementSize(t.word))
	if e == ElementComposite {
		tag := t.seg.word(t.off)
		return List{
			seg:    t.seg,
			off:    t.off + format.WordSize,
			length: int(format.Offset(tag)),
			elem:   e,
			size:   structSizeOf(tag),
			depth:  t.depth,
		}
	}
	return List{
		seg:    t.seg,
		off:    t.off,
		length: int(format.ListCount(t.word)),
		elem:   e,
		size:   primitiveSize(e),
		depth:  t.depth,
	}
}

// primitiveSize describes one element of a non-composite list as an
// ObjectSize, so composite and primitive lists share stride arithmetic.
func primitiveSize(e ListElementSize) ObjectSize {
	switch e {
	case ElementPointer:
		return ObjectSize{PointerLength: 1}
	case ElementVoid, ElementBit, ElementComposite:
		return ObjectSize{}
	default:
		return ObjectSize{DataByteLength: uint32(e.ByteLength())}
	}
}

// IsValid reports whether l has content.
func (l List) IsValid() bool { return l.seg != nil }

// Len returns the number of elements.
func (l List) Len() int { return l.length }

// ElementSize returns the element size tag.
func (l List) ElementSize() ListElementSize { return l.elem }

// StructSize returns the element size of a composite list.
func (l List) StructSize() ObjectSize { return l.size }

// Segment returns the segment holding the list content.
func (l List) Segment() *Segment { return l.seg }

// Offset returns the byte offset of the first element.
func (l List) Offset() int { return l.off }

// Message returns the owning message, or nil for an empty list.
func (l List) Message() *Message {
	if l.seg == nil {
		return nil
	}
	return l.seg.msg
}

// stride returns the distance between elements in bytes (0 for void and bit lists).
func (l List) stride() int {
	switch l.elem {
	case ElementComposite:
		return l.size.Words() * format.WordSize
	case ElementPointer:
		return format.PointerSize
	case ElementVoid, ElementBit:
		return 0
	default:
		return l.elem.ByteLength()
	}
}

func (l List) inRange(i int) bool {
	return l.seg != nil && i >= 0 && i < l.length
}

func (l List) checkIndex(i int) error {
	if !l.inRange(i) {
		return fmt.Errorf("%w: index %d, length %d", ErrListIndexOutOfBounds, i, l.length)
	}
	return nil
}

// primitiveOff returns the offset of a width-byte value at element i. A
// composite list exposes the first field of each element.
func (l List) primitiveOff(i, width int) (int, bool) {
	if !l.inRange(i) || l.stride() < width || l.elem == ElementPointer {
		return 0, false
	}
	return l.off + i*l.stride(), true
}

func (l List) primitiveSetOff(i, width int) (int, error) {
	if err := l.checkIndex(i); err != nil {
		return 0, err
	}
	if l.seg.msg.readOnly {
		return 0, ErrReadOnly
	}
	off, ok := l.primitiveOff(i, width)
	if !ok {
		return 0, fmt.Errorf("%w: %d-byte value in %s list", ErrInvalidElementSize, width, l.elem)
	}
	return off, nil
}

// Pointer returns element i of a pointer list.
func (l List) Pointer(i int) (Pointer, error) {
	if l.elem != ElementPointer {
		return Pointer{}, fmt.Errorf("%w: want pointer, have %s", ErrInvalidElementSize, l.elem)
	}
	if err := l.checkIndex(i); err != nil {
		return Pointer{}, err
	}
	return newPointer(l.seg, l.off+i*format.PointerSize, l.depth)
}

// Struct returns element i of a composite list.
func (l List) Struct(i int) (Struct, error) {
	if l.elem != ElementComposite {
		return Struct{}, fmt.Errorf("%w: want composite, have %s", ErrInvalidElementSize, l.elem)
	}
	if err := l.checkIndex(i); err != nil {
		return Struct{}, err
	}
	return Struct{
		seg:     l.seg,
		off:     l.off + i*l.stride(),
		size:    l.size,
		depth:   l.depth,
		element: true,
	}, nil
}
