package capnp

import (
	"fmt"

	"github.com/joshuapare/capnkit/internal/format"
)

// ObjectSize describes a struct: the byte length of its data section and the
// number of slots in its pointer section.
type ObjectSize struct {
	DataByteLength uint32
	PointerLength  uint16
}

// Padded returns sz with the data section rounded up to a whole word.
func (sz ObjectSize) Padded() ObjectSize {
	return ObjectSize{
		DataByteLength: uint32(format.PadToWord(int(sz.DataByteLength))),
		PointerLength:  sz.PointerLength,
	}
}

// DataWords returns the number of words in the (padded) data section.
func (sz ObjectSize) DataWords() int {
	return format.Words(int(sz.DataByteLength))
}

// Words returns the total number of words taken by one struct of this size.
func (sz ObjectSize) Words() int {
	return sz.DataWords() + int(sz.PointerLength)
}

// ByteLength returns the total number of bytes taken by one struct of this size.
func (sz ObjectSize) ByteLength() int {
	return sz.Words() * format.WordSize
}

// IsZero reports whether the struct has neither data nor pointers.
func (sz ObjectSize) IsZero() bool {
	return sz.DataByteLength == 0 && sz.PointerLength == 0
}

// covers reports whether sz is at least as large as other in both sections.
func (sz ObjectSize) covers(other ObjectSize) bool {
	return sz.DataByteLength >= other.DataByteLength && sz.PointerLength >= other.PointerLength
}

// union returns the larger of each section.
func (sz ObjectSize) union(other ObjectSize) ObjectSize {
	return ObjectSize{
		DataByteLength: max(sz.DataByteLength, other.DataByteLength),
		PointerLength:  max(sz.PointerLength, other.PointerLength),
	}
}

func (sz ObjectSize) validate() error {
	if sz.DataWords() > 0xFFFF {
		return fmt.Errorf("%w: data section of %d bytes", ErrObjectTooLarge, sz.DataByteLength)
	}
	return nil
}

func (sz ObjectSize) String() string {
	return fmt.Sprintf("{data: %d bytes, pointers: %d}", sz.DataByteLength, sz.PointerLength)
}

// structSizeOf decodes the size fields of a struct pointer (or composite tag) word.
func structSizeOf(w uint64) ObjectSize {
	return ObjectSize{
		DataByteLength: uint32(format.StructDataWords(w)) * format.WordSize,
		PointerLength:  format.StructPointerCount(w),
	}
}

// ListElementSize is the 3-bit element size tag of a list pointer.
type ListElementSize uint8

const (
	ElementVoid ListElementSize = iota
	ElementBit
	ElementByte
	ElementTwoBytes
	ElementFourBytes
	ElementEightBytes
	ElementPointer
	ElementComposite
)

// ByteLength returns the fixed width of one element in bytes, or -1 for bit
// and composite lists, which have no fixed byte width.
func (e ListElementSize) ByteLength() int {
	return format.ElementByteLength(uint8(e))
}

// BitLength returns the width of one element in bits, or -1 for composite lists.
func (e ListElementSize) BitLength() int {
	return format.ElementBitLength(uint8(e))
}

func (e ListElementSize) String() string {
	switch e {
	case ElementVoid:
		return "void"
	case ElementBit:
		return "bit"
	case ElementByte:
		return "byte"
	case ElementTwoBytes:
		return "2 bytes"
	case ElementFourBytes:
		return "4 bytes"
	case ElementEightBytes:
		return "8 bytes"
	case ElementPointer:
		return "pointer"
	case ElementComposite:
		return "composite"
	default:
		return fmt.Sprintf("ListElementSize(%d)", uint8(e))
	}
}

// listContentWords returns the number of words taken by a non-composite list
// of n elements. Composite lists carry their word count in the pointer.
func listContentWords(e ListElementSize, n int) int {
	bits := e.BitLength()
	return (n*bits + 63) / 64
}

// structWord returns the canonical struct pointer word for sz.
func structWord(sz ObjectSize) uint64 {
	return canonical(format.EncodeStruct(0, uint16(sz.DataWords()), sz.PointerLength))
}

// canonical strips the offset of a non-null struct or list word. A
// zero-sized struct keeps offset -1 so the word does not read as null.
func canonical(w uint64) uint64 {
	w = format.WithOffset(w, 0)
	if w == 0 {
		return format.EncodeStruct(-1, 0, 0)
	}
	return w
}
