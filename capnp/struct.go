package capnp

import (
	"fmt"
	"math"

	"github.com/joshuapare/capnkit/internal/format"
)

// Struct is a resolved view of struct content: a data section followed by a
// pointer section.
//
// Data getters past the end of the data section return the field default
// (zero, or the mask for *Default variants), so content written by an older
// schema reads as if the new fields were never set. Setters past the end
// return ErrDataOutOfBounds.
//
// Pointer getters past the end of the pointer section likewise return
// defaults; Pointer, setters and initializers return ErrPointerOutOfBounds.
type Struct struct {
	seg   *Segment
	off   int
	size  ObjectSize
	depth int // depth given to pointers in the pointer section

	slot    Pointer // referencing pointer; invalid for list elements and orphans
	element bool
}

func structView(t target, slot Pointer) Struct {
	return Struct{seg: t.seg, off: t.off, size: structSizeOf(t.word), depth: t.depth, slot: slot}
}

// IsValid reports whether s has content. The null Struct does not.
func (s Struct) IsValid() bool { return s.seg != nil }

// Size returns the size of the struct as stored.
func (s Struct) Size() ObjectSize { return s.size }

// Segment returns the segment holding the struct content.
func (s Struct) Segment() *Segment { return s.seg }

// Offset returns the byte offset of the data section within its segment.
func (s Struct) Offset() int { return s.off }

// Message returns the owning message, or nil for the null Struct.
func (s Struct) Message() *Message {
	if s.seg == nil {
		return nil
	}
	return s.seg.msg
}

// IsListElement reports whether s is an element of a composite list.
func (s Struct) IsListElement() bool { return s.element }

func (s Struct) target() target {
	if s.seg == nil {
		return target{}
	}
	return target{word: structWord(s.size), seg: s.seg, off: s.off, depth: s.depth}
}

// Reinit replaces the struct with a new zeroed struct of the given size,
// written to the slot s was read from. Composite list elements have no slot
// of their own and return ErrInitCompositeElement.
func (s Struct) Reinit(size ObjectSize) (Struct, error) {
	if s.element {
		return Struct{}, ErrInitCompositeElement
	}
	if !s.slot.IsValid() {
		return Struct{}, ErrNullStruct
	}
	return s.slot.InitStruct(size)
}

// --- data section ---

func (s Struct) inData(off, n int) bool {
	return s.seg != nil && off >= 0 && off+n <= int(s.size.DataByteLength)
}

func (s Struct) checkData(off, n int) error {
	if s.seg == nil {
		return ErrNullStruct
	}
	if s.seg.msg.readOnly {
		return ErrReadOnly
	}
	if off < 0 || off+n > int(s.size.DataByteLength) {
		return fmt.Errorf("%w: %d bytes at %d, data section is %d bytes", ErrDataOutOfBounds, n, off, s.size.DataByteLength)
	}
	return nil
}

// Uint8 returns the uint8 at byte offset off of the data section.
func (s Struct) Uint8(off int) uint8 {
	if !s.inData(off, 1) {
		return 0
	}
	return s.seg.Uint8(s.off + off)
}

// Uint16 returns the uint16 at byte offset off of the data section.
func (s Struct) Uint16(off int) uint16 {
	if !s.inData(off, 2) {
		return 0
	}
	return s.seg.Uint16(s.off + off)
}

// Uint32 returns the uint32 at byte offset off of the data section.
func (s Struct) Uint32(off int) uint32 {
	if !s.inData(off, 4) {
		return 0
	}
	return s.seg.Uint32(s.off + off)
}

// Uint64 returns the uint64 at byte offset off of the data section.
func (s Struct) Uint64(off int) uint64 {
	if !s.inData(off, 8) {
		return 0
	}
	return s.seg.Uint64(s.off + off)
}

func (s Struct) Int8(off int) int8       { return int8(s.Uint8(off)) }
func (s Struct) Int16(off int) int16     { return int16(s.Uint16(off)) }
func (s Struct) Int32(off int) int32     { return int32(s.Uint32(off)) }
func (s Struct) Int64(off int) int64     { return int64(s.Uint64(off)) }
func (s Struct) Float32(off int) float32 { return math.Float32frombits(s.Uint32(off)) }
func (s Struct) Float64(off int) float64 { return math.Float64frombits(s.Uint64(off)) }

// Bit returns bit number bit of the data section.
func (s Struct) Bit(bit int) bool {
	if bit < 0 || !s.inData(bit/8, 1) {
		return false
	}
	return s.seg.Uint8(s.off+bit/8)&(1<<(bit%8)) != 0
}

// Default variants XOR the stored bits with the field default, so a field
// holding its default is stored as zero.

func (s Struct) Uint8Default(off int, def uint8) uint8    { return s.Uint8(off) ^ def }
func (s Struct) Uint16Default(off int, def uint16) uint16 { return s.Uint16(off) ^ def }
func (s Struct) Uint32Default(off int, def uint32) uint32 { return s.Uint32(off) ^ def }
func (s Struct) Uint64Default(off int, def uint64) uint64 { return s.Uint64(off) ^ def }
func (s Struct) Int8Default(off int, def int8) int8       { return s.Int8(off) ^ def }
func (s Struct) Int16Default(off int, def int16) int16    { return s.Int16(off) ^ def }
func (s Struct) Int32Default(off int, def int32) int32    { return s.Int32(off) ^ def }
func (s Struct) Int64Default(off int, def int64) int64    { return s.Int64(off) ^ def }
func (s Struct) BitDefault(bit int, def bool) bool        { return s.Bit(bit) != def }

func (s Struct) Float32Default(off int, def float32) float32 {
	return math.Float32frombits(s.Uint32(off) ^ math.Float32bits(def))
}

func (s Struct) Float64Default(off int, def float64) float64 {
	return math.Float64frombits(s.Uint64(off) ^ math.Float64bits(def))
}

// SetUint8 stores v at byte offset off of the data section.
func (s Struct) SetUint8(off int, v uint8) error {
	if err := s.checkData(off, 1); err != nil {
		return err
	}
	s.seg.SetUint8(s.off+off, v)
	return nil
}

// SetUint16 stores v at byte offset off of the data section.
func (s Struct) SetUint16(off int, v uint16) error {
	if err := s.checkData(off, 2); err != nil {
		return err
	}
	s.seg.SetUint16(s.off+off, v)
	return nil
}

// SetUint32 stores v at byte offset off of the data section.
func (s Struct) SetUint32(off int, v uint32) error {
	if err := s.checkData(off, 4); err != nil {
		return err
	}
	s.seg.SetUint32(s.off+off, v)
	return nil
}

// SetUint64 stores v at byte offset off of the data section.
func (s Struct) SetUint64(off int, v uint64) error {
	if err := s.checkData(off, 8); err != nil {
		return err
	}
	s.seg.SetUint64(s.off+off, v)
	return nil
}

func (s Struct) SetInt8(off int, v int8) error       { return s.SetUint8(off, uint8(v)) }
func (s Struct) SetInt16(off int, v int16) error     { return s.SetUint16(off, uint16(v)) }
func (s Struct) SetInt32(off int, v int32) error     { return s.SetUint32(off, uint32(v)) }
func (s Struct) SetInt64(off int, v int64) error     { return s.SetUint64(off, uint64(v)) }
func (s Struct) SetFloat32(off int, v float32) error { return s.SetUint32(off, math.Float32bits(v)) }
func (s Struct) SetFloat64(off int, v float64) error { return s.SetUint64(off, math.Float64bits(v)) }

// SetBit stores v as bit number bit of the data section.
func (s Struct) SetBit(bit int, v bool) error {
	if bit < 0 {
		return fmt.Errorf("%w: bit %d", ErrDataOutOfBounds, bit)
	}
	if err := s.checkData(bit/8, 1); err != nil {
		return err
	}
	b := s.seg.Uint8(s.off + bit/8)
	mask := uint8(1) << (bit % 8)
	if v {
		b |= mask
	} else {
		b &^= mask
	}
	s.seg.SetUint8(s.off+bit/8, b)
	return nil
}

func (s Struct) SetUint8Default(off int, v, def uint8) error   { return s.SetUint8(off, v^def) }
func (s Struct) SetUint16Default(off int, v, def uint16) error { return s.SetUint16(off, v^def) }
func (s Struct) SetUint32Default(off int, v, def uint32) error { return s.SetUint32(off, v^def) }
func (s Struct) SetUint64Default(off int, v, def uint64) error { return s.SetUint64(off, v^def) }
func (s Struct) SetInt8Default(off int, v, def int8) error     { return s.SetInt8(off, v^def) }
func (s Struct) SetInt16Default(off int, v, def int16) error   { return s.SetInt16(off, v^def) }
func (s Struct) SetInt32Default(off int, v, def int32) error   { return s.SetInt32(off, v^def) }
func (s Struct) SetInt64Default(off int, v, def int64) error   { return s.SetInt64(off, v^def) }
func (s Struct) SetBitDefault(bit int, v, def bool) error      { return s.SetBit(bit, v != def) }

func (s Struct) SetFloat32Default(off int, v, def float32) error {
	return s.SetUint32(off, math.Float32bits(v)^math.Float32bits(def))
}

func (s Struct) SetFloat64Default(off int, v, def float64) error {
	return s.SetUint64(off, math.Float64bits(v)^math.Float64bits(def))
}

// --- pointer section ---

func (s Struct) pointerOff(i int) int {
	return s.off + int(s.size.DataByteLength) + i*format.PointerSize
}

// Pointer returns pointer slot i.
func (s Struct) Pointer(i int) (Pointer, error) {
	if s.seg == nil || i < 0 || i >= int(s.size.PointerLength) {
		return Pointer{}, fmt.Errorf("%w: index %d, pointer section has %d slots", ErrPointerOutOfBounds, i, s.size.PointerLength)
	}
	return newPointer(s.seg, s.pointerOff(i), s.depth)
}

// field is Pointer for getters: ok is false when i is past the pointer section.
func (s Struct) field(i int) (Pointer, bool, error) {
	if s.seg == nil || i < 0 || i >= int(s.size.PointerLength) {
		return Pointer{}, false, nil
	}
	p, err := newPointer(s.seg, s.pointerOff(i), s.depth)
	if err != nil {
		return Pointer{}, false, err
	}
	return p, true, nil
}

// slotFor is Pointer for setters.
func (s Struct) slotFor(i int) (Pointer, error) {
	if s.seg == nil {
		return Pointer{}, ErrNullStruct
	}
	if s.seg.msg.readOnly {
		return Pointer{}, ErrReadOnly
	}
	return s.Pointer(i)
}

// HasPointer reports whether pointer slot i is non-null.
func (s Struct) HasPointer(i int) bool {
	if s.seg == nil || i < 0 || i >= int(s.size.PointerLength) {
		return false
	}
	return !s.seg.isWordZero(s.pointerOff(i))
}

// Struct returns the struct in pointer slot i. On a writable message a null
// slot is filled with a copy of def (when valid) or a new struct of the
// given size, and a smaller struct is grown to size.
func (s Struct) Struct(i int, size ObjectSize, def Pointer) (Struct, error) {
	p, ok, err := s.field(i)
	if err != nil {
		return Struct{}, err
	}
	if !ok {
		if def.IsValid() {
			return def.Struct()
		}
		return Struct{}, nil
	}
	return p.structValue(size, def)
}

// InitStruct points slot i at a new zeroed struct.
func (s Struct) InitStruct(i int, size ObjectSize) (Struct, error) {
	p, err := s.slotFor(i)
	if err != nil {
		return Struct{}, err
	}
	return p.InitStruct(size)
}

// SetStruct stores a deep copy of src in slot i. src may belong to another message.
func (s Struct) SetStruct(i int, src Struct) error {
	p, err := s.slotFor(i)
	if err != nil {
		return err
	}
	if !src.IsValid() {
		return eraseSlot(p)
	}
	return p.setTarget(src.target())
}

// List returns the list in pointer slot i. A null slot yields def (copied
// in on a writable message) or an empty list. Composite lists with elements
// smaller than compositeSize are grown.
func (s Struct) List(i int, elem ListElementSize, compositeSize ObjectSize, def Pointer) (List, error) {
	p, ok, err := s.field(i)
	if err != nil {
		return List{}, err
	}
	if !ok {
		if def.IsValid() {
			return def.List()
		}
		return List{elem: elem, size: primitiveSize(elem)}, nil
	}
	return p.listValue(elem, compositeSize, def)
}

// InitList points slot i at a new zeroed list of n elements.
func (s Struct) InitList(i int, elem ListElementSize, n int, compositeSize ObjectSize) (List, error) {
	p, err := s.slotFor(i)
	if err != nil {
		return List{}, err
	}
	return p.InitList(elem, n, compositeSize)
}

// SetPointer stores a deep copy of the content of src in slot i.
func (s Struct) SetPointer(i int, src Pointer) error {
	p, err := s.slotFor(i)
	if err != nil {
		return err
	}
	return p.Set(src)
}

// ErasePointer zeroes slot i and everything reachable from it.
func (s Struct) ErasePointer(i int) error {
	p, err := s.slotFor(i)
	if err != nil {
		return err
	}
	return eraseSlot(p)
}

// Interface returns the capability index in slot i; ok is false when the
// slot is null.
func (s Struct) Interface(i int) (CapabilityID, bool, error) {
	p, ok, err := s.field(i)
	if err != nil || !ok {
		return 0, false, err
	}
	return p.Interface()
}

// SetInterface stores a capability pointer in slot i.
func (s Struct) SetInterface(i int, id CapabilityID) error {
	p, err := s.slotFor(i)
	if err != nil {
		return err
	}
	return p.SetInterface(id)
}

// Disown detaches the content of slot i.
func (s Struct) Disown(i int) (*Orphan, error) {
	p, err := s.slotFor(i)
	if err != nil {
		return nil, err
	}
	return p.Disown()
}

// Adopt attaches o to slot i, erasing the slot's current content.
func (s Struct) Adopt(i int, o *Orphan) error {
	p, err := s.slotFor(i)
	if err != nil {
		return err
	}
	return p.Adopt(o)
}

// copyFrom overwrites s with src: the common prefix of the data sections is
// copied and the rest zeroed, pointers are deep-copied and extra slots
// erased.
func (s Struct) copyFrom(src Struct) error {
	if s.seg == nil {
		return ErrNullStruct
	}
	if s.seg.msg.readOnly {
		return ErrReadOnly
	}
	if src.seg == s.seg && src.off == s.off {
		return nil
	}

	dw := s.size.DataWords()
	s.seg.fillZeroWords(s.off, dw)
	if src.IsValid() {
		s.seg.copyWords(s.off, src.seg, src.off, min(dw, src.size.DataWords()))
	}

	for i := range int(s.size.PointerLength) {
		dst, err := newPointer(s.seg, s.pointerOff(i), s.depth)
		if err != nil {
			return err
		}
		if !src.IsValid() || i >= int(src.size.PointerLength) {
			if err := eraseSlot(dst); err != nil {
				return err
			}
			continue
		}
		sp, err := newPointer(src.seg, src.pointerOff(i), src.depth)
		if err != nil {
			return err
		}
		if err := dst.Set(sp); err != nil {
			return err
		}
	}
	return nil
}
