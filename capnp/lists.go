package capnp

import (
	"fmt"
	"math"
)

// UInt8List is a list of uint8.
type UInt8List struct{ List }

func (l UInt8List) At(i int) uint8 {
	off, ok := l.primitiveOff(i, 1)
	if !ok {
		return 0
	}
	return l.seg.Uint8(off)
}

func (l UInt8List) Set(i int, v uint8) error {
	off, err := l.primitiveSetOff(i, 1)
	if err != nil {
		return err
	}
	l.seg.SetUint8(off, v)
	return nil
}

// Int8List is a list of int8.
type Int8List struct{ List }

func (l Int8List) At(i int) int8 { return int8(UInt8List(l).At(i)) }

func (l Int8List) Set(i int, v int8) error { return UInt8List(l).Set(i, uint8(v)) }

// UInt16List is a list of uint16.
type UInt16List struct{ List }

func (l UInt16List) At(i int) uint16 {
	off, ok := l.primitiveOff(i, 2)
	if !ok {
		return 0
	}
	return l.seg.Uint16(off)
}

func (l UInt16List) Set(i int, v uint16) error {
	off, err := l.primitiveSetOff(i, 2)
	if err != nil {
		return err
	}
	l.seg.SetUint16(off, v)
	return nil
}

// Int16List is a list of int16.
type Int16List struct{ List }

func (l Int16List) At(i int) int16 { return int16(UInt16List(l).At(i)) }

func (l Int16List) Set(i int, v int16) error { return UInt16List(l).Set(i, uint16(v)) }

// UInt32List is a list of uint32.
type UInt32List struct{ List }

func (l UInt32List) At(i int) uint32 {
	off, ok := l.primitiveOff(i, 4)
	if !ok {
		return 0
	}
	return l.seg.Uint32(off)
}

func (l UInt32List) Set(i int, v uint32) error {
	off, err := l.primitiveSetOff(i, 4)
	if err != nil {
		return err
	}
	l.seg.SetUint32(off, v)
	return nil
}

// Int32List is a list of int32.
type Int32List struct{ List }

func (l Int32List) At(i int) int32 { return int32(UInt32List(l).At(i)) }

func (l Int32List) Set(i int, v int32) error { return UInt32List(l).Set(i, uint32(v)) }

// Float32List is a list of float32.
type Float32List struct{ List }

func (l Float32List) At(i int) float32 { return math.Float32frombits(UInt32List(l).At(i)) }

func (l Float32List) Set(i int, v float32) error {
	return UInt32List(l).Set(i, math.Float32bits(v))
}

// UInt64List is a list of uint64.
type UInt64List struct{ List }

func (l UInt64List) At(i int) uint64 {
	off, ok := l.primitiveOff(i, 8)
	if !ok {
		return 0
	}
	return l.seg.Uint64(off)
}

func (l UInt64List) Set(i int, v uint64) error {
	off, err := l.primitiveSetOff(i, 8)
	if err != nil {
		return err
	}
	l.seg.SetUint64(off, v)
	return nil
}

// Int64List is a list of int64.
type Int64List struct{ List }

func (l Int64List) At(i int) int64 { return int64(UInt64List(l).At(i)) }

func (l Int64List) Set(i int, v int64) error { return UInt64List(l).Set(i, uint64(v)) }

// Float64List is a list of float64.
type Float64List struct{ List }

func (l Float64List) At(i int) float64 { return math.Float64frombits(UInt64List(l).At(i)) }

func (l Float64List) Set(i int, v float64) error {
	return UInt64List(l).Set(i, math.Float64bits(v))
}

// BitList is a list of bools packed eight to a byte.
type BitList struct{ List }

func (l BitList) At(i int) bool {
	if l.elem != ElementBit || !l.inRange(i) {
		return false
	}
	return l.seg.Uint8(l.off+i/8)&(1<<(i%8)) != 0
}

func (l BitList) Set(i int, v bool) error {
	if l.elem != ElementBit {
		return fmt.Errorf("%w: want bit, have %s", ErrInvalidElementSize, l.elem)
	}
	if err := l.checkIndex(i); err != nil {
		return err
	}
	if l.seg.msg.readOnly {
		return ErrReadOnly
	}
	off := l.off + i/8
	b := l.seg.Uint8(off)
	mask := uint8(1) << (i % 8)
	if v {
		b |= mask
	} else {
		b &^= mask
	}
	l.seg.SetUint8(off, b)
	return nil
}

// VoidList is a list of elements with no content; only its length matters.
type VoidList struct{ List }

// PointerList is a list of untyped pointers.
type PointerList struct{ List }

func (l PointerList) At(i int) (Pointer, error) { return l.Pointer(i) }

// Set stores a deep copy of the content of src at element i.
func (l PointerList) Set(i int, src Pointer) error {
	p, err := l.Pointer(i)
	if err != nil {
		return err
	}
	return p.Set(src)
}

// TextList is a list of text pointers.
type TextList struct{ List }

func (l TextList) At(i int) (string, error) {
	p, err := l.Pointer(i)
	if err != nil {
		return "", err
	}
	return p.Text()
}

func (l TextList) Set(i int, s string) error {
	p, err := l.Pointer(i)
	if err != nil {
		return err
	}
	return p.SetText(s)
}

// DataList is a list of data pointers.
type DataList struct{ List }

func (l DataList) At(i int) ([]byte, error) {
	p, err := l.Pointer(i)
	if err != nil {
		return nil, err
	}
	return p.Data()
}

func (l DataList) Set(i int, b []byte) error {
	p, err := l.Pointer(i)
	if err != nil {
		return err
	}
	return p.SetData(b)
}

// StructList is a composite list of structs.
type StructList struct{ List }

func (l StructList) At(i int) (Struct, error) { return l.Struct(i) }

// Set overwrites element i with a copy of src. Fields beyond the element
// size are dropped; missing fields are zeroed.
func (l StructList) Set(i int, src Struct) error {
	e, err := l.Struct(i)
	if err != nil {
		return err
	}
	return e.copyFrom(src)
}
