package capnp

import (
	"fmt"

	"github.com/joshuapare/capnkit/internal/format"
)

// Text is stored as a byte list ending in a NUL byte; Data as a plain byte
// list.

func (p Pointer) byteList() ([]byte, bool, error) {
	if p.seg == nil {
		return nil, false, nil
	}
	t, err := p.resolve()
	if err != nil {
		return nil, false, err
	}
	if t.isNull() {
		return nil, false, nil
	}
	if t.kind() != format.PointerList {
		return nil, false, fmt.Errorf("%w: want list, have %s", ErrInvalidPointerType, PointerType(t.kind()))
	}
	if e := ListElementSize(format.ListElementSize(t.word)); e != ElementByte {
		return nil, false, fmt.Errorf("%w: want byte, have %s", ErrInvalidElementSize, e)
	}
	n := int(format.ListCount(t.word))
	return t.seg.buf[t.off : t.off+n : t.off+n], true, nil
}

// TextBytes returns the text p refers to without its NUL terminator. The
// slice aliases the segment.
func (p Pointer) TextBytes() ([]byte, error) {
	b, _, err := p.byteList()
	if err != nil {
		return nil, err
	}
	if n := len(b); n > 0 && b[n-1] == 0 {
		b = b[: n-1 : n-1]
	}
	return b, nil
}

// Text returns the text p refers to, or "" when p is null.
func (p Pointer) Text() (string, error) {
	b, err := p.TextBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// SetText replaces the content of p with s and a NUL terminator.
func (p Pointer) SetText(s string) error {
	l, err := p.InitList(ElementByte, len(s)+1, ObjectSize{})
	if err != nil {
		return fmt.Errorf("set text: %w", err)
	}
	copy(l.seg.buf[l.off:l.off+len(s)], s)
	return nil
}

// Data returns the bytes p refers to, or nil when p is null. The slice
// aliases the segment.
func (p Pointer) Data() ([]byte, error) {
	b, _, err := p.byteList()
	return b, err
}

// SetData replaces the content of p with a copy of b. A nil b clears p.
func (p Pointer) SetData(b []byte) error {
	if b == nil {
		return p.Erase()
	}
	l, err := p.InitList(ElementByte, len(b), ObjectSize{})
	if err != nil {
		return fmt.Errorf("set data: %w", err)
	}
	copy(l.seg.buf[l.off:l.off+len(b)], b)
	return nil
}

// Text returns the text in pointer slot i, or def when the slot is null.
func (s Struct) Text(i int, def string) (string, error) {
	p, ok, err := s.field(i)
	if err != nil {
		return "", err
	}
	if !ok || p.IsNull() {
		return def, nil
	}
	return p.Text()
}

// TextBytes returns the text in pointer slot i without copying.
func (s Struct) TextBytes(i int) ([]byte, error) {
	p, ok, err := s.field(i)
	if err != nil || !ok {
		return nil, err
	}
	return p.TextBytes()
}

// SetText stores s in pointer slot i.
func (s Struct) SetText(i int, v string) error {
	p, err := s.slotFor(i)
	if err != nil {
		return err
	}
	return p.SetText(v)
}

// Data returns the bytes in pointer slot i, or def when the slot is null.
func (s Struct) Data(i int, def []byte) ([]byte, error) {
	p, ok, err := s.field(i)
	if err != nil {
		return nil, err
	}
	if !ok || p.IsNull() {
		return def, nil
	}
	return p.Data()
}

// SetData stores a copy of b in pointer slot i.
func (s Struct) SetData(i int, b []byte) error {
	p, err := s.slotFor(i)
	if err != nil {
		return err
	}
	return p.SetData(b)
}
