package capnp

import (
	"github.com/joshuapare/capnkit/internal/format"
)

// eraseSlot zeroes everything reachable from p, then the landing pads, then
// the pointer word. Holes are left in place; packing compresses them.
func eraseSlot(p Pointer) error {
	if p.seg.isWordZero(p.off) {
		return nil
	}
	t, err := p.resolve()
	if err != nil {
		return err
	}
	if err := t.eraseContent(); err != nil {
		return err
	}
	t.clearPads()
	p.seg.setWordZero(p.off)
	return nil
}

// eraseContent zeroes the content of t, recursing into pointers it holds.
func (t target) eraseContent() error {
	switch t.kind() {
	case format.PointerStruct:
		if t.isNull() {
			return nil
		}
		sz := structSizeOf(t.word)
		ptrs := t.off + sz.DataWords()*format.WordSize
		if err := erasePointers(t.seg, ptrs, int(sz.PointerLength), t.depth); err != nil {
			return err
		}
		t.seg.fillZeroWords(t.off, sz.Words())

	case format.PointerList:
		e := ListElementSize(format.ListElementSize(t.word))
		n := int(format.ListCount(t.word))
		switch e {
		case ElementPointer:
			if err := erasePointers(t.seg, t.off, n, t.depth); err != nil {
				return err
			}
			t.seg.fillZeroWords(t.off, n)

		case ElementComposite:
			tag := t.seg.word(t.off)
			sz := structSizeOf(tag)
			count := int(format.Offset(tag))
			if sz.Words() == 0 {
				if err := t.seg.msg.chargeElements(count); err != nil {
					return err
				}
			}
			stride := sz.Words() * format.WordSize
			first := t.off + format.WordSize
			for i := 0; sz.PointerLength > 0 && i < count; i++ {
				ptrs := first + i*stride + sz.DataWords()*format.WordSize
				if err := erasePointers(t.seg, ptrs, int(sz.PointerLength), t.depth); err != nil {
					return err
				}
			}
			t.seg.fillZeroWords(t.off, n+1)

		default:
			t.seg.fillZeroWords(t.off, listContentWords(e, n))
		}
	}
	return nil
}

func erasePointers(seg *Segment, off, n, depth int) error {
	for i := range n {
		slot := off + i*format.PointerSize
		if seg.isWordZero(slot) {
			continue
		}
		child, err := newPointer(seg, slot, depth)
		if err != nil {
			return err
		}
		if err := eraseSlot(child); err != nil {
			return err
		}
	}
	return nil
}
