package capnp

import (
	"fmt"

	"github.com/joshuapare/capnkit/internal/buf"
	"github.com/joshuapare/capnkit/internal/format"
)

// target is the result of resolving a pointer: its effective word (taken
// from the landing pad for far pointers) and the location of its content.
//
// For composite lists off is the tag word, not the first element.
type target struct {
	word  uint64
	seg   *Segment
	off   int
	depth int // depth given to pointers found inside the content

	// Far pointer plumbing, zeroed together with the pointer.
	padSeg   *Segment
	padOff   int
	padWords int
}

func (t target) isNull() bool { return t.word == 0 }

func (t target) kind() uint8 { return format.Kind(t.word) }

// clearPads zeroes the landing pad words of a far pointer.
func (t target) clearPads() {
	if t.padSeg == nil {
		return
	}
	t.padSeg.fillZeroWords(t.padOff, t.padWords)
}

// contentWords returns the number of words of content, including the
// composite tag word.
func (t target) contentWords() int {
	switch t.kind() {
	case format.PointerStruct:
		return structSizeOf(t.word).Words()
	case format.PointerList:
		e := ListElementSize(format.ListElementSize(t.word))
		n := int(format.ListCount(t.word))
		if e == ElementComposite {
			return n + 1
		}
		return listContentWords(e, n)
	default:
		return 0
	}
}

// resolve follows p (through far pointers if needed) to its content and
// validates that the content lies within its segment.
func (p Pointer) resolve() (target, error) {
	w := p.seg.word(p.off)
	t := target{word: w, seg: p.seg, depth: p.depth - 1}

	switch {
	case w == 0:
		return t, nil
	case format.Kind(w) == format.PointerOther:
		return t, nil
	case format.Kind(w) == format.PointerFar:
		return p.resolveFar(w)
	}

	t.off = p.off + format.WordSize + int(format.Offset(w))*format.WordSize
	return t, t.validate()
}

func (p Pointer) resolveFar(w uint64) (target, error) {
	m := p.seg.msg
	padSeg, err := m.lookupSegment(SegmentID(format.FarSegment(w)))
	if err != nil {
		return target{}, fmt.Errorf("far pointer: %w", err)
	}
	if err := m.charge(); err != nil {
		return target{}, err
	}

	padOff := int(format.FarOffset(w)) * format.WordSize
	t := target{seg: padSeg, depth: p.depth - 1, padSeg: padSeg, padOff: padOff, padWords: 1}

	if !format.IsDoubleFar(w) {
		if _, err := buf.CheckWords(padSeg.used, padOff, 1); err != nil {
			return target{}, fmt.Errorf("%w: landing pad: %v", ErrPointerOutOfRange, err)
		}
		pad := padSeg.word(padOff)
		t.word = pad
		switch {
		case pad == 0, format.Kind(pad) == format.PointerOther:
			return t, nil
		case format.Kind(pad) == format.PointerFar:
			return target{}, fmt.Errorf("%w: segment %d offset %d", ErrFarToFar, padSeg.id, padOff)
		}
		t.off = padOff + format.WordSize + int(format.Offset(pad))*format.WordSize
		return t, t.validate()
	}

	t.padWords = 2
	if _, err := buf.CheckWords(padSeg.used, padOff, 2); err != nil {
		return target{}, fmt.Errorf("%w: double far landing pad: %v", ErrPointerOutOfRange, err)
	}
	far := padSeg.word(padOff)
	tag := padSeg.word(padOff + format.WordSize)
	if format.Kind(far) != format.PointerFar || format.IsDoubleFar(far) {
		return target{}, fmt.Errorf("%w: double far landing pad is not a single far pointer", ErrFarToFar)
	}
	if k := format.Kind(tag); k != format.PointerStruct && k != format.PointerList {
		return target{}, fmt.Errorf("%w: double far tag kind %d", ErrInvalidPointerType, k)
	}

	cseg, err := m.lookupSegment(SegmentID(format.FarSegment(far)))
	if err != nil {
		return target{}, fmt.Errorf("double far pointer: %w", err)
	}
	t.word = canonical(tag)
	t.seg = cseg
	t.off = int(format.FarOffset(far)) * format.WordSize
	return t, t.validate()
}

// validate checks that the content of a struct or list target fits in its
// segment, and that composite list tags are consistent with the pointer.
func (t target) validate() error {
	switch t.kind() {
	case format.PointerStruct:
		sz := structSizeOf(t.word)
		if _, err := buf.CheckWords(t.seg.used, t.off, sz.Words()); err != nil {
			return fmt.Errorf("%w: struct content: %v", ErrPointerOutOfRange, err)
		}

	case format.PointerList:
		e := ListElementSize(format.ListElementSize(t.word))
		n := int(format.ListCount(t.word))
		if e != ElementComposite {
			if _, err := buf.CheckListBounds(t.seg.used, t.off, n, e.BitLength()); err != nil {
				return fmt.Errorf("%w: list content: %v", ErrPointerOutOfRange, err)
			}
			return nil
		}

		if _, err := buf.CheckWords(t.seg.used, t.off, n+1); err != nil {
			return fmt.Errorf("%w: composite list content: %v", ErrPointerOutOfRange, err)
		}
		tag := t.seg.word(t.off)
		if format.Kind(tag) != format.PointerStruct {
			return fmt.Errorf("%w: composite list tag kind %d", ErrInvalidPointerType, format.Kind(tag))
		}
		count := int(format.Offset(tag))
		if count < 0 {
			return fmt.Errorf("%w: negative composite element count %d", ErrPointerOutOfRange, count)
		}
		words, ok := buf.MulOverflowSafe(count, structSizeOf(tag).Words())
		if !ok || words > n {
			return fmt.Errorf("%w: %d composite elements overrun %d words", ErrPointerOutOfRange, count, n)
		}
	}
	return nil
}

// lookupSegment returns an existing segment without creating one.
func (m *Message) lookupSegment(id SegmentID) (*Segment, error) {
	if int64(id) >= int64(len(m.segments)) {
		return nil, fmt.Errorf("%w (id=%d, segments=%d)", ErrSegmentOutOfBounds, id, len(m.segments))
	}
	return m.segments[id], nil
}

// writeContent points the slot at (slotSeg, slotOff) at content described
// by w (a struct or list word whose offset is ignored) located at
// (cseg, coff). Content in another segment is reached through a landing pad
// in the content segment, or a two-word pad in the slot's segment when the
// content segment is full. A nil cseg writes w verbatim.
func writeContent(slotSeg *Segment, slotOff int, w uint64, cseg *Segment, coff int) error {
	if cseg == nil || w == 0 || format.Kind(w) == format.PointerOther {
		slotSeg.setWord(slotOff, w)
		return nil
	}
	if format.Kind(w) == format.PointerStruct && structSizeOf(w).IsZero() {
		// A zero offset would make the word indistinguishable from null.
		slotSeg.setWord(slotOff, format.EncodeStruct(-1, 0, 0))
		return nil
	}
	if slotSeg == cseg {
		return setOffset(slotSeg, slotOff, w, coff)
	}

	if cseg.hasCapacity(format.WordSize) {
		pad := cseg.used
		cseg.used += format.WordSize
		if err := setOffset(cseg, pad, w, coff); err != nil {
			return err
		}
		slotSeg.setWord(slotOff, format.EncodeFar(false, uint32(pad/format.WordSize), uint32(cseg.id)))
		return nil
	}

	padSeg, pad, err := slotSeg.allocate(2 * format.WordSize)
	if err != nil {
		return fmt.Errorf("double far landing pad: %w", err)
	}
	padSeg.setWord(pad, format.EncodeFar(false, uint32(coff/format.WordSize), uint32(cseg.id)))
	padSeg.setWord(pad+format.WordSize, format.WithOffset(w, 0))
	slotSeg.setWord(slotOff, format.EncodeFar(true, uint32(pad/format.WordSize), uint32(padSeg.id)))
	return nil
}

func setOffset(seg *Segment, off int, w uint64, coff int) error {
	rel := (coff - off - format.WordSize) / format.WordSize
	if !format.FitsOffset(rel) {
		return fmt.Errorf("%w: %d words", format.ErrOffsetOverflow, rel)
	}
	seg.setWord(off, format.WithOffset(w, int32(rel)))
	return nil
}
