package capnp

import (
	"fmt"

	"github.com/joshuapare/capnkit/internal/format"
)

// resizeStruct moves the struct t referenced by p into a new allocation of
// the given (larger) size. The data section is copied, pointers are
// relocated without moving their content, and the old words are zeroed.
func (p Pointer) resizeStruct(t target, size ObjectSize) (Struct, error) {
	old := structSizeOf(t.word)
	cseg, coff, err := p.seg.allocate(size.ByteLength())
	if err != nil {
		return Struct{}, fmt.Errorf("resize struct %s to %s: %w", old, size, err)
	}

	cseg.copyWords(coff, t.seg, t.off, old.DataWords())
	oldPtrs := t.off + old.DataWords()*format.WordSize
	newPtrs := coff + size.DataWords()*format.WordSize
	for i := range int(old.PointerLength) {
		if err := relocate(t.seg, oldPtrs+i*format.PointerSize, cseg, newPtrs+i*format.PointerSize); err != nil {
			return Struct{}, err
		}
	}
	t.seg.fillZeroWords(t.off, old.Words())
	t.clearPads()

	if err := writeContent(p.seg, p.off, structWord(size), cseg, coff); err != nil {
		return Struct{}, err
	}
	p.seg.msg.logger.Debug("capnp: struct resized", "from", old.String(), "to", size.String())
	return Struct{seg: cseg, off: coff, size: size, depth: t.depth, slot: p}, nil
}

// resizeList grows every element of the composite list t referenced by p to
// size, the same way resizeStruct grows a single struct.
func (p Pointer) resizeList(t target, size ObjectSize) (List, error) {
	tag := t.seg.word(t.off)
	old := structSizeOf(tag)
	count := int(format.Offset(tag))

	words := count * size.Words()
	if words > format.MaxListCount {
		return List{}, fmt.Errorf("%w: %d words of composite elements", ErrObjectTooLarge, words)
	}
	cseg, coff, err := p.seg.allocate((words + 1) * format.WordSize)
	if err != nil {
		return List{}, fmt.Errorf("resize composite list %s to %s: %w", old, size, err)
	}
	cseg.setWord(coff, format.EncodeStruct(int32(count), uint16(size.DataWords()), size.PointerLength))

	oldStride := old.Words() * format.WordSize
	newStride := size.Words() * format.WordSize
	for i := range count {
		so := t.off + format.WordSize + i*oldStride
		do := coff + format.WordSize + i*newStride
		cseg.copyWords(do, t.seg, so, old.DataWords())

		oldPtrs := so + old.DataWords()*format.WordSize
		newPtrs := do + size.DataWords()*format.WordSize
		for j := range int(old.PointerLength) {
			if err := relocate(t.seg, oldPtrs+j*format.PointerSize, cseg, newPtrs+j*format.PointerSize); err != nil {
				return List{}, err
			}
		}
	}
	t.seg.fillZeroWords(t.off, int(format.ListCount(t.word))+1)
	t.clearPads()

	w := format.EncodeList(0, format.ElementComposite, uint32(words))
	if err := writeContent(p.seg, p.off, w, cseg, coff); err != nil {
		return List{}, err
	}
	p.seg.msg.logger.Debug("capnp: composite list resized", "elements", count, "from", old.String(), "to", size.String())
	return List{
		seg:    cseg,
		off:    coff + format.WordSize,
		length: count,
		elem:   ElementComposite,
		size:   size,
		depth:  t.depth,
	}, nil
}
