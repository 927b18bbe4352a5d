package capnp

import (
	"fmt"

	"github.com/joshuapare/capnkit/internal/format"
)

// copyContent deep-copies the content of src into space allocated near seg
// and returns the word and location to hand to writeContent. depth is the
// depth of pointers inside the copy. Capability words are returned as is,
// with a nil segment.
func copyContent(src target, seg *Segment, depth int) (uint64, *Segment, int, error) {
	switch {
	case src.isNull():
		return 0, nil, 0, nil
	case src.kind() == format.PointerOther:
		return src.word, nil, 0, nil
	case src.kind() == format.PointerStruct:
		return copyStruct(src, seg, depth)
	case src.kind() == format.PointerList:
		return copyList(src, seg, depth)
	default:
		return 0, nil, 0, fmt.Errorf("%w: cannot copy %s", ErrInvalidPointerType, PointerType(src.kind()))
	}
}

func copyStruct(src target, seg *Segment, depth int) (uint64, *Segment, int, error) {
	sz := structSizeOf(src.word)
	cseg, coff, err := seg.allocate(sz.ByteLength())
	if err != nil {
		return 0, nil, 0, fmt.Errorf("copy struct %s: %w", sz, err)
	}
	dw := sz.DataWords()
	cseg.copyWords(coff, src.seg, src.off, dw)

	ptrOff := dw * format.WordSize
	err = copyPointers(src.seg, src.off+ptrOff, src.depth, cseg, coff+ptrOff, depth, int(sz.PointerLength))
	if err != nil {
		return 0, nil, 0, err
	}
	return canonical(src.word), cseg, coff, nil
}

func copyList(src target, seg *Segment, depth int) (uint64, *Segment, int, error) {
	e := ListElementSize(format.ListElementSize(src.word))
	n := int(format.ListCount(src.word))
	w := canonical(src.word)

	switch e {
	case ElementComposite:
		cseg, coff, err := seg.allocate((n + 1) * format.WordSize)
		if err != nil {
			return 0, nil, 0, fmt.Errorf("copy composite list: %w", err)
		}
		tag := src.seg.word(src.off)
		cseg.setWord(coff, tag)

		sz := structSizeOf(tag)
		count := int(format.Offset(tag))
		if sz.Words() == 0 {
			if err := src.seg.msg.chargeElements(count); err != nil {
				return 0, nil, 0, err
			}
		}
		if sz.PointerLength == 0 {
			cseg.copyWords(coff+format.WordSize, src.seg, src.off+format.WordSize, count*sz.Words())
			return w, cseg, coff, nil
		}

		dw := sz.DataWords()
		stride := sz.Words() * format.WordSize
		for i := range count {
			so := src.off + format.WordSize + i*stride
			do := coff + format.WordSize + i*stride
			cseg.copyWords(do, src.seg, so, dw)
			ptrOff := dw * format.WordSize
			err := copyPointers(src.seg, so+ptrOff, src.depth, cseg, do+ptrOff, depth, int(sz.PointerLength))
			if err != nil {
				return 0, nil, 0, err
			}
		}
		return w, cseg, coff, nil

	case ElementPointer:
		cseg, coff, err := seg.allocate(n * format.WordSize)
		if err != nil {
			return 0, nil, 0, fmt.Errorf("copy pointer list: %w", err)
		}
		if err := copyPointers(src.seg, src.off, src.depth, cseg, coff, depth, n); err != nil {
			return 0, nil, 0, err
		}
		return w, cseg, coff, nil

	default:
		words := listContentWords(e, n)
		cseg, coff, err := seg.allocate(words * format.WordSize)
		if err != nil {
			return 0, nil, 0, fmt.Errorf("copy %s list: %w", e, err)
		}
		cseg.copyWords(coff, src.seg, src.off, words)
		return w, cseg, coff, nil
	}
}

// copyPointers deep-copies n pointer slots. The destination slots must be
// zero.
func copyPointers(srcSeg *Segment, srcOff, srcDepth int, dstSeg *Segment, dstOff, dstDepth, n int) error {
	for i := range n {
		so := srcOff + i*format.PointerSize
		if srcSeg.isWordZero(so) {
			continue
		}
		sp, err := newPointer(srcSeg, so, srcDepth)
		if err != nil {
			return err
		}
		st, err := sp.resolve()
		if err != nil {
			return err
		}
		do := dstOff + i*format.PointerSize
		if dstDepth < 1 {
			return ErrDepthLimit
		}
		w, cseg, coff, err := copyContent(st, dstSeg, dstDepth-1)
		if err != nil {
			return err
		}
		if err := writeContent(dstSeg, do, w, cseg, coff); err != nil {
			return err
		}
	}
	return nil
}

// relocate moves the pointer word at (srcSeg, srcOff) to (dstSeg, dstOff)
// without moving its content, then zeroes the source slot. Far and
// capability words do not depend on their own location and are copied
// verbatim.
func relocate(srcSeg *Segment, srcOff int, dstSeg *Segment, dstOff int) error {
	w := srcSeg.word(srcOff)
	if w == 0 {
		return nil
	}
	switch format.Kind(w) {
	case format.PointerFar, format.PointerOther:
		dstSeg.setWord(dstOff, w)
	default:
		coff := srcOff + format.WordSize + int(format.Offset(w))*format.WordSize
		if err := writeContent(dstSeg, dstOff, w, srcSeg, coff); err != nil {
			return err
		}
	}
	srcSeg.setWordZero(srcOff)
	return nil
}
