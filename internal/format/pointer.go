package format

// Pointer word layout (little-endian, read as one uint64):
//
//	bits  0..1   kind (struct=0, list=1, far=2, other=3)
//
//	struct:  bits  2..31  signed word offset from the end of the pointer
//	         bits 32..47  data section size in words
//	         bits 48..63  pointer section size in pointers
//
//	list:    bits  2..31  signed word offset from the end of the pointer
//	         bits 32..34  element size tag
//	         bits 35..63  element count (word count for composite lists)
//
//	far:     bit   2      double-far flag
//	         bits  3..31  landing pad word offset from the segment start
//	         bits 32..63  landing pad segment id
//
//	other:   bits  2..31  zero (capability pointer)
//	         bits 32..63  capability index

// Kind returns the kind bits of a pointer word.
func Kind(w uint64) uint8 {
	return uint8(w & PointerKindMask)
}

// Offset returns the signed word offset of a struct or list pointer.
func Offset(w uint64) int32 {
	return int32(uint32(w)) >> OffsetShift
}

// StructDataWords returns the data section size of a struct pointer in words.
func StructDataWords(w uint64) uint16 {
	return uint16(w >> 32)
}

// StructPointerCount returns the pointer section size of a struct pointer.
func StructPointerCount(w uint64) uint16 {
	return uint16(w >> 48)
}

// ListElementSize returns the element size tag of a list pointer.
func ListElementSize(w uint64) uint8 {
	return uint8(w>>32) & ElementSizeMask
}

// ListCount returns the element count of a list pointer (the word count for
// composite lists).
func ListCount(w uint64) uint32 {
	return uint32(w>>32) >> ListCountShift
}

// IsDoubleFar reports whether a far pointer uses a two-word landing pad.
func IsDoubleFar(w uint64) bool {
	return w&DoubleFarBit != 0
}

// FarOffset returns the landing pad word offset of a far pointer.
func FarOffset(w uint64) uint32 {
	return uint32(w) >> FarOffsetShift
}

// FarSegment returns the landing pad segment id of a far pointer.
func FarSegment(w uint64) uint32 {
	return uint32(w >> 32)
}

// CapabilityID returns the capability index of an interface pointer.
func CapabilityID(w uint64) uint32 {
	return uint32(w >> 32)
}

// WithOffset replaces the struct/list offset of w, keeping the kind bits and
// the upper half.
func WithOffset(w uint64, offsetWords int32) uint64 {
	lo := uint32(offsetWords)<<OffsetShift | uint32(w&PointerKindMask)
	return w&0xFFFFFFFF00000000 | uint64(lo)
}

// EncodeStruct builds a struct pointer word.
func EncodeStruct(offsetWords int32, dataWords, pointers uint16) uint64 {
	lo := uint32(offsetWords)<<OffsetShift | PointerStruct
	hi := uint32(dataWords) | uint32(pointers)<<16
	return uint64(lo) | uint64(hi)<<32
}

// EncodeList builds a list pointer word.
func EncodeList(offsetWords int32, elementSize uint8, count uint32) uint64 {
	lo := uint32(offsetWords)<<OffsetShift | PointerList
	hi := count<<ListCountShift | uint32(elementSize&ElementSizeMask)
	return uint64(lo) | uint64(hi)<<32
}

// EncodeFar builds a far pointer word.
func EncodeFar(doubleFar bool, landingPadWords, segment uint32) uint64 {
	lo := landingPadWords<<FarOffsetShift | PointerFar
	if doubleFar {
		lo |= DoubleFarBit
	}
	return uint64(lo) | uint64(segment)<<32
}

// EncodeOther builds a capability pointer word.
func EncodeOther(capID uint32) uint64 {
	return PointerOther | uint64(capID)<<32
}

// FitsOffset reports whether offsetWords fits the 30-bit signed offset field.
func FitsOffset(offsetWords int) bool {
	return offsetWords >= MinOffsetWords && offsetWords <= MaxOffsetWords
}
