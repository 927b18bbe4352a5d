// Package format houses the low-level layout of the Cap'n Proto wire format:
// pointer word bit fields, list element widths, stream frame layout and the
// little-endian helpers used to read and write them. The goal is to keep the
// bit twiddling focused and allocation-free, independent from the public API
// so higher-level packages can orchestrate it in a more ergonomic form.
package format

const (
	// WordSize is the size of a Cap'n Proto word in bytes. Every object,
	// segment and pointer is aligned to this boundary.
	WordSize = 8

	// WordAlignmentMask is the bitmask used for aligning to word boundaries (WordSize - 1).
	WordAlignmentMask = WordSize - 1

	// PointerSize is the size of a single pointer slot.
	PointerSize = WordSize

	// DefaultBufferSize is the size of the first buffer handed out by an arena
	// and the minimum growth step of both arena variants.
	DefaultBufferSize = 4096

	// MinSingleSegmentGrowth is the minimum number of bytes a single-segment
	// arena grows by.
	MinSingleSegmentGrowth = 4096

	// MaxSegmentLength is the largest segment the format can address
	// (32-bit word counts in the frame, minus one word of slack).
	MaxSegmentLength = 0xFFFFFFFF - WordSize

	// MaxSegments bounds the number of segments accepted from a stream frame.
	MaxSegments = 512

	// DefaultDepthLimit is the default nesting budget of a pointer.
	DefaultDepthLimit = 64

	// DefaultTraverseLimit is the default traversal budget of a message in
	// bytes. Every pointer construction charges PointerSize bytes.
	DefaultTraverseLimit = 64 << 20

	// PackSpanThreshold is the number of zero bytes tolerated inside a
	// literal (0xFF) packing span before the packer falls back to tagged words.
	PackSpanThreshold = 2

	// MaxPackSpan is the largest word count a single zero run or literal
	// span can carry after its tag.
	MaxPackSpan = 0xFF
)

// Pointer kinds, stored in the low two bits of a pointer word.
const (
	PointerStruct = 0
	PointerList   = 1
	PointerFar    = 2
	PointerOther  = 3

	// PointerKindMask selects the kind bits.
	PointerKindMask = 0x03
)

// Bit layout of the first 32 bits of a pointer word.
const (
	// OffsetShift is the shift of the 30-bit signed word offset used by struct
	// and list pointers.
	OffsetShift = 2

	// FarOffsetShift is the shift of the 29-bit landing pad offset used by far
	// pointers; bit 2 is the double-far flag.
	FarOffsetShift = 3

	// DoubleFarBit marks a far pointer whose landing pad is two words long.
	DoubleFarBit = 1 << 2

	// MaxOffsetWords is the largest positive struct/list offset (2^29-1).
	MaxOffsetWords = 1<<29 - 1

	// MinOffsetWords is the most negative struct/list offset (-2^29).
	MinOffsetWords = -(1 << 29)

	// MaxFarOffsetWords is the largest landing pad offset (2^29-1).
	MaxFarOffsetWords = 1<<29 - 1
)

// Bit layout of the second 32 bits of a list pointer.
const (
	// ElementSizeMask selects the 3-bit element size tag.
	ElementSizeMask = 0x07

	// ListCountShift is the shift of the 29-bit element count.
	ListCountShift = 3

	// MaxListCount is the largest element (or composite word) count.
	MaxListCount = 1<<29 - 1
)

// List element size tags.
const (
	ElementVoid      = 0
	ElementBit       = 1
	ElementByte      = 2
	ElementTwoBytes  = 3
	ElementFourBytes = 4
	ElementEightByte = 5
	ElementPointer   = 6
	ElementComposite = 7
)

// elementByteLengths maps a list element size tag to its width in bytes.
// Bit and composite elements have no fixed byte width and map to -1.
var elementByteLengths = [8]int{0, -1, 1, 2, 4, 8, 8, -1}

// ElementByteLength returns the width in bytes of a list element with the
// given size tag, or -1 for bit and composite lists.
func ElementByteLength(tag uint8) int {
	return elementByteLengths[tag&ElementSizeMask]
}

// ElementBitLength returns the width in bits of a non-composite element.
func ElementBitLength(tag uint8) int {
	switch tag & ElementSizeMask {
	case ElementBit:
		return 1
	case ElementComposite:
		return -1
	default:
		return elementByteLengths[tag&ElementSizeMask] * 8
	}
}

// Stream frame layout.
const (
	// FrameCountOffset is the offset of the segment-count-minus-one field.
	FrameCountOffset = 0

	// FrameSizesOffset is the offset of the first segment word count.
	FrameSizesOffset = 4

	// FrameFieldSize is the size of every frame header field.
	FrameFieldSize = 4
)
