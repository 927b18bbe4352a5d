package format

// Alignment utilities for the Cap'n Proto wire format.
// Every object, segment and frame is padded to an 8-byte word.

// PadToWord returns n aligned up to the next word boundary.
//
// Example:
//
//	PadToWord(0)  = 0
//	PadToWord(1)  = 8
//	PadToWord(8)  = 8
//	PadToWord(9)  = 16
func PadToWord(n int) int {
	return (n + WordAlignmentMask) & ^WordAlignmentMask
}

// IsWordAligned reports whether n is a multiple of the word size.
func IsWordAligned(n int) bool {
	return n&WordAlignmentMask == 0
}

// Words returns the number of words needed to hold n bytes.
func Words(n int) int {
	return PadToWord(n) / WordSize
}

// FrameHeaderSize returns the byte length of a stream frame header for the
// given number of segments: one count field plus one size field per
// segment, padded to a word.
//
// Example:
//
//	FrameHeaderSize(1) = 8
//	FrameHeaderSize(2) = 16
//	FrameHeaderSize(3) = 16
func FrameHeaderSize(segments int) int {
	return PadToWord(FrameSizesOffset + segments*FrameFieldSize)
}
