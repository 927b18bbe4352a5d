// Package buf contains overflow-safe arithmetic for validating byte and word
// ranges inside segment buffers before they are dereferenced.
package buf

import (
	"fmt"
	"math"
)

const wordSize = 8

// AddOverflowSafe adds a and b, returning ok = false when the result would overflow int.
func AddOverflowSafe(a, b int) (int, bool) {
	switch {
	case b > 0 && a > math.MaxInt-b:
		return 0, false
	case b < 0 && a < math.MinInt-b:
		return 0, false
	default:
		return a + b, true
	}
}

// MulOverflowSafe multiplies two non-negative ints, returning ok = false when
// the result would overflow int or either operand is negative.
// This is essential for count * elementSize calculations on untrusted lists.
func MulOverflowSafe(a, b int) (int, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxInt/b {
		return 0, false
	}
	return a * b, true
}

// CheckRange validates that n bytes starting at offset fit in a buffer of
// bufLen bytes. Returns the end offset if valid, or an error describing the
// specific failure (overflow or out of bounds).
func CheckRange(bufLen, offset, n int) (int, error) {
	if offset < 0 {
		return 0, fmt.Errorf("negative offset: %d", offset)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative length: %d", n)
	}
	end, ok := AddOverflowSafe(offset, n)
	if !ok {
		return 0, fmt.Errorf("overflow: offset=%d + size=%d", offset, n)
	}
	if end > bufLen {
		return 0, fmt.Errorf("bounds: end=%d > len=%d", end, bufLen)
	}
	return end, nil
}

// CheckWords validates that words whole words starting at the byte offset
// fit in a buffer of bufLen bytes.
//
// This is the recommended way to validate object content before touching it:
//
//	end, err := buf.CheckWords(seg.Len(), off, dataWords+pointers)
//	if err != nil {
//	    return fmt.Errorf("struct content: %w", err)
//	}
func CheckWords(bufLen, offset, words int) (int, error) {
	n, ok := MulOverflowSafe(words, wordSize)
	if !ok {
		return 0, fmt.Errorf("overflow: words=%d * %d", words, wordSize)
	}
	return CheckRange(bufLen, offset, n)
}

// CheckListBounds validates that count elements of elementBits bits each fit
// in a buffer starting at offset, with the content padded to a whole word.
// Returns the padded end offset.
func CheckListBounds(bufLen, offset, count, elementBits int) (int, error) {
	if count < 0 {
		return 0, fmt.Errorf("negative count: %d", count)
	}
	if elementBits < 0 {
		return 0, fmt.Errorf("negative element size: %d", elementBits)
	}
	totalBits, ok := MulOverflowSafe(count, elementBits)
	if !ok {
		return 0, fmt.Errorf("overflow: count=%d * elemBits=%d", count, elementBits)
	}
	words := (totalBits + 63) / 64
	return CheckWords(bufLen, offset, words)
}

// Slice returns the sub-slice [off:off+n] if it fits within len(b).
func Slice(b []byte, off, n int) ([]byte, bool) {
	end, err := CheckRange(len(b), off, n)
	if err != nil {
		return nil, false
	}
	return b[off:end], true
}

// Has reports whether b[off:off+n] is within bounds.
func Has(b []byte, off, n int) bool {
	_, ok := Slice(b, off, n)
	return ok
}
