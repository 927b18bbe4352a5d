// Package packed implements Cap'n Proto packing, a run-length encoding of
// zero bytes applied to a word-aligned message.
//
// Every word is preceded by a tag byte whose bit i is set when byte i of the
// word is non-zero; only the non-zero bytes follow. Two tags are special:
//
//	0x00  all-zero word, followed by a count of additional all-zero words
//	0xFF  all non-zero word, followed by its 8 bytes, a count N, and N
//	      words copied verbatim
//
// A literal (0xFF) span keeps absorbing words while the number of zero
// bytes inside the span stays below a small threshold, so mostly-dense data
// is copied rather than tagged word by word.
package packed

import (
	"errors"
	"fmt"
	"slices"

	"github.com/joshuapare/capnkit/internal/format"
)

var (
	// ErrTruncated indicates packed input that ends inside a tag's payload.
	ErrTruncated = errors.New("packed: truncated input")

	// ErrNotWordAligned indicates input to Pack that is not a whole number of words.
	ErrNotWordAligned = errors.New("packed: input not word aligned")
)

const (
	tagZero    = 0x00
	tagLiteral = 0xFF
)

// Pack appends the packed encoding of src to dst.
func Pack(dst, src []byte) ([]byte, error) {
	if !format.IsWordAligned(len(src)) {
		return dst, fmt.Errorf("%w: %d bytes", ErrNotWordAligned, len(src))
	}

	for i := 0; i < len(src); {
		word := src[i : i+format.WordSize]
		i += format.WordSize
		tag := tagOf(word)
		dst = append(dst, tag)

		switch tag {
		case tagZero:
			n := 0
			for i < len(src) && n < format.MaxPackSpan && isZeroWord(src[i:i+format.WordSize]) {
				n++
				i += format.WordSize
			}
			dst = append(dst, byte(n))

		case tagLiteral:
			dst = append(dst, word...)
			start := i
			n, zeros := 0, 0
			for i < len(src) && n < format.MaxPackSpan {
				z := zeroBytes(src[i : i+format.WordSize])
				if zeros+z >= format.PackSpanThreshold {
					break
				}
				zeros += z
				n++
				i += format.WordSize
			}
			dst = append(dst, byte(n))
			dst = append(dst, src[start:i]...)

		default:
			for _, b := range word {
				if b != 0 {
					dst = append(dst, b)
				}
			}
		}
	}
	return dst, nil
}

// Unpack appends the decoded form of the packed bytes in src to dst. Input
// that ends inside a tag's payload returns ErrTruncated.
func Unpack(dst, src []byte) ([]byte, error) {
	for i := 0; i < len(src); {
		tag := src[i]
		i++

		switch tag {
		case tagZero:
			if i >= len(src) {
				return dst, fmt.Errorf("%w: zero run count at %d", ErrTruncated, i)
			}
			n := (int(src[i]) + 1) * format.WordSize
			i++
			dst = slices.Grow(dst, n)
			start := len(dst)
			dst = dst[:start+n]
			clear(dst[start:])

		case tagLiteral:
			if len(src)-i < format.WordSize+1 {
				return dst, fmt.Errorf("%w: literal word at %d", ErrTruncated, i)
			}
			dst = append(dst, src[i:i+format.WordSize]...)
			i += format.WordSize
			n := int(src[i]) * format.WordSize
			i++
			if len(src)-i < n {
				return dst, fmt.Errorf("%w: literal span of %d bytes at %d", ErrTruncated, n, i)
			}
			dst = append(dst, src[i:i+n]...)
			i += n

		default:
			var w [format.WordSize]byte
			for b := range format.WordSize {
				if tag&(1<<b) == 0 {
					continue
				}
				if i >= len(src) {
					return dst, fmt.Errorf("%w: tagged word at %d", ErrTruncated, i)
				}
				w[b] = src[i]
				i++
			}
			dst = append(dst, w[:]...)
		}
	}
	return dst, nil
}

// UnpackedSize returns the number of bytes Unpack would produce for src
// without decoding it, so the destination can be allocated exactly once.
func UnpackedSize(src []byte) (int, error) {
	size := 0
	for i := 0; i < len(src); {
		tag := src[i]
		i++

		switch tag {
		case tagZero:
			if i >= len(src) {
				return 0, fmt.Errorf("%w: zero run count at %d", ErrTruncated, i)
			}
			size += (int(src[i]) + 1) * format.WordSize
			i++

		case tagLiteral:
			if len(src)-i < format.WordSize+1 {
				return 0, fmt.Errorf("%w: literal word at %d", ErrTruncated, i)
			}
			i += format.WordSize
			n := int(src[i]) * format.WordSize
			i++
			if len(src)-i < n {
				return 0, fmt.Errorf("%w: literal span of %d bytes at %d", ErrTruncated, n, i)
			}
			size += format.WordSize + n
			i += n

		default:
			i += popcount(tag)
			if i > len(src) {
				return 0, fmt.Errorf("%w: tagged word", ErrTruncated)
			}
			size += format.WordSize
		}
	}
	return size, nil
}

func tagOf(word []byte) byte {
	var tag byte
	for b, v := range word {
		if v != 0 {
			tag |= 1 << b
		}
	}
	return tag
}

func isZeroWord(word []byte) bool {
	return format.ReadU64(word, 0) == 0
}

func zeroBytes(word []byte) int {
	n := 0
	for _, v := range word {
		if v == 0 {
			n++
		}
	}
	return n
}

func popcount(b byte) int {
	n := 0
	for ; b != 0; b &= b - 1 {
		n++
	}
	return n
}
