package capnp

import (
	"fmt"
	"math"

	"github.com/joshuapare/capnkit/internal/format"
)

// SegmentID identifies a segment within its message.
type SegmentID uint32

// Segment is one word-aligned buffer of a message. Bytes [0, Len()) are
// allocated; the rest of the buffer is zero and available to the bump
// allocator.
//
// Primitive accessors do not validate offsets beyond Go's slice checks: the
// Pointer and Struct layers validate every range before touching it.
type Segment struct {
	msg  *Message
	id   SegmentID
	buf  []byte
	used int
}

// ID returns the segment id.
func (s *Segment) ID() SegmentID { return s.id }

// Message returns the message owning the segment.
func (s *Segment) Message() *Message { return s.msg }

// Len returns the number of allocated bytes.
func (s *Segment) Len() int { return s.used }

// Capacity returns the length of the backing buffer.
func (s *Segment) Capacity() int { return len(s.buf) }

// Data returns the allocated bytes. The slice aliases the segment.
func (s *Segment) Data() []byte { return s.buf[:s.used] }

func (s *Segment) hasCapacity(n int) bool {
	return len(s.buf)-s.used >= n
}

// allocate bump-allocates n bytes (padded to a word). When the segment is
// full the message provides another segment, which is returned instead:
// callers must not assume the result lives in s.
func (s *Segment) allocate(n int) (*Segment, int, error) {
	n = format.PadToWord(n)
	if n > format.MaxSegmentLength-format.WordSize {
		return nil, 0, fmt.Errorf("allocate %d bytes: %w", n, ErrSegmentTooLarge)
	}

	seg := s
	if !seg.hasCapacity(n) {
		var err error
		seg, err = s.msg.allocateSegment(n)
		if err != nil {
			return nil, 0, err
		}
	}

	off := seg.used
	seg.used += n
	return seg, off, nil
}

// replaceBuffer swaps the backing buffer for one with an identical prefix.
func (s *Segment) replaceBuffer(b []byte) error {
	if len(b) < s.used {
		return fmt.Errorf("segment %d: %w (have=%d, replacement=%d)", s.id, ErrSegmentShrink, s.used, len(b))
	}
	if !format.IsWordAligned(len(b)) {
		return fmt.Errorf("segment %d: %w", s.id, ErrNotWordAligned)
	}
	s.buf = b
	return nil
}

// --- word primitives ---

func (s *Segment) word(off int) uint64 { return format.ReadU64(s.buf, off) }

func (s *Segment) setWord(off int, w uint64) { format.PutU64(s.buf, off, w) }

func (s *Segment) isWordZero(off int) bool { return s.word(off) == 0 }

func (s *Segment) setWordZero(off int) { s.setWord(off, 0) }

func (s *Segment) copyWord(dstOff int, src *Segment, srcOff int) {
	s.setWord(dstOff, src.word(srcOff))
}

func (s *Segment) copyWords(dstOff int, src *Segment, srcOff, words int) {
	n := words * format.WordSize
	copy(s.buf[dstOff:dstOff+n], src.buf[srcOff:srcOff+n])
}

func (s *Segment) fillZeroWords(off, words int) {
	clear(s.buf[off : off+words*format.WordSize])
}

// --- primitive accessors ---

// Uint8 reads the byte at off.
func (s *Segment) Uint8(off int) uint8 { return s.buf[off] }

// Uint16 reads a little-endian uint16 at off.
func (s *Segment) Uint16(off int) uint16 { return format.ReadU16(s.buf, off) }

// Uint32 reads a little-endian uint32 at off.
func (s *Segment) Uint32(off int) uint32 { return format.ReadU32(s.buf, off) }

// Uint64 reads a little-endian uint64 at off.
func (s *Segment) Uint64(off int) uint64 { return format.ReadU64(s.buf, off) }

// Int8 reads the signed byte at off.
func (s *Segment) Int8(off int) int8 { return int8(s.buf[off]) }

// Int16 reads a little-endian int16 at off.
func (s *Segment) Int16(off int) int16 { return int16(s.Uint16(off)) }

// Int32 reads a little-endian int32 at off.
func (s *Segment) Int32(off int) int32 { return format.ReadI32(s.buf, off) }

// Int64 reads a little-endian int64 at off.
func (s *Segment) Int64(off int) int64 { return int64(s.Uint64(off)) }

// Float32 reads a little-endian IEEE 754 float32 at off.
func (s *Segment) Float32(off int) float32 { return math.Float32frombits(s.Uint32(off)) }

// Float64 reads a little-endian IEEE 754 float64 at off.
func (s *Segment) Float64(off int) float64 { return math.Float64frombits(s.Uint64(off)) }

// SetUint8 writes v at off.
func (s *Segment) SetUint8(off int, v uint8) { s.buf[off] = v }

// SetUint16 writes v at off.
func (s *Segment) SetUint16(off int, v uint16) { format.PutU16(s.buf, off, v) }

// SetUint32 writes v at off.
func (s *Segment) SetUint32(off int, v uint32) { format.PutU32(s.buf, off, v) }

// SetUint64 writes v at off.
func (s *Segment) SetUint64(off int, v uint64) { format.PutU64(s.buf, off, v) }

// SetInt8 writes v at off.
func (s *Segment) SetInt8(off int, v int8) { s.buf[off] = uint8(v) }

// SetInt16 writes v at off.
func (s *Segment) SetInt16(off int, v int16) { s.SetUint16(off, uint16(v)) }

// SetInt32 writes v at off.
func (s *Segment) SetInt32(off int, v int32) { format.PutI32(s.buf, off, v) }

// SetInt64 writes v at off.
func (s *Segment) SetInt64(off int, v int64) { s.SetUint64(off, uint64(v)) }

// SetFloat32 writes v at off.
func (s *Segment) SetFloat32(off int, v float32) { s.SetUint32(off, math.Float32bits(v)) }

// SetFloat64 writes v at off.
func (s *Segment) SetFloat64(off int, v float64) { s.SetUint64(off, math.Float64bits(v)) }
