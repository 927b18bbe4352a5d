package capnp

import (
	"fmt"

	"github.com/joshuapare/capnkit/internal/format"
)

// Arena decides where the buffers backing a message's segments come from and
// how they grow.
//
// Arena instances are not thread-safe.
type Arena interface {
	// Allocate returns a buffer with at least minSize free bytes past the
	// allocated length of the segment it belongs to. The id is either an
	// existing segment (whose buffer is replaced, keeping its prefix) or
	// len(segments) for a brand-new segment.
	Allocate(minSize int, segments []*Segment) (ArenaAllocation, error)

	// Buffer returns the buffer of segment id.
	Buffer(id SegmentID) ([]byte, error)

	// NumSegments returns the number of buffers the arena holds.
	NumSegments() int
}

// ArenaAllocation is the result of Arena.Allocate.
type ArenaAllocation struct {
	ID     SegmentID
	Buffer []byte
}

// SingleSegmentArena keeps the whole message in one buffer. Growing copies
// the existing content into a larger buffer, so no far pointers are ever
// needed.
type SingleSegmentArena struct {
	buf []byte
}

// NewSingleSegmentArena returns an arena over buf. A nil buf yields an empty
// arena that allocates its first buffer on demand.
func NewSingleSegmentArena(buf []byte) (*SingleSegmentArena, error) {
	if !format.IsWordAligned(len(buf)) {
		return nil, fmt.Errorf("single segment arena: %w (len=%d)", ErrNotWordAligned, len(buf))
	}
	return &SingleSegmentArena{buf: buf}, nil
}

// Allocate grows the single buffer by max(padToWord(minSize), 4096) bytes.
func (a *SingleSegmentArena) Allocate(minSize int, segments []*Segment) (ArenaAllocation, error) {
	src := a.buf
	if len(segments) > 0 {
		src = segments[0].buf
	}

	grow := max(format.PadToWord(minSize), format.MinSingleSegmentGrowth)
	newLen := len(src) + grow
	if newLen > format.MaxSegmentLength {
		return ArenaAllocation{}, fmt.Errorf("single segment arena: %w (requested=%d)", ErrSegmentTooLarge, newLen)
	}

	// Both buffers are word aligned; the new tail is already zero.
	buf := make([]byte, newLen)
	copy(buf, src)
	a.buf = buf

	return ArenaAllocation{ID: 0, Buffer: buf}, nil
}

// Buffer returns the single buffer for id 0.
func (a *SingleSegmentArena) Buffer(id SegmentID) ([]byte, error) {
	if id != 0 || a.buf == nil {
		return nil, fmt.Errorf("single segment arena: %w (id=%d)", ErrSegmentOutOfBounds, id)
	}
	return a.buf, nil
}

// NumSegments returns 1 once a buffer exists, else 0.
func (a *SingleSegmentArena) NumSegments() int {
	if a.buf == nil {
		return 0
	}
	return 1
}

// MultiSegmentArena appends a new buffer for every allocation that does not
// fit. Existing buffers never move, so pointers into them stay valid.
type MultiSegmentArena struct {
	bufs [][]byte
}

// NewMultiSegmentArena returns an arena over the given buffers (which may be
// empty).
func NewMultiSegmentArena(bufs [][]byte) (*MultiSegmentArena, error) {
	for i, b := range bufs {
		if !format.IsWordAligned(len(b)) {
			return nil, fmt.Errorf("multi segment arena: buffer %d: %w (len=%d)", i, ErrNotWordAligned, len(b))
		}
	}
	return &MultiSegmentArena{bufs: bufs}, nil
}

// Allocate appends a new buffer of padToWord(max(minSize, 4096)) bytes.
func (a *MultiSegmentArena) Allocate(minSize int, _ []*Segment) (ArenaAllocation, error) {
	size := format.PadToWord(max(minSize, format.DefaultBufferSize))
	if size > format.MaxSegmentLength {
		return ArenaAllocation{}, fmt.Errorf("multi segment arena: %w (requested=%d)", ErrSegmentTooLarge, size)
	}
	if len(a.bufs) >= 1<<32-1 {
		return ArenaAllocation{}, fmt.Errorf("multi segment arena: %w (segments=%d)", ErrSegmentOutOfBounds, len(a.bufs))
	}
	buf := make([]byte, size)
	a.bufs = append(a.bufs, buf)
	return ArenaAllocation{ID: SegmentID(len(a.bufs) - 1), Buffer: buf}, nil
}

// Buffer returns the buffer of segment id.
func (a *MultiSegmentArena) Buffer(id SegmentID) ([]byte, error) {
	if int64(id) >= int64(len(a.bufs)) {
		return nil, fmt.Errorf("multi segment arena: %w (id=%d, segments=%d)", ErrSegmentOutOfBounds, id, len(a.bufs))
	}
	return a.bufs[id], nil
}

// NumSegments returns the number of buffers.
func (a *MultiSegmentArena) NumSegments() int {
	return len(a.bufs)
}
