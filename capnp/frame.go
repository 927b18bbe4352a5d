package capnp

import (
	"fmt"

	"github.com/joshuapare/capnkit/capnp/packed"
	"github.com/joshuapare/capnkit/internal/buf"
	"github.com/joshuapare/capnkit/internal/format"
)

// FrameHeader is a decoded stream frame header.
type FrameHeader struct {
	// Segments holds the word count of every segment, in order.
	Segments []uint32

	// HeaderSize is the byte length of the header including padding.
	HeaderSize int
}

// BodySize returns the total byte length of the segments following the header.
func (h FrameHeader) BodySize() int {
	n := 0
	for _, w := range h.Segments {
		n += int(w) * format.WordSize
	}
	return n
}

// MessageSize returns the byte length of the whole frame.
func (h FrameHeader) MessageSize() int {
	return h.HeaderSize + h.BodySize()
}

// FrameSegmentCount decodes the segment count from the first four bytes of a
// frame. It lets stream readers size the rest of the header before reading it.
func FrameSegmentCount(b []byte) (int, error) {
	if len(b) < format.FrameFieldSize {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrInvalidFrame, format.FrameFieldSize, len(b))
	}
	n := uint64(format.ReadU32(b, format.FrameCountOffset)) + 1
	if n > format.MaxSegments {
		return 0, fmt.Errorf("%w: %d segments exceeds limit %d", ErrInvalidFrame, n, format.MaxSegments)
	}
	return int(n), nil
}

// ParseFrameHeader decodes the frame header at the start of b. Only the
// header itself needs to be present.
func ParseFrameHeader(b []byte) (FrameHeader, error) {
	n, err := FrameSegmentCount(b)
	if err != nil {
		return FrameHeader{}, err
	}
	hdr := format.FrameHeaderSize(n)
	if len(b) < hdr {
		return FrameHeader{}, fmt.Errorf("%w: header needs %d bytes, have %d", ErrInvalidFrame, hdr, len(b))
	}

	h := FrameHeader{Segments: make([]uint32, n), HeaderSize: hdr}
	total := 0
	for i := range n {
		w := format.ReadU32(b, format.FrameSizesOffset+i*format.FrameFieldSize)
		h.Segments[i] = w
		var ok bool
		total, ok = buf.AddOverflowSafe(total, int(w)*format.WordSize)
		if !ok {
			return FrameHeader{}, fmt.Errorf("%w: segment sizes overflow", ErrInvalidFrame)
		}
	}
	return h, nil
}

// Unmarshal decodes a framed, unpacked message. Segments alias b: no bytes
// are copied, and writes to the message write into b. Bytes past the frame
// are ignored.
func Unmarshal(b []byte, opts ...Option) (*Message, error) {
	o := buildOptions(opts)

	h, err := ParseFrameHeader(b)
	if err != nil {
		return nil, err
	}
	if _, err := buf.CheckRange(len(b), h.HeaderSize, h.BodySize()); err != nil {
		return nil, fmt.Errorf("%w: segments overrun input: %v", ErrInvalidFrame, err)
	}
	if o.singleSegment && len(h.Segments) != 1 {
		return nil, fmt.Errorf("%w: single segment message has %d segments", ErrInvalidFrame, len(h.Segments))
	}

	bufs := make([][]byte, len(h.Segments))
	off := h.HeaderSize
	for i, w := range h.Segments {
		n := int(w) * format.WordSize
		bufs[i] = b[off : off+n : off+n]
		off += n
	}

	var arena Arena
	if o.singleSegment {
		arena, err = NewSingleSegmentArena(bufs[0])
	} else {
		arena, err = NewMultiSegmentArena(bufs)
	}
	if err != nil {
		return nil, err
	}

	m := newMessage(arena, o)
	m.segments = make([]*Segment, len(bufs))
	for i, sb := range bufs {
		m.segments[i] = &Segment{msg: m, id: SegmentID(i), buf: sb, used: len(sb)}
	}
	m.logger.Debug("capnp: frame decoded", "segments", len(bufs), "bytes", h.MessageSize())
	return m, nil
}

// UnmarshalPacked unpacks b and decodes the result.
func UnmarshalPacked(b []byte, opts ...Option) (*Message, error) {
	n, err := packed.UnpackedSize(b)
	if err != nil {
		return nil, fmt.Errorf("unpack: %w", err)
	}
	raw, err := packed.Unpack(make([]byte, 0, n), b)
	if err != nil {
		return nil, fmt.Errorf("unpack: %w", err)
	}
	return Unmarshal(raw, opts...)
}

// frame encodes the stream frame header for the current segments.
func (m *Message) frame() ([]byte, error) {
	if _, err := m.Segment(0); err != nil {
		return nil, err
	}
	n := len(m.segments)
	hdr := make([]byte, format.FrameHeaderSize(n))
	format.PutU32(hdr, format.FrameCountOffset, uint32(n-1))
	for i, s := range m.segments {
		format.PutU32(hdr, format.FrameSizesOffset+i*format.FrameFieldSize, uint32(s.used/format.WordSize))
	}
	return hdr, nil
}

// Marshal returns the framed wire image of the message.
func (m *Message) Marshal() ([]byte, error) {
	hdr, err := m.frame()
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	out := make([]byte, 0, len(hdr)+m.TotalSize())
	out = append(out, hdr...)
	for _, s := range m.segments {
		out = append(out, s.Data()...)
	}
	return out, nil
}

// MarshalPacked returns the framed wire image with the header and every
// segment packed independently.
func (m *Message) MarshalPacked() ([]byte, error) {
	hdr, err := m.frame()
	if err != nil {
		return nil, fmt.Errorf("marshal packed: %w", err)
	}
	out, err := packed.Pack(nil, hdr)
	if err != nil {
		return nil, fmt.Errorf("marshal packed: header: %w", err)
	}
	for _, s := range m.segments {
		out, err = packed.Pack(out, s.Data())
		if err != nil {
			return nil, fmt.Errorf("marshal packed: segment %d: %w", s.id, err)
		}
	}
	return out, nil
}
