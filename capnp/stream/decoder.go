package stream

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/joshuapare/capnkit/capnp"
	"github.com/joshuapare/capnkit/capnp/packed"
	"github.com/joshuapare/capnkit/internal/format"
)

// Decoder reads messages from an io.Reader.
type Decoder struct {
	r     *bufio.Reader
	pr    *packed.Reader // unpacks plain packed streams
	opts  options
	count int
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader, opts ...Option) *Decoder {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	d := &Decoder{r: br, opts: buildOptions(opts)}
	if d.opts.packed && d.opts.compression == CompressionNone {
		d.pr = packed.NewReader(br)
	}
	return d
}

// Decode reads the next message. It returns io.EOF when the stream ends
// cleanly between messages.
func (d *Decoder) Decode() (*capnp.Message, error) {
	var (
		msg *capnp.Message
		err error
	)
	switch {
	case d.opts.compression != CompressionNone:
		msg, err = d.decodeEnvelope()
	case d.pr != nil:
		msg, err = d.decodeFrame(d.pr)
	default:
		msg, err = d.decodeFrame(d.r)
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("decode message %d: %w", d.count, err)
	}
	d.count++
	return msg, nil
}

// decodeFrame reads one framed message: the segment count first, then the
// rest of the header, then the body once its size is known to be in bounds.
func (d *Decoder) decodeFrame(r io.Reader) (*capnp.Message, error) {
	var first [format.FrameFieldSize]byte
	if _, err := io.ReadFull(r, first[:]); err != nil {
		return nil, err
	}
	n, err := capnp.FrameSegmentCount(first[:])
	if err != nil {
		return nil, err
	}

	hdrSize := format.FrameHeaderSize(n)
	hdr := make([]byte, hdrSize)
	copy(hdr, first[:])
	if _, err := io.ReadFull(r, hdr[len(first):]); err != nil {
		return nil, fmt.Errorf("frame header: %w", noEOF(err))
	}
	h, err := capnp.ParseFrameHeader(hdr)
	if err != nil {
		return nil, err
	}
	size := h.MessageSize()
	if size > d.opts.maxSize {
		return nil, fmt.Errorf("%w (size=%d, limit=%d)", ErrMessageTooLarge, size, d.opts.maxSize)
	}

	b := make([]byte, size)
	copy(b, hdr)
	if _, err := io.ReadFull(r, b[hdrSize:]); err != nil {
		return nil, fmt.Errorf("segments: %w", noEOF(err))
	}
	d.opts.logger.Debug("stream: frame read", "index", d.count, "segments", len(h.Segments), "bytes", size)
	return capnp.Unmarshal(b, d.opts.msgOpts...)
}

func (d *Decoder) decodeEnvelope() (*capnp.Message, error) {
	var hdr [envelopeHeaderSize]byte
	if _, err := io.ReadFull(d.r, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: short header", ErrInvalidEnvelope)
		}
		return nil, err
	}

	c := Compression(hdr[0])
	rawLen := int(format.ReadU32(hdr[:], 1))
	storedLen := int(format.ReadU32(hdr[:], 5))
	switch {
	case c > CompressionLZ4:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, hdr[0])
	case rawLen > d.opts.maxSize:
		return nil, fmt.Errorf("%w (size=%d, limit=%d)", ErrMessageTooLarge, rawLen, d.opts.maxSize)
	case storedLen == 0 && rawLen > 0:
		return nil, fmt.Errorf("%w: empty payload for %d raw bytes", ErrInvalidEnvelope, rawLen)
	case storedLen > rawLen, c == CompressionNone && storedLen != rawLen:
		return nil, fmt.Errorf("%w: stored=%d raw=%d", ErrInvalidEnvelope, storedLen, rawLen)
	}

	stored := make([]byte, storedLen)
	if _, err := io.ReadFull(d.r, stored); err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrInvalidEnvelope, noEOF(err))
	}
	payload := stored
	if c != CompressionNone {
		var err error
		payload, err = decompress(c, stored, rawLen, d.opts.maxSize)
		if err != nil {
			return nil, err
		}
	}
	d.opts.logger.Debug("stream: envelope read",
		"index", d.count, "compression", c.String(), "raw", rawLen, "stored", storedLen)

	if !d.opts.packed {
		return capnp.Unmarshal(payload, d.opts.msgOpts...)
	}
	n, err := packed.UnpackedSize(payload)
	if err != nil {
		return nil, err
	}
	if n > d.opts.maxSize {
		return nil, fmt.Errorf("%w (size=%d, limit=%d)", ErrMessageTooLarge, n, d.opts.maxSize)
	}
	return capnp.UnmarshalPacked(payload, d.opts.msgOpts...)
}

// noEOF turns io.EOF inside a message into io.ErrUnexpectedEOF.
func noEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
