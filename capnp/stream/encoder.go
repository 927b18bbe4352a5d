package stream

import (
	"fmt"
	"io"

	"github.com/joshuapare/capnkit/capnp"
	"github.com/joshuapare/capnkit/internal/format"
)

// Encoder writes messages to an io.Writer.
type Encoder struct {
	w     io.Writer
	opts  options
	count int
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer, opts ...Option) *Encoder {
	return &Encoder{w: w, opts: buildOptions(opts)}
}

// Encode writes one message.
func (e *Encoder) Encode(msg *capnp.Message) error {
	size := format.FrameHeaderSize(max(msg.NumSegments(), 1)) + msg.TotalSize()
	if size > e.opts.maxSize {
		return fmt.Errorf("encode message %d: %w (size=%d, limit=%d)", e.count, ErrMessageTooLarge, size, e.opts.maxSize)
	}

	var (
		wire []byte
		err  error
	)
	if e.opts.packed {
		wire, err = msg.MarshalPacked()
	} else {
		wire, err = msg.Marshal()
	}
	if err != nil {
		return fmt.Errorf("encode message %d: %w", e.count, err)
	}

	if e.opts.compression != CompressionNone {
		wire, err = e.envelope(wire)
		if err != nil {
			return fmt.Errorf("encode message %d: %w", e.count, err)
		}
	}

	if _, err := e.w.Write(wire); err != nil {
		return fmt.Errorf("encode message %d: write: %w", e.count, err)
	}
	e.opts.logger.Debug("stream: message encoded",
		"index", e.count, "bytes", len(wire), "packed", e.opts.packed, "compression", e.opts.compression.String())
	e.count++
	return nil
}

// envelope wraps payload in a compression envelope, falling back to raw
// storage when compression does not help.
func (e *Encoder) envelope(payload []byte) ([]byte, error) {
	c := e.opts.compression
	stored, err := compress(c, payload)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		c = CompressionNone
		stored = payload
	}

	out := make([]byte, envelopeHeaderSize+len(stored))
	out[0] = byte(c)
	format.PutU32(out, 1, uint32(len(payload)))
	format.PutU32(out, 5, uint32(len(stored)))
	copy(out[envelopeHeaderSize:], stored)
	return out, nil
}
