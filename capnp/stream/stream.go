// Package stream reads and writes sequences of Cap'n Proto messages.
//
// # Wire Layout
//
// Without compression a stream is the plain concatenation of framed
// messages, each optionally packed, so it can be read by any Cap'n Proto
// implementation:
//
//	[frame][segments...][frame][segments...]...
//
// With compression every message (after optional packing) is wrapped in an
// envelope:
//
//	[u8 compression][u32 LE raw length][u32 LE stored length][stored bytes]
//
// A message that does not shrink is stored raw with compression byte 0.
// Both sides must agree on WithPacked and on whether compression is used;
// the compressor itself is read from each envelope.
//
// # Limits
//
// Decoder rejects any message larger than WithMaxMessageSize (64 MiB by
// default) before allocating for it, and Encoder refuses to write one.
//
// # Thread Safety
//
// Encoder and Decoder are not safe for concurrent use.
package stream

import (
	"errors"
	"log/slog"

	"github.com/joshuapare/capnkit/capnp"
)

// DefaultMaxMessageSize bounds a single decoded message.
const DefaultMaxMessageSize = 64 << 20

// envelopeHeaderSize is the compression byte plus two length fields.
const envelopeHeaderSize = 9

var (
	// ErrMessageTooLarge indicates a message over the configured size limit.
	ErrMessageTooLarge = errors.New("stream: message too large")

	// ErrInvalidEnvelope indicates a malformed compression envelope.
	ErrInvalidEnvelope = errors.New("stream: invalid envelope")

	// ErrUnknownCompression indicates an unsupported compression id.
	ErrUnknownCompression = errors.New("stream: unknown compression")
)

// Option configures an Encoder or Decoder.
type Option func(*options)

type options struct {
	packed      bool
	compression Compression
	maxSize     int
	msgOpts     []capnp.Option
	logger      *slog.Logger
}

// WithPacked packs every message.
func WithPacked() Option {
	return func(o *options) { o.packed = true }
}

// WithCompression wraps every message in an envelope compressed with c.
// Decoders only use it to know that envelopes are present.
func WithCompression(c Compression) Option {
	return func(o *options) { o.compression = c }
}

// WithMaxMessageSize sets the largest accepted message in bytes (unpacked,
// uncompressed). A value <= 0 restores the default.
func WithMaxMessageSize(n int) Option {
	return func(o *options) {
		if n <= 0 {
			n = DefaultMaxMessageSize
		}
		o.maxSize = n
	}
}

// WithMessageOptions passes options to every decoded message.
func WithMessageOptions(opts ...capnp.Option) Option {
	return func(o *options) { o.msgOpts = append(o.msgOpts, opts...) }
}

// WithLogger sets the logger used for debug output. Defaults to a discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{maxSize: DefaultMaxMessageSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o
}
