package stream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/capnkit/capnp"
	"github.com/joshuapare/capnkit/internal/format"
)

var recordSize = capnp.ObjectSize{DataByteLength: 8, PointerLength: 1}

func newRecord(t *testing.T, id uint64, text string) *capnp.Message {
	t.Helper()
	m := capnp.NewMessage()
	root, err := m.InitRoot(recordSize)
	require.NoError(t, err)
	require.NoError(t, root.SetUint64(0, id))
	require.NoError(t, root.SetText(0, text))
	return m
}

func requireRecord(t *testing.T, m *capnp.Message, id uint64, text string) {
	t.Helper()
	root, err := m.Root(recordSize)
	require.NoError(t, err)
	assert.Equal(t, id, root.Uint64(0))
	got, err := root.Text(0, "")
	require.NoError(t, err)
	assert.Equal(t, text, got)
}

func TestStream_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"plain", nil},
		{"packed", []Option{WithPacked()}},
		{"zstd", []Option{WithCompression(CompressionZstd)}},
		{"lz4", []Option{WithCompression(CompressionLZ4)}},
		{"packed zstd", []Option{WithPacked(), WithCompression(CompressionZstd)}},
		{"packed lz4", []Option{WithPacked(), WithCompression(CompressionLZ4)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			enc := NewEncoder(&buf, tt.opts...)
			for i := range 5 {
				text := strings.Repeat(fmt.Sprintf("record-%d ", i), 40)
				require.NoError(t, enc.Encode(newRecord(t, uint64(i), text)))
			}

			dec := NewDecoder(&buf, tt.opts...)
			for i := range 5 {
				m, err := dec.Decode()
				require.NoError(t, err)
				requireRecord(t, m, uint64(i), strings.Repeat(fmt.Sprintf("record-%d ", i), 40))
			}
			_, err := dec.Decode()
			require.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestStream_PlainIsConcatenatedFrames(t *testing.T) {
	a := newRecord(t, 1, "a")
	b := newRecord(t, 2, "b")

	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	require.NoError(t, enc.Encode(a))
	require.NoError(t, enc.Encode(b))

	wa, err := a.Marshal()
	require.NoError(t, err)
	wb, err := b.Marshal()
	require.NoError(t, err)
	assert.Equal(t, append(wa, wb...), buf.Bytes())
}

func TestStream_PackedIsConcatenatedPackedFrames(t *testing.T) {
	a := newRecord(t, 1, "a")

	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf, WithPacked()).Encode(a))

	want, err := a.MarshalPacked()
	require.NoError(t, err)
	assert.Equal(t, want, buf.Bytes())
}

func TestStream_MultiSegmentMessage(t *testing.T) {
	m := capnp.NewMessage(capnp.WithMultiSegment())
	root, err := m.InitRoot(capnp.ObjectSize{DataByteLength: 4080, PointerLength: 1})
	require.NoError(t, err)
	require.NoError(t, root.SetText(0, "spills into segment 1"))
	require.Equal(t, 2, m.NumSegments())

	for _, opts := range [][]Option{nil, {WithPacked()}} {
		var buf bytes.Buffer
		require.NoError(t, NewEncoder(&buf, opts...).Encode(m))
		back, err := NewDecoder(&buf, opts...).Decode()
		require.NoError(t, err)
		assert.Equal(t, 2, back.NumSegments())
		r, err := back.Root(capnp.ObjectSize{DataByteLength: 4080, PointerLength: 1})
		require.NoError(t, err)
		text, err := r.Text(0, "")
		require.NoError(t, err)
		assert.Equal(t, "spills into segment 1", text)
	}
}

func TestCompress_Incompressible(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(r.Uint32())
	}
	for _, c := range []Compression{CompressionZstd, CompressionLZ4} {
		out, err := compress(c, data)
		require.NoError(t, err, c.String())
		assert.Nil(t, out, "%s: random bytes do not shrink", c)
	}
	_, err := compress(Compression(7), data)
	require.ErrorIs(t, err, ErrUnknownCompression)
}

func TestStream_RawEnvelope(t *testing.T) {
	wire, err := newRecord(t, 1, "x").Marshal()
	require.NoError(t, err)

	b := make([]byte, envelopeHeaderSize, envelopeHeaderSize+len(wire))
	b[0] = byte(CompressionNone)
	format.PutU32(b, 1, uint32(len(wire)))
	format.PutU32(b, 5, uint32(len(wire)))
	b = append(b, wire...)

	m, err := NewDecoder(bytes.NewReader(b), WithCompression(CompressionZstd)).Decode()
	require.NoError(t, err)
	requireRecord(t, m, 1, "x")
}

func TestStream_CompressorReadFromEnvelope(t *testing.T) {
	text := strings.Repeat("q", 3000)
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf, WithCompression(CompressionZstd)).Encode(newRecord(t, 5, text)))
	require.Equal(t, byte(CompressionZstd), buf.Bytes()[0])

	m, err := NewDecoder(&buf, WithCompression(CompressionLZ4)).Decode()
	require.NoError(t, err)
	requireRecord(t, m, 5, text)
}

func TestStream_EnvelopeCompresses(t *testing.T) {
	for _, c := range []Compression{CompressionZstd, CompressionLZ4} {
		t.Run(c.String(), func(t *testing.T) {
			m := newRecord(t, 9, strings.Repeat("z", 4000))
			var buf bytes.Buffer
			require.NoError(t, NewEncoder(&buf, WithCompression(c)).Encode(m))

			b := buf.Bytes()
			assert.Equal(t, byte(c), b[0])
			assert.Less(t, format.ReadU32(b, 5), format.ReadU32(b, 1))
		})
	}
}

func TestStream_MaxMessageSize(t *testing.T) {
	big := newRecord(t, 1, strings.Repeat("y", 2000))

	var buf bytes.Buffer
	err := NewEncoder(&buf, WithMaxMessageSize(1024)).Encode(big)
	require.ErrorIs(t, err, ErrMessageTooLarge)
	assert.Zero(t, buf.Len())

	require.NoError(t, NewEncoder(&buf).Encode(big))
	_, err = NewDecoder(bytes.NewReader(buf.Bytes()), WithMaxMessageSize(1024)).Decode()
	require.ErrorIs(t, err, ErrMessageTooLarge)

	buf.Reset()
	require.NoError(t, NewEncoder(&buf, WithCompression(CompressionZstd)).Encode(big))
	_, err = NewDecoder(&buf, WithCompression(CompressionZstd), WithMaxMessageSize(1024)).Decode()
	require.ErrorIs(t, err, ErrMessageTooLarge)
}

func TestStream_Truncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(newRecord(t, 1, "truncated")))
	full := buf.Bytes()

	for _, cut := range []int{2, 6, len(full) - 1} {
		_, err := NewDecoder(bytes.NewReader(full[:cut])).Decode()
		require.Error(t, err, "cut=%d", cut)
		require.NotErrorIs(t, err, io.EOF, "cut=%d", cut)
		require.ErrorIs(t, err, io.ErrUnexpectedEOF, "cut=%d", cut)
	}

	_, err := NewDecoder(bytes.NewReader(nil)).Decode()
	require.ErrorIs(t, err, io.EOF, "empty stream ends cleanly")
}

func TestStream_InvalidEnvelope(t *testing.T) {
	header := func(c byte, raw, stored uint32) []byte {
		b := make([]byte, envelopeHeaderSize)
		b[0] = c
		format.PutU32(b, 1, raw)
		format.PutU32(b, 5, stored)
		return b
	}

	tests := []struct {
		name string
		in   []byte
		want error
	}{
		{"unknown compression", header(9, 8, 8), ErrUnknownCompression},
		{"empty payload", header(byte(CompressionZstd), 8, 0), ErrInvalidEnvelope},
		{"stored larger than raw", header(byte(CompressionLZ4), 8, 16), ErrInvalidEnvelope},
		{"raw length mismatch", header(byte(CompressionNone), 16, 8), ErrInvalidEnvelope},
		{"short header", []byte{0, 1, 2}, ErrInvalidEnvelope},
		{"short payload", append(header(byte(CompressionNone), 16, 16), 1, 2, 3), ErrInvalidEnvelope},
		{"oversized", header(byte(CompressionNone), 1<<30, 1<<30), ErrMessageTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDecoder(bytes.NewReader(tt.in), WithCompression(CompressionZstd)).Decode()
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestStream_MessageOptions(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(newRecord(t, 1, "ro")))

	m, err := NewDecoder(&buf, WithMessageOptions(capnp.WithReadOnly())).Decode()
	require.NoError(t, err)
	assert.True(t, m.ReadOnly())
}

func TestParseCompression(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionZstd, CompressionLZ4} {
		got, err := ParseCompression(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := ParseCompression("brotli")
	require.ErrorIs(t, err, ErrUnknownCompression)
}

func TestBuildOptions_DefaultLoggerDiscards(t *testing.T) {
	o := buildOptions(nil)
	assert.False(t, o.logger.Enabled(context.Background(), slog.LevelError))
	assert.Equal(t, DefaultMaxMessageSize, o.maxSize)
}

func TestStream_ZstdExpansionBounded(t *testing.T) {
	enc := getZstdEncoder()
	payload := enc.EncodeAll(make([]byte, 1<<20), nil)
	require.Less(t, len(payload), 1024)

	b := make([]byte, envelopeHeaderSize, envelopeHeaderSize+len(payload))
	b[0] = byte(CompressionZstd)
	format.PutU32(b, 1, 1024)
	format.PutU32(b, 5, uint32(len(payload)))
	b = append(b, payload...)

	_, err := NewDecoder(bytes.NewReader(b), WithCompression(CompressionZstd), WithMaxMessageSize(4096)).Decode()
	require.ErrorIs(t, err, ErrMessageTooLarge)

	_, err = NewDecoder(bytes.NewReader(b), WithCompression(CompressionZstd)).Decode()
	require.ErrorIs(t, err, ErrInvalidEnvelope, "output longer than the declared length")
}
