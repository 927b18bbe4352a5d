package stream

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the block compressor of an enveloped stream.
type Compression uint8

const (
	// CompressionNone writes plain frames with no envelope.
	CompressionNone Compression = 0
	// CompressionZstd wraps each message in a zstd block.
	CompressionZstd Compression = 1
	// CompressionLZ4 wraps each message in an lz4 block.
	CompressionLZ4 Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("Compression(%d)", uint8(c))
	}
}

// ParseCompression maps a name accepted by String back to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "none", "":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCompression, s)
	}
}

// Encoders and decoders are expensive to build and safe to reuse. Decoders
// carry their output limit, so they are pooled per max message size.
var (
	zstdEncoderPool  sync.Pool
	zstdDecoderPools sync.Map // int -> *sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func zstdDecoderPool(maxSize int) *sync.Pool {
	if v, ok := zstdDecoderPools.Load(maxSize); ok {
		return v.(*sync.Pool)
	}
	v, _ := zstdDecoderPools.LoadOrStore(maxSize, &sync.Pool{})
	return v.(*sync.Pool)
}

// getZstdDecoder returns a decoder that refuses to produce more than
// maxSize bytes, so a small payload cannot expand without bound before its
// length is checked.
func getZstdDecoder(pool *sync.Pool, maxSize int) (*zstd.Decoder, error) {
	if v := pool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(uint64(maxSize)),
	)
}

// compress returns data compressed with c, or nil when the result would not
// be smaller than data.
func compress(c Compression, data []byte) ([]byte, error) {
	var out []byte
	switch c {
	case CompressionZstd:
		enc := getZstdEncoder()
		out = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)

	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		out = buf[:n] // n == 0 means incompressible

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, c)
	}

	if len(out) == 0 || len(out) >= len(data) {
		return nil, nil
	}
	return out, nil
}

// decompress expands stored into exactly rawLen bytes. No more than maxSize
// bytes are ever produced.
func decompress(c Compression, stored []byte, rawLen, maxSize int) ([]byte, error) {
	raw := make([]byte, rawLen)
	switch c {
	case CompressionZstd:
		pool := zstdDecoderPool(maxSize)
		dec, err := getZstdDecoder(pool, maxSize)
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		out, err := dec.DecodeAll(stored, raw[:0])
		pool.Put(dec)
		if errors.Is(err, zstd.ErrDecoderSizeExceeded) {
			return nil, fmt.Errorf("%w: zstd payload expands past %d bytes", ErrMessageTooLarge, maxSize)
		}
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(out) != rawLen {
			return nil, fmt.Errorf("%w: zstd produced %d bytes, want %d", ErrInvalidEnvelope, len(out), rawLen)
		}
		return out, nil

	case CompressionLZ4:
		n, err := lz4.UncompressBlock(stored, raw)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if n != rawLen {
			return nil, fmt.Errorf("%w: lz4 produced %d bytes, want %d", ErrInvalidEnvelope, n, rawLen)
		}
		return raw, nil

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, c)
	}
}
