package packed

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/joshuapare/capnkit/internal/format"
)

// Reader unpacks a packed byte stream on the fly. Spans may straddle Read
// calls; a stream that ends inside a span returns ErrTruncated.
type Reader struct {
	r *bufio.Reader

	word    [format.WordSize]byte
	pending []byte // decoded bytes of the current word not yet returned
	zeros   int    // zero bytes left in the current run
	literal int    // verbatim bytes left in the current span
}

// NewReader returns a Reader unpacking from r.
func NewReader(r io.Reader) *Reader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Reader{r: br}
}

// Read implements io.Reader.
func (rd *Reader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		switch {
		case len(rd.pending) > 0:
			c := copy(p[n:], rd.pending)
			rd.pending = rd.pending[c:]
			n += c
			continue

		case rd.zeros > 0:
			k := min(rd.zeros, len(p)-n)
			clear(p[n : n+k])
			rd.zeros -= k
			n += k
			continue

		case rd.literal > 0:
			k := min(rd.literal, len(p)-n)
			m, err := io.ReadFull(rd.r, p[n:n+k])
			n += m
			rd.literal -= m
			if err != nil {
				return n, truncated(err, "literal span")
			}
			continue
		}

		// Return what we have rather than block on the next tag.
		if n > 0 && rd.r.Buffered() == 0 {
			return n, nil
		}
		if err := rd.next(); err != nil {
			if errors.Is(err, io.EOF) && n > 0 {
				return n, nil
			}
			return n, err
		}
	}
	return n, nil
}

// next decodes one tag and sets up the state to emit its payload.
func (rd *Reader) next() error {
	tag, err := rd.r.ReadByte()
	if err != nil {
		return err // io.EOF at a tag boundary is a clean end
	}

	switch tag {
	case tagZero:
		c, err := rd.r.ReadByte()
		if err != nil {
			return truncated(err, "zero run count")
		}
		rd.zeros = (int(c) + 1) * format.WordSize

	case tagLiteral:
		if _, err := io.ReadFull(rd.r, rd.word[:]); err != nil {
			return truncated(err, "literal word")
		}
		c, err := rd.r.ReadByte()
		if err != nil {
			return truncated(err, "literal span count")
		}
		rd.pending = rd.word[:]
		rd.literal = int(c) * format.WordSize

	default:
		rd.word = [format.WordSize]byte{}
		for b := range format.WordSize {
			if tag&(1<<b) == 0 {
				continue
			}
			v, err := rd.r.ReadByte()
			if err != nil {
				return truncated(err, "tagged word")
			}
			rd.word[b] = v
		}
		rd.pending = rd.word[:]
	}
	return nil
}

func truncated(err error, what string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %s", ErrTruncated, what)
	}
	return err
}
