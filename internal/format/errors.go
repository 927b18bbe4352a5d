package format

import "errors"

var (
	// ErrTruncated indicates the buffer lacked the bytes required for a structure.
	ErrTruncated = errors.New("format: truncated buffer")
	// ErrNotWordAligned indicates a buffer or offset that is not a multiple of 8.
	ErrNotWordAligned = errors.New("format: not word aligned")
	// ErrOffsetOverflow indicates a pointer offset that does not fit its bit field.
	ErrOffsetOverflow = errors.New("format: offset does not fit pointer field")
	// ErrCountOverflow indicates a list count or struct size that does not fit its bit field.
	ErrCountOverflow = errors.New("format: count does not fit pointer field")
)
