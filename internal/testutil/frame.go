// Package testutil builds raw wire images for tests that need byte-exact
// or deliberately malformed messages.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joshuapare/capnkit/internal/format"
)

// Words encodes pointer or data words as one segment.
func Words(ws ...uint64) []byte {
	b := make([]byte, format.WordSize*len(ws))
	for i, w := range ws {
		format.PutU64(b, format.WordSize*i, w)
	}
	return b
}

// Frame builds a stream frame around the given segments.
//
// Example:
//
//	wire := testutil.Frame(testutil.Words(format.EncodeStruct(0, 1, 0), 42))
func Frame(segments ...[]byte) []byte {
	hdr := make([]byte, format.FrameHeaderSize(len(segments)))
	format.PutU32(hdr, format.FrameCountOffset, uint32(len(segments)-1))
	for i, s := range segments {
		format.PutU32(hdr, format.FrameSizesOffset+format.FrameFieldSize*i, uint32(len(s)/format.WordSize))
	}
	out := hdr
	for _, s := range segments {
		out = append(out, s...)
	}
	return out
}

// WriteTemp writes data to a file named name in a fresh temporary directory
// and returns its path.
func WriteTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
