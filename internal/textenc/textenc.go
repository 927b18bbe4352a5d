// Package textenc turns text payloads into printable UTF-8.
//
// Cap'n Proto text is UTF-8 by contract, but messages written by other
// tools sometimes carry legacy single-byte text. Display code uses Decode so
// such payloads still print readably.
package textenc

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Encoding selects how text payloads are interpreted.
type Encoding uint8

const (
	// UTF8 passes valid UTF-8 through and falls back to Windows-1252.
	UTF8 Encoding = iota
	// Windows1252 always decodes as Windows-1252.
	Windows1252
)

// ErrUnknownEncoding is returned by Parse for an unsupported name.
var ErrUnknownEncoding = errors.New("textenc: unknown encoding")

func (e Encoding) String() string {
	switch e {
	case UTF8:
		return "utf8"
	case Windows1252:
		return "windows-1252"
	default:
		return fmt.Sprintf("Encoding(%d)", uint8(e))
	}
}

// Parse maps a flag value to an Encoding.
func Parse(s string) (Encoding, error) {
	switch s {
	case "", "utf8", "utf-8":
		return UTF8, nil
	case "windows-1252", "cp1252", "latin1":
		return Windows1252, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownEncoding, s)
	}
}

// Decode returns b as UTF-8 according to e.
func Decode(b []byte, e Encoding) string {
	// Fast path: ASCII is the same in every supported encoding
	if isASCII(b) {
		return string(b)
	}
	if e == UTF8 && utf8.Valid(b) {
		return string(b)
	}
	// Every byte maps to a rune in Windows-1252, so this cannot fail.
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(decoded)
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
