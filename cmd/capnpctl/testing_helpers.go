package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/capnkit/capnp"
	"github.com/joshuapare/capnkit/internal/testschema"
)

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	// Save original stdout
	origStdout := os.Stdout

	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fnErr := fn()

	// Close write end and restore stdout
	w.Close()
	os.Stdout = origStdout

	var buf bytes.Buffer
	_, err = buf.ReadFrom(r)
	require.NoError(t, err)
	return buf.String(), fnErr
}

// resetFlags restores every command flag to its default.
func resetFlags() {
	verbose, quiet, jsonOut, logFile = false, false, false, ""
	infoPacked, statsPacked, dumpPacked = false, false, false
	dumpMaxDepth, dumpEncoding = -1, "utf8"
	convertFrom, convertFromCompress = "unpacked", "none"
	convertTo, convertCompress = "packed", "none"
	convertOutDir, convertJobs, convertMaxSize = "", 2, 64<<20
}

// newPerson builds the fixture message used by the command tests: a person
// with a name, one phone and an address.
func newPerson(t *testing.T, name string) *capnp.Message {
	t.Helper()
	msg := capnp.NewMessage()
	p, err := testschema.NewRootPerson(msg)
	require.NoError(t, err)
	require.NoError(t, p.SetID(1))
	require.NoError(t, p.SetName(name))

	phones, err := p.NewPhones(1)
	require.NoError(t, err)
	ph, err := phones.At(0)
	require.NoError(t, err)
	require.NoError(t, ph.SetNumber("555-0100"))

	addr, err := p.NewAddress()
	require.NoError(t, err)
	require.NoError(t, addr.SetStreet("1 Loop"))
	return msg
}

// writeMessage writes msg to dir/name, packed or not, and returns the path.
func writeMessage(t *testing.T, dir, name string, msg *capnp.Message, packed bool) string {
	t.Helper()
	var (
		b   []byte
		err error
	)
	if packed {
		b, err = msg.MarshalPacked()
	} else {
		b, err = msg.Marshal()
	}
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, b, 0o644))
	return path
}
