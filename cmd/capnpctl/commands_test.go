package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/capnkit/capnp"
	"github.com/joshuapare/capnkit/capnp/stream"
	"github.com/joshuapare/capnkit/capnp/walker"
	"github.com/joshuapare/capnkit/internal/testschema"
)

func TestInfoCommand(t *testing.T) {
	dir := t.TempDir()
	plain := writeMessage(t, dir, "person.bin", newPerson(t, "Ada"), false)
	packed := writeMessage(t, dir, "person.packed", newPerson(t, "Ada"), true)

	tests := []struct {
		name        string
		path        string
		packed      bool
		json        bool
		wantContain []string
	}{
		{
			name:        "plain",
			path:        plain,
			wantContain: []string{"Message Information:", "Segments: 1", "Root: struct (2 data words, 5 pointers)"},
		},
		{
			name:        "packed",
			path:        packed,
			packed:      true,
			wantContain: []string{"Packed: true", "Frame header: 8 bytes"},
		},
		{
			name:        "json",
			path:        plain,
			json:        true,
			wantContain: []string{`"root": "struct (2 data words, 5 pointers)"`, `"segments"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			infoPacked = tt.packed
			jsonOut = tt.json

			out, err := captureOutput(t, func() error { return runInfo([]string{tt.path}) })
			require.NoError(t, err)
			for _, want := range tt.wantContain {
				assert.Contains(t, out, want)
			}
			if tt.json {
				var info MessageInfo
				require.NoError(t, json.Unmarshal([]byte(out), &info))
				assert.Equal(t, tt.path, info.File)
			}
		})
	}
}

func TestInfoCommand_Errors(t *testing.T) {
	resetFlags()
	dir := t.TempDir()

	_, err := captureOutput(t, func() error { return runInfo([]string{filepath.Join(dir, "missing.bin")}) })
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.bin")
	require.NoError(t, os.WriteFile(bad, []byte{0, 0, 0, 0, 9, 0, 0, 0}, 0o644))
	_, err = captureOutput(t, func() error { return runInfo([]string{bad}) })
	require.ErrorIs(t, err, capnp.ErrInvalidFrame)
}

func TestStatsCommand(t *testing.T) {
	resetFlags()
	path := writeMessage(t, t.TempDir(), "person.bin", newPerson(t, "Ada"), false)

	out, err := captureOutput(t, func() error { return runStats(context.Background(), []string{path}) })
	require.NoError(t, err)
	assert.Contains(t, out, "Structs: 2")
	assert.Contains(t, out, "Unreachable: 0")

	jsonOut = true
	out, err = captureOutput(t, func() error { return runStats(context.Background(), []string{path}) })
	require.NoError(t, err)
	var stats walker.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, uint64(2), stats.Structs)
	assert.Equal(t, uint64(4), stats.Lists)
	assert.Equal(t, uint64(1), stats.CompositeLists)
	assert.Equal(t, uint64(3), stats.Texts)
	assert.Equal(t, 2, stats.MaxDepth)
	assert.Equal(t, stats.AllocatedWords, stats.ReachableWords)
}

func TestDumpCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeMessage(t, dir, "person.bin", newPerson(t, "Ada"), false)
	legacy := writeMessage(t, dir, "legacy.bin", newPerson(t, "caf\xe9"), false)

	tests := []struct {
		name           string
		path           string
		maxDepth       int
		encoding       string
		wantContain    []string
		wantNotContain []string
	}{
		{
			name:     "full",
			path:     path,
			maxDepth: -1,
			wantContain: []string{
				"root: struct {data: 2 words, pointers: 5}",
				`  root.0: list<byte>[4] "Ada"`,
				"root.2: list<composite>[1] {data: 1 words, pointers: 1}",
				`    root.2[0].0: list<byte>[9] "555-0100"`,
				"root.3: struct {data: 1 words, pointers: 2}",
			},
		},
		{
			name:           "max depth",
			path:           path,
			maxDepth:       0,
			wantContain:    []string{"root: struct"},
			wantNotContain: []string{"root.0"},
		},
		{
			name:        "legacy text falls back",
			path:        legacy,
			maxDepth:    -1,
			wantContain: []string{`"café"`},
		},
		{
			name:        "forced windows-1252",
			path:        path,
			maxDepth:    -1,
			encoding:    "windows-1252",
			wantContain: []string{`"Ada"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			dumpMaxDepth = tt.maxDepth
			if tt.encoding != "" {
				dumpEncoding = tt.encoding
			}

			out, err := captureOutput(t, func() error { return runDump(context.Background(), []string{tt.path}) })
			require.NoError(t, err)
			for _, want := range tt.wantContain {
				assert.Contains(t, out, want)
			}
			for _, dont := range tt.wantNotContain {
				assert.NotContains(t, out, dont)
			}
		})
	}
}

func TestDumpCommand_JSON(t *testing.T) {
	resetFlags()
	jsonOut = true
	msg := capnp.NewMessage()
	e, err := testschema.NewRootEnvelope(msg)
	require.NoError(t, err)
	require.NoError(t, e.SetReply(3))
	path := writeMessage(t, t.TempDir(), "envelope.bin", msg, false)

	out, err := captureOutput(t, func() error { return runDump(context.Background(), []string{path}) })
	require.NoError(t, err)

	var entries []DumpEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "root.2", entries[1].Path)
	assert.Equal(t, "capability", entries[1].Kind)
	require.NotNil(t, entries[1].Capability)
	assert.Equal(t, uint32(3), *entries[1].Capability)
}

func TestDumpCommand_BadEncoding(t *testing.T) {
	resetFlags()
	dumpEncoding = "ebcdic"
	path := writeMessage(t, t.TempDir(), "person.bin", newPerson(t, "Ada"), false)
	_, err := captureOutput(t, func() error { return runDump(context.Background(), []string{path}) })
	require.Error(t, err)
}

func TestPackUnpackCommands(t *testing.T) {
	resetFlags()
	dir := t.TempDir()
	msg := newPerson(t, "Ada")
	in := writeMessage(t, dir, "person.bin", msg, false)
	packedPath := filepath.Join(dir, "person.packed")
	back := filepath.Join(dir, "person.back")

	out, err := captureOutput(t, func() error { return runPack([]string{in, packedPath}) })
	require.NoError(t, err)
	assert.Contains(t, out, "person.packed")

	wantPacked, err := msg.MarshalPacked()
	require.NoError(t, err)
	gotPacked, err := os.ReadFile(packedPath)
	require.NoError(t, err)
	assert.Equal(t, wantPacked, gotPacked)

	_, err = captureOutput(t, func() error { return runUnpack([]string{packedPath, back}) })
	require.NoError(t, err)
	want, err := os.ReadFile(in)
	require.NoError(t, err)
	got, err := os.ReadFile(back)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestPackCommand_InvalidInput(t *testing.T) {
	resetFlags()
	dir := t.TempDir()
	in := filepath.Join(dir, "junk.bin")
	require.NoError(t, os.WriteFile(in, []byte("not a message"), 0o644))
	out := filepath.Join(dir, "junk.packed")

	_, err := captureOutput(t, func() error { return runPack([]string{in, out}) })
	require.Error(t, err)
	assert.NoFileExists(t, out)
}

// writeStream writes n person messages as one plain stream.
func writeStream(t *testing.T, path string, n int) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := stream.NewEncoder(&buf)
	for i := range n {
		require.NoError(t, enc.Encode(newPerson(t, strings.Repeat("n", i+1))))
	}
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return buf.Bytes()
}

func TestConvertCommand_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.stream")
	b := filepath.Join(dir, "b.stream")
	wantA := writeStream(t, a, 3)
	wantB := writeStream(t, b, 5)

	for _, compress := range []string{"none", "zstd", "lz4"} {
		t.Run(compress, func(t *testing.T) {
			resetFlags()
			packedDir := filepath.Join(t.TempDir(), "packed")
			convertOutDir = packedDir
			convertCompress = compress
			out, err := captureOutput(t, func() error { return runConvert(context.Background(), []string{a, b}) })
			require.NoError(t, err)
			assert.Contains(t, out, "3 messages")
			assert.Contains(t, out, "5 messages")

			resetFlags()
			plainDir := filepath.Join(t.TempDir(), "plain")
			convertOutDir = plainDir
			convertFrom = "packed"
			convertFromCompress = compress
			convertTo = "unpacked"
			_, err = captureOutput(t, func() error {
				return runConvert(context.Background(), []string{
					filepath.Join(packedDir, "a.stream"),
					filepath.Join(packedDir, "b.stream"),
				})
			})
			require.NoError(t, err)

			got, err := os.ReadFile(filepath.Join(plainDir, "a.stream"))
			require.NoError(t, err)
			assert.Equal(t, wantA, got)
			got, err = os.ReadFile(filepath.Join(plainDir, "b.stream"))
			require.NoError(t, err)
			assert.Equal(t, wantB, got)
		})
	}
}

func TestConvertCommand_JSON(t *testing.T) {
	resetFlags()
	dir := t.TempDir()
	in := filepath.Join(dir, "a.stream")
	writeStream(t, in, 2)
	convertOutDir = filepath.Join(dir, "out")
	jsonOut = true

	out, err := captureOutput(t, func() error { return runConvert(context.Background(), []string{in}) })
	require.NoError(t, err)
	var results []ConvertResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].Messages)
	assert.Less(t, results[0].OutBytes, results[0].InBytes, "packing shrinks the stream")
}

func TestConvertCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "a.stream")
	writeStream(t, in, 1)

	tests := []struct {
		name  string
		setup func()
	}{
		{"bad --to", func() { convertTo = "zipped" }},
		{"bad --from", func() { convertFrom = "zipped" }},
		{"bad --compress", func() { convertCompress = "brotli" }},
		{"overwrite input", func() { convertOutDir = dir }},
		{"wrong input encoding", func() { convertFromCompress = "zstd" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			convertOutDir = filepath.Join(t.TempDir(), "out")
			tt.setup()
			_, err := captureOutput(t, func() error { return runConvert(context.Background(), []string{in}) })
			require.Error(t, err)
		})
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := captureOutput(t, func() error {
		versionCmd.Run(versionCmd, nil)
		return nil
	})
	require.NoError(t, err)
	assert.Contains(t, out, "capnpctl dev")
}
