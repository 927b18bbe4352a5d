package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/capnkit/capnp"
	"github.com/joshuapare/capnkit/capnp/walker"
	"github.com/joshuapare/capnkit/internal/textenc"
)

const dumpTextPreview = 64

var (
	dumpPacked   bool
	dumpMaxDepth int
	dumpEncoding string
)

func init() {
	rootCmd.AddCommand(newDumpCmd())
}

func newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <file>",
		Short: "Print the pointer graph of a message",
		Long: `The dump command prints every pointer reachable from the root, one per
line, indented by depth. Structs show their section sizes, lists their
element size and length, and text lists a preview of their content.

Example:
  capnpctl dump person.bin
  capnpctl dump person.bin --max-depth 1
  capnpctl dump legacy.bin --text-encoding windows-1252
  capnpctl dump person.bin --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(cmd.Context(), args)
		},
	}
	cmd.Flags().BoolVar(&dumpPacked, "packed", false, "Input is packed")
	cmd.Flags().IntVar(&dumpMaxDepth, "max-depth", -1, "Stop descending below this depth (-1 for no limit)")
	cmd.Flags().StringVar(&dumpEncoding, "text-encoding", "utf8", "Text display encoding (utf8, windows-1252)")
	return cmd
}

// DumpEntry is one line of the dump command's output.
type DumpEntry struct {
	Path        string  `json:"path"`
	Depth       int     `json:"depth"`
	Kind        string  `json:"kind"`
	DataWords   int     `json:"data_words,omitempty"`
	Pointers    int     `json:"pointers,omitempty"`
	ElementSize string  `json:"element_size,omitempty"`
	Len         int     `json:"len,omitempty"`
	Capability  *uint32 `json:"capability,omitempty"`
	Far         bool    `json:"far,omitempty"`
	DoubleFar   bool    `json:"double_far,omitempty"`
	Text        string  `json:"text,omitempty"`
}

func runDump(ctx context.Context, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	enc, err := textenc.Parse(dumpEncoding)
	if err != nil {
		return err
	}

	msg, err := openMessage(args[0], dumpPacked)
	if err != nil {
		return fmt.Errorf("failed to open message: %w", err)
	}
	defer msg.Close()

	var entries []DumpEntry
	w := walker.NewWalker(msg.Message, walker.WithMaxDepth(dumpMaxDepth))
	err = w.WalkRoot(ctx, func(v walker.Visit) error {
		e := dumpEntry(v, enc)
		if jsonOut {
			entries = append(entries, e)
			return nil
		}
		printInfo("%s%s\n", strings.Repeat("  ", v.Depth), formatEntry(e))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk message: %w", err)
	}

	if jsonOut {
		return printJSON(entries)
	}
	printVerbose("\n%d pointers\n", w.Visits())
	return nil
}

func dumpEntry(v walker.Visit, enc textenc.Encoding) DumpEntry {
	e := DumpEntry{
		Path:      v.Path,
		Depth:     v.Depth,
		Kind:      v.Kind.String(),
		Far:       v.Content.Far,
		DoubleFar: v.Content.DoubleFar,
	}
	switch v.Kind {
	case walker.KindStruct:
		e.DataWords = int(v.StructSize.DataByteLength) / 8
		e.Pointers = int(v.StructSize.PointerLength)
	case walker.KindList:
		e.ElementSize = v.ElementSize.String()
		e.Len = v.Len
		if v.ElementSize == capnp.ElementComposite {
			e.DataWords = int(v.StructSize.DataByteLength) / 8
			e.Pointers = int(v.StructSize.PointerLength)
		}
		if v.IsText() {
			if b, err := v.Pointer.TextBytes(); err == nil {
				e.Text = preview(textenc.Decode(b, enc))
			}
		}
	case walker.KindCapability:
		id := uint32(v.CapID)
		e.Capability = &id
	}
	return e
}

func formatEntry(e DumpEntry) string {
	var b strings.Builder
	b.WriteString(e.Path)
	b.WriteString(": ")
	switch e.Kind {
	case walker.KindStruct.String():
		fmt.Fprintf(&b, "struct {data: %d words, pointers: %d}", e.DataWords, e.Pointers)
	case walker.KindList.String():
		fmt.Fprintf(&b, "list<%s>[%d]", e.ElementSize, e.Len)
		if e.ElementSize == capnp.ElementComposite.String() {
			fmt.Fprintf(&b, " {data: %d words, pointers: %d}", e.DataWords, e.Pointers)
		}
		if e.Text != "" {
			fmt.Fprintf(&b, " %q", e.Text)
		}
	case walker.KindCapability.String():
		fmt.Fprintf(&b, "capability #%d", *e.Capability)
	default:
		b.WriteString(e.Kind)
	}
	switch {
	case e.DoubleFar:
		b.WriteString(" (double far)")
	case e.Far:
		b.WriteString(" (far)")
	}
	return b.String()
}

// preview shortens s to dumpTextPreview runes.
func preview(s string) string {
	r := []rune(s)
	if len(r) <= dumpTextPreview {
		return s
	}
	return string(r[:dumpTextPreview]) + "..."
}
