package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/capnkit/capnp"
	"github.com/joshuapare/capnkit/internal/format"
)

var infoPacked bool

func init() {
	rootCmd.AddCommand(newInfoCmd())
}

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <file>",
		Short: "Validate a message frame and report its segment layout",
		Long: `The info command decodes a message file and displays its frame: the
number of segments, the size of each, and what the root pointer refers to.

Example:
  capnpctl info person.bin
  capnpctl info person.packed --packed --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(args)
		},
	}
	cmd.Flags().BoolVar(&infoPacked, "packed", false, "Input is packed")
	return cmd
}

// SegmentInfo describes one segment of a message.
type SegmentInfo struct {
	ID    uint32 `json:"id"`
	Words int    `json:"words"`
}

// MessageInfo is the info command's report.
type MessageInfo struct {
	File        string        `json:"file"`
	FileSize    int64         `json:"file_size"`
	Packed      bool          `json:"packed"`
	HeaderBytes int           `json:"header_bytes"`
	TotalWords  int           `json:"total_words"`
	Segments    []SegmentInfo `json:"segments"`
	Root        string        `json:"root"`
}

func runInfo(args []string) error {
	path := args[0]
	printVerbose("Opening message: %s\n", path)

	msg, err := openMessage(path, infoPacked)
	if err != nil {
		return fmt.Errorf("failed to open message: %w", err)
	}
	defer msg.Close()

	info, err := describeMessage(msg)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(info)
	}

	printInfo("\nMessage Information:\n")
	printInfo("  File: %s\n", info.File)
	printInfo("  Size: %s\n", formatBytes(info.FileSize))
	printInfo("  Packed: %t\n", info.Packed)
	printInfo("  Frame header: %d bytes\n", info.HeaderBytes)
	printInfo("  Segments: %d (%d words)\n", len(info.Segments), info.TotalWords)
	for _, s := range info.Segments {
		printInfo("    #%d: %d words\n", s.ID, s.Words)
	}
	printInfo("  Root: %s\n", info.Root)
	return nil
}

func describeMessage(msg *openedMessage) (*MessageInfo, error) {
	n := msg.NumSegments()
	info := &MessageInfo{
		File:        msg.path,
		FileSize:    msg.size,
		Packed:      msg.packed,
		HeaderBytes: format.FrameHeaderSize(max(n, 1)),
		TotalWords:  msg.TotalSize() / format.WordSize,
		Segments:    make([]SegmentInfo, 0, n),
	}
	for i := range n {
		seg, err := msg.Segment(capnp.SegmentID(i))
		if err != nil {
			return nil, err
		}
		info.Segments = append(info.Segments, SegmentInfo{ID: uint32(seg.ID()), Words: seg.Len() / format.WordSize})
	}

	root, err := msg.RootPointer()
	if err != nil {
		return nil, fmt.Errorf("root pointer: %w", err)
	}
	desc, err := describePointer(root)
	if err != nil {
		return nil, fmt.Errorf("root pointer: %w", err)
	}
	info.Root = desc
	return info, nil
}

// describePointer summarizes what p refers to, e.g. "struct (2 data words, 3 pointers)".
func describePointer(p capnp.Pointer) (string, error) {
	c, err := p.Content()
	if err != nil {
		return "", err
	}
	var s string
	switch {
	case c.Null:
		return "null", nil
	case c.Type == capnp.StructPointer:
		st, err := p.Struct()
		if err != nil {
			return "", err
		}
		sz := st.Size()
		s = fmt.Sprintf("struct (%d data words, %d pointers)", sz.DataByteLength/format.WordSize, sz.PointerLength)
	case c.Type == capnp.ListPointer:
		l, err := p.List()
		if err != nil {
			return "", err
		}
		s = fmt.Sprintf("list<%s>[%d]", l.ElementSize(), l.Len())
	default:
		id, _, err := p.Interface()
		if err != nil {
			return "", err
		}
		s = fmt.Sprintf("capability #%d", id)
	}
	switch {
	case c.DoubleFar:
		s += " via double-far pointer"
	case c.Far:
		s += " via far pointer"
	}
	return s, nil
}
