package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/capnkit/internal/logger"
)

func init() {
	rootCmd.AddCommand(newPackCmd())
	rootCmd.AddCommand(newUnpackCmd())
}

func newPackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pack <in> <out>",
		Short: "Pack an unpacked message file",
		Long: `The pack command reads a framed message and writes it in the packed
encoding, which replaces runs of zero bytes with tags.

Example:
  capnpctl pack person.bin person.packed`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPack(args)
		},
	}
}

func newUnpackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unpack <in> <out>",
		Short: "Unpack a packed message file",
		Long: `The unpack command reads a packed message and writes the plain framed
encoding.

Example:
  capnpctl unpack person.packed person.bin`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnpack(args)
		},
	}
}

func runPack(args []string) error {
	return rewrite(args[0], args[1], false, true)
}

func runUnpack(args []string) error {
	return rewrite(args[0], args[1], true, false)
}

// rewrite re-encodes a single message file. The message is decoded first,
// so a malformed input never produces output.
func rewrite(in, out string, fromPacked, toPacked bool) error {
	msg, err := openMessage(in, fromPacked)
	if err != nil {
		return fmt.Errorf("failed to open message: %w", err)
	}
	defer msg.Close()

	var data []byte
	if toPacked {
		data, err = msg.MarshalPacked()
	} else {
		data, err = msg.Marshal()
	}
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}

	logger.Info("message rewritten", "in", in, "out", out, "packed", toPacked, "bytes", len(data))
	printInfo("%s -> %s (%s -> %s)\n", in, out, formatBytes(msg.size), formatBytes(int64(len(data))))
	return nil
}
