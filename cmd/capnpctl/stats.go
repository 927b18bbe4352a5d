package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/capnkit/capnp/walker"
)

var statsPacked bool

func init() {
	rootCmd.AddCommand(newStatsCmd())
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats <file>",
		Short: "Count reachable objects and words",
		Long: `The stats command walks every pointer reachable from the root and
reports object counts by kind, far pointer usage, and how many allocated
words are reachable. Unreachable words are holes left by erased or resized
objects.

Example:
  capnpctl stats person.bin
  capnpctl stats person.packed --packed --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.Context(), args)
		},
	}
	cmd.Flags().BoolVar(&statsPacked, "packed", false, "Input is packed")
	return cmd
}

func runStats(ctx context.Context, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	path := args[0]
	printVerbose("Counting objects in: %s\n", path)

	msg, err := openMessage(path, statsPacked)
	if err != nil {
		return fmt.Errorf("failed to open message: %w", err)
	}
	defer msg.Close()

	stats, err := walker.NewCounter(msg.Message).Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count objects: %w", err)
	}

	if jsonOut {
		return printJSON(stats)
	}
	printInfo("\nStatistics for %s:\n", path)
	printInfo("%s\n", stats.String())
	return nil
}
