package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/joshuapare/capnkit/capnp"
	"github.com/joshuapare/capnkit/capnp/stream"
	"github.com/joshuapare/capnkit/internal/logger"
)

var (
	convertFrom         string
	convertFromCompress string
	convertTo           string
	convertCompress     string
	convertOutDir       string
	convertJobs         int
	convertMaxSize      int
)

func init() {
	rootCmd.AddCommand(newConvertCmd())
}

func newConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert <in>... --out-dir DIR",
		Short: "Convert message streams between encodings",
		Long: `The convert command reads one or more message streams and rewrites each
into --out-dir under the same file name. A single message file is a stream
of one message. Files are converted in parallel.

Encodings are "unpacked" or "packed". With --compress every message is
wrapped in a zstd or lz4 envelope; such streams are read back with
--from-compress.

Example:
  capnpctl convert a.bin b.bin --out-dir packed/ --to packed
  capnpctl convert log.stream --out-dir out/ --compress zstd --jobs 4
  capnpctl convert out/log.stream --out-dir plain/ --from-compress zstd --to unpacked`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd.Context(), args)
		},
	}
	cmd.Flags().StringVar(&convertFrom, "from", "unpacked", "Input encoding (unpacked, packed)")
	cmd.Flags().StringVar(&convertFromCompress, "from-compress", "none", "Input compression (none, zstd, lz4)")
	cmd.Flags().StringVar(&convertTo, "to", "packed", "Output encoding (unpacked, packed)")
	cmd.Flags().StringVar(&convertCompress, "compress", "none", "Output compression (none, zstd, lz4)")
	cmd.Flags().StringVar(&convertOutDir, "out-dir", "", "Output directory (required)")
	cmd.Flags().IntVar(&convertJobs, "jobs", runtime.NumCPU(), "Files converted in parallel")
	cmd.Flags().IntVar(&convertMaxSize, "max-message-size", stream.DefaultMaxMessageSize, "Largest accepted message in bytes")
	_ = cmd.MarkFlagRequired("out-dir")
	return cmd
}

// ConvertResult is the convert command's report for one file.
type ConvertResult struct {
	In       string `json:"in"`
	Out      string `json:"out"`
	Messages int    `json:"messages"`
	InBytes  int64  `json:"in_bytes"`
	OutBytes int64  `json:"out_bytes"`
}

type convertPlan struct {
	in, out []stream.Option
}

func runConvert(ctx context.Context, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	plan, err := buildConvertPlan()
	if err != nil {
		return err
	}
	if convertOutDir == "" {
		return errors.New("--out-dir is required")
	}
	if err := os.MkdirAll(convertOutDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	results := make([]ConvertResult, len(args))
	var total atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(convertJobs, 1))
	for i, in := range args {
		out := filepath.Join(convertOutDir, filepath.Base(in))
		g.Go(func() error {
			res, err := convertFile(gctx, in, out, plan)
			if err != nil {
				return fmt.Errorf("%s: %w", in, err)
			}
			results[i] = res
			total.Add(int64(res.Messages))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if jsonOut {
		return printJSON(results)
	}
	for _, r := range results {
		printInfo("%s -> %s: %d messages (%s -> %s)\n",
			r.In, r.Out, r.Messages, formatBytes(r.InBytes), formatBytes(r.OutBytes))
	}
	printVerbose("%d files, %d messages\n", len(results), total.Load())
	return nil
}

func buildConvertPlan() (convertPlan, error) {
	fromPacked, err := parsePacking(convertFrom)
	if err != nil {
		return convertPlan{}, fmt.Errorf("--from: %w", err)
	}
	toPacked, err := parsePacking(convertTo)
	if err != nil {
		return convertPlan{}, fmt.Errorf("--to: %w", err)
	}
	fromComp, err := stream.ParseCompression(convertFromCompress)
	if err != nil {
		return convertPlan{}, fmt.Errorf("--from-compress: %w", err)
	}
	toComp, err := stream.ParseCompression(convertCompress)
	if err != nil {
		return convertPlan{}, fmt.Errorf("--compress: %w", err)
	}

	common := []stream.Option{stream.WithMaxMessageSize(convertMaxSize), stream.WithLogger(logger.L)}
	p := convertPlan{
		in: append([]stream.Option{
			stream.WithCompression(fromComp),
			stream.WithMessageOptions(capnp.WithReadOnly(), capnp.WithLogger(logger.L)),
		}, common...),
		out: append([]stream.Option{stream.WithCompression(toComp)}, common...),
	}
	if fromPacked {
		p.in = append(p.in, stream.WithPacked())
	}
	if toPacked {
		p.out = append(p.out, stream.WithPacked())
	}
	return p, nil
}

func parsePacking(s string) (bool, error) {
	switch s {
	case "unpacked":
		return false, nil
	case "packed":
		return true, nil
	default:
		return false, fmt.Errorf("unknown encoding %q (want unpacked or packed)", s)
	}
}

// convertFile streams every message of in into out. A partial output file is
// removed on failure.
func convertFile(ctx context.Context, in, out string, plan convertPlan) (res ConvertResult, err error) {
	res = ConvertResult{In: in, Out: out}
	if same, _ := sameFile(in, out); same {
		return res, errors.New("output would overwrite input")
	}

	src, err := os.Open(in)
	if err != nil {
		return res, err
	}
	defer src.Close()

	dst, err := os.Create(out)
	if err != nil {
		return res, err
	}
	defer func() {
		if cerr := dst.Close(); err == nil && cerr != nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(out)
		}
	}()

	dec := stream.NewDecoder(src, plan.in...)
	cw := &countingWriter{w: dst}
	enc := stream.NewEncoder(cw, plan.out...)
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		msg, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, err
		}
		if err := enc.Encode(msg); err != nil {
			return res, err
		}
		res.Messages++
	}

	if st, err := src.Stat(); err == nil {
		res.InBytes = st.Size()
	}
	res.OutBytes = cw.n
	logger.Info("stream converted", "in", in, "out", out, "messages", res.Messages, "bytes", res.OutBytes)
	return res, nil
}

func sameFile(a, b string) (bool, error) {
	sa, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	sb, err := os.Stat(b)
	if err != nil {
		return false, err
	}
	return os.SameFile(sa, sb), nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
