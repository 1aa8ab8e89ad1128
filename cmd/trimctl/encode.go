package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"trimsizer/internal/database"
	"trimsizer/internal/encoding"
	"trimsizer/internal/logging"
	"trimsizer/internal/media"
	"trimsizer/internal/scratch"
)

type encodeOptions struct {
	format    string
	mode      string
	sizeMB    float64
	frameRate int
	scale     float64
	start     float64
	end       float64
	output    string
	scratch   string
	noHistory bool
}

func newEncodeCmd(a *app) *cobra.Command {
	opts := &encodeOptions{}
	cmd := &cobra.Command{
		Use:   "encode <input>",
		Short: "Trim a clip and encode it to a size budget",
		Long: `Trims <input> to [--start, --end) and encodes it.

MP4 output uses a CRF search (--mode search, the default) or a single
constant-bitrate pass (--mode cbr) to fit --size-mb. GIF output uses a
two-pass palette at --fps and ignores the size budget.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runEncode(cmd.Context(), args[0], opts, cmd.Flags().Changed("end"))
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.format, "format", "f", "mp4", "output format: mp4 or gif")
	f.StringVarP(&opts.mode, "mode", "m", "", "mp4 mode: search or cbr (default search)")
	f.Float64VarP(&opts.sizeMB, "size-mb", "s", 10, "target size in MB (mp4)")
	f.IntVar(&opts.frameRate, "fps", 15, "frame rate (gif)")
	f.Float64Var(&opts.scale, "scale", 1, "resolution scale in (0, 1]")
	f.Float64Var(&opts.start, "start", 0, "trim start in seconds")
	f.Float64Var(&opts.end, "end", 0, "trim end in seconds (default: end of clip)")
	f.StringVarP(&opts.output, "output", "o", "", "output file (default trimmed_video.<format>)")
	f.StringVar(&opts.scratch, "scratch", filepath.Join(os.TempDir(), "trimctl"), "scratch directory")
	f.BoolVar(&opts.noHistory, "no-history", false, "do not record the session in the history database")
	return cmd
}

func (a *app) runEncode(ctx context.Context, input string, opts *encodeOptions, endSet bool) error {
	if _, err := os.Stat(input); err != nil {
		return fmt.Errorf("cannot read input: %w", err)
	}

	format, err := encoding.ParseFormat(strings.ToLower(opts.format))
	if err != nil {
		return err
	}
	mode, err := encoding.ParseMode(strings.ToLower(opts.mode))
	if err != nil {
		return err
	}

	tool := a.tool()
	info, err := tool.Probe(ctx, input)
	if err != nil {
		return fmt.Errorf("probe failed: %w", err)
	}

	trim := encoding.FullRange(info.Duration)
	if endSet {
		trim.End = opts.end
	}
	if trim, err = encoding.NewTrimRange(opts.start, trim.End, info.Duration); err != nil {
		return err
	}

	target := encoding.EncodingTarget{
		Format:          format,
		TargetSizeMB:    opts.sizeMB,
		TargetFrameRate: opts.frameRate,
		Scale:           opts.scale,
		Trim:            trim,
		SourceWidth:     info.Width,
		SourceHeight:    info.Height,
	}
	if opts.mode != "" {
		target.Mode = mode
	}
	if err := target.Validate(); err != nil {
		return err
	}

	output := opts.output
	if output == "" {
		output = encoding.DefaultOutputName(format)
	}
	output, err = filepath.Abs(output)
	if err != nil {
		return err
	}

	arenas, err := scratch.NewManager(opts.scratch)
	if err != nil {
		return err
	}
	orch := encoding.NewOrchestrator(tool, arenas, encoding.Config{VerifyPalette: media.VerifyPalette})

	rep := a.reporter()
	sessionID := uuid.NewString()
	started := time.Now()
	res, err := orch.Encode(ctx, encoding.Request{
		SessionID:  sessionID,
		SourcePath: input,
		Target:     target,
		OutputDir:  filepath.Dir(output),
		OutputName: filepath.Base(output),
	}, rep)
	rep.Finish()

	if !opts.noHistory && a.dbPath != "" {
		a.record(ctx, database.SessionInput{
			ID:          sessionID,
			SourcePath:  input,
			SourceBytes: fileSize(input),
			Target:      target,
			StartedAt:   started,
			FinishedAt:  time.Now(),
		}, res, err)
	}
	if err != nil {
		return err
	}

	printResult(a, res)
	return nil
}

func (a *app) record(ctx context.Context, in database.SessionInput, res *encoding.Result, encErr error) {
	db, err := a.openDB(ctx)
	if err != nil {
		logging.Warn("history not recorded: %v", err)
		return
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultTimeout)
	defer cancel()
	if err := db.RecordSession(ctx, database.NewSessionRecord(in, res, encErr)); err != nil {
		logging.Warn("history not recorded: %v", err)
	}
}

func printResult(a *app, res *encoding.Result) {
	fmt.Fprintf(a.out, "Wrote %s (%s, %dx%d)\n", res.Path, formatMB(res.SizeBytes), res.OutputWidth, res.OutputHeight)
	switch res.Mode {
	case encoding.ModeSizeSearch:
		fmt.Fprintf(a.out, "  CRF %d after %d attempt(s), target %s\n", res.CRF, res.Attempts, formatMB(res.TargetSizeBytes))
		if res.Fallback {
			fmt.Fprintln(a.out, "  Reached by the reduced-resolution fallback")
		}
		if res.Oversized {
			fmt.Fprintln(a.out, "  Warning: output is still larger than the target")
		}
	case encoding.ModeConstantBitrate:
		fmt.Fprintf(a.out, "  %d kbps, size check: %s\n", res.BitrateKbps, res.SizeCheck)
	case encoding.ModePalette:
		fmt.Fprintf(a.out, "  %d fps palette GIF\n", res.FrameRate)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(a.out, "  Note: %s\n", w)
	}
}

func formatMB(b int64) string {
	return fmt.Sprintf("%.2f MB", float64(b)/(1024*1024))
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
