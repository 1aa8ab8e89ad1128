package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"trimsizer/internal/database"
	"trimsizer/internal/encoding"
)

func newProbeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "probe <input>",
		Short: "Show duration, dimensions and codec of a clip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := a.tool().Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Duration:   %.3fs\n", info.Duration)
			fmt.Fprintf(a.out, "Dimensions: %dx%d\n", info.Width, info.Height)
			fmt.Fprintf(a.out, "Codec:      %s\n", info.Codec)
			fmt.Fprintf(a.out, "Frame rate: %.2f fps\n", info.FrameRate)
			fmt.Fprintf(a.out, "Audio:      %v\n", info.HasAudio)
			if info.SizeBytes > 0 {
				fmt.Fprintf(a.out, "Size:       %s\n", formatMB(info.SizeBytes))
			}
			return nil
		},
	}
}

func newBitrateCmd(a *app) *cobra.Command {
	var sizeMB, duration float64
	cmd := &cobra.Command{
		Use:   "bitrate",
		Short: "Compute the constant video bitrate for a size and duration",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			kbps, err := encoding.ComputeVideoBitrateKbps(sizeMB, duration)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%d kbps video + %d kbps audio\n", kbps, encoding.AudioBitrateKbps)
			if encoding.IsLowBitrate(kbps) {
				fmt.Fprintln(a.out, "Warning: low bitrate, quality may be poor")
			}
			return nil
		},
	}
	cmd.Flags().Float64VarP(&sizeMB, "size-mb", "s", 10, "target size in MB")
	cmd.Flags().Float64VarP(&duration, "duration", "d", 0, "clip duration in seconds")
	_ = cmd.MarkFlagRequired("duration")
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit int
		prune time.Duration
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded encode sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()

			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if prune > 0 {
				n, err := db.DeleteSessionsBefore(ctx, time.Now().Add(-prune))
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Removed %d session(s) older than %s\n", n, prune)
				return nil
			}
			return printHistory(ctx, a, db, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", database.DefaultListLimit, "number of sessions to show")
	cmd.Flags().DurationVar(&prune, "prune", 0, "delete sessions older than this instead of listing")
	return cmd
}

func printHistory(ctx context.Context, a *app, db *database.Database, limit int) error {
	sessions, err := db.ListSessions(ctx, limit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(a.out, "No sessions recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tSOURCE\tFORMAT\tMODE\tSTATUS\tSIZE\tATTEMPTS")
	for _, s := range sessions {
		size := "-"
		if s.Succeeded() {
			size = formatMB(s.OutputBytes)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			s.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			s.SourceName, s.Format, s.Mode, s.Status, size, s.Attempts)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	stats, err := db.GetStats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "\n%d session(s) total, %d fallback(s), %s written\n",
		stats.Total, stats.Fallbacks, formatMB(stats.TotalOutputBytes))
	return nil
}
