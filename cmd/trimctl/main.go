package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"trimsizer/internal/database"
	"trimsizer/internal/encoding"
	"trimsizer/internal/logging"
	"trimsizer/internal/startup"
	"trimsizer/internal/transcoder"
	"trimsizer/internal/workers"
)

// Default timeout for database operations
const defaultTimeout = 30 * time.Second

// mediaTool is what the commands need from ffmpeg and ffprobe.
type mediaTool interface {
	encoding.Encoder
	encoding.Prober
}

// app carries the global flags and the seams the tests replace.
type app struct {
	out    io.Writer
	errOut io.Writer

	ffmpegPath  string
	ffprobePath string
	dbPath      string
	verbose     bool

	newTool    func(transcoder.Config) mediaTool
	isTerminal func() bool
}

func newApp() *app {
	return &app{
		out:    os.Stdout,
		errOut: os.Stderr,
		newTool: func(cfg transcoder.Config) mediaTool {
			return transcoder.New(cfg)
		},
		isTerminal: func() bool {
			return term.IsTerminal(int(os.Stdout.Fd()))
		},
	}
}

func (a *app) tool() mediaTool {
	return a.newTool(transcoder.Config{
		FFmpegPath:  a.ffmpegPath,
		FFprobePath: a.ffprobePath,
		Threads:     workers.ForEncoder(),
	})
}

// openDB opens the history database named by --db.
func (a *app) openDB(ctx context.Context) (*database.Database, error) {
	if a.dbPath == "" {
		return nil, fmt.Errorf("no history database: pass --db or set DATA_DIR")
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return database.New(ctx, a.dbPath)
}

func defaultDBPath() string {
	if dir := os.Getenv("DATA_DIR"); dir != "" {
		return filepath.Join(dir, "trimsizer.db")
	}
	return ""
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "trimctl",
		Short: "Trim and re-encode video clips to a size budget",
		Long: `trimctl runs the trimsizer encoder locally.

Examples:
  trimctl encode clip.mov --start 12 --end 27 --size-mb 8 -o out.mp4
  trimctl encode clip.mov --format gif --fps 12 --scale 0.5
  trimctl bitrate --size-mb 10 --duration 45
  trimctl history --limit 20`,
		Version:       startup.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if a.verbose {
				logging.SetLevel(logging.LevelDebug)
			} else if os.Getenv("LOG_LEVEL") == "" && os.Getenv("DEBUG") == "" {
				logging.SetLevel(logging.LevelWarn)
			}
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.ffmpegPath, "ffmpeg", envOr("FFMPEG_PATH", "ffmpeg"), "ffmpeg binary")
	flags.StringVar(&a.ffprobePath, "ffprobe", envOr("FFPROBE_PATH", "ffprobe"), "ffprobe binary")
	flags.StringVar(&a.dbPath, "db", defaultDBPath(), "session history database (default $DATA_DIR/trimsizer.db)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newEncodeCmd(a),
		newProbeCmd(a),
		newBitrateCmd(a),
		newHistoryCmd(a),
	)
	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(newApp()).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
