package main

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"trimsizer/internal/encoding"
	"trimsizer/internal/media"
	"trimsizer/internal/transcoder"
)

// fakeTool probes every file as a 10s 1280x720 clip and writes fixed-size
// artifacts. Palette outputs are real 16x16 PNGs.
type fakeTool struct {
	size int
}

func (f *fakeTool) Probe(_ context.Context, _ string) (*encoding.MediaInfo, error) {
	return &encoding.MediaInfo{Duration: 10, Width: 1280, Height: 720, Codec: "h264", FrameRate: 30, HasAudio: true}, nil
}

func (f *fakeTool) Encode(_ context.Context, req encoding.EncodeRequest) (encoding.EncodeResult, error) {
	if strings.HasSuffix(req.Output, ".png") {
		if err := writePalette(req.Output); err != nil {
			return encoding.EncodeResult{}, err
		}
		info, _ := os.Stat(req.Output)
		return encoding.EncodeResult{Output: req.Output, SizeBytes: info.Size()}, nil
	}
	if err := os.WriteFile(req.Output, bytes.Repeat([]byte{1}, f.size), 0o644); err != nil {
		return encoding.EncodeResult{}, err
	}
	return encoding.EncodeResult{Output: req.Output, SizeBytes: int64(f.size)}, nil
}

// writePalette writes what palettegen=max_colors=128 leaves behind: 128
// distinct entries, the rest padded with opaque black.
func writePalette(path string) error {
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for i := 0; i < 16*16; i++ {
		c := color.NRGBA{0, 0, 0, 255}
		if i < 128 {
			c = color.NRGBA{uint8(2*i + 1), uint8(255 - i), 64, 255}
		}
		img.SetNRGBA(i%16, i/16, c)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

type testApp struct {
	*app
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	dir    string
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	t.Setenv("DATA_DIR", "")
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	a := &app{
		out:    stdout,
		errOut: stderr,
		newTool: func(transcoder.Config) mediaTool {
			return &fakeTool{size: 1000}
		},
		isTerminal: func() bool { return false },
	}
	return &testApp{app: a, stdout: stdout, stderr: stderr, dir: t.TempDir()}
}

func (ta *testApp) run(args ...string) error {
	ta.stdout.Reset()
	ta.stderr.Reset()
	root := newRootCmd(ta.app)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func (ta *testApp) input(t *testing.T) string {
	t.Helper()
	path := filepath.Join(ta.dir, "clip.mov")
	if err := os.WriteFile(path, []byte("not really a movie"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBitrateCommand(t *testing.T) {
	ta := newTestApp(t)

	if err := ta.run("bitrate", "--size-mb", "10", "--duration", "60"); err != nil {
		t.Fatalf("bitrate error = %v", err)
	}
	if !strings.Contains(ta.stdout.String(), "kbps video + 128 kbps audio") || strings.Contains(ta.stdout.String(), "Warning") {
		t.Errorf("output = %q", ta.stdout.String())
	}

	if err := ta.run("bitrate", "-s", "1", "-d", "120"); err != nil {
		t.Fatalf("bitrate error = %v", err)
	}
	if !strings.Contains(ta.stdout.String(), "Warning: low bitrate") {
		t.Errorf("low bitrate not flagged: %q", ta.stdout.String())
	}

	if err := ta.run("bitrate", "--size-mb", "10"); err == nil {
		t.Error("missing --duration should fail")
	}
	if err := ta.run("bitrate", "--size-mb", "0", "--duration", "10"); !errors.Is(err, encoding.ErrInvalidTarget) {
		t.Errorf("zero size error = %v", err)
	}
}

func TestProbeCommand(t *testing.T) {
	ta := newTestApp(t)
	if err := ta.run("probe", ta.input(t)); err != nil {
		t.Fatalf("probe error = %v", err)
	}
	for _, want := range []string{"Duration:   10.000s", "Dimensions: 1280x720", "Codec:      h264"} {
		if !strings.Contains(ta.stdout.String(), want) {
			t.Errorf("output missing %q:\n%s", want, ta.stdout.String())
		}
	}
}

func TestEncodeAndHistory(t *testing.T) {
	ta := newTestApp(t)
	input := ta.input(t)
	out := filepath.Join(ta.dir, "small.mp4")
	db := filepath.Join(ta.dir, "history.db")

	err := ta.run("encode", input, "--start", "1", "--end", "4", "--size-mb", "2",
		"-o", out, "--scratch", filepath.Join(ta.dir, "scratch"), "--db", db)
	if err != nil {
		t.Fatalf("encode error = %v", err)
	}

	info, err := os.Stat(out)
	if err != nil || info.Size() != 1000 {
		t.Fatalf("output = %v, err %v", info, err)
	}
	if !strings.Contains(ta.stdout.String(), "attempt(s)") {
		t.Errorf("stdout = %q", ta.stdout.String())
	}
	if !strings.Contains(ta.stderr.String(), "[100%] Processing complete") {
		t.Errorf("progress lines = %q", ta.stderr.String())
	}
	if entries, _ := os.ReadDir(filepath.Join(ta.dir, "scratch")); len(entries) != 0 {
		t.Errorf("scratch not cleaned: %d entries", len(entries))
	}

	if err := ta.run("history", "--db", db); err != nil {
		t.Fatalf("history error = %v", err)
	}
	if !strings.Contains(ta.stdout.String(), "clip.mov") || !strings.Contains(ta.stdout.String(), "1 session(s) total") {
		t.Errorf("history = %q", ta.stdout.String())
	}

	// created_at has millisecond resolution.
	time.Sleep(10 * time.Millisecond)
	if err := ta.run("history", "--db", db, "--prune", "1ms"); err != nil {
		t.Fatalf("prune error = %v", err)
	}
	if !strings.Contains(ta.stdout.String(), "Removed 1 session(s)") {
		t.Errorf("prune output = %q", ta.stdout.String())
	}

	if err := ta.run("history", "--db", db); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(ta.stdout.String(), "No sessions recorded.") {
		t.Errorf("history after prune = %q", ta.stdout.String())
	}
}

func TestEncodeGIF(t *testing.T) {
	ta := newTestApp(t)
	out := filepath.Join(ta.dir, "loop.gif")

	err := ta.run("encode", ta.input(t), "--format", "gif", "--fps", "12", "--scale", "0.5",
		"-o", out, "--scratch", filepath.Join(ta.dir, "scratch"), "--no-history")
	if err != nil {
		t.Fatalf("encode error = %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("gif not written: %v", err)
	}
	if !strings.Contains(ta.stdout.String(), "12 fps palette GIF") || !strings.Contains(ta.stdout.String(), "640x360") {
		t.Errorf("stdout = %q", ta.stdout.String())
	}
}

func TestPaletteFixturePassesVerification(t *testing.T) {
	path := filepath.Join(t.TempDir(), "palette.png")
	if err := writePalette(path); err != nil {
		t.Fatal(err)
	}
	if err := media.VerifyPalette(path, 128); err != nil {
		t.Fatalf("VerifyPalette() = %v", err)
	}
	info, err := media.InspectPalette(path)
	if err != nil {
		t.Fatal(err)
	}
	// 128 entries plus the black padding.
	if info.Colors != 129 {
		t.Errorf("colors = %d, want 129", info.Colors)
	}
}

func TestEncodeRejectsBadInput(t *testing.T) {
	ta := newTestApp(t)
	input := ta.input(t)
	scratchDir := filepath.Join(ta.dir, "scratch")

	tests := []struct {
		name string
		args []string
		kind error
	}{
		{"reversed range", []string{"--start", "5", "--end", "2"}, encoding.ErrInvalidRange},
		{"past the end", []string{"--end", "11"}, encoding.ErrInvalidRange},
		{"unknown format", []string{"--format", "webm"}, encoding.ErrInvalidTarget},
		{"unknown mode", []string{"--mode", "vbr"}, encoding.ErrInvalidTarget},
		{"scale above one", []string{"--scale", "2"}, encoding.ErrInvalidTarget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"encode", input, "--no-history", "--scratch", scratchDir,
				"-o", filepath.Join(ta.dir, "x.mp4")}, tt.args...)
			if err := ta.run(args...); !errors.Is(err, tt.kind) {
				t.Errorf("error = %v, want %v", err, tt.kind)
			}
		})
	}

	if err := ta.run("encode", filepath.Join(ta.dir, "missing.mp4"), "--no-history"); err == nil {
		t.Error("missing input should fail")
	}
}

func TestHistoryRequiresDatabase(t *testing.T) {
	ta := newTestApp(t)
	if err := ta.run("history", "--db", ""); err == nil || !strings.Contains(err.Error(), "no history database") {
		t.Errorf("error = %v", err)
	}
}

func TestLineReporterIsMonotonic(t *testing.T) {
	var buf bytes.Buffer
	r := &lineReporter{w: &buf}
	r.Report(30, "Attempt 1/4")
	r.Report(10, "late update")
	r.Report(100, "Processing complete")

	want := "[ 30%] Attempt 1/4\n[ 30%] late update\n[100%] Processing complete\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestBarReporter(t *testing.T) {
	var buf bytes.Buffer
	b := newBarReporter(&buf)
	b.Report(50, "Attempt 2/4")
	b.Report(40, "ignored")
	if b.last != 50 {
		t.Errorf("last = %d, want 50", b.last)
	}
	b.Report(100, "Processing complete")
	b.Finish()
	if buf.Len() == 0 {
		t.Error("bar wrote nothing")
	}
}
