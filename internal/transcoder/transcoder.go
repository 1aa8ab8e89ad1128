package transcoder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"trimsizer/internal/encoding"
	"trimsizer/internal/logging"
	"trimsizer/internal/metrics"
)

// Config locates the ffmpeg binaries and bounds their resource use.
type Config struct {
	FFmpegPath  string
	FFprobePath string
	// Threads is passed as -threads when positive.
	Threads int
	// TailLines is how much of ffmpeg's stderr is kept for error reports.
	TailLines int
}

// DefaultConfig resolves ffmpeg and ffprobe from PATH.
func DefaultConfig() Config {
	return Config{FFmpegPath: "ffmpeg", FFprobePath: "ffprobe", TailLines: 20}
}

// Transcoder runs ffmpeg and ffprobe as child processes. It implements
// encoding.Encoder, encoding.Checker and encoding.Prober.
type Transcoder struct {
	cfg       Config
	processes map[string]*exec.Cmd
	processMu sync.Mutex
}

// New creates a new Transcoder. Empty fields fall back to DefaultConfig.
func New(cfg Config) *Transcoder {
	def := DefaultConfig()
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = def.FFmpegPath
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = def.FFprobePath
	}
	if cfg.TailLines <= 0 {
		cfg.TailLines = def.TailLines
	}
	return &Transcoder{
		cfg:       cfg,
		processes: make(map[string]*exec.Cmd),
	}
}

// Check verifies that ffmpeg can be started.
func (t *Transcoder) Check(ctx context.Context) error {
	_, err := t.Version(ctx)
	return err
}

// Version returns the first line of `ffmpeg -version`.
func (t *Transcoder) Version(ctx context.Context) (string, error) {
	path, err := exec.LookPath(t.cfg.FFmpegPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", encoding.ErrEncoderUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, "-hide_banner", "-version").Output()
	if err != nil {
		return "", fmt.Errorf("%w: %s -version: %v", encoding.ErrEncoderUnavailable, path, err)
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line), nil
}

// BuildArgs renders an encode request as ffmpeg arguments. The trim is an
// input option of the clip, so -ss and -t precede the first -i and auxiliary
// inputs such as a palette are read whole.
func BuildArgs(req encoding.EncodeRequest, threads int) ([]string, error) {
	if req.Input == "" || req.Output == "" {
		return nil, errors.New("input and output paths are required")
	}
	if req.Filter != "" && req.FilterComplex != "" {
		return nil, errors.New("filter and filter_complex are mutually exclusive")
	}

	args := []string{"-hide_banner", "-nostdin", "-y"}
	if req.TrimDuration > 0 {
		args = append(args,
			"-ss", formatSeconds(req.TrimStart),
			"-t", formatSeconds(req.TrimDuration),
		)
	}
	args = append(args, "-i", req.Input)
	for _, aux := range req.AuxInputs {
		args = append(args, "-i", aux)
	}

	switch {
	case req.Filter != "":
		args = append(args, "-vf", req.Filter)
	case req.FilterComplex != "":
		args = append(args, "-filter_complex", req.FilterComplex)
	}
	if threads > 0 {
		args = append(args, "-threads", strconv.Itoa(threads))
	}

	args = append(args, req.CodecParams...)
	args = append(args, req.Output)
	return args, nil
}

// Stage names the kind of work a request does, for metrics and logs.
func Stage(req encoding.EncodeRequest) string {
	switch {
	case strings.Contains(req.Filter, "palettegen"):
		return "palettegen"
	case strings.Contains(req.FilterComplex, "paletteuse"):
		return "paletteuse"
	}
	for _, p := range req.CodecParams {
		switch p {
		case "-crf":
			return "crf"
		case "-b:v":
			return "cbr"
		}
	}
	return "encode"
}

// Encode runs one ffmpeg invocation and reports the size of the artifact it
// wrote.
func (t *Transcoder) Encode(ctx context.Context, req encoding.EncodeRequest) (encoding.EncodeResult, error) {
	args, err := BuildArgs(req, t.cfg.Threads)
	if err != nil {
		return encoding.EncodeResult{}, err
	}

	stage := Stage(req)
	start := time.Now()
	tail, err := t.run(ctx, req.Output, args)
	metrics.ObserveEncoderInvocation(stage, time.Since(start), err)
	if err != nil {
		if errors.Is(err, encoding.ErrEncoderUnavailable) || ctx.Err() != nil {
			return encoding.EncodeResult{}, err
		}
		logging.Error("FFmpeg %s failed for %s: %v\n%s", stage, req.Output, err, tail.String())
		return encoding.EncodeResult{}, fmt.Errorf("ffmpeg %s: %w: %s", stage, err, tail.Last())
	}

	info, err := os.Stat(req.Output)
	if err != nil {
		return encoding.EncodeResult{}, fmt.Errorf("ffmpeg %s produced no output: %w", stage, err)
	}
	logging.Debug("FFmpeg %s wrote %s (%d bytes, %.2fs of media) in %v",
		stage, req.Output, info.Size(), tail.Position(), time.Since(start).Round(time.Millisecond))

	return encoding.EncodeResult{Output: req.Output, SizeBytes: info.Size()}, nil
}

// ExtractFrame writes the frame at the given offset to output.
func (t *Transcoder) ExtractFrame(ctx context.Context, input string, at float64, output string) error {
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-ss", formatSeconds(at),
		"-i", input,
		"-frames:v", "1",
		output,
	}

	start := time.Now()
	tail, err := t.run(ctx, output, args)
	metrics.ObserveEncoderInvocation("frame", time.Since(start), err)
	if err != nil {
		if errors.Is(err, encoding.ErrEncoderUnavailable) {
			return err
		}
		return fmt.Errorf("frame extraction: %w: %s", err, tail.Last())
	}
	return nil
}

// run starts ffmpeg and tracks it under key until it exits.
func (t *Transcoder) run(ctx context.Context, key string, args []string) (*tailBuffer, error) {
	tail := newTailBuffer(t.cfg.TailLines)

	path, err := exec.LookPath(t.cfg.FFmpegPath)
	if err != nil {
		return tail, fmt.Errorf("%w: %v", encoding.ErrEncoderUnavailable, err)
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stderr = tail
	cmd.WaitDelay = 5 * time.Second

	logging.Debug("FFmpeg: %s %s", path, strings.Join(args, " "))

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
			return tail, fmt.Errorf("%w: %v", encoding.ErrEncoderUnavailable, err)
		}
		return tail, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	t.track(key, cmd)
	defer t.untrack(key)

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return tail, ctxErr
		}
		return tail, err
	}
	return tail, nil
}

func (t *Transcoder) track(key string, cmd *exec.Cmd) {
	t.processMu.Lock()
	t.processes[key] = cmd
	t.processMu.Unlock()
	metrics.EncoderProcessesActive.Inc()
}

func (t *Transcoder) untrack(key string) {
	t.processMu.Lock()
	delete(t.processes, key)
	t.processMu.Unlock()
	metrics.EncoderProcessesActive.Dec()
}

// Active returns the number of running ffmpeg processes.
func (t *Transcoder) Active() int {
	t.processMu.Lock()
	defer t.processMu.Unlock()
	return len(t.processes)
}

// Cleanup stops all active encoding processes.
func (t *Transcoder) Cleanup() {
	t.processMu.Lock()
	defer t.processMu.Unlock()

	for key, cmd := range t.processes {
		if cmd.Process != nil {
			logging.Info("Killing ffmpeg process writing %s", key)
			if err := cmd.Process.Kill(); err != nil {
				logging.Warn("failed to kill ffmpeg process for %s: %v", key, err)
			}
		}
	}
}

// Probe reads duration, dimensions and codec information with ffprobe.
func (t *Transcoder) Probe(ctx context.Context, path string) (*encoding.MediaInfo, error) {
	probe, err := exec.LookPath(t.cfg.FFprobePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", encoding.ErrEncoderUnavailable, err)
	}

	cmd := exec.CommandContext(ctx, probe,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	metrics.ObserveEncoderInvocation("probe", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("ffprobe error: %w - %s", err, strings.TrimSpace(stderr.String()))
	}

	info, err := ParseProbe(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if info.SizeBytes == 0 {
		if st, err := os.Stat(path); err == nil {
			info.SizeBytes = st.Size()
		}
	}
	return info, nil
}

type probeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	Duration     string `json:"duration"`
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
	} `json:"format"`
}

// ParseProbe extracts MediaInfo from ffprobe's JSON output. The first video
// stream supplies codec, dimensions and frame rate.
func ParseProbe(data []byte) (*encoding.MediaInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("invalid ffprobe output: %w", err)
	}

	info := &encoding.MediaInfo{}
	var video *probeStream
	for i := range out.Streams {
		s := &out.Streams[i]
		switch s.CodecType {
		case "video":
			if video == nil {
				video = s
			}
		case "audio":
			info.HasAudio = true
		}
	}
	if video == nil {
		return nil, errors.New("no video stream")
	}

	info.Codec = video.CodecName
	info.Width = video.Width
	info.Height = video.Height
	info.FrameRate = parseFrameRate(video.AvgFrameRate)
	if info.FrameRate == 0 {
		info.FrameRate = parseFrameRate(video.RFrameRate)
	}

	info.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)
	if info.Duration <= 0 {
		info.Duration, _ = strconv.ParseFloat(video.Duration, 64)
	}
	info.SizeBytes, _ = strconv.ParseInt(out.Format.Size, 10, 64)

	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("video stream has invalid dimensions %dx%d", info.Width, info.Height)
	}
	return info, nil
}

// parseFrameRate parses ffprobe rates such as "30000/1001" or "25".
func parseFrameRate(s string) float64 {
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
