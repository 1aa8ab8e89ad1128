package encoding

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"trimsizer/internal/logging"
	"trimsizer/internal/mediatypes"
	"trimsizer/internal/scratch"
)

// Input warning thresholds.
const (
	largeInputBytes  = 100 * 1024 * 1024
	highInputPixels  = 4000000
	highOutputPixels = 1920 * 1080
)

// Config configures an Orchestrator.
type Config struct {
	Search        SearchConfig
	VerifyPalette PaletteVerifier
}

// Request is one encode session.
type Request struct {
	// SessionID names the scratch arena. Empty generates one.
	SessionID  string
	SourcePath string
	Target     EncodingTarget
	OutputDir  string
	// OutputName defaults to trimmed_video.<format>.
	OutputName string
}

// Result describes the artifact handed back to the caller.
type Result struct {
	SessionID       string                  `json:"sessionId"`
	Path            string                  `json:"-"`
	Name            string                  `json:"name"`
	Kind            mediatypes.ArtifactKind `json:"kind"`
	MIMEType        string                  `json:"mimeType"`
	Format          Format                  `json:"format"`
	Mode            Mode                    `json:"mode"`
	SizeBytes       int64                   `json:"sizeBytes"`
	TargetSizeBytes int64                   `json:"targetSizeBytes,omitempty"`
	CRF             int                     `json:"crf,omitempty"`
	BitrateKbps     int                     `json:"bitrateKbps,omitempty"`
	FrameRate       int                     `json:"frameRate,omitempty"`
	Attempts        int                     `json:"attempts"`
	Fallback        bool                    `json:"fallback"`
	Oversized       bool                    `json:"oversized"`
	SizeCheck       SizeCheck               `json:"sizeCheck,omitempty"`
	OutputWidth     int                     `json:"outputWidth"`
	OutputHeight    int                     `json:"outputHeight"`
	Warnings        []string                `json:"warnings,omitempty"`
	Elapsed         time.Duration           `json:"-"`
}

// Orchestrator runs encode sessions, one at a time.
type Orchestrator struct {
	enc      Encoder
	arenas   *scratch.Manager
	searcher *Searcher
	palette  *PalettePipeline

	mu      sync.Mutex
	running atomic.Bool
}

// NewOrchestrator wires the encoder and the scratch manager together.
func NewOrchestrator(enc Encoder, arenas *scratch.Manager, cfg Config) *Orchestrator {
	return &Orchestrator{
		enc:      enc,
		arenas:   arenas,
		searcher: NewSearcher(enc, cfg.Search),
		palette:  NewPalettePipeline(enc, cfg.VerifyPalette),
	}
}

// Busy reports whether a session is in flight.
func (o *Orchestrator) Busy() bool {
	return o.running.Load()
}

// PurgeScratch clears the scratch root when no session is running.
func (o *Orchestrator) PurgeScratch() (int64, error) {
	if !o.mu.TryLock() {
		return 0, newError(ErrBusy, "purge", nil)
	}
	defer o.mu.Unlock()
	return o.arenas.Purge()
}

// Encode runs one session: validate, import the source into a fresh arena,
// dispatch on the mode, then move the artifact to OutputDir. The arena is
// removed on every return path. A second call while one is running fails
// with ErrBusy.
func (o *Orchestrator) Encode(ctx context.Context, req Request, rep Reporter) (*Result, error) {
	if rep == nil {
		rep = Discard
	}
	target := req.Target
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if req.SourcePath == "" {
		return nil, newError(ErrInvalidTarget, "validate", errors.New("source path is required"))
	}
	if req.OutputDir == "" {
		return nil, newError(ErrInvalidTarget, "validate", errors.New("output directory is required"))
	}

	if !o.mu.TryLock() {
		return nil, newError(ErrBusy, "encode", nil)
	}
	o.running.Store(true)
	defer func() {
		o.running.Store(false)
		o.mu.Unlock()
	}()

	if checker, ok := o.enc.(Checker); ok {
		if err := checker.Check(ctx); err != nil {
			return nil, newError(ErrEncoderUnavailable, "encode", err)
		}
	}

	start := time.Now()
	report(rep, progressPrepare, "Preparing encode session")

	arena, err := o.arenas.Open(req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to open scratch arena: %w", err)
	}
	defer func() {
		if err := arena.Close(); err != nil {
			logging.Warn("failed to clean up arena %s: %v", arena.ID(), err)
		}
	}()

	mode := target.EffectiveMode()
	width, height := target.OutputDimensions()
	res := &Result{
		SessionID:    arena.ID(),
		Kind:         target.Format.Kind(),
		MIMEType:     target.Format.MIMEType(),
		Format:       target.Format,
		Mode:         mode,
		OutputWidth:  width,
		OutputHeight: height,
	}
	if target.Format == FormatMP4 {
		res.TargetSizeBytes = target.TargetSizeBytes()
	}
	warn := func(percent int, msg string) {
		res.Warnings = append(res.Warnings, msg)
		logging.Warn("session %s: %s", arena.ID(), msg)
		report(rep, percent, msg)
	}

	info, err := os.Stat(req.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read source: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(req.SourcePath))
	if ext == "" {
		ext = ".mp4"
	}
	input, err := arena.Import(req.SourcePath, "input"+ext)
	if err != nil {
		return nil, err
	}
	report(rep, progressInputCopied, "Input copied")

	if info.Size() > largeInputBytes {
		warn(progressInputCopied, fmt.Sprintf("Large file detected (%.1fMB). This may take a while", megabytes(info.Size())))
	}
	if target.SourceWidth*target.SourceHeight > highInputPixels {
		warn(progressInputCopied, "High resolution source detected")
	}
	if scaledW, scaledH := rawScaled(target); scaledW*scaledH > highOutputPixels {
		warn(progressInputCopied, fmt.Sprintf("High resolution %dx%d - processing may be slow", scaledW, scaledH))
	}

	logging.Info("Encode session %s started: format=%s mode=%s trim=%.2f-%.2fs output=%dx%d",
		arena.ID(), target.Format, mode, target.Trim.Start, target.Trim.End, width, height)

	job := Job{Arena: arena, Input: input, Target: target, Reporter: rep}

	var artifact scratch.Handle
	switch mode {
	case ModeConstantBitrate:
		artifact, err = o.encodeCBR(ctx, job, res, warn)
	case ModeSizeSearch:
		artifact, err = o.encodeSearch(ctx, job, res)
	case ModePalette:
		res.FrameRate = target.TargetFrameRate
		res.Attempts = 2
		var pr PaletteResult
		pr, err = o.palette.Run(ctx, job)
		artifact = pr.Artifact
		res.Warnings = append(res.Warnings, pr.Warnings...)
	}
	if err != nil {
		logging.Error("Encode session %s failed: %v", arena.ID(), err)
		return nil, err
	}

	report(rep, progressFinalizing, "Finalizing")

	size, err := artifact.Size()
	if err != nil || size == 0 {
		return nil, &Error{Kind: ErrOutputMissing, Op: "finalize", CRFs: crfList(res.CRF), BitrateKbps: res.BitrateKbps, Err: err}
	}
	if target.Format == FormatMP4 {
		res.SizeCheck = CheckSize(size, res.TargetSizeBytes)
		switch res.SizeCheck {
		case SizeOver:
			warn(progressFinalizing, fmt.Sprintf("Output (%.2fMB) exceeds target (%.2fMB) by %.1f%%",
				megabytes(size), target.TargetSizeMB, (float64(size)/float64(res.TargetSizeBytes)-1)*100))
		case SizeUnder:
			warn(progressFinalizing, fmt.Sprintf("Output (%.2fMB) is much smaller than target (%.2fMB)",
				megabytes(size), target.TargetSizeMB))
		}
	}

	name := req.OutputName
	if name == "" {
		name = DefaultOutputName(target.Format)
	}
	dest := filepath.Join(req.OutputDir, filepath.Base(name))
	if _, err := arena.Promote(artifact, dest); err != nil {
		return nil, &Error{Kind: ErrOutputMissing, Op: "promote", Err: err}
	}

	res.Path = dest
	res.Name = filepath.Base(name)
	res.SizeBytes = size
	res.Elapsed = time.Since(start)

	report(rep, progressComplete, "Processing complete")
	logging.Info("Encode session %s finished: %s %d bytes in %s (attempts=%d fallback=%v)",
		res.SessionID, res.Name, res.SizeBytes, res.Elapsed.Round(time.Millisecond), res.Attempts, res.Fallback)
	return res, nil
}

type warnFunc func(percent int, msg string)

func (o *Orchestrator) encodeCBR(ctx context.Context, job Job, res *Result, warn warnFunc) (scratch.Handle, error) {
	kbps, err := ComputeVideoBitrateKbps(job.Target.TargetSizeMB, job.Target.Trim.Duration())
	if err != nil {
		return scratch.Handle{}, err
	}
	res.BitrateKbps = kbps
	if IsLowBitrate(kbps) {
		warn(progressCBR, fmt.Sprintf("Low bitrate (%d kbps) - quality may be poor", kbps))
	}

	out, err := job.Arena.Handle("output.mp4")
	if err != nil {
		return scratch.Handle{}, err
	}

	report(job.Reporter, progressCBR, fmt.Sprintf("Encoding MP4 with CBR (%d kbps)", kbps))
	res.Attempts = 1
	_, err = o.enc.Encode(ctx, EncodeRequest{
		Input:        job.Input.Path(),
		TrimStart:    job.Target.Trim.Start,
		TrimDuration: job.Target.Trim.Duration(),
		Filter:       scaleFilter(res.OutputWidth, res.OutputHeight),
		CodecParams:  cbrParams(kbps),
		Output:       out.Path(),
	})
	if err != nil {
		return scratch.Handle{}, &Error{
			Kind: invocationKind(err, ErrEncoderInvocationFailed), Op: "cbr", BitrateKbps: kbps, Err: err,
		}
	}
	return out, nil
}

func (o *Orchestrator) encodeSearch(ctx context.Context, job Job, res *Result) (scratch.Handle, error) {
	outcome, err := o.searcher.Search(ctx, job)
	res.Attempts = len(outcome.Attempts)
	if err != nil {
		return scratch.Handle{}, err
	}

	if outcome.Kind == OutcomeFit {
		res.CRF = outcome.CRF
		return outcome.Artifact, nil
	}

	fb, err := o.searcher.Fallback(ctx, job, outcome)
	res.Attempts++
	if err != nil {
		return scratch.Handle{}, err
	}
	res.CRF = fb.CRF
	res.Fallback = true
	res.Oversized = fb.Oversized
	res.OutputWidth = fb.Width
	res.OutputHeight = fb.Height
	return fb.Artifact, nil
}

// rawScaled is the scaled size before even rounding, used for warnings.
func rawScaled(t EncodingTarget) (int, int) {
	w := float64(t.SourceWidth) * t.Scale
	h := float64(t.SourceHeight) * t.Scale
	return int(w + 0.5), int(h + 0.5)
}

func crfList(crf int) []int {
	if crf == 0 {
		return nil
	}
	return []int{crf}
}
