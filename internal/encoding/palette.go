package encoding

import (
	"context"
	"errors"
	"fmt"

	"trimsizer/internal/logging"
	"trimsizer/internal/scratch"
)

const (
	// PaletteMaxColors caps the generated palette.
	PaletteMaxColors = 128
	// LongGIFSeconds is the clip length above which a size warning is reported.
	LongGIFSeconds = 30.0

	paletteName = "palette.png"
	gifName     = "output.gif"
)

// PaletteVerifier inspects a generated palette file. A nil verifier only
// checks that the file exists and is not empty.
type PaletteVerifier func(path string, maxColors int) error

// PaletteResult is the GIF produced by the pipeline.
type PaletteResult struct {
	Artifact  scratch.Handle
	Width     int
	Height    int
	FrameRate int
	// Warnings were reported as progress while the pipeline ran.
	Warnings []string
}

// PalettePipeline encodes GIFs in two passes: palette generation, then
// palette-constrained encoding.
type PalettePipeline struct {
	enc    Encoder
	verify PaletteVerifier
}

// NewPalettePipeline creates a pipeline.
func NewPalettePipeline(enc Encoder, verify PaletteVerifier) *PalettePipeline {
	return &PalettePipeline{enc: enc, verify: verify}
}

// Run executes both passes. Pass 2 is never started unless pass 1 left a
// usable palette behind.
func (p *PalettePipeline) Run(ctx context.Context, job Job) (PaletteResult, error) {
	width, height := job.Target.OutputDimensions()
	fps := job.Target.TargetFrameRate
	duration := job.Target.Trim.Duration()

	var warnings []string
	if duration > LongGIFSeconds {
		msg := fmt.Sprintf("Creating %.1fs GIF - this may result in a large file", duration)
		logging.Warn("%s", msg)
		report(job.Reporter, progressLongGIF, msg)
		warnings = append(warnings, msg)
	}

	palette, err := job.Arena.Handle(paletteName)
	if err != nil {
		return PaletteResult{}, err
	}
	defer func() {
		if rerr := palette.Release(); rerr != nil {
			logging.Warn("failed to release %s: %v", palette.Name(), rerr)
		}
	}()

	report(job.Reporter, progressPalette, "Generating optimized color palette")
	_, err = p.enc.Encode(ctx, EncodeRequest{
		Input:        job.Input.Path(),
		TrimStart:    job.Target.Trim.Start,
		TrimDuration: duration,
		Filter:       PaletteGenFilter(width, height),
		Output:       palette.Path(),
	})
	if err != nil {
		return PaletteResult{}, newError(invocationKind(err, ErrPaletteMissing), "palettegen", err)
	}
	if !palette.Exists() {
		return PaletteResult{}, newError(ErrPaletteMissing, "palettegen",
			errors.New("palette generation completed but palette.png was not created"))
	}
	if p.verify != nil {
		if err := p.verify(palette.Path(), PaletteMaxColors); err != nil {
			return PaletteResult{}, newError(ErrPaletteMissing, "palettegen", err)
		}
	}

	out, err := job.Arena.Handle(gifName)
	if err != nil {
		return PaletteResult{}, err
	}

	report(job.Reporter, progressPaletteUse, "Generating optimized GIF")
	_, err = p.enc.Encode(ctx, EncodeRequest{
		Input:         job.Input.Path(),
		AuxInputs:     []string{palette.Path()},
		TrimStart:     job.Target.Trim.Start,
		TrimDuration:  duration,
		FilterComplex: PaletteUseFilter(width, height, fps),
		Output:        out.Path(),
	})
	if err != nil {
		_ = out.Release()
		return PaletteResult{}, newError(invocationKind(err, ErrEncoderInvocationFailed), "paletteuse", err)
	}

	return PaletteResult{Artifact: out, Width: width, Height: height, FrameRate: fps, Warnings: warnings}, nil
}
