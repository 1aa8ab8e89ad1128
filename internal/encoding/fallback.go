package encoding

import (
	"context"
	"errors"
	"fmt"

	"trimsizer/internal/logging"
	"trimsizer/internal/scratch"
)

// FallbackScaleFactor shrinks each output dimension for the fallback encode.
const FallbackScaleFactor = 0.8

// FallbackResult is the artifact of the reduced-resolution encode.
type FallbackResult struct {
	Artifact  scratch.Handle
	CRF       int
	SizeBytes int64
	Width     int
	Height    int
	// Oversized is set when even the reduced encode misses the budget. The
	// artifact is still returned.
	Oversized bool
}

// Fallback re-encodes once at the last evaluated CRF with 80% dimensions
// and 96 kbps audio. It only accepts an OutcomeNoFit; it is a single extra
// encode, not another search.
func (s *Searcher) Fallback(ctx context.Context, job Job, noFit SearchOutcome) (FallbackResult, error) {
	if noFit.Kind != OutcomeNoFit {
		return FallbackResult{}, fmt.Errorf("fallback requires a %s outcome, got %s", OutcomeNoFit, noFit.Kind)
	}

	targetBytes := job.Target.TargetSizeBytes()
	crf := noFit.LastCRF
	width, height := job.Target.ScaledDimensions(FallbackScaleFactor)

	report(job.Reporter, progressFallback,
		fmt.Sprintf("No CRF fit the target, re-encoding at %dx%d (CRF %d)", width, height, crf))

	out, err := job.Arena.Handle("output_fallback.mp4")
	if err != nil {
		return FallbackResult{}, err
	}

	attempt := runCRF(ctx, s.enc, job, out, crf, width, height, FallbackAudioBitrateKbps)
	if attempt.Err != nil {
		if cerr := ctx.Err(); cerr != nil && !errors.Is(attempt.Err, cerr) {
			return FallbackResult{}, fmt.Errorf("fallback cancelled: %w", cerr)
		}
		return FallbackResult{}, &Error{
			Kind:        invocationKind(attempt.Err, ErrSearchExhausted),
			Op:          "fallback",
			CRFs:        append(noFit.CRFs(), crf),
			Sizes:       append(noFit.Sizes(), 0),
			TargetBytes: targetBytes,
			Err:         attempt.Err,
		}
	}

	result := FallbackResult{
		Artifact:  out,
		CRF:       crf,
		SizeBytes: attempt.SizeBytes,
		Width:     width,
		Height:    height,
		Oversized: attempt.SizeBytes > targetBytes,
	}
	if result.Oversized {
		logging.Warn("fallback output %d bytes still exceeds target %d bytes", attempt.SizeBytes, targetBytes)
	}
	return result, nil
}
