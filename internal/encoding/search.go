package encoding

import (
	"context"
	"errors"
	"fmt"

	"trimsizer/internal/logging"
	"trimsizer/internal/scratch"
)

// SearchConfig bounds the CRF bisection.
type SearchConfig struct {
	MinCRF      int
	MaxCRF      int
	MaxAttempts int
}

// DefaultSearchConfig returns the standard bounds: CRF 18 to 35 in at most
// four encodes.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{MinCRF: 18, MaxCRF: 35, MaxAttempts: 4}
}

func (c SearchConfig) validate() error {
	if c.MinCRF < 0 || c.MaxCRF > 51 || c.MinCRF > c.MaxCRF {
		return fmt.Errorf("crf bounds [%d, %d] must lie within [0, 51]", c.MinCRF, c.MaxCRF)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts)
	}
	return nil
}

// SearchState is the bisection state of one Search call.
type SearchState struct {
	MinCRF        int
	MaxCRF        int
	BestCRF       int
	BestSizeBytes int64
	Attempts      int
	MaxAttempts   int
	// Found is set once an attempt fit the budget. BestCRF starts at the
	// pessimistic bound and means nothing until then.
	Found bool
}

// Attempt is the outcome of one encoder invocation.
type Attempt struct {
	CRF       int
	SizeBytes int64
	Err       error
}

// Fits reports whether the attempt produced an artifact within target.
func (a Attempt) Fits(targetBytes int64) bool {
	return a.Err == nil && a.SizeBytes > 0 && a.SizeBytes <= targetBytes
}

// OutcomeKind is the terminal state of a search.
type OutcomeKind int

const (
	// OutcomeFit means an attempt fit and its artifact is retained.
	OutcomeFit OutcomeKind = iota + 1
	// OutcomeNoFit means the attempts ran out without a fit.
	OutcomeNoFit
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeFit:
		return "fit"
	case OutcomeNoFit:
		return "no_fit"
	default:
		return "unknown"
	}
}

// SearchOutcome is returned by Search.
type SearchOutcome struct {
	Kind OutcomeKind
	// Artifact is the retained best output. Only valid for OutcomeFit.
	Artifact  scratch.Handle
	CRF       int
	SizeBytes int64
	// LastCRF is the last CRF evaluated, used by the fallback.
	LastCRF  int
	Attempts []Attempt
}

// CRFs lists the evaluated CRF values in order.
func (o SearchOutcome) CRFs() []int {
	crfs := make([]int, len(o.Attempts))
	for i, a := range o.Attempts {
		crfs[i] = a.CRF
	}
	return crfs
}

// Sizes lists the observed output sizes in order; failed attempts are 0.
func (o SearchOutcome) Sizes() []int64 {
	sizes := make([]int64, len(o.Attempts))
	for i, a := range o.Attempts {
		sizes[i] = a.SizeBytes
	}
	return sizes
}

// Job is the per-session context shared by the search, the fallback and the
// palette pipeline.
type Job struct {
	Arena    *scratch.Arena
	Input    scratch.Handle
	Target   EncodingTarget
	Reporter Reporter
}

// Searcher bisects CRF values for the size-search mode.
type Searcher struct {
	enc Encoder
	cfg SearchConfig
}

// NewSearcher creates a Searcher. A zero config uses DefaultSearchConfig.
func NewSearcher(enc Encoder, cfg SearchConfig) *Searcher {
	if cfg == (SearchConfig{}) {
		cfg = DefaultSearchConfig()
	}
	return &Searcher{enc: enc, cfg: cfg}
}

// Config returns the bounds in use.
func (s *Searcher) Config() SearchConfig {
	return s.cfg
}

// Search looks for the lowest CRF whose output fits the target size, using
// at most MaxAttempts encoder calls. A failed call is treated as an output
// that was too large. Only the current best artifact is kept in the arena.
//
// Search returns an error when the encoder is unavailable, when the context
// ends, or when no attempt produced any artifact (ErrSearchExhausted).
func (s *Searcher) Search(ctx context.Context, job Job) (SearchOutcome, error) {
	if err := s.cfg.validate(); err != nil {
		return SearchOutcome{}, newError(ErrInvalidTarget, "search", err)
	}

	state := SearchState{
		MinCRF:      s.cfg.MinCRF,
		MaxCRF:      s.cfg.MaxCRF,
		BestCRF:     s.cfg.MaxCRF,
		MaxAttempts: s.cfg.MaxAttempts,
	}
	targetBytes := job.Target.TargetSizeBytes()
	width, height := job.Target.OutputDimensions()

	var (
		best    scratch.Handle
		outcome SearchOutcome
	)
	fail := func(err error) (SearchOutcome, error) {
		if rerr := best.Release(); rerr != nil {
			logging.Warn("failed to release %s: %v", best.Name(), rerr)
		}
		outcome.Artifact = scratch.Handle{}
		return outcome, err
	}

	report(job.Reporter, progressSearchStart,
		fmt.Sprintf("Searching CRF %d-%d for %d bytes", state.MinCRF, state.MaxCRF, targetBytes))

	for state.MinCRF <= state.MaxCRF && state.Attempts < state.MaxAttempts {
		if err := ctx.Err(); err != nil {
			return fail(fmt.Errorf("search cancelled: %w", err))
		}

		crf := (state.MinCRF + state.MaxCRF) / 2
		out, err := job.Arena.Handle(fmt.Sprintf("output_crf%d.mp4", crf))
		if err != nil {
			return fail(err)
		}

		attempt := runCRF(ctx, s.enc, job, out, crf, width, height, AudioBitrateKbps)
		outcome.Attempts = append(outcome.Attempts, attempt)
		outcome.LastCRF = crf

		if errors.Is(attempt.Err, ErrEncoderUnavailable) {
			return fail(&Error{
				Kind: ErrEncoderUnavailable, Op: "search",
				CRFs: outcome.CRFs(), Sizes: outcome.Sizes(), TargetBytes: targetBytes,
				Err: attempt.Err,
			})
		}
		if err := ctx.Err(); err != nil {
			_ = out.Release()
			return fail(fmt.Errorf("search cancelled: %w", err))
		}

		if attempt.Fits(targetBytes) {
			if best.Valid() {
				if rerr := best.Release(); rerr != nil {
					logging.Warn("failed to release %s: %v", best.Name(), rerr)
				}
			}
			best = out
			state.BestCRF = crf
			state.BestSizeBytes = attempt.SizeBytes
			state.Found = true
			state.MaxCRF = crf - 1
			logging.Debug("search: crf %d fits (%d <= %d bytes)", crf, attempt.SizeBytes, targetBytes)
		} else {
			if rerr := out.Release(); rerr != nil {
				logging.Warn("failed to release %s: %v", out.Name(), rerr)
			}
			state.MinCRF = crf + 1
			if attempt.Err != nil {
				logging.Warn("search: crf %d failed, treating as too large: %v", crf, attempt.Err)
			} else {
				logging.Debug("search: crf %d too large (%d > %d bytes)", crf, attempt.SizeBytes, targetBytes)
			}
		}

		state.Attempts++
		report(job.Reporter,
			progressSearchStart+progressSearchSpan*state.Attempts/state.MaxAttempts,
			attemptMessage(state, attempt, targetBytes))
	}

	if state.Found {
		outcome.Kind = OutcomeFit
		outcome.Artifact = best
		outcome.CRF = state.BestCRF
		outcome.SizeBytes = state.BestSizeBytes
		return outcome, nil
	}

	produced := false
	for _, a := range outcome.Attempts {
		if a.Err == nil {
			produced = true
			break
		}
	}
	if !produced {
		var cause error
		if n := len(outcome.Attempts); n > 0 {
			cause = outcome.Attempts[n-1].Err
		}
		return fail(&Error{
			Kind: ErrSearchExhausted, Op: "search",
			CRFs: outcome.CRFs(), Sizes: outcome.Sizes(), TargetBytes: targetBytes,
			Err: cause,
		})
	}

	outcome.Kind = OutcomeNoFit
	return outcome, nil
}

func attemptMessage(state SearchState, a Attempt, targetBytes int64) string {
	prefix := fmt.Sprintf("Attempt %d/%d: CRF %d", state.Attempts, state.MaxAttempts, a.CRF)
	switch {
	case a.Err != nil:
		return prefix + " failed"
	case a.Fits(targetBytes):
		return fmt.Sprintf("%s fits (%.2f MB)", prefix, megabytes(a.SizeBytes))
	default:
		return fmt.Sprintf("%s too large (%.2f MB)", prefix, megabytes(a.SizeBytes))
	}
}

// runCRF performs one CRF encode into out. The artifact size is read back
// from disk; a call that reports success without leaving an artifact counts
// as failed.
func runCRF(ctx context.Context, enc Encoder, job Job, out scratch.Handle, crf, width, height, audioKbps int) Attempt {
	attempt := Attempt{CRF: crf}

	_, err := enc.Encode(ctx, EncodeRequest{
		Input:        job.Input.Path(),
		TrimStart:    job.Target.Trim.Start,
		TrimDuration: job.Target.Trim.Duration(),
		Filter:       scaleFilter(width, height),
		CodecParams:  crfParams(crf, audioKbps),
		Output:       out.Path(),
	})
	if err != nil {
		_ = out.Release()
		attempt.Err = &Error{Kind: ErrEncoderInvocationFailed, Op: "encode", CRFs: []int{crf}, Err: err}
		return attempt
	}

	size, err := out.Size()
	if err != nil || size == 0 {
		_ = out.Release()
		attempt.Err = &Error{Kind: ErrOutputMissing, Op: "encode", CRFs: []int{crf}, Err: err}
		return attempt
	}
	attempt.SizeBytes = size
	return attempt
}

func megabytes(b int64) float64 {
	return float64(b) / (1024 * 1024)
}
