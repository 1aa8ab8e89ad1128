package encoding

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
)

// shrinkOnFallback follows decreasingSize but returns fallbackSize for the
// 96k audio re-encode.
func shrinkOnFallback(fallbackSize int64) func(EncodeRequest) (int64, error) {
	return func(req EncodeRequest) (int64, error) {
		if paramValue(req.CodecParams, "-b:a") == "96k" {
			return fallbackSize, nil
		}
		return decreasingSize(req)
	}
}

func TestFallbackRequiresNoFit(t *testing.T) {
	t.Parallel()

	enc := &fakeEncoder{sizeFor: decreasingSize}
	job, _ := newJob(t, mp4Target(1<<20))
	s := NewSearcher(enc, SearchConfig{})

	outcome, err := s.Search(context.Background(), job)
	if err != nil || outcome.Kind != OutcomeFit {
		t.Fatalf("setup: outcome %s, err %v", outcome.Kind, err)
	}
	calls := enc.callCount()

	if _, err := s.Fallback(context.Background(), job, outcome); err == nil {
		t.Fatal("Fallback() on a fit outcome should fail")
	}
	if enc.callCount() != calls {
		t.Error("Fallback() on a fit outcome must not call the encoder")
	}
}

func TestFallbackParameters(t *testing.T) {
	t.Parallel()

	enc := &fakeEncoder{sizeFor: shrinkOnFallback(800)}
	job, _ := newJob(t, mp4Target(1000))
	rec := &progressRecorder{}
	job.Reporter = rec
	s := NewSearcher(enc, SearchConfig{})

	outcome, err := s.Search(context.Background(), job)
	if err != nil || outcome.Kind != OutcomeNoFit {
		t.Fatalf("setup: outcome %s, err %v", outcome.Kind, err)
	}

	res, err := s.Fallback(context.Background(), job, outcome)
	if err != nil {
		t.Fatalf("Fallback() error = %v", err)
	}

	reqs := enc.requests()
	if len(reqs) != 5 {
		t.Fatalf("calls = %d, want 4 search + 1 fallback", len(reqs))
	}
	last := reqs[4]
	if crfOf(t, last) != outcome.LastCRF {
		t.Errorf("fallback CRF = %d, want last evaluated %d", crfOf(t, last), outcome.LastCRF)
	}
	if last.Filter != "scale=1024:576" {
		t.Errorf("fallback filter = %q, want 80%% of 1280x720", last.Filter)
	}
	if res.Width != 1024 || res.Height != 576 {
		t.Errorf("fallback dims = %dx%d", res.Width, res.Height)
	}
	if res.Oversized {
		t.Error("800 bytes fits a 1000 byte target")
	}
	if !res.Artifact.Exists() {
		t.Error("fallback artifact missing")
	}

	percents := rec.percents()
	if percents[len(percents)-1] != 85 {
		t.Errorf("last progress = %d, want 85", percents[len(percents)-1])
	}
}

func TestFallbackReturnsOversizedArtifact(t *testing.T) {
	t.Parallel()

	enc := &fakeEncoder{sizeFor: shrinkOnFallback(1500)}
	job, _ := newJob(t, mp4Target(1000))
	s := NewSearcher(enc, SearchConfig{})

	outcome, _ := s.Search(context.Background(), job)
	res, err := s.Fallback(context.Background(), job, outcome)
	if err != nil {
		t.Fatalf("oversized fallback should still succeed: %v", err)
	}
	if !res.Oversized || res.SizeBytes != 1500 {
		t.Errorf("result = %+v", res)
	}
}

func TestFallbackFailureIsSearchExhausted(t *testing.T) {
	t.Parallel()

	enc := &fakeEncoder{sizeFor: func(req EncodeRequest) (int64, error) {
		if paramValue(req.CodecParams, "-b:a") == "96k" {
			return 0, errors.New("conversion failed")
		}
		return decreasingSize(req)
	}}
	job, _ := newJob(t, mp4Target(1000))
	s := NewSearcher(enc, SearchConfig{})

	outcome, _ := s.Search(context.Background(), job)
	_, err := s.Fallback(context.Background(), job, outcome)
	if !errors.Is(err, ErrSearchExhausted) {
		t.Fatalf("error = %v, want ErrSearchExhausted", err)
	}

	var encErr *Error
	if !errors.As(err, &encErr) {
		t.Fatalf("error is not *Error: %T", err)
	}
	if want := []int{26, 31, 33, 34, 34}; !reflect.DeepEqual(encErr.CRFs, want) {
		t.Errorf("CRFs = %v, want %v", encErr.CRFs, want)
	}
	if want := []int64{3400, 2900, 2700, 2600, 0}; !reflect.DeepEqual(encErr.Sizes, want) {
		t.Errorf("Sizes = %v, want %v", encErr.Sizes, want)
	}
	if encErr.TargetBytes != 1000 {
		t.Errorf("TargetBytes = %d", encErr.TargetBytes)
	}

	names, _ := job.Arena.List()
	if !reflect.DeepEqual(names, []string{"input.mp4"}) {
		t.Errorf("arena contents = %v", names)
	}
}

func TestFallbackEncoderUnavailable(t *testing.T) {
	t.Parallel()

	enc := &fakeEncoder{sizeFor: func(req EncodeRequest) (int64, error) {
		if paramValue(req.CodecParams, "-b:a") == "96k" {
			return 0, fmt.Errorf("%w: ffmpeg not found", ErrEncoderUnavailable)
		}
		return decreasingSize(req)
	}}
	job, _ := newJob(t, mp4Target(1000))
	s := NewSearcher(enc, SearchConfig{})

	outcome, _ := s.Search(context.Background(), job)
	_, err := s.Fallback(context.Background(), job, outcome)
	if kind := KindOf(err); kind != ErrEncoderUnavailable {
		t.Fatalf("kind = %v (error %v), want ErrEncoderUnavailable", kind, err)
	}
	if errors.Is(err, ErrSearchExhausted) {
		t.Error("an unavailable encoder is not an exhausted search")
	}
}
