package encoding

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"trimsizer/internal/scratch"
)

// fakeEncoder writes a zero-filled artifact whose length comes from sizeFor.
// A negative size reports success without writing anything.
type fakeEncoder struct {
	mu      sync.Mutex
	calls   []EncodeRequest
	sizeFor func(req EncodeRequest) (int64, error)
}

func (f *fakeEncoder) Encode(ctx context.Context, req EncodeRequest) (EncodeResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	size, err := f.sizeFor(req)
	if err != nil {
		return EncodeResult{}, err
	}
	if size < 0 {
		return EncodeResult{Output: req.Output}, nil
	}
	if err := os.WriteFile(req.Output, make([]byte, size), 0o644); err != nil {
		return EncodeResult{}, err
	}
	return EncodeResult{Output: req.Output, SizeBytes: size}, nil
}

func (f *fakeEncoder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeEncoder) requests() []EncodeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]EncodeRequest(nil), f.calls...)
}

// paramValue returns the value following flag in params.
func paramValue(params []string, flag string) string {
	for i := 0; i < len(params)-1; i++ {
		if params[i] == flag {
			return params[i+1]
		}
	}
	return ""
}

func crfOf(t *testing.T, req EncodeRequest) int {
	t.Helper()
	crf, err := strconv.Atoi(paramValue(req.CodecParams, "-crf"))
	if err != nil {
		t.Fatalf("request has no -crf: %v", req.CodecParams)
	}
	return crf
}

// decreasingSize is strictly decreasing in CRF: 100 * (60 - crf) bytes.
func decreasingSize(req EncodeRequest) (int64, error) {
	crf, err := strconv.Atoi(paramValue(req.CodecParams, "-crf"))
	if err != nil {
		return 0, errors.New("missing crf")
	}
	return int64(100 * (60 - crf)), nil
}

// targetMB builds a TargetSizeMB that converts back to exactly n bytes.
func targetMB(n int64) float64 {
	return float64(n) / (1024 * 1024)
}

func mp4Target(sizeBytes int64) EncodingTarget {
	return EncodingTarget{
		Format:       FormatMP4,
		Mode:         ModeSizeSearch,
		TargetSizeMB: targetMB(sizeBytes),
		Scale:        1,
		SourceWidth:  1280,
		SourceHeight: 720,
		Trim:         TrimRange{Start: 1, End: 11},
	}
}

func gifTarget() EncodingTarget {
	return EncodingTarget{
		Format:          FormatGIF,
		TargetFrameRate: 10,
		Scale:           0.5,
		SourceWidth:     1280,
		SourceHeight:    720,
		Trim:            TrimRange{Start: 0, End: 5},
	}
}

// newJob opens an arena with a small imported source clip.
func newJob(t *testing.T, target EncodingTarget) (Job, *scratch.Manager) {
	t.Helper()
	m, err := scratch.NewManager(filepath.Join(t.TempDir(), "scratch"))
	if err != nil {
		t.Fatal(err)
	}
	arena, err := m.Open("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { arena.Close() })

	src := writeSource(t)
	input, err := arena.Import(src, "input.mp4")
	if err != nil {
		t.Fatal(err)
	}
	return Job{Arena: arena, Input: input, Target: target, Reporter: Discard}, m
}

func writeSource(t *testing.T) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(src, []byte("not really a video"), 0o644); err != nil {
		t.Fatal(err)
	}
	return src
}

type recordedProgress struct {
	percent int
	message string
}

type progressRecorder struct {
	mu      sync.Mutex
	updates []recordedProgress
}

func (r *progressRecorder) Report(percent int, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, recordedProgress{percent, message})
}

func (r *progressRecorder) percents() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.updates))
	for i, u := range r.updates {
		out[i] = u.percent
	}
	return out
}
