package encoding

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func gifSizes(paletteSize, gifSize int64, paletteErr error) func(EncodeRequest) (int64, error) {
	return func(req EncodeRequest) (int64, error) {
		if strings.HasSuffix(req.Output, "palette.png") {
			return paletteSize, paletteErr
		}
		return gifSize, nil
	}
}

func TestPalettePipelineSuccess(t *testing.T) {
	t.Parallel()

	enc := &fakeEncoder{sizeFor: gifSizes(768, 4096, nil)}
	job, _ := newJob(t, gifTarget())
	rec := &progressRecorder{}
	job.Reporter = rec

	var verified string
	verify := func(path string, maxColors int) error {
		verified = path
		if maxColors != 128 {
			t.Errorf("maxColors = %d", maxColors)
		}
		return nil
	}

	res, err := NewPalettePipeline(enc, verify).Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	reqs := enc.requests()
	if len(reqs) != 2 {
		t.Fatalf("calls = %d, want 2", len(reqs))
	}

	pass1, pass2 := reqs[0], reqs[1]
	if pass1.Filter != "scale=640:360:flags=lanczos,palettegen=max_colors=128" {
		t.Errorf("pass 1 filter = %q", pass1.Filter)
	}
	if !strings.HasSuffix(pass1.Output, "palette.png") || verified != pass1.Output {
		t.Errorf("palette output %q, verified %q", pass1.Output, verified)
	}
	if pass2.FilterComplex != "[0:v]scale=640:360:flags=lanczos,fps=10[v];[v][1:v]paletteuse=dither=bayer:bayer_scale=3" {
		t.Errorf("pass 2 filter_complex = %q", pass2.FilterComplex)
	}
	if !reflect.DeepEqual(pass2.AuxInputs, []string{pass1.Output}) {
		t.Errorf("pass 2 aux inputs = %v", pass2.AuxInputs)
	}
	if pass2.Filter != "" {
		t.Error("pass 2 must not set a simple filter")
	}
	for _, req := range reqs {
		if req.TrimStart != 0 || req.TrimDuration != 5 {
			t.Errorf("trim = %v +%v", req.TrimStart, req.TrimDuration)
		}
	}

	if res.Artifact.Name() != "output.gif" || res.Width != 640 || res.Height != 360 || res.FrameRate != 10 {
		t.Errorf("result = %+v", res)
	}
	names, _ := job.Arena.List()
	if !reflect.DeepEqual(names, []string{"input.mp4", "output.gif"}) {
		t.Errorf("palette should be released, arena = %v", names)
	}
	if want := []int{55, 75}; !reflect.DeepEqual(rec.percents(), want) {
		t.Errorf("progress = %v, want %v", rec.percents(), want)
	}
}

func TestPalettePass2NeverRunsWithoutPalette(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		sizeFor func(EncodeRequest) (int64, error)
		verify  PaletteVerifier
	}{
		{"pass 1 fails", gifSizes(0, 4096, errors.New("palettegen: exit status 1")), nil},
		{"pass 1 reports success without a file", gifSizes(-1, 4096, nil), nil},
		{"pass 1 writes an empty file", gifSizes(0, 4096, nil), nil},
		{"palette fails verification", gifSizes(768, 4096, nil), func(string, int) error {
			return errors.New("palette has 300 colors")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			enc := &fakeEncoder{sizeFor: tt.sizeFor}
			job, _ := newJob(t, gifTarget())

			_, err := NewPalettePipeline(enc, tt.verify).Run(context.Background(), job)
			if !errors.Is(err, ErrPaletteMissing) {
				t.Fatalf("error = %v, want ErrPaletteMissing", err)
			}
			if n := enc.callCount(); n != 1 {
				t.Errorf("encoder called %d times, pass 2 must not run", n)
			}
			names, _ := job.Arena.List()
			if !reflect.DeepEqual(names, []string{"input.mp4"}) {
				t.Errorf("arena contents = %v", names)
			}
		})
	}
}

func TestPalettePass2Failure(t *testing.T) {
	t.Parallel()

	enc := &fakeEncoder{sizeFor: func(req EncodeRequest) (int64, error) {
		if strings.HasSuffix(req.Output, "palette.png") {
			return 768, nil
		}
		return 0, errors.New("paletteuse: exit status 1")
	}}
	job, _ := newJob(t, gifTarget())

	_, err := NewPalettePipeline(enc, nil).Run(context.Background(), job)
	if !errors.Is(err, ErrEncoderInvocationFailed) {
		t.Fatalf("error = %v, want ErrEncoderInvocationFailed", err)
	}
	names, _ := job.Arena.List()
	if !reflect.DeepEqual(names, []string{"input.mp4"}) {
		t.Errorf("arena contents = %v", names)
	}
}

func TestPaletteLongClipWarning(t *testing.T) {
	t.Parallel()

	target := gifTarget()
	target.Trim = TrimRange{Start: 0, End: 45}
	enc := &fakeEncoder{sizeFor: gifSizes(768, 4096, nil)}
	job, _ := newJob(t, target)
	rec := &progressRecorder{}
	job.Reporter = rec

	res, err := NewPalettePipeline(enc, nil).Run(context.Background(), job)
	if err != nil {
		t.Fatalf("a long clip is a warning, not a failure: %v", err)
	}
	if want := []int{50, 55, 75}; !reflect.DeepEqual(rec.percents(), want) {
		t.Errorf("progress = %v, want %v", rec.percents(), want)
	}
	if !strings.Contains(rec.updates[0].message, "45.0s GIF") {
		t.Errorf("warning message = %q", rec.updates[0].message)
	}
	if len(res.Warnings) != 1 || res.Warnings[0] != rec.updates[0].message {
		t.Errorf("result warnings = %q", res.Warnings)
	}
}

func TestPaletteEncoderUnavailable(t *testing.T) {
	t.Parallel()

	unavailable := fmt.Errorf("%w: ffmpeg not found", ErrEncoderUnavailable)
	tests := []struct {
		name    string
		sizeFor func(EncodeRequest) (int64, error)
		calls   int
	}{
		{"pass 1", gifSizes(0, 4096, unavailable), 1},
		{"pass 2", func(req EncodeRequest) (int64, error) {
			if strings.HasSuffix(req.Output, "palette.png") {
				return 768, nil
			}
			return 0, unavailable
		}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			enc := &fakeEncoder{sizeFor: tt.sizeFor}
			job, _ := newJob(t, gifTarget())

			_, err := NewPalettePipeline(enc, nil).Run(context.Background(), job)
			if kind := KindOf(err); kind != ErrEncoderUnavailable {
				t.Fatalf("kind = %v (error %v), want ErrEncoderUnavailable", kind, err)
			}
			if KindName(err) != KindName(ErrEncoderUnavailable) {
				t.Errorf("KindName = %q", KindName(err))
			}
			if n := enc.callCount(); n != tt.calls {
				t.Errorf("calls = %d, want %d", n, tt.calls)
			}
		})
	}
}
