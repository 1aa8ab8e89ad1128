package media

import (
	"image"
	"image/color"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
)

// writePalette saves a 16x16 palette with n distinct opaque colors, the
// rest padded black like palettegen does.
func writePalette(t *testing.T, dir string, n int, transparent bool, side int) string {
	t.Helper()
	img := imaging.New(side, side, color.NRGBA{0, 0, 0, 255})
	i := 0
	for y := 0; y < side && i < n; y++ {
		for x := 0; x < side && i < n; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(i), uint8(255 - i), 100, 255})
			i++
		}
	}
	if transparent {
		img.SetNRGBA(side-1, side-1, color.NRGBA{0, 255, 0, 0})
	}
	path := filepath.Join(dir, "palette.png")
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("failed to save palette: %v", err)
	}
	return path
}

func TestInspectPalette(t *testing.T) {
	t.Parallel()

	path := writePalette(t, t.TempDir(), 40, true, 16)

	info, err := InspectPalette(path)
	if err != nil {
		t.Fatalf("InspectPalette() error = %v", err)
	}
	if info.Width != 16 || info.Height != 16 {
		t.Errorf("size = %dx%d", info.Width, info.Height)
	}
	// 40 colors plus black padding.
	if info.Colors != 41 {
		t.Errorf("Colors = %d, want 41", info.Colors)
	}
	if !info.Transparent {
		t.Error("Transparent should be set")
	}
}

func TestVerifyPalette(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		colors  int
		side    int
		wantErr string
	}{
		{"small palette", 16, 16, ""},
		{"at the limit", 128, 16, ""},
		{"too many colors", 200, 16, "limit is 128"},
		{"wrong size", 16, 8, "expected 16x16"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := writePalette(t, t.TempDir(), tt.colors, false, tt.side)
			err := VerifyPalette(path, 128)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("VerifyPalette() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("VerifyPalette() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestVerifyPaletteMissingFile(t *testing.T) {
	t.Parallel()

	if err := VerifyPalette(filepath.Join(t.TempDir(), "palette.png"), 128); err == nil {
		t.Error("expected error for missing palette")
	}
}

func TestPoster(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "output.gif")
	frame := imaging.New(640, 480, color.NRGBA{200, 30, 30, 255})
	if err := imaging.Save(frame, src); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(dir, "posters", "poster.jpg")
	if err := Poster(src, dst, 0); err != nil {
		t.Fatalf("Poster() error = %v", err)
	}

	img, err := imaging.Open(dst)
	if err != nil {
		t.Fatalf("poster not readable: %v", err)
	}
	if got := img.Bounds().Size(); got != image.Pt(320, 240) {
		t.Errorf("poster size = %v, want 320x240", got)
	}
}

func TestPosterKeepsSmallImages(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "frame.png")
	if err := imaging.Save(imaging.New(100, 60, color.White), src); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(dir, "poster.jpg")
	if err := Poster(src, dst, 320); err != nil {
		t.Fatal(err)
	}
	img, err := imaging.Open(dst)
	if err != nil {
		t.Fatal(err)
	}
	if got := img.Bounds().Size(); got != image.Pt(100, 60) {
		t.Errorf("poster size = %v, want 100x60", got)
	}
}

func TestPosterInvalidSource(t *testing.T) {
	t.Parallel()

	if err := Poster(filepath.Join(t.TempDir(), "missing.gif"), filepath.Join(t.TempDir(), "p.jpg"), 0); err == nil {
		t.Error("expected error for missing source")
	}
}
