package media

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"trimsizer/internal/logging"
)

const (
	// PosterMaxDimension bounds the longer edge of a poster image.
	PosterMaxDimension = 320
	// PosterQuality is the JPEG quality used for posters.
	PosterQuality = 80
)

// Poster writes a JPEG preview of the first frame of src to dst, fitted
// within maxDimension on both edges. src may be a GIF artifact or a still
// frame extracted from a video.
func Poster(src, dst string, maxDimension int) error {
	if maxDimension <= 0 {
		maxDimension = PosterMaxDimension
	}

	img, err := imaging.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxDimension || bounds.Dy() > maxDimension {
		img = imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create poster directory: %w", err)
	}

	// Write to a temp name so a reader never sees a partial file.
	tmp := dst + ".tmp.jpg"
	if err := imaging.Save(img, tmp, imaging.JPEGQuality(PosterQuality)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to save poster: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move poster into place: %w", err)
	}

	logging.Debug("poster written: %s (%dx%d source)", dst, bounds.Dx(), bounds.Dy())
	return nil
}
