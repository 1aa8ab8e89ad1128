package media

import (
	"fmt"
	"image/color"

	"github.com/disintegration/imaging"

	"trimsizer/internal/logging"
)

// paletteSide is the edge length of a palettegen image: 16x16 entries.
const paletteSide = 16

// PaletteInfo describes a palette image written by ffmpeg's palettegen.
type PaletteInfo struct {
	Width  int
	Height int
	// Colors counts distinct opaque entries. Unused entries are padded with
	// black, so a palette capped at N colors can report N+1.
	Colors int
	// Transparent is set when a fully transparent entry is reserved.
	Transparent bool
}

// InspectPalette decodes a palette image and counts its entries.
func InspectPalette(path string) (*PaletteInfo, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to decode palette: %w", err)
	}

	nrgba := imaging.Clone(img)
	bounds := nrgba.Bounds()
	info := &PaletteInfo{Width: bounds.Dx(), Height: bounds.Dy()}

	seen := make(map[color.NRGBA]struct{}, bounds.Dx()*bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := nrgba.NRGBAAt(x, y)
			if c.A == 0 {
				info.Transparent = true
				continue
			}
			seen[c] = struct{}{}
		}
	}
	info.Colors = len(seen)
	return info, nil
}

// VerifyPalette checks that path holds a 16x16 palette with at most
// maxColors entries. Its signature matches encoding.PaletteVerifier.
func VerifyPalette(path string, maxColors int) error {
	info, err := InspectPalette(path)
	if err != nil {
		return err
	}
	if info.Width != paletteSide || info.Height != paletteSide {
		return fmt.Errorf("palette is %dx%d, expected %dx%d", info.Width, info.Height, paletteSide, paletteSide)
	}
	if info.Colors == 0 {
		return fmt.Errorf("palette has no opaque colors")
	}
	if maxColors > 0 && info.Colors > maxColors+1 {
		return fmt.Errorf("palette has %d colors, limit is %d", info.Colors, maxColors)
	}
	logging.Debug("palette %s: %d colors, transparent=%v", path, info.Colors, info.Transparent)
	return nil
}
