package encoding

import (
	"fmt"
	"math"

	"trimsizer/internal/mediatypes"
)

// Format is the output container.
type Format string

const (
	FormatMP4 Format = "mp4"
	FormatGIF Format = "gif"
)

// Mode selects how the encoder parameters are chosen.
type Mode string

const (
	// ModeConstantBitrate encodes MP4 once at a bitrate derived from the size budget.
	ModeConstantBitrate Mode = "cbr"
	// ModeSizeSearch bisects CRF values until the output fits the size budget.
	ModeSizeSearch Mode = "search"
	// ModePalette is the two-pass GIF pipeline.
	ModePalette Mode = "palette"
)

// ParseFormat accepts "mp4" or "gif".
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatMP4, FormatGIF:
		return Format(s), nil
	}
	return "", newError(ErrInvalidTarget, "parse", fmt.Errorf("unknown format %q", s))
}

// ParseMode accepts "", "cbr" or "search". Empty means search.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeSizeSearch, nil
	case ModeConstantBitrate, ModeSizeSearch, ModePalette:
		return Mode(s), nil
	}
	return "", newError(ErrInvalidTarget, "parse", fmt.Errorf("unknown mode %q", s))
}

// Extension returns the file extension with its leading dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// MIMEType returns the artifact's content type.
func (f Format) MIMEType() string {
	return mediatypes.GetMimeType(f.Extension())
}

// Kind returns the artifact kind tag.
func (f Format) Kind() mediatypes.ArtifactKind {
	if f == FormatGIF {
		return mediatypes.KindImageSequence
	}
	return mediatypes.KindVideo
}

// DefaultOutputName is the download name used when a request gives none.
func DefaultOutputName(f Format) string {
	return "trimmed_video" + f.Extension()
}

// EncodingTarget is everything one encode session needs to know about the
// requested output. It is passed by value and never modified once the
// session starts.
type EncodingTarget struct {
	Format          Format    `json:"format"`
	Mode            Mode      `json:"mode,omitempty"`
	TargetSizeMB    float64   `json:"targetSizeMB,omitempty"`
	TargetFrameRate int       `json:"frameRate,omitempty"`
	Scale           float64   `json:"scale"`
	SourceWidth     int       `json:"sourceWidth"`
	SourceHeight    int       `json:"sourceHeight"`
	Trim            TrimRange `json:"trim"`
}

// EffectiveMode resolves defaults: GIF always uses the palette pipeline and
// an MP4 target without a mode uses the size search.
func (t EncodingTarget) EffectiveMode() Mode {
	if t.Format == FormatGIF {
		return ModePalette
	}
	if t.Mode == "" || t.Mode == ModePalette {
		return ModeSizeSearch
	}
	return t.Mode
}

// TargetSizeBytes converts the MB budget to bytes.
func (t EncodingTarget) TargetSizeBytes() int64 {
	return int64(math.Round(t.TargetSizeMB * 1024 * 1024))
}

// OutputDimensions returns the scaled size, rounded and then floored to
// even values for H.264.
func (t EncodingTarget) OutputDimensions() (width, height int) {
	return t.ScaledDimensions(1)
}

// ScaledDimensions applies an extra factor on top of the target scale.
func (t EncodingTarget) ScaledDimensions(factor float64) (width, height int) {
	w := int(math.Round(float64(t.SourceWidth) * t.Scale))
	h := int(math.Round(float64(t.SourceHeight) * t.Scale))
	if factor != 1 {
		w = int(math.Round(float64(w) * factor))
		h = int(math.Round(float64(h) * factor))
	}
	return evenFloor(w), evenFloor(h)
}

func evenFloor(v int) int {
	v = v / 2 * 2
	if v < 2 {
		return 2
	}
	return v
}

// Validate rejects a target before any encoder runs.
func (t EncodingTarget) Validate() error {
	if err := t.Trim.Validate(); err != nil {
		return err
	}

	invalid := func(format string, args ...any) error {
		return newError(ErrInvalidTarget, "validate", fmt.Errorf(format, args...))
	}

	switch t.Format {
	case FormatMP4:
		if !(t.TargetSizeMB > 0) || math.IsInf(t.TargetSizeMB, 0) {
			return invalid("target size must be greater than 0 MB, got %v", t.TargetSizeMB)
		}
		switch t.Mode {
		case "", ModeConstantBitrate, ModeSizeSearch:
		default:
			return invalid("mode %q does not apply to mp4", t.Mode)
		}
	case FormatGIF:
		if t.TargetFrameRate <= 0 {
			return invalid("frame rate must be greater than 0, got %d", t.TargetFrameRate)
		}
	default:
		return invalid("unknown format %q", t.Format)
	}

	if !(t.Scale > 0 && t.Scale <= 1) {
		return invalid("scale must be in (0, 1], got %v", t.Scale)
	}
	if t.SourceWidth <= 0 || t.SourceHeight <= 0 {
		return invalid("source dimensions must be positive, got %dx%d", t.SourceWidth, t.SourceHeight)
	}
	return nil
}
