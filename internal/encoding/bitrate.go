package encoding

import (
	"fmt"
	"math"
)

const (
	// AudioBitrateKbps is reserved out of the size budget for the AAC track.
	AudioBitrateKbps = 128
	// FallbackAudioBitrateKbps is used by the reduced-resolution re-encode.
	FallbackAudioBitrateKbps = 96

	MinVideoBitrateKbps = 100
	MaxVideoBitrateKbps = 10000
	// LowBitrateKbps is the threshold below which a quality warning is logged.
	LowBitrateKbps = 300

	containerOverhead = 0.97

	sizeOverRatio  = 1.10
	sizeUnderRatio = 0.50
)

// ComputeVideoBitrateKbps converts a size budget and a clip duration into a
// constant video bitrate, leaving room for audio and container overhead.
// The result is clamped to [MinVideoBitrateKbps, MaxVideoBitrateKbps].
func ComputeVideoBitrateKbps(targetSizeMB, durationSeconds float64) (int, error) {
	if !(durationSeconds > 0) || math.IsInf(durationSeconds, 0) {
		return 0, newError(ErrInvalidRange, "bitrate", fmt.Errorf("duration must be positive, got %v", durationSeconds))
	}
	if !(targetSizeMB > 0) || math.IsInf(targetSizeMB, 0) {
		return 0, newError(ErrInvalidTarget, "bitrate", fmt.Errorf("target size must be positive, got %v", targetSizeMB))
	}

	total := targetSizeMB * 1024 * 1024 * 8 / (durationSeconds * 1000)
	video := math.Round((total - AudioBitrateKbps) * containerOverhead)

	switch {
	case video < MinVideoBitrateKbps:
		return MinVideoBitrateKbps, nil
	case video > MaxVideoBitrateKbps:
		return MaxVideoBitrateKbps, nil
	}
	return int(video), nil
}

// IsLowBitrate reports whether quality will visibly suffer.
func IsLowBitrate(kbps int) bool {
	return kbps < LowBitrateKbps
}

// SizeCheck classifies a CBR output against its budget.
type SizeCheck string

const (
	SizeWithin SizeCheck = "within"
	SizeOver   SizeCheck = "over"
	SizeUnder  SizeCheck = "under"
)

// CheckSize compares an output size with the target. More than 10% over or
// less than half the target is flagged; neither triggers a retry.
func CheckSize(actualBytes, targetBytes int64) SizeCheck {
	if targetBytes <= 0 {
		return SizeWithin
	}
	ratio := float64(actualBytes) / float64(targetBytes)
	switch {
	case ratio > sizeOverRatio:
		return SizeOver
	case ratio < sizeUnderRatio:
		return SizeUnder
	}
	return SizeWithin
}
