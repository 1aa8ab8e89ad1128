package encoding

import (
	"errors"
	"fmt"
	"math"
)

// MinTrimSpan is the shortest selectable range in seconds.
const MinTrimSpan = 0.1

const spanEpsilon = 1e-9

// TrimRange is a validated [Start, End) window of a clip, in seconds.
type TrimRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// NewTrimRange validates a range against the clip duration. A clipDuration
// of zero or less means the duration is unknown and End is not bounded.
func NewTrimRange(start, end, clipDuration float64) (TrimRange, error) {
	r := TrimRange{Start: start, End: end}
	if err := r.check(); err != nil {
		return TrimRange{}, err
	}
	if clipDuration > 0 && end > clipDuration {
		return TrimRange{}, newError(ErrInvalidRange, "trim",
			fmt.Errorf("end %.3fs is past the clip duration %.3fs", end, clipDuration))
	}
	return r, nil
}

// FullRange covers a whole clip.
func FullRange(clipDuration float64) TrimRange {
	return TrimRange{Start: 0, End: clipDuration}
}

// Duration returns End - Start.
func (r TrimRange) Duration() float64 {
	return r.End - r.Start
}

// Validate reports whether the range can be encoded: finite, non-negative
// and at least MinTrimSpan long.
func (r TrimRange) Validate() error {
	return r.check()
}

func (r TrimRange) check() error {
	switch {
	case math.IsNaN(r.Start) || math.IsNaN(r.End) || math.IsInf(r.Start, 0) || math.IsInf(r.End, 0):
		return newError(ErrInvalidRange, "trim", errors.New("non-finite bounds"))
	case r.Start < 0:
		return newError(ErrInvalidRange, "trim", fmt.Errorf("start %.3fs is negative", r.Start))
	case r.End <= r.Start:
		return newError(ErrInvalidRange, "trim",
			fmt.Errorf("end %.3fs is not after start %.3fs", r.End, r.Start))
	case r.Duration() < MinTrimSpan-spanEpsilon:
		return newError(ErrInvalidRange, "trim",
			fmt.Errorf("span %.3fs is shorter than %.1fs", r.Duration(), MinTrimSpan))
	}
	return nil
}
