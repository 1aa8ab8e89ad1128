package encoding

import "context"

// EncodeRequest is one encoder invocation. Paths are absolute. Filter and
// FilterComplex are mutually exclusive.
type EncodeRequest struct {
	Input         string
	AuxInputs     []string
	TrimStart     float64
	TrimDuration  float64
	Filter        string
	FilterComplex string
	CodecParams   []string
	Output        string
}

// EncodeResult reports the artifact written by a successful invocation.
type EncodeResult struct {
	Output    string
	SizeBytes int64
}

// Encoder runs one encode. Implementations must be deterministic for equal
// requests and equal input bytes, and should wrap ErrEncoderUnavailable when
// the engine cannot be started at all.
type Encoder interface {
	Encode(ctx context.Context, req EncodeRequest) (EncodeResult, error)
}

// EncoderFunc adapts a function to Encoder.
type EncoderFunc func(ctx context.Context, req EncodeRequest) (EncodeResult, error)

// Encode calls f.
func (f EncoderFunc) Encode(ctx context.Context, req EncodeRequest) (EncodeResult, error) {
	return f(ctx, req)
}

// Checker is implemented by encoders that can tell up front whether they are
// usable.
type Checker interface {
	Check(ctx context.Context) error
}

// MediaInfo describes a source clip.
type MediaInfo struct {
	Duration  float64 `json:"duration"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Codec     string  `json:"codec"`
	FrameRate float64 `json:"frameRate"`
	HasAudio  bool    `json:"hasAudio"`
	SizeBytes int64   `json:"sizeBytes"`
}

// Prober reads clip metadata.
type Prober interface {
	Probe(ctx context.Context, path string) (*MediaInfo, error)
}
