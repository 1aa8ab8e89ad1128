package encoding

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Surfaced errors are *Error values whose Kind is one of these,
// so callers can test with errors.Is.
var (
	ErrInvalidRange            = errors.New("invalid trim range")
	ErrInvalidTarget           = errors.New("invalid encoding target")
	ErrEncoderUnavailable      = errors.New("encoder unavailable")
	ErrEncoderInvocationFailed = errors.New("encoder invocation failed")
	ErrPaletteMissing          = errors.New("palette missing")
	ErrSearchExhausted         = errors.New("search exhausted")
	ErrOutputMissing           = errors.New("output missing")
	ErrBusy                    = errors.New("an encode session is already running")
)

// Error describes a failed operation together with the parameters that were
// tried and the sizes that were observed.
type Error struct {
	Kind error
	Op   string

	CRFs        []int
	Sizes       []int64
	BitrateKbps int
	TargetBytes int64

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	} else {
		b.WriteString("encoding failed")
	}
	if len(e.CRFs) > 0 {
		fmt.Fprintf(&b, " (crf tried %v", e.CRFs)
		if len(e.Sizes) > 0 {
			fmt.Fprintf(&b, ", sizes %v", e.Sizes)
		}
		if e.TargetBytes > 0 {
			fmt.Fprintf(&b, ", target %d bytes", e.TargetBytes)
		}
		b.WriteString(")")
	} else if e.BitrateKbps > 0 {
		fmt.Fprintf(&b, " (bitrate %d kbps)", e.BitrateKbps)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the error kind.
func (e *Error) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// invocationKind keeps ErrEncoderUnavailable visible when err carries it
// and returns kind otherwise.
func invocationKind(err, kind error) error {
	if errors.Is(err, ErrEncoderUnavailable) {
		return ErrEncoderUnavailable
	}
	return kind
}

func newError(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the error kind of err, or nil when err is not an
// encoding error.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for _, kind := range []error{
		ErrInvalidRange, ErrInvalidTarget, ErrEncoderUnavailable, ErrEncoderInvocationFailed,
		ErrPaletteMissing, ErrSearchExhausted, ErrOutputMissing, ErrBusy,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// KindName returns a short label for metrics and history rows.
func KindName(err error) string {
	switch KindOf(err) {
	case nil:
		if err == nil {
			return "none"
		}
		return "internal"
	case ErrInvalidRange:
		return "invalid_range"
	case ErrInvalidTarget:
		return "invalid_target"
	case ErrEncoderUnavailable:
		return "encoder_unavailable"
	case ErrEncoderInvocationFailed:
		return "encoder_failed"
	case ErrPaletteMissing:
		return "palette_missing"
	case ErrSearchExhausted:
		return "search_exhausted"
	case ErrOutputMissing:
		return "output_missing"
	case ErrBusy:
		return "busy"
	default:
		return "internal"
	}
}
