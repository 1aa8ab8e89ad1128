package metrics

import (
	"time"

	"trimsizer/internal/encoding"
)

// sessionStatuses are the status label values used for sessions. Failed
// sessions are labelled with their error kind.
var sessionStatuses = []string{
	"success", "invalid_range", "invalid_target", "encoder_unavailable", "encoder_failed",
	"palette_missing", "search_exhausted", "output_missing", "busy", "internal",
}

// SessionStatus returns the status label for a finished session.
func SessionStatus(err error) string {
	if err == nil {
		return "success"
	}
	return encoding.KindName(err)
}

// ObserveSession records the outcome of one encode session.
func ObserveSession(target encoding.EncodingTarget, res *encoding.Result, err error, elapsed time.Duration) {
	mode := string(target.EffectiveMode())
	format := string(target.Format)

	EncodeSessionsTotal.WithLabelValues(format, mode, SessionStatus(err)).Inc()
	if encoding.KindOf(err) == encoding.ErrBusy {
		return
	}
	EncodeSessionDuration.WithLabelValues(mode).Observe(elapsed.Seconds())

	if res != nil {
		EncodeOutputBytes.WithLabelValues(format).Observe(float64(res.SizeBytes))
	}

	if target.EffectiveMode() != encoding.ModeSizeSearch {
		return
	}
	switch {
	case res != nil && res.Fallback && res.Oversized:
		SearchOutcomesTotal.WithLabelValues("fallback_oversized").Inc()
	case res != nil && res.Fallback:
		SearchOutcomesTotal.WithLabelValues("fallback").Inc()
	case res != nil:
		SearchOutcomesTotal.WithLabelValues("fit").Inc()
	case encoding.KindOf(err) == encoding.ErrSearchExhausted:
		SearchOutcomesTotal.WithLabelValues("exhausted").Inc()
	}
	if res != nil {
		SearchAttempts.Observe(float64(res.Attempts))
	}
}

// ObserveEncoderInvocation records one ffmpeg or ffprobe run.
func ObserveEncoderInvocation(stage string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	EncoderInvocationsTotal.WithLabelValues(stage, status).Inc()
	EncoderInvocationDuration.WithLabelValues(stage).Observe(duration.Seconds())
}
