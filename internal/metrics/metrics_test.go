package metrics

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"trimsizer/internal/encoding"
)

func TestMetricsAreRegistered(t *testing.T) {
	InitializeMetrics()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}

	want := []string{
		"trimsizer_encode_sessions_total",
		"trimsizer_encode_session_duration_seconds",
		"trimsizer_encoder_invocations_total",
		"trimsizer_encoder_invocation_duration_seconds",
		"trimsizer_search_outcomes_total",
		"trimsizer_db_queries_total",
		"trimsizer_storage_uploads_total",
	}
	for _, name := range want {
		if !names[name] {
			t.Errorf("metric %s not exported after InitializeMetrics", name)
		}
	}
}

func TestMetricPrefix(t *testing.T) {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		name := f.GetName()
		if strings.HasPrefix(name, "go_") || strings.HasPrefix(name, "process_") || strings.HasPrefix(name, "promhttp_") {
			continue
		}
		if !strings.HasPrefix(name, "trimsizer_") {
			t.Errorf("metric %s lacks the trimsizer_ prefix", name)
		}
	}
}

func TestSessionStatus(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "success"},
		{encoding.ErrBusy, "busy"},
		{&encoding.Error{Kind: encoding.ErrSearchExhausted, Op: "search"}, "search_exhausted"},
		{fmt.Errorf("wrapped: %w", encoding.ErrPaletteMissing), "palette_missing"},
		{errors.New("disk on fire"), "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := SessionStatus(tt.err); got != tt.want {
				t.Errorf("SessionStatus(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestObserveSessionSearchOutcomes(t *testing.T) {
	target := encoding.EncodingTarget{Format: encoding.FormatMP4, Mode: encoding.ModeSizeSearch}

	tests := []struct {
		name    string
		res     *encoding.Result
		err     error
		outcome string
	}{
		{"fit", &encoding.Result{SizeBytes: 100, Attempts: 3}, nil, "fit"},
		{"fallback", &encoding.Result{SizeBytes: 100, Attempts: 5, Fallback: true}, nil, "fallback"},
		{"oversized", &encoding.Result{SizeBytes: 100, Attempts: 5, Fallback: true, Oversized: true}, nil, "fallback_oversized"},
		{"exhausted", nil, &encoding.Error{Kind: encoding.ErrSearchExhausted}, "exhausted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := SearchOutcomesTotal.WithLabelValues(tt.outcome)
			status := EncodeSessionsTotal.WithLabelValues("mp4", "search", SessionStatus(tt.err))
			beforeOutcome := testutil.ToFloat64(outcome)
			beforeStatus := testutil.ToFloat64(status)

			ObserveSession(target, tt.res, tt.err, 2*time.Second)

			if got := testutil.ToFloat64(outcome) - beforeOutcome; got != 1 {
				t.Errorf("outcome %s delta = %v, want 1", tt.outcome, got)
			}
			if got := testutil.ToFloat64(status) - beforeStatus; got != 1 {
				t.Errorf("session status delta = %v, want 1", got)
			}
		})
	}
}

func TestObserveSessionBusySkipsDuration(t *testing.T) {
	target := encoding.EncodingTarget{Format: encoding.FormatGIF, Mode: encoding.ModePalette}
	busy := EncodeSessionsTotal.WithLabelValues("gif", "palette", "busy")
	before := testutil.ToFloat64(busy)
	samples := testutil.CollectAndCount(EncodeSessionDuration)

	ObserveSession(target, nil, encoding.ErrBusy, time.Millisecond)

	if got := testutil.ToFloat64(busy) - before; got != 1 {
		t.Errorf("busy delta = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(EncodeSessionDuration); got != samples {
		t.Errorf("duration series changed from %d to %d for a rejected session", samples, got)
	}
}

func TestObserveEncoderInvocation(t *testing.T) {
	ok := EncoderInvocationsTotal.WithLabelValues("crf", "success")
	failed := EncoderInvocationsTotal.WithLabelValues("crf", "error")
	okBefore, failedBefore := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	ObserveEncoderInvocation("crf", time.Second, nil)
	ObserveEncoderInvocation("crf", time.Second, errors.New("exit status 1"))
	ObserveEncoderInvocation("crf", time.Second, errors.New("exit status 1"))

	if got := testutil.ToFloat64(ok) - okBefore; got != 1 {
		t.Errorf("success delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(failed) - failedBefore; got != 2 {
		t.Errorf("error delta = %v, want 2", got)
	}
}

func TestMetricsConcurrentAccess(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			HTTPRequestsTotal.WithLabelValues("GET", "/api/progress", "200").Inc()
			HTTPRequestDuration.WithLabelValues("GET", "/api/progress").Observe(0.01)
			HTTPRequestsInFlight.Inc()
			HTTPRequestsInFlight.Dec()
			ObserveEncoderInvocation("paletteuse", time.Duration(i)*time.Millisecond, nil)
		}(i)
	}
	wg.Wait()
}
