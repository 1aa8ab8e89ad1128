package memory

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func testMonitor(limit int64, alloc *atomic.Uint64) *Monitor {
	m := NewMonitor(Config{
		MemoryLimitBytes:  limit,
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     10 * time.Millisecond,
	})
	m.readAlloc = alloc.Load
	return m
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.HighWaterMark >= cfg.CriticalWaterMark {
		t.Errorf("high watermark %.2f must be below critical %.2f", cfg.HighWaterMark, cfg.CriticalWaterMark)
	}
	if cfg.CheckInterval <= 0 {
		t.Errorf("CheckInterval = %v", cfg.CheckInterval)
	}
}

func TestMonitorAdmission(t *testing.T) {
	var alloc atomic.Uint64
	m := testMonitor(1000, &alloc)

	steps := []struct {
		alloc  uint64
		paused bool
	}{
		{100, false},
		{860, true},  // crosses critical
		{800, true},  // between watermarks keeps the pause
		{690, false}, // below high lifts it
		{849, false}, // below critical stays admitted
	}

	for i, s := range steps {
		alloc.Store(s.alloc)
		m.checkMemory()
		if m.IsPaused() != s.paused {
			t.Fatalf("step %d (alloc %d): paused = %v, want %v", i, s.alloc, m.IsPaused(), s.paused)
		}
		err := m.Admit()
		if s.paused && !errors.Is(err, ErrMemoryPressure) {
			t.Errorf("step %d: Admit() = %v, want ErrMemoryPressure", i, err)
		}
		if !s.paused && err != nil {
			t.Errorf("step %d: Admit() = %v, want nil", i, err)
		}
	}
}

func TestMonitorGetStats(t *testing.T) {
	var alloc atomic.Uint64
	alloc.Store(250)
	m := testMonitor(1000, &alloc)
	m.checkMemory()

	current, limit, usage := m.GetStats()
	if current != 250 || limit != 1000 || usage != 0.25 {
		t.Errorf("GetStats() = %d, %d, %v", current, limit, usage)
	}
}

func TestNilMonitorAdmits(t *testing.T) {
	var m *Monitor
	if m.Enabled() || m.IsPaused() {
		t.Error("nil monitor should be disabled and never paused")
	}
	if err := m.Admit(); err != nil {
		t.Errorf("Admit() = %v", err)
	}
}

func TestMonitorStartStop(t *testing.T) {
	var alloc atomic.Uint64
	alloc.Store(900)
	m := testMonitor(1000, &alloc)
	m.Start()

	deadline := time.Now().Add(2 * time.Second)
	for !m.IsPaused() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	m.Stop()
	m.Stop()

	if !m.IsPaused() {
		t.Error("monitor loop never sampled memory")
	}
}

func TestParseRatio(t *testing.T) {
	tests := map[string]float64{
		"":     DefaultMemoryRatio,
		"0.75": 0.75,
		"1":    1,
		"0":    DefaultMemoryRatio,
		"1.5":  DefaultMemoryRatio,
		"abc":  DefaultMemoryRatio,
	}
	for in, want := range tests {
		if got := parseRatio(in); got != want {
			t.Errorf("parseRatio(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{512 * 1024 * 1024, "512.0 MiB"},
		{2 * 1024 * 1024 * 1024, "2.0 GiB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConfigureFromEnvMemoryLimit(t *testing.T) {
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "1073741824")
	t.Setenv("MEMORY_RATIO", "0.5")

	res := ConfigureFromEnv()
	if !res.Configured || res.Source != "MEMORY_LIMIT" {
		t.Fatalf("result = %+v", res)
	}
	if res.GoMemLimit != 536870912 || res.Ratio != 0.5 {
		t.Errorf("GoMemLimit = %d, Ratio = %v", res.GoMemLimit, res.Ratio)
	}
}

func TestConfigureFromEnvUnset(t *testing.T) {
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "")

	res := ConfigureFromEnv()
	if res.Configured || res.Source != "none" {
		t.Errorf("result = %+v", res)
	}
}
