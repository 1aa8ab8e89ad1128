package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type mockStatsProvider struct {
	mu    sync.Mutex
	stats Stats
	calls int
}

func (m *mockStatsProvider) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.stats
}

func (m *mockStatsProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestCollectorCollect(t *testing.T) {
	provider := &mockStatsProvider{stats: Stats{
		SessionsByStatus: map[string]int{"success": 7, "search_exhausted": 2},
		ScratchBytes:     4096,
		ScratchArenas:    1,
		OutputBytes:      1 << 20,
		DBSizeBytes:      8192,
	}}

	c := NewCollector(provider, time.Minute)
	c.collect()

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"success sessions", testutil.ToFloat64(EncodeSessionsRecorded.WithLabelValues("success")), 7},
		{"exhausted sessions", testutil.ToFloat64(EncodeSessionsRecorded.WithLabelValues("search_exhausted")), 2},
		{"scratch bytes", testutil.ToFloat64(ScratchBytes), 4096},
		{"scratch arenas", testutil.ToFloat64(ScratchArenas), 1},
		{"output bytes", testutil.ToFloat64(OutputBytes), 1 << 20},
		{"db size", testutil.ToFloat64(DBSizeBytes), 8192},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestCollectorNilProvider(_ *testing.T) {
	c := NewCollector(nil, time.Minute)
	c.collect()
}

func TestCollectorStartStop(t *testing.T) {
	provider := &mockStatsProvider{}
	c := NewCollector(provider, 10*time.Millisecond)
	c.Start()

	deadline := time.Now().Add(2 * time.Second)
	for provider.callCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	c.Stop()

	if provider.callCount() < 2 {
		t.Fatalf("collector ran %d times, want at least 2", provider.callCount())
	}

	after := provider.callCount()
	time.Sleep(50 * time.Millisecond)
	if provider.callCount() > after+1 {
		t.Error("collector kept running after Stop")
	}
}
