package memory

import (
	"errors"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"trimsizer/internal/logging"
	"trimsizer/internal/metrics"
)

// ErrMemoryPressure is returned by Admit while heap usage is critical.
var ErrMemoryPressure = errors.New("memory pressure: encode sessions are paused")

// Config holds memory management configuration
type Config struct {
	// MemoryLimitBytes is the soft memory limit (0 = use GOMEMLIMIT or no limit)
	MemoryLimitBytes int64

	// HighWaterMark is the usage ratio at which a pause is lifted again (0.0-1.0)
	HighWaterMark float64

	// CriticalWaterMark is the usage ratio at which new sessions are refused (0.0-1.0)
	CriticalWaterMark float64

	// CheckInterval is how often to check memory usage
	CheckInterval time.Duration
}

// DefaultConfig returns the default watermarks.
func DefaultConfig() Config {
	return Config{
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     5 * time.Second,
	}
}

// Monitor samples heap usage and refuses new encode sessions while it is
// above the critical watermark. Uploads are buffered through the heap, so a
// burst of large requests is what usually trips it.
type Monitor struct {
	config    Config
	limit     int64
	readAlloc func() uint64
	stopChan  chan struct{}
	stopOnce  sync.Once

	mu       sync.RWMutex
	current  uint64
	isPaused bool
}

// NewMonitor creates a new memory monitor
func NewMonitor(config Config) *Monitor {
	limit := config.MemoryLimitBytes

	if limit == 0 {
		if goMemLimit := debug.SetMemoryLimit(-1); goMemLimit > 0 && goMemLimit < 1<<62 {
			limit = goMemLimit
			logging.Info("Memory monitor using GOMEMLIMIT: %s", FormatBytes(limit))
		}
	}

	if limit == 0 {
		logging.Info("Memory monitor: no memory limit configured, admission control disabled")
	}

	return &Monitor{
		config:    config,
		limit:     limit,
		readAlloc: heapAlloc,
		stopChan:  make(chan struct{}),
	}
}

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Alloc
}

// Enabled reports whether a limit is known.
func (m *Monitor) Enabled() bool {
	return m != nil && m.limit > 0
}

// Start begins monitoring memory usage
func (m *Monitor) Start() {
	if !m.Enabled() {
		return
	}
	go m.monitorLoop()
}

// Stop stops the memory monitor
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

func (m *Monitor) monitorLoop() {
	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.checkMemory()
		case <-m.stopChan:
			return
		}
	}
}

func (m *Monitor) checkMemory() {
	alloc := m.readAlloc()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = alloc
	if m.limit <= 0 {
		return
	}

	usage := float64(alloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	switch {
	case usage >= m.config.CriticalWaterMark && !m.isPaused:
		logging.Warn("Memory critical (%.1f%% of limit), refusing new encode sessions", usage*100)
		m.isPaused = true
		metrics.MemoryPaused.Set(1)
		metrics.MemoryPausesTotal.Inc()
		go runtime.GC()
	case usage < m.config.HighWaterMark && m.isPaused:
		logging.Info("Memory recovered (%.1f%% of limit), accepting encode sessions", usage*100)
		m.isPaused = false
		metrics.MemoryPaused.Set(0)
	}
}

// Admit returns ErrMemoryPressure while new sessions are refused.
func (m *Monitor) Admit() error {
	if m.IsPaused() {
		metrics.MemoryRejectionsTotal.Inc()
		return ErrMemoryPressure
	}
	return nil
}

// IsPaused reports whether new sessions are refused.
func (m *Monitor) IsPaused() bool {
	if m == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isPaused
}

// GetStats returns the last sampled heap size, the limit and their ratio.
func (m *Monitor) GetStats() (current, limit int64, usage float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current > 1<<62 {
		current = 1 << 62
	} else {
		current = int64(m.current)
	}
	if m.limit > 0 {
		usage = float64(m.current) / float64(m.limit)
	}
	return current, m.limit, usage
}
