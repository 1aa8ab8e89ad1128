package metrics

import (
	"time"

	"trimsizer/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current statistics
type Stats struct {
	SessionsByStatus map[string]int
	ScratchBytes     int64
	ScratchArenas    int
	OutputBytes      int64
	DBSizeBytes      int64
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	for status, count := range stats.SessionsByStatus {
		EncodeSessionsRecorded.WithLabelValues(status).Set(float64(count))
	}
	ScratchBytes.Set(float64(stats.ScratchBytes))
	ScratchArenas.Set(float64(stats.ScratchArenas))
	OutputBytes.Set(float64(stats.OutputBytes))
	DBSizeBytes.Set(float64(stats.DBSizeBytes))

	logging.Debug("Metrics collected: scratch=%d bytes in %d arenas, outputs=%d bytes, db=%d bytes",
		stats.ScratchBytes, stats.ScratchArenas, stats.OutputBytes, stats.DBSizeBytes)
}
