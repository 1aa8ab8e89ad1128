// Package metrics provides Prometheus instrumentation for trimsizer.
//
// All metrics are registered with the default registry through promauto and
// are prefixed with "trimsizer_".
//
// # Metric Categories
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal: Counter of requests by method, path, and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of currently processing requests
//
// ## Encode Session Metrics
//
//   - EncodeSessionsTotal: Counter by format, mode, and status (error kind)
//   - EncodeSessionDuration: Histogram of session wall time by mode
//   - EncodeSessionsInProgress: Gauge, 0 or 1 since sessions are serialised
//   - EncodeOutputBytes: Histogram of artifact sizes by format
//   - SearchAttempts: Histogram of encoder calls per size search
//   - SearchOutcomesTotal: Counter of fit, fallback, fallback_oversized and exhausted
//
// ## Encoder Metrics
//
//   - EncoderInvocationsTotal: Counter of ffmpeg runs by stage and status
//   - EncoderInvocationDuration: Histogram of ffmpeg run time by stage
//   - EncoderProcessesActive: Gauge of running ffmpeg and ffprobe processes
//
// ## Storage Metrics
//
//   - ScratchBytes, ScratchArenas, ScratchPurgedBytesTotal
//   - OutputBytes, OutputsExpiredTotal
//   - StorageUploadsTotal, StorageUploadDuration
//   - DBQueryTotal, DBQueryDuration, DBSizeBytes, EncodeSessionsRecorded
//
// ## Filesystem Metrics
//
//   - FilesystemRetryAttempts, FilesystemRetryFailures, FilesystemStaleErrors
//     by operation and volume (outputs, uploads, scratch)
//
// ## Memory Metrics
//
//   - MemoryUsageRatio, MemoryPaused, MemoryPausesTotal, MemoryRejectionsTotal
//
// # Collector
//
// [Collector] periodically reads a [StatsProvider] and refreshes the gauges
// that are derived from disk and database state:
//
//	collector := metrics.NewCollector(provider, time.Minute)
//	collector.Start()
//	defer collector.Stop()
//
// # Prometheus Queries
//
// Share of size searches that needed the fallback:
//
//	sum(rate(trimsizer_search_outcomes_total{outcome=~"fallback.*"}[1h])) /
//	sum(rate(trimsizer_search_outcomes_total[1h]))
//
// P95 encoder invocation time by stage:
//
//	histogram_quantile(0.95, sum(rate(trimsizer_encoder_invocation_duration_seconds_bucket[5m])) by (le, stage))
package metrics
