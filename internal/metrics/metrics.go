package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trimsizer_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trimsizer_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trimsizer_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trimsizer_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trimsizer_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trimsizer_db_size_bytes",
			Help: "Size of the session history database file in bytes",
		},
	)
)

// Encode session metrics
var (
	EncodeSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trimsizer_encode_sessions_total",
			Help: "Total number of encode sessions by format, mode and result",
		},
		[]string{"format", "mode", "status"},
	)

	EncodeSessionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trimsizer_encode_session_duration_seconds",
			Help:    "Encode session duration in seconds",
			Buckets: []float64{1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"mode"},
	)

	EncodeSessionsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trimsizer_encode_sessions_in_progress",
			Help: "Number of encode sessions currently running (0 or 1)",
		},
	)

	EncodeOutputBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trimsizer_encode_output_bytes",
			Help:    "Size of produced artifacts in bytes",
			Buckets: prometheus.ExponentialBuckets(64*1024, 2, 12),
		},
		[]string{"format"},
	)

	EncodeSessionsRecorded = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trimsizer_encode_sessions_recorded",
			Help: "Encode sessions in the history database by status",
		},
		[]string{"status"},
	)
)

// CRF search metrics
var (
	SearchAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trimsizer_search_attempts",
			Help:    "Encoder invocations used per size-search session",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 8},
		},
	)

	SearchOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trimsizer_search_outcomes_total",
			Help: "Size-search terminal states",
		},
		[]string{"outcome"},
	)
)

// Encoder process metrics
var (
	EncoderInvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trimsizer_encoder_invocations_total",
			Help: "Total number of ffmpeg invocations by stage and result",
		},
		[]string{"stage", "status"},
	)

	EncoderInvocationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trimsizer_encoder_invocation_duration_seconds",
			Help:    "ffmpeg invocation duration in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"stage"},
	)

	EncoderProcessesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trimsizer_encoder_processes_active",
			Help: "Number of running ffmpeg and ffprobe processes",
		},
	)
)

// Scratch and output storage metrics
var (
	ScratchBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trimsizer_scratch_bytes",
			Help: "Bytes held in the scratch directory",
		},
	)

	ScratchArenas = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trimsizer_scratch_arenas",
			Help: "Number of session arenas in the scratch directory",
		},
	)

	ScratchPurgedBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trimsizer_scratch_purged_bytes_total",
			Help: "Bytes freed by scratch purges",
		},
	)

	OutputBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trimsizer_output_bytes",
			Help: "Bytes held in the output directory",
		},
	)

	OutputsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trimsizer_outputs_expired_total",
			Help: "Session output directories removed by the janitor",
		},
	)

	StorageUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trimsizer_storage_uploads_total",
			Help: "Artifact uploads to object storage by result",
		},
		[]string{"status"},
	)

	StorageUploadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trimsizer_storage_upload_duration_seconds",
			Help:    "Artifact upload duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Filesystem retry metrics (DATA_DIR may be an NFS mount)
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trimsizer_filesystem_retry_attempts_total",
			Help: "Retries of filesystem operations after a stale NFS handle",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trimsizer_filesystem_retry_failures_total",
			Help: "Filesystem operations that still failed after all retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trimsizer_filesystem_stale_errors_total",
			Help: "Stale NFS file handle errors observed",
		},
		[]string{"operation", "volume"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trimsizer_memory_usage_ratio",
			Help: "Go heap allocation as a ratio of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trimsizer_memory_paused",
			Help: "1 while new encode sessions are refused for memory pressure",
		},
	)

	MemoryPausesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trimsizer_memory_pauses_total",
			Help: "Times the memory monitor started refusing sessions",
		},
	)

	MemoryRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trimsizer_memory_rejections_total",
			Help: "Encode requests refused for memory pressure",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trimsizer_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)
