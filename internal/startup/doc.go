// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig]:
//
//   - DATA_DIR: Root of scratch, upload, output and database files (default: /data)
//   - STATIC_DIR: Web UI assets, served when present (default: ./static)
//   - PORT: HTTP server port (default: 8001)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - FFMPEG_PATH, FFPROBE_PATH: Encoder binaries (default: looked up on PATH)
//   - MAX_UPLOAD_MB: Largest accepted source upload (default: 2048)
//   - OUTPUT_RETENTION: How long finished artifacts are kept (default: 24h)
//   - CROSS_ORIGIN_ISOLATION: Send COOP/COEP headers (default: true)
//   - STORAGE_ENDPOINT, STORAGE_BUCKET, STORAGE_ACCESS_KEY, STORAGE_SECRET_KEY,
//     STORAGE_USE_SSL, STORAGE_REGION, STORAGE_PREFIX: S3-compatible publishing
//   - ENCODER_THREADS: ffmpeg -threads value (see the workers package)
//   - LOG_LEVEL, LOG_STATIC_FILES, LOG_HEALTH_CHECKS: Logging controls
//   - MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT: see the memory package
//
// The data directory and its scratch, uploads and outputs subdirectories are
// created if missing and must be writable.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Lifecycle Logging
//
//   - [LogMemoryConfig]: GOMEMLIMIT setup
//   - [LogDatabaseInit]: Session history database timing
//   - [LogEncoderInit]: FFmpeg availability
//   - [LogStorageInit]: Object storage publisher
//   - [LogJanitorInit]: Output retention
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted], [LogShutdownInitiated], [LogShutdownComplete]
package startup
