// Package main provides the entry point for the trimsizer server.
//
// trimsizer trims a video clip and re-encodes it to fit a size budget: an
// MP4 encoded at a computed constant bitrate or found by a bounded CRF
// search, or a GIF built with a two-pass palette. Encoding runs in ffmpeg
// child processes, one session at a time, inside a per-session scratch
// directory that is always removed afterwards.
//
// # Application Lifecycle
//
// The application follows a structured initialization sequence:
//
//  1. Memory Configuration: Sets GOMEMLIMIT from environment or cgroup limits
//  2. Configuration Loading: Reads environment variables and validates directories
//  3. Database Initialization: Opens the SQLite session history
//  4. Component Initialization:
//     - Transcoder: Locates ffmpeg and ffprobe and records their version
//     - Scratch Manager: Purges arenas left behind by a crash
//     - Output Store: Keeps finished artifacts for re-download
//     - Object Storage: Connects the optional S3-compatible bucket
//     - Memory Monitor: Refuses new sessions under heap pressure
//     - Metrics Collector: Gathers Prometheus gauges every minute
//  5. HTTP Server Setup: Configures routes, middleware, and starts server
//  6. Graceful Shutdown: Handles SIGINT/SIGTERM, stops all components cleanly
//
// # Background Services
//
//   - Janitor: Removes stored outputs older than OUTPUT_RETENTION
//   - Metrics Collector: Session counts, scratch and output bytes
//   - Memory Monitor: Pauses admission above the critical watermark
//
// # HTTP Server
//
// The application runs two HTTP servers:
//
//  1. Main Server (default port 8001):
//     - POST /api/encode, POST /api/probe, GET /api/bitrate
//     - GET /api/progress for the running session
//     - Session history, artifact re-download and poster previews
//     - POST /api/scratch/clear
//     - Static front end from STATIC_DIR with cross-origin isolation headers
//
//  2. Metrics Server (default port 9090, optional):
//     - Prometheus metrics endpoint (/metrics)
//     - Health check endpoint (/health)
//
// # Environment Variables
//
// See [trimsizer/internal/startup] for the full list. The most used are:
//
//   - DATA_DIR: Root for scratch, uploads, outputs and the database (default: /data)
//   - PORT: Main HTTP server port (default: 8001)
//   - FFMPEG_PATH, FFPROBE_PATH: Encoder binaries (default: from PATH)
//   - OUTPUT_RETENTION: How long artifacts stay downloadable (default: 24h)
//   - STORAGE_ENDPOINT, STORAGE_BUCKET: Enable delivery=storage
//   - LOG_LEVEL: Logging level (debug/info/warn/error)
//
// # Graceful Shutdown
//
//  1. Stop the janitor
//  2. Kill in-flight ffmpeg processes
//  3. Stop metrics collector and memory monitor
//  4. Shutdown main HTTP server (30s timeout)
//  5. Shutdown metrics server (if running)
//  6. Close the database
//
// # Build Requirements
//
// CGO is required for SQLite. ffmpeg and ffprobe must be on PATH or
// configured explicitly:
//
//	go build -o trimsizer ./cmd/trimsizer
//
// # Related Packages
//
//   - [trimsizer/internal/encoding]: Size search, CBR and palette pipelines
//   - [trimsizer/internal/transcoder]: ffmpeg and ffprobe processes
//   - [trimsizer/internal/handlers]: HTTP request handlers
//   - [trimsizer/internal/database]: SQLite session history
//   - [trimsizer/internal/startup]: Configuration and initialization
package main
