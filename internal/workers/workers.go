package workers

import (
	"os"
	"runtime"
	"strconv"
)

// ThreadsEnv overrides the encoder thread count.
const ThreadsEnv = "ENCODER_THREADS"

// Count returns the number of threads to give a task type.
// It respects container CPU limits via GOMAXPROCS (Go 1.19+).
//
// The multiplier adjusts for task characteristics:
//   - 1.0 for CPU-bound tasks (x264 encoding)
//   - below 1.0 when the host should stay responsive while encoding
//
// The limit parameter caps the result. Use 0 for no limit.
//
// Can be overridden with the ENCODER_THREADS environment variable.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(ThreadsEnv); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	// GOMAXPROCS is automatically set to container CPU limit in Go 1.19+
	available := runtime.GOMAXPROCS(0)

	threads := int(float64(available) * multiplier)

	if threads < 1 {
		threads = 1
	}
	if limit > 0 && threads > limit {
		threads = limit
	}

	return threads
}

// ForEncoder returns the ffmpeg -threads value (1 per CPU).
// x264 stops scaling well past 16 threads, so that is the default cap.
func ForEncoder() int {
	return Count(1.0, 16)
}
