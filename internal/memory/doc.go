// Package memory configures the Go heap limit for containers and gates new
// encode sessions on heap usage.
//
// An encode spends most of its memory in the ffmpeg child process, which
// GOMEMLIMIT does not cover. [ConfigureFromEnv] therefore gives the Go heap
// only half of MEMORY_LIMIT by default (MEMORY_RATIO overrides it), leaving
// the rest for ffmpeg.
//
// [Monitor] samples heap usage. Above the critical watermark [Monitor.Admit]
// returns [ErrMemoryPressure] and the HTTP layer answers 503 until usage
// falls back under the high watermark.
//
//	memory.ConfigureFromEnv()
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Start()
//	defer monitor.Stop()
package memory
