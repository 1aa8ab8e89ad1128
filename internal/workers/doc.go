// Package workers sizes CPU parallelism for encoder processes.
//
// ffmpeg is started with -threads set from ForEncoder, which follows
// GOMAXPROCS and therefore the container CPU limit. Set ENCODER_THREADS to
// pin the value:
//
//	ENCODER_THREADS=4 trimsizer
package workers
