package streaming

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"trimsizer/internal/logging"
)

// Sentinel errors for streaming operations.
var (
	// ErrWriteTimeout means a single write, or the whole stream, ran too long.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone means the request context ended before the stream completed.
	ErrClientGone = errors.New("client disconnected")

	// ErrStreamCanceled means the writer was closed or timed out as idle.
	ErrStreamCanceled = errors.New("stream canceled")
)

// Config configures the timeout writer.
type Config struct {
	// WriteTimeout bounds a single write to the client.
	WriteTimeout time.Duration
	// IdleTimeout bounds the time between successful writes.
	IdleTimeout time.Duration
	// MaxDuration bounds the whole stream (0 = unlimited).
	MaxDuration time.Duration
	// ChunkSize splits large writes (0 = write as received).
	ChunkSize int
	// ProgressEvery is the byte interval between OnProgress calls.
	ProgressEvery int64
	// OnProgress is called after every ProgressEvery bytes.
	OnProgress func(bytesWritten int64, elapsed time.Duration)
}

// DefaultConfig suits artifact downloads: a stalled client is dropped after
// a minute without progress.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:  30 * time.Second,
		IdleTimeout:   60 * time.Second,
		ChunkSize:     64 * 1024,
		ProgressEvery: 8 * 1024 * 1024,
	}
}

// TimeoutWriter wraps an http.ResponseWriter with timeout protection.
type TimeoutWriter struct {
	w       http.ResponseWriter
	parent  context.Context
	ctx     context.Context
	cancel  context.CancelFunc
	config  Config
	flusher http.Flusher

	mu           sync.Mutex
	startTime    time.Time
	lastWrite    time.Time
	bytesWritten int64
	nextProgress int64
	closed       bool
}

// NewTimeoutWriter creates a writer bound to ctx, normally the request context.
func NewTimeoutWriter(ctx context.Context, w http.ResponseWriter, config Config) *TimeoutWriter {
	writerCtx, cancel := context.WithCancel(ctx)
	now := time.Now()

	tw := &TimeoutWriter{
		w:            w,
		parent:       ctx,
		ctx:          writerCtx,
		cancel:       cancel,
		config:       config,
		startTime:    now,
		lastWrite:    now,
		nextProgress: config.ProgressEvery,
	}
	if flusher, ok := w.(http.Flusher); ok {
		tw.flusher = flusher
	}

	go tw.idleChecker()

	return tw
}

// Write implements io.Writer.
func (tw *TimeoutWriter) Write(p []byte) (int, error) {
	tw.mu.Lock()
	closed := tw.closed
	tw.mu.Unlock()
	if closed {
		return 0, ErrStreamCanceled
	}

	if err := tw.ctx.Err(); err != nil {
		return 0, tw.contextError()
	}
	if tw.config.MaxDuration > 0 && time.Since(tw.startTime) > tw.config.MaxDuration {
		return 0, ErrWriteTimeout
	}

	if tw.config.ChunkSize <= 0 || len(p) <= tw.config.ChunkSize {
		return tw.writeWithTimeout(p)
	}

	total := 0
	for len(p) > 0 {
		if tw.ctx.Err() != nil {
			return total, tw.contextError()
		}
		size := min(tw.config.ChunkSize, len(p))

		n, err := tw.writeWithTimeout(p[:size])
		total += n
		if err != nil {
			return total, err
		}
		p = p[size:]

		if tw.flusher != nil {
			tw.flusher.Flush()
		}
	}
	return total, nil
}

func (tw *TimeoutWriter) writeWithTimeout(p []byte) (int, error) {
	type writeResult struct {
		n   int
		err error
	}
	resultCh := make(chan writeResult, 1)

	go func() {
		n, err := tw.w.Write(p)
		resultCh <- writeResult{n, err}
	}()

	var timeout <-chan time.Time
	if tw.config.WriteTimeout > 0 {
		timer := time.NewTimer(tw.config.WriteTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case result := <-resultCh:
		if result.err == nil {
			tw.recordWrite(result.n)
		}
		return result.n, result.err

	case <-timeout:
		tw.cancel()
		return 0, ErrWriteTimeout

	case <-tw.ctx.Done():
		return 0, tw.contextError()
	}
}

func (tw *TimeoutWriter) recordWrite(n int) {
	tw.mu.Lock()
	tw.lastWrite = time.Now()
	tw.bytesWritten += int64(n)
	written := tw.bytesWritten
	report := tw.config.OnProgress != nil && tw.config.ProgressEvery > 0 && written >= tw.nextProgress
	if report {
		for tw.nextProgress <= written {
			tw.nextProgress += tw.config.ProgressEvery
		}
	}
	tw.mu.Unlock()

	if report {
		tw.config.OnProgress(written, time.Since(tw.startTime))
	}
}

func (tw *TimeoutWriter) idleChecker() {
	if tw.config.IdleTimeout <= 0 {
		return
	}

	ticker := time.NewTicker(tw.config.IdleTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tw.mu.Lock()
			idle := time.Since(tw.lastWrite)
			closed := tw.closed
			tw.mu.Unlock()

			if closed {
				return
			}
			if idle > tw.config.IdleTimeout {
				logging.Warn("Stream idle timeout exceeded: %v", idle)
				tw.cancel()
				return
			}

		case <-tw.ctx.Done():
			return
		}
	}
}

// contextError distinguishes a departed client from our own cancellation.
func (tw *TimeoutWriter) contextError() error {
	if tw.parent.Err() != nil {
		return ErrClientGone
	}
	return ErrStreamCanceled
}

// Close stops the idle checker. Further writes fail with ErrStreamCanceled.
func (tw *TimeoutWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.closed {
		return nil
	}
	tw.closed = true
	tw.cancel()
	return nil
}

// Stats returns bytes written and time since creation.
func (tw *TimeoutWriter) Stats() (bytesWritten int64, duration time.Duration) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.bytesWritten, time.Since(tw.startTime)
}
