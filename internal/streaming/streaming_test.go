package streaming

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// blockingWriter never completes a Write until released.
type blockingWriter struct {
	*httptest.ResponseRecorder
	release chan struct{}
}

func (b *blockingWriter) Write(p []byte) (int, error) {
	<-b.release
	return b.ResponseRecorder.Write(p)
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.WriteTimeout != 30*time.Second || config.IdleTimeout != 60*time.Second {
		t.Errorf("timeouts = %v/%v", config.WriteTimeout, config.IdleTimeout)
	}
	if config.MaxDuration != 0 {
		t.Errorf("Expected MaxDuration=0 (unlimited), got %v", config.MaxDuration)
	}
	if config.ChunkSize != 64*1024 {
		t.Errorf("Expected ChunkSize=64KB, got %d", config.ChunkSize)
	}
}

func TestTimeoutWriterWrite(t *testing.T) {
	w := httptest.NewRecorder()
	tw := NewTimeoutWriter(context.Background(), w, DefaultConfig())
	defer tw.Close()

	n, err := tw.Write([]byte("hello"))
	if err != nil || n != 5 {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	if w.Body.String() != "hello" {
		t.Errorf("body = %q", w.Body.String())
	}
	if written, _ := tw.Stats(); written != 5 {
		t.Errorf("Stats() bytes = %d", written)
	}
}

func TestTimeoutWriterChunkedWrites(t *testing.T) {
	w := httptest.NewRecorder()
	config := DefaultConfig()
	config.ChunkSize = 10
	tw := NewTimeoutWriter(context.Background(), w, config)
	defer tw.Close()

	data := strings.Repeat("x", 95)
	n, err := tw.Write([]byte(data))
	if err != nil || n != 95 {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	if w.Body.String() != data {
		t.Error("chunked body does not match")
	}
	if !w.Flushed {
		t.Error("chunked writes should flush")
	}
}

func TestTimeoutWriterClose(t *testing.T) {
	tw := NewTimeoutWriter(context.Background(), httptest.NewRecorder(), DefaultConfig())

	if err := tw.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := tw.Write([]byte("late")); !errors.Is(err, ErrStreamCanceled) {
		t.Errorf("Write after Close = %v, want ErrStreamCanceled", err)
	}
}

func TestTimeoutWriterClientGone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tw := NewTimeoutWriter(ctx, httptest.NewRecorder(), DefaultConfig())
	defer tw.Close()

	cancel()
	if _, err := tw.Write([]byte("data")); !errors.Is(err, ErrClientGone) {
		t.Errorf("Write() = %v, want ErrClientGone", err)
	}
}

func TestTimeoutWriterWriteTimeout(t *testing.T) {
	bw := &blockingWriter{ResponseRecorder: httptest.NewRecorder(), release: make(chan struct{})}
	defer close(bw.release)

	config := DefaultConfig()
	config.WriteTimeout = 20 * time.Millisecond
	config.IdleTimeout = 0
	tw := NewTimeoutWriter(context.Background(), bw, config)
	defer tw.Close()

	if _, err := tw.Write([]byte("stuck")); !errors.Is(err, ErrWriteTimeout) {
		t.Fatalf("Write() = %v, want ErrWriteTimeout", err)
	}
	// The timeout cancels the stream; later writes are ours, not the client's.
	if _, err := tw.Write([]byte("again")); !errors.Is(err, ErrStreamCanceled) {
		t.Errorf("second Write() = %v, want ErrStreamCanceled", err)
	}
}

func TestTimeoutWriterMaxDuration(t *testing.T) {
	config := DefaultConfig()
	config.MaxDuration = time.Millisecond
	tw := NewTimeoutWriter(context.Background(), httptest.NewRecorder(), config)
	defer tw.Close()

	time.Sleep(5 * time.Millisecond)
	if _, err := tw.Write([]byte("late")); !errors.Is(err, ErrWriteTimeout) {
		t.Errorf("Write() = %v, want ErrWriteTimeout", err)
	}
}

func TestTimeoutWriterIdleTimeout(t *testing.T) {
	config := DefaultConfig()
	config.IdleTimeout = 20 * time.Millisecond
	tw := NewTimeoutWriter(context.Background(), httptest.NewRecorder(), config)
	defer tw.Close()

	deadline := time.Now().Add(2 * time.Second)
	for tw.ctx.Err() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := tw.Write([]byte("data")); !errors.Is(err, ErrStreamCanceled) {
		t.Errorf("Write() after idle = %v, want ErrStreamCanceled", err)
	}
}

func TestTimeoutWriterOnProgress(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []int64
	)
	config := DefaultConfig()
	config.ChunkSize = 0
	config.ProgressEvery = 100
	config.OnProgress = func(written int64, _ time.Duration) {
		mu.Lock()
		calls = append(calls, written)
		mu.Unlock()
	}

	tw := NewTimeoutWriter(context.Background(), httptest.NewRecorder(), config)
	defer tw.Close()

	for _, size := range []int{60, 60, 250, 10} {
		if _, err := tw.Write(make([]byte, size)); err != nil {
			t.Fatal(err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	want := []int64{120, 370}
	if len(calls) != len(want) || calls[0] != want[0] || calls[1] != want[1] {
		t.Errorf("progress calls = %v, want %v", calls, want)
	}
}

func TestServeArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.mp4")
	body := strings.Repeat("m", 200*1024)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	n, err := ServeArtifact(context.Background(), w, Artifact{
		Path:         path,
		DownloadName: "trimmed_video.mp4",
		Headers:      map[string]string{"X-Trimsizer-Crf": "26"},
	}, DefaultConfig())
	if err != nil {
		t.Fatalf("ServeArtifact() error = %v", err)
	}

	if n != int64(len(body)) || w.Body.String() != body {
		t.Errorf("streamed %d bytes, body length %d", n, w.Body.Len())
	}
	wantHeaders := map[string]string{
		"Content-Type":        "video/mp4",
		"Content-Length":      "204800",
		"Content-Disposition": `attachment; filename=trimmed_video.mp4`,
		"X-Trimsizer-Crf":     "26",
	}
	for k, v := range wantHeaders {
		if got := w.Header().Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestServeArtifactMissingFile(t *testing.T) {
	w := httptest.NewRecorder()
	_, err := ServeArtifact(context.Background(), w, Artifact{Path: filepath.Join(t.TempDir(), "gone.gif")}, DefaultConfig())
	if err == nil {
		t.Fatal("expected an error for a missing artifact")
	}
	if w.Code != http.StatusOK || len(w.Header()) != 0 {
		t.Error("nothing should be written before the file opens")
	}
}
