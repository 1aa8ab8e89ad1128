package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"

	"trimsizer/internal/mediatypes"
)

// CompressionConfig holds configuration for the compression middleware
type CompressionConfig struct {
	// MinSize is the minimum response size in bytes before compression is applied
	MinSize int
	// Level is the gzip compression level (gzip.BestSpeed to gzip.BestCompression)
	Level int
	// CompressibleTypes is a list of content types that should be compressed
	CompressibleTypes []string
}

// DefaultCompressionConfig compresses the JSON API and the static UI.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize: 1024,
		Level:   gzip.DefaultCompression,
		CompressibleTypes: []string{
			"text/html",
			"text/css",
			"text/plain",
			"text/javascript",
			"application/json",
			"application/javascript",
			"application/wasm",
			"image/svg+xml",
		},
	}
}

var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.DefaultCompression)
		return w
	},
}

func acquireGzipWriter(dst io.Writer, level int) *gzip.Writer {
	if level == gzip.DefaultCompression {
		gw := gzipWriterPool.Get().(*gzip.Writer)
		gw.Reset(dst)
		return gw
	}
	gw, err := gzip.NewWriterLevel(dst, level)
	if err != nil {
		gw = gzip.NewWriter(dst)
	}
	return gw
}

// gzipResponseWriter buffers up to MinSize bytes to decide whether to compress.
// Encoded artifacts (video/*, image/*) bypass the buffer entirely so large
// downloads stream straight through.
type gzipResponseWriter struct {
	http.ResponseWriter
	gzipWriter     *gzip.Writer
	config         CompressionConfig
	buffer         []byte
	statusCode     int
	headerWritten  bool
	shouldCompress bool
	pooled         bool
}

func newGzipResponseWriter(w http.ResponseWriter, config CompressionConfig) *gzipResponseWriter {
	return &gzipResponseWriter{
		ResponseWriter: w,
		config:         config,
		statusCode:     http.StatusOK,
	}
}

// WriteHeader captures the status code. Artifacts and bodiless statuses are
// committed immediately.
func (g *gzipResponseWriter) WriteHeader(statusCode int) {
	if g.headerWritten {
		return
	}
	g.statusCode = statusCode
	if g.passthrough() || statusCode == http.StatusNoContent || statusCode == http.StatusNotModified {
		g.commit(false)
	}
}

func (g *gzipResponseWriter) Write(data []byte) (int, error) {
	if !g.headerWritten && g.passthrough() {
		g.commit(false)
	}
	if g.headerWritten {
		if g.shouldCompress {
			return g.gzipWriter.Write(data)
		}
		return g.ResponseWriter.Write(data)
	}

	g.buffer = append(g.buffer, data...)
	if len(g.buffer) > g.config.MinSize {
		if err := g.finalize(); err != nil {
			return 0, err
		}
	}
	return len(data), nil
}

func (g *gzipResponseWriter) mediaType() string {
	contentType := g.Header().Get("Content-Type")
	return strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
}

func (g *gzipResponseWriter) passthrough() bool {
	return mediatypes.IsBinaryOutput(g.mediaType())
}

func (g *gzipResponseWriter) shouldCompressContentType() bool {
	mediaType := g.mediaType()
	if mediaType == "" {
		return false
	}
	for _, compressible := range g.config.CompressibleTypes {
		if mediaType == compressible {
			return true
		}
	}
	return false
}

// commit writes the header, switching to gzip when compress is set.
func (g *gzipResponseWriter) commit(compress bool) {
	g.headerWritten = true
	g.shouldCompress = compress

	if compress {
		g.Header().Del("Content-Length")
		g.Header().Set("Content-Encoding", "gzip")
		g.Header().Add("Vary", "Accept-Encoding")
		g.gzipWriter = acquireGzipWriter(g.ResponseWriter, g.config.Level)
		g.pooled = g.config.Level == gzip.DefaultCompression
	}
	g.ResponseWriter.WriteHeader(g.statusCode)
}

// finalize decides whether to compress and flushes the buffered data.
func (g *gzipResponseWriter) finalize() error {
	if g.headerWritten {
		return nil
	}

	g.commit(len(g.buffer) >= g.config.MinSize && g.shouldCompressContentType())

	var err error
	if len(g.buffer) > 0 {
		if g.shouldCompress {
			_, err = g.gzipWriter.Write(g.buffer)
		} else {
			_, err = g.ResponseWriter.Write(g.buffer)
		}
	}
	g.buffer = nil
	return err
}

// Close finalizes the response and returns the gzip writer to the pool
func (g *gzipResponseWriter) Close() error {
	ferr := g.finalize()

	if g.gzipWriter != nil {
		err := g.gzipWriter.Close()
		if g.pooled {
			gzipWriterPool.Put(g.gzipWriter)
		}
		g.gzipWriter = nil
		if err != nil {
			return err
		}
	}
	return ferr
}

// Flush implements http.Flusher
func (g *gzipResponseWriter) Flush() {
	_ = g.finalize()

	if g.gzipWriter != nil {
		_ = g.gzipWriter.Flush()
	}
	if flusher, ok := g.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (g *gzipResponseWriter) Unwrap() http.ResponseWriter {
	return g.ResponseWriter
}

// Compression returns a middleware that compresses responses using gzip
func Compression(config CompressionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
				next.ServeHTTP(w, r)
				return
			}

			// Byte ranges of an artifact must not be re-encoded.
			if r.Header.Get("Range") != "" {
				next.ServeHTTP(w, r)
				return
			}

			if r.Header.Get("Accept") == "text/event-stream" {
				next.ServeHTTP(w, r)
				return
			}

			gzw := newGzipResponseWriter(w, config)
			defer gzw.Close()

			next.ServeHTTP(gzw, r)
		})
	}
}
