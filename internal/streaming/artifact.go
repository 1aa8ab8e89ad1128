package streaming

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"trimsizer/internal/filesystem"
	"trimsizer/internal/logging"
	"trimsizer/internal/mediatypes"
)

// Artifact describes a finished encode to send to a client.
type Artifact struct {
	// Path is the file on disk.
	Path string
	// DownloadName is offered in Content-Disposition. Defaults to the base
	// name of Path.
	DownloadName string
	// Headers are copied onto the response before the body.
	Headers map[string]string
}

// ServeArtifact streams an artifact as an attachment with a known
// Content-Length. Errors before the first byte return without writing;
// callers may still answer with an error status.
func ServeArtifact(ctx context.Context, w http.ResponseWriter, a Artifact, config Config) (int64, error) {
	f, err := filesystem.OpenWithRetry(a.Path, filesystem.DefaultRetryConfig())
	if err != nil {
		return 0, fmt.Errorf("open artifact: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			logging.Warn("failed to close artifact %s: %v", a.Path, cerr)
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat artifact: %w", err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("artifact %s is a directory", a.Path)
	}

	name := a.DownloadName
	if name == "" {
		name = filepath.Base(a.Path)
	}

	h := w.Header()
	for k, v := range a.Headers {
		h.Set(k, v)
	}
	h.Set("Content-Type", mediatypes.GetMimeType(strings.ToLower(filepath.Ext(name))))
	h.Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	tw := NewTimeoutWriter(ctx, w, config)
	defer func() {
		if err := tw.Close(); err != nil {
			logging.Warn("Failed to close timeout writer: %v", err)
		}
	}()

	written, err := io.Copy(tw, f)
	_, elapsed := tw.Stats()
	logging.Debug("Streamed %s: %d/%d bytes in %v", name, written, info.Size(), elapsed)

	return written, err
}
