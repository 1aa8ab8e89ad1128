package handlers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"trimsizer/internal/database"
	"trimsizer/internal/encoding"
	"trimsizer/internal/memory"
	"trimsizer/internal/outputs"
	"trimsizer/internal/progress"
	"trimsizer/internal/storage"
	"trimsizer/internal/streaming"
)

// MediaTool is the part of the transcoder the handlers use directly.
type MediaTool interface {
	encoding.Prober
	ExtractFrame(ctx context.Context, input string, at float64, output string) error
}

// Publisher uploads artifacts for delivery=storage.
type Publisher interface {
	Publish(ctx context.Context, sessionID, localPath string) (*storage.Upload, error)
}

// Deps are the components the handlers serve from.
type Deps struct {
	DB           *database.Database
	Orchestrator *encoding.Orchestrator
	Tool         MediaTool
	Tracker      *progress.Tracker
	Outputs      *outputs.Store
	// Publisher is nil when object storage is not configured.
	Publisher Publisher
	// Memory is nil when no memory limit is configured.
	Memory *memory.Monitor
}

// Options are the request limits.
type Options struct {
	UploadDir      string
	MaxUploadBytes int64
	// Stream defaults to streaming.DefaultConfig when both timeouts are zero.
	Stream streaming.Config
}

type Handlers struct {
	db           *database.Database
	orchestrator *encoding.Orchestrator
	tool         MediaTool
	tracker      *progress.Tracker
	outputs      *outputs.Store
	publisher    Publisher
	memory       *memory.Monitor

	uploadDir      string
	maxUploadBytes int64
	stream         streaming.Config

	startTime      time.Time
	encoderVersion atomic.Value // string
	encoderErr     atomic.Value // string
	posterMu       sync.Mutex
}

func New(deps Deps, opts Options) *Handlers {
	if opts.Stream.WriteTimeout == 0 && opts.Stream.IdleTimeout == 0 {
		opts.Stream = streaming.DefaultConfig()
	}
	tracker := deps.Tracker
	if tracker == nil {
		tracker = progress.NewTracker()
	}
	h := &Handlers{
		db:             deps.DB,
		orchestrator:   deps.Orchestrator,
		tool:           deps.Tool,
		tracker:        tracker,
		outputs:        deps.Outputs,
		publisher:      deps.Publisher,
		memory:         deps.Memory,
		uploadDir:      opts.UploadDir,
		maxUploadBytes: opts.MaxUploadBytes,
		stream:         opts.Stream,
		startTime:      time.Now(),
	}
	h.encoderVersion.Store("")
	h.encoderErr.Store("encoder not checked yet")
	return h
}

// SetEncoderStatus records the result of the startup ffmpeg check for the
// health endpoints.
func (h *Handlers) SetEncoderStatus(version string, err error) {
	h.encoderVersion.Store(version)
	if err != nil {
		h.encoderErr.Store(err.Error())
	} else {
		h.encoderErr.Store("")
	}
}

func (h *Handlers) encoderStatus() (version, errMsg string) {
	version, _ = h.encoderVersion.Load().(string)
	errMsg, _ = h.encoderErr.Load().(string)
	return version, errMsg
}
