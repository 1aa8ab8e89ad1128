package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"trimsizer/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
	statusDown     = "unhealthy"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	Database       bool   `json:"database"`
	Encoder        bool   `json:"encoder"`
	EncoderVersion string `json:"encoderVersion,omitempty"`
	EncoderError   string `json:"encoderError,omitempty"`
	Encoding       bool   `json:"encoding"`
	MemoryPaused   bool   `json:"memoryPaused"`
	Storage        bool   `json:"storage"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

func (h *Handlers) databaseOK(ctx context.Context) bool {
	if h.db == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return h.db.Ping(ctx) == nil
}

// HealthCheck reports component status. The service is degraded, not down,
// while ffmpeg is missing or memory pressure pauses new sessions: history
// and stored artifacts are still served.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	version, encErr := h.encoderStatus()

	response := HealthResponse{
		Version:        startup.Version,
		Uptime:         time.Since(h.startTime).Round(time.Second).String(),
		Database:       h.databaseOK(r.Context()),
		Encoder:        encErr == "",
		EncoderVersion: version,
		EncoderError:   encErr,
		Encoding:       h.orchestrator != nil && h.orchestrator.Busy(),
		MemoryPaused:   h.memory.IsPaused(),
		Storage:        h.publisher != nil,
		GoVersion:      runtime.Version(),
		NumCPU:         runtime.NumCPU(),
		NumGoroutine:   runtime.NumGoroutine(),
	}
	response.Ready = response.Database && response.Encoder

	statusCode := http.StatusOK
	switch {
	case !response.Database:
		response.Status = statusDown
		statusCode = http.StatusServiceUnavailable
	case !response.Encoder || response.MemoryPaused:
		response.Status = statusDegraded
	default:
		response.Status = statusHealthy
	}

	writeJSONStatusCode(w, statusCode, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": "alive"})
	}
}

// ReadinessCheck returns 200 once the database answers and ffmpeg was found.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	_, encErr := h.encoderStatus()
	if h.databaseOK(r.Context()) && encErr == "" {
		writeJSONStatusCode(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	writeJSONStatusCode(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
}
