package handlers

import (
	"errors"
	"net/http"
	"time"

	"trimsizer/internal/encoding"
	"trimsizer/internal/logging"
	"trimsizer/internal/metrics"
)

// GetProgress returns the state of the current or last session.
// GET /api/progress
func (h *Handlers) GetProgress(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSONStatusCode(w, http.StatusOK, h.tracker.Snapshot())
}

// ClearResponse is returned by POST /api/scratch/clear.
type ClearResponse struct {
	Success           bool  `json:"success"`
	FreedBytes        int64 `json:"freedBytes"`
	ScratchFreedBytes int64 `json:"scratchFreedBytes"`
	OutputsRemoved    int   `json:"outputsRemoved"`
}

// ClearScratch purges leftover scratch arenas and expired outputs. It is
// refused with 409 while a session is running.
// POST /api/scratch/clear
func (h *Handlers) ClearScratch(w http.ResponseWriter, r *http.Request) {
	scratchFreed, err := h.orchestrator.PurgeScratch()
	if err != nil {
		if !errors.Is(err, encoding.ErrBusy) {
			logging.Error("scratch purge failed: %v", err)
		}
		writeEncodeError(w, err)
		return
	}
	metrics.ScratchPurgedBytesTotal.Add(float64(scratchFreed))

	now := time.Now()
	expired, err := h.outputs.Expire(now)
	if err != nil {
		logging.Warn("output expiry failed: %v", err)
	} else if err := h.db.SetLastPurge(r.Context(), now); err != nil {
		logging.Warn("failed to record purge time: %v", err)
	}

	logging.Info("scratch cleared: %d bytes freed, %d expired outputs removed (%d bytes)",
		scratchFreed, len(expired.Removed), expired.FreedBytes)

	writeJSONStatusCode(w, http.StatusOK, ClearResponse{
		Success:           true,
		FreedBytes:        scratchFreed + expired.FreedBytes,
		ScratchFreedBytes: scratchFreed,
		OutputsRemoved:    len(expired.Removed),
	})
}
