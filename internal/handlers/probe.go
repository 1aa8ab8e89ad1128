package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"trimsizer/internal/encoding"
	"trimsizer/internal/logging"
)

// Probe reads the duration and dimensions of an uploaded clip so the UI
// can draw the trim sliders before encoding.
// POST /api/probe
func (h *Handlers) Probe(w http.ResponseWriter, r *http.Request) {
	_, up, err := h.readMultipart(w, r, "probe-"+uuid.NewString())
	if err != nil {
		writeRequestError(w, err)
		return
	}
	defer up.remove()

	info, err := h.tool.Probe(r.Context(), up.Path)
	if err != nil {
		if errors.Is(err, encoding.ErrEncoderUnavailable) {
			writeEncodeError(w, err)
			return
		}
		logging.Debug("probe of %s failed: %v", up.Name, err)
		writeJSONError(w, "could not read video: "+err.Error(), http.StatusBadRequest)
		return
	}
	writeJSONStatusCode(w, http.StatusOK, info)
}

// BitrateResponse is returned by GET /api/bitrate.
type BitrateResponse struct {
	BitrateKbps int  `json:"bitrateKbps"`
	LowBitrate  bool `json:"lowBitrate"`
}

// Bitrate previews the CBR video bitrate for a size and duration.
// GET /api/bitrate?targetSizeMB=&duration=
func (h *Handlers) Bitrate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sizeMB, err := parseFloat(q.Get("targetSizeMB"), DefaultTargetSizeMB)
	if err != nil {
		writeJSONError(w, "invalid targetSizeMB", http.StatusBadRequest)
		return
	}
	duration, err := parseFloat(q.Get("duration"), 0)
	if err != nil {
		writeJSONError(w, "invalid duration", http.StatusBadRequest)
		return
	}

	kbps, err := encoding.ComputeVideoBitrateKbps(sizeMB, duration)
	if err != nil {
		writeEncodeError(w, err)
		return
	}
	writeJSONStatusCode(w, http.StatusOK, BitrateResponse{
		BitrateKbps: kbps,
		LowBitrate:  encoding.IsLowBitrate(kbps),
	})
}
