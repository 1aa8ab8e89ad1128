package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"trimsizer/internal/database"
	"trimsizer/internal/encoding"
	"trimsizer/internal/logging"
	"trimsizer/internal/metrics"
	"trimsizer/internal/middleware"
	"trimsizer/internal/progress"
	"trimsizer/internal/storage"
	"trimsizer/internal/streaming"
)

// Form defaults, matching the web UI.
const (
	DefaultTargetSizeMB = 10
	DefaultFrameRate    = 15
)

// Delivery modes for POST /api/encode.
const (
	DeliveryDownload = "download"
	DeliveryStorage  = "storage"
)

// Response headers describing a streamed artifact.
const (
	headerSize      = "X-Trimsizer-Size"
	headerTarget    = "X-Trimsizer-Target-Size"
	headerMode      = "X-Trimsizer-Mode"
	headerCRF       = "X-Trimsizer-Crf"
	headerBitrate   = "X-Trimsizer-Bitrate-Kbps"
	headerAttempts  = "X-Trimsizer-Attempts"
	headerFallback  = "X-Trimsizer-Fallback"
	headerOversized = "X-Trimsizer-Oversized"
	headerDims      = "X-Trimsizer-Dimensions"
	headerWarnings  = "X-Trimsizer-Warnings"
)

// EncodeResponse is returned for delivery=storage.
type EncodeResponse struct {
	Result *encoding.Result `json:"result"`
	Upload *storage.Upload  `json:"upload,omitempty"`
}

// Encode runs one encode session from a multipart upload.
// POST /api/encode
//
// With delivery=download (the default) the artifact is streamed back as an
// attachment named trimmed_video.<format>. With delivery=storage it is
// uploaded to the configured bucket and a presigned URL is returned.
func (h *Handlers) Encode(w http.ResponseWriter, r *http.Request) {
	if err := h.memory.Admit(); err != nil {
		writeJSONError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	// Refuse before reading a large body; Encode re-checks atomically.
	if h.orchestrator.Busy() {
		writeEncodeError(w, &encoding.Error{Kind: encoding.ErrBusy, Op: "encode"})
		return
	}

	sessionID := uuid.NewString()
	form, up, err := h.readMultipart(w, r, sessionID)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	defer up.remove()

	delivery := valueOr(form, "delivery", DeliveryDownload)
	switch delivery {
	case DeliveryDownload:
	case DeliveryStorage:
		if h.publisher == nil {
			writeJSONError(w, storage.ErrDisabled.Error(), http.StatusBadRequest)
			return
		}
	default:
		writeJSONError(w, fmt.Sprintf("unknown delivery %q", delivery), http.StatusBadRequest)
		return
	}

	info, err := h.tool.Probe(r.Context(), up.Path)
	if err != nil {
		logging.Warn("probe of %s failed: %v", up.Name, err)
		if errors.Is(err, encoding.ErrEncoderUnavailable) {
			writeEncodeError(w, err)
			return
		}
		writeJSONError(w, "could not read video: "+err.Error(), http.StatusBadRequest)
		return
	}

	target, err := parseTarget(form, info)
	if err != nil {
		writeRequestError(w, err)
		return
	}

	res, err := h.runSession(r.Context(), sessionID, up, target)
	if err != nil {
		writeEncodeError(w, err)
		return
	}

	if delivery == DeliveryStorage {
		h.publishResult(w, r, res)
		return
	}

	h.serveResult(w, r, res)
}

// runSession encodes, then records progress, metrics and history.
func (h *Handlers) runSession(ctx context.Context, sessionID string, up *upload, target encoding.EncodingTarget) (*encoding.Result, error) {
	outDir, err := h.outputs.Prepare(sessionID)
	if err != nil {
		return nil, err
	}

	rep := progress.Multi(h.tracker.BeginOnReport(sessionID), progress.Log(sessionID))
	metrics.EncodeSessionsInProgress.Inc()
	started := time.Now()

	res, err := h.orchestrator.Encode(ctx, encoding.Request{
		SessionID:  sessionID,
		SourcePath: up.Path,
		Target:     target,
		OutputDir:  outDir,
	}, rep)

	finished := time.Now()
	metrics.EncodeSessionsInProgress.Dec()
	metrics.ObserveSession(target, res, err, finished.Sub(started))

	var warnings []string
	if res != nil {
		warnings = res.Warnings
	}
	h.tracker.Finish(sessionID, warnings, err)

	if err != nil {
		if rerr := h.outputs.Remove(sessionID); rerr != nil {
			logging.Warn("failed to remove outputs of %s: %v", sessionID, rerr)
		}
	}
	if encoding.KindOf(err) != encoding.ErrBusy {
		h.recordSession(database.SessionInput{
			ID:          sessionID,
			SourcePath:  up.Name,
			SourceBytes: up.Size,
			Target:      target,
			StartedAt:   started,
			FinishedAt:  finished,
		}, res, err)
	}
	return res, err
}

// recordSession writes the history row. It runs after the request may
// have been cancelled, so it uses its own context.
func (h *Handlers) recordSession(in database.SessionInput, res *encoding.Result, err error) {
	if h.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if rerr := h.db.RecordSession(ctx, database.NewSessionRecord(in, res, err)); rerr != nil {
		logging.Error("failed to record session %s: %v", in.ID, rerr)
	}
}

func resultHeaders(res *encoding.Result) map[string]string {
	headers := map[string]string{
		middleware.SessionHeader: res.SessionID,
		headerSize:               strconv.FormatInt(res.SizeBytes, 10),
		headerMode:               string(res.Mode),
		headerAttempts:           strconv.Itoa(res.Attempts),
		headerFallback:           strconv.FormatBool(res.Fallback),
		headerOversized:          strconv.FormatBool(res.Oversized),
		headerDims:               fmt.Sprintf("%dx%d", res.OutputWidth, res.OutputHeight),
		headerWarnings:           strconv.Itoa(len(res.Warnings)),
	}
	if res.TargetSizeBytes > 0 {
		headers[headerTarget] = strconv.FormatInt(res.TargetSizeBytes, 10)
	}
	if res.CRF > 0 {
		headers[headerCRF] = strconv.Itoa(res.CRF)
	}
	if res.BitrateKbps > 0 {
		headers[headerBitrate] = strconv.Itoa(res.BitrateKbps)
	}
	return headers
}

func (h *Handlers) serveResult(w http.ResponseWriter, r *http.Request, res *encoding.Result) {
	_, err := streaming.ServeArtifact(r.Context(), w, streaming.Artifact{
		Path:         res.Path,
		DownloadName: res.Name,
		Headers:      resultHeaders(res),
	}, h.stream)
	switch {
	case err == nil:
	case errors.Is(err, streaming.ErrClientGone):
		logging.Debug("client left before %s finished streaming", res.SessionID)
	default:
		logging.Warn("failed to stream artifact of %s: %v", res.SessionID, err)
	}
}

func (h *Handlers) publishResult(w http.ResponseWriter, r *http.Request, res *encoding.Result) {
	up, err := h.publisher.Publish(r.Context(), res.SessionID, res.Path)
	if err != nil {
		logging.Error("failed to publish %s: %v", res.SessionID, err)
		writeJSONStatusCode(w, http.StatusBadGateway, ErrorResponse{
			Error: "encode succeeded but upload failed: " + err.Error(),
			Kind:  "storage",
		})
		return
	}

	if h.db != nil {
		if err := h.db.SetStorageURL(r.Context(), res.SessionID, up.URL); err != nil {
			logging.Warn("failed to record storage URL for %s: %v", res.SessionID, err)
		}
	}

	w.Header().Set(middleware.SessionHeader, res.SessionID)
	writeJSONStatusCode(w, http.StatusOK, EncodeResponse{Result: res, Upload: up})
}
