package handlers

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"trimsizer/internal/database"
	"trimsizer/internal/logging"
	"trimsizer/internal/media"
	"trimsizer/internal/middleware"
	"trimsizer/internal/outputs"
	"trimsizer/internal/streaming"
)

// SessionList is returned by GET /api/sessions.
type SessionList struct {
	Sessions []database.SessionRecord `json:"sessions"`
	Stats    database.SessionStats    `json:"stats"`
	// LastPurge is when expired artifacts were last removed.
	LastPurge *time.Time `json:"lastPurge,omitempty"`
}

// ListSessions returns the most recent sessions, newest first.
// GET /api/sessions?limit=
func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	limit, err := parseInt(r.URL.Query().Get("limit"), database.DefaultListLimit)
	if err != nil || limit < 0 {
		writeJSONError(w, "invalid limit", http.StatusBadRequest)
		return
	}

	sessions, err := h.db.ListSessions(r.Context(), limit)
	if err != nil {
		logging.Error("failed to list sessions: %v", err)
		writeJSONError(w, "failed to list sessions", http.StatusInternalServerError)
		return
	}
	stats, err := h.db.GetStats(r.Context())
	if err != nil {
		logging.Error("failed to read session stats: %v", err)
		writeJSONError(w, "failed to read session stats", http.StatusInternalServerError)
		return
	}
	if sessions == nil {
		sessions = []database.SessionRecord{}
	}

	list := SessionList{Sessions: sessions, Stats: stats}
	if last, err := h.db.GetLastPurge(r.Context()); err != nil {
		logging.Warn("failed to read last purge time: %v", err)
	} else if !last.IsZero() {
		list.LastPurge = &last
	}

	writeJSONStatusCode(w, http.StatusOK, list)
}

// GetSession returns one history row.
// GET /api/sessions/{id}
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, err := h.db.GetSession(r.Context(), id)
	if errors.Is(err, database.ErrSessionNotFound) {
		writeJSONError(w, "session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("failed to get session %s: %v", id, err)
		writeJSONError(w, "failed to get session", http.StatusInternalServerError)
		return
	}
	writeJSONStatusCode(w, http.StatusOK, rec)
}

// artifactPath resolves a session's stored artifact, writing the error
// reply itself when there is none.
func (h *Handlers) artifactPath(w http.ResponseWriter, id string) (string, bool) {
	path, err := h.outputs.Artifact(id)
	switch {
	case err == nil:
		return path, true
	case errors.Is(err, outputs.ErrInvalidSession):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, outputs.ErrNotFound):
		writeJSONError(w, "artifact not found or expired", http.StatusNotFound)
	default:
		logging.Error("failed to find artifact of %s: %v", id, err)
		writeJSONError(w, "failed to find artifact", http.StatusInternalServerError)
	}
	return "", false
}

// SessionArtifact downloads a stored artifact again.
// GET /api/sessions/{id}/artifact
func (h *Handlers) SessionArtifact(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	path, ok := h.artifactPath(w, id)
	if !ok {
		return
	}

	_, err := streaming.ServeArtifact(r.Context(), w, streaming.Artifact{
		Path:         path,
		DownloadName: filepath.Base(path),
		Headers:      map[string]string{middleware.SessionHeader: id},
	}, h.stream)
	if err != nil && !errors.Is(err, streaming.ErrClientGone) {
		logging.Warn("failed to stream artifact of %s: %v", id, err)
	}
}

// SessionPoster serves a JPEG preview of a stored artifact, generating it
// on first request.
// GET /api/sessions/{id}/poster
func (h *Handlers) SessionPoster(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	path, ok := h.artifactPath(w, id)
	if !ok {
		return
	}
	poster, err := h.outputs.PosterPath(id)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !h.outputs.HasPoster(id) {
		if err := h.renderPoster(r, path, poster); err != nil {
			logging.Warn("failed to render poster for %s: %v", id, err)
			writeJSONError(w, "failed to render poster", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Cache-Control", "private, max-age=3600")
	http.ServeFile(w, r, poster)
}

func (h *Handlers) renderPoster(r *http.Request, artifact, poster string) error {
	h.posterMu.Lock()
	defer h.posterMu.Unlock()

	// Another request may have rendered it while we waited.
	if info, err := os.Stat(poster); err == nil && info.Size() > 0 {
		return nil
	}

	if strings.EqualFold(filepath.Ext(artifact), ".gif") {
		return media.Poster(artifact, poster, media.PosterMaxDimension)
	}

	frame := filepath.Join(filepath.Dir(poster), ".frame.png")
	defer os.Remove(frame)
	if err := h.tool.ExtractFrame(r.Context(), artifact, 0, frame); err != nil {
		return err
	}
	return media.Poster(frame, poster, media.PosterMaxDimension)
}
