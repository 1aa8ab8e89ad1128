package database

import (
	"path/filepath"
	"time"

	"trimsizer/internal/encoding"
)

// StatusSuccess is the status of a session that produced an artifact.
// Failed sessions store their error kind (see encoding.KindName).
const StatusSuccess = "success"

// SessionRecord is one row of the encode session history.
type SessionRecord struct {
	ID           string             `json:"id"`
	CreatedAt    time.Time          `json:"createdAt"`
	FinishedAt   time.Time          `json:"finishedAt"`
	DurationMs   int64              `json:"durationMs"`
	SourceName   string             `json:"sourceName"`
	SourceBytes  int64              `json:"sourceBytes"`
	Format       encoding.Format    `json:"format"`
	Mode         encoding.Mode      `json:"mode"`
	TargetSizeMB float64            `json:"targetSizeMB,omitempty"`
	FrameRate    int                `json:"frameRate,omitempty"`
	Scale        float64            `json:"scale"`
	TrimStart    float64            `json:"trimStart"`
	TrimEnd      float64            `json:"trimEnd"`
	Status       string             `json:"status"`
	Error        string             `json:"error,omitempty"`
	OutputName   string             `json:"outputName,omitempty"`
	OutputBytes  int64              `json:"outputBytes,omitempty"`
	CRF          int                `json:"crf,omitempty"`
	BitrateKbps  int                `json:"bitrateKbps,omitempty"`
	Attempts     int                `json:"attempts"`
	Fallback     bool               `json:"fallback"`
	Oversized    bool               `json:"oversized"`
	SizeCheck    encoding.SizeCheck `json:"sizeCheck,omitempty"`
	OutputWidth  int                `json:"outputWidth,omitempty"`
	OutputHeight int                `json:"outputHeight,omitempty"`
	Warnings     []string           `json:"warnings,omitempty"`
	StorageURL   string             `json:"storageUrl,omitempty"`
}

// Succeeded reports whether the session produced an artifact.
func (r SessionRecord) Succeeded() bool {
	return r.Status == StatusSuccess
}

// SessionStats summarises the history.
type SessionStats struct {
	Total            int            `json:"total"`
	ByStatus         map[string]int `json:"byStatus"`
	TotalOutputBytes int64          `json:"totalOutputBytes"`
	Fallbacks        int            `json:"fallbacks"`
	LastSessionAt    time.Time      `json:"lastSessionAt,omitempty"`
}

// SessionInput describes what was asked of a session, independent of its
// outcome.
type SessionInput struct {
	ID          string
	SourcePath  string
	SourceBytes int64
	Target      encoding.EncodingTarget
	StartedAt   time.Time
	FinishedAt  time.Time
}

// NewSessionRecord builds the history row for a finished session. Exactly
// one of res and err is expected to be set.
func NewSessionRecord(in SessionInput, res *encoding.Result, err error) SessionRecord {
	t := in.Target
	rec := SessionRecord{
		ID:          in.ID,
		CreatedAt:   in.StartedAt,
		FinishedAt:  in.FinishedAt,
		DurationMs:  in.FinishedAt.Sub(in.StartedAt).Milliseconds(),
		SourceName:  filepath.Base(in.SourcePath),
		SourceBytes: in.SourceBytes,
		Format:      t.Format,
		Mode:        t.EffectiveMode(),
		Scale:       t.Scale,
		TrimStart:   t.Trim.Start,
		TrimEnd:     t.Trim.End,
		Status:      StatusSuccess,
	}
	if in.SourcePath == "" {
		rec.SourceName = ""
	}
	switch t.Format {
	case encoding.FormatMP4:
		rec.TargetSizeMB = t.TargetSizeMB
	case encoding.FormatGIF:
		rec.FrameRate = t.TargetFrameRate
	}

	if err != nil {
		rec.Status = encoding.KindName(err)
		rec.Error = err.Error()
		return rec
	}
	if res == nil {
		return rec
	}

	if res.SessionID != "" {
		rec.ID = res.SessionID
	}
	rec.OutputName = res.Name
	rec.OutputBytes = res.SizeBytes
	rec.CRF = res.CRF
	rec.BitrateKbps = res.BitrateKbps
	rec.Attempts = res.Attempts
	rec.Fallback = res.Fallback
	rec.Oversized = res.Oversized
	rec.SizeCheck = res.SizeCheck
	rec.OutputWidth = res.OutputWidth
	rec.OutputHeight = res.OutputHeight
	rec.Warnings = append([]string(nil), res.Warnings...)
	return rec
}
