package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"trimsizer/internal/encoding"
)

// ErrSessionNotFound is returned when a session ID has no history row.
var ErrSessionNotFound = errors.New("session not found")

// DefaultListLimit is used when ListSessions is given a non-positive limit.
const DefaultListLimit = 50

const sessionColumns = `id, created_at, finished_at, duration_ms, source_name, source_bytes,
	format, mode, target_size_mb, frame_rate, scale, trim_start, trim_end,
	status, error, output_name, output_bytes, crf, bitrate_kbps, attempts,
	fallback, oversized, size_check, output_width, output_height, warnings, storage_url`

// RecordSession inserts or replaces a session row.
func (d *Database) RecordSession(ctx context.Context, rec SessionRecord) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("record_session", start, err) }()

	if rec.ID == "" {
		err = errors.New("session id is required")
		return err
	}

	warnings := []byte("[]")
	if len(rec.Warnings) > 0 {
		if warnings, err = json.Marshal(rec.Warnings); err != nil {
			return fmt.Errorf("failed to encode warnings: %w", err)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
	INSERT OR REPLACE INTO encode_sessions (`+sessionColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.CreatedAt.UnixMilli(), rec.FinishedAt.UnixMilli(), rec.DurationMs,
		rec.SourceName, rec.SourceBytes,
		string(rec.Format), string(rec.Mode), rec.TargetSizeMB, rec.FrameRate, rec.Scale,
		rec.TrimStart, rec.TrimEnd,
		rec.Status, rec.Error, rec.OutputName, rec.OutputBytes, rec.CRF, rec.BitrateKbps, rec.Attempts,
		rec.Fallback, rec.Oversized, string(rec.SizeCheck), rec.OutputWidth, rec.OutputHeight,
		string(warnings), rec.StorageURL,
	)
	return err
}

// SetStorageURL records where a session's artifact was published.
func (d *Database) SetStorageURL(ctx context.Context, id, url string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_storage_url", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var result sql.Result
	result, err = d.db.ExecContext(ctx, "UPDATE encode_sessions SET storage_url = ? WHERE id = ?", url, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		err = ErrSessionNotFound
	}
	return err
}

// GetSession returns one session by ID.
func (d *Database) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_session", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM encode_sessions WHERE id = ?", id)
	rec, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrSessionNotFound
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListSessions returns the most recent sessions, newest first.
func (d *Database) ListSessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_sessions", start, err) }()

	if limit <= 0 {
		limit = DefaultListLimit
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx,
		"SELECT "+sessionColumns+" FROM encode_sessions ORDER BY created_at DESC, id LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	sessions := []SessionRecord{}
	for rows.Next() {
		var rec *SessionRecord
		if rec, err = scanSession(rows); err != nil {
			return nil, err
		}
		sessions = append(sessions, *rec)
	}
	err = rows.Err()
	return sessions, err
}

// GetStats aggregates the history.
func (d *Database) GetStats(ctx context.Context) (SessionStats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("session_stats", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	stats := SessionStats{ByStatus: map[string]int{}}

	rows, err := d.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM encode_sessions GROUP BY status")
	if err != nil {
		return stats, err
	}
	for rows.Next() {
		var status string
		var count int
		if err = rows.Scan(&status, &count); err != nil {
			_ = rows.Close()
			return stats, err
		}
		stats.ByStatus[status] = count
		stats.Total += count
	}
	_ = rows.Close()
	if err = rows.Err(); err != nil {
		return stats, err
	}

	var last sql.NullInt64
	err = d.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(output_bytes), 0), COALESCE(SUM(fallback), 0), MAX(created_at)
		FROM encode_sessions
	`).Scan(&stats.TotalOutputBytes, &stats.Fallbacks, &last)
	if err != nil {
		return stats, err
	}
	if last.Valid {
		stats.LastSessionAt = time.UnixMilli(last.Int64)
	}
	return stats, nil
}

// DeleteSessionsBefore removes history rows created before cutoff and
// returns how many were removed.
func (d *Database) DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_sessions_before", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var result sql.Result
	result, err = d.db.ExecContext(ctx, "DELETE FROM encode_sessions WHERE created_at < ?", cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*SessionRecord, error) {
	var (
		rec                 SessionRecord
		created, finished   int64
		format, mode, check string
		warnings            string
	)
	err := row.Scan(
		&rec.ID, &created, &finished, &rec.DurationMs, &rec.SourceName, &rec.SourceBytes,
		&format, &mode, &rec.TargetSizeMB, &rec.FrameRate, &rec.Scale, &rec.TrimStart, &rec.TrimEnd,
		&rec.Status, &rec.Error, &rec.OutputName, &rec.OutputBytes, &rec.CRF, &rec.BitrateKbps, &rec.Attempts,
		&rec.Fallback, &rec.Oversized, &check, &rec.OutputWidth, &rec.OutputHeight, &warnings, &rec.StorageURL,
	)
	if err != nil {
		return nil, err
	}

	rec.CreatedAt = time.UnixMilli(created)
	rec.FinishedAt = time.UnixMilli(finished)
	rec.Format = encoding.Format(format)
	rec.Mode = encoding.Mode(mode)
	rec.SizeCheck = encoding.SizeCheck(check)
	if warnings != "" && warnings != "[]" {
		if err := json.Unmarshal([]byte(warnings), &rec.Warnings); err != nil {
			return nil, fmt.Errorf("session %s: corrupt warnings column: %w", rec.ID, err)
		}
	}
	return &rec, nil
}
