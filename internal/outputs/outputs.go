package outputs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"trimsizer/internal/filesystem"
	"trimsizer/internal/logging"
	"trimsizer/internal/metrics"
)

// PosterName is the cached preview image inside a session directory.
const PosterName = "poster.jpg"

var (
	// ErrNotFound is returned when a session has no stored artifact.
	ErrNotFound = errors.New("artifact not found")
	// ErrInvalidSession is returned for IDs that are not safe directory names.
	ErrInvalidSession = errors.New("invalid session id")
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// Store keeps finished artifacts under root/<session>/ until they expire.
type Store struct {
	root      string
	retention time.Duration
	retry     filesystem.RetryConfig
}

// New creates the output root if needed.
func New(root string, retention time.Duration) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Store{root: abs, retention: retention, retry: filesystem.DefaultRetryConfig()}, nil
}

// Root returns the absolute output directory.
func (s *Store) Root() string {
	return s.root
}

// Retention returns how long artifacts are kept.
func (s *Store) Retention() time.Duration {
	return s.retention
}

// ValidSessionID reports whether id can name a session directory.
func ValidSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

// Dir returns the directory for a session.
func (s *Store) Dir(sessionID string) (string, error) {
	if !ValidSessionID(sessionID) {
		return "", ErrInvalidSession
	}
	return filepath.Join(s.root, sessionID), nil
}

// Prepare creates an empty directory for a new session.
func (s *Store) Prepare(sessionID string) (string, error) {
	dir, err := s.Dir(sessionID)
	if err != nil {
		return "", err
	}
	if err := filesystem.RemoveAllWithRetry(dir, s.retry); err != nil {
		return "", fmt.Errorf("failed to clear output directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	return dir, nil
}

// Artifact returns the path of a session's artifact.
func (s *Store) Artifact(sessionID string) (string, error) {
	dir, err := s.Dir(sessionID)
	if err != nil {
		return "", err
	}

	entries, err := filesystem.ReadDirWithRetry(dir, s.retry)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read %s: %w", dir, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == PosterName || strings.HasPrefix(name, ".") || strings.Contains(name, ".tmp") {
			continue
		}
		return filepath.Join(dir, name), nil
	}
	return "", ErrNotFound
}

// PosterPath returns where a session's poster is cached.
func (s *Store) PosterPath(sessionID string) (string, error) {
	dir, err := s.Dir(sessionID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, PosterName), nil
}

// HasPoster reports whether a cached poster exists.
func (s *Store) HasPoster(sessionID string) bool {
	path, err := s.PosterPath(sessionID)
	if err != nil {
		return false
	}
	info, err := filesystem.StatWithRetry(path, s.retry)
	return err == nil && info.Size() > 0
}

// Remove deletes a session's outputs.
func (s *Store) Remove(sessionID string) error {
	dir, err := s.Dir(sessionID)
	if err != nil {
		return err
	}
	return filesystem.RemoveAllWithRetry(dir, s.retry)
}

// ExpireResult summarises one Expire pass.
type ExpireResult struct {
	Removed    []string
	FreedBytes int64
}

// Expire removes session directories last modified before now-retention.
// A zero retention keeps everything.
func (s *Store) Expire(now time.Time) (ExpireResult, error) {
	var result ExpireResult
	if s.retention <= 0 {
		return result, nil
	}
	cutoff := now.Add(-s.retention)

	entries, err := filesystem.ReadDirWithRetry(s.root, s.retry)
	if err != nil {
		return result, fmt.Errorf("failed to read output directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(s.root, entry.Name())
		size, _ := dirSize(path)
		if err := filesystem.RemoveAllWithRetry(path, s.retry); err != nil {
			logging.Warn("failed to remove expired output %s: %v", path, err)
			continue
		}
		result.Removed = append(result.Removed, entry.Name())
		result.FreedBytes += size
	}

	sort.Strings(result.Removed)
	if n := len(result.Removed); n > 0 {
		metrics.OutputsExpiredTotal.Add(float64(n))
		logging.Info("Expired %d output(s), freed %d bytes", n, result.FreedBytes)
	}
	return result, nil
}

// Size returns the total bytes under the output root.
func (s *Store) Size() (int64, error) {
	return dirSize(s.root)
}

func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.WalkDir(path, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		size += info.Size()
		return nil
	})
	return size, err
}
