package scratch

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"trimsizer/internal/logging"
)

var (
	// ErrClosed is returned by operations on an arena after Close.
	ErrClosed = errors.New("scratch arena closed")
	// ErrInvalidName is returned for artifact names that are not a single path element.
	ErrInvalidName = errors.New("invalid scratch artifact name")
)

// Manager owns the scratch root. Every encode session gets its own arena
// directory below it.
type Manager struct {
	root string
}

// NewManager creates the scratch root if needed.
func NewManager(root string) (*Manager, error) {
	if root == "" {
		return nil, errors.New("scratch root is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scratch root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scratch root: %w", err)
	}
	return &Manager{root: abs}, nil
}

// Root returns the absolute scratch root.
func (m *Manager) Root() string {
	return m.root
}

// Open creates a fresh arena. An empty id gets a random UUID. Anything left
// under the same id by an earlier run is removed first.
func (m *Manager) Open(id string) (*Arena, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if err := validName(id); err != nil {
		return nil, err
	}

	dir := filepath.Join(m.root, id)
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("failed to purge stale arena %s: %w", id, err)
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create arena %s: %w", id, err)
	}

	logging.Debug("scratch: opened arena %s", dir)
	return &Arena{id: id, dir: dir}, nil
}

// Arenas lists the arena ids currently on disk.
func (m *Manager) Arenas() ([]string, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read scratch root: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			ids = append(ids, entry.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Size returns the total bytes held under the scratch root.
func (m *Manager) Size() (int64, error) {
	return dirSize(m.root)
}

// Purge removes every arena and stray file under the root and returns the
// number of bytes freed. Callers must make sure no session is running.
func (m *Manager) Purge() (int64, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read scratch root: %w", err)
	}

	var freedBytes int64
	for _, entry := range entries {
		path := filepath.Join(m.root, entry.Name())

		if entry.IsDir() {
			size, _ := dirSize(path)
			if err := os.RemoveAll(path); err != nil {
				logging.Warn("failed to remove arena %s: %v", path, err)
				continue
			}
			freedBytes += size
			continue
		}

		info, err := entry.Info()
		if err != nil {
			logging.Warn("failed to get info for %s: %v", path, err)
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logging.Warn("failed to remove file %s: %v", path, err)
			continue
		}
		freedBytes += info.Size()
	}

	if freedBytes > 0 {
		logging.Info("Purged scratch directory: freed %d bytes", freedBytes)
	}
	return freedBytes, nil
}

// Arena is the working directory of one encode session. It is not safe for
// use by more than one session.
type Arena struct {
	id  string
	dir string

	mu     sync.Mutex
	closed bool
}

// ID returns the session id the arena was opened with.
func (a *Arena) ID() string {
	return a.id
}

// Dir returns the arena directory.
func (a *Arena) Dir() string {
	return a.dir
}

// Handle names an artifact inside the arena. The file does not need to exist.
func (a *Arena) Handle(name string) (Handle, error) {
	if err := validName(name); err != nil {
		return Handle{}, err
	}
	if a.isClosed() {
		return Handle{}, ErrClosed
	}
	return Handle{arena: a, name: name}, nil
}

// Import places a copy of src in the arena under name. A hard link is tried
// first; a byte copy is used when linking is not possible.
func (a *Arena) Import(src, name string) (Handle, error) {
	h, err := a.Handle(name)
	if err != nil {
		return Handle{}, err
	}
	dst := h.Path()

	if err := os.Link(src, dst); err == nil {
		return h, nil
	}

	if err := copyFile(src, dst); err != nil {
		return Handle{}, fmt.Errorf("failed to import %s: %w", src, err)
	}
	return h, nil
}

// List returns the names of artifacts currently in the arena. A closed arena
// lists nothing.
func (a *Arena) List() ([]string, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list arena %s: %w", a.id, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Promote moves the artifact out of the arena to dest and returns its size.
func (a *Arena) Promote(h Handle, dest string) (int64, error) {
	if h.arena != a {
		return 0, fmt.Errorf("handle %q does not belong to arena %s", h.name, a.id)
	}
	info, err := os.Stat(h.Path())
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.Rename(h.Path(), dest); err != nil {
		// Cross-device: copy then drop the scratch copy.
		if cerr := copyFile(h.Path(), dest); cerr != nil {
			return 0, fmt.Errorf("failed to promote %s: %w", h.name, cerr)
		}
		if rerr := h.Release(); rerr != nil {
			logging.Warn("failed to release promoted artifact %s: %v", h.name, rerr)
		}
	}

	logging.Debug("scratch: promoted %s to %s (%d bytes)", h.name, dest, info.Size())
	return info.Size(), nil
}

// Close removes the arena and everything in it. It is safe to call more
// than once.
func (a *Arena) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true

	if err := os.RemoveAll(a.dir); err != nil {
		return fmt.Errorf("failed to remove arena %s: %w", a.id, err)
	}
	logging.Debug("scratch: closed arena %s", a.dir)
	return nil
}

func (a *Arena) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// Handle is a named artifact inside an arena. The zero value is not valid.
type Handle struct {
	arena *Arena
	name  string
}

// Name returns the artifact name.
func (h Handle) Name() string {
	return h.name
}

// Path returns the artifact's filesystem path.
func (h Handle) Path() string {
	if h.arena == nil {
		return ""
	}
	return filepath.Join(h.arena.dir, h.name)
}

// Valid reports whether the handle refers to an arena.
func (h Handle) Valid() bool {
	return h.arena != nil && h.name != ""
}

// Size returns the artifact's byte length.
func (h Handle) Size() (int64, error) {
	if !h.Valid() {
		return 0, os.ErrNotExist
	}
	info, err := os.Stat(h.Path())
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", h.name)
	}
	return info.Size(), nil
}

// Exists reports whether the artifact is present and non-empty.
func (h Handle) Exists() bool {
	size, err := h.Size()
	return err == nil && size > 0
}

// Release removes the artifact. Missing artifacts are not an error.
func (h Handle) Release() error {
	if !h.Valid() {
		return nil
	}
	if err := os.Remove(h.Path()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
