package scratch

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "scratch"))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m
}

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestNewManagerRejectsEmptyRoot(t *testing.T) {
	t.Parallel()

	if _, err := NewManager(""); err == nil {
		t.Error("expected error for empty root")
	}
}

func TestOpenGeneratesID(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)

	a, err := m.Open("")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer a.Close()

	if len(a.ID()) != 36 {
		t.Errorf("expected UUID id, got %q", a.ID())
	}
	if filepath.Dir(a.Dir()) != m.Root() {
		t.Errorf("arena %s is not under root %s", a.Dir(), m.Root())
	}
}

func TestOpenPurgesStaleArena(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)

	stale := filepath.Join(m.Root(), "session-1")
	if err := os.MkdirAll(stale, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(stale, "output.mp4"), 10)

	a, err := m.Open("session-1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer a.Close()

	names, err := a.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected empty arena, found %v", names)
	}
}

func TestHandleValidation(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	a, err := m.Open("names")
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	tests := []struct {
		name    string
		wantErr bool
	}{
		{"output.mp4", false},
		{"palette.png", false},
		{"", true},
		{".", true},
		{"..", true},
		{"../escape.mp4", true},
		{"sub/output.mp4", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Handle(tt.name)
			if (err != nil) != tt.wantErr {
				t.Errorf("Handle(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidName) {
				t.Errorf("expected ErrInvalidName, got %v", err)
			}
		})
	}
}

func TestImportListRelease(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	src := filepath.Join(t.TempDir(), "clip.mov")
	writeFile(t, src, 2048)

	a, err := m.Open("import")
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	in, err := a.Import(src, "input.mov")
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	size, err := in.Size()
	if err != nil || size != 2048 {
		t.Fatalf("Size() = %d, %v; want 2048", size, err)
	}

	out, _ := a.Handle("output.mp4")
	if out.Exists() {
		t.Error("output should not exist yet")
	}
	writeFile(t, out.Path(), 100)

	names, err := a.List()
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"input.mov", "output.mp4"}; !reflect.DeepEqual(names, want) {
		t.Errorf("List() = %v, want %v", names, want)
	}

	if err := out.Release(); err != nil {
		t.Errorf("Release() error = %v", err)
	}
	if err := out.Release(); err != nil {
		t.Errorf("second Release() should tolerate missing file, got %v", err)
	}

	// Releasing the arena copy must not touch the source.
	if err := in.Release(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Errorf("source removed with arena copy: %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	a, err := m.Open("close")
	if err != nil {
		t.Fatal(err)
	}
	h, _ := a.Handle("output.gif")
	writeFile(t, h.Path(), 10)

	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	names, err := a.List()
	if err != nil {
		t.Fatalf("List() after close error = %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected no artifacts after close, got %v", names)
	}
	if _, err := a.Handle("late.mp4"); !errors.Is(err, ErrClosed) {
		t.Errorf("Handle() after close error = %v, want ErrClosed", err)
	}
	if _, err := os.Stat(a.Dir()); !os.IsNotExist(err) {
		t.Errorf("arena directory still present: %v", err)
	}
}

func TestPromote(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	a, err := m.Open("promote")
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	h, _ := a.Handle("output.mp4")
	writeFile(t, h.Path(), 512)

	dest := filepath.Join(t.TempDir(), "outputs", "promote", "trimmed_video.mp4")
	size, err := a.Promote(h, dest)
	if err != nil {
		t.Fatalf("Promote() error = %v", err)
	}
	if size != 512 {
		t.Errorf("Promote() size = %d, want 512", size)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("promoted file missing: %v", err)
	}
	if h.Exists() {
		t.Error("artifact should have left the arena")
	}
}

func TestPromoteForeignHandle(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	a, _ := m.Open("a")
	b, _ := m.Open("b")
	defer a.Close()
	defer b.Close()

	h, _ := b.Handle("output.mp4")
	writeFile(t, h.Path(), 1)

	if _, err := a.Promote(h, filepath.Join(t.TempDir(), "x.mp4")); err == nil {
		t.Error("expected error promoting a handle from another arena")
	}
}

func TestPurge(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)

	a, _ := m.Open("one")
	h, _ := a.Handle("output.mp4")
	writeFile(t, h.Path(), 300)
	b, _ := m.Open("two")
	h2, _ := b.Handle("palette.png")
	writeFile(t, h2.Path(), 200)
	writeFile(t, filepath.Join(m.Root(), "stray.tmp"), 50)

	ids, err := m.Arenas()
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"one", "two"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("Arenas() = %v, want %v", ids, want)
	}

	total, err := m.Size()
	if err != nil || total != 550 {
		t.Errorf("Size() = %d, %v; want 550", total, err)
	}

	freed, err := m.Purge()
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if freed != 550 {
		t.Errorf("Purge() freed = %d, want 550", freed)
	}

	ids, _ = m.Arenas()
	if len(ids) != 0 {
		t.Errorf("expected no arenas after purge, got %v", ids)
	}
	// Closing an arena whose directory is already gone is fine.
	if err := a.Close(); err != nil {
		t.Errorf("Close() after purge error = %v", err)
	}
}
