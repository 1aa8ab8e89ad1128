package progress

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"trimsizer/internal/encoding"
)

func fixedClock(t *Tracker) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var n int
	var mu sync.Mutex
	t.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func TestTrackerLifecycle(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	fixedClock(tr)

	if s := tr.Snapshot(); s.Active || s.SessionID != "" {
		t.Fatalf("new tracker snapshot = %+v", s)
	}

	rep := tr.Begin("abc")
	rep.Report(5, "Input copied")
	rep.Report(27, "Attempt 1/4: CRF 26 fits (1.00 MB)")

	s := tr.Snapshot()
	if !s.Active || s.Percent != 27 || s.Message != "Attempt 1/4: CRF 26 fits (1.00 MB)" {
		t.Errorf("running snapshot = %+v", s)
	}
	if !s.UpdatedAt.After(s.StartedAt) {
		t.Error("UpdatedAt should advance")
	}

	tr.Finish("abc", []string{"Low bitrate"}, nil)
	s = tr.Snapshot()
	if s.Active || s.Percent != 100 || s.Error != "" {
		t.Errorf("finished snapshot = %+v", s)
	}
	if !reflect.DeepEqual(s.Warnings, []string{"Low bitrate"}) {
		t.Errorf("Warnings = %v", s.Warnings)
	}
}

func TestTrackerPercentNeverDecreases(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	rep := tr.Begin("s")
	rep.Report(45, "Encoding")
	rep.Report(5, "High resolution source detected")

	s := tr.Snapshot()
	if s.Percent != 45 {
		t.Errorf("Percent = %d, want 45", s.Percent)
	}
	if s.Message != "High resolution source detected" {
		t.Errorf("Message = %q", s.Message)
	}
}

func TestTrackerFinishWithError(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	rep := tr.Begin("s")
	rep.Report(62, "Attempt 3/4")

	err := &encoding.Error{Kind: encoding.ErrSearchExhausted, Op: "search", Err: errors.New("boom")}
	tr.Finish("s", nil, err)

	s := tr.Snapshot()
	if s.Active || s.Percent != 62 {
		t.Errorf("snapshot = %+v", s)
	}
	if s.ErrorKind != "search_exhausted" || s.Error == "" {
		t.Errorf("error fields = %q %q", s.ErrorKind, s.Error)
	}
}

func TestTrackerIgnoresStaleReporter(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	old := tr.Begin("first")
	tr.Finish("first", nil, nil)
	tr.Begin("second")

	old.Report(80, "late update")
	tr.Finish("first", nil, errors.New("late finish"))

	s := tr.Snapshot()
	if s.SessionID != "second" || s.Percent != 0 || s.Error != "" || !s.Active {
		t.Errorf("stale updates leaked into %+v", s)
	}
}

func TestTrackerBeginOnReport(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	running := tr.Begin("running")
	running.Report(40, "Attempt 2/4")

	refused := tr.BeginOnReport("refused")
	tr.Finish("refused", nil, errors.New("busy"))

	if s := tr.Snapshot(); s.SessionID != "running" || !s.Active || s.Percent != 40 {
		t.Fatalf("refused session disturbed the tracker: %+v", s)
	}

	refused.Report(5, "Input copied")
	if s := tr.Snapshot(); s.SessionID != "refused" || s.Percent != 5 {
		t.Errorf("first report should begin the session: %+v", s)
	}
}

func TestTrackerSnapshotIsCopy(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.Begin("s")
	tr.Finish("s", []string{"a"}, nil)

	s := tr.Snapshot()
	s.Warnings[0] = "mutated"
	if tr.Snapshot().Warnings[0] != "a" {
		t.Error("Snapshot must not share the warnings slice")
	}
}

func TestTrackerConcurrentReaders(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	rep := tr.Begin("s")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = tr.Snapshot()
			}
		}()
	}
	for p := 0; p <= 100; p++ {
		rep.Report(p, fmt.Sprintf("step %d", p))
	}
	wg.Wait()

	if tr.Snapshot().Percent != 100 {
		t.Errorf("Percent = %d", tr.Snapshot().Percent)
	}
}

func TestMulti(t *testing.T) {
	t.Parallel()

	var a, b []int
	rep := Multi(
		encoding.ReporterFunc(func(p int, _ string) { a = append(a, p) }),
		nil,
		encoding.ReporterFunc(func(p int, _ string) { b = append(b, p) }),
	)
	rep.Report(10, "x")
	rep.Report(95, "y")

	if !reflect.DeepEqual(a, []int{10, 95}) || !reflect.DeepEqual(b, []int{10, 95}) {
		t.Errorf("a = %v, b = %v", a, b)
	}
}

func TestShortID(t *testing.T) {
	t.Parallel()

	if got := shortID("0123456789abcdef"); got != "01234567" {
		t.Errorf("shortID = %q", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Errorf("shortID = %q", got)
	}
}
