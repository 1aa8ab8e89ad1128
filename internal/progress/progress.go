package progress

import (
	"sync"
	"sync/atomic"
	"time"

	"trimsizer/internal/encoding"
	"trimsizer/internal/logging"
)

// Snapshot is the latest known state of an encode session.
type Snapshot struct {
	SessionID  string    `json:"sessionId,omitempty"`
	Active     bool      `json:"active"`
	Percent    int       `json:"percent"`
	Message    string    `json:"message,omitempty"`
	Warnings   []string  `json:"warnings,omitempty"`
	Error      string    `json:"error,omitempty"`
	ErrorKind  string    `json:"errorKind,omitempty"`
	StartedAt  time.Time `json:"startedAt,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt,omitempty"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`
}

// Tracker holds the progress of the current (or last) session so that
// pollers can read it while the session runs.
type Tracker struct {
	mu    sync.Mutex // serialises writers
	state atomic.Value
	now   func() time.Time
}

// NewTracker creates a Tracker with no session.
func NewTracker() *Tracker {
	t := &Tracker{now: time.Now}
	t.state.Store(Snapshot{})
	return t
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	s, _ := t.state.Load().(Snapshot)
	if s.Warnings != nil {
		s.Warnings = append([]string(nil), s.Warnings...)
	}
	return s
}

// Begin resets the tracker for a new session and returns a Reporter bound
// to it. Updates from a reporter of an earlier session are ignored.
func (t *Tracker) Begin(sessionID string) encoding.Reporter {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.state.Store(Snapshot{
		SessionID: sessionID,
		Active:    true,
		StartedAt: now,
		UpdatedAt: now,
	})
	return encoding.ReporterFunc(func(percent int, message string) {
		t.update(sessionID, percent, message)
	})
}

// BeginOnReport is Begin deferred until the first update. A session that
// is refused before it reports anything leaves the tracker untouched.
func (t *Tracker) BeginOnReport(sessionID string) encoding.Reporter {
	var (
		once sync.Once
		rep  encoding.Reporter
	)
	return encoding.ReporterFunc(func(percent int, message string) {
		once.Do(func() { rep = t.Begin(sessionID) })
		rep.Report(percent, message)
	})
}

func (t *Tracker) update(sessionID string, percent int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.Snapshot()
	if s.SessionID != sessionID || !s.Active {
		return
	}
	if percent >= s.Percent {
		s.Percent = percent
	}
	s.Message = message
	s.UpdatedAt = t.now()
	t.state.Store(s)
}

// Finish marks the session done. Warnings come from the session result.
func (t *Tracker) Finish(sessionID string, warnings []string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.Snapshot()
	if s.SessionID != sessionID {
		return
	}
	s.Active = false
	s.Warnings = append([]string(nil), warnings...)
	s.FinishedAt = t.now()
	s.UpdatedAt = s.FinishedAt
	if err != nil {
		s.Error = err.Error()
		s.ErrorKind = encoding.KindName(err)
	} else {
		s.Percent = 100
	}
	t.state.Store(s)
}

// Log returns a Reporter that writes each update to the log.
func Log(sessionID string) encoding.Reporter {
	return encoding.ReporterFunc(func(percent int, message string) {
		logging.Info("[%s] %3d%% %s", shortID(sessionID), percent, message)
	})
}

// Multi fans each update out to every non-nil reporter.
func Multi(reporters ...encoding.Reporter) encoding.Reporter {
	var rs []encoding.Reporter
	for _, r := range reporters {
		if r != nil {
			rs = append(rs, r)
		}
	}
	return encoding.ReporterFunc(func(percent int, message string) {
		for _, r := range rs {
			r.Report(percent, message)
		}
	})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
