package scheduler

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/snarg/lecturescribe/internal/extract"
)

// Progress is a point-in-time view of a run.
type Progress struct {
	RunID        string  `json:"run_id,omitempty"`
	CourseID     string  `json:"course_id,omitempty"`
	Running      bool    `json:"running"`
	Lanes        int     `json:"lanes"`
	Total        int64   `json:"total"`
	Done         int64   `json:"done"`
	OK           int64   `json:"ok"`
	NoTranscript int64   `json:"no_transcript"`
	Failed       int64   `json:"failed"`
	Skipped      int64   `json:"skipped"`
	ElapsedSec   float64 `json:"elapsed_sec"`
}

// Tracker accumulates lecture outcomes for polling. Safe for concurrent use.
type Tracker struct {
	runID    string
	courseID string

	total        atomic.Int64
	done         atomic.Int64
	ok           atomic.Int64
	noTranscript atomic.Int64
	failed       atomic.Int64
	skipped      atomic.Int64
	running      atomic.Bool

	mu       sync.Mutex
	lanes    int
	started  time.Time
	finished time.Time
}

// NewTracker creates an idle tracker.
func NewTracker(runID, courseID string) *Tracker {
	return &Tracker{runID: runID, courseID: courseID}
}

// Start resets counters for a run of total items over lanes lanes.
func (t *Tracker) Start(total, lanes int) {
	t.total.Store(int64(total))
	t.done.Store(0)
	t.ok.Store(0)
	t.noTranscript.Store(0)
	t.failed.Store(0)
	t.skipped.Store(0)
	t.mu.Lock()
	t.lanes = lanes
	t.started = time.Now()
	t.finished = time.Time{}
	t.mu.Unlock()
	t.running.Store(true)
}

// Record counts one result.
func (t *Tracker) Record(r extract.Result) {
	switch r.Status {
	case extract.StatusOK:
		t.ok.Add(1)
	case extract.StatusNoTranscript:
		t.noTranscript.Add(1)
	default:
		t.failed.Add(1)
	}
	if r.Skipped {
		t.skipped.Add(1)
	}
	t.done.Add(1)
}

// Finish marks the run as no longer running.
func (t *Tracker) Finish() {
	t.mu.Lock()
	t.finished = time.Now()
	t.mu.Unlock()
	t.running.Store(false)
}

// Snapshot returns the current progress.
func (t *Tracker) Snapshot() Progress {
	t.mu.Lock()
	lanes, started, finished := t.lanes, t.started, t.finished
	t.mu.Unlock()

	var elapsed time.Duration
	switch {
	case started.IsZero():
	case finished.IsZero():
		elapsed = time.Since(started)
	default:
		elapsed = finished.Sub(started)
	}

	return Progress{
		RunID:        t.runID,
		CourseID:     t.courseID,
		Running:      t.running.Load(),
		Lanes:        lanes,
		Total:        t.total.Load(),
		Done:         t.done.Load(),
		OK:           t.ok.Load(),
		NoTranscript: t.noTranscript.Load(),
		Failed:       t.failed.Load(),
		Skipped:      t.skipped.Load(),
		ElapsedSec:   elapsed.Seconds(),
	}
}
