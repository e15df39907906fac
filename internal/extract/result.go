// Package extract runs the per-lecture transcript extraction state machine
// inside a single browser session.
package extract

import (
	"context"
	"errors"
	"time"

	"github.com/snarg/lecturescribe/internal/subtitle"
)

// ErrNoTranscript marks a lecture that has no transcript panel or whose
// panel stayed empty. It is an expected outcome, not a failure.
var ErrNoTranscript = errors.New("no transcript available")

// PlaceholderText is written in place of a transcript that could not be extracted.
const PlaceholderText = "[transcript not available]\n"

// Status is the terminal outcome of one lecture.
type Status string

const (
	StatusOK           Status = "ok"
	StatusNoTranscript Status = "no-transcript"
	StatusError        Status = "error"
)

// Result is produced once per work item. Transcript holds the text that was
// written, including the placeholder.
type Result struct {
	LectureID     int64
	Status        Status
	Transcript    string
	Subtitles     []subtitle.Record
	Err           error
	Lane          int
	Position      int
	Duration      time.Duration
	TranscriptKey string
	SubtitleKey   string
	// Skipped is set when an existing transcript artifact was kept as is.
	Skipped bool
}

// SettlePolicy names the pauses that absorb client-side rendering latency.
// Each delay precedes the next read or interaction of its class.
type SettlePolicy struct {
	PostNavigation time.Duration
	PostClick      time.Duration
	PostPanelOpen  time.Duration
}

// DefaultSettle matches the timings that proved reliable against the live player.
var DefaultSettle = SettlePolicy{
	PostNavigation: 5 * time.Second,
	PostClick:      1500 * time.Millisecond,
	PostPanelOpen:  time.Second,
}

// CaptionFetcher downloads a caption payload by URL.
type CaptionFetcher interface {
	Caption(ctx context.Context, sourceURL string) (string, error)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
