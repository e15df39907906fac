// Package scheduler fans work items out over a fixed number of lanes, each
// owning one browser session, and joins them.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/lecturescribe/internal/browser"
	"github.com/snarg/lecturescribe/internal/course"
	"github.com/snarg/lecturescribe/internal/extract"
)

// DefaultLanes is used when no lane count is configured.
const DefaultLanes = 5

// Processor runs one lecture in a session. Fail records a lecture that could
// not be attempted, writing its placeholder.
type Processor interface {
	Process(ctx context.Context, s browser.Session, item course.WorkItem) extract.Result
	Fail(ctx context.Context, item course.WorkItem, cause error) extract.Result
}

// ResultFunc is called once per finished item from the lane that produced
// it. Implementations must be safe for concurrent use.
type ResultFunc func(extract.Result)

// Options configures a Scheduler.
type Options struct {
	Lanes     int
	Factory   browser.Factory
	Processor Processor
	Tracker   *Tracker
	OnResult  ResultFunc
	Log       zerolog.Logger
}

// Summary is the outcome of a run. Results are ordered by position.
type Summary struct {
	Total        int
	OK           int
	NoTranscript int
	Errors       int
	Skipped      int
	// Aborted counts items never attempted because the run was cancelled.
	Aborted  int
	Lanes    int
	Duration time.Duration
	Results  []extract.Result
}

// Scheduler runs a partitioned set of work items. It performs no retries and
// no rebalancing.
type Scheduler struct {
	opts Options
	log  zerolog.Logger
}

// New creates a Scheduler.
func New(opts Options) *Scheduler {
	if opts.Lanes < 1 {
		opts.Lanes = DefaultLanes
	}
	return &Scheduler{
		opts: opts,
		log:  opts.Log.With().Str("component", "scheduler").Logger(),
	}
}

// Partition deals items round-robin by position into k lanes. Lane i holds
// items i, i+k, i+2k and so on. k below one is treated as one.
func Partition(items []course.WorkItem, k int) [][]course.WorkItem {
	if k < 1 {
		k = 1
	}
	lanes := make([][]course.WorkItem, k)
	for i, item := range items {
		lanes[i%k] = append(lanes[i%k], item)
	}
	return lanes
}

// Run processes every item and returns after all lanes finish. Lanes never
// exceed the number of items, so no idle session is opened.
func (s *Scheduler) Run(ctx context.Context, items []course.WorkItem) Summary {
	start := time.Now()
	k := min(s.opts.Lanes, len(items))
	if s.opts.Tracker != nil {
		s.opts.Tracker.Start(len(items), k)
		defer s.opts.Tracker.Finish()
	}
	if k == 0 {
		return Summary{}
	}

	var (
		mu      sync.Mutex
		results = make([]extract.Result, 0, len(items))
		aborted atomic.Int64
		wg      sync.WaitGroup
	)
	emit := func(r extract.Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
		if s.opts.Tracker != nil {
			s.opts.Tracker.Record(r)
		}
		if s.opts.OnResult != nil {
			s.opts.OnResult(r)
		}
	}

	s.log.Info().Int("items", len(items)).Int("lanes", k).Msg("extraction started")
	for lane, part := range Partition(items, k) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			aborted.Add(int64(s.runLane(ctx, lane, part, emit)))
		}()
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Position < results[j].Position })
	sum := Summary{
		Total:    len(items),
		Aborted:  int(aborted.Load()),
		Lanes:    k,
		Duration: time.Since(start),
		Results:  results,
	}
	for _, r := range results {
		switch r.Status {
		case extract.StatusOK:
			sum.OK++
		case extract.StatusNoTranscript:
			sum.NoTranscript++
		default:
			sum.Errors++
		}
		if r.Skipped {
			sum.Skipped++
		}
	}
	s.log.Info().
		Int("ok", sum.OK).
		Int("no_transcript", sum.NoTranscript).
		Int("errors", sum.Errors).
		Int("aborted", sum.Aborted).
		Dur("elapsed", sum.Duration).
		Msg("extraction finished")
	return sum
}

// runLane processes part in order within one session and returns the number
// of items left unattempted because ctx was cancelled.
func (s *Scheduler) runLane(ctx context.Context, lane int, part []course.WorkItem, emit ResultFunc) int {
	log := s.log.With().Int("lane", lane).Logger()
	if ctx.Err() != nil {
		return len(part)
	}

	sess, err := s.opts.Factory.NewSession(ctx)
	if err != nil && ctx.Err() != nil {
		log.Warn().Err(err).Int("remaining", len(part)).Msg("lane cancelled before session opened")
		return len(part)
	}
	if err != nil {
		log.Error().Err(err).Int("items", len(part)).Msg("lane session failed, recording lane items as errors")
		cause := fmt.Errorf("open browser session: %w", err)
		for _, item := range part {
			r := s.opts.Processor.Fail(ctx, item, cause)
			r.Lane = lane
			emit(r)
		}
		return 0
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Warn().Err(err).Msg("session close failed")
		}
	}()

	log.Debug().Int("items", len(part)).Msg("lane started")
	for i, item := range part {
		if ctx.Err() != nil {
			log.Warn().Int("remaining", len(part)-i).Msg("lane cancelled")
			return len(part) - i
		}
		r := s.opts.Processor.Process(ctx, sess, item)
		r.Lane = lane
		ev := log.Info()
		if r.Status == extract.StatusError {
			ev = log.Warn().Err(r.Err)
		}
		ev.Int64("lecture_id", r.LectureID).
			Int("position", r.Position).
			Str("status", string(r.Status)).
			Bool("skipped", r.Skipped).
			Dur("elapsed", r.Duration).
			Msg("lecture processed")
		emit(r)
	}
	return 0
}
