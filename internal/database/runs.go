package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// RunCounts are the per-status totals of a run.
type RunCounts struct {
	OK           int `json:"ok"`
	NoTranscript int `json:"no_transcript"`
	Errors       int `json:"errors"`
	Skipped      int `json:"skipped"`
	Aborted      int `json:"aborted"`
}

// Run is one row of the runs table.
type Run struct {
	RunID       string     `json:"run_id"`
	CourseID    string     `json:"course_id"`
	CourseTitle string     `json:"course_title"`
	Lanes       int        `json:"lanes"`
	Lectures    int        `json:"lectures"`
	Captions    bool       `json:"captions"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	RunCounts
}

// LectureResultRow is one lecture outcome within a run.
type LectureResultRow struct {
	RunID         string        `json:"-"`
	LectureID     int64         `json:"lecture_id"`
	Position      int           `json:"position"`
	Lane          int           `json:"lane"`
	Status        string        `json:"status"`
	Error         string        `json:"error,omitempty"`
	TranscriptKey string        `json:"transcript_key"`
	SubtitleKey   string        `json:"subtitle_key,omitempty"`
	Cues          int           `json:"cues"`
	Duration      time.Duration `json:"duration"`
}

// InsertRun records the start of a run.
func (db *DB) InsertRun(ctx context.Context, r Run) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO runs (run_id, course_id, course_title, lanes, lectures, captions, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.RunID, r.CourseID, r.CourseTitle, r.Lanes, r.Lectures, r.Captions, r.StartedAt)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.RunID, err)
	}
	return nil
}

// RecordResult stores a lecture outcome. Recording the same lecture twice
// in a run keeps the latest outcome.
func (db *DB) RecordResult(ctx context.Context, row LectureResultRow) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO lecture_results (run_id, lecture_id, position, lane, status, error,
			transcript_key, subtitle_key, cues, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (run_id, lecture_id) DO UPDATE SET
			lane           = EXCLUDED.lane,
			status         = EXCLUDED.status,
			error          = EXCLUDED.error,
			transcript_key = EXCLUDED.transcript_key,
			subtitle_key   = EXCLUDED.subtitle_key,
			cues           = EXCLUDED.cues,
			duration_ms    = EXCLUDED.duration_ms,
			recorded_at    = now()
	`, row.RunID, row.LectureID, row.Position, row.Lane, row.Status, row.Error,
		row.TranscriptKey, row.SubtitleKey, row.Cues, row.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("record lecture %d: %w", row.LectureID, err)
	}
	return nil
}

// FinishRun stamps the end time and final counts of a run.
func (db *DB) FinishRun(ctx context.Context, runID string, c RunCounts) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE runs SET
			finished_at   = now(),
			ok            = $2,
			no_transcript = $3,
			errors        = $4,
			skipped       = $5,
			aborted       = $6
		WHERE run_id = $1
	`, runID, c.OK, c.NoTranscript, c.Errors, c.Skipped, c.Aborted)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	return nil
}

// ListRuns returns runs newest first. An empty courseID lists every course.
func (db *DB) ListRuns(ctx context.Context, courseID string, limit, offset int) ([]Run, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT run_id::text, course_id, course_title, lanes, lectures, captions,
			started_at, finished_at, ok, no_transcript, errors, skipped, aborted
		FROM runs
		WHERE $1 = '' OR course_id = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3
	`, courseID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.RunID, &r.CourseID, &r.CourseTitle, &r.Lanes, &r.Lectures, &r.Captions,
			&r.StartedAt, &r.FinishedAt, &r.OK, &r.NoTranscript, &r.Errors, &r.Skipped, &r.Aborted); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunResults returns the lecture outcomes of a run in position order.
func (db *DB) RunResults(ctx context.Context, runID string) ([]LectureResultRow, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT run_id::text, lecture_id, position, lane, status, error,
			transcript_key, subtitle_key, cues, duration_ms
		FROM lecture_results
		WHERE run_id = $1
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (LectureResultRow, error) {
		var r LectureResultRow
		var ms int64
		err := row.Scan(&r.RunID, &r.LectureID, &r.Position, &r.Lane, &r.Status, &r.Error,
			&r.TranscriptKey, &r.SubtitleKey, &r.Cues, &ms)
		r.Duration = time.Duration(ms) * time.Millisecond
		return r, err
	})
}
