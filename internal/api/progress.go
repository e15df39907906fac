package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/snarg/lecturescribe/internal/database"
	"github.com/snarg/lecturescribe/internal/scheduler"
)

// ProgressSource provides the live run snapshot.
type ProgressSource interface {
	Snapshot() scheduler.Progress
}

// RunLedger is the read side of the run ledger.
type RunLedger interface {
	Pinger
	ListRuns(ctx context.Context, courseID string, limit, offset int) ([]database.Run, error)
	RunResults(ctx context.Context, runID string) ([]database.LectureResultRow, error)
}

type ProgressHandler struct {
	progress ProgressSource
}

func (h *ProgressHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.progress == nil {
		WriteError(w, http.StatusNotFound, "no run in progress")
		return
	}
	WriteJSON(w, http.StatusOK, h.progress.Snapshot())
}

type RunsHandler struct {
	ledger RunLedger
}

// ListRuns serves GET /api/v1/runs?course_id=&limit=&offset=.
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	p, err := ParsePagination(r)
	if err != nil {
		WriteErrorDetail(w, http.StatusBadRequest, "invalid pagination", err.Error())
		return
	}
	runs, err := h.ledger.ListRuns(r.Context(), r.URL.Query().Get("course_id"), p.Limit, p.Offset)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []database.Run{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"runs": runs, "limit": p.Limit, "offset": p.Offset})
}

// RunResults serves GET /api/v1/runs/{runID}/results.
func (h *RunsHandler) RunResults(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if _, err := uuid.Parse(runID); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid run id")
		return
	}
	rows, err := h.ledger.RunResults(r.Context(), runID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to load run results")
		return
	}
	if rows == nil {
		rows = []database.LectureResultRow{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"run_id": runID, "results": rows})
}
