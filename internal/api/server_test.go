package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/lecturescribe/internal/database"
	"github.com/snarg/lecturescribe/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	pingErr  error
	runs     []database.Run
	results  []database.LectureResultRow
	gotLimit int
	gotCID   string
}

func (f *fakeLedger) HealthCheck(context.Context) error { return f.pingErr }

func (f *fakeLedger) ListRuns(_ context.Context, courseID string, limit, _ int) ([]database.Run, error) {
	f.gotCID, f.gotLimit = courseID, limit
	return f.runs, nil
}

func (f *fakeLedger) RunResults(context.Context, string) ([]database.LectureResultRow, error) {
	return f.results, nil
}

func serve(h http.Handler, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Health(t *testing.T) {
	tests := []struct {
		name       string
		ledger     RunLedger
		wantStatus string
		wantDB     string
	}{
		{"no_ledger", nil, "healthy", "not_configured"},
		{"ledger_ok", &fakeLedger{}, "healthy", "ok"},
		{"ledger_down", &fakeLedger{pingErr: errors.New("refused")}, "degraded", "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRouter("secret", ServerOptions{Ledger: tt.ledger, StorageType: "local", StartTime: time.Now(), Log: zerolog.Nop()})
			rec := serve(h, "GET", "/api/v1/health", "")
			require.Equal(t, http.StatusOK, rec.Code)

			var body HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body.Status)
			assert.Equal(t, tt.wantDB, body.Checks["database"])
			assert.Equal(t, "local", body.Checks["storage"])
		})
	}
}

func TestRouter_Progress(t *testing.T) {
	tracker := scheduler.NewTracker("9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d", "42")
	tracker.Start(10, 2)
	h := NewRouter("secret", ServerOptions{Progress: tracker, Log: zerolog.Nop()})

	assert.Equal(t, http.StatusUnauthorized, serve(h, "GET", "/api/v1/progress", "").Code)

	rec := serve(h, "GET", "/api/v1/progress", "secret")
	require.Equal(t, http.StatusOK, rec.Code)
	var p scheduler.Progress
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.True(t, p.Running)
	assert.Equal(t, int64(10), p.Total)
	assert.Equal(t, "42", p.CourseID)
}

func TestRouter_ProgressWithoutRun(t *testing.T) {
	h := NewRouter("", ServerOptions{Log: zerolog.Nop()})
	assert.Equal(t, http.StatusNotFound, serve(h, "GET", "/api/v1/progress", "").Code)
}

func TestRouter_Runs(t *testing.T) {
	ledger := &fakeLedger{
		runs:    []database.Run{{RunID: "9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d", CourseID: "42", Lanes: 5}},
		results: []database.LectureResultRow{{LectureID: 7, Status: "ok"}},
	}
	h := NewRouter("", ServerOptions{Ledger: ledger, Log: zerolog.Nop()})

	rec := serve(h, "GET", "/api/v1/runs?course_id=42&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", ledger.gotCID)
	assert.Equal(t, 5, ledger.gotLimit)
	assert.Contains(t, rec.Body.String(), `"course_id":"42"`)

	assert.Equal(t, http.StatusBadRequest, serve(h, "GET", "/api/v1/runs?limit=0", "").Code)

	rec = serve(h, "GET", "/api/v1/runs/9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d/results", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"lecture_id":7`)

	assert.Equal(t, http.StatusBadRequest, serve(h, "GET", "/api/v1/runs/not-a-uuid/results", "").Code)
}

func TestRouter_RunsAbsentWithoutLedger(t *testing.T) {
	h := NewRouter("", ServerOptions{Log: zerolog.Nop()})
	assert.Equal(t, http.StatusNotFound, serve(h, "GET", "/api/v1/runs", "").Code)
}

func TestRouter_Metrics(t *testing.T) {
	h := NewRouter("secret", ServerOptions{Log: zerolog.Nop()})
	rec := serve(h, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "lecturescribe_")
}
