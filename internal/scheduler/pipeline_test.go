package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/snarg/lecturescribe/internal/browser/browsertest"
	"github.com/snarg/lecturescribe/internal/course"
	"github.com/snarg/lecturescribe/internal/curriculum"
	"github.com/snarg/lecturescribe/internal/extract"
	"github.com/snarg/lecturescribe/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipelineRecords() []curriculum.Record {
	video := func(id int64, order int, title string) curriculum.Record {
		return curriculum.Record{ID: id, Kind: curriculum.KindLecture, Title: title, SortOrder: order, AssetType: "Video", DurationSeconds: 60}
	}
	return []curriculum.Record{
		video(1, 20, "Preface"),
		{ID: 2, Kind: curriculum.KindChapter, Title: "Basics", SortOrder: 19},
		video(3, 18, "Welcome"),
		video(4, 17, "Setup"),
		video(5, 16, "Recap"),
		{ID: 6, Kind: curriculum.KindLecture, Title: "Check", SortOrder: 15, AssetType: "Quiz"},
		video(7, 14, "Tooling"),
		{ID: 8, Kind: curriculum.KindChapter, Title: "Advanced", SortOrder: 13},
		video(9, 12, "Welcome"),
		video(10, 11, "Recap"),
		video(11, 10, "Wrap up"),
	}
}

func TestRun_WritesOneTranscriptPerLecture(t *testing.T) {
	s := course.Resolve(pipelineRecords())
	items := s.WorkItems()
	require.Equal(t, 8, s.LectureCount())
	require.Len(t, items, 8)

	// One lane reads a panel, one finds no toggle, one never gets a browser.
	factory := &browsertest.Factory{New: func(n int) (*browsertest.Session, error) {
		switch n {
		case 0:
			sess := browsertest.NewSession().Show(extract.PanelSelector)
			sess.Markup[extract.PanelSelector] = []string{"<p>cue</p>"}
			return sess, nil
		case 1:
			return browsertest.NewSession(), nil
		default:
			return nil, errors.New("chrome crashed")
		}
	}}
	store := storage.NewLocalStore(t.TempDir())
	proc := extract.New(extract.Options{
		CourseID:    "42",
		LectureURL:  func(id int64) string { return fmt.Sprintf("https://example.com/learn/lecture/%d", id) },
		TextRetries: 1,
		Store:       store,
		Log:         zerolog.Nop(),
	})

	sum := New(Options{Lanes: 3, Factory: factory, Processor: proc, Log: zerolog.Nop()}).
		Run(context.Background(), items)

	assert.Equal(t, 8, sum.Total)
	require.Len(t, sum.Results, 8)
	assert.Zero(t, sum.Aborted)
	assert.Positive(t, sum.OK)
	assert.Positive(t, sum.NoTranscript)
	assert.Positive(t, sum.Errors)
	assert.Equal(t, 8, sum.OK+sum.NoTranscript+sum.Errors)

	files, err := filepath.Glob(filepath.Join(store.Dir(), "42", "transcripts", "*.txt"))
	require.NoError(t, err)
	assert.Len(t, files, s.LectureCount(), "exactly one transcript per lecture")

	keys := map[string]bool{}
	for _, r := range sum.Results {
		assert.False(t, keys[r.TranscriptKey], "duplicate key %s", r.TranscriptKey)
		keys[r.TranscriptKey] = true
		data, err := os.ReadFile(filepath.Join(store.Dir(), filepath.FromSlash(r.TranscriptKey)))
		require.NoError(t, err)
		if r.Status == extract.StatusOK {
			assert.Equal(t, "cue\n", string(data))
		} else {
			assert.Equal(t, extract.PlaceholderText, string(data))
		}
	}
	for _, k := range []string{"42/transcripts/1. Preface.txt", "42/transcripts/1.1 Welcome.txt", "42/transcripts/2.1 Welcome.txt"} {
		assert.True(t, keys[k], k)
	}
}
