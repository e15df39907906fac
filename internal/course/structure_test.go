package course

import (
	"math/rand"
	"testing"

	"github.com/snarg/lecturescribe/internal/curriculum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chapter(id int64, order int, title string) curriculum.Record {
	return curriculum.Record{ID: id, Kind: curriculum.KindChapter, Title: title, SortOrder: order}
}

func video(id int64, order int, title string, dur int) curriculum.Record {
	return curriculum.Record{ID: id, Kind: curriculum.KindLecture, Title: title, SortOrder: order, AssetType: "Video", DurationSeconds: dur}
}

func TestResolve_Scenario(t *testing.T) {
	records := []curriculum.Record{
		chapter(1, 3, "Intro"),
		video(2, 2, "Welcome", 120),
		{ID: 3, Kind: curriculum.KindLecture, Title: "Quiz", SortOrder: 1, AssetType: "Quiz"},
	}

	s := Resolve(records)
	require.Len(t, s.Chapters, 1)
	assert.Equal(t, "Intro", s.Chapters[0].Title)
	assert.Equal(t, 1, s.Chapters[0].Ordinal)
	require.Len(t, s.Chapters[0].Lectures, 1)

	l := s.Chapters[0].Lectures[0]
	assert.Equal(t, "Welcome", l.Title)
	assert.Equal(t, 1, l.Ordinal)
	assert.Same(t, s.Chapters[0], l.Chapter)
	assert.Empty(t, s.Standalone)
	assert.Equal(t, 1, s.LectureCount())
}

func TestResolve_SortsDescendingRegardlessOfInputOrder(t *testing.T) {
	records := []curriculum.Record{
		video(5, 1, "B2", 60),
		chapter(4, 2, "Part B"),
		video(3, 3, "A2", 60),
		video(2, 4, "A1", 60),
		chapter(1, 5, "Part A"),
	}

	s := Resolve(records)
	require.Len(t, s.Chapters, 2)
	assert.Equal(t, "Part A", s.Chapters[0].Title)
	assert.Equal(t, "Part B", s.Chapters[1].Title)

	var titles []string
	for _, l := range s.Chapters[0].Lectures {
		titles = append(titles, l.Title)
	}
	assert.Equal(t, []string{"A1", "A2"}, titles)
	assert.Equal(t, "B2", s.Chapters[1].Lectures[0].Title)
	assert.Equal(t, 1, s.Chapters[1].Lectures[0].Ordinal, "lecture ordinals restart per chapter")
}

func TestResolve_LecturesBeforeFirstChapterAreStandalone(t *testing.T) {
	records := []curriculum.Record{
		video(1, 10, "Trailer", 30),
		video(2, 9, "Setup", 30),
		chapter(3, 8, "Basics"),
		video(4, 7, "Hello", 30),
	}

	s := Resolve(records)
	require.Len(t, s.Standalone, 2)
	assert.Equal(t, 1, s.Standalone[0].Ordinal)
	assert.Equal(t, 2, s.Standalone[1].Ordinal)
	assert.True(t, s.Standalone[0].Standalone())
	require.Len(t, s.Chapters, 1)
	assert.Equal(t, 1, s.Chapters[0].Lectures[0].Ordinal)
}

func TestResolve_SkipsNonVideoAndOtherKinds(t *testing.T) {
	records := []curriculum.Record{
		chapter(1, 5, "Only"),
		{ID: 2, Kind: curriculum.KindOther, Title: "Practice", SortOrder: 4},
		{ID: 3, Kind: curriculum.KindLecture, Title: "Article", SortOrder: 3, AssetType: "Article"},
		{ID: 4, Kind: curriculum.KindLecture, Title: "No asset", SortOrder: 2},
		video(5, 1, "Real", 10),
	}

	s := Resolve(records)
	require.Len(t, s.Chapters[0].Lectures, 1)
	assert.Equal(t, "Real", s.Chapters[0].Lectures[0].Title)
	assert.Equal(t, 1, s.Chapters[0].Lectures[0].Ordinal)
}

func TestResolve_EmptyInput(t *testing.T) {
	s := Resolve(nil)
	assert.Empty(t, s.Chapters)
	assert.Empty(t, s.Standalone)
	assert.Empty(t, s.WorkItems())
}

func TestResolve_OrdinalsContiguous(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for run := 0; run < 50; run++ {
		n := 1 + rng.Intn(40)
		records := make([]curriculum.Record, 0, n)
		for i := 0; i < n; i++ {
			switch rng.Intn(4) {
			case 0:
				records = append(records, chapter(int64(i), i, "c"))
			case 1:
				records = append(records, curriculum.Record{ID: int64(i), Kind: curriculum.KindOther, SortOrder: i})
			default:
				records = append(records, video(int64(i), i, "l", 60))
			}
		}
		rng.Shuffle(len(records), func(a, b int) { records[a], records[b] = records[b], records[a] })

		s := Resolve(records)
		for ci, c := range s.Chapters {
			if c.Ordinal != ci+1 {
				t.Fatalf("run %d: chapter %d has ordinal %d", run, ci, c.Ordinal)
			}
			for li, l := range c.Lectures {
				if l.Ordinal != li+1 {
					t.Fatalf("run %d: lecture %d of chapter %d has ordinal %d", run, li, ci, l.Ordinal)
				}
				if l.Chapter != c {
					t.Fatalf("run %d: lecture back-reference mismatch", run)
				}
			}
		}
		for li, l := range s.Standalone {
			if l.Ordinal != li+1 {
				t.Fatalf("run %d: standalone lecture %d has ordinal %d", run, li, l.Ordinal)
			}
		}
	}
}

func TestWorkItems(t *testing.T) {
	s := Resolve([]curriculum.Record{
		video(1, 10, "Loose", 10),
		chapter(2, 9, "One"),
		video(3, 8, "A", 10),
		video(4, 7, "B", 10),
		chapter(5, 6, "Two"),
		video(6, 5, "C", 10),
	})

	items := s.WorkItems()
	require.Len(t, items, s.LectureCount())

	var got []string
	for i, it := range items {
		assert.Equal(t, i, it.Position)
		got = append(got, it.Lecture.Title)
	}
	assert.Equal(t, []string{"A", "B", "C", "Loose"}, got)
	assert.Nil(t, items[3].Chapter)
	assert.Equal(t, "Two", items[2].Chapter.Title)
}
