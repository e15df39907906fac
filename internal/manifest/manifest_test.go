package manifest

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/snarg/lecturescribe/internal/course"
	"github.com/snarg/lecturescribe/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleStructure() *course.Structure {
	created := time.Date(2021, time.January, 2, 10, 0, 0, 0, time.UTC)
	intro := &course.Chapter{ID: 1, Title: "Intro", Ordinal: 1}
	intro.Lectures = []*course.Lecture{
		{ID: 10, Title: "Welcome", Ordinal: 1, DurationSeconds: 150, CreatedAt: created, Chapter: intro},
		{ID: 11, Title: "Setup", Ordinal: 2, DurationSeconds: 59, CreatedAt: created, Chapter: intro},
	}
	empty := &course.Chapter{ID: 2, Title: "Coming soon", Ordinal: 2}
	return &course.Structure{
		Chapters:   []*course.Chapter{intro, empty},
		Standalone: []*course.Lecture{{ID: 20, Title: "Bonus", Ordinal: 1, DurationSeconds: 600}},
	}
}

func TestRender(t *testing.T) {
	got := Render(sampleStructure(), Options{Locale: "en_US"})
	want := "1. Intro\n" +
		"1.1 Welcome [2 min, Jan 2, 2021]\n" +
		"1.2 Setup [0 min, Jan 2, 2021]\n" +
		"\n" +
		"2. Coming soon\n" +
		"\n" +
		"1. Bonus [10 min, -]\n"
	assert.Equal(t, want, got)
}

func TestRender_Empty(t *testing.T) {
	assert.Equal(t, "", Render(&course.Structure{}, Options{}))
}

func TestDateLayout(t *testing.T) {
	day := time.Date(2021, time.March, 4, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		locale string
		want   string
	}{
		{"en_US", "Mar 4, 2021"},
		{"en-GB", "4 Mar 2021"},
		{"de_DE", "04.03.2021"},
		{"fr", "04/03/2021"},
		{"ja_JP", "2021/03/04"},
		{"", "2021-03-04"},
		{"not a locale!", "2021-03-04"},
		{"sw", "2021-03-04"},
	}
	for _, tt := range tests {
		t.Run(tt.locale, func(t *testing.T) {
			assert.Equal(t, tt.want, day.Format(DateLayout(tt.locale)))
		})
	}
}

func TestParse_RoundTrip(t *testing.T) {
	s := sampleStructure()
	o := Parse(Render(s, Options{Locale: "de_DE"}))

	require.Len(t, o.Chapters, len(s.Chapters))
	for i, c := range s.Chapters {
		assert.Equal(t, c.Ordinal, o.Chapters[i].Ordinal)
		assert.Equal(t, c.Title, o.Chapters[i].Title)
		require.Len(t, o.Chapters[i].Lectures, len(c.Lectures))
		for j, l := range c.Lectures {
			assert.Equal(t, l.Ordinal, o.Chapters[i].Lectures[j])
		}
	}
	assert.Equal(t, []int{1}, o.Standalone)
	assert.Equal(t, s.LectureCount(), o.LectureCount())
}

func TestParse_IgnoresNoise(t *testing.T) {
	o := Parse("garbage\r\n1. Only\r\n2.1 Orphan [1 min, -]\r\n")
	require.Len(t, o.Chapters, 1)
	assert.Empty(t, o.Chapters[0].Lectures, "lecture of another chapter is ignored")
}

func TestParse_ChapterTitleLooksLikeLecture(t *testing.T) {
	ch := &course.Chapter{ID: 1, Title: "Intro [5 min, x]", Ordinal: 1}
	ch.Lectures = []*course.Lecture{{ID: 10, Title: "Welcome", Ordinal: 1, DurationSeconds: 60, Chapter: ch}}
	s := &course.Structure{
		Chapters:   []*course.Chapter{ch},
		Standalone: []*course.Lecture{{ID: 20, Title: "Bonus", Ordinal: 1, DurationSeconds: 60}},
	}

	o := Parse(Render(s, Options{}))

	require.Len(t, o.Chapters, 1)
	assert.Equal(t, "Intro [5 min, x]", o.Chapters[0].Title)
	assert.Equal(t, []int{1}, o.Chapters[0].Lectures)
	assert.Equal(t, []int{1}, o.Standalone)
	assert.Equal(t, 2, o.LectureCount())
}

func TestWrite(t *testing.T) {
	store := storage.NewLocalStore(t.TempDir())
	ctx := context.Background()
	key := storage.Key("42", FileName)

	require.NoError(t, Write(ctx, store, key, sampleStructure(), Options{Locale: "en_US"}))

	rc, err := store.Open(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, Render(sampleStructure(), Options{Locale: "en_US"}), string(data))
}
