// Package manifest renders a resolved course structure as a plain-text table of contents.
package manifest

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/snarg/lecturescribe/internal/course"
	"github.com/snarg/lecturescribe/internal/storage"
	"golang.org/x/text/language"
)

// FileName is the manifest's name inside a course directory.
const FileName = "contents.txt"

const unknownDate = "-"

// Options controls rendering.
type Options struct {
	// Locale selects the date layout, e.g. "en_US" or "de-DE".
	Locale string
}

// Render produces the manifest text. Each chapter is followed by its
// lectures and a blank line; standalone lectures come last.
func Render(s *course.Structure, opts Options) string {
	layout := DateLayout(opts.Locale)
	var b strings.Builder
	for _, c := range s.Chapters {
		fmt.Fprintf(&b, "%d. %s\n", c.Ordinal, c.Title)
		for _, l := range c.Lectures {
			fmt.Fprintf(&b, "%d.%d %s %s\n", c.Ordinal, l.Ordinal, l.Title, details(l, layout))
		}
		b.WriteString("\n")
	}
	for _, l := range s.Standalone {
		fmt.Fprintf(&b, "%d. %s %s\n", l.Ordinal, l.Title, details(l, layout))
	}
	return b.String()
}

// Write renders the manifest and stores it under key. Write errors are returned as is.
func Write(ctx context.Context, store storage.ArtifactStore, key string, s *course.Structure, opts Options) error {
	if err := store.Save(ctx, key, []byte(Render(s, opts)), storage.ContentTypeText); err != nil {
		return fmt.Errorf("write manifest %s: %w", key, err)
	}
	return nil
}

func details(l *course.Lecture, layout string) string {
	date := unknownDate
	if !l.CreatedAt.IsZero() {
		date = l.CreatedAt.Format(layout)
	}
	return fmt.Sprintf("[%d min, %s]", l.DurationSeconds/60, date)
}

// DateLayout maps a locale to a time layout following that locale's
// conventional day/month/year order. Unknown or empty locales use ISO 8601.
func DateLayout(locale string) string {
	tag, err := language.Parse(strings.ReplaceAll(strings.TrimSpace(locale), "_", "-"))
	if err != nil {
		return time.DateOnly
	}
	base, _ := tag.Base()
	region, _ := tag.Region()

	switch base.String() {
	case "en":
		switch region.String() {
		case "US", "PH":
			return "Jan 2, 2006"
		case "CA":
			return time.DateOnly
		}
		return "2 Jan 2006"
	case "de", "ru", "pl", "tr", "uk", "cs", "fi", "nb", "da":
		return "02.01.2006"
	case "fr", "es", "it", "pt", "el", "vi", "id":
		return "02/01/2006"
	case "nl":
		return "02-01-2006"
	case "ja", "zh", "ko":
		return "2006/01/02"
	}
	return time.DateOnly
}

// ── parsing ──────────────────────────────────────────────────────────

// OutlineChapter is a chapter recovered from manifest text.
type OutlineChapter struct {
	Ordinal  int
	Title    string
	Lectures []int
}

// Outline is the structural shape of a manifest: ordinals only.
type Outline struct {
	Chapters   []OutlineChapter
	Standalone []int
}

// LectureCount returns the number of lecture lines recovered.
func (o Outline) LectureCount() int {
	n := len(o.Standalone)
	for _, c := range o.Chapters {
		n += len(c.Lectures)
	}
	return n
}

var (
	lectureLine    = regexp.MustCompile(`^(\d+)\.(\d+) (.*) \[(\d+) min, (.*)\]$`)
	standaloneLine = regexp.MustCompile(`^(\d+)\. (.*) \[(\d+) min, (.*)\]$`)
	chapterLine    = regexp.MustCompile(`^(\d+)\. (.*)$`)
)

// Parse recovers the outline of a rendered manifest. Lines that match no
// known shape are ignored. Once standalone lines appear, no further
// chapters are expected.
//
// A chapter title may itself end in "[N min, ...]". Such a line is read as
// a chapter when the next line is one of its lectures; an empty chapter
// with that title is indistinguishable from a standalone lecture.
func Parse(text string) Outline {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimRight(line, "\r"); line != "" {
			lines = append(lines, line)
		}
	}

	var o Outline
	for i, line := range lines {
		if m := lectureLine.FindStringSubmatch(line); m != nil {
			if len(o.Chapters) == 0 {
				continue
			}
			c := &o.Chapters[len(o.Chapters)-1]
			if atoi(m[1]) != c.Ordinal {
				continue
			}
			c.Lectures = append(c.Lectures, atoi(m[2]))
			continue
		}
		if m := standaloneLine.FindStringSubmatch(line); m != nil && !opensChapter(lines, i, m[1]) {
			o.Standalone = append(o.Standalone, atoi(m[1]))
			continue
		}
		if m := chapterLine.FindStringSubmatch(line); m != nil && len(o.Standalone) == 0 {
			o.Chapters = append(o.Chapters, OutlineChapter{Ordinal: atoi(m[1]), Title: m[2]})
		}
	}
	return o
}

// opensChapter reports whether the line after lines[i] is a lecture of
// chapter ordinal.
func opensChapter(lines []string, i int, ordinal string) bool {
	if i+1 >= len(lines) {
		return false
	}
	m := lectureLine.FindStringSubmatch(lines[i+1])
	return m != nil && m[1] == ordinal
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
