// Package course turns a flat curriculum listing into an ordered
// chapter → lecture tree and flattens that tree into extraction work items.
package course

import (
	"sort"
	"time"

	"github.com/snarg/lecturescribe/internal/curriculum"
)

// Chapter is a titled group of lectures. Ordinal is 1-based.
type Chapter struct {
	ID       int64
	Title    string
	Ordinal  int
	Lectures []*Lecture
}

// Lecture is a single video lecture. Chapter is a naming back-reference only
// and is nil for standalone lectures.
type Lecture struct {
	ID              int64
	Title           string
	CreatedAt       time.Time
	DurationSeconds int
	Ordinal         int
	CaptionTracks   []curriculum.CaptionTrackRef
	Chapter         *Chapter
}

// Standalone reports whether the lecture has no owning chapter.
func (l *Lecture) Standalone() bool { return l.Chapter == nil }

// Structure is the resolved course tree. It is not modified after Resolve returns.
type Structure struct {
	Chapters   []*Chapter
	Standalone []*Lecture
}

// LectureCount returns the number of lectures across chapters and the standalone group.
func (s *Structure) LectureCount() int {
	n := len(s.Standalone)
	for _, c := range s.Chapters {
		n += len(c.Lectures)
	}
	return n
}

// WorkItem is one lecture queued for extraction.
type WorkItem struct {
	Lecture  *Lecture
	Chapter  *Chapter
	Position int
}

// WorkItems flattens the tree: chapters in ordinal order, then standalone lectures.
func (s *Structure) WorkItems() []WorkItem {
	items := make([]WorkItem, 0, s.LectureCount())
	for _, c := range s.Chapters {
		for _, l := range c.Lectures {
			items = append(items, WorkItem{Lecture: l, Chapter: c, Position: len(items)})
		}
	}
	for _, l := range s.Standalone {
		items = append(items, WorkItem{Lecture: l, Position: len(items)})
	}
	return items
}

// Resolve orders records by descending sort order and builds the course tree
// in a single pass. Records that are neither chapters nor video lectures are
// skipped; lectures seen before any chapter go to the standalone group.
func Resolve(records []curriculum.Record) *Structure {
	sorted := make([]curriculum.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SortOrder > sorted[j].SortOrder
	})

	s := &Structure{}
	var current *Chapter
	for _, r := range sorted {
		switch r.Kind {
		case curriculum.KindChapter:
			current = &Chapter{
				ID:      r.ID,
				Title:   r.Title,
				Ordinal: len(s.Chapters) + 1,
			}
			s.Chapters = append(s.Chapters, current)
		case curriculum.KindLecture:
			if !r.IsVideo() {
				continue
			}
			l := &Lecture{
				ID:              r.ID,
				Title:           r.Title,
				CreatedAt:       r.CreatedAt,
				DurationSeconds: r.DurationSeconds,
				CaptionTracks:   r.CaptionTracks,
			}
			if current != nil {
				l.Chapter = current
				l.Ordinal = len(current.Lectures) + 1
				current.Lectures = append(current.Lectures, l)
			} else {
				l.Ordinal = len(s.Standalone) + 1
				s.Standalone = append(s.Standalone, l)
			}
		}
	}
	return s
}
