package course

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	filler       = '_'
	maxStemRunes = 150
)

// Label returns the display prefix and title of a lecture:
// "<chapter>.<lecture> <title>" or "<lecture>. <title>" for standalone lectures.
func Label(l *Lecture) string {
	if l.Chapter != nil {
		return fmt.Sprintf("%d.%d %s", l.Chapter.Ordinal, l.Ordinal, l.Title)
	}
	return fmt.Sprintf("%d. %s", l.Ordinal, l.Title)
}

// FileStem derives a path-safe file name stem from the lecture label.
// Characters outside letters, digits, space, '.', '-' and '_' become '_'.
func FileStem(l *Lecture) string {
	return Sanitize(Label(l))
}

// Sanitize replaces every unsafe rune with the filler character and trims
// trailing dots and spaces, which some filesystems reject.
func Sanitize(s string) string {
	var b strings.Builder
	n := 0
	for _, r := range s {
		if n == maxStemRunes {
			break
		}
		if isSafe(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(filler)
		}
		n++
	}
	out := strings.TrimRight(b.String(), ". ")
	if out == "" {
		return string(filler)
	}
	return out
}

func isSafe(r rune) bool {
	switch r {
	case ' ', '.', '-', '_':
		return true
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
