package course

import (
	"strings"
	"testing"
)

func TestLabelAndFileStem(t *testing.T) {
	ch := &Chapter{Ordinal: 2, Title: "Networking"}
	tests := []struct {
		name      string
		lecture   *Lecture
		wantLabel string
		wantStem  string
	}{
		{
			"chapter_lecture",
			&Lecture{Ordinal: 3, Title: "TCP/IP: the basics?", Chapter: ch},
			"2.3 TCP/IP: the basics?",
			"2.3 TCP_IP_ the basics_",
		},
		{
			"standalone",
			&Lecture{Ordinal: 1, Title: "Bonus"},
			"1. Bonus",
			"1. Bonus",
		},
		{
			"unicode_letters_kept",
			&Lecture{Ordinal: 1, Title: "Überblick – Café", Chapter: ch},
			"2.1 Überblick – Café",
			"2.1 Überblick _ Café",
		},
		{
			"trailing_dots_trimmed",
			&Lecture{Ordinal: 4, Title: "Wait...", Chapter: ch},
			"2.4 Wait...",
			"2.4 Wait",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Label(tt.lecture); got != tt.wantLabel {
				t.Errorf("Label = %q, want %q", got, tt.wantLabel)
			}
			if got := FileStem(tt.lecture); got != tt.wantStem {
				t.Errorf("FileStem = %q, want %q", got, tt.wantStem)
			}
		})
	}
}

func TestSanitize_NoPathSeparators(t *testing.T) {
	got := Sanitize(`../..\etc/passwd`)
	if strings.ContainsAny(got, `/\`) {
		t.Errorf("Sanitize left a path separator: %q", got)
	}
}

func TestSanitize_Truncates(t *testing.T) {
	got := Sanitize(strings.Repeat("a", 400))
	if n := len([]rune(got)); n != maxStemRunes {
		t.Errorf("len = %d, want %d", n, maxStemRunes)
	}
}

func TestSanitize_EmptyBecomesFiller(t *testing.T) {
	if got := Sanitize("..."); got != "_" {
		t.Errorf("Sanitize(...) = %q, want _", got)
	}
}

func TestFileStem_UniqueAcrossStructure(t *testing.T) {
	s := &Structure{}
	for c := 1; c <= 3; c++ {
		ch := &Chapter{Ordinal: c, Title: "Same"}
		for l := 1; l <= 4; l++ {
			ch.Lectures = append(ch.Lectures, &Lecture{Ordinal: l, Title: "Same title", Chapter: ch})
		}
		s.Chapters = append(s.Chapters, ch)
	}
	s.Standalone = []*Lecture{{Ordinal: 1, Title: "Same title"}, {Ordinal: 2, Title: "Same title"}}

	seen := map[string]bool{}
	for _, it := range s.WorkItems() {
		stem := FileStem(it.Lecture)
		if seen[stem] {
			t.Fatalf("duplicate stem %q", stem)
		}
		seen[stem] = true
	}
}
