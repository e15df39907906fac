// Package subtitle converts timed-text cue payloads (WebVTT and similar)
// into numbered SRT records.
package subtitle

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrBadTimestamp is returned for timestamps outside the [[HH:]MM:]SS[.mmm] grammar.
var ErrBadTimestamp = errors.New("bad timestamp")

// Record is one SRT cue. Start and End are normalized HH:MM:SS,mmm.
type Record struct {
	Index int
	Start string
	End   string
	Text  string
}

// Convert parses a timed-text payload into records numbered 1..N.
// Blocks are separated by blank lines. A block's header is its first line
// containing "-->"; the lines after it are the cue text. Blocks with no
// header, no text or unparsable timestamps are dropped.
func Convert(payload string) []Record {
	payload = strings.ReplaceAll(payload, "\r\n", "\n")
	payload = strings.ReplaceAll(payload, "\r", "\n")

	type cue struct {
		start, end int64
		text       string
	}
	var cues []cue
	for _, block := range splitBlocks(payload) {
		if len(block) < 2 {
			continue
		}
		h := -1
		for i, line := range block {
			if strings.Contains(line, "-->") {
				h = i
				break
			}
		}
		if h < 0 || h == len(block)-1 {
			continue
		}
		start, end, err := parseHeader(block[h])
		if err != nil {
			continue
		}
		if end < start {
			end = start
		}
		cues = append(cues, cue{start: start, end: end, text: strings.Join(block[h+1:], "\n")})
	}

	sort.SliceStable(cues, func(i, j int) bool { return cues[i].start < cues[j].start })

	records := make([]Record, 0, len(cues))
	for i, c := range cues {
		records = append(records, Record{
			Index: i + 1,
			Start: formatMillis(c.start),
			End:   formatMillis(c.end),
			Text:  c.text,
		})
	}
	return records
}

// Format renders records as an SRT document: each block is
// "<index>\n<start> --> <end>\n<text>\n" and blocks are separated by one blank line.
func Format(records []Record) string {
	blocks := make([]string, 0, len(records))
	for _, r := range records {
		blocks = append(blocks, fmt.Sprintf("%d\n%s --> %s\n%s\n", r.Index, r.Start, r.End, r.Text))
	}
	return strings.Join(blocks, "\n")
}

// NormalizeTimestamp rewrites a [[HH:]MM:]SS[.mmm] timestamp as HH:MM:SS,mmm.
// Missing higher units are zero; the fraction is right-padded (or truncated)
// to three digits. Both '.' and ',' are accepted as the fraction separator.
func NormalizeTimestamp(ts string) (string, error) {
	ms, err := parseTimestamp(ts)
	if err != nil {
		return "", err
	}
	return formatMillis(ms), nil
}

func splitBlocks(payload string) [][]string {
	var blocks [][]string
	var cur []string
	for _, line := range strings.Split(payload, "\n") {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			if len(cur) > 0 {
				blocks = append(blocks, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, line)
	}
	if len(cur) > 0 {
		blocks = append(blocks, cur)
	}
	return blocks
}

// parseHeader reads "start --> end [cue settings]".
func parseHeader(line string) (int64, int64, error) {
	left, right, ok := strings.Cut(line, "-->")
	if !ok {
		return 0, 0, ErrBadTimestamp
	}
	fields := strings.Fields(right)
	if len(fields) == 0 {
		return 0, 0, ErrBadTimestamp
	}
	start, err := parseTimestamp(strings.TrimSpace(left))
	if err != nil {
		return 0, 0, err
	}
	end, err := parseTimestamp(fields[0])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func parseTimestamp(ts string) (int64, error) {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return 0, fmt.Errorf("%w: empty", ErrBadTimestamp)
	}
	whole, frac := ts, ""
	if i := strings.IndexAny(ts, ".,"); i >= 0 {
		whole, frac = ts[:i], ts[i+1:]
	}

	parts := strings.Split(whole, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrBadTimestamp, ts)
	}
	var units [3]int64 // hours, minutes, seconds
	offset := 3 - len(parts)
	for i, p := range parts {
		n, err := parseDigits(p)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrBadTimestamp, ts)
		}
		units[offset+i] = n
	}

	var millis int64
	if frac != "" {
		if len(frac) > 3 {
			frac = frac[:3]
		}
		frac += strings.Repeat("0", 3-len(frac))
		n, err := parseDigits(frac)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrBadTimestamp, ts)
		}
		millis = n
	}
	return ((units[0]*60+units[1])*60+units[2])*1000 + millis, nil
}

func parseDigits(s string) (int64, error) {
	if s == "" {
		return 0, ErrBadTimestamp
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, ErrBadTimestamp
		}
	}
	return strconv.ParseInt(s, 10, 64)
}

func formatMillis(ms int64) string {
	h := ms / 3_600_000
	ms -= h * 3_600_000
	m := ms / 60_000
	ms -= m * 60_000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
