package curriculum

import (
	"encoding/json"
	"strings"
	"time"
)

// Kind classifies a curriculum record.
type Kind int

const (
	KindOther Kind = iota
	KindChapter
	KindLecture
)

func (k Kind) String() string {
	switch k {
	case KindChapter:
		return "chapter"
	case KindLecture:
		return "lecture"
	}
	return "other"
}

// ParseKind maps the upstream "_class" discriminator to a Kind.
// Anything other than chapter or lecture (quiz, practice, ...) is KindOther.
func ParseKind(class string) Kind {
	switch strings.ToLower(strings.TrimSpace(class)) {
	case "chapter":
		return KindChapter
	case "lecture":
		return KindLecture
	}
	return KindOther
}

// Record is one raw unit of the upstream curriculum listing.
type Record struct {
	ID              int64
	Kind            Kind
	Title           string
	CreatedAt       time.Time
	SortOrder       int
	AssetType       string
	DurationSeconds int
	CaptionTracks   []CaptionTrackRef
}

// IsVideo reports whether the record's asset is a video.
func (r Record) IsVideo() bool {
	return strings.EqualFold(r.AssetType, "video")
}

// CaptionTrackRef points at a locale-tagged timed-text resource.
type CaptionTrackRef struct {
	LocaleCode string
	SourceURL  string
}

// CourseInfo is the subset of course metadata needed to build lecture URLs.
type CourseInfo struct {
	ID    int64
	Title string
	// Path is the course-relative URL as returned upstream, e.g. "/course/go-basics/".
	Path string
}

// ── wire format ──────────────────────────────────────────────────────

type wireCourse struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

type wirePage struct {
	Count   int          `json:"count"`
	Next    *string      `json:"next"`
	Results []wireRecord `json:"results"`
}

type wireRecord struct {
	Class     string     `json:"_class"`
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	Created   string     `json:"created"`
	SortOrder int        `json:"sort_order"`
	Asset     *wireAsset `json:"asset"`
}

type wireAsset struct {
	AssetType      string        `json:"asset_type"`
	TimeEstimation int           `json:"time_estimation"`
	Captions       []wireCaption `json:"captions"`
}

type wireCaption struct {
	LocaleID string `json:"locale_id"`
	URL      string `json:"url"`
}

func (w wireRecord) toRecord() Record {
	r := Record{
		ID:        w.ID,
		Kind:      ParseKind(w.Class),
		Title:     strings.TrimSpace(w.Title),
		SortOrder: w.SortOrder,
	}
	if w.Created != "" {
		if t, err := time.Parse(time.RFC3339, w.Created); err == nil {
			r.CreatedAt = t
		}
	}
	if r.Kind == KindLecture && w.Asset != nil {
		r.AssetType = w.Asset.AssetType
		r.DurationSeconds = w.Asset.TimeEstimation
		for _, c := range w.Asset.Captions {
			if c.URL == "" {
				continue
			}
			r.CaptionTracks = append(r.CaptionTracks, CaptionTrackRef{
				LocaleCode: c.LocaleID,
				SourceURL:  c.URL,
			})
		}
	}
	return r
}

// DecodePage decodes one page of the curriculum listing. It returns the
// records, the URL of the next page ("" when this is the last page) and any
// decode error.
func DecodePage(data []byte) ([]Record, string, error) {
	var p wirePage
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, "", err
	}
	records := make([]Record, 0, len(p.Results))
	for _, w := range p.Results {
		records = append(records, w.toRecord())
	}
	next := ""
	if p.Next != nil {
		next = *p.Next
	}
	return records, next, nil
}
