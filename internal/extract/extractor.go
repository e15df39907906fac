package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/lecturescribe/internal/browser"
	"github.com/snarg/lecturescribe/internal/course"
	"github.com/snarg/lecturescribe/internal/curriculum"
	"github.com/snarg/lecturescribe/internal/storage"
	"github.com/snarg/lecturescribe/internal/subtitle"
)

// artifactWriteTimeout bounds a single artifact write. Writes are detached
// from the run context so the transcript of an interrupted lecture still lands.
const artifactWriteTimeout = 30 * time.Second

// Options configures an Extractor.
type Options struct {
	CourseID string
	// LectureURL maps a lecture ID to the page that hosts its player.
	LectureURL func(lectureID int64) string

	Settle            SettlePolicy
	Locators          []Locator
	ToggleTimeout     time.Duration
	NavigationTimeout time.Duration
	TextRetries       int
	TextRetryDelay    time.Duration

	Captions        bool
	PreferredLocale string
	Fetcher         CaptionFetcher

	// SkipExisting keeps an already stored transcript instead of re-extracting.
	SkipExisting bool

	Store storage.ArtifactStore
	Log   zerolog.Logger
}

// Extractor processes work items one at a time. It holds no per-lane state,
// so a single Extractor is shared by all lanes.
type Extractor struct {
	opts Options
	log  zerolog.Logger
}

// New creates an Extractor. Missing locators fall back to DefaultLocators and
// at least one text read is always attempted.
func New(opts Options) *Extractor {
	if len(opts.Locators) == 0 {
		opts.Locators = DefaultLocators
	}
	if opts.TextRetries < 1 {
		opts.TextRetries = 1
	}
	return &Extractor{
		opts: opts,
		log:  opts.Log.With().Str("component", "extract").Logger(),
	}
}

// TranscriptKey is the storage key of a lecture's transcript.
func TranscriptKey(courseID string, l *course.Lecture) string {
	return storage.Key(courseID, "transcripts", course.FileStem(l)+".txt")
}

// SubtitleKey is the storage key of a lecture's subtitle file.
func SubtitleKey(courseID string, l *course.Lecture) string {
	return storage.Key(courseID, "subtitles", course.FileStem(l)+".srt")
}

// extracted reports whether key holds a transcript from an earlier run.
// A stored placeholder does not count, so those lectures are tried again.
func (e *Extractor) extracted(ctx context.Context, key string) bool {
	if !e.opts.Store.Exists(ctx, key) {
		return false
	}
	rc, err := e.opts.Store.Open(ctx, key)
	if err != nil {
		return false
	}
	defer rc.Close()
	head, err := io.ReadAll(io.LimitReader(rc, int64(len(PlaceholderText))+1))
	if err != nil {
		return false
	}
	return string(head) != PlaceholderText
}

// Process drives one lecture to a terminal state. It always writes a
// transcript artifact, using PlaceholderText when no transcript was read.
func (e *Extractor) Process(ctx context.Context, s browser.Session, item course.WorkItem) (res Result) {
	start := time.Now()
	l := item.Lecture
	res = Result{
		LectureID:     l.ID,
		Position:      item.Position,
		TranscriptKey: TranscriptKey(e.opts.CourseID, l),
	}
	defer func() { res.Duration = time.Since(start) }()
	log := e.log.With().Int64("lecture_id", l.ID).Str("lecture", course.Label(l)).Logger()

	if e.opts.SkipExisting && e.extracted(ctx, res.TranscriptKey) {
		log.Debug().Str("key", res.TranscriptKey).Msg("transcript exists, skipping")
		res.Status = StatusOK
		res.Skipped = true
		return res
	}

	text, err := e.transcript(ctx, s, l, log)
	switch {
	case err == nil:
		res.Status = StatusOK
		res.Transcript = text
	case errors.Is(err, ErrNoTranscript):
		res.Status = StatusNoTranscript
		res.Transcript = PlaceholderText
		log.Debug().Err(err).Msg("no transcript")
	default:
		res.Status = StatusError
		res.Err = err
		res.Transcript = PlaceholderText
	}

	if werr := e.save(ctx, res.TranscriptKey, res.Transcript, storage.ContentTypeText); werr != nil {
		res.Status = StatusError
		res.Err = errors.Join(res.Err, werr)
		return res
	}

	if res.Status == StatusOK && e.opts.Captions {
		e.captions(ctx, l, &res, log)
	}
	return res
}

func (e *Extractor) transcript(ctx context.Context, s browser.Session, l *course.Lecture, log zerolog.Logger) (string, error) {
	if err := e.navigate(ctx, s, l); err != nil {
		return "", err
	}
	if err := e.openPanel(ctx, s, log); err != nil {
		return "", err
	}
	if err := sleep(ctx, e.opts.Settle.PostPanelOpen); err != nil {
		return "", err
	}
	return e.readText(ctx, s, log)
}

func (e *Extractor) navigate(ctx context.Context, s browser.Session, l *course.Lecture) error {
	nctx := ctx
	if e.opts.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		nctx, cancel = context.WithTimeout(ctx, e.opts.NavigationTimeout)
		defer cancel()
	}
	if err := s.Navigate(nctx, e.opts.LectureURL(l.ID)); err != nil {
		return fmt.Errorf("navigate to lecture %d: %w", l.ID, err)
	}
	return sleep(ctx, e.opts.Settle.PostNavigation)
}

// openPanel tries each locator in order and accepts the first one after
// which the panel is actually visible.
func (e *Extractor) openPanel(ctx context.Context, s browser.Session, log zerolog.Logger) error {
	if open, err := s.Visible(ctx, PanelSelector); err == nil && open {
		log.Debug().Msg("transcript panel already open")
		return nil
	}

	for _, loc := range e.opts.Locators {
		if err := loc.Activate(ctx, s); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Debug().Err(err).Str("locator", loc.Name()).Msg("locator did not activate")
			continue
		}
		if err := sleep(ctx, e.opts.Settle.PostClick); err != nil {
			return err
		}
		if err := s.WaitVisible(ctx, PanelSelector, e.opts.ToggleTimeout); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Debug().Err(err).Str("locator", loc.Name()).Msg("panel not visible after activation")
			continue
		}
		log.Debug().Str("locator", loc.Name()).Msg("transcript panel opened")
		return nil
	}
	return fmt.Errorf("%w: no locator opened the panel", ErrNoTranscript)
}

func (e *Extractor) readText(ctx context.Context, s browser.Session, log zerolog.Logger) (string, error) {
	for attempt := 1; attempt <= e.opts.TextRetries; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, e.opts.TextRetryDelay); err != nil {
				return "", err
			}
		}
		if text := e.panelText(ctx, s); text != "" {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		log.Debug().Int("attempt", attempt).Msg("transcript panel empty")
	}
	return "", fmt.Errorf("%w: panel empty after %d attempts", ErrNoTranscript, e.opts.TextRetries)
}

// panelText prefers panel markup, which keeps cue boundaries, and falls back
// to the rendered text of the panel.
func (e *Extractor) panelText(ctx context.Context, s browser.Session) string {
	if markup, err := s.HTML(ctx, PanelSelector); err == nil {
		if text, err := PanelText(markup); err == nil && text != "" {
			return text
		}
	}
	if raw, err := s.Text(ctx, PanelSelector); err == nil {
		return normalizeText(raw)
	}
	return ""
}

// captions fetches the preferred-locale track and writes it as SRT. Any
// failure here leaves the transcript result untouched.
func (e *Extractor) captions(ctx context.Context, l *course.Lecture, res *Result, log zerolog.Logger) {
	track, ok := SelectTrack(l.CaptionTracks, e.opts.PreferredLocale)
	if !ok {
		log.Debug().Str("locale", e.opts.PreferredLocale).Int("tracks", len(l.CaptionTracks)).Msg("no caption track for locale")
		return
	}
	if e.opts.Fetcher == nil {
		return
	}

	payload, err := e.opts.Fetcher.Caption(ctx, track.SourceURL)
	if err != nil {
		log.Warn().Err(err).Str("locale", track.LocaleCode).Msg("caption fetch failed")
		return
	}
	records := subtitle.Convert(payload)
	if len(records) == 0 {
		log.Warn().Str("locale", track.LocaleCode).Msg("caption track has no usable cues")
		return
	}

	key := SubtitleKey(e.opts.CourseID, l)
	if err := e.save(ctx, key, subtitle.Format(records), storage.ContentTypeSRT); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("subtitle write failed")
		return
	}
	res.Subtitles = records
	res.SubtitleKey = key
}

func (e *Extractor) save(ctx context.Context, key, body, contentType string) error {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), artifactWriteTimeout)
	defer cancel()
	if err := e.opts.Store.Save(wctx, key, []byte(body), contentType); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// SelectTrack returns the track whose locale code equals locale exactly.
func SelectTrack(tracks []curriculum.CaptionTrackRef, locale string) (curriculum.CaptionTrackRef, bool) {
	for _, t := range tracks {
		if t.LocaleCode == locale {
			return t, true
		}
	}
	return curriculum.CaptionTrackRef{}, false
}

// Fail records item as an error without touching a browser and writes its
// placeholder transcript. Lanes that cannot open a session use it so every
// lecture still gets an artifact.
func (e *Extractor) Fail(ctx context.Context, item course.WorkItem, cause error) Result {
	res := Result{
		LectureID:     item.Lecture.ID,
		Position:      item.Position,
		Status:        StatusError,
		Err:           cause,
		Transcript:    PlaceholderText,
		TranscriptKey: TranscriptKey(e.opts.CourseID, item.Lecture),
	}
	if err := e.save(ctx, res.TranscriptKey, res.Transcript, storage.ContentTypeText); err != nil {
		res.Err = errors.Join(cause, err)
	}
	return res
}
