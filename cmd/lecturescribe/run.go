package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/snarg/lecturescribe/internal/api"
	"github.com/snarg/lecturescribe/internal/browser"
	"github.com/snarg/lecturescribe/internal/config"
	"github.com/snarg/lecturescribe/internal/course"
	"github.com/snarg/lecturescribe/internal/curriculum"
	"github.com/snarg/lecturescribe/internal/database"
	"github.com/snarg/lecturescribe/internal/extract"
	"github.com/snarg/lecturescribe/internal/manifest"
	"github.com/snarg/lecturescribe/internal/metrics"
	"github.com/snarg/lecturescribe/internal/scheduler"
	"github.com/snarg/lecturescribe/internal/storage"
	"github.com/spf13/cobra"
)

type runFlags struct {
	lanes        int
	locale       string
	captions     bool
	httpAddr     string
	skipExisting bool
}

func newRunCommand(g *globalFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run <course-id>",
		Short: "Extract every lecture transcript of a course",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			courseID, err := config.ParseCourseID(args[0])
			if err != nil {
				return err
			}
			ov := g.overrides()
			ov.Lanes = f.lanes
			ov.PreferredLocale = f.locale
			ov.HTTPAddr = f.httpAddr
			if cmd.Flags().Changed("captions") {
				ov.Captions = &f.captions
			}
			cfg, err := config.Load(ov)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runCourse(ctx, cfg, courseID, f.skipExisting, cmd.OutOrStdout(), newLogger(cfg.LogLevel))
		},
	}
	cmd.Flags().IntVarP(&f.lanes, "lanes", "l", 0, "Concurrent browser lanes (overrides LANES)")
	cmd.Flags().StringVar(&f.locale, "locale", "", "Preferred caption locale, e.g. en_US (overrides PREFERRED_LOCALE)")
	cmd.Flags().BoolVar(&f.captions, "captions", false, "Also write SRT subtitles (overrides DOWNLOAD_CAPTIONS)")
	cmd.Flags().StringVar(&f.httpAddr, "http", "", "Serve status endpoints on this address (overrides HTTP_ADDR)")
	cmd.Flags().BoolVar(&f.skipExisting, "skip-existing", false, "Keep transcripts already present in the output")
	return cmd
}

func runCourse(ctx context.Context, cfg *config.Config, courseID string, skipExisting bool, out io.Writer, log zerolog.Logger) error {
	startTime := time.Now()
	runID := uuid.NewString()
	log = log.With().Str("run_id", runID).Str("course_id", courseID).Logger()
	log.Info().Str("version", version).Int("lanes", cfg.Lanes).Bool("captions", cfg.DownloadCaptions).Msg("lecturescribe starting")

	// One writer per course directory
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	lock := flock.New(filepath.Join(cfg.OutputDir, courseID+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another run is already writing course %s in %s", courseID, cfg.OutputDir)
	}
	defer lock.Unlock()

	store, err := storage.New(cfg.S3, cfg.OutputDir, log.With().Str("component", "storage").Logger())
	if err != nil {
		return err
	}

	client := newContentClient(cfg, log)
	info, s, err := loadCourse(ctx, client, courseID)
	if err != nil {
		return err
	}
	items := s.WorkItems()
	log.Info().Str("title", info.Title).Int("chapters", len(s.Chapters)).Int("lectures", len(items)).Msg("course resolved")

	// Manifest failures are reported, the transcripts are still worth having
	manifestKey := storage.Key(courseID, manifest.FileName)
	if err := manifest.Write(ctx, store, manifestKey, s, manifest.Options{Locale: cfg.DateLocale}); err != nil {
		log.Error().Err(err).Msg("manifest not written")
	}

	// Run ledger (optional)
	var db *database.DB
	if cfg.DatabaseURL != "" {
		db, err = openLedger(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return err
		}
		defer db.Close()
	}

	tracker := scheduler.NewTracker(runID, courseID)
	lanes := min(cfg.Lanes, len(items))

	// Status server (optional)
	if cfg.HTTPAddr != "" {
		opts := api.ServerOptions{
			Progress:    tracker,
			StorageType: store.Type(),
			Version:     version,
			StartTime:   startTime,
			Log:         log.With().Str("component", "http").Logger(),
		}
		var pool *pgxpool.Pool
		if db != nil {
			opts.Ledger = db
			pool = db.Pool
		}
		if err := prometheus.Register(metrics.NewCollector(pool, tracker)); err != nil {
			log.Warn().Err(err).Msg("metrics collector not registered")
		}
		srv := api.NewServer(cfg, opts)
		go func() {
			if err := srv.Start(); err != nil {
				log.Error().Err(err).Msg("http server error")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("http server shutdown error")
			}
		}()
	}

	if db != nil {
		if err := db.InsertRun(ctx, database.Run{
			RunID:       runID,
			CourseID:    courseID,
			CourseTitle: info.Title,
			Lanes:       lanes,
			Lectures:    len(items),
			Captions:    cfg.DownloadCaptions,
			StartedAt:   startTime,
		}); err != nil {
			log.Warn().Err(err).Msg("run ledger unavailable, continuing without it")
			db = nil
		}
	}

	factory, err := browser.NewChromeFactory(browser.ChromeOptions{
		ExecPath:    cfg.ChromePath,
		Headless:    cfg.Headless,
		BaseURL:     cfg.ContentBaseURL,
		CookieName:  cfg.SessionCookie,
		CookieValue: cfg.AccessToken,
		Log:         log,
	})
	if err != nil {
		return err
	}
	defer factory.Close()

	extractor := extract.New(extract.Options{
		CourseID:   courseID,
		LectureURL: func(id int64) string { return client.LectureURL(info, id) },
		Settle: extract.SettlePolicy{
			PostNavigation: cfg.SettlePostNavigation,
			PostClick:      cfg.SettlePostClick,
			PostPanelOpen:  cfg.SettlePostPanelOpen,
		},
		ToggleTimeout:     cfg.ToggleTimeout,
		NavigationTimeout: cfg.NavigationTimeout,
		TextRetries:       cfg.TextRetries,
		TextRetryDelay:    cfg.TextRetryDelay,
		Captions:          cfg.DownloadCaptions,
		PreferredLocale:   cfg.PreferredLocale,
		Fetcher:           client,
		SkipExisting:      skipExisting,
		Store:             store,
		Log:               log,
	})

	sched := scheduler.New(scheduler.Options{
		Lanes:     cfg.Lanes,
		Factory:   factory,
		Processor: extractor,
		Tracker:   tracker,
		OnResult:  resultRecorder(ctx, runID, db, log),
		Log:       log,
	})
	sum := sched.Run(ctx, items)

	if db != nil {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := db.FinishRun(fctx, runID, countsOf(sum)); err != nil {
			log.Warn().Err(err).Msg("run ledger not finalized")
		}
		cancel()
	}

	if tiered, ok := store.(*storage.TieredStore); ok && ctx.Err() == nil {
		if _, err := tiered.Reconcile(ctx, courseID); err != nil {
			log.Warn().Err(err).Msg("reconcile incomplete")
		}
		if missed := tiered.Missed(); len(missed) > 0 {
			log.Warn().Int("keys", len(missed)).Msg("artifacts missing from S3 after reconcile")
		}
	}

	fmt.Fprintln(out, renderSummary(info, items, sum))
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run interrupted after %d of %d lectures: %w", len(sum.Results), sum.Total, err)
	}
	return nil
}

func newContentClient(cfg *config.Config, log zerolog.Logger) *curriculum.Client {
	return curriculum.NewClient(curriculum.ClientOptions{
		BaseURL:    cfg.ContentBaseURL,
		Token:      cfg.AccessToken,
		HTTPClient: &http.Client{Timeout: cfg.FetchTimeout},
		Attempts:   cfg.FetchAttempts,
		Backoff:    cfg.FetchBackoff,
		Rate:       cfg.FetchRate,
		Log:        log,
	})
}

// loadCourse fetches the course header and its curriculum and resolves the tree.
func loadCourse(ctx context.Context, client *curriculum.Client, courseID string) (*curriculum.CourseInfo, *course.Structure, error) {
	info, err := client.Course(ctx, courseID)
	switch {
	case curriculum.IsStatus(err, http.StatusNotFound):
		return nil, nil, fmt.Errorf("course %s not found or not enrolled: %w", courseID, err)
	case curriculum.IsStatus(err, http.StatusUnauthorized), curriculum.IsStatus(err, http.StatusForbidden):
		return nil, nil, fmt.Errorf("access token rejected for course %s: %w", courseID, err)
	case err != nil:
		return nil, nil, fmt.Errorf("fetch course %s: %w", courseID, err)
	}
	records, err := client.Curriculum(ctx, courseID)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch curriculum of course %s: %w", courseID, err)
	}
	return info, course.Resolve(records), nil
}

func openLedger(ctx context.Context, url string, log zerolog.Logger) (*database.DB, error) {
	dbLog := log.With().Str("component", "database").Logger()
	db, err := database.Connect(ctx, url, dbLog)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// resultRecorder feeds metrics and, when configured, the run ledger.
func resultRecorder(ctx context.Context, runID string, db *database.DB, log zerolog.Logger) scheduler.ResultFunc {
	return func(r extract.Result) {
		metrics.Observe(r)
		if db == nil {
			return
		}
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := db.RecordResult(wctx, resultRow(runID, r)); err != nil {
			log.Warn().Err(err).Int64("lecture_id", r.LectureID).Msg("lecture result not recorded")
		}
	}
}

func resultRow(runID string, r extract.Result) database.LectureResultRow {
	row := database.LectureResultRow{
		RunID:         runID,
		LectureID:     r.LectureID,
		Position:      r.Position,
		Lane:          r.Lane,
		Status:        string(r.Status),
		TranscriptKey: r.TranscriptKey,
		SubtitleKey:   r.SubtitleKey,
		Cues:          len(r.Subtitles),
		Duration:      r.Duration,
	}
	if r.Err != nil {
		row.Error = r.Err.Error()
	}
	return row
}

func countsOf(sum scheduler.Summary) database.RunCounts {
	return database.RunCounts{
		OK:           sum.OK,
		NoTranscript: sum.NoTranscript,
		Errors:       sum.Errors,
		Skipped:      sum.Skipped,
		Aborted:      sum.Aborted,
	}
}

func renderSummary(info *curriculum.CourseInfo, items []course.WorkItem, sum scheduler.Summary) string {
	totals := renderTable(
		[]string{"Course", "Lectures", "OK", "No transcript", "Errors", "Skipped", "Aborted", "Elapsed"},
		[][]string{{
			info.Title,
			fmt.Sprint(sum.Total),
			fmt.Sprint(sum.OK),
			fmt.Sprint(sum.NoTranscript),
			fmt.Sprint(sum.Errors),
			fmt.Sprint(sum.Skipped),
			fmt.Sprint(sum.Aborted),
			sum.Duration.Round(time.Second).String(),
		}},
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
	)

	var rows [][]string
	for _, r := range sum.Results {
		if r.Status == extract.StatusOK {
			continue
		}
		label := fmt.Sprint(r.LectureID)
		if r.Position >= 0 && r.Position < len(items) {
			label = course.Label(items[r.Position].Lecture)
		}
		detail := ""
		if r.Err != nil {
			detail = r.Err.Error()
		}
		rows = append(rows, []string{label, string(r.Status), fmt.Sprint(r.Lane), detail})
	}
	if len(rows) == 0 {
		return totals
	}
	return totals + "\n" + renderTable([]string{"Lecture", "Status", "Lane", "Detail"}, rows, nil)
}
