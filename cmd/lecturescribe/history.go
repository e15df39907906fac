package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/snarg/lecturescribe/internal/config"
	"github.com/snarg/lecturescribe/internal/database"
	"github.com/spf13/cobra"
)

var errNoLedger = errors.New("DATABASE_URL is not set")

func newHistoryCommand(g *globalFlags) *cobra.Command {
	var (
		courseID string
		runID    string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs, or the lecture results of one run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(g.overrides())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.DatabaseURL == "" {
				return errNoLedger
			}
			ctx := cmd.Context()
			log := newLogger(cfg.LogLevel)
			db, err := database.Connect(ctx, cfg.DatabaseURL, log.With().Str("component", "database").Logger())
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer db.Close()

			if runID != "" {
				rows, err := db.RunResults(ctx, runID)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderResults(rows))
				return nil
			}
			runs, err := db.ListRuns(ctx, courseID, limit, 0)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderRuns(runs))
			return nil
		},
	}
	cmd.Flags().StringVar(&courseID, "course", "", "Only list runs of this course")
	cmd.Flags().StringVar(&runID, "run", "", "Show the lecture results of this run")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list")
	return cmd
}

func renderRuns(runs []database.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		finished := "running"
		if r.FinishedAt != nil {
			finished = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		rows = append(rows, []string{
			r.RunID,
			r.CourseID,
			r.StartedAt.Local().Format(time.DateTime),
			fmt.Sprint(r.Lectures),
			fmt.Sprint(r.OK),
			fmt.Sprint(r.NoTranscript),
			fmt.Sprint(r.Errors),
			finished,
		})
	}
	return renderTable(
		[]string{"Run", "Course", "Started", "Lectures", "OK", "No transcript", "Errors", "Duration"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
	)
}

func renderResults(results []database.LectureResultRow) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			fmt.Sprint(r.Position),
			fmt.Sprint(r.LectureID),
			r.Status,
			fmt.Sprint(r.Lane),
			r.TranscriptKey,
			r.Error,
		})
	}
	return renderTable(
		[]string{"#", "Lecture", "Status", "Lane", "Transcript", "Error"},
		rows,
		[]columnAlignment{alignRight, alignRight},
	)
}
