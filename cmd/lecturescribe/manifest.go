package main

import (
	"fmt"

	"github.com/snarg/lecturescribe/internal/config"
	"github.com/snarg/lecturescribe/internal/manifest"
	"github.com/snarg/lecturescribe/internal/storage"
	"github.com/spf13/cobra"
)

func newManifestCommand(g *globalFlags) *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "manifest <course-id>",
		Short: "Print a course's table of contents without opening a browser",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			courseID, err := config.ParseCourseID(args[0])
			if err != nil {
				return err
			}
			cfg, err := config.Load(g.overrides())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log := newLogger(cfg.LogLevel)
			ctx := cmd.Context()

			_, s, err := loadCourse(ctx, newContentClient(cfg, log), courseID)
			if err != nil {
				return err
			}
			opts := manifest.Options{Locale: cfg.DateLocale}
			fmt.Fprint(cmd.OutOrStdout(), manifest.Render(s, opts))

			if !write {
				return nil
			}
			store, err := storage.New(cfg.S3, cfg.OutputDir, log.With().Str("component", "storage").Logger())
			if err != nil {
				return err
			}
			return manifest.Write(ctx, store, storage.Key(courseID, manifest.FileName), s, opts)
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "Also store the manifest in the output")
	return cmd
}
