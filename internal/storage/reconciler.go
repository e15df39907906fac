package storage

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ReconcileStats summarizes one reconcile pass.
type ReconcileStats struct {
	Checked  int
	Uploaded int
	Failed   int
}

// Reconcile scans the local copy of prefix for artifacts missing from the
// remote store and uploads them. It runs once, after the lanes have joined,
// so it never races with artifact writes.
func Reconcile(ctx context.Context, local *LocalStore, remote ArtifactStore, prefix string, log zerolog.Logger) (ReconcileStats, error) {
	var stats ReconcileStats
	log = log.With().Str("component", "upload-reconciler").Logger()

	root := filepath.Join(local.Dir(), filepath.FromSlash(prefix))
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("error walking directory")
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || isTempArtifact(d.Name()) || strings.HasSuffix(d.Name(), ".lock") {
			return nil
		}
		rel, err := filepath.Rel(local.Dir(), path)
		if err != nil {
			return nil
		}
		key := filepath.ToSlash(rel)
		stats.Checked++

		hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		exists := remote.Exists(hctx, key)
		cancel()
		if exists {
			return nil
		}

		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		uctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if saveErr := remote.Save(uctx, key, data, contentTypeFromExt(filepath.Ext(path))); saveErr != nil {
			log.Warn().Err(saveErr).Str("key", key).Msg("reconcile upload failed")
			stats.Failed++
		} else {
			stats.Uploaded++
		}
		return nil
	})

	if stats.Uploaded > 0 || stats.Failed > 0 {
		log.Info().
			Int("uploaded", stats.Uploaded).
			Int("failed", stats.Failed).
			Int("checked", stats.Checked).
			Msg("reconcile complete")
	}
	return stats, err
}

// Reconcile uploads local artifacts under prefix that are missing from S3.
func (s *TieredStore) Reconcile(ctx context.Context, prefix string) (ReconcileStats, error) {
	stats, err := Reconcile(ctx, s.local, s.s3, prefix, s.log)
	for _, key := range s.Missed() {
		if s.s3.Exists(ctx, key) {
			s.forget(key)
		}
	}
	return stats, err
}

func contentTypeFromExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".txt":
		return ContentTypeText
	case ".srt":
		return ContentTypeSRT
	default:
		return "application/octet-stream"
	}
}
