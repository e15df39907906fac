package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/lecturescribe/internal/config"
)

// ArtifactStore abstracts where manifests, transcripts and subtitles are written.
// Keys are slash-separated: {course_id}/transcripts/{stem}.txt
type ArtifactStore interface {
	// Save stores data under key, replacing any previous content.
	Save(ctx context.Context, key string, data []byte, contentType string) error

	// Open returns a reader for a stored artifact.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks if an artifact exists in any backend.
	Exists(ctx context.Context, key string) bool

	// Type returns "local", "s3", or "tiered".
	Type() string
}

// Content types used for artifacts.
const (
	ContentTypeText = "text/plain; charset=utf-8"
	ContentTypeSRT  = "application/x-subrip; charset=utf-8"
)

// New creates an ArtifactStore based on config. Returns an error if S3 is
// configured but unreachable.
func New(cfg config.S3Config, outputDir string, log zerolog.Logger) (ArtifactStore, error) {
	if !cfg.Enabled() {
		return NewLocalStore(outputDir), nil
	}

	s3store, err := NewS3Store(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("S3 init failed: %w", err)
	}

	// Startup validation: verify credentials and bucket access
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3store.HeadBucket(ctx); err != nil {
		return nil, fmt.Errorf("S3 startup check failed (bucket=%q endpoint=%q): %w",
			cfg.Bucket, cfg.Endpoint, err)
	}
	log.Info().Str("bucket", cfg.Bucket).Str("endpoint", cfg.Endpoint).Msg("S3 connection verified")

	if !cfg.LocalCache {
		return s3store, nil
	}
	return NewTieredStore(s3store, NewLocalStore(outputDir), log), nil
}

// Key joins key segments with '/'.
func Key(parts ...string) string {
	return strings.Join(parts, "/")
}
