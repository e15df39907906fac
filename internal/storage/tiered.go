package storage

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// TieredStore combines local disk (source of truth) with S3 (backup/durability).
// Write path: save locally first, then push to S3.
// Read path: local first, S3 fallback with cache-on-read.
type TieredStore struct {
	s3    *S3Store
	local *LocalStore
	log   zerolog.Logger

	mu     sync.Mutex
	missed map[string]string // key → content type of failed S3 writes
}

// NewTieredStore creates a tiered local-primary + S3-backup store.
func NewTieredStore(s3 *S3Store, local *LocalStore, log zerolog.Logger) *TieredStore {
	return &TieredStore{
		s3:     s3,
		local:  local,
		log:    log.With().Str("component", "tiered-store").Logger(),
		missed: make(map[string]string),
	}
}

// Save writes to local disk first (fatal on failure), then S3 (warning on failure).
// S3 failures are remembered and retried by Reconcile.
func (s *TieredStore) Save(ctx context.Context, key string, data []byte, ct string) error {
	if err := s.local.Save(ctx, key, data, ct); err != nil {
		return err
	}
	if err := s.s3.Save(ctx, key, data, ct); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("S3 backup write failed, will reconcile after run")
		s.mu.Lock()
		s.missed[key] = ct
		s.mu.Unlock()
	}
	return nil
}

// Open checks local disk first, then falls back to S3. On S3 hit, the file
// is cached locally for future reads.
func (s *TieredStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if r, err := s.local.Open(ctx, key); err == nil {
		return r, nil
	}
	r, err := s.s3.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	r.Close()
	if err != nil {
		return nil, err
	}
	if cacheErr := s.local.Save(ctx, key, data, ""); cacheErr != nil {
		s.log.Warn().Err(cacheErr).Str("key", key).Msg("failed to cache S3 file locally")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *TieredStore) Exists(ctx context.Context, key string) bool {
	if s.local.Exists(ctx, key) {
		return true
	}
	return s.s3.Exists(ctx, key)
}

func (s *TieredStore) Type() string { return "tiered" }

// Missed returns the keys whose S3 write failed and has not been reconciled.
func (s *TieredStore) Missed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.missed))
	for k := range s.missed {
		keys = append(keys, k)
	}
	return keys
}

func (s *TieredStore) forget(key string) {
	s.mu.Lock()
	delete(s.missed, key)
	s.mu.Unlock()
}
