package service

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Cleaner removes staged uploads that outlived the retention window. It
// only ever touches files old enough that no live processing job can still
// own them.
type Cleaner struct {
	stagingDir string
	maxAge     time.Duration
}

func NewCleaner(stagingDir string, maxAge time.Duration) *Cleaner {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &Cleaner{stagingDir: stagingDir, maxAge: maxAge}
}

// Sweep deletes stale staging files and returns how many were removed.
// Per-file errors are logged and skipped; the sweep always finishes.
func (c *Cleaner) Sweep(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(c.stagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := time.Now().Add(-c.maxAge)
	removed := 0

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if entry.IsDir() {
			continue
		}

		filePath := filepath.Join(c.stagingDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("file", filePath).Msg("failed to stat staging file, skipping")
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.Remove(filePath); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("file", filePath).Msg("failed to remove stale staging file, skipping")
			continue
		}
		removed++
		zerolog.Ctx(ctx).Info().Str("file", filePath).Msg("removed stale staging file")
	}

	zerolog.Ctx(ctx).Info().Int("removed", removed).Msg("staging cleanup completed")
	return removed, nil
}
