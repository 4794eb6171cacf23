// Package janitor removes temp artifacts that a crashed process or a
// vanished client left behind in the staging directory. Live downloads are
// protected by the TTL: the pipeline deletes its own artifacts on every
// normal path, so anything old enough to sweep is orphaned.
package janitor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fetchbox/fetchbox/internal/pipeline"
)

// Janitor sweeps stale artifacts from a staging directory.
type Janitor struct {
	dir    string
	ttl    time.Duration
	logger zerolog.Logger
}

// New creates a janitor for the given staging directory. An empty dir means
// the system temp directory, matching the pipeline's default.
func New(dir string, ttl time.Duration, logger zerolog.Logger) *Janitor {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Janitor{
		dir:    dir,
		ttl:    ttl,
		logger: logger.With().Str("component", "janitor").Logger(),
	}
}

// Sweep deletes artifacts older than the TTL. It is safe to run while
// downloads are in flight.
func (j *Janitor) Sweep(ctx context.Context) error {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-j.ttl)
	removed := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), pipeline.ArtifactPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(j.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			j.logger.Warn().Err(err).Str("path", path).Msg("failed to remove stale artifact")
			continue
		}
		removed++
	}

	if removed > 0 {
		j.logger.Info().Int("removed", removed).Str("dir", j.dir).Msg("swept stale artifacts")
	}
	return nil
}
