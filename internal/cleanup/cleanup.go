// Package cleanup provides the scheduled sweep that removes stray temp-upload files
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"musicvault/internal/uploads"
)

// Service sweeps the configured temp-upload directories, removing entries
// older than the retention window. The whole sweep is skipped while any
// upload is active anywhere; the gate is global, not per directory.
type Service struct {
	registry  *uploads.Registry
	tempPaths []string
	retention time.Duration
	logger    *slog.Logger
}

// NewService creates a new cleanup service
func NewService(registry *uploads.Registry, tempPaths []string, retention time.Duration) *Service {
	return &Service{
		registry:  registry,
		tempPaths: tempPaths,
		retention: retention,
		logger:    slog.Default(),
	}
}

// Run sweeps on the given interval until the context is cancelled
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("cleanup service started", "interval", interval, "retention", s.retention)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("cleanup service stopped")
			return
		case <-ticker.C:
			if err := s.Sweep(); err != nil {
				s.logger.Error("sweep failed", "error", err)
			}
		}
	}
}

// Sweep removes expired entries under every temp path. Uploads that died
// without unregistering are dropped from the registry first so they cannot
// block cleanup forever.
func (s *Service) Sweep() error {
	s.registry.SweepStale()

	if s.registry.HasAnyActive() {
		s.logger.Info("uploads in progress, skipping sweep")
		return nil
	}

	cutoff := time.Now().Add(-s.retention)
	removed := 0

	for _, tempPath := range s.tempPaths {
		entries, err := os.ReadDir(tempPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("failed to read temp path %s: %w", tempPath, err)
		}

		for _, entry := range entries {
			path := filepath.Join(tempPath, entry.Name())

			info, err := entry.Info()
			if err != nil {
				s.logger.Warn("failed to stat entry", "path", path, "error", err)
				continue
			}
			if info.ModTime().After(cutoff) {
				continue
			}

			if err := os.RemoveAll(path); err != nil {
				s.logger.Warn("failed to remove entry", "path", path, "error", err)
				continue
			}
			removed++
			s.logger.Info("removed stray temp entry", "path", path, "age", time.Since(info.ModTime()).Round(time.Second))
		}
	}

	if removed > 0 {
		s.logger.Info("sweep completed", "removed", removed)
	}

	return nil
}
