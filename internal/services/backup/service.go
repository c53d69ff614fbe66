// Package backup uploads the ledger and price cache CSV files to object
// storage so local state can be rebuilt after a host loss.
package backup

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/ports/outbound"
)

// ServiceConfig holds configuration for the backup service.
type ServiceConfig struct {
	// DataDir is the local root of the ledger and price cache files.
	DataDir string

	// Logger is the structured logger for the service.
	Logger *slog.Logger
}

// Service uploads every CSV under the data directory, keyed by its path
// relative to the data root.
type Service struct {
	config ServiceConfig
	writer outbound.BackupWriter
	logger *slog.Logger
}

// NewService creates a new backup service.
func NewService(config ServiceConfig, writer outbound.BackupWriter) (*Service, error) {
	if writer == nil {
		return nil, fmt.Errorf("writer cannot be nil")
	}
	if config.DataDir == "" {
		return nil, fmt.Errorf("data dir cannot be empty")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		config: config,
		writer: writer,
		logger: logger.With("component", "backup"),
	}, nil
}

// Run uploads all CSV files and returns the number uploaded. The first failed
// upload aborts the run; already-uploaded files stay uploaded, and the next
// run re-uploads everything.
func (s *Service) Run(ctx context.Context) (int, error) {
	uploaded := 0
	err := filepath.WalkDir(s.config.DataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".csv") {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(s.config.DataDir, path)
		if err != nil {
			return fmt.Errorf("resolving key for %s: %w", path, err)
		}
		key := filepath.ToSlash(rel)

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		uploadErr := s.writer.Upload(ctx, key, f, "text/csv")
		closeErr := f.Close()
		if uploadErr != nil {
			return fmt.Errorf("uploading %s: %w", key, uploadErr)
		}
		if closeErr != nil {
			return fmt.Errorf("closing %s: %w", path, closeErr)
		}

		uploaded++
		return nil
	})
	if err != nil {
		return uploaded, err
	}

	s.logger.Info("backup complete", "files", uploaded)
	return uploaded, nil
}
