package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"

	apperrors "github.com/jittakal/evexport/internal/errors"
	"github.com/jittakal/evexport/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.ObjectStore = (*LocalStore)(nil)

// LocalStore implements storage.ObjectStore on a filesystem.
// Objects are written to a temporary name and renamed into place, so a
// crashed export never leaves a truncated part under its final key.
type LocalStore struct {
	fs       afero.Fs
	basePath string
	logger   *slog.Logger
}

// NewLocalStore creates a store rooted at basePath.
func NewLocalStore(fs afero.Fs, basePath string, logger *slog.Logger) (*LocalStore, error) {
	if err := fs.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	logger.Info("filesystem store created", "base_path", basePath)

	return &LocalStore{
		fs:       fs,
		basePath: basePath,
		logger:   logger,
	}, nil
}

// Put writes r to basePath/key.
func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, _ string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))
	if err := s.fs.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return 0, &apperrors.StorageError{Operation: "mkdir", Path: fullPath, Err: err}
	}

	tmpPath := fullPath + ".tmp"
	f, err := s.fs.Create(tmpPath)
	if err != nil {
		return 0, &apperrors.StorageError{Operation: "create", Path: tmpPath, Err: err}
	}

	n, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		s.fs.Remove(tmpPath)
		return 0, &apperrors.StorageError{Operation: "write", Path: tmpPath, Err: err}
	}
	if err := f.Close(); err != nil {
		s.fs.Remove(tmpPath)
		return 0, &apperrors.StorageError{Operation: "close", Path: tmpPath, Err: err}
	}

	if err := s.fs.Rename(tmpPath, fullPath); err != nil {
		s.fs.Remove(tmpPath)
		return 0, &apperrors.StorageError{Operation: "rename", Path: fullPath, Err: err}
	}

	return n, nil
}

// Name returns the backend name.
func (s *LocalStore) Name() string {
	return "file"
}

// Close closes the store.
func (s *LocalStore) Close() error {
	s.logger.Debug("closing filesystem store")
	return nil
}
