package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/biller/internal/application/port"
	"github.com/garyjia/biller/internal/domain/entity"
)

// LocalFileStorage keeps generated documents under a base directory
type LocalFileStorage struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalFileStorage creates a new LocalFileStorage
func NewLocalFileStorage(baseDir string, logger *zap.Logger) port.FileStorage {
	return &LocalFileStorage{
		baseDir: baseDir,
		logger:  logger,
	}
}

// Save writes content to the relative path. The file is written to a
// sibling temp file first and renamed so readers never see a partial PDF.
func (s *LocalFileStorage) Save(ctx context.Context, path string, content []byte) error {
	fullPath, err := s.resolve(path)
	if err != nil {
		return err
	}

	parentDir := filepath.Dir(fullPath)
	if err := os.MkdirAll(parentDir, 0o755); err != nil {
		s.logger.Error("Failed to create parent directories",
			zap.String("path", parentDir),
			zap.Error(err))
		return fmt.Errorf("failed to create directories: %w", err)
	}

	tmp, err := os.CreateTemp(parentDir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		s.logger.Error("Failed to write file", zap.String("path", fullPath), zap.Error(err))
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		s.logger.Error("Failed to move file into place", zap.String("path", fullPath), zap.Error(err))
		return fmt.Errorf("failed to write file: %w", err)
	}

	s.logger.Debug("File saved",
		zap.String("path", fullPath),
		zap.Int("size", len(content)))

	return nil
}

// Read returns the content at the relative path, or entity.ErrNotFound
func (s *LocalFileStorage) Read(ctx context.Context, path string) ([]byte, error) {
	fullPath, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("file %s: %w", path, entity.ErrNotFound)
	}
	if err != nil {
		s.logger.Error("Failed to read file",
			zap.String("path", fullPath),
			zap.Error(err))
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return content, nil
}

// Exists reports whether a regular file exists at the relative path
func (s *LocalFileStorage) Exists(ctx context.Context, path string) bool {
	fullPath, err := s.resolve(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(fullPath)
	return err == nil && info.Mode().IsRegular()
}

// Delete removes the file; deleting a missing file succeeds
func (s *LocalFileStorage) Delete(ctx context.Context, path string) error {
	fullPath, err := s.resolve(path)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Error("Failed to delete file",
			zap.String("path", fullPath),
			zap.Error(err))
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// GetFullPath converts a relative path to full path
func (s *LocalFileStorage) GetFullPath(relativePath string) string {
	return filepath.Join(s.baseDir, relativePath)
}

// resolve joins path onto baseDir and rejects anything that escapes it
func (s *LocalFileStorage) resolve(path string) (string, error) {
	fullPath := s.GetFullPath(path)

	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", entity.NewValidationError("path escapes storage directory: %s", path)
	}

	return fullPath, nil
}
