package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// ErrSave wraps any failure to persist the subscriber file.
var ErrSave = errors.New("save subscribers")

// Store keeps the subscriber list as one JSON array in a flat file.
// Every Save rewrites the whole file.
type Store struct {
	path   string
	logger *zap.Logger
}

func New(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger}
}

// Load returns the stored list in insertion order. A missing, unreadable or
// unparsable file yields an empty list and no error; the cases are logged
// separately.
func (s *Store) Load(_ context.Context) ([]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("subscriber file absent, starting empty", zap.String("path", s.path))
		} else {
			s.logger.Warn("subscriber file unreadable, treating as empty", zap.String("path", s.path), zap.Error(err))
		}
		return []string{}, nil
	}

	var emails []string
	if err := json.Unmarshal(data, &emails); err != nil {
		s.logger.Warn("subscriber file corrupt, treating as empty", zap.String("path", s.path), zap.Error(err))
		return []string{}, nil
	}
	if emails == nil {
		emails = []string{}
	}
	return emails, nil
}

// Save atomically replaces the file: the list is written to a temp file in
// the same directory, synced, and renamed over the target.
func (s *Store) Save(_ context.Context, emails []string) error {
	if emails == nil {
		emails = []string{}
	}
	data, err := json.Marshal(emails)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrSave, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: create dir: %w", ErrSave, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp: %w", ErrSave, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: write: %w", ErrSave, err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: sync: %w", ErrSave, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: close: %w", ErrSave, err)
	}
	if err = os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("%w: chmod: %w", ErrSave, err)
	}
	if err = os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: rename: %w", ErrSave, err)
	}
	return nil
}
