// Package history persists the most recent report of a tracked repository as a JSON file.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/naka-gawa/github-activity/internal/domain"
)

// ErrUnreadable is returned by Load when the history file exists but cannot be used.
var ErrUnreadable = errors.New("history unreadable")

// storedRecord shadows LastData with a pointer so a file without a report is detectable.
type storedRecord struct {
	domain.HistoryRecord
	LastData *domain.Report `json:"last_data"`
}

// FileStore keeps one HistoryRecord in a JSON file.
// It is single-writer: concurrent runs against the same path must be serialized by the caller.
type FileStore struct {
	path   string
	logger *zap.Logger
}

// NewFileStore creates a FileStore for path.
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	return &FileStore{path: path, logger: logger}
}

// Path returns the history file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the record. A missing file yields a nil record and no error.
func (s *FileStore) Load() (*domain.HistoryRecord, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug("No history file", zap.String("path", s.path))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrUnreadable, s.path, err)
	}

	var stored storedRecord
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrUnreadable, s.path, err)
	}
	if stored.LastData == nil {
		return nil, fmt.Errorf("%w: %s holds no last_data report", ErrUnreadable, s.path)
	}
	if stored.Version > domain.HistoryVersion {
		return nil, fmt.Errorf("%w: %s has unsupported version %d", ErrUnreadable, s.path, stored.Version)
	}
	record := stored.HistoryRecord
	record.LastData = *stored.LastData
	s.logger.Debug("History loaded", zap.String("path", s.path), zap.Int("bytes", len(data)))
	return &record, nil
}

// Save replaces the record, writing a temporary sibling and renaming it into place.
func (s *FileStore) Save(record *domain.HistoryRecord) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return fmt.Errorf("creating temporary history file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("writing history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing history: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing history file: %w", err)
	}
	s.logger.Debug("History saved", zap.String("path", s.path), zap.Int("bytes", len(data)))
	return nil
}
