package usecase

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/naka-gawa/github-activity/internal/domain"
)

// HistoryStore loads and saves the most recent HistoryRecord of one repository.
// Load returns a nil record when there is no history yet.
type HistoryStore interface {
	Load() (*domain.HistoryRecord, error)
	Save(record *domain.HistoryRecord) error
}

// Change is the outcome of comparing a report with the stored history.
type Change struct {
	Field      string
	Magnitude  int
	Changed    bool
	HadHistory bool
}

// Tracker compares reports with their previous run and keeps the history current.
type Tracker struct {
	store  HistoryStore
	logger *zap.Logger
	now    func() time.Time
}

// NewTracker creates a Tracker backed by store.
func NewTracker(store HistoryStore, logger *zap.Logger) *Tracker {
	return &Tracker{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Track diffs the report against the stored record, then stores the report as
// the new record. fieldPath may be empty, in which case only Changed is computed.
// An unknown fieldPath fails before the history is touched. Unreadable history
// is treated as no history.
func (t *Tracker) Track(report *domain.Report, fingerprint, fieldPath string) (*Change, error) {
	if fieldPath != "" {
		if _, err := domain.FieldKind(fieldPath); err != nil {
			return nil, err
		}
	}

	prev, err := t.store.Load()
	if err != nil {
		t.logger.Warn("History unreadable, starting from empty history", zap.Error(err))
		prev = nil
	}
	if prev != nil && prev.ConfigFingerprint != fingerprint {
		t.logger.Info("Thresholds differ from the previous run",
			zap.String("previous", prev.ConfigFingerprint),
			zap.String("current", fingerprint))
	}

	change := &Change{
		Field:      fieldPath,
		HadHistory: prev != nil,
		Changed:    domain.Changed(prev, report),
	}
	if fieldPath != "" {
		change.Magnitude, err = domain.Diff(prev, report, fieldPath)
		if err != nil {
			return nil, err
		}
		t.logger.Debug("Change magnitude computed", zap.String("field", fieldPath), zap.Int("magnitude", change.Magnitude))
	}

	record := &domain.HistoryRecord{
		Version:           domain.HistoryVersion,
		WrittenAt:         t.now().UTC(),
		ConfigFingerprint: fingerprint,
		LastData:          *report,
	}
	if err := t.store.Save(record); err != nil {
		return nil, fmt.Errorf("save history: %w", err)
	}
	return change, nil
}
