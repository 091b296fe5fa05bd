package usecase

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/naka-gawa/github-activity/internal/domain"
	"github.com/naka-gawa/github-activity/internal/history"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Load() (*domain.HistoryRecord, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.HistoryRecord), args.Error(1)
}

func (m *mockStore) Save(record *domain.HistoryRecord) error {
	return m.Called(record).Error(0)
}

var trackedAt = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

func trackedReport(commits int) *domain.Report {
	return &domain.Report{
		RepositorySnapshot: domain.RepositorySnapshot{
			Owner:             "rust-lang",
			Repo:              "rust",
			CommitsTotal:      domain.KnownCount(commits),
			ContributorsTotal: domain.KnownCount(4500),
			OpenPullRequests:  domain.KnownCount(700),
			OpenIssues:        domain.UnknownCount(),
			LastRelease:       &domain.ReleaseInfo{TagName: "1.88.0"},
			FetchedAt:         trackedAt,
		},
		ProjectAlive: true,
		AliveReason:  domain.ReasonEstablishedProject,
		Criteria:     domain.DefaultThresholds(),
	}
}

func newTestTracker(store HistoryStore) *Tracker {
	tr := NewTracker(store, zap.NewNop())
	tr.now = func() time.Time { return trackedAt }
	return tr
}

func savedRecord(report *domain.Report, fingerprint string) *domain.HistoryRecord {
	return &domain.HistoryRecord{
		Version:           domain.HistoryVersion,
		WrittenAt:         trackedAt,
		ConfigFingerprint: fingerprint,
		LastData:          *report,
	}
}

func TestTracker_Track(t *testing.T) {
	testCases := []struct {
		name     string
		previous *domain.HistoryRecord
		loadErr  error
		report   *domain.Report
		field    string
		expected *Change
	}{
		{
			name:     "first run",
			report:   trackedReport(304813),
			field:    "commits_total",
			expected: &Change{Field: "commits_total", Magnitude: 0, Changed: false, HadHistory: false},
		},
		{
			name:     "count grows",
			previous: savedRecord(trackedReport(304813), "fp"),
			report:   trackedReport(304969),
			field:    "commits_total",
			expected: &Change{Field: "commits_total", Magnitude: 156, Changed: true, HadHistory: true},
		},
		{
			name:     "unchanged data",
			previous: savedRecord(trackedReport(304813), "fp"),
			report:   trackedReport(304813),
			field:    "last_release.tag_name",
			expected: &Change{Field: "last_release.tag_name", Magnitude: 0, Changed: false, HadHistory: true},
		},
		{
			name:     "no field only reports the change flag",
			previous: savedRecord(trackedReport(1), "fp"),
			report:   trackedReport(2),
			expected: &Change{Changed: true, HadHistory: true},
		},
		{
			name:     "unreadable history is treated as no history",
			loadErr:  errors.New("history unreadable: parse"),
			report:   trackedReport(304813),
			field:    "commits_total",
			expected: &Change{Field: "commits_total", Magnitude: 0, Changed: false, HadHistory: false},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := new(mockStore)
			store.On("Load").Return(tc.previous, tc.loadErr)
			store.On("Save", savedRecord(tc.report, "fp")).Return(nil)

			change, err := newTestTracker(store).Track(tc.report, "fp", tc.field)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, change)
			store.AssertExpectations(t)
		})
	}
}

func TestTracker_UnknownFieldLeavesHistoryAlone(t *testing.T) {
	store := new(mockStore)

	change, err := newTestTracker(store).Track(trackedReport(1), "fp", "nonexistent.field")
	assert.Nil(t, change)
	assert.ErrorIs(t, err, domain.ErrUnknownField)
	store.AssertNotCalled(t, "Load")
	store.AssertNotCalled(t, "Save", mock.Anything)
}

func TestTracker_SaveFailure(t *testing.T) {
	store := new(mockStore)
	store.On("Load").Return(nil, nil)
	store.On("Save", mock.Anything).Return(errors.New("disk full"))

	change, err := newTestTracker(store).Track(trackedReport(1), "fp", "")
	assert.Nil(t, change)
	assert.ErrorContains(t, err, "save history: disk full")
}

func TestTracker_HistoryWithoutReportIsBaseline(t *testing.T) {
	for _, content := range []string{`{}`, `null`, `{"foo": 1}`} {
		t.Run(content, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "history.json")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

			change, err := newTestTracker(history.NewFileStore(path, zap.NewNop())).Track(trackedReport(304969), "fp", "commits_total")
			require.NoError(t, err)
			assert.Equal(t, &Change{Field: "commits_total", Magnitude: 0, Changed: false, HadHistory: false}, change)

			// The unusable file is replaced by a proper record.
			loaded, err := history.NewFileStore(path, zap.NewNop()).Load()
			require.NoError(t, err)
			assert.Equal(t, domain.KnownCount(304969), loaded.LastData.CommitsTotal)
		})
	}
}
