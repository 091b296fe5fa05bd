package domain

import "time"

// HistoryVersion is the schema version written into every HistoryRecord.
const HistoryVersion = 1

// Report is a snapshot together with the verdict and the thresholds that produced it.
// It is what gets printed, persisted and addressed by field paths.
type Report struct {
	RepositorySnapshot
	ProjectAlive bool            `json:"project_alive"`
	AliveReason  Reason          `json:"alive_reason"`
	Criteria     ThresholdConfig `json:"criteria"`
}

// NewReport combines a snapshot with its verdict.
func NewReport(s *RepositorySnapshot, v ActivityVerdict, cfg ThresholdConfig) *Report {
	return &Report{
		RepositorySnapshot: *s,
		ProjectAlive:       v.Alive,
		AliveReason:        v.Reason,
		Criteria:           cfg,
	}
}

// HistoryRecord is the persisted form of the most recent report for one repository.
type HistoryRecord struct {
	Version           int       `json:"version"`
	WrittenAt         time.Time `json:"written_at"`
	ConfigFingerprint string    `json:"config_fingerprint"`
	LastData          Report    `json:"last_data"`
}
