package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidThresholds is returned when a threshold is not a positive integer.
var ErrInvalidThresholds = errors.New("invalid thresholds")

// ThresholdConfig holds the limits an assessment is classified against.
type ThresholdConfig struct {
	MinCommits        int `json:"min_commits"`
	MinContributors   int `json:"min_contributors"`
	MaxCommitAgeDays  int `json:"max_commit_age_days"`
	MaxReleaseAgeDays int `json:"max_release_age_days"`
}

// DefaultThresholds returns the built-in thresholds.
func DefaultThresholds() ThresholdConfig {
	return ThresholdConfig{
		MinCommits:        100,
		MinContributors:   3,
		MaxCommitAgeDays:  60,
		MaxReleaseAgeDays: 180,
	}
}

// Validate reports the first threshold that is not positive.
func (c ThresholdConfig) Validate() error {
	checks := []struct {
		name  string
		value int
	}{
		{"min_commits", c.MinCommits},
		{"min_contributors", c.MinContributors},
		{"max_commit_age_days", c.MaxCommitAgeDays},
		{"max_release_age_days", c.MaxReleaseAgeDays},
	}
	for _, check := range checks {
		if check.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidThresholds, check.name, check.value)
		}
	}
	return nil
}

// Reason names the criterion that made a repository count as alive.
type Reason string

const (
	ReasonRecentCommit       Reason = "recent_commit"
	ReasonEstablishedProject Reason = "established_project"
	ReasonRecentRelease      Reason = "recent_release"
	ReasonNone               Reason = "none"
)

// ActivityVerdict is the outcome of Classify.
type ActivityVerdict struct {
	Alive  bool   `json:"alive"`
	Reason Reason `json:"reason"`
}

// Classify evaluates the snapshot against the thresholds.
// Criteria are checked in a fixed order and the first match wins:
// recent commit, established project, recent release.
// Ages are measured against the snapshot's FetchedAt.
func Classify(s *RepositorySnapshot, cfg ThresholdConfig) ActivityVerdict {
	now := s.FetchedAt.UTC()

	if s.LastCommit != nil && DaysBetween(s.LastCommit.DateUTC, now) <= cfg.MaxCommitAgeDays {
		return ActivityVerdict{Alive: true, Reason: ReasonRecentCommit}
	}

	// Skipped entirely when either total is unknown.
	if s.ContributorsTotal.Known && s.CommitsTotal.Known &&
		s.ContributorsTotal.Value >= cfg.MinContributors &&
		s.CommitsTotal.Value >= cfg.MinCommits {
		return ActivityVerdict{Alive: true, Reason: ReasonEstablishedProject}
	}

	if s.LastRelease != nil && DaysBetween(s.LastRelease.DateUTC, now) <= cfg.MaxReleaseAgeDays {
		return ActivityVerdict{Alive: true, Reason: ReasonRecentRelease}
	}

	return ActivityVerdict{Alive: false, Reason: ReasonNone}
}

// DaysBetween returns the whole days elapsed from then to now, truncated toward zero.
func DaysBetween(then, now time.Time) int {
	return int(now.UTC().Sub(then.UTC()) / (24 * time.Hour))
}
