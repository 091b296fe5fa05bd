// Package domain contains the core data structures and domain logic for the application.
package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Count is an aggregate total that may be unknown.
// An unknown count is not zero: it means no signal source could produce a total.
type Count struct {
	Value int
	Known bool
}

// KnownCount returns a Count holding n.
func KnownCount(n int) Count {
	return Count{Value: n, Known: true}
}

// UnknownCount returns a Count for a total that could not be derived.
func UnknownCount() Count {
	return Count{}
}

func (c Count) String() string {
	if !c.Known {
		return "unknown"
	}
	return strconv.Itoa(c.Value)
}

// MarshalJSON encodes an unknown count as null.
func (c Count) MarshalJSON() ([]byte, error) {
	if !c.Known {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(c.Value)), nil
}

// UnmarshalJSON decodes a number or null.
func (c *Count) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*c = UnknownCount()
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*c = KnownCount(n)
	return nil
}

// RepoMeta is the repository-level metadata returned by the forge.
type RepoMeta struct {
	Owner         string
	Name          string
	DefaultBranch string
	Archived      bool
}

// CommitInfo describes the most recent commit on the default branch.
type CommitInfo struct {
	SHA     string    `json:"sha"`
	Author  string    `json:"author"`
	DateUTC time.Time `json:"date_utc"`
	Message string    `json:"message"`
}

// ReleaseInfo describes the latest published release.
type ReleaseInfo struct {
	TagName      string    `json:"tag_name"`
	Name         string    `json:"name"`
	DateUTC      time.Time `json:"date_utc"`
	IsPrerelease bool      `json:"is_prerelease"`
}

// RepositorySnapshot is one point-in-time record of a repository's activity signals.
// LastCommit and LastRelease are nil only when the repository has none.
type RepositorySnapshot struct {
	Owner             string       `json:"owner"`
	Repo              string       `json:"repo"`
	DefaultBranch     string       `json:"default_branch"`
	Archived          bool         `json:"archived"`
	CommitsTotal      Count        `json:"commits_total"`
	ContributorsTotal Count        `json:"contributors_total"`
	OpenPullRequests  Count        `json:"open_pull_requests"`
	OpenIssues        Count        `json:"open_issues"`
	LastCommit        *CommitInfo  `json:"last_commit"`
	LastRelease       *ReleaseInfo `json:"last_release"`
	FetchedAt         time.Time    `json:"fetched_at"`
}
