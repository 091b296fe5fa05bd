package domain

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// ErrUnknownField is returned when a field path does not exist in the report schema.
var ErrUnknownField = errors.New("unknown field")

// Kind is the value type of a report field. Each kind has its own change rule.
type Kind int

const (
	KindCount Kind = iota + 1
	KindBool
	KindString
	KindTimestamp
	KindVersion
)

func (k Kind) String() string {
	switch k {
	case KindCount:
		return "count"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindTimestamp:
		return "timestamp"
	case KindVersion:
		return "version"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a resolved field value. Only the member matching Kind is meaningful.
// Present is false for an unknown count, or for a field of a missing commit or release.
type Value struct {
	Kind    Kind
	Present bool
	Int     int
	Bool    bool
	Text    string
	Time    time.Time
}

// String renders the value the way single-field output prints it.
func (v Value) String() string {
	if !v.Present {
		return "null"
	}
	switch v.Kind {
	case KindCount:
		return strconv.Itoa(v.Int)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindTimestamp:
		return v.Time.UTC().Format(time.RFC3339)
	default:
		return v.Text
	}
}

type field struct {
	kind Kind
	get  func(r *Report) Value
}

func countValue(c Count) Value {
	return Value{Kind: KindCount, Present: c.Known, Int: c.Value}
}

func stringValue(s string) Value {
	return Value{Kind: KindString, Present: true, Text: s}
}

func boolValue(b bool) Value {
	return Value{Kind: KindBool, Present: true, Bool: b}
}

func timeValue(t time.Time) Value {
	return Value{Kind: KindTimestamp, Present: true, Time: t}
}

func commitField(kind Kind, get func(c *CommitInfo) Value) field {
	return field{kind: kind, get: func(r *Report) Value {
		if r.LastCommit == nil {
			return Value{Kind: kind}
		}
		return get(r.LastCommit)
	}}
}

func releaseField(kind Kind, get func(rel *ReleaseInfo) Value) field {
	return field{kind: kind, get: func(r *Report) Value {
		if r.LastRelease == nil {
			return Value{Kind: kind}
		}
		return get(r.LastRelease)
	}}
}

var fields = map[string]field{
	"owner":              {KindString, func(r *Report) Value { return stringValue(r.Owner) }},
	"repo":               {KindString, func(r *Report) Value { return stringValue(r.Repo) }},
	"default_branch":     {KindString, func(r *Report) Value { return stringValue(r.DefaultBranch) }},
	"archived":           {KindBool, func(r *Report) Value { return boolValue(r.Archived) }},
	"commits_total":      {KindCount, func(r *Report) Value { return countValue(r.CommitsTotal) }},
	"contributors_total": {KindCount, func(r *Report) Value { return countValue(r.ContributorsTotal) }},
	"open_pull_requests": {KindCount, func(r *Report) Value { return countValue(r.OpenPullRequests) }},
	"open_issues":        {KindCount, func(r *Report) Value { return countValue(r.OpenIssues) }},
	"fetched_at":         {KindTimestamp, func(r *Report) Value { return timeValue(r.FetchedAt) }},
	"project_alive":      {KindBool, func(r *Report) Value { return boolValue(r.ProjectAlive) }},
	"alive_reason":       {KindString, func(r *Report) Value { return stringValue(string(r.AliveReason)) }},

	"last_commit.sha":      commitField(KindString, func(c *CommitInfo) Value { return stringValue(c.SHA) }),
	"last_commit.author":   commitField(KindString, func(c *CommitInfo) Value { return stringValue(c.Author) }),
	"last_commit.date_utc": commitField(KindTimestamp, func(c *CommitInfo) Value { return timeValue(c.DateUTC) }),
	"last_commit.message":  commitField(KindString, func(c *CommitInfo) Value { return stringValue(c.Message) }),

	"last_release.tag_name": releaseField(KindVersion, func(rel *ReleaseInfo) Value {
		return Value{Kind: KindVersion, Present: true, Text: rel.TagName}
	}),
	"last_release.name":          releaseField(KindString, func(rel *ReleaseInfo) Value { return stringValue(rel.Name) }),
	"last_release.date_utc":      releaseField(KindTimestamp, func(rel *ReleaseInfo) Value { return timeValue(rel.DateUTC) }),
	"last_release.is_prerelease": releaseField(KindBool, func(rel *ReleaseInfo) Value { return boolValue(rel.IsPrerelease) }),
}

// Resolve returns the value at a dot-separated field path, e.g. "last_release.tag_name".
func Resolve(r *Report, path string) (Value, error) {
	f, ok := fields[path]
	if !ok {
		return Value{}, fmt.Errorf("%w: %q", ErrUnknownField, path)
	}
	return f.get(r), nil
}

// FieldKind returns the kind of the field at path.
func FieldKind(path string) (Kind, error) {
	f, ok := fields[path]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownField, path)
	}
	return f.kind, nil
}

// FieldPaths returns every addressable field path in sorted order.
func FieldPaths() []string {
	paths := make([]string, 0, len(fields))
	for p := range fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
