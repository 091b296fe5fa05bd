// Package output renders reports as text, JSON or a single field value.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/naka-gawa/github-activity/internal/domain"
)

// ErrInvalidFormat is returned by ParseFormat for unrecognised format strings.
var ErrInvalidFormat = errors.New("invalid output format")

// Kind selects the rendering of a report.
type Kind int

const (
	KindDefault Kind = iota
	KindJSON
	KindField
)

// Format is a parsed --format value.
type Format struct {
	Kind Kind
	// Field is the dotted path printed by KindField.
	Field string
}

const fieldPrefix = "field:"

// ParseFormat accepts "default", "json" or "field:<path>".
func ParseFormat(s string) (Format, error) {
	switch {
	case s == "" || s == "default":
		return Format{Kind: KindDefault}, nil
	case s == "json":
		return Format{Kind: KindJSON}, nil
	case strings.HasPrefix(s, fieldPrefix):
		path := strings.TrimPrefix(s, fieldPrefix)
		if path == "" {
			return Format{}, fmt.Errorf("%w: field name is empty", ErrInvalidFormat)
		}
		if _, err := domain.FieldKind(path); err != nil {
			return Format{}, err
		}
		return Format{Kind: KindField, Field: path}, nil
	default:
		return Format{}, fmt.Errorf("%w: %q (use default, json or field:<path>)", ErrInvalidFormat, s)
	}
}

// Write renders report to w.
func Write(w io.Writer, f Format, report *domain.Report) error {
	switch f.Kind {
	case KindJSON:
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report to JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case KindField:
		v, err := domain.Resolve(report, f.Field)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, v.String())
		return err
	default:
		_, err := io.WriteString(w, newTextRenderer(w).render(report))
		return err
	}
}

// WriteChange appends the history comparison to a default-format report.
// Machine-readable formats are left untouched.
func WriteChange(w io.Writer, f Format, hadHistory, changed bool) error {
	if f.Kind != KindDefault {
		return nil
	}
	t := newTextRenderer(w)
	switch {
	case !hadHistory:
		t.line("Changed since last run", t.muted.Render("No previous run"))
	case changed:
		t.line("Changed since last run", t.warn.Render("Yes"))
	default:
		t.line("Changed since last run", "No")
	}
	_, err := io.WriteString(w, t.buf.String())
	return err
}

const labelWidth = 25

type textRenderer struct {
	label lipgloss.Style
	title lipgloss.Style
	rule  lipgloss.Style
	good  lipgloss.Style
	warn  lipgloss.Style
	muted lipgloss.Style
	buf   strings.Builder
}

// newTextRenderer binds styles to w so colour is only emitted on terminals.
func newTextRenderer(w io.Writer) *textRenderer {
	r := lipgloss.NewRenderer(w)
	return &textRenderer{
		label: r.NewStyle().Width(labelWidth),
		title: r.NewStyle().Bold(true).Foreground(lipgloss.Color("99")),
		rule:  r.NewStyle().Foreground(lipgloss.Color("240")),
		good:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		warn:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		muted: r.NewStyle().Foreground(lipgloss.Color("250")),
	}
}

func (t *textRenderer) line(label, value string) {
	t.buf.WriteString(t.label.Render(label) + ": " + value + "\n")
}

func (t *textRenderer) separator() {
	t.buf.WriteString(t.rule.Render(strings.Repeat("-", 43)) + "\n")
}

func (t *textRenderer) render(report *domain.Report) string {
	t.buf.WriteString(t.title.Render(fmt.Sprintf("Repo: %s/%s", report.Owner, report.Repo)) + "\n")
	t.separator()
	if report.Archived {
		t.line("Archived", t.warn.Render("yes"))
	}
	t.line("Commits total", report.CommitsTotal.String())
	t.line("Contributors total", report.ContributorsTotal.String())
	t.line("Open pull requests", report.OpenPullRequests.String())
	t.line("Open issues", report.OpenIssues.String())

	if c := report.LastCommit; c != nil {
		t.line("Last commit", "")
		t.line("  sha", c.SHA)
		t.line("  author", c.Author)
		t.line("  date (UTC)", formatTime(c.DateUTC))
		t.line("  message", c.Message)
	} else {
		t.line("Last commit", t.muted.Render("No commits found"))
	}

	if rel := report.LastRelease; rel != nil {
		t.line("Last release", "")
		t.line("  tag", rel.TagName)
		if rel.Name != "" {
			t.line("  name", rel.Name)
		}
		if rel.DateUTC.IsZero() {
			t.line("  date (UTC)", "Not available")
			t.line("  status", t.muted.Render("Unknown age"))
		} else {
			days := domain.DaysBetween(rel.DateUTC, report.FetchedAt)
			t.line("  date (UTC)", formatTime(rel.DateUTC))
			t.line("  status", fmt.Sprintf("%s (%d days ago)", t.releaseStatus(rel, days, report.Criteria.MaxReleaseAgeDays), days))
		}
		t.line("  prerelease", yesNo(rel.IsPrerelease))
	} else {
		t.line("Last release", t.muted.Render("No releases found"))
	}

	t.separator()
	verdict := t.warn.Render("LIKELY DEAD")
	if report.ProjectAlive {
		verdict = t.good.Render("ALIVE") + " (" + string(report.AliveReason) + ")"
	}
	t.line("Project alive", verdict)
	c := report.Criteria
	t.buf.WriteString(t.muted.Render(fmt.Sprintf(
		"Criteria: last commit <= %d days, or contributors >= %d and commits >= %d, or release <= %d days",
		c.MaxCommitAgeDays, c.MinContributors, c.MinCommits, c.MaxReleaseAgeDays)) + "\n")
	return t.buf.String()
}

func (t *textRenderer) releaseStatus(rel *domain.ReleaseInfo, days, maxDays int) string {
	switch {
	case days <= maxDays && rel.IsPrerelease:
		return t.good.Render("Recent prerelease")
	case days <= maxDays:
		return t.good.Render("Fresh release")
	case rel.IsPrerelease:
		return t.warn.Render("Stale prerelease")
	default:
		return t.warn.Render("Stale release")
	}
}

func formatTime(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
