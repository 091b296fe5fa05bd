package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/naka-gawa/github-activity/internal/config"
	"github.com/naka-gawa/github-activity/internal/domain"
	"github.com/naka-gawa/github-activity/internal/gateway"
	"github.com/naka-gawa/github-activity/internal/history"
	"github.com/naka-gawa/github-activity/internal/logger"
	"github.com/naka-gawa/github-activity/internal/output"
	"github.com/naka-gawa/github-activity/internal/usecase"
)

var errCheckNeedsHistory = errors.New("--check requires --history")

// fetcherFactory builds the forge client. Tests replace it with a stub.
type fetcherFactory func(opts gateway.Options, logger *zap.Logger) (gateway.Fetcher, error)

func newGitHubFetcher(opts gateway.Options, logger *zap.Logger) (gateway.Fetcher, error) {
	return gateway.NewGitHubGateway(opts, logger)
}

// assessRun holds everything one invocation of assess needs.
type assessRun struct {
	owner, repo string
	token       string
	cfg         config.Config
	format      output.Format
	historyPath string
	checkField  string
	logger      *zap.Logger
	newFetcher  fetcherFactory
	stdout      io.Writer
}

var assessCmd = &cobra.Command{
	Use:   "assess OWNER REPO | OWNER/REPO",
	Short: "Assesses whether a repository is actively maintained",
	Long: `Fetches the activity signals of a GitHub repository and classifies it.
With --history the report is compared with the previous run stored at that path,
and with --check FIELD the process exits with how much that field changed.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, repo, err := parseTarget(args)
		if err != nil {
			return err
		}

		// Get the verbose flag from the root command to set up the logger.
		verbose, _ := cmd.Flags().GetBool("verbose")
		log, err := logger.New(verbose)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer logger.Sync(log)

		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		format, err := output.ParseFormat(cfg.Format)
		if err != nil {
			return err
		}

		historyPath, _ := cmd.Flags().GetString("history")
		checkField, _ := cmd.Flags().GetString("check")
		if checkField != "" {
			if historyPath == "" {
				return errCheckNeedsHistory
			}
			if _, err := domain.FieldKind(checkField); err != nil {
				return err
			}
		}

		code, err := (&assessRun{
			owner:       owner,
			repo:        repo,
			token:       os.Getenv("GITHUB_TOKEN"),
			cfg:         cfg,
			format:      format,
			historyPath: historyPath,
			checkField:  checkField,
			logger:      log,
			newFetcher:  newGitHubFetcher,
			stdout:      cmd.OutOrStdout(),
		}).run(cmd)
		if err != nil {
			return err
		}
		if code != 0 {
			return &exitCodeError{code: code}
		}
		return nil
	},
}

// parseTarget accepts either "owner repo" or "owner/repo".
func parseTarget(args []string) (string, string, error) {
	var owner, repo string
	switch len(args) {
	case 1:
		var ok bool
		owner, repo, ok = strings.Cut(args[0], "/")
		if !ok {
			return "", "", fmt.Errorf("invalid repository %q: expected OWNER/REPO", args[0])
		}
	case 2:
		owner, repo = args[0], args[1]
	default:
		return "", "", fmt.Errorf("expected OWNER REPO or OWNER/REPO, got %d arguments", len(args))
	}
	if owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("invalid repository %q/%q", owner, repo)
	}
	return owner, repo, nil
}

// resolveConfig layers explicitly set flags over the config file over the defaults.
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	intFlags := map[string]*int{
		"min-commits":      &cfg.Thresholds.MinCommits,
		"min-contributors": &cfg.Thresholds.MinContributors,
		"max-days":         &cfg.Thresholds.MaxCommitAgeDays,
		"max-release-days": &cfg.Thresholds.MaxReleaseAgeDays,
	}
	for name, dst := range intFlags {
		if flags.Changed(name) {
			*dst, _ = flags.GetInt(name)
		}
	}
	if flags.Changed("format") {
		cfg.Format, _ = flags.GetString("format")
	}
	if flags.Changed("api-url") {
		cfg.GitHub.APIURL, _ = flags.GetString("api-url")
	}
	if flags.Changed("timeout") {
		cfg.GitHub.Timeout, _ = flags.GetDuration("timeout")
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// run performs the assessment and returns the exit code for --check.
func (r *assessRun) run(cmd *cobra.Command) (int, error) {
	ctx := cmd.Context()

	// Inject dependencies and run the main business logic.
	fetcher, err := r.newFetcher(r.cfg.GatewayOptions(r.token), r.logger)
	if err != nil {
		return 0, fmt.Errorf("failed to create GitHub gateway: %w", err)
	}
	assessor := usecase.NewAssessor(fetcher, r.logger)

	snapshot, err := assessor.Assess(ctx, r.owner, r.repo)
	if err != nil {
		return 0, fmt.Errorf("failed to assess %s/%s: %w", r.owner, r.repo, err)
	}
	verdict := domain.Classify(snapshot, r.cfg.Thresholds)
	report := domain.NewReport(snapshot, verdict, r.cfg.Thresholds)
	r.logger.Info("Classified",
		zap.String("owner", snapshot.Owner),
		zap.String("repo", snapshot.Repo),
		zap.Bool("alive", verdict.Alive),
		zap.String("reason", string(verdict.Reason)))

	var change *usecase.Change
	if r.historyPath != "" {
		fingerprint, err := config.Fingerprint(r.cfg.Thresholds)
		if err != nil {
			return 0, err
		}
		store := history.NewFileStore(r.historyPath, r.logger)
		tracker := usecase.NewTracker(store, r.logger)
		change, err = tracker.Track(report, fingerprint, r.checkField)
		if err != nil {
			return 0, err
		}
		r.logger.Info("History updated",
			zap.String("path", store.Path()),
			zap.Bool("had_history", change.HadHistory),
			zap.Bool("changed", change.Changed))
	}

	if err := output.Write(r.stdout, r.format, report); err != nil {
		return 0, err
	}
	if change != nil {
		if err := output.WriteChange(r.stdout, r.format, change.HadHistory, change.Changed); err != nil {
			return 0, err
		}
	}

	if change == nil || r.checkField == "" {
		return 0, nil
	}
	return clampExitCode(change.Magnitude), nil
}

func addAssessFlags(c *cobra.Command) {
	defaults := config.Default()
	c.Flags().StringP("format", "f", defaults.Format, "Output format: default, json or field:<path>")
	c.Flags().Int("min-commits", defaults.Thresholds.MinCommits, "Minimum total commits of an established project")
	c.Flags().Int("min-contributors", defaults.Thresholds.MinContributors, "Minimum contributors of an established project")
	c.Flags().Int("max-days", defaults.Thresholds.MaxCommitAgeDays, "Maximum age in days of the last commit")
	c.Flags().Int("max-release-days", defaults.Thresholds.MaxReleaseAgeDays, "Maximum age in days of the last release")
	c.Flags().String("history", "", "Path of the history file to diff against and update")
	c.Flags().String("check", "", "Field path whose change magnitude becomes the exit code (requires --history)")
	c.Flags().Duration("timeout", defaults.GitHub.Timeout, "Timeout of each GitHub API call")
	c.Flags().String("api-url", defaults.GitHub.APIURL, "GitHub REST API base URL (GitHub Enterprise)")
}

func init() {
	rootCmd.AddCommand(assessCmd)
	addAssessFlags(assessCmd)
}
