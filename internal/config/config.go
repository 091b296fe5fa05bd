// Package config loads the tool configuration from built-in defaults and an optional TOML file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/hashstructure/v2"

	"github.com/naka-gawa/github-activity/internal/domain"
	"github.com/naka-gawa/github-activity/internal/gateway"
)

// DefaultFormat is the output format used when none is configured.
const DefaultFormat = "default"

// ErrInvalidConfig is returned for config values outside their allowed range.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the fully resolved configuration of one run.
type Config struct {
	Thresholds domain.ThresholdConfig
	Format     string
	GitHub     GitHub
}

// GitHub configures the forge gateway.
type GitHub struct {
	APIURL         string
	GraphQLURL     string
	Timeout        time.Duration
	MaxAttempts    int
	RateLimitSleep time.Duration
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Thresholds: domain.DefaultThresholds(),
		Format:     DefaultFormat,
		GitHub: GitHub{
			APIURL:         gateway.DefaultAPIURL,
			Timeout:        gateway.DefaultTimeout,
			MaxAttempts:    gateway.DefaultMaxAttempts,
			RateLimitSleep: gateway.DefaultRateLimitSleep,
		},
	}
}

// duration decodes TOML strings such as "30s" or "1m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// file mirrors the TOML layout. Pointers distinguish absent keys from zero values.
type file struct {
	MinCommits        *int       `toml:"min_commits"`
	MinContributors   *int       `toml:"min_contributors"`
	MaxCommitAgeDays  *int       `toml:"max_commit_age_days"`
	MaxDays           *int       `toml:"max_days"`
	MaxReleaseAgeDays *int       `toml:"max_release_age_days"`
	Format            *string    `toml:"format"`
	GitHub            githubFile `toml:"github"`
}

type githubFile struct {
	APIURL         *string   `toml:"api_url"`
	GraphQLURL     *string   `toml:"graphql_url"`
	Timeout        *duration `toml:"timeout"`
	MaxAttempts    *int      `toml:"max_attempts"`
	RateLimitSleep *duration `toml:"rate_limit_sleep"`
}

// Load returns the defaults overlaid with the TOML file at path.
// An empty path yields the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	var f file
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return Config{}, fmt.Errorf("%w: unknown keys in %s: %s", ErrInvalidConfig, path, strings.Join(keys, ", "))
	}

	f.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (f *file) apply(cfg *Config) {
	setInt(&cfg.Thresholds.MinCommits, f.MinCommits)
	setInt(&cfg.Thresholds.MinContributors, f.MinContributors)
	// max_days is the legacy spelling; the current key wins when both are present.
	setInt(&cfg.Thresholds.MaxCommitAgeDays, f.MaxDays)
	setInt(&cfg.Thresholds.MaxCommitAgeDays, f.MaxCommitAgeDays)
	setInt(&cfg.Thresholds.MaxReleaseAgeDays, f.MaxReleaseAgeDays)
	if f.Format != nil {
		cfg.Format = *f.Format
	}

	gh := f.GitHub
	if gh.APIURL != nil {
		cfg.GitHub.APIURL = *gh.APIURL
	}
	if gh.GraphQLURL != nil {
		cfg.GitHub.GraphQLURL = *gh.GraphQLURL
	}
	if gh.Timeout != nil {
		cfg.GitHub.Timeout = gh.Timeout.Duration
	}
	setInt(&cfg.GitHub.MaxAttempts, gh.MaxAttempts)
	if gh.RateLimitSleep != nil {
		cfg.GitHub.RateLimitSleep = gh.RateLimitSleep.Duration
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// Validate checks the thresholds and the gateway limits.
func (c Config) Validate() error {
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	if c.GitHub.Timeout <= 0 {
		return fmt.Errorf("%w: github.timeout must be positive, got %s", ErrInvalidConfig, c.GitHub.Timeout)
	}
	if c.GitHub.MaxAttempts < 1 {
		return fmt.Errorf("%w: github.max_attempts must be at least 1, got %d", ErrInvalidConfig, c.GitHub.MaxAttempts)
	}
	if c.GitHub.RateLimitSleep < 0 {
		return fmt.Errorf("%w: github.rate_limit_sleep must not be negative, got %s", ErrInvalidConfig, c.GitHub.RateLimitSleep)
	}
	return nil
}

// GatewayOptions converts the GitHub settings into gateway options.
func (c Config) GatewayOptions(token string) gateway.Options {
	return gateway.Options{
		Token:          token,
		APIURL:         c.GitHub.APIURL,
		GraphQLURL:     c.GitHub.GraphQLURL,
		Timeout:        c.GitHub.Timeout,
		MaxAttempts:    c.GitHub.MaxAttempts,
		RateLimitSleep: c.GitHub.RateLimitSleep,
	}
}

// Fingerprint returns a stable hex digest of the thresholds.
func Fingerprint(t domain.ThresholdConfig) (string, error) {
	h, err := hashstructure.Hash(t, hashstructure.FormatV2, nil)
	if err != nil {
		return "", fmt.Errorf("fingerprint thresholds: %w", err)
	}
	return fmt.Sprintf("%016x", h), nil
}
