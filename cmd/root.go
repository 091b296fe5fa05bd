// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/github-activity/internal/gateway"
)

// maxExitCode is the largest status a process can report.
const maxExitCode = 255

var rootCmd = &cobra.Command{
	Use:   "github-activity",
	Short: "A CLI tool to tell whether a GitHub repository is actively maintained.",
	Long: `github-activity pulls a few activity signals from the GitHub API (last commit,
last release, commit and contributor totals, open pull requests and issues),
classifies the repository as alive or likely dead, and can diff the result
against a previous run, reporting the size of the change as the exit code.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// exitCodeError ends the process with a non-zero status without printing anything.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(os.Stderr, err))
}

// exitCode reports err on w and returns the process status for it.
func exitCode(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	var codeErr *exitCodeError
	if errors.As(err, &codeErr) {
		return codeErr.code
	}

	fmt.Fprintf(w, "Error: %v\n", err)
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) && gwErr.Kind == gateway.KindRateLimited {
		if !gwErr.RetryAt.IsZero() {
			fmt.Fprintf(w, "GitHub rate limit resets at %s.\n", gwErr.RetryAt.Local().Format(time.RFC1123))
		}
		fmt.Fprintln(w, "Set GITHUB_TOKEN to raise the rate limit.")
	}
	return 1
}

// clampExitCode maps a change magnitude onto the valid exit status range.
func clampExitCode(magnitude int) int {
	switch {
	case magnitude < 0:
		return 0
	case magnitude > maxExitCode:
		return maxExitCode
	default:
		return magnitude
	}
}

func init() {
	// Persistent flags are available to all commands.
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging to stderr")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a TOML config file")
}
