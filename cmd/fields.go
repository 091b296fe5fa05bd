package cmd

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/naka-gawa/github-activity/internal/domain"
)

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "Lists the field paths usable with --format field:<path> and --check",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeFields(cmd.OutOrStdout())
	},
}

func writeFields(w io.Writer) error {
	pathStyle := lipgloss.NewRenderer(w).NewStyle().Width(28)
	for _, path := range domain.FieldPaths() {
		kind, err := domain.FieldKind(path)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, pathStyle.Render(path)+kind.String()); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(fieldsCmd)
}
