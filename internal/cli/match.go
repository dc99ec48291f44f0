package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fusion/internal/card"
)

// MatchResult is the outcome of one catalog lookup.
type MatchResult struct {
	Ingredients []string `json:"ingredients"`
	Matched     bool     `json:"matched"`
	Result      string   `json:"result,omitempty"`
}

// NewMatchCommand creates the match command.
func NewMatchCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match <book> <card> <card> [card]",
		Short: "Look up the fusion of two or three cards",
		Long: `Build the catalog for a book and look up one ingredient set.

Order and case do not matter: "Water fire" finds the same recipe as
"Fire Water".

Exit codes:
  0 - A recipe matched
  1 - No recipe for these cards
  2 - Command error (book not found, unreadable, etc.)

Examples:
  fusion match ./books/elements.cue Fire Water`,
		Args:          cobra.RangeArgs(3, 4),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(rootOpts, args[0], args[1:], cmd)
		},
	}

	return cmd
}

func runMatch(opts *RootOptions, path string, ids []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	book, err := LoadBook(path)
	if err != nil {
		return outputLoadError(formatter, "✗ Match failed", err)
	}
	cat, report := buildCatalog(book, opts.Logger(formatter.GetErrWriter()))
	formatter.VerboseLog("Catalog has %d recipe(s), %d skipped", report.Loaded, report.Skipped())

	result := MatchResult{Ingredients: ids}
	if res, ok := cat.TryMatch(card.FromStrings(ids)...); ok {
		result.Matched = true
		result.Result = string(res)
	}

	if formatter.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else if result.Matched {
		fmt.Fprintf(formatter.Writer, "✓ %s = %s\n", strings.Join(ids, " + "), result.Result)
	} else {
		fmt.Fprintf(formatter.Writer, "✗ %s: no recipe\n", strings.Join(ids, " + "))
	}

	if !result.Matched {
		return NewExitError(ExitFailure, "no recipe")
	}
	return nil
}
