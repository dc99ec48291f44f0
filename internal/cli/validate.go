package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fusion/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Errors   int                        `json:"errors"`
	Warnings int                        `json:"warnings"`
	Findings []compiler.ValidationError `json:"findings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <book>",
		Short: "Lint a recipe book",
		Long: `Lint a CUE or YAML recipe book without building a catalog.

Errors mark recipes the catalog would skip: bad ingredient counts, missing
results and invalid identifiers. Warnings mark recipes the catalog
tolerates: references to undefined cards and later duplicates of an
ingredient set. Warnings alone do not fail validation.

Exit codes:
  0 - No errors (warnings allowed)
  1 - One or more errors
  2 - Command error (book not found, unreadable, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	book, err := LoadBook(path)
	if err != nil {
		return outputLoadError(formatter, "✗ Validation failed", err)
	}
	formatter.VerboseLog("Validating %d card(s), %d recipe(s) from %s", len(book.Cards), len(book.Recipes), path)

	findings := compiler.Validate(book)
	result := ValidationResult{Valid: !compiler.HasErrors(findings), Findings: findings}
	for _, f := range findings {
		if f.Severity == compiler.SeverityError {
			result.Errors++
		} else {
			result.Warnings++
		}
	}

	if result.Valid {
		return outputValidateSuccess(formatter, result)
	}
	return outputValidationErrors(formatter, result)
}

// outputValidateSuccess outputs a passing lint, with any warnings.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	if result.Warnings == 0 {
		fmt.Fprintln(formatter.Writer, "✓ Book is valid")
		return nil
	}
	fmt.Fprintf(formatter.Writer, "✓ Book is valid with %d warning(s)\n\n", result.Warnings)
	printFindings(formatter, result.Findings)
	return nil
}

// outputValidationErrors outputs a failed lint.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	message := fmt.Sprintf("validation failed with %d error(s)", result.Errors)

	if formatter.Format == "json" {
		first := firstError(result.Findings)
		if err := writeResponse(formatter.Writer, CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    first.Code,
				Message: first.Message,
			},
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, message)
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	printFindings(formatter, result.Findings)
	return NewExitError(ExitFailure, message)
}

func printFindings(formatter *OutputFormatter, findings []compiler.ValidationError) {
	for _, f := range findings {
		if f.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", f.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s %s: %s: %s\n\n", f.Code, f.Severity, f.Field, f.Message)
	}
}

func firstError(findings []compiler.ValidationError) compiler.ValidationError {
	for _, f := range findings {
		if f.Severity == compiler.SeverityError {
			return f
		}
	}
	return compiler.ValidationError{}
}
