package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/fusion/internal/catalog"
	"github.com/roach88/fusion/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompileResult summarizes a compiled book and its catalog build.
type CompileResult struct {
	Book       string       `json:"book"`
	Hash       string       `json:"hash"`
	Cards      int          `json:"cards"`
	Recipes    int          `json:"recipes"`
	Loaded     int          `json:"loaded"`
	Invalid    int          `json:"invalid"`
	Duplicates int          `json:"duplicates"`
	Skipped    []SkipReport `json:"skipped,omitempty"`
	Output     string       `json:"output,omitempty"`
}

// SkipReport is one recipe left out of the catalog.
type SkipReport struct {
	Index   int    `json:"index"`
	Code    string `json:"code"`
	Key     string `json:"key,omitempty"`
	Message string `json:"message"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <book>",
		Short: "Compile a recipe book and build its catalog",
		Long: `Compile a CUE or YAML recipe book and build the recipe catalog.

Invalid and duplicate recipes are skipped, not fatal: the report lists
how many recipes loaded and why the others were left out. With --output
the book is written as canonical IR JSON.

Examples:
  fusion compile ./books/elements.cue
  fusion compile ./books -o elements.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	book, err := LoadBook(path)
	if err != nil {
		return outputLoadError(formatter, "✗ Compilation failed", err)
	}
	formatter.VerboseLog("Loaded %d card(s), %d recipe(s) from %s", len(book.Cards), len(book.Recipes), path)

	_, report := buildCatalog(book, opts.Logger(formatter.GetErrWriter()))

	hash, err := book.Hash()
	if err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("hashing book: %v", err))
	}

	result := CompileResult{
		Book:       path,
		Hash:       hash,
		Cards:      len(book.Cards),
		Recipes:    report.Total,
		Loaded:     report.Loaded,
		Invalid:    len(report.Invalid),
		Duplicates: len(report.Duplicates),
		Skipped:    skipReports(report),
	}

	if opts.Output != "" {
		if err := writeIRToFile(book, opts.Output); err != nil {
			return outputCommandError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
		result.Output = opts.Output
	}

	return outputCompileSuccess(formatter, result)
}

func skipReports(report *catalog.BuildReport) []SkipReport {
	var out []SkipReport
	for _, is := range report.Issues() {
		out = append(out, SkipReport{
			Index:   is.Index,
			Code:    string(is.Code),
			Key:     is.Key,
			Message: is.Message,
		})
	}
	return out
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result CompileResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %s: %d of %d recipe(s) loaded\n", result.Book, result.Loaded, result.Recipes)
	fmt.Fprintf(w, "  cards: %d\n", result.Cards)
	fmt.Fprintf(w, "  invalid: %d\n", result.Invalid)
	fmt.Fprintf(w, "  duplicates: %d\n", result.Duplicates)
	fmt.Fprintf(w, "  hash: %s\n", result.Hash)

	if len(result.Skipped) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Skipped:")
		for _, s := range result.Skipped {
			fmt.Fprintf(w, "  recipe[%d] %s: %s\n", s.Index, s.Code, s.Message)
		}
	}

	if result.Output != "" {
		fmt.Fprintf(w, "\nWrote canonical IR to %s\n", result.Output)
	}
	return nil
}

// outputLoadError reports a failed book load. Load failures are
// command-level errors (exit code 2).
func outputLoadError(formatter *OutputFormatter, header string, err error) error {
	code := loadErrorCode(err)
	message := err.Error()
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		message = loadErr.Message
	}

	if formatter.Format == "json" {
		_ = formatter.Error(code, message, nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
	}

	fmt.Fprintln(formatter.Writer, header)
	fmt.Fprintln(formatter.Writer)
	if loadErr != nil && loadErr.Pos.IsValid() {
		fmt.Fprintf(formatter.Writer, "%s:%d:%d\n", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
	}
	fmt.Fprintf(formatter.Writer, "  %s: %s\n", code, message)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputCommandError outputs a single error and exits with code 2.
func outputCommandError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// writeIRToFile writes the book as indented IR JSON. Canonical JSON
// without indentation is used only for hashing.
func writeIRToFile(book *ir.Book, filename string) error {
	data, err := json.MarshalIndent(book, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
