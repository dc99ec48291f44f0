package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/fusion/internal/catalog"
	"github.com/roach88/fusion/internal/compiler"
	"github.com/roach88/fusion/internal/ir"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // Book load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeDatabase    = "E008" // Database open/read/write error
	ErrCodeNoSession   = "E009" // Session not found

	// Book structure errors
	ErrCodeRecipeList        = "E101" // recipe is not a list
	ErrCodeRecipeIngredients = "E102" // ingredients missing or malformed
	ErrCodeRecipeResult      = "E103" // result missing or malformed
	ErrCodeBadArgument       = "E104" // malformed command argument
)

// LoadError represents an error that occurred while loading a book.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadBook loads a recipe book from a .cue file, a CUE directory or a
// YAML file. Every failure is a *LoadError.
func LoadBook(path string) (*ir.Book, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("book not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing book: %v", err)}
	}

	if info.IsDir() {
		files, err := compiler.FindCUEFiles(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		if len(files) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
		}
	}

	book, err := compiler.LoadBook(path)
	if err != nil {
		return nil, convertCompileError(err)
	}
	return book, nil
}

// buildCatalog builds the lookup table for book, logging skipped recipes.
func buildCatalog(book *ir.Book, logger *slog.Logger) (*catalog.Catalog, *catalog.BuildReport) {
	return catalog.BuildWithOptions(catalog.FromSpecs(book.Recipes), catalog.BuildOptions{Logger: logger})
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeLoadFailed,
		Message: err.Error(),
	}
}

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "cue":
		return ErrCodeBuildFailed
	case field == "recipe":
		return ErrCodeRecipeList
	case strings.HasSuffix(field, ".ingredients"):
		return ErrCodeRecipeIngredients
	case strings.HasSuffix(field, ".result"):
		return ErrCodeRecipeResult
	default:
		return ErrCodeGeneric
	}
}

// loadErrorCode returns the code of a *LoadError, or ErrCodeGeneric.
func loadErrorCode(err error) string {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code
	}
	return ErrCodeGeneric
}
