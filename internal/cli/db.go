package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/fusion/internal/store"
)

// memoryDB is the SQLite path for a throwaway database.
const memoryDB = ":memory:"

// openStore opens or creates the database at path. An empty path opens a
// throwaway in-memory database.
func openStore(path string) (*store.Store, error) {
	if path == "" {
		path = memoryDB
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return st, nil
}

// openExistingStore opens a database that must already exist; store.Open
// would otherwise create an empty one and report nothing to read.
func openExistingStore(path string) (*store.Store, error) {
	if path == "" {
		return nil, errors.New("--db is required")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("database not found: %s", path)
	}
	return openStore(path)
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
