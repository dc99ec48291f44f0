package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fusion/internal/catalog"
	"github.com/roach88/fusion/internal/selection"
	"github.com/roach88/fusion/internal/session"
	"github.com/roach88/fusion/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database  string
	SessionID string // optional - specific session only
	Book      string // optional - replay against this book instead of the recorded one
}

// SessionReplay holds the replay result for a single session.
type SessionReplay struct {
	SessionID     string               `json:"session_id"`
	BookHash      string               `json:"book_hash"`
	Events        int                  `json:"events"`
	Deterministic bool                 `json:"deterministic"`
	Divergences   []session.Divergence `json:"divergences,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Sessions         []SessionReplay `json:"sessions"`
	TotalSessions    int             `json:"total_sessions"`
	AllDeterministic bool            `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay recorded sessions and verify determinism",
		Long: `Re-apply every recorded session against the book it was played with
and compare each event with the log.

An event diverges when its recomputed ID differs (the log was altered)
or when its recomputed outcome differs (the catalog or the engine now
behaves differently). With --book, sessions replay against another book,
which shows how a recipe change would alter recorded play.

Exit codes:
  0 - All sessions replay identically
  1 - One or more events diverged
  2 - Command error (database not found, etc.)

Examples:
  fusion replay --db ./fusion.db
  fusion replay --db ./fusion.db --session 0193...
  fusion replay --db ./fusion.db --book ./books/v2.cue --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", rootOpts.Config.DB, "path to SQLite database")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "replay specific session only")
	cmd.Flags().StringVar(&opts.Book, "book", "", "replay against this book instead of the recorded one")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := opts.Logger(formatter.GetErrWriter())

	var override selection.Matcher
	if opts.Book != "" {
		book, err := LoadBook(opts.Book)
		if err != nil {
			return outputLoadError(formatter, "✗ Replay failed", err)
		}
		override, _ = buildCatalog(book, logger)
	}

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return outputCommandError(formatter, ErrCodeDatabase, err.Error())
	}
	defer st.Close()

	var sessionIDs []string
	if opts.SessionID != "" {
		sessionIDs = []string{opts.SessionID}
	} else {
		records, err := st.ListSessions(ctx)
		if err != nil {
			return outputCommandError(formatter, ErrCodeDatabase, err.Error())
		}
		for _, rec := range records {
			sessionIDs = append(sessionIDs, rec.ID)
		}
	}

	result := ReplayResult{
		Sessions:         make([]SessionReplay, 0, len(sessionIDs)),
		TotalSessions:    len(sessionIDs),
		AllDeterministic: true,
	}

	for _, id := range sessionIDs {
		sr, err := replaySession(ctx, st, id, override)
		if errors.Is(err, sql.ErrNoRows) {
			return outputCommandError(formatter, ErrCodeNoSession, fmt.Sprintf("session not found: %s", id))
		}
		if err != nil {
			return outputCommandError(formatter, ErrCodeDatabase, fmt.Sprintf("failed to replay session %s: %v", id, err))
		}
		result.Sessions = append(result.Sessions, sr)
		if !sr.Deterministic {
			result.AllDeterministic = false
		}
	}

	if opts.Format == "json" {
		return outputReplayJSON(formatter, result)
	}
	return outputReplayText(formatter, result)
}

// replaySession replays one session. A nil matcher uses the catalog of
// the recorded book.
func replaySession(ctx context.Context, st *store.Store, sessionID string, m selection.Matcher) (SessionReplay, error) {
	log, err := st.LoadSessionLog(ctx, sessionID)
	if err != nil {
		return SessionReplay{}, err
	}

	if m == nil {
		m, _ = catalog.BuildWithOptions(catalog.FromSpecs(log.Book.Recipes), catalog.BuildOptions{})
	}

	rr, err := session.Replay(ctx, m, log.Events,
		session.WithHandSize(log.Session.HandSize),
	)
	if err != nil {
		return SessionReplay{}, err
	}

	return SessionReplay{
		SessionID:     sessionID,
		BookHash:      log.Session.BookHash,
		Events:        len(log.Events),
		Deterministic: rr.Deterministic(),
		Divergences:   rr.Divergences,
	}, nil
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(formatter *OutputFormatter, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "determinism verification failed",
		}
	}

	if err := writeResponse(formatter.Writer, response); err != nil {
		return err
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(formatter *OutputFormatter, result ReplayResult) error {
	w := formatter.Writer

	if result.TotalSessions == 0 {
		fmt.Fprintln(w, "No sessions found in database.")
		return nil
	}

	fmt.Fprintf(w, "Replay Summary: %d session(s)\n", result.TotalSessions)
	fmt.Fprintln(w)

	for _, s := range result.Sessions {
		status := "✓"
		if !s.Deterministic {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Session: %s\n", status, s.SessionID)
		fmt.Fprintf(w, "  Events: %d\n", s.Events)
		if formatter.Verbose {
			fmt.Fprintf(w, "  Book: %s\n", s.BookHash)
		}
		for _, d := range s.Divergences {
			fmt.Fprintf(w, "  [%d] %s diverged (%s)\n", d.Seq, d.Kind, d.Reason)
			fmt.Fprintf(w, "    recorded: selected=%v fuse=%s result=%s error=%s\n",
				d.Recorded.Selected, d.Recorded.Fuse, d.Recorded.Result, d.Recorded.Error)
			fmt.Fprintf(w, "    replayed: selected=%v fuse=%s result=%s error=%s\n",
				d.Replayed.Selected, d.Replayed.Fuse, d.Replayed.Result, d.Replayed.Error)
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All sessions verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	return NewExitError(ExitFailure, "determinism verification failed")
}
