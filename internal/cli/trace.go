package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fusion/internal/ir"
	"github.com/roach88/fusion/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	SessionID string
	Kind      string // optional - filter to one event kind
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	SessionID string     `json:"session_id"`
	BookHash  string     `json:"book_hash"`
	Hand      []string   `json:"hand"`
	HandSize  int        `json:"hand_size"`
	Timeline  []ir.Event `json:"timeline"`
	Stats     TraceStats `json:"stats"`
}

// TraceStats holds summary statistics for the whole session, regardless
// of the kind filter.
type TraceStats struct {
	TotalEvents int `json:"total_events"`
	Deals       int `json:"deals"`
	Toggles     int `json:"toggles"`
	Clears      int `json:"clears"`
	Fuses       int `json:"fuses"`
	Successes   int `json:"successes"`
	NoRecipe    int `json:"no_recipe"`
	Rejected    int `json:"rejected"`
}

// SessionSummary is one row of the session listing.
type SessionSummary struct {
	ID         string `json:"id"`
	BookHash   string `json:"book_hash"`
	HandSize   int    `json:"hand_size"`
	CreatedSeq int64  `json:"created_seq"`
	Events     int    `json:"events"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Print the event log of a session",
		Long: `Print the recorded events of one session in seq order.

Each event shows its slot handle or dealt cards and the outcome it
produced: the selection after the operation, eligibility, and for fuse
events the result. Rejected operations show their error code.

Without --session, lists the sessions in the database.

Examples:
  fusion trace --db ./fusion.db
  fusion trace --db ./fusion.db --session 0193...
  fusion trace --db ./fusion.db --session 0193... --kind fuse --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", rootOpts.Config.DB, "path to SQLite database")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "session to trace (lists sessions when empty)")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter to one event kind (deal|toggle_on|toggle_off|clear|fuse)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Kind != "" && !ir.EventKind(opts.Kind).Valid() {
		return outputCommandError(formatter, ErrCodeBadArgument, fmt.Sprintf("unknown event kind %q", opts.Kind))
	}

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return outputCommandError(formatter, ErrCodeDatabase, err.Error())
	}
	defer st.Close()

	if opts.SessionID == "" {
		return runListSessions(ctx, st, formatter)
	}

	rec, err := st.ReadSession(ctx, opts.SessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return outputCommandError(formatter, ErrCodeNoSession, fmt.Sprintf("session not found: %s", opts.SessionID))
	}
	if err != nil {
		return outputCommandError(formatter, ErrCodeDatabase, err.Error())
	}

	events, err := st.ReadEvents(ctx, opts.SessionID)
	if err != nil {
		return outputCommandError(formatter, ErrCodeDatabase, err.Error())
	}

	timeline := events
	if opts.Kind != "" {
		timeline, err = st.ReadEventsOfKind(ctx, opts.SessionID, ir.EventKind(opts.Kind))
		if err != nil {
			return outputCommandError(formatter, ErrCodeDatabase, err.Error())
		}
	}

	result := TraceResult{
		SessionID: rec.ID,
		BookHash:  rec.BookHash,
		Hand:      rec.Hand,
		HandSize:  rec.HandSize,
		Timeline:  timeline,
		Stats:     traceStats(events),
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	outputTraceText(formatter.Writer, result, opts.Verbose)
	return nil
}

func runListSessions(ctx context.Context, st *store.Store, formatter *OutputFormatter) error {
	records, err := st.ListSessions(ctx)
	if err != nil {
		return outputCommandError(formatter, ErrCodeDatabase, err.Error())
	}

	sessions := make([]SessionSummary, 0, len(records))
	for _, rec := range records {
		events, err := st.ReadEvents(ctx, rec.ID)
		if err != nil {
			return outputCommandError(formatter, ErrCodeDatabase, err.Error())
		}
		sessions = append(sessions, SessionSummary{
			ID:         rec.ID,
			BookHash:   rec.BookHash,
			HandSize:   rec.HandSize,
			CreatedSeq: rec.CreatedSeq,
			Events:     len(events),
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(sessions)
	}

	w := formatter.Writer
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions found in database.")
		return nil
	}
	fmt.Fprintf(w, "%d session(s):\n", len(sessions))
	for _, s := range sessions {
		fmt.Fprintf(w, "  %s  book=%s  events=%d\n", s.ID, truncateID(s.BookHash), s.Events)
	}
	return nil
}

func traceStats(events []ir.Event) TraceStats {
	stats := TraceStats{TotalEvents: len(events)}
	for _, ev := range events {
		if ev.Outcome.Error != "" {
			stats.Rejected++
		}
		switch ev.Kind {
		case ir.EventDeal:
			stats.Deals++
		case ir.EventToggleOn, ir.EventToggleOff:
			stats.Toggles++
		case ir.EventClear:
			stats.Clears++
		case ir.EventFuse:
			stats.Fuses++
			switch ev.Outcome.Fuse {
			case ir.FuseSuccess:
				stats.Successes++
			case ir.FuseNoRecipe:
				stats.NoRecipe++
			}
		}
	}
	return stats
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintf(w, "Trace for Session: %s\n", result.SessionID)
	fmt.Fprintf(w, "Book: %s\n", result.BookHash)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, ev := range result.Timeline {
		fmt.Fprintf(w, "  %s\n", eventLine(ev))
		if verbose {
			fmt.Fprintf(w, "       ID: %s\n", truncateID(ev.ID))
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Deals:        %d\n", result.Stats.Deals)
	fmt.Fprintf(w, "  Toggles:      %d\n", result.Stats.Toggles)
	fmt.Fprintf(w, "  Clears:       %d\n", result.Stats.Clears)
	fmt.Fprintf(w, "  Fuses:        %d (success %d, no recipe %d)\n",
		result.Stats.Fuses, result.Stats.Successes, result.Stats.NoRecipe)
	fmt.Fprintf(w, "  Rejected:     %d\n", result.Stats.Rejected)
}

// eventLine renders one event on a single line.
func eventLine(ev ir.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] %s", ev.Seq, ev.Kind)
	if ev.Handle != "" {
		fmt.Fprintf(&b, " %s", ev.Handle)
	}
	if ev.Kind == ir.EventDeal {
		fmt.Fprintf(&b, " %v", ev.Cards)
	}

	out := ev.Outcome
	if out.Error != "" {
		fmt.Fprintf(&b, " -> error=%s", out.Error)
		return b.String()
	}
	fmt.Fprintf(&b, " -> selected=%v eligible=%t", out.Selected, out.Eligible)
	if len(out.Deselected) > 0 {
		fmt.Fprintf(&b, " deselected=%v", out.Deselected)
	}
	if out.Fuse != "" {
		fmt.Fprintf(&b, " fuse=%s", out.Fuse)
	}
	if out.Result != "" {
		fmt.Fprintf(&b, " result=%s", out.Result)
	}
	return b.String()
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
