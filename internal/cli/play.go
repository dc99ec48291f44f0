package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fusion/internal/card"
	"github.com/roach88/fusion/internal/ir"
	"github.com/roach88/fusion/internal/selection"
	"github.com/roach88/fusion/internal/session"
)

// PlayOptions holds flags for the play command.
type PlayOptions struct {
	*RootOptions
	Database  string
	Hand      []string
	HandSize  int
	SessionID string // optional - generated when empty
}

// PlayResult is a played session and the events it recorded.
type PlayResult struct {
	SessionID string     `json:"session_id"`
	BookHash  string     `json:"book_hash"`
	Database  string     `json:"database"`
	Events    []ir.Event `json:"events"`
	Rejected  int        `json:"rejected"`
	State     PlayState  `json:"state"`
}

// PlayState is the session state after the last operation.
type PlayState struct {
	Hand       []string `json:"hand"`
	Selected   []string `json:"selected"`
	Eligible   bool     `json:"eligible"`
	LastResult string   `json:"last_result,omitempty"`
}

// playOp is one parsed operation argument.
type playOp struct {
	raw    string
	kind   ir.EventKind
	toggle bool // toggle:N flips the slot instead of forcing on or off
	slot   int
	cards  []string
}

// NewPlayCommand creates the play command.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "play <book> [op...]",
		Short: "Play a session against a book and record it",
		Long: `Deal a hand, apply selection operations in order, and record every
event to the database.

Operations:
  on:N         select the card in slot N
  off:N        deselect slot N
  toggle:N     flip slot N
  clear        deselect everything
  fuse         fuse the current selection
  deal:a,b,c   replace the hand

Rejected operations (an unknown slot, fusing with one card selected) are
recorded with their error code and do not stop the run.

Examples:
  fusion play ./books/elements.cue --hand Fire,Water,Earth on:0 on:1 fuse
  fusion play ./books/elements.cue --hand Fire,Water,Earth --db play.db on:1 on:2 on:0`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", rootOpts.Config.DB, "path to SQLite database (in-memory when empty)")
	cmd.Flags().StringSliceVar(&opts.Hand, "hand", nil, "cards to deal, comma separated")
	cmd.Flags().IntVar(&opts.HandSize, "hand-size", session.DefaultHandSize, "maximum hand size")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "session ID (generated when empty)")

	return cmd
}

func runPlay(opts *PlayOptions, path string, args []string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := opts.Logger(formatter.GetErrWriter())

	ops, err := parseOps(args)
	if err != nil {
		return outputCommandError(formatter, ErrCodeBadArgument, err.Error())
	}
	if opts.HandSize < 0 {
		return outputCommandError(formatter, ErrCodeBadArgument, "--hand-size must be non-negative")
	}

	book, err := LoadBook(path)
	if err != nil {
		return outputLoadError(formatter, "✗ Play failed", err)
	}
	cat, report := buildCatalog(book, logger)
	formatter.VerboseLog("Catalog has %d recipe(s), %d skipped", report.Loaded, report.Skipped())

	st, err := openStore(opts.Database)
	if err != nil {
		return outputCommandError(formatter, ErrCodeDatabase, err.Error())
	}
	defer st.Close()

	if opts.SessionID != "" {
		if _, err := st.ReadSession(ctx, opts.SessionID); err == nil {
			return outputCommandError(formatter, ErrCodeBadArgument, fmt.Sprintf("session already exists: %s", opts.SessionID))
		}
	}

	// New rows follow everything already stored, so seq stays unique
	// across sessions sharing the database.
	last, err := st.GetLastSeq(ctx)
	if err != nil {
		return outputCommandError(formatter, ErrCodeDatabase, err.Error())
	}
	clock := session.NewClockAt(last)

	bookHash, err := st.WriteBook(ctx, book, clock.Next())
	if err != nil {
		return outputCommandError(formatter, ErrCodeDatabase, err.Error())
	}

	sessOpts := []session.Option{
		session.WithClock(clock),
		session.WithRecorder(st),
		session.WithHandSize(opts.HandSize),
		session.WithLogger(logger),
	}
	if opts.SessionID != "" {
		sessOpts = append(sessOpts, session.WithID(opts.SessionID))
	}
	sess := session.New(cat, sessOpts...)

	if err := st.WriteSession(ctx, ir.SessionRecord{
		ID:         sess.ID(),
		BookHash:   bookHash,
		Hand:       opts.Hand,
		HandSize:   sess.HandSize(),
		CreatedSeq: clock.Next(),
	}); err != nil {
		return outputCommandError(formatter, ErrCodeDatabase, err.Error())
	}
	formatter.VerboseLog("Session %s started (book %s)", sess.ID(), truncateID(bookHash))

	result := PlayResult{
		SessionID: sess.ID(),
		BookHash:  bookHash,
		Database:  databaseName(opts.Database),
		Events:    []ir.Event{},
	}

	if len(opts.Hand) > 0 {
		ops = append([]playOp{{raw: "--hand", kind: ir.EventDeal, cards: opts.Hand}}, ops...)
	}
	for _, op := range ops {
		ev, err := applyOp(ctx, sess, op)
		if err != nil && ev.Outcome.Error == "" {
			return outputCommandError(formatter, ErrCodeDatabase, fmt.Sprintf("%s: %v", op.raw, err))
		}
		if err != nil {
			result.Rejected++
			formatter.VerboseLog("%s rejected: %v", op.raw, err)
		}
		result.Events = append(result.Events, ev)
	}

	result.State = PlayState{
		Hand:       handCards(sess.Hand()),
		Selected:   slotHandles(sess.Selected()),
		Eligible:   sess.Eligible(),
		LastResult: string(sess.LastResult()),
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	outputPlayText(formatter, result)
	return nil
}

// parseOps parses operation arguments such as on:0 or deal:Fire,Water.
func parseOps(args []string) ([]playOp, error) {
	ops := make([]playOp, 0, len(args))
	for _, raw := range args {
		name, arg, hasArg := strings.Cut(raw, ":")
		op := playOp{raw: raw}

		switch name {
		case "on", "off", "toggle":
			slot, err := strconv.Atoi(arg)
			if !hasArg || err != nil || slot < 0 {
				return nil, fmt.Errorf("%s: want %s:N with a non-negative slot", raw, name)
			}
			op.slot = slot
			switch name {
			case "on":
				op.kind = ir.EventToggleOn
			case "off":
				op.kind = ir.EventToggleOff
			default:
				op.toggle = true
			}
		case "clear", "fuse":
			if hasArg {
				return nil, fmt.Errorf("%s: %s takes no argument", raw, name)
			}
			op.kind = ir.EventKind(name)
		case "deal":
			op.kind = ir.EventDeal
			if arg != "" {
				op.cards = strings.Split(arg, ",")
			}
		default:
			return nil, fmt.Errorf("unknown operation %q", raw)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func applyOp(ctx context.Context, sess *session.Session, op playOp) (ir.Event, error) {
	if op.toggle {
		return sess.Toggle(ctx, session.SlotHandle(op.slot))
	}
	switch op.kind {
	case ir.EventToggleOn:
		return sess.ToggleOn(ctx, session.SlotHandle(op.slot))
	case ir.EventToggleOff:
		return sess.ToggleOff(ctx, session.SlotHandle(op.slot))
	case ir.EventClear:
		return sess.Clear(ctx)
	case ir.EventFuse:
		return sess.Fuse(ctx)
	default:
		return sess.Deal(ctx, card.FromStrings(op.cards))
	}
}

func outputPlayText(formatter *OutputFormatter, result PlayResult) {
	w := formatter.Writer
	fmt.Fprintf(w, "Session %s (book %s)\n", result.SessionID, truncateID(result.BookHash))
	for _, ev := range result.Events {
		fmt.Fprintf(w, "  %s\n", eventLine(ev))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "✓ %d event(s) recorded to %s", len(result.Events), result.Database)
	if result.Rejected > 0 {
		fmt.Fprintf(w, " (%d rejected)", result.Rejected)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Hand: %v\n", result.State.Hand)
	fmt.Fprintf(w, "Selected: %v eligible=%t\n", result.State.Selected, result.State.Eligible)
	if result.State.LastResult != "" {
		fmt.Fprintf(w, "Last result: %s\n", result.State.LastResult)
	}
}

// handCards returns the card in each slot.
func handCards(insts []selection.Instance) []string {
	out := make([]string, len(insts))
	for i, inst := range insts {
		out[i] = string(inst.Card)
	}
	return out
}

// slotHandles returns the handle of each slot.
func slotHandles(insts []selection.Instance) []string {
	out := make([]string, len(insts))
	for i, inst := range insts {
		out[i] = inst.Handle
	}
	return out
}

func databaseName(path string) string {
	if path == "" {
		return memoryDB
	}
	return path
}
