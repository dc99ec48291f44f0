package harness

import "github.com/roach88/fusion/internal/ir"

// TraceEvent is one persisted session event as it appears in a trace.
// Event IDs are left out: they are content hashes and add nothing a
// reader of a golden file can check by eye.
type TraceEvent struct {
	Seq     int64      `json:"seq"`
	Kind    string     `json:"kind"`
	Handle  string     `json:"handle,omitempty"`
	Cards   []string   `json:"cards,omitempty"`
	Outcome ir.Outcome `json:"outcome"`
}

// FinalState is the session state after the last step, derived from the
// stored event log.
type FinalState struct {
	Hand       []string `json:"hand"`
	Selected   []string `json:"selected"`
	Eligible   bool     `json:"eligible"`
	LastResult string   `json:"last_result,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expect clause and assertion matched.
	Pass bool `json:"pass"`

	// SessionID is the session the scenario ran as.
	SessionID string `json:"session_id"`

	// Trace contains all events read back from the store, in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the final session state.
	State FinalState `json:"state"`

	// Catalog reports how the book's recipes loaded.
	Catalog CatalogSummary `json:"catalog"`
}

// CatalogSummary counts the recipes of the scenario's book.
type CatalogSummary struct {
	Loaded     int `json:"loaded"`
	Invalid    int `json:"invalid"`
	Duplicates int `json:"duplicates"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddEventTrace appends a stored event to the trace.
func (r *Result) AddEventTrace(ev ir.Event) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:     ev.Seq,
		Kind:    string(ev.Kind),
		Handle:  ev.Handle,
		Cards:   ev.Cards,
		Outcome: ev.Outcome,
	})
}

// finalState folds the trace into the state after the last event.
func finalState(trace []TraceEvent) FinalState {
	state := FinalState{Hand: []string{}, Selected: []string{}}
	for _, ev := range trace {
		if ev.Outcome.Error != "" {
			continue
		}
		state.Selected = ev.Outcome.Selected
		state.Eligible = ev.Outcome.Eligible
		switch ev.Kind {
		case string(ir.EventDeal):
			state.Hand = ev.Cards
			if state.Hand == nil {
				state.Hand = []string{}
			}
			state.LastResult = ""
		case string(ir.EventFuse):
			if ev.Outcome.Fuse == ir.FuseSuccess {
				state.LastResult = ev.Outcome.Result
			}
		}
	}
	return state
}
