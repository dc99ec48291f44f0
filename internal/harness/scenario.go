package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fusion/internal/ir"
	"github.com/roach88/fusion/internal/session"
)

// Scenario defines a fusion test scenario: a book, a starting hand, and a
// sequence of player operations with expected outcomes.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Book is a path to a CUE or YAML recipe book. Relative paths are
	// resolved against the scenario file's directory.
	Book string `yaml:"book,omitempty"`

	// Recipes is an inline recipe list, used instead of Book.
	Recipes []ir.RecipeSpec `yaml:"recipes,omitempty"`

	// Hand is dealt before the first step.
	Hand []string `yaml:"hand"`

	// HandSize caps the hand. Zero means session.DefaultHandSize.
	HandSize int `yaml:"hand_size,omitempty"`

	// Steps are the player operations, in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// SessionID is an optional fixed session ID. If empty, defaults to
	// testutil.DefaultSessionID so golden files stay stable.
	SessionID string `yaml:"session_id,omitempty"`
}

// Step operations.
const (
	OpToggleOn  = "toggle_on"
	OpToggleOff = "toggle_off"
	OpToggle    = "toggle"
	OpClear     = "clear"
	OpFuse      = "fuse"
	OpDeal      = "deal"
)

// Step is one player operation.
type Step struct {
	// Op is one of toggle_on, toggle_off, toggle, clear, fuse, deal.
	Op string `yaml:"op"`

	// Slot is the hand position for toggle operations.
	Slot *int `yaml:"slot,omitempty"`

	// Cards is the new hand for deal.
	Cards []string `yaml:"cards,omitempty"`

	// Expect specifies the expected outcome. If nil, nothing is checked.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the observable state after a step. Unset fields are
// not checked.
type Expect struct {
	// Eligible is the fuse eligibility after the step.
	Eligible *bool `yaml:"eligible,omitempty"`

	// Selected lists selected slot positions in selection order.
	Selected []int `yaml:"selected,omitempty"`

	// Evicted lists slots the step force-deselected: an eviction, a clear,
	// or the consumed pair after a successful fuse.
	Evicted []int `yaml:"evicted,omitempty"`

	// Outcome is "success" or "no_recipe" for fuse steps.
	Outcome string `yaml:"outcome,omitempty"`

	// Result is the card a successful fuse produced.
	Result string `yaml:"result,omitempty"`

	// Error is the error code of a rejected step, e.g. INVALID_STATE.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an event of Kind (and Slot, Result if set) exists
	// - "trace_order": events of Kinds appear in this relative order
	// - "trace_count": events of Kind appear exactly Count times
	// - "final_state": the stored session ends with Selected, Eligible, LastResult
	Type string `yaml:"type"`

	Kind   string `yaml:"kind,omitempty"`
	Slot   *int   `yaml:"slot,omitempty"`
	Result string `yaml:"result,omitempty"`

	Kinds []string `yaml:"kinds,omitempty"`
	Count int      `yaml:"count,omitempty"`

	Selected   []int  `yaml:"selected,omitempty"`
	Eligible   *bool  `yaml:"eligible,omitempty"`
	LastResult string `yaml:"last_result,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// A relative book path is resolved against the file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving a relative book path against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Book != "" && !filepath.IsAbs(scenario.Book) && basePath != "" {
		scenario.Book = filepath.Join(basePath, scenario.Book)
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseScenario decodes scenario YAML without validating it.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Book == "" && len(s.Recipes) == 0:
		return fmt.Errorf("book or recipes is required")
	case s.Book != "" && len(s.Recipes) > 0:
		return fmt.Errorf("book and recipes are mutually exclusive")
	}

	if s.Book != "" {
		if _, err := os.Stat(s.Book); os.IsNotExist(err) {
			return fmt.Errorf("book file not found: %s", s.Book)
		}
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if s.HandSize < 0 {
		return fmt.Errorf("hand_size must be non-negative")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, step Step) error {
	switch step.Op {
	case OpToggleOn, OpToggleOff, OpToggle:
		if step.Slot == nil {
			return fmt.Errorf("steps[%d]: slot is required for %s", index, step.Op)
		}
		if *step.Slot < 0 {
			return fmt.Errorf("steps[%d]: slot must be non-negative", index)
		}
	case OpClear, OpFuse:
		if step.Slot != nil {
			return fmt.Errorf("steps[%d]: slot is not allowed for %s", index, step.Op)
		}
	case OpDeal:
		if step.Slot != nil {
			return fmt.Errorf("steps[%d]: slot is not allowed for deal", index)
		}
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, step.Op)
	}

	if e := step.Expect; e != nil {
		if (e.Outcome != "" || e.Result != "") && step.Op != OpFuse {
			return fmt.Errorf("steps[%d].expect: outcome and result apply to fuse only", index)
		}
		if e.Outcome != "" && e.Outcome != ir.FuseSuccess && e.Outcome != ir.FuseNoRecipe {
			return fmt.Errorf("steps[%d].expect: unknown outcome %q", index, e.Outcome)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Selected == nil && a.Eligible == nil && a.LastResult == "" {
			return fmt.Errorf("assertions[%d]: final_state needs selected, eligible or last_result", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	for _, kind := range append([]string{a.Kind}, a.Kinds...) {
		if kind != "" && !ir.EventKind(kind).Valid() {
			return fmt.Errorf("assertions[%d]: unknown event kind %q", index, kind)
		}
	}

	return nil
}

// handSize resolves the scenario's hand size.
func (s *Scenario) handSize() int {
	if s.HandSize == 0 {
		return session.DefaultHandSize
	}
	return s.HandSize
}
