// Package harness runs scripted fusion sessions as conformance tests.
//
// A scenario names a recipe book, deals a hand, plays a list of player
// operations and checks what each one produced. Every event is persisted
// to an in-memory store and read back, so a passing scenario also proves
// the log round-trips.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: steam
//	description: "Fire and Water fuse into Steam"
//	book: ../books/elements.cue
//	hand: [Fire, Water, Earth]
//	steps:
//	  - op: toggle_on
//	    slot: 0
//	  - op: toggle_on
//	    slot: 1
//	    expect: { eligible: true, selected: [0, 1] }
//	  - op: fuse
//	    expect: { outcome: success, result: Steam }
//	assertions:
//	  - type: trace_contains
//	    kind: fuse
//	    result: Steam
//	  - type: final_state
//	    last_result: Steam
//
// Instead of book, a scenario may list recipes inline:
//
//	recipes:
//	  - ingredients: [Fire, Water]
//	    result: Steam
//
// Slots are hand positions. Slot 0 is the first card dealt.
//
// # Assertion Types
//
//   - trace_contains: an accepted event of kind (and slot, result if set) exists
//   - trace_order: the first events of each kind appear in the listed order
//   - trace_count: events of kind appear exactly count times
//   - final_state: the stored log ends with the given selection, eligibility or last result
//
// # Deterministic Testing
//
// The harness uses:
//   - A fixed session ID (scenario.session_id or testutil.DefaultSessionID)
//   - Deterministic logical clock (testutil.DeterministicClock)
//   - In-memory SQLite database (isolated per test)
//
// This ensures identical traces across runs for golden file comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/steam.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
