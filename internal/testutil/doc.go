// Package testutil holds deterministic stand-ins for the clock and ID
// sources, used by tests and the scenario harness.
package testutil
