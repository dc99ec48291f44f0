// Package selection implements the bounded card selection state machine.
//
// A Controller holds at most Capacity (2) selected card instances in strict
// insertion order. Selecting a third instance evicts the least recently
// selected one, never the instance just selected. After every mutation
// the controller recomputes whether a fusion is currently legal: exactly
// two cards selected and the catalog holds a recipe for them.
//
// The controller never reaches into the presentation layer. Mutations
// return a Change describing what happened; an optional Observer receives
// the same information as callbacks.
//
// Not safe for concurrent use: a Controller is owned by one actor (the UI
// or event loop). Callers that issue toggles from several goroutines must
// synchronize externally.
package selection
