// Package ir provides the intermediate representation shared by the fusion
// packages: compiled recipe books and recorded session events.
//
// ir imports nothing internal except card. Every other package builds on it.
//
// Key design constraints:
//   - NO float types anywhere - use int64 for numbers
//   - All JSON tags use snake_case
//   - Logical clocks (seq) only, never wall-clock timestamps
//   - Content-addressed IDs use RFC 8785 canonical JSON (see canonical.go)
package ir
