// Package session runs one player's hand against a recipe catalog.
//
// A Session owns a hand of card slots and a selection.Controller. Every
// operation (deal, toggle, clear, fuse) is stamped with a logical sequence
// number and recorded as an ir.Event, so a session can be persisted to the
// store and replayed later.
//
// # Hands and handles
//
// Deal fills the hand; slot handles are "slot-0", "slot-1", and so on in
// deal order. Handles stay stable until the next Deal. The same card may
// sit in two slots; the slots are distinct instances.
//
// # Recording
//
// Each call produces exactly one event, including calls that are rejected
// (unknown slot, fuse with the wrong number of cards). Rejected calls carry
// the error code in Outcome.Error and also return the error. If the
// Recorder fails, the in-memory state has already changed and the error is
// returned wrapped.
//
// # Replay
//
// Replay feeds a recorded event log into a fresh session and reports every
// event whose recomputed outcome differs from the recorded one. With the
// same catalog the log replays without divergences.
//
// # Thread Safety
//
// A Session is not safe for concurrent use. Transports give each connection
// its own Session.
package session
