// Package store provides SQLite-backed durable storage for fusion sessions.
//
// The store is an append-only log with three tables:
//   - books: recipe books, content-addressed by ir.Book.Hash
//   - sessions: one row per session, naming its book and starting hand
//   - events: every session operation and its outcome
//
// # Ordering
//
// All ordering uses seq (the logical clock), never timestamps. Every
// event query ends in ORDER BY seq ASC, id COLLATE BINARY ASC so reads are
// identical across runs.
//
// # Idempotency
//
// Writes use ON CONFLICT DO NOTHING. Writing the same book, session or
// event twice is a no-op, so a crashed writer can simply retry.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Events must name a stored session, sessions a stored book
//
// Outcomes and card lists are stored as RFC 8785 canonical JSON
// (ir.MarshalCanonical) so equal values are byte-equal on disk.
package store
