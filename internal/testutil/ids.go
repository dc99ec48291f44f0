package testutil

// DefaultSessionID is used when a scenario does not name a session.
const DefaultSessionID = "test-session-default"

// FixedSessionGenerator returns the same session ID every time.
//
// Golden traces embed the session ID in every event ID, so a fixed ID
// keeps event logs byte-identical across runs. It satisfies
// session.IDGenerator.
//
// Thread-safety: FixedSessionGenerator is stateless and safe for concurrent use.
type FixedSessionGenerator struct {
	id string
}

// NewFixedSessionGenerator creates a generator for id. Scenarios set it as:
//
//	session_id: "test-session-0001"
//
// If id is empty, Generate() returns DefaultSessionID.
func NewFixedSessionGenerator(id string) *FixedSessionGenerator {
	if id == "" {
		id = DefaultSessionID
	}
	return &FixedSessionGenerator{id: id}
}

// Generate returns the fixed session ID.
func (g *FixedSessionGenerator) Generate() string {
	return g.id
}
