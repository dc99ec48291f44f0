package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainBook  = "fusion/book/v1"
	DomainEvent = "fusion/event/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00}) // Null separator - CRITICAL for security
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash computes the content address of a book. Two books with the same
// cards and the same recipes in the same order hash identically.
func (b *Book) Hash() (string, error) {
	canonical, err := b.CanonicalJSON()
	if err != nil {
		return "", fmt.Errorf("book hash: %w", err)
	}
	return hashWithDomain(DomainBook, canonical), nil
}

// CanonicalJSON returns the RFC 8785 encoding of the book, the bytes Hash
// covers. Source line numbers are not included.
func (b *Book) CanonicalJSON() ([]byte, error) {
	data, err := MarshalCanonical(b.toCanonicalMap())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal book: %w", err)
	}
	return data, nil
}

// EventID computes the content-addressed ID for a session event.
// The outcome is EXCLUDED: the ID names what was asked, not what happened,
// so a replay that diverges still lines up event by event.
func EventID(sessionID string, kind EventKind, handle string, cards []string, seq int64) (string, error) {
	obj := map[string]any{
		"session_id": sessionID,
		"kind":       string(kind),
		"handle":     handle,
		"cards":      stringsToAny(cards),
		"seq":        seq,
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EventID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEvent, canonical), nil
}

// MustEventID is like EventID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustEventID(sessionID string, kind EventKind, handle string, cards []string, seq int64) string {
	id, err := EventID(sessionID, kind, handle, cards, seq)
	if err != nil {
		panic(err)
	}
	return id
}
