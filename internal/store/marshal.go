package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/fusion/internal/ir"
)

// marshalCards converts a card list to canonical JSON TEXT for storage.
// A nil list is stored as "[]".
func marshalCards(cards []string) (string, error) {
	if cards == nil {
		cards = []string{}
	}
	data, err := ir.MarshalCanonical(cards)
	if err != nil {
		return "", fmt.Errorf("marshal cards: %w", err)
	}
	return string(data), nil
}

// marshalOutcome converts an Outcome to canonical JSON TEXT for storage.
func marshalOutcome(o ir.Outcome) (string, error) {
	data, err := ir.MarshalCanonical(o.ToCanonicalMap())
	if err != nil {
		return "", fmt.Errorf("marshal outcome: %w", err)
	}
	return string(data), nil
}

// unmarshalCards parses a stored card list. An empty list decodes to nil
// so events round-trip with the same shape Session produced.
func unmarshalCards(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var cards []string
	if err := json.Unmarshal([]byte(data), &cards); err != nil {
		return nil, fmt.Errorf("unmarshal cards: %w", err)
	}
	return cards, nil
}

// unmarshalOutcome parses a stored Outcome. Selected is never nil.
func unmarshalOutcome(data string) (ir.Outcome, error) {
	var o ir.Outcome
	if err := json.Unmarshal([]byte(data), &o); err != nil {
		return ir.Outcome{}, fmt.Errorf("unmarshal outcome: %w", err)
	}
	if o.Selected == nil {
		o.Selected = []string{}
	}
	return o, nil
}

// unmarshalBook parses a stored book body.
func unmarshalBook(data string) (*ir.Book, error) {
	var b ir.Book
	if err := json.Unmarshal([]byte(data), &b); err != nil {
		return nil, fmt.Errorf("unmarshal book: %w", err)
	}
	return &b, nil
}
