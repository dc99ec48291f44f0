package ws

import "github.com/roach88/fusion/internal/ir"

// Request types.
const (
	TypeDeal      = "deal"
	TypeToggleOn  = "toggle_on"
	TypeToggleOff = "toggle_off"
	TypeToggle    = "toggle"
	TypeClear     = "clear"
	TypeFuse      = "fuse"
)

// Reply types.
const (
	TypeWelcome = "welcome"
	TypeEvent   = "event"
	TypeError   = "error"
)

// Error codes for replies that are not session rejections.
const (
	ErrCodeBadRequest = "BAD_REQUEST"
	ErrCodeInternal   = "INTERNAL"
)

// Request is one client operation. Slot is required for the toggle types;
// Cards is the new hand for deal.
type Request struct {
	Type  string   `json:"type"`
	Slot  *int     `json:"slot,omitempty"`
	Cards []string `json:"cards,omitempty"`
}

// Reply is sent for every request, and once as a welcome on connect.
type Reply struct {
	Type string `json:"type"`

	// Welcome fields.
	SessionID string `json:"session_id,omitempty"`
	HandSize  int    `json:"hand_size,omitempty"`

	// Event fields.
	Seq     int64       `json:"seq,omitempty"`
	Kind    string      `json:"kind,omitempty"`
	Handle  string      `json:"handle,omitempty"`
	Hand    []string    `json:"hand,omitempty"`
	Outcome *ir.Outcome `json:"outcome,omitempty"`

	Error *ErrorBody `json:"error,omitempty"`
}

// ErrorBody describes why a request was rejected.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
