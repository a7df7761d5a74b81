// Package chooser talks to the slot chooser surface over loopback UDP.
// Each datagram carries one or more newline-delimited JSON messages. There
// is no delivery guarantee, no ordering across datagrams and no retry.
package chooser

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/slotpaste/agent/internal/keys"
	"github.com/slotpaste/agent/internal/modes"
)

// Message type constants.
const (
	TypeShow   = "show"
	TypeHide   = "hide"
	TypeChosen = "chosen"
	TypeCancel = "cancel"
)

// AnchorMouse places the chooser at the mouse pointer.
const AnchorMouse = "mouse"

// DefaultCancelReason is used when a cancel reply carries no reason.
const DefaultCancelReason = "timeout"

// ErrMalformed is returned by Decode for lines that are not a valid reply.
var ErrMalformed = errors.New("chooser: malformed message")

// Show asks the chooser to open.
type Show struct {
	Type      string `json:"type"`
	Mode      string `json:"mode"`
	Token     string `json:"token"`
	TimeoutMs uint64 `json:"timeout_ms"`
	Anchor    string `json:"anchor"`
}

// Hide asks the chooser to close. Receivers treat repeats as no-ops.
type Hide struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// reply is an inbound chosen or cancel. Pointer fields distinguish absent
// from zero.
type reply struct {
	Type   *string `json:"type"`
	Token  *string `json:"token"`
	Slot   *int    `json:"slot,omitempty"`
	Reason *string `json:"reason,omitempty"`
}

// EncodeShow renders a show message.
func EncodeShow(flow modes.Flow, token string, timeout time.Duration) ([]byte, error) {
	return json.Marshal(Show{
		Type:      TypeShow,
		Mode:      string(flow),
		Token:     token,
		TimeoutMs: uint64(timeout / time.Millisecond),
		Anchor:    AnchorMouse,
	})
}

// EncodeHide renders a hide message.
func EncodeHide(token string) ([]byte, error) {
	return json.Marshal(Hide{Type: TypeHide, Token: token})
}

// DecodeShow parses an outbound show message, as the chooser surface would.
func DecodeShow(line []byte) (Show, error) {
	var s Show
	if err := json.Unmarshal(line, &s); err != nil {
		return Show{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if s.Type != TypeShow {
		return Show{}, fmt.Errorf("%w: type %q", ErrMalformed, s.Type)
	}
	return s, nil
}

// EncodeChosen renders a chosen reply.
func EncodeChosen(token string, slot int) ([]byte, error) {
	t := TypeChosen
	return json.Marshal(reply{Type: &t, Token: &token, Slot: &slot})
}

// EncodeCancel renders a cancel reply.
func EncodeCancel(token, reason string) ([]byte, error) {
	t := TypeCancel
	return json.Marshal(reply{Type: &t, Token: &token, Reason: &reason})
}

// Decode parses one inbound line into a state machine event. Unknown fields
// are ignored; missing required fields or a slot outside 1..6 are rejected.
func Decode(line []byte) (modes.Event, error) {
	var r reply
	if err := json.Unmarshal(line, &r); err != nil {
		return modes.Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if r.Type == nil || r.Token == nil {
		return modes.Event{}, fmt.Errorf("%w: missing type or token", ErrMalformed)
	}

	switch *r.Type {
	case TypeChosen:
		if r.Slot == nil {
			return modes.Event{}, fmt.Errorf("%w: chosen without slot", ErrMalformed)
		}
		if _, ok := keys.SlotFromNumber(*r.Slot); !ok {
			return modes.Event{}, fmt.Errorf("%w: slot %d out of range", ErrMalformed, *r.Slot)
		}
		return modes.Chosen(*r.Token, *r.Slot), nil
	case TypeCancel:
		reason := DefaultCancelReason
		if r.Reason != nil && *r.Reason != "" {
			reason = *r.Reason
		}
		return modes.Cancel(*r.Token, reason), nil
	default:
		return modes.Event{}, fmt.Errorf("%w: unexpected type %q", ErrMalformed, *r.Type)
	}
}
