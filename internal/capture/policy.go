// Package capture intercepts global keyboard events and decides, from the
// published mode, which ones the foreground application gets to see.
package capture

import (
	"errors"
	"fmt"

	"github.com/slotpaste/agent/internal/keys"
	"github.com/slotpaste/agent/internal/modes"
)

var (
	// ErrPermissionDenied means the process may not intercept input events.
	ErrPermissionDenied = errors.New("input capture permission not granted")
	// ErrCaptureUnsupported means this build has no global event source.
	ErrCaptureUnsupported = errors.New("input capture is not supported on this platform")
)

// EventType is the kind of raw keyboard event.
type EventType uint8

const (
	EventKeyDown EventType = iota + 1
	EventKeyUp
	EventFlagsChanged
)

func (t EventType) String() string {
	switch t {
	case EventKeyDown:
		return "key_down"
	case EventKeyUp:
		return "key_up"
	case EventFlagsChanged:
		return "flags_changed"
	default:
		return fmt.Sprintf("event(%d)", uint8(t))
	}
}

// RawEvent is a keyboard event as the tap sees it.
type RawEvent struct {
	Type  EventType
	Code  uint16
	Flags uint64
}

// Hotkeys are the chords that arm a chooser from Idle.
type Hotkeys struct {
	Save  keys.Chord
	Paste keys.Chord
	// CopyOnSave delivers a plain copy chord in place of the save hotkey so
	// the foreground application copies its selection first.
	CopyOnSave bool
}

// DefaultHotkeys are cmd+option+c and cmd+option+v.
func DefaultHotkeys() Hotkeys {
	return Hotkeys{
		Save:  keys.Chord{Mods: keys.ModCommand | keys.ModOption, Code: keys.CodeC},
		Paste: keys.Chord{Mods: keys.ModCommand | keys.ModOption, Code: keys.CodeV},
	}
}

// Decision is the gate's verdict on one event. Swallow keeps the original
// event from the application; Substitute, when set, is delivered in its place.
type Decision struct {
	Forward    *modes.Event
	Swallow    bool
	Substitute *keys.Chord
}

// Action names the decision for logs and metrics.
func (d Decision) Action() string {
	switch {
	case d.Substitute != nil:
		return "substitute"
	case d.Swallow:
		return "swallow"
	default:
		return "pass"
	}
}

func forward(ev modes.Event) *modes.Event { return &ev }

// Decide applies the swallow policy to ev given the published mode.
func Decide(ev RawEvent, kind modes.Kind, hk Hotkeys) Decision {
	key := keys.FromKeycode(ev.Code)

	if kind == modes.Idle {
		switch ev.Type {
		case EventKeyDown:
			if hk.Save.Matches(ev.Code, ev.Flags) {
				d := Decision{Forward: forward(modes.ArmSave()), Swallow: true}
				if hk.CopyOnSave {
					c := keys.CopyChord
					d.Substitute = &c
				}
				return d
			}
			if hk.Paste.Matches(ev.Code, ev.Flags) {
				return Decision{Forward: forward(modes.ArmPaste()), Swallow: true}
			}
			return Decision{Forward: forward(modes.KeyDown(key, ev.Flags))}
		case EventKeyUp:
			return Decision{Forward: forward(modes.KeyUp(key, ev.Flags))}
		case EventFlagsChanged:
			return Decision{Forward: forward(modes.FlagsChanged(ev.Flags))}
		}
		return Decision{}
	}

	if kind.Pending() && ev.Type != EventFlagsChanged && key.IsSlotOrEscape() {
		d := Decision{Swallow: true}
		if ev.Type == EventKeyDown {
			d.Forward = forward(modes.KeyDown(key, ev.Flags))
		}
		return d
	}
	return Decision{}
}
