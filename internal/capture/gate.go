package capture

import (
	"github.com/slotpaste/agent/internal/logging"
	"github.com/slotpaste/agent/internal/modes"
)

var log = logging.L("capture")

// Pusher accepts forwarded events without blocking.
type Pusher interface {
	Push(ev modes.Event)
}

// Recorder counts gate decisions. Implementations must not block.
type Recorder interface {
	Intercepted(action string)
}

// Gate binds the policy to the published mode and the event queue. Handle
// is called from the tap goroutine for every keyboard event.
type Gate struct {
	cell    *modes.Cell
	hotkeys Hotkeys
	out     Pusher
	rec     Recorder
}

func NewGate(cell *modes.Cell, hk Hotkeys, out Pusher, rec Recorder) *Gate {
	return &Gate{cell: cell, hotkeys: hk, out: out, rec: rec}
}

// Handle decides ev against the current published mode and forwards the
// resulting event, if any. It never blocks.
func (g *Gate) Handle(ev RawEvent) Decision {
	d := Decide(ev, g.cell.Kind(), g.hotkeys)
	if d.Forward != nil {
		g.out.Push(*d.Forward)
	}
	if d.Swallow {
		log.Debug("swallowed key", "type", ev.Type.String(), "code", ev.Code, "action", d.Action())
	}
	if g.rec != nil {
		g.rec.Intercepted(d.Action())
	}
	return d
}

