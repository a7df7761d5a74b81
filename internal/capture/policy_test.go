package capture

import (
	"testing"

	"github.com/slotpaste/agent/internal/keys"
	"github.com/slotpaste/agent/internal/modes"
)

const (
	cmd       = uint64(keys.ModCommand)
	cmdOption = uint64(keys.ModCommand | keys.ModOption)
	capsLock  = uint64(1 << 16)
)

type recordingQueue struct {
	events []modes.Event
}

func (q *recordingQueue) Push(ev modes.Event) { q.events = append(q.events, ev) }

func TestDecideIdle(t *testing.T) {
	hk := DefaultHotkeys()
	tests := []struct {
		name    string
		ev      RawEvent
		swallow bool
		forward modes.EventType
	}{
		{"save hotkey", RawEvent{EventKeyDown, keys.CodeC, cmdOption}, true, modes.EvArmSave},
		{"paste hotkey", RawEvent{EventKeyDown, keys.CodeV, cmdOption}, true, modes.EvArmPaste},
		{"paste hotkey with caps lock", RawEvent{EventKeyDown, keys.CodeV, cmdOption | capsLock}, true, modes.EvArmPaste},
		{"plain copy passes", RawEvent{EventKeyDown, keys.CodeC, cmd}, false, modes.EvKeyDown},
		{"plain paste passes", RawEvent{EventKeyDown, keys.CodeV, cmd}, false, modes.EvKeyDown},
		{"extra shift is not the hotkey", RawEvent{EventKeyDown, keys.CodeV, cmdOption | uint64(keys.ModShift)}, false, modes.EvKeyDown},
		{"slot key passes", RawEvent{EventKeyDown, keys.CodeJ, 0}, false, modes.EvKeyDown},
		{"escape passes", RawEvent{EventKeyDown, keys.CodeEscape, 0}, false, modes.EvKeyDown},
		{"hotkey release passes", RawEvent{EventKeyUp, keys.CodeV, cmdOption}, false, modes.EvKeyUp},
		{"modifier change passes", RawEvent{EventFlagsChanged, keys.CodeCmd, cmd}, false, modes.EvFlagsChanged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.ev, modes.Idle, hk)
			if d.Swallow != tt.swallow {
				t.Fatalf("swallow = %v, want %v", d.Swallow, tt.swallow)
			}
			if d.Forward == nil || d.Forward.Type != tt.forward {
				t.Fatalf("forward = %+v, want %s", d.Forward, tt.forward)
			}
			if d.Substitute != nil {
				t.Fatal("no substitution without copy_on_save")
			}
		})
	}
}

func TestDecidePending(t *testing.T) {
	hk := DefaultHotkeys()
	for _, kind := range []modes.Kind{modes.SaveChooserPending, modes.PasteChooserActive} {
		t.Run(kind.String(), func(t *testing.T) {
			for _, code := range []uint16{keys.CodeJ, keys.CodeK, keys.CodeL, keys.CodeU, keys.CodeI, keys.CodeO, keys.CodeEscape} {
				down := Decide(RawEvent{EventKeyDown, code, 0}, kind, hk)
				if !down.Swallow || down.Forward == nil || down.Forward.Type != modes.EvKeyDown {
					t.Fatalf("code %d down: %+v", code, down)
				}
				if down.Forward.Key.Code != code {
					t.Fatalf("forwarded code %d, want %d", down.Forward.Key.Code, code)
				}

				up := Decide(RawEvent{EventKeyUp, code, 0}, kind, hk)
				if !up.Swallow || up.Forward != nil {
					t.Fatalf("code %d up: swallow=%v forward=%+v", code, up.Swallow, up.Forward)
				}
			}

			for _, ev := range []RawEvent{
				{EventKeyDown, keys.CodeA, 0},
				{EventKeyUp, keys.CodeA, 0},
				{EventKeyDown, keys.CodeV, cmdOption},
				{EventKeyUp, keys.CodeC, cmdOption},
				{EventFlagsChanged, keys.CodeCmd, 0},
			} {
				d := Decide(ev, kind, hk)
				if d.Swallow || d.Forward != nil {
					t.Fatalf("%+v should pass through untouched, got %+v", ev, d)
				}
			}
		})
	}
}

func TestDecideCopyOnSaveSubstitutes(t *testing.T) {
	hk := DefaultHotkeys()
	hk.CopyOnSave = true

	d := Decide(RawEvent{EventKeyDown, keys.CodeC, cmdOption}, modes.Idle, hk)
	if !d.Swallow || d.Substitute == nil || *d.Substitute != keys.CopyChord {
		t.Fatalf("decision = %+v", d)
	}
	if d.Action() != "substitute" {
		t.Fatalf("action = %s", d.Action())
	}

	d = Decide(RawEvent{EventKeyDown, keys.CodeV, cmdOption}, modes.Idle, hk)
	if d.Substitute != nil {
		t.Fatal("paste hotkey is never substituted")
	}
}

// A slot key pressed with no chooser open must reach the application and
// must not move the machine out of Idle.
func TestSlotKeyInIdlePassesThrough(t *testing.T) {
	cell := modes.NewCell()
	q := &recordingQueue{}
	g := NewGate(cell, DefaultHotkeys(), q, nil)

	d := g.Handle(RawEvent{EventKeyDown, keys.CodeL, 0})
	if d.Swallow {
		t.Fatal("slot key swallowed in idle")
	}
	if len(q.events) != 1 || q.events[0].Type != modes.EvKeyDown {
		t.Fatalf("forwarded %+v", q.events)
	}
}

type actionCounter map[string]int

func (a actionCounter) Intercepted(action string) { a[action]++ }

func TestGateFollowsPublishedMode(t *testing.T) {
	cell := modes.NewCell()
	q := &recordingQueue{}
	rec := actionCounter{}
	g := NewGate(cell, DefaultHotkeys(), q, rec)

	if d := g.Handle(RawEvent{EventKeyDown, keys.CodeK, 0}); d.Swallow {
		t.Fatal("idle: slot key swallowed")
	}

	cell.Store(modes.Mode{Kind: modes.SaveChooserPending, Token: "1"})
	if d := g.Handle(RawEvent{EventKeyDown, keys.CodeK, 0}); !d.Swallow {
		t.Fatal("pending: slot key passed through")
	}
	if d := g.Handle(RawEvent{EventKeyUp, keys.CodeK, 0}); !d.Swallow {
		t.Fatal("pending: slot key release passed through")
	}

	cell.Store(modes.Mode{Kind: modes.Idle})
	if d := g.Handle(RawEvent{EventKeyDown, keys.CodeV, cmdOption}); !d.Swallow {
		t.Fatal("idle: paste hotkey passed through")
	}

	if rec["swallow"] != 3 || rec["pass"] != 1 {
		t.Fatalf("recorded %v", rec)
	}
	// idle key down, pending key down, paste hotkey
	if len(q.events) != 3 {
		t.Fatalf("forwarded %d events, want 3", len(q.events))
	}
}
