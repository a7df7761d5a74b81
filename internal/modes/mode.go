// Package modes owns the agent's logical mode: the token-guarded state
// machine that arms and resolves the slot chooser, and the cell through
// which the current mode is published to the input capture goroutine.
package modes

import (
	"sync/atomic"
	"time"
)

// Kind is the mode without its token and deadline.
type Kind uint8

const (
	Idle Kind = iota
	SaveChooserPending
	PasteChooserActive
)

func (k Kind) String() string {
	switch k {
	case Idle:
		return "idle"
	case SaveChooserPending:
		return "save_pending"
	case PasteChooserActive:
		return "paste_active"
	default:
		return "unknown"
	}
}

// Pending reports whether a chooser is open.
func (k Kind) Pending() bool {
	return k == SaveChooserPending || k == PasteChooserActive
}

// Flow is the chooser mode named on the wire.
type Flow string

const (
	FlowSave  Flow = "save"
	FlowPaste Flow = "paste"
)

func (k Kind) Flow() Flow {
	if k == PasteChooserActive {
		return FlowPaste
	}
	return FlowSave
}

// Mode is a Kind plus, while a chooser is open, the token it was armed
// with and the instant it expires.
type Mode struct {
	Kind     Kind
	Token    string
	Deadline time.Time
}

// Expired reports whether now is at or past the deadline.
func (m Mode) Expired(now time.Time) bool {
	return m.Kind.Pending() && !now.Before(m.Deadline)
}

var idleMode = &Mode{Kind: Idle}

// Cell publishes the current Mode across goroutines. The machine is the
// only writer; readers may observe a value one transition old.
type Cell struct {
	p atomic.Pointer[Mode]
}

func NewCell() *Cell {
	c := &Cell{}
	c.p.Store(idleMode)
	return c
}

// Store publishes m.
func (c *Cell) Store(m Mode) {
	if m.Kind == Idle {
		c.p.Store(idleMode)
		return
	}
	c.p.Store(&m)
}

// Load returns the most recently published Mode.
func (c *Cell) Load() Mode {
	if m := c.p.Load(); m != nil {
		return *m
	}
	return Mode{}
}

// Kind is Load().Kind without copying the mode.
func (c *Cell) Kind() Kind {
	if m := c.p.Load(); m != nil {
		return m.Kind
	}
	return Idle
}
