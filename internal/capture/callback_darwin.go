//go:build darwin && cgo

package capture

import "C"

import "github.com/slotpaste/agent/internal/keys"

const (
	tapPass       = 0
	tapSwallow    = 1
	tapSubstitute = 2
)

//export goTapEvent
func goTapEvent(typ C.int, code C.int, flags C.ulonglong, outCode *C.int, outFlags *C.ulonglong) C.int {
	g := activeGate.Load()
	if g == nil {
		return tapPass
	}

	var et EventType
	switch int(typ) {
	case cgEventKeyDown:
		et = EventKeyDown
	case cgEventKeyUp:
		et = EventKeyUp
	case cgEventFlagsChanged:
		et = EventFlagsChanged
	default:
		return tapPass
	}

	d := g.Handle(RawEvent{Type: et, Code: uint16(code), Flags: uint64(flags)})
	switch {
	case d.Substitute != nil:
		// Keep non-chord flag bits so the synthetic event looks physical.
		other := uint64(flags) &^ uint64(keys.ChordMask)
		*outCode = C.int(d.Substitute.Code)
		*outFlags = C.ulonglong(other | uint64(d.Substitute.Mods))
		return tapSubstitute
	case d.Swallow:
		return tapSwallow
	default:
		return tapPass
	}
}

//export goTapDisabled
func goTapDisabled(typ C.int) {
	log.Warn("event tap disabled by the system, re-enabled", "cgEventType", int(typ))
}
