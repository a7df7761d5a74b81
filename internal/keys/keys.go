// Package keys holds the slot and keyboard vocabulary shared by the capture
// gate and the mode state machine.
package keys

import (
	"fmt"
	"strings"
)

// SlotId names one of the six clipboard slots.
type SlotId uint8

const (
	SlotJ SlotId = iota + 1
	SlotK
	SlotL
	SlotU
	SlotI
	SlotO
)

// AllSlots lists every slot in transport order (1..6).
var AllSlots = []SlotId{SlotJ, SlotK, SlotL, SlotU, SlotI, SlotO}

var slotLabels = map[SlotId]string{
	SlotJ: "J",
	SlotK: "K",
	SlotL: "L",
	SlotU: "U",
	SlotI: "I",
	SlotO: "O",
}

// Label returns the storage key for the slot ("J".."O").
func (s SlotId) Label() string {
	if l, ok := slotLabels[s]; ok {
		return l
	}
	return fmt.Sprintf("slot(%d)", uint8(s))
}

func (s SlotId) String() string { return s.Label() }

// Number returns the 1..6 transport number of the slot.
func (s SlotId) Number() int { return int(s) }

// SlotFromNumber resolves a transport slot number.
func SlotFromNumber(n int) (SlotId, bool) {
	if n < 1 || n > len(AllSlots) {
		return 0, false
	}
	return SlotId(n), true
}

// SlotFromLabel resolves a storage label. Matching is case-insensitive.
func SlotFromLabel(label string) (SlotId, bool) {
	label = strings.ToUpper(strings.TrimSpace(label))
	for id, l := range slotLabels {
		if l == label {
			return id, true
		}
	}
	return 0, false
}

// Kind classifies a raw keycode.
type Kind uint8

const (
	KindOther Kind = iota
	KindSlot
	KindEscape
	KindC
	KindV
)

// Key is the logical classification of a raw keycode.
type Key struct {
	Kind Kind
	Slot SlotId // set when Kind == KindSlot
	Code uint16 // raw keycode, always set
}

func (k Key) String() string {
	switch k.Kind {
	case KindSlot:
		return "slot " + k.Slot.Label()
	case KindEscape:
		return "Esc"
	case KindC:
		return "C"
	case KindV:
		return "V"
	default:
		return fmt.Sprintf("keycode %d", k.Code)
	}
}

// IsSlotOrEscape reports whether the key belongs to the chooser's own keys.
func (k Key) IsSlotOrEscape() bool {
	return k.Kind == KindSlot || k.Kind == KindEscape
}
