package keys

import (
	"fmt"
	"strings"
)

// Modifiers is a modifier mask using the CGEventFlags bit positions, so raw
// event flags can be masked directly.
type Modifiers uint64

const (
	ModShift   Modifiers = 1 << 17
	ModControl Modifiers = 1 << 18
	ModOption  Modifiers = 1 << 19
	ModCommand Modifiers = 1 << 20

	ChordMask = ModShift | ModControl | ModOption | ModCommand
)

// ModifiersFromFlags keeps only the four chord modifiers of a raw flag word.
func ModifiersFromFlags(flags uint64) Modifiers {
	return Modifiers(flags) & ChordMask
}

// Has reports whether every modifier in m2 is held in m.
func (m Modifiers) Has(m2 Modifiers) bool { return m&m2 == m2 }

func (m Modifiers) String() string {
	var parts []string
	if m.Has(ModControl) {
		parts = append(parts, "ctrl")
	}
	if m.Has(ModOption) {
		parts = append(parts, "option")
	}
	if m.Has(ModShift) {
		parts = append(parts, "shift")
	}
	if m.Has(ModCommand) {
		parts = append(parts, "cmd")
	}
	return strings.Join(parts, "+")
}

// Chord is a modifier set plus one key, e.g. cmd+option+v.
type Chord struct {
	Mods Modifiers
	Code uint16
}

// Matches reports whether a key-down with the given raw flags is exactly
// this chord. Modifiers outside the four chord modifiers are ignored.
func (c Chord) Matches(code uint16, flags uint64) bool {
	return code == c.Code && ModifiersFromFlags(flags) == c.Mods
}

func (c Chord) String() string {
	name, ok := codeToName[c.Code]
	if !ok {
		name = fmt.Sprintf("keycode%d", c.Code)
	}
	if c.Mods == 0 {
		return name
	}
	return c.Mods.String() + "+" + name
}

// ParseChord parses "mod+mod+key". At least one modifier is required so a
// bare letter can never become a global hotkey.
func ParseChord(binding string) (Chord, error) {
	parts := strings.Split(binding, "+")
	if len(parts) < 2 {
		return Chord{}, fmt.Errorf("invalid hotkey %q: need modifier+key", binding)
	}

	var c Chord
	for _, p := range parts[:len(parts)-1] {
		switch strings.ToLower(strings.TrimSpace(p)) {
		case "cmd", "command", "meta", "super":
			c.Mods |= ModCommand
		case "option", "opt", "alt":
			c.Mods |= ModOption
		case "ctrl", "control":
			c.Mods |= ModControl
		case "shift":
			c.Mods |= ModShift
		default:
			return Chord{}, fmt.Errorf("invalid hotkey %q: unknown modifier %q", binding, p)
		}
	}

	key := strings.ToLower(strings.TrimSpace(parts[len(parts)-1]))
	code, ok := nameToCode[key]
	if !ok {
		return Chord{}, fmt.Errorf("invalid hotkey %q: unknown key %q", binding, key)
	}
	c.Code = code
	return c, nil
}

// CopyChord is the platform copy shortcut substituted for the save hotkey.
var CopyChord = Chord{Mods: ModCommand, Code: CodeC}
