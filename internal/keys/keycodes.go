package keys

// macOS virtual key codes (Carbon kVK_* values).
const (
	CodeA      uint16 = 0
	CodeS      uint16 = 1
	CodeD      uint16 = 2
	CodeF      uint16 = 3
	CodeH      uint16 = 4
	CodeG      uint16 = 5
	CodeZ      uint16 = 6
	CodeX      uint16 = 7
	CodeC      uint16 = 8
	CodeV      uint16 = 9
	CodeB      uint16 = 11
	CodeQ      uint16 = 12
	CodeW      uint16 = 13
	CodeE      uint16 = 14
	CodeR      uint16 = 15
	CodeY      uint16 = 16
	CodeT      uint16 = 17
	Code1      uint16 = 18
	Code2      uint16 = 19
	Code3      uint16 = 20
	Code4      uint16 = 21
	Code6      uint16 = 22
	Code5      uint16 = 23
	Code9      uint16 = 25
	Code7      uint16 = 26
	Code8      uint16 = 28
	Code0      uint16 = 29
	CodeO      uint16 = 31
	CodeU      uint16 = 32
	CodeI      uint16 = 34
	CodeP      uint16 = 35
	CodeL      uint16 = 37
	CodeJ      uint16 = 38
	CodeK      uint16 = 40
	CodeN      uint16 = 45
	CodeM      uint16 = 46
	CodeEscape uint16 = 53
	CodeCmd    uint16 = 55
)

// FromKeycode classifies a raw keycode. Total over all inputs.
func FromKeycode(code uint16) Key {
	switch code {
	case CodeJ:
		return Key{Kind: KindSlot, Slot: SlotJ, Code: code}
	case CodeK:
		return Key{Kind: KindSlot, Slot: SlotK, Code: code}
	case CodeL:
		return Key{Kind: KindSlot, Slot: SlotL, Code: code}
	case CodeU:
		return Key{Kind: KindSlot, Slot: SlotU, Code: code}
	case CodeI:
		return Key{Kind: KindSlot, Slot: SlotI, Code: code}
	case CodeO:
		return Key{Kind: KindSlot, Slot: SlotO, Code: code}
	case CodeEscape:
		return Key{Kind: KindEscape, Code: code}
	case CodeC:
		return Key{Kind: KindC, Code: code}
	case CodeV:
		return Key{Kind: KindV, Code: code}
	default:
		return Key{Kind: KindOther, Code: code}
	}
}

var nameToCode = map[string]uint16{
	"a": CodeA, "b": CodeB, "c": CodeC, "d": CodeD, "e": CodeE, "f": CodeF,
	"g": CodeG, "h": CodeH, "i": CodeI, "j": CodeJ, "k": CodeK, "l": CodeL,
	"m": CodeM, "n": CodeN, "o": CodeO, "p": CodeP, "q": CodeQ, "r": CodeR,
	"s": CodeS, "t": CodeT, "u": CodeU, "v": CodeV, "w": CodeW, "x": CodeX,
	"y": CodeY, "z": CodeZ,
	"0": Code0, "1": Code1, "2": Code2, "3": Code3, "4": Code4,
	"5": Code5, "6": Code6, "7": Code7, "8": Code8, "9": Code9,
	"esc": CodeEscape, "escape": CodeEscape,
}

var codeToName = func() map[uint16]string {
	m := make(map[uint16]string, len(nameToCode))
	for name, code := range nameToCode {
		if name == "escape" {
			continue
		}
		m[code] = name
	}
	return m
}()
