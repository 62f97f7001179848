package domain

import (
	"fmt"
	"strings"
)

// Modifier is an X modifier mask (the "state" field of key events).
type Modifier uint16

// Core X modifier bits.
const (
	ShiftMask   Modifier = 1 << 0
	LockMask    Modifier = 1 << 1 // caps lock
	ControlMask Modifier = 1 << 2
	Mod1Mask    Modifier = 1 << 3 // alt
	Mod2Mask    Modifier = 1 << 4 // num lock
	Mod3Mask    Modifier = 1 << 5 // scroll lock
	Mod4Mask    Modifier = 1 << 6 // super
	Mod5Mask    Modifier = 1 << 7 // vendor specific (often AltGr/ISO level 3)
)

// IgnoredModifiers are the lock-type bits that never take part in rule matching.
const IgnoredModifiers = LockMask | Mod2Mask | Mod3Mask | Mod5Mask

// LockVariants lists the masks OR'd into every grab. Only single lock bits are
// covered: a key pressed with two locks active (e.g. caps + num) is not grabbed.
var LockVariants = []Modifier{
	0,
	LockMask,
	Mod2Mask,
	Mod3Mask,
	Mod5Mask,
}

// Normalize clears the lock-type bits from a raw modifier mask.
func Normalize(raw Modifier) Modifier {
	return raw &^ IgnoredModifiers
}

// Key identifies a key combination: a keysym plus a modifier mask.
type Key struct {
	Sym  Keysym
	Mods Modifier
}

// NewKey builds a Key with a normalized modifier mask.
func NewKey(sym Keysym, mods Modifier) Key {
	return Key{Sym: sym, Mods: Normalize(mods)}
}

// Normalized returns k with lock bits cleared.
func (k Key) Normalized() Key {
	return Key{Sym: k.Sym, Mods: Normalize(k.Mods)}
}

// String renders k in the policy file syntax, e.g. "C-S-t".
func (k Key) String() string {
	var b strings.Builder
	if k.Mods&ControlMask != 0 {
		b.WriteString("C-")
	}
	if k.Mods&ShiftMask != 0 {
		b.WriteString("S-")
	}
	if k.Mods&Mod1Mask != 0 {
		b.WriteString("M-")
	}
	if k.Mods&Mod4Mask != 0 {
		b.WriteString("s-")
	}
	b.WriteString(KeysymName(k.Sym))
	return b.String()
}

// KeysymName returns the X name of sym, or a hex literal if it is not known.
func KeysymName(sym Keysym) string {
	if name, ok := keysymNames[sym]; ok {
		return name
	}
	return fmt.Sprintf("0x%x", uint32(sym))
}

// LookupKeysym resolves an X keysym name. Names are case-sensitive except
// for single letters, which fold to the lowercase (unshifted) keysym.
func LookupKeysym(name string) (Keysym, bool) {
	if len(name) == 1 {
		c := name[0]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c >= 0x20 && c <= 0x7e {
			return Keysym(c), true
		}
	}
	sym, ok := keysymsByName[name]
	return sym, ok
}

// KeysymNames returns every known keysym name.
func KeysymNames() []string {
	names := make([]string, 0, len(keysymsByName))
	for name := range keysymsByName {
		names = append(names, name)
	}
	return names
}
