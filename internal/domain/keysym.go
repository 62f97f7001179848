package domain

import "fmt"

// Named keysyms from X11/keysymdef.h (XK_MISCELLANY and XK_LATIN1 subsets).
var namedKeysyms = map[string]Keysym{
	"BackSpace":   0xff08,
	"Tab":         0xff09,
	"Linefeed":    0xff0a,
	"Clear":       0xff0b,
	"Return":      0xff0d,
	"Pause":       0xff13,
	"Scroll_Lock": 0xff14,
	"Sys_Req":     0xff15,
	"Escape":      0xff1b,
	"Delete":      0xffff,

	"Home":      0xff50,
	"Left":      0xff51,
	"Up":        0xff52,
	"Right":     0xff53,
	"Down":      0xff54,
	"Prior":     0xff55,
	"Page_Up":   0xff55,
	"Next":      0xff56,
	"Page_Down": 0xff56,
	"End":       0xff57,
	"Begin":     0xff58,

	"Select":    0xff60,
	"Print":     0xff61,
	"Execute":   0xff62,
	"Insert":    0xff63,
	"Undo":      0xff65,
	"Redo":      0xff66,
	"Menu":      0xff67,
	"Find":      0xff68,
	"Cancel":    0xff69,
	"Help":      0xff6a,
	"Break":     0xff6b,
	"Num_Lock":  0xff7f,
	"Caps_Lock": 0xffe5,

	"KP_Enter":    0xff8d,
	"KP_Multiply": 0xffaa,
	"KP_Add":      0xffab,
	"KP_Subtract": 0xffad,
	"KP_Decimal":  0xffae,
	"KP_Divide":   0xffaf,

	"Shift_L":   0xffe1,
	"Shift_R":   0xffe2,
	"Control_L": 0xffe3,
	"Control_R": 0xffe4,
	"Meta_L":    0xffe7,
	"Meta_R":    0xffe8,
	"Alt_L":     0xffe9,
	"Alt_R":     0xffea,
	"Super_L":   0xffeb,
	"Super_R":   0xffec,

	"space":        0x20,
	"exclam":       0x21,
	"quotedbl":     0x22,
	"numbersign":   0x23,
	"dollar":       0x24,
	"percent":      0x25,
	"ampersand":    0x26,
	"apostrophe":   0x27,
	"parenleft":    0x28,
	"parenright":   0x29,
	"asterisk":     0x2a,
	"plus":         0x2b,
	"comma":        0x2c,
	"minus":        0x2d,
	"period":       0x2e,
	"slash":        0x2f,
	"colon":        0x3a,
	"semicolon":    0x3b,
	"less":         0x3c,
	"equal":        0x3d,
	"greater":      0x3e,
	"question":     0x3f,
	"at":           0x40,
	"bracketleft":  0x5b,
	"backslash":    0x5c,
	"bracketright": 0x5d,
	"asciicircum":  0x5e,
	"underscore":   0x5f,
	"grave":        0x60,
	"braceleft":    0x7b,
	"bar":          0x7c,
	"braceright":   0x7d,
	"asciitilde":   0x7e,

	"XF86AudioLowerVolume": 0x1008ff11,
	"XF86AudioMute":        0x1008ff12,
	"XF86AudioRaiseVolume": 0x1008ff13,
	"XF86AudioPlay":        0x1008ff14,
	"XF86AudioStop":        0x1008ff15,
	"XF86AudioPrev":        0x1008ff16,
	"XF86AudioNext":        0x1008ff17,
}

var (
	keysymsByName = map[string]Keysym{}
	keysymNames   = map[Keysym]string{}
)

func init() {
	for name, sym := range namedKeysyms {
		keysymsByName[name] = sym
	}
	for c := 'a'; c <= 'z'; c++ {
		keysymsByName[string(c)] = Keysym(c)
		keysymsByName[string(c-'a'+'A')] = Keysym(c - 'a' + 'A')
	}
	for c := '0'; c <= '9'; c++ {
		keysymsByName[string(c)] = Keysym(c)
	}
	for i := 1; i <= 35; i++ {
		keysymsByName[fmt.Sprintf("F%d", i)] = Keysym(0xffbe + i - 1)
	}
	for i := 0; i <= 9; i++ {
		keysymsByName[fmt.Sprintf("KP_%d", i)] = Keysym(0xffb0 + i)
	}

	for name, sym := range keysymsByName {
		// Aliases share a keysym; keep the canonical X name.
		if prev, ok := keysymNames[sym]; ok && !preferName(name, prev) {
			continue
		}
		keysymNames[sym] = name
	}
}

// preferName picks the canonical name between two aliases of one keysym.
func preferName(candidate, current string) bool {
	switch candidate {
	case "Prior", "Next":
		return true
	}
	switch current {
	case "Prior", "Next":
		return false
	}
	return candidate < current
}
