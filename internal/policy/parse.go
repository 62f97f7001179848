package policy

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/eliteGoblin/focusd/remapd/internal/domain"
)

// maxSuggestDistance bounds how different a suggested keysym name may be.
const maxSuggestDistance = 2

var modifierPrefixes = map[byte]domain.Modifier{
	'C': domain.ControlMask,
	'S': domain.ShiftMask,
	'M': domain.Mod1Mask,
	's': domain.Mod4Mask,
}

// ParseKey parses a key in "C-S-M-s-<keysym>" notation.
// The keysym is an X name (t, F1, Return, Page_Up) or a hex literal (0xff0d).
func ParseKey(text string) (domain.Key, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return domain.Key{}, fmt.Errorf("empty key")
	}

	var mods domain.Modifier
	for len(s) > 2 && s[1] == '-' {
		mask, ok := modifierPrefixes[s[0]]
		if !ok {
			return domain.Key{}, fmt.Errorf("unknown modifier %q in %q (use C-, S-, M- or s-)", s[:2], text)
		}
		if mods&mask != 0 {
			return domain.Key{}, fmt.Errorf("modifier %q repeated in %q", s[:2], text)
		}
		mods |= mask
		s = s[2:]
	}

	sym, err := parseKeysym(s)
	if err != nil {
		return domain.Key{}, fmt.Errorf("invalid key %q: %w", text, err)
	}
	return domain.Key{Sym: sym, Mods: mods}, nil
}

func parseKeysym(name string) (domain.Keysym, error) {
	if strings.HasPrefix(name, "0x") || strings.HasPrefix(name, "0X") {
		v, err := strconv.ParseUint(name[2:], 16, 32)
		if err != nil || v == 0 {
			return 0, fmt.Errorf("bad keysym literal %q", name)
		}
		return domain.Keysym(v), nil
	}

	if sym, ok := domain.LookupKeysym(name); ok {
		return sym, nil
	}

	if suggestion := suggestKeysym(name); suggestion != "" {
		return 0, fmt.Errorf("unknown keysym %q (did you mean %q?)", name, suggestion)
	}
	return 0, fmt.Errorf("unknown keysym %q", name)
}

// suggestKeysym returns the closest known keysym name, or "" if none is close.
func suggestKeysym(name string) string {
	best := ""
	bestDist := maxSuggestDistance + 1
	for _, candidate := range domain.KeysymNames() {
		// Single letters and digits are never useful suggestions for longer names.
		if len(candidate) == 1 {
			continue
		}
		dist := levenshtein.ComputeDistance(strings.ToLower(name), strings.ToLower(candidate))
		if dist < bestDist || (dist == bestDist && candidate < best) {
			best = candidate
			bestDist = dist
		}
	}
	if bestDist > maxSuggestDistance {
		return ""
	}
	return best
}

// ParseDirective resolves a "do:" value.
func ParseDirective(name string) (domain.Directive, error) {
	d, ok := domain.ParseDirective(strings.TrimSpace(name))
	if !ok {
		return 0, fmt.Errorf("unknown directive %q (use toggle, activate, deactivate or ignore)", name)
	}
	return d, nil
}
