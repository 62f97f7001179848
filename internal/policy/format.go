package policy

import (
	"fmt"
	"io"
	"strings"

	"github.com/eliteGoblin/focusd/remapd/internal/domain"
)

// Format writes a human-readable dump of p, one block per group:
//
//	match class Firefox ; match all
//	on C-n do send key Down
func Format(w io.Writer, p *domain.Policy) error {
	if p.FallThrough {
		if _, err := fmt.Fprintln(w, "# fallthrough enabled"); err != nil {
			return err
		}
	}
	for i, g := range p.Groups {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w, formatMatches(g.Matches)); err != nil {
			return err
		}
		for _, r := range g.Rules {
			if _, err := fmt.Fprintf(w, "on %s do %s\n", r.Trigger, r.Action); err != nil {
				return err
			}
		}
	}
	return nil
}

func formatMatches(matches []domain.Match) string {
	if len(matches) == 0 {
		return "(no match)"
	}
	parts := make([]string, len(matches))
	for i, m := range matches {
		switch m.Kind {
		case domain.MatchAny:
			parts[i] = "match all"
		case domain.MatchClass:
			parts[i] = "match class " + m.Class
		default:
			panic(fmt.Sprintf("policy: invalid match kind %d", int(m.Kind)))
		}
	}
	return strings.Join(parts, " ; ")
}
