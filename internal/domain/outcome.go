package domain

import "fmt"

// OutcomeKind classifies what Dispatch did with an event.
type OutcomeKind int

const (
	// OutcomePassThrough: no rule fired, the observed key was re-sent.
	OutcomePassThrough OutcomeKind = iota
	// OutcomeForwarded: a send rule fired.
	OutcomeForwarded
	// OutcomeCommand: an exec rule fired on a press.
	OutcomeCommand
	// OutcomeCommandSkipped: an exec rule matched a release.
	OutcomeCommandSkipped
	// OutcomeDirective: a placeholder rule fired.
	OutcomeDirective
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomePassThrough:
		return "pass-through"
	case OutcomeForwarded:
		return "forwarded"
	case OutcomeCommand:
		return "command"
	case OutcomeCommandSkipped:
		return "command-skipped"
	case OutcomeDirective:
		return "directive"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome describes one dispatch decision.
// Group and Rule are zero-based indices, -1 when nothing matched.
type Outcome struct {
	Kind     OutcomeKind
	Observed Key
	Focused  Window
	Group    int
	Rule     int
}

// GrabReport summarizes startup grab registration.
type GrabReport struct {
	Triggers  int
	Requested int
	Failed    int
}
