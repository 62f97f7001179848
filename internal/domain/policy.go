package domain

import (
	"fmt"
)

// MatchKind selects how a Match tests the focused window.
type MatchKind int

const (
	// MatchAny is satisfied by every window.
	MatchAny MatchKind = iota + 1
	// MatchClass is satisfied when the window's WM_CLASS class equals Class.
	MatchClass
)

func (k MatchKind) String() string {
	switch k {
	case MatchAny:
		return "all"
	case MatchClass:
		return "class"
	default:
		return fmt.Sprintf("MatchKind(%d)", int(k))
	}
}

// Match is a predicate over the focused window.
type Match struct {
	Kind  MatchKind
	Class string // set iff Kind == MatchClass
}

// AnyWindow returns a match satisfied by every window.
func AnyWindow() Match {
	return Match{Kind: MatchAny}
}

// ClassIs returns a match on the exact (case-sensitive) window class.
func ClassIs(class string) Match {
	return Match{Kind: MatchClass, Class: class}
}

// Validate checks the payload against the kind.
func (m Match) Validate() error {
	switch m.Kind {
	case MatchAny:
		if m.Class != "" {
			return fmt.Errorf("match all must not carry a class (got %q)", m.Class)
		}
	case MatchClass:
		if m.Class == "" {
			return fmt.Errorf("match class requires a non-empty class name")
		}
	default:
		return fmt.Errorf("unknown match kind %d", int(m.Kind))
	}
	return nil
}

// ActionKind selects what a fired rule does.
type ActionKind int

const (
	// ActionForwardKey sends a (possibly different) key to the focused window.
	ActionForwardKey ActionKind = iota + 1
	// ActionPlaceholder is a reserved directive; see Directive.
	ActionPlaceholder
	// ActionRunCommand launches a shell command on key press.
	ActionRunCommand
)

func (k ActionKind) String() string {
	switch k {
	case ActionForwardKey:
		return "send"
	case ActionPlaceholder:
		return "do"
	case ActionRunCommand:
		return "exec"
	default:
		return fmt.Sprintf("ActionKind(%d)", int(k))
	}
}

// Directive is the payload of a placeholder action.
// Only DirectiveIgnore has a defined effect today (it swallows the key);
// the others are reserved for enabling and disabling groups.
type Directive int

const (
	DirectiveToggle Directive = iota + 1
	DirectiveActivate
	DirectiveDeactivate
	DirectiveIgnore
)

var directiveNames = map[Directive]string{
	DirectiveToggle:     "toggle",
	DirectiveActivate:   "activate",
	DirectiveDeactivate: "deactivate",
	DirectiveIgnore:     "ignore",
}

func (d Directive) String() string {
	if name, ok := directiveNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Directive(%d)", int(d))
}

// ParseDirective resolves a directive name.
func ParseDirective(name string) (Directive, bool) {
	for d, n := range directiveNames {
		if n == name {
			return d, true
		}
	}
	return 0, false
}

// Implemented reports whether the directive has an effect beyond a warning.
func (d Directive) Implemented() bool {
	return d == DirectiveIgnore
}

// Action is a tagged variant; exactly one payload field is set, per Kind.
type Action struct {
	Kind      ActionKind
	Key       Key       // ActionForwardKey
	Directive Directive // ActionPlaceholder
	Command   string    // ActionRunCommand
}

// ForwardKey returns an action that sends k.
func ForwardKey(k Key) Action {
	return Action{Kind: ActionForwardKey, Key: k.Normalized()}
}

// RunCommand returns an action that runs command through the user's shell.
func RunCommand(command string) Action {
	return Action{Kind: ActionRunCommand, Command: command}
}

// Placeholder returns a reserved directive action.
func Placeholder(d Directive) Action {
	return Action{Kind: ActionPlaceholder, Directive: d}
}

// Validate checks that exactly the payload matching Kind is populated.
func (a Action) Validate() error {
	switch a.Kind {
	case ActionForwardKey:
		if a.Key.Sym == 0 {
			return fmt.Errorf("send action requires a key")
		}
		if a.Directive != 0 || a.Command != "" {
			return fmt.Errorf("send action carries a foreign payload")
		}
	case ActionPlaceholder:
		if _, ok := directiveNames[a.Directive]; !ok {
			return fmt.Errorf("unknown directive %d", int(a.Directive))
		}
		if a.Key != (Key{}) || a.Command != "" {
			return fmt.Errorf("directive action carries a foreign payload")
		}
	case ActionRunCommand:
		if a.Command == "" {
			return fmt.Errorf("exec action requires a command")
		}
		if a.Key != (Key{}) || a.Directive != 0 {
			return fmt.Errorf("exec action carries a foreign payload")
		}
	default:
		return fmt.Errorf("unknown action kind %d", int(a.Kind))
	}
	return nil
}

func (a Action) String() string {
	switch a.Kind {
	case ActionForwardKey:
		return "send key " + a.Key.String()
	case ActionPlaceholder:
		return a.Directive.String()
	case ActionRunCommand:
		return "exec " + a.Command
	default:
		panic(fmt.Sprintf("domain: invalid action kind %d", int(a.Kind)))
	}
}

// Rule binds a trigger key to an action.
type Rule struct {
	Trigger Key
	Action  Action
}

// Matches reports whether observed fires this rule. The observed modifier
// state is normalized; equality, not subset, decides.
func (r Rule) Matches(observed Key) bool {
	return r.Trigger.Sym == observed.Sym && r.Trigger.Mods == Normalize(observed.Mods)
}

// Group pairs window matches with an ordered rule table.
type Group struct {
	Matches []Match
	Rules   []Rule
}

// Policy is the ordered set of groups the dispatcher consults.
// It is read-only once built.
type Policy struct {
	Groups []Group

	// FallThrough continues with later groups when the first matching
	// group has no rule for the key. Off by default.
	FallThrough bool
}

// Triggers returns the distinct trigger keys in declaration order.
func (p *Policy) Triggers() []Key {
	seen := make(map[Key]bool)
	var keys []Key
	for _, g := range p.Groups {
		for _, r := range g.Rules {
			k := r.Trigger.Normalized()
			if seen[k] {
				continue
			}
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys
}

// Validate checks every match and action.
func (p *Policy) Validate() error {
	for gi, g := range p.Groups {
		for mi, m := range g.Matches {
			if err := m.Validate(); err != nil {
				return fmt.Errorf("group %d match %d: %w", gi+1, mi+1, err)
			}
		}
		for ri, r := range g.Rules {
			if r.Trigger.Sym == 0 {
				return fmt.Errorf("group %d rule %d: missing trigger key", gi+1, ri+1)
			}
			if r.Trigger.Mods&IgnoredModifiers != 0 {
				return fmt.Errorf("group %d rule %d: trigger %s uses lock modifiers", gi+1, ri+1, r.Trigger)
			}
			if err := r.Action.Validate(); err != nil {
				return fmt.Errorf("group %d rule %d: %w", gi+1, ri+1, err)
			}
		}
	}
	return nil
}
