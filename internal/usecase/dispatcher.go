// Package usecase contains application business logic.
package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/remapd/internal/domain"
)

// DispatcherImpl implements domain.Dispatcher.
// It walks the policy for every key event and executes exactly one outcome.
type DispatcherImpl struct {
	display domain.Display
	runner  domain.CommandRunner
	policy  *domain.Policy
	logger  *zap.Logger
}

// NewDispatcher creates a dispatcher over an already validated policy.
func NewDispatcher(
	display domain.Display,
	runner domain.CommandRunner,
	policy *domain.Policy,
	logger *zap.Logger,
) domain.Dispatcher {
	return &DispatcherImpl{
		display: display,
		runner:  runner,
		policy:  policy,
		logger:  logger,
	}
}

// Dispatch processes one event: first matching group, first matching rule.
func (d *DispatcherImpl) Dispatch(ctx context.Context, ev domain.KeyEvent) (domain.Outcome, error) {
	observed := domain.Key{
		Sym:  d.display.KeysymOf(ev.Code),
		Mods: domain.Normalize(ev.State),
	}

	focused, err := d.display.FocusedWindow()
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("failed to query focused window: %w", err)
	}

	outcome := domain.Outcome{
		Kind:     domain.OutcomePassThrough,
		Observed: observed,
		Focused:  focused,
		Group:    -1,
		Rule:     -1,
	}

	for gi := range d.policy.Groups {
		g := &d.policy.Groups[gi]
		if !d.groupMatches(g, focused) {
			continue
		}

		for ri, r := range g.Rules {
			if !r.Matches(observed) {
				continue
			}
			outcome.Group = gi
			outcome.Rule = ri
			outcome.Kind = d.execute(r.Action, focused, ev)
			d.logOutcome(outcome, ev)
			return outcome, nil
		}

		if !d.policy.FallThrough {
			outcome.Group = gi
			break
		}
	}

	d.send(focused, observed, ev)
	d.logOutcome(outcome, ev)
	return outcome, nil
}

// groupMatches reports whether any of the group's matches accepts w.
func (d *DispatcherImpl) groupMatches(g *domain.Group, w domain.Window) bool {
	for _, m := range g.Matches {
		if d.matchWindow(m, w) {
			return true
		}
	}
	return false
}

func (d *DispatcherImpl) matchWindow(m domain.Match, w domain.Window) bool {
	switch m.Kind {
	case domain.MatchAny:
		return true

	case domain.MatchClass:
		class, ok := d.display.WindowClass(w)
		if !ok {
			d.logger.Debug("window class unavailable",
				zap.Uint32("window", uint32(w)))
			return false
		}
		return class == m.Class

	default:
		panic(fmt.Sprintf("usecase: invalid match kind %d", int(m.Kind)))
	}
}

// execute runs a fired rule's action.
func (d *DispatcherImpl) execute(a domain.Action, focused domain.Window, ev domain.KeyEvent) domain.OutcomeKind {
	switch a.Kind {
	case domain.ActionForwardKey:
		d.send(focused, a.Key, ev)
		return domain.OutcomeForwarded

	case domain.ActionPlaceholder:
		if !a.Directive.Implemented() {
			d.logger.Warn("directive not implemented",
				zap.Stringer("directive", a.Directive))
		}
		return domain.OutcomeDirective

	case domain.ActionRunCommand:
		// Commands fire on press only.
		if ev.Type == domain.KeyRelease {
			return domain.OutcomeCommandSkipped
		}
		pid, err := d.runner.Spawn(a.Command)
		if err != nil {
			d.logger.Error("failed to spawn command",
				zap.String("command", a.Command),
				zap.Error(err))
		} else {
			d.logger.Info("spawned command",
				zap.String("command", a.Command),
				zap.Int("pid", pid))
		}
		return domain.OutcomeCommand

	default:
		panic(fmt.Sprintf("usecase: invalid action kind %d", int(a.Kind)))
	}
}

// send injects key into the focused window. A rejected send (the window may
// have vanished) is logged and does not fail the event.
func (d *DispatcherImpl) send(focused domain.Window, key domain.Key, ev domain.KeyEvent) {
	if err := d.display.SendKey(focused, key, ev); err != nil {
		d.logger.Warn("failed to send key",
			zap.Stringer("key", key),
			zap.Uint32("window", uint32(focused)),
			zap.Error(err))
	}
}

func (d *DispatcherImpl) logOutcome(o domain.Outcome, ev domain.KeyEvent) {
	if ce := d.logger.Check(zap.DebugLevel, "dispatched key event"); ce != nil {
		ce.Write(
			zap.Stringer("type", ev.Type),
			zap.Stringer("key", o.Observed),
			zap.Uint32("window", uint32(o.Focused)),
			zap.Stringer("outcome", o.Kind),
			zap.Int("group", o.Group),
			zap.Int("rule", o.Rule))
	}
}

// Ensure DispatcherImpl implements domain.Dispatcher.
var _ domain.Dispatcher = (*DispatcherImpl)(nil)
