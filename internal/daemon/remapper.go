// Package daemon implements the long-running remapper and its process control.
package daemon

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/remapd/internal/domain"
)

// Stats counts dispatch outcomes over the life of a Remapper.
type Stats struct {
	Events    int
	ByOutcome map[domain.OutcomeKind]int
}

// Remapper owns the event loop: it registers grabs once, then dispatches
// every key event until the context is canceled or the display fails.
type Remapper struct {
	display    domain.Display
	dispatcher domain.Dispatcher
	registry   domain.DaemonRegistry
	logger     *zap.Logger
	daemon     domain.Daemon
	stats      Stats
}

// NewRemapper creates a remapper. registry may be nil.
func NewRemapper(
	display domain.Display,
	dispatcher domain.Dispatcher,
	registry domain.DaemonRegistry,
	daemon domain.Daemon,
	logger *zap.Logger,
) *Remapper {
	return &Remapper{
		display:    display,
		dispatcher: dispatcher,
		registry:   registry,
		daemon:     daemon,
		logger:     logger,
		stats:      Stats{ByOutcome: make(map[domain.OutcomeKind]int)},
	}
}

// Run blocks until ctx is canceled (returns ctx.Err()) or the event loop
// hits a fatal error. The display is closed on return.
func (r *Remapper) Run(ctx context.Context) error {
	r.register()
	defer r.unregister()

	report := r.dispatcher.RegisterGrabs(ctx)
	if report.Requested > 0 && report.Failed == report.Requested {
		r.logger.Warn("no key grab succeeded; only focused-window events will be seen",
			zap.Int("requested", report.Requested))
	}

	// Closing the display is the only way to unblock NextEvent.
	done := make(chan struct{})
	defer r.display.Close()
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			r.display.Close()
		case <-done:
		}
	}()

	r.logger.Info("remapper started",
		zap.Int("pid", r.daemon.PID),
		zap.String("session", r.daemon.SessionID),
		zap.Int("triggers", report.Triggers))

	err := r.loop(ctx)

	r.logger.Info("remapper stopped",
		zap.Int("events", r.stats.Events),
		zap.Int("forwarded", r.stats.ByOutcome[domain.OutcomeForwarded]),
		zap.Int("commands", r.stats.ByOutcome[domain.OutcomeCommand]),
		zap.Int("passed_through", r.stats.ByOutcome[domain.OutcomePassThrough]))

	return err
}

func (r *Remapper) loop(ctx context.Context) error {
	for {
		ev, err := r.display.NextEvent()
		if err != nil {
			if errors.Is(err, domain.ErrDisplayClosed) && ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("event loop: %w", err)
		}

		outcome, err := r.dispatcher.Dispatch(ctx, ev)
		if err != nil {
			return fmt.Errorf("event loop: %w", err)
		}
		r.stats.Events++
		r.stats.ByOutcome[outcome.Kind]++
	}
}

// Stats returns the outcome counters. Only meaningful after Run returns.
func (r *Remapper) Stats() Stats {
	return r.stats
}

func (r *Remapper) register() {
	if r.registry == nil {
		return
	}
	if err := r.registry.Register(r.daemon); err != nil {
		r.logger.Warn("failed to register daemon; status and stop will not find it",
			zap.String("registry", r.registry.GetRegistryPath()),
			zap.Error(err))
	}
}

// unregister clears the registry only if it still names this process.
func (r *Remapper) unregister() {
	if r.registry == nil {
		return
	}
	entry, err := r.registry.Get()
	if err != nil || entry == nil || entry.PID != r.daemon.PID {
		return
	}
	if err := r.registry.Clear(); err != nil {
		r.logger.Warn("failed to clear registry", zap.Error(err))
	}
}
