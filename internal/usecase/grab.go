package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/remapd/internal/domain"
)

// RegisterGrabs grabs every distinct trigger once per lock variant.
// Failures are logged and counted; a trigger that cannot be grabbed simply
// never reaches the dispatcher.
func (d *DispatcherImpl) RegisterGrabs(ctx context.Context) domain.GrabReport {
	triggers := d.policy.Triggers()
	report := domain.GrabReport{Triggers: len(triggers)}

	for _, k := range triggers {
		if ctx.Err() != nil {
			break
		}
		for _, lock := range domain.LockVariants {
			report.Requested++
			if err := d.display.GrabKey(k.Sym, k.Mods|lock); err != nil {
				report.Failed++
				d.logger.Warn("failed to grab key",
					zap.Stringer("key", k),
					zap.Uint16("lock_mask", uint16(lock)),
					zap.Error(err))
			}
		}
	}

	d.logger.Info("registered key grabs",
		zap.Int("triggers", report.Triggers),
		zap.Int("requested", report.Requested),
		zap.Int("failed", report.Failed))

	return report
}
