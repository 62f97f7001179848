package daemon

import (
	"fmt"
	"time"

	"github.com/eliteGoblin/focusd/remapd/internal/domain"
)

// Status describes the registered daemon as seen from a CLI process.
type Status struct {
	Entry *domain.RegistryEntry
	Alive bool
}

// GetStatus reads the registry and checks the PID.
func GetStatus(registry domain.DaemonRegistry, pm domain.ProcessManager) (*Status, error) {
	entry, err := registry.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}
	if entry == nil {
		return &Status{}, nil
	}
	return &Status{Entry: entry, Alive: pm.IsRunning(entry.PID)}, nil
}

// Stop terminates the registered daemon and waits up to timeout for it to
// exit. A stale entry is cleared and reported as domain.ErrNotRunning.
// expectedName, when set, guards against signaling a reused PID: a PID
// whose name cannot be read is treated like a stale entry.
func Stop(registry domain.DaemonRegistry, pm domain.ProcessManager, expectedName string, timeout time.Duration) (int, error) {
	status, err := GetStatus(registry, pm)
	if err != nil {
		return 0, err
	}
	if status.Entry == nil {
		return 0, domain.ErrNotRunning
	}

	pid := status.Entry.PID
	if !status.Alive {
		_ = registry.Clear()
		return pid, domain.ErrNotRunning
	}

	if expectedName != "" {
		name, err := pm.Name(pid)
		if err != nil {
			_ = registry.Clear()
			return pid, fmt.Errorf("%w: cannot identify pid %d: %v", domain.ErrNotRunning, pid, err)
		}
		if name != expectedName {
			_ = registry.Clear()
			return pid, fmt.Errorf("%w: pid %d now belongs to %q", domain.ErrNotRunning, pid, name)
		}
	}

	if err := pm.Terminate(pid); err != nil {
		return pid, fmt.Errorf("failed to terminate pid %d: %w", pid, err)
	}

	deadline := time.Now().Add(timeout)
	for pm.IsRunning(pid) {
		if time.Now().After(deadline) {
			return pid, fmt.Errorf("pid %d did not exit within %s", pid, timeout)
		}
		time.Sleep(50 * time.Millisecond)
	}

	// The daemon clears its own entry on a clean exit.
	_ = registry.Clear()
	return pid, nil
}
