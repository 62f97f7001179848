package infra

import (
	"os"
	"sync"

	"github.com/eliteGoblin/focusd/remapd/internal/domain"
)

// mockProcessManager is a test double for ProcessManager
type mockProcessManager struct {
	runningPIDs map[int]bool
	names       map[int]string
	terminated  []int
}

func newMockProcessManager() *mockProcessManager {
	return &mockProcessManager{
		runningPIDs: make(map[int]bool),
		names:       make(map[int]string),
	}
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	return m.runningPIDs[pid]
}

func (m *mockProcessManager) Name(pid int) (string, error) {
	return m.names[pid], nil
}

func (m *mockProcessManager) Terminate(pid int) error {
	m.terminated = append(m.terminated, pid)
	delete(m.runningPIDs, pid)
	return nil
}

func (m *mockProcessManager) GetCurrentPID() int {
	return os.Getpid()
}

func (m *mockProcessManager) SetRunning(pid int, running bool) {
	m.runningPIDs[pid] = running
}

// mockLaunchHistory is a test double for domain.LaunchHistory
type mockLaunchHistory struct {
	mu      sync.Mutex
	records []domain.LaunchRecord
	err     error
}

func (m *mockLaunchHistory) Record(rec domain.LaunchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *mockLaunchHistory) Recent(limit int) ([]domain.LaunchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.LaunchRecord, 0, len(m.records))
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

func (m *mockLaunchHistory) Close() error { return nil }

// mockRunner is a test double for domain.CommandRunner
type mockRunner struct {
	pid      int
	err      error
	commands []string
}

func (m *mockRunner) Spawn(command string) (int, error) {
	m.commands = append(m.commands, command)
	return m.pid, m.err
}

var (
	_ domain.ProcessManager = (*mockProcessManager)(nil)
	_ domain.LaunchHistory  = (*mockLaunchHistory)(nil)
	_ domain.CommandRunner  = (*mockRunner)(nil)
)
