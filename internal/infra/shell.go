package infra

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/remapd/internal/domain"
)

const defaultShell = "/bin/sh"

// ShellRunner implements domain.CommandRunner by running `$SHELL -c command`
// in its own session. The child inherits stdio; the runner never waits on it
// from the caller's goroutine.
type ShellRunner struct {
	shell  string
	logger *zap.Logger
}

// NewShellRunner uses $SHELL, or /bin/sh when unset.
func NewShellRunner(logger *zap.Logger) *ShellRunner {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = defaultShell
	}
	return NewShellRunnerWith(shell, logger)
}

// NewShellRunnerWith uses an explicit shell binary.
func NewShellRunnerWith(shell string, logger *zap.Logger) *ShellRunner {
	return &ShellRunner{shell: shell, logger: logger}
}

// Spawn starts command and returns immediately. A background goroutine reaps
// the child so it never lingers as a zombie.
func (r *ShellRunner) Spawn(command string) (int, error) {
	cmd := exec.Command(r.shell, "-c", command)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start %q: %w", command, err)
	}

	pid := cmd.Process.Pid
	go func() {
		err := cmd.Wait()
		r.logger.Debug("command exited",
			zap.Int("pid", pid),
			zap.String("command", command),
			zap.Error(err))
	}()

	return pid, nil
}

// RecordingRunner wraps a CommandRunner and stores every successful launch
// in the history. History failures never fail the launch.
type RecordingRunner struct {
	next      domain.CommandRunner
	history   domain.LaunchHistory
	sessionID string
	logger    *zap.Logger
	now       func() time.Time
}

// NewRecordingRunner creates a RecordingRunner for one daemon session.
func NewRecordingRunner(next domain.CommandRunner, history domain.LaunchHistory, sessionID string, logger *zap.Logger) *RecordingRunner {
	return &RecordingRunner{
		next:      next,
		history:   history,
		sessionID: sessionID,
		logger:    logger,
		now:       time.Now,
	}
}

// Spawn delegates to the wrapped runner, then records the launch.
func (r *RecordingRunner) Spawn(command string) (int, error) {
	pid, err := r.next.Spawn(command)
	if err != nil {
		return pid, err
	}

	rec := domain.LaunchRecord{
		SessionID:  r.sessionID,
		Command:    command,
		PID:        pid,
		LaunchedAt: r.now(),
	}
	if err := r.history.Record(rec); err != nil {
		r.logger.Warn("failed to record launch",
			zap.String("command", command),
			zap.Error(err))
	}
	return pid, nil
}

var (
	_ domain.CommandRunner = (*ShellRunner)(nil)
	_ domain.CommandRunner = (*RecordingRunner)(nil)
)
