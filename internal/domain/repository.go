package domain

import "context"

// Display is the windowing-system collaborator.
// Implementation: X11 over github.com/jezek/xgb.
type Display interface {
	// FocusedWindow returns the window holding input focus right now.
	FocusedWindow() (Window, error)

	// WindowClass returns the class part of WM_CLASS.
	// ok is false when the window has no readable class.
	WindowClass(w Window) (class string, ok bool)

	// KeysymOf translates a keycode to its unshifted keysym (group 0, level 0).
	KeysymOf(code Keycode) Keysym

	// KeycodeOf is the inverse of KeysymOf.
	KeycodeOf(sym Keysym) (Keycode, bool)

	// GrabKey asks for exclusive delivery of sym with exactly mods held,
	// on the root window.
	GrabKey(sym Keysym, mods Modifier) error

	// SendKey injects key into target, copying the non-key fields of template.
	SendKey(target Window, key Key, template KeyEvent) error

	// NextEvent blocks until the next key event arrives.
	// Returns ErrDisplayClosed once Close has been called.
	NextEvent() (KeyEvent, error)

	// Close releases the connection and unblocks NextEvent.
	Close() error
}

// CommandRunner launches shell commands without waiting for them.
type CommandRunner interface {
	// Spawn starts command and returns the child PID.
	Spawn(command string) (pid int, err error)
}

// Dispatcher decides the outcome of every key event.
type Dispatcher interface {
	// RegisterGrabs grabs every trigger of the policy (startup only).
	RegisterGrabs(ctx context.Context) GrabReport

	// Dispatch processes one event to completion.
	Dispatch(ctx context.Context, ev KeyEvent) (Outcome, error)
}

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// Name returns the executable name of a running process.
	Name(pid int) (string, error)

	// Terminate asks a process to exit (SIGTERM).
	Terminate(pid int) error

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// DaemonRegistry records the running daemon so that CLI commands can find it.
// Implementation: JSON file in the data directory.
type DaemonRegistry interface {
	// Register saves the daemon's PID and session.
	Register(daemon Daemon) error

	// Get returns the registered daemon, or nil when none is registered.
	Get() (*RegistryEntry, error)

	// IsAlive reports whether the registered daemon is still running.
	IsAlive() (bool, error)

	// Clear removes the registration.
	Clear() error

	// GetRegistryPath returns the registry file path (for tests).
	GetRegistryPath() string
}

// LaunchHistory stores RUN-COMMAND launches.
// Implementation: SQLCipher encrypted SQLite database.
type LaunchHistory interface {
	// Record appends a launch.
	Record(rec LaunchRecord) error

	// Recent returns up to limit launches, newest first.
	Recent(limit int) ([]LaunchRecord, error)

	// Close releases resources (e.g., database connection).
	Close() error
}

// KeyProvider abstracts the source of encryption keys.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}
