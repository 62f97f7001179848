// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"errors"
	"time"
)

// Keysym is an X keysym: a layout-independent symbolic key identifier.
type Keysym uint32

// Keycode is a raw hardware key code as reported by the X server.
type Keycode uint8

// Window is an X window id.
type Window uint32

// NoWindow is the X "None" window.
const NoWindow Window = 0

// EventType distinguishes key presses from releases.
type EventType int

const (
	KeyPress EventType = iota
	KeyRelease
)

func (t EventType) String() string {
	switch t {
	case KeyPress:
		return "press"
	case KeyRelease:
		return "release"
	default:
		return "unknown"
	}
}

// KeyEvent is a raw key event as delivered by the windowing system.
// All fields except Code and State are copied verbatim into synthesized events.
type KeyEvent struct {
	Type       EventType
	Code       Keycode
	State      Modifier // raw modifier state, may include lock bits
	Time       uint32
	Root       Window
	Event      Window
	Child      Window
	RootX      int16
	RootY      int16
	EventX     int16
	EventY     int16
	SameScreen bool
}

// Sentinel errors shared by the collaborators.
var (
	// ErrDisplayClosed is returned by Display.NextEvent once the connection is gone.
	ErrDisplayClosed = errors.New("display connection closed")

	// ErrNoKeycode means a keysym is not reachable from the current keyboard mapping.
	ErrNoKeycode = errors.New("keysym has no keycode in the current keyboard mapping")

	// ErrNotRunning means no live daemon is registered.
	ErrNotRunning = errors.New("remapd is not running")
)

// Daemon describes a running remapd event loop.
type Daemon struct {
	PID        int
	SessionID  string
	Display    string
	ConfigPath string
	StartedAt  time.Time
	AppVersion string
}

// RegistryEntry is the persisted form of Daemon.
// Stored as a JSON file so that status/stop can find the running daemon.
type RegistryEntry struct {
	Version    int    `json:"version"`
	PID        int    `json:"pid"`
	SessionID  string `json:"session_id"`
	Display    string `json:"display,omitempty"`
	ConfigPath string `json:"config_path,omitempty"`
	StartedAt  int64  `json:"started_at"`
	AppVersion string `json:"app_version,omitempty"`
}

// LaunchRecord captures one RUN-COMMAND spawn.
type LaunchRecord struct {
	SessionID  string
	Command    string
	PID        int
	LaunchedAt time.Time
}
