package infra

import (
	"os"
	"os/user"
	"path/filepath"
)

const (
	appName          = "remapd"
	registryFileName = "daemon.json"
	logFileName      = "remapd.log"
)

// Paths holds the per-user state locations.
type Paths struct {
	DataDir      string // registry, history database and its key
	RegistryPath string
	LogPath      string // used by `remapd start`
}

// DetectPaths returns paths under $XDG_STATE_HOME/remapd, falling back to
// ~/.local/state/remapd.
func DetectPaths() *Paths {
	if state := os.Getenv("XDG_STATE_HOME"); state != "" {
		return PathsFor(filepath.Join(state, appName))
	}
	return PathsFor(filepath.Join(GetRealUserHome(), ".local", "state", appName))
}

// PathsFor returns the layout rooted at an explicit data directory.
func PathsFor(dataDir string) *Paths {
	return &Paths{
		DataDir:      dataDir,
		RegistryPath: filepath.Join(dataDir, registryFileName),
		LogPath:      filepath.Join(dataDir, logFileName),
	}
}

// Ensure creates the data directory.
func (p *Paths) Ensure() error {
	return os.MkdirAll(p.DataDir, 0700)
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
// Under sudo, os.UserHomeDir() returns root's home, so we use SUDO_USER to find the real user.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}
