package policy

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	homeConfigName = ".remapd.yaml"
	xdgConfigName  = "remapd.yaml"
)

// Candidates returns the policy file locations in lookup order:
// $HOME/.remapd.yaml, then $XDG_CONFIG_HOME/remapd.yaml
// ($XDG_CONFIG_HOME defaults to $HOME/.config).
func Candidates(home, xdgConfigHome string) []string {
	var paths []string
	if home != "" {
		paths = append(paths, filepath.Join(home, homeConfigName))
	}
	if xdgConfigHome == "" && home != "" {
		xdgConfigHome = filepath.Join(home, ".config")
	}
	if xdgConfigHome != "" {
		paths = append(paths, filepath.Join(xdgConfigHome, xdgConfigName))
	}
	return paths
}

// Find returns the first readable policy file from Candidates.
func Find(home, xdgConfigHome string) (string, error) {
	candidates := Candidates(home, xdgConfigHome)
	if len(candidates) == 0 {
		return "", fmt.Errorf("can't find a policy file: neither HOME nor XDG_CONFIG_HOME is set")
	}
	for _, path := range candidates {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		f.Close()
		return path, nil
	}
	return "", fmt.Errorf("can't find a policy file (looked in %v)", candidates)
}

// FindFromEnv is Find using the process environment.
func FindFromEnv() (string, error) {
	return Find(os.Getenv("HOME"), os.Getenv("XDG_CONFIG_HOME"))
}
