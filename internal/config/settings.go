// Package config resolves remapd's runtime settings from flags and the
// environment. The remapping policy itself lives in internal/policy.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix is prepended to every environment override, e.g. REMAPD_DISPLAY.
const EnvPrefix = "REMAPD"

// Setting keys, shared with the cobra flag names.
const (
	KeyConfig   = "config"
	KeyDisplay  = "display"
	KeyLogLevel = "log-level"
	KeyLogFile  = "log-file"
	KeyDataDir  = "data-dir"
	KeyHistory  = "history"
)

// Settings holds daemon and CLI settings.
type Settings struct {
	ConfigPath string // policy file; empty means discover
	Display    string // X display; empty means $DISPLAY
	LogLevel   zap.AtomicLevel
	LogFile    string // empty means stderr
	DataDir    string // empty means the XDG state directory
	History    bool   // record RUN-COMMAND launches
}

// Load merges defaults, REMAPD_* environment variables and any flags in fs
// that were set explicitly (flags win).
func Load(fs *pflag.FlagSet) (Settings, error) {
	v := viper.New()

	v.SetDefault(KeyConfig, "")
	v.SetDefault(KeyDisplay, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyDataDir, "")
	v.SetDefault(KeyHistory, true)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return Settings{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	level, err := zap.ParseAtomicLevel(v.GetString(KeyLogLevel))
	if err != nil {
		return Settings{}, fmt.Errorf("invalid %s: %w", KeyLogLevel, err)
	}

	return Settings{
		ConfigPath: v.GetString(KeyConfig),
		Display:    v.GetString(KeyDisplay),
		LogLevel:   level,
		LogFile:    v.GetString(KeyLogFile),
		DataDir:    v.GetString(KeyDataDir),
		History:    v.GetBool(KeyHistory),
	}, nil
}

// RegisterFlags adds the persistent flags every command shares.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP(KeyConfig, "c", "", "policy file (default: ~/.remapd.yaml, then $XDG_CONFIG_HOME/remapd.yaml)")
	fs.StringP(KeyDisplay, "d", "", "X display to connect to (default: $DISPLAY)")
	fs.String(KeyLogLevel, "info", "log level (debug, info, warn, error)")
	fs.String(KeyLogFile, "", "write logs to this file instead of stderr")
	fs.String(KeyDataDir, "", "state directory for the registry and launch history")
	fs.Bool(KeyHistory, true, "record launched commands in the encrypted history")
}
