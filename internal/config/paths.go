package config

import (
	"os"
	"path/filepath"
	"strings"
)

// AppName names the configuration and state directories.
const AppName = "pcli2-rig"

// Version is reported to MCP servers and by --version.
var Version = "0.1.0"

// ConfigDir returns $XDG_CONFIG_HOME/pcli2-rig, defaulting to ~/.config/pcli2-rig.
func ConfigDir() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), AppName)
}

// StateDir returns $XDG_STATE_HOME/pcli2-rig, defaulting to ~/.local/state/pcli2-rig.
func StateDir() string {
	return filepath.Join(xdgDir("XDG_STATE_HOME", filepath.Join(".local", "state")), AppName)
}

// DefaultPath is the config file used when no explicit path is given.
// PCLI2_RIG_CONFIG overrides it.
func DefaultPath() string {
	if path := strings.TrimSpace(os.Getenv("PCLI2_RIG_CONFIG")); path != "" {
		return path
	}
	return filepath.Join(ConfigDir(), "config.toml")
}

func xdgDir(env, fallback string) string {
	if dir := strings.TrimSpace(os.Getenv(env)); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(os.TempDir(), fallback)
	}
	return filepath.Join(home, fallback)
}
