// Package config loads the attendance engine's policy, feed and roster
// configuration and resolves its on-disk paths.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

const appName = "attend"

// ExpandPath expands a leading ~ and $VAR references in a path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}

	return os.ExpandEnv(path)
}

// DefaultDatabasePath is attend.db under $XDG_DATA_HOME, or
// ~/.local/share when that is unset.
func DefaultDatabasePath() string {
	return filepath.Join(xdgDir("XDG_DATA_HOME", ".local/share"), appName, appName+".db")
}

// DefaultConfigDir is attend under $XDG_CONFIG_HOME, or ~/.config.
func DefaultConfigDir() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), appName)
}

func xdgDir(env, fallback string) string {
	if dir := os.Getenv(env); dir != "" && filepath.IsAbs(dir) {
		return dir
	}
	return ExpandPath("~/" + fallback)
}
