package config

import (
	"os"
	"path/filepath"
	"sync"
)

const envHome = "KMSG_HOME"

var (
	homeOnce sync.Once
	homeDir  string
)

// GetHome returns the kmsg home directory.
//
// Resolution order:
//  1. $KMSG_HOME environment variable
//  2. ~/.kmsg
//  3. Current working directory (development fallback)
func GetHome() string {
	homeOnce.Do(func() {
		homeDir = resolveHome()
	})
	return homeDir
}

func resolveHome() string {
	// 1. Environment variable
	if env := os.Getenv(envHome); env != "" {
		return env
	}

	// 2. Per-user dot directory
	if userHome, err := os.UserHomeDir(); err == nil {
		return filepath.Join(userHome, ".kmsg")
	}

	// 3. Current working directory
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}

	return "."
}

// ResetHome resets the cached home directory (for testing).
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}
