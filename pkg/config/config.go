// Package config handles configuration for kmsg.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the user configuration (config.yaml).
type Config struct {
	// Cache settings
	CachePath    string `yaml:"cachePath"`    // Path cache file; defaults to <home>/axpaths.json
	CacheTTLDays int    `yaml:"cacheTTLDays"` // Entry lifetime in days; 0 means the built-in default

	// Logging
	LogPath string `yaml:"logPath"` // Log file; defaults to <home>/kmsg.log
	TraceAX bool   `yaml:"traceAX"` // Emit per-stage resolution traces

	// Behavior
	DeepRecovery bool `yaml:"deepRecovery"` // Permit relaunch/force-open escalation
	KeepWindow   bool `yaml:"keepWindow"`   // Leave engine-opened windows on screen
	ReadLimit    int  `yaml:"readLimit"`    // Default message count for reads

	// Timing overrides, in milliseconds. Zero keeps the built-in value.
	PollIntervalMS int `yaml:"pollIntervalMs"`
	OpenTimeoutMS  int `yaml:"openTimeoutMs"`
	SendTimeoutMS  int `yaml:"sendTimeoutMs"`
}

// CacheTTL converts the configured TTL to a duration; zero when unset.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLDays) * 24 * time.Hour
}

// ResolvedCachePath returns the cache file path, defaulted to the home
// directory.
func (c *Config) ResolvedCachePath() string {
	if c.CachePath != "" {
		return c.CachePath
	}
	return filepath.Join(GetHome(), "axpaths.json")
}

// ResolvedLogPath returns the log file path, defaulted to the home
// directory.
func (c *Config) ResolvedLogPath() string {
	if c.LogPath != "" {
		return c.LogPath
	}
	return filepath.Join(GetHome(), "kmsg.log")
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	// Try config.yaml first
	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// Try config.yml
	configPath = filepath.Join(dir, "config.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, return empty config
	return &Config{}, nil
}
