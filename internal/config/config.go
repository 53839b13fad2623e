package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	ServerURL     string `koanf:"server_url"`     // progress server, e.g. "http://localhost:8000"
	LibraryFolder string `koanf:"library_folder"` // default folder to scan for audiobooks
	LogLevel      string `koanf:"log_level"`      // zerolog level (default: "info")

	// Playback tuning
	Playback PlaybackConfig `koanf:"playback"`
}

// PlaybackConfig holds playback-related configuration.
type PlaybackConfig struct {
	AutosaveSeconds  int `koanf:"autosave_seconds"`   // progress save interval (default: 10)
	StatusIntervalMs int `koanf:"status_interval_ms"` // engine status tick (default: 500)
	SeekStepSeconds  int `koanf:"seek_step_seconds"`  // relative seek step (default: 30)
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Try config files in order of priority (last wins)
	configPaths := getConfigPaths()

	for _, path := range configPaths {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	// Normalize server URL (remove trailing slash)
	cfg.ServerURL = strings.TrimSuffix(cfg.ServerURL, "/")

	// Expand ~ in library_folder
	if cfg.LibraryFolder != "" {
		cfg.LibraryFolder = expandPath(cfg.LibraryFolder)
	}

	return cfg, nil
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. ~/.config/tome/config.toml
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "tome", "config.toml"))
	}

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// GetLogLevel returns the configured log level, defaulting to "info".
func (c *Config) GetLogLevel() string {
	if c.LogLevel == "" {
		return "info"
	}
	return c.LogLevel
}

// HasServerConfig returns true if a progress server is configured.
func (c *Config) HasServerConfig() bool {
	return c.ServerURL != ""
}

// GetPlaybackConfig returns the playback configuration with defaults applied.
func (c *Config) GetPlaybackConfig() PlaybackConfig {
	cfg := c.Playback

	// Apply defaults
	if cfg.AutosaveSeconds <= 0 {
		cfg.AutosaveSeconds = 10
	}
	if cfg.StatusIntervalMs <= 0 {
		cfg.StatusIntervalMs = 500
	}
	if cfg.SeekStepSeconds <= 0 {
		cfg.SeekStepSeconds = 30
	}

	return cfg
}
