// Package config handles loading and managing mailstore configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the mailstore configuration, loaded from config.toml in the
// home directory. Every field has a usable default; the file is optional.
type Config struct {
	Data        DataConfig        `toml:"data"`
	Search      SearchConfig      `toml:"search"`
	Maintenance MaintenanceConfig `toml:"maintenance"`

	// Computed, not from the config file.
	HomeDir string `toml:"-"`
}

// DataConfig holds storage configuration.
type DataConfig struct {
	DataDir string `toml:"data_dir"`
}

// SearchConfig holds query defaults.
type SearchConfig struct {
	DefaultLimit int `toml:"default_limit"`
}

// MaintenanceConfig controls the background maintenance job.
type MaintenanceConfig struct {
	// Schedule is a 5-field cron expression; maintenance runs VACUUM and
	// index optimization outside interactive use.
	Schedule string `toml:"schedule"`
	Enabled  bool   `toml:"enabled"`
}

// DefaultHome returns the default mailstore home directory. Respects the
// MAILSTORE_HOME environment variable.
func DefaultHome() string {
	if h := os.Getenv("MAILSTORE_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mailstore"
	}
	return filepath.Join(home, ".mailstore")
}

// Load reads the configuration from the given file. An empty path means
// the default location (~/.mailstore/config.toml); a missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	homeDir := DefaultHome()

	if path == "" {
		path = filepath.Join(homeDir, "config.toml")
	}

	cfg := &Config{
		HomeDir: homeDir,
		Data: DataConfig{
			DataDir: homeDir,
		},
		Search: SearchConfig{
			DefaultLimit: 100,
		},
		Maintenance: MaintenanceConfig{
			Schedule: "0 3 * * *",
			Enabled:  true,
		},
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Data.DataDir = expandPath(cfg.Data.DataDir)
	return cfg, nil
}

// DatabasePath returns the path to the SQLite database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Data.DataDir, "mailstore.db")
}

// AttachmentsDir returns the directory attachment payloads are saved to.
func (c *Config) AttachmentsDir() string {
	return filepath.Join(c.Data.DataDir, "attachments")
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
