package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultHomeEnvOverride(t *testing.T) {
	t.Setenv("MAILSTORE_HOME", "/tmp/mailstore-test")
	if got := DefaultHome(); got != "/tmp/mailstore-test" {
		t.Errorf("DefaultHome() = %q, want env override", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("MAILSTORE_HOME", home)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HomeDir != home {
		t.Errorf("HomeDir = %q, want %q", cfg.HomeDir, home)
	}
	if cfg.Data.DataDir != home {
		t.Errorf("DataDir = %q, want %q", cfg.Data.DataDir, home)
	}
	if cfg.Search.DefaultLimit != 100 {
		t.Errorf("DefaultLimit = %d, want 100", cfg.Search.DefaultLimit)
	}
	if !cfg.Maintenance.Enabled || cfg.Maintenance.Schedule == "" {
		t.Errorf("maintenance defaults = %+v, want enabled with a schedule", cfg.Maintenance)
	}
	if got := cfg.DatabasePath(); got != filepath.Join(home, "mailstore.db") {
		t.Errorf("DatabasePath() = %q", got)
	}
	if got := cfg.AttachmentsDir(); got != filepath.Join(home, "attachments") {
		t.Errorf("AttachmentsDir() = %q", got)
	}
}

func TestLoadFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("MAILSTORE_HOME", home)

	content := `
[data]
data_dir = "/var/lib/mailstore"

[search]
default_limit = 25

[maintenance]
schedule = "30 4 * * 0"
enabled = false
`
	path := filepath.Join(home, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Data.DataDir != "/var/lib/mailstore" {
		t.Errorf("DataDir = %q", cfg.Data.DataDir)
	}
	if cfg.Search.DefaultLimit != 25 {
		t.Errorf("DefaultLimit = %d, want 25", cfg.Search.DefaultLimit)
	}
	if cfg.Maintenance.Enabled {
		t.Error("maintenance should be disabled")
	}
	if cfg.Maintenance.Schedule != "30 4 * * 0" {
		t.Errorf("Schedule = %q", cfg.Maintenance.Schedule)
	}
}

func TestLoadBadFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("MAILSTORE_HOME", home)

	path := filepath.Join(home, "config.toml")
	if err := os.WriteFile(path, []byte("not [valid toml"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(""); err == nil {
		t.Fatal("expected error for malformed config")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandPath("~/data"); got != filepath.Join(home, "data") {
		t.Errorf("expandPath(~/data) = %q", got)
	}
	if got := expandPath("/abs/path"); got != "/abs/path" {
		t.Errorf("expandPath(/abs/path) = %q", got)
	}
	if got := expandPath(""); got != "" {
		t.Errorf("expandPath(empty) = %q", got)
	}
}
