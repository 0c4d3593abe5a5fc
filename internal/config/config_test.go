package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `workspace:
  root: "/tmp/workspace"

editor:
  max_file_size_mb: 5

history:
  dir: "/tmp/history"
  max_per_file: 7
  cache_size_limit_mb: 20

encoding:
  max_cache_entries: 250

linter:
  enabled: true
  command:
    - "flake8"
    - "--isolated"

log:
  file: "/tmp/editor.log"
  level: "debug"
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Workspace.Root != "/tmp/workspace" {
		t.Errorf("Workspace.Root = %q, want %q", cfg.Workspace.Root, "/tmp/workspace")
	}
	if cfg.Editor.MaxFileSizeMB != 5 {
		t.Errorf("Editor.MaxFileSizeMB = %d, want 5", cfg.Editor.MaxFileSizeMB)
	}
	if cfg.History.Dir != "/tmp/history" {
		t.Errorf("History.Dir = %q, want %q", cfg.History.Dir, "/tmp/history")
	}
	if cfg.History.MaxPerFile != 7 {
		t.Errorf("History.MaxPerFile = %d, want 7", cfg.History.MaxPerFile)
	}
	if cfg.History.CacheSizeLimitMB != 20 {
		t.Errorf("History.CacheSizeLimitMB = %d, want 20", cfg.History.CacheSizeLimitMB)
	}
	if cfg.Encoding.MaxCacheEntries != 250 {
		t.Errorf("Encoding.MaxCacheEntries = %d, want 250", cfg.Encoding.MaxCacheEntries)
	}
	if !cfg.Linter.Enabled {
		t.Error("Linter.Enabled = false, want true")
	}
	if len(cfg.Linter.Command) != 2 || cfg.Linter.Command[0] != "flake8" {
		t.Errorf("Linter.Command = %v", cfg.Linter.Command)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
}

func TestLoadDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "minimal.yaml")

	if err := os.WriteFile(configPath, []byte("workspace:\n  root: \"/tmp/ws\"\n"), 0644); err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Editor.MaxFileSizeMB != 10 {
		t.Errorf("Editor.MaxFileSizeMB = %d, want 10", cfg.Editor.MaxFileSizeMB)
	}
	if cfg.History.MaxPerFile != 10 {
		t.Errorf("History.MaxPerFile = %d, want 10", cfg.History.MaxPerFile)
	}
	if cfg.History.CacheSizeLimitMB != 50 {
		t.Errorf("History.CacheSizeLimitMB = %d, want 50", cfg.History.CacheSizeLimitMB)
	}
	if cfg.Encoding.MaxCacheEntries != 1000 {
		t.Errorf("Encoding.MaxCacheEntries = %d, want 1000", cfg.Encoding.MaxCacheEntries)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if cfg.Linter.Enabled {
		t.Error("Linter.Enabled = true, want false")
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.Editor.MaxFileSizeMB != 10 {
		t.Errorf("Editor.MaxFileSizeMB = %d, want 10", cfg.Editor.MaxFileSizeMB)
	}
}

func TestLoadRelativePaths(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "rel.yaml")

	configContent := "workspace:\n  root: \"ws\"\nhistory:\n  dir: \"hist\"\n"
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !filepath.IsAbs(cfg.Workspace.Root) {
		t.Errorf("Workspace.Root = %q, want absolute", cfg.Workspace.Root)
	}
	if !filepath.IsAbs(cfg.History.Dir) {
		t.Errorf("History.Dir = %q, want absolute", cfg.History.Dir)
	}
}

func TestLoadInvalidPath(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() with invalid path should return error")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	// Create a temporary invalid YAML file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidContent := `workspace:
  root: "/tmp/ws"
  invalid yaml content [[[
`

	if err := os.WriteFile(configPath, []byte(invalidContent), 0644); err != nil {
		t.Fatalf("Failed to create invalid config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() with invalid YAML should return error")
	}
}
