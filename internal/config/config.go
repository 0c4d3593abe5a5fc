package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Workspace struct {
		Root string `yaml:"root"`
	} `yaml:"workspace"`

	Editor struct {
		MaxFileSizeMB int `yaml:"max_file_size_mb"`
	} `yaml:"editor"`

	History struct {
		Dir              string `yaml:"dir"`                 // empty = fresh directory under the system temp dir
		MaxPerFile       int    `yaml:"max_per_file"`        // undo snapshots kept per file
		CacheSizeLimitMB int    `yaml:"cache_size_limit_mb"` // soft ceiling for the snapshot store
	} `yaml:"history"`

	Encoding struct {
		MaxCacheEntries int `yaml:"max_cache_entries"`
	} `yaml:"encoding"`

	Linter struct {
		Enabled bool     `yaml:"enabled"`
		Command []string `yaml:"command"` // external linter invocation, file path is appended
	} `yaml:"linter"`

	Log struct {
		File  string `yaml:"file"`
		Level string `yaml:"level"` // "debug", "info", "warn", "error"
	} `yaml:"log"`
}

// Default returns a Config with all defaults applied and no file loaded
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML config file and fills in defaults for anything unset.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Convert workspace root to absolute path
	if cfg.Workspace.Root != "" {
		absRoot, err := filepath.Abs(cfg.Workspace.Root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
		}
		cfg.Workspace.Root = absRoot
	}
	if cfg.History.Dir != "" {
		absDir, err := filepath.Abs(cfg.History.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve history dir: %w", err)
		}
		cfg.History.Dir = absDir
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Editor.MaxFileSizeMB == 0 {
		cfg.Editor.MaxFileSizeMB = 10
	}
	if cfg.History.MaxPerFile == 0 {
		cfg.History.MaxPerFile = 10
	}
	if cfg.History.CacheSizeLimitMB == 0 {
		cfg.History.CacheSizeLimitMB = 50
	}
	if cfg.Encoding.MaxCacheEntries == 0 {
		cfg.Encoding.MaxCacheEntries = 1000
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}
