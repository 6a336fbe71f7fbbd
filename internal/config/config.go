package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/neboloop/switchyard/internal/defaults"
)

// Config holds the switchyard configuration loaded from <data_dir>/config.yaml.
type Config struct {
	DataDir string `yaml:"-"`

	// Executable overrides per target name (empty = auto-detect)
	LaunchPaths map[string]string `yaml:"launch_paths"`

	StopTimeout  time.Duration `yaml:"stop_timeout"`  // Graceful stop wait
	ForceTimeout time.Duration `yaml:"force_timeout"` // Wait after forced kill

	Workers int `yaml:"workers"` // Concurrent switch operations

	DefaultTarget string `yaml:"default_target"`
	LogLevel      string `yaml:"log_level"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		LaunchPaths:   map[string]string{},
		StopTimeout:   10 * time.Second,
		ForceTimeout:  3 * time.Second,
		Workers:       4,
		DefaultTarget: "vscode",
		LogLevel:      "info",
	}
}

// Load reads config.yaml from the data directory, falling back to defaults
// when the file does not exist.
func Load(dataDir string) (*Config, error) {
	path := filepath.Join(dataDir, "config.yaml")
	cfg, err := LoadFrom(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg = DefaultConfig()
			cfg.DataDir = dataDir
			return cfg, nil
		}
		return nil, err
	}
	cfg.DataDir = dataDir
	return cfg, nil
}

// LoadFrom loads config from a specific path. Environment variables in the
// file are expanded before parsing.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.DataDir = filepath.Dir(path)
	return cfg, nil
}

// Parse decodes YAML bytes on top of DefaultConfig.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}
	if cfg.LaunchPaths == nil {
		cfg.LaunchPaths = map[string]string{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 10 * time.Second
	}
	if cfg.ForceTimeout <= 0 {
		cfg.ForceTimeout = 3 * time.Second
	}
	return cfg, nil
}

// LaunchPath returns the configured executable for a target with ~ expanded,
// or "" when none is configured.
func (c *Config) LaunchPath(target string) string {
	p := c.LaunchPaths[target]
	if p == "" {
		return ""
	}
	expanded, err := homedir.Expand(p)
	if err != nil {
		return p
	}
	return expanded
}

// LoadDefault ensures the data directory exists and loads its config.
func LoadDefault() (*Config, error) {
	dir, err := defaults.EnsureDataDir()
	if err != nil {
		return nil, err
	}
	return Load(dir)
}
