// Package defaults provides the switchyard data directory and its embedded
// default files. Defaults are copied on first run or when reset is requested.
//
// Platform paths:
//
//	macOS:   ~/Library/Application Support/Switchyard/
//	Windows: %AppData%\Switchyard\
//	Linux:   ~/.config/switchyard/
//
// Override with SWITCHYARD_DATA_DIR environment variable.
package defaults

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

//go:embed dotswitchyard/*
var defaultFiles embed.FS

// DataDir returns the platform-appropriate data directory.
// Set SWITCHYARD_DATA_DIR to override.
func DataDir() (string, error) {
	if dir := os.Getenv("SWITCHYARD_DATA_DIR"); dir != "" {
		return dir, nil
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}

	// Linux: lowercase per XDG convention
	// macOS/Windows: title case per platform convention
	if runtime.GOOS == "linux" {
		return filepath.Join(configDir, "switchyard"), nil
	}
	return filepath.Join(configDir, "Switchyard"), nil
}

// EnsureDataDir creates the data directory if it doesn't exist
// and copies default files if they're missing.
func EnsureDataDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	if err := copyDefaults(dir, false); err != nil {
		return "", err
	}

	return dir, nil
}

// Reset replaces config files with defaults. Instance and account files are preserved.
func Reset(dir string) error {
	return copyDefaults(dir, true)
}

// InstancesDir is where per-target instance files live.
func InstancesDir(dataDir string) string {
	return filepath.Join(dataDir, "instances")
}

// ProfilesDir is the parent of instance directories created without an explicit path.
func ProfilesDir(dataDir string) string {
	return filepath.Join(dataDir, "profiles")
}

// AccountsFile is the account store used by the CLI.
func AccountsFile(dataDir string) string {
	return filepath.Join(dataDir, "accounts.json")
}

func copyDefaults(dir string, overwrite bool) error {
	return fs.WalkDir(defaultFiles, "dotswitchyard", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == "dotswitchyard" {
			return nil
		}

		// embed.FS always uses forward slashes
		relPath := strings.TrimPrefix(path, "dotswitchyard/")
		destPath := filepath.Join(dir, relPath)

		if d.IsDir() {
			return os.MkdirAll(destPath, 0755)
		}

		if !overwrite {
			if _, err := os.Stat(destPath); err == nil {
				return nil
			}
		}

		data, err := defaultFiles.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read embedded %s: %w", path, err)
		}
		if err := os.WriteFile(destPath, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", destPath, err)
		}
		return nil
	})
}

// GetDefault returns the content of a default file by name.
// Example: GetDefault("config.yaml")
func GetDefault(name string) ([]byte, error) {
	return defaultFiles.ReadFile("dotswitchyard/" + name)
}
