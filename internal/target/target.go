// Package target describes the editors switchyard can manage: where their
// binaries live, which data directory the default installation uses, how
// their safe-storage password is looked up and which state-database keys
// carry an authenticated session.
package target

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// PerOS holds a value per GOOS.
type PerOS[T any] struct {
	Darwin  T
	Linux   T
	Windows T
}

// For returns the value for goos.
func (p PerOS[T]) For(goos string) T {
	switch goos {
	case "darwin":
		return p.Darwin
	case "windows":
		return p.Windows
	default:
		return p.Linux
	}
}

// Current returns the value for the running OS.
func (p PerOS[T]) Current() T {
	return p.For(runtime.GOOS)
}

// SafeStorage names the OS secret used to derive the state-database key.
type SafeStorage struct {
	KeychainService string // macOS keychain service, e.g. "Code Safe Storage"
	KeychainAccount string // macOS keychain account, e.g. "Code Key"
	Application     string // Linux libsecret "application" attribute
}

// Consumer is an extension that reads the auth provider's sessions.
type Consumer struct {
	ID   string
	Name string
}

// AuthLayout names the state-database keys an authenticated instance carries.
type AuthLayout struct {
	ExtensionID        string // Extension owning the secrets
	ProviderID         string // Authentication provider id
	SessionsSecretKey  string // Encrypted session array
	ServerURLSecretKey string // Encrypted API server URL
	AuthStatusKey      string // Plaintext auth-status JSON
	DefaultServerURL   string
	DefaultScopes      []string
	Consumers          []Consumer
}

// Target is a static description of one managed editor.
type Target struct {
	Name        string
	DisplayName string

	// Main binary names (base name, without directory)
	Executables PerOS[[]string]
	// macOS bundle names; a darwin process matches only inside one of them
	Bundles []string
	// Well-known install locations, "~" and %ENV% expanded
	InstallPaths PerOS[[]string]

	DataDirFlag string // "--user-data-dir", empty for env-home targets
	HomeEnv     string // Env var carrying the home directory, empty for flag targets

	// Default data directory relative to the OS base (see DefaultDir)
	DataDirName string
	// Env-home targets use ~/<HomeDirName> instead
	HomeDirName string

	SafeStorage SafeStorage
	Auth        *AuthLayout
}

// UsesEnvHome reports whether instances are distinguished by an env var instead of a flag.
func (t *Target) UsesEnvHome() bool {
	return t.HomeEnv != ""
}

// DefaultDir returns the well-known data directory of the default instance.
func (t *Target) DefaultDir() (string, error) {
	return t.DefaultDirFor(runtime.GOOS)
}

// DefaultDirFor returns the default data directory for goos.
func (t *Target) DefaultDirFor(goos string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	if t.UsesEnvHome() {
		return filepath.Join(home, t.HomeDirName), nil
	}

	switch goos {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", t.DataDirName), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, t.DataDirName), nil
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, t.DataDirName), nil
		}
		return filepath.Join(home, ".config", t.DataDirName), nil
	}
}

// IsMainExecutable reports whether exe (a full path or base name) is this
// target's main binary on goos. Helper processes are filtered separately.
func (t *Target) IsMainExecutable(exe, goos string) bool {
	if exe == "" {
		return false
	}
	base := baseName(exe, goos)
	names := t.Executables.For(goos)

	matched := false
	for _, name := range names {
		if goos == "linux" {
			if base == name {
				matched = true
			}
		} else if strings.EqualFold(base, name) {
			matched = true
		}
	}
	if !matched {
		return false
	}

	if goos == "darwin" && len(t.Bundles) > 0 && strings.Contains(exe, "/") {
		for _, bundle := range t.Bundles {
			if strings.Contains(exe, "/"+bundle+"/Contents/MacOS/") {
				return true
			}
		}
		return false
	}
	return true
}

// baseName splits on both separators so Windows paths parse on any host.
func baseName(p, goos string) string {
	if goos == "windows" {
		p = strings.ReplaceAll(p, "\\", "/")
	}
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

var registry = map[string]*Target{}

// Register adds a target. Called from init for the built-in targets.
func Register(t *Target) {
	registry[t.Name] = t
}

// Get returns a registered target by name.
func Get(name string) (*Target, error) {
	t, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown target %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return t, nil
}

// Names lists registered target names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
