package safestorage

import (
	"runtime"

	"github.com/neboloop/switchyard/internal/apperr"
	"github.com/neboloop/switchyard/internal/keyring"
	"github.com/neboloop/switchyard/internal/logging"
	"github.com/neboloop/switchyard/internal/target"
)

// Sources are the OS secret stores a backend is keyed from.
type Sources struct {
	// KeychainPassword reads a macOS keychain generic password.
	KeychainPassword func(service, account string) (string, error)
	// SecretServicePassword reads the libsecret password stored for an app.
	SecretServicePassword func(application string) (string, error)
	// Unprotect unwraps a Windows DPAPI blob.
	Unprotect func([]byte) ([]byte, error)
}

// SystemSources reads the real OS stores.
func SystemSources() Sources {
	return Sources{
		KeychainPassword: keyring.SafeStoragePassword,
		SecretServicePassword: func(app string) (string, error) {
			return keyring.LookupSecret(map[string]string{"application": app})
		},
		Unprotect: unprotect,
	}
}

// New returns the cipher t uses for the data directory dir on this OS.
func New(t *target.Target, dir string) (Cipher, error) {
	return NewFor(t, dir, runtime.GOOS, SystemSources())
}

// NewFor builds the backend goos would use.
func NewFor(t *target.Target, dir, goos string, src Sources) (Cipher, error) {
	ss := t.SafeStorage
	switch goos {
	case "darwin":
		pw, err := src.KeychainPassword(ss.KeychainService, ss.KeychainAccount)
		if err != nil {
			return nil, apperr.InjectionFailed("keychain password unavailable", err)
		}
		return NewCBC(map[Scheme]string{V10: pw}, MacIterations, V10)

	case "linux":
		passwords := map[Scheme]string{V10: LinuxV10Password}
		def := V10
		if pw, err := src.SecretServicePassword(ss.Application); err == nil && pw != "" {
			passwords[V11] = pw
			def = V11
		} else {
			logging.Debugf("[safestorage] no secret service password for %s, using v10: %v", ss.Application, err)
		}
		return NewCBC(passwords, LinuxIterations, def)

	case "windows":
		wrapped, err := wrappedKey(dir)
		if err != nil {
			return nil, apperr.InjectionFailed("Local State key unavailable", err)
		}
		key, err := src.Unprotect(wrapped)
		if err != nil {
			return nil, apperr.InjectionFailed("cannot unwrap Local State key", err)
		}
		return NewGCM(key)
	}
	return nil, apperr.PlatformUnsupported("safestorage.New", "no safe storage backend for "+goos)
}
