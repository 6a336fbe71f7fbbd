// Package keyring wraps the OS keychain: the master key sealing switchyard's
// own account store, and the safe-storage passwords editors keep there.
package keyring

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	zkr "github.com/zalando/go-keyring"

	"github.com/neboloop/switchyard/internal/fsutil"
	"github.com/neboloop/switchyard/internal/logging"
)

const (
	serviceName = "switchyard"
	accountName = "master-encryption-key"

	keySize = 32
)

// ErrNotFound is returned when the keychain holds no matching secret.
var ErrNotFound = zkr.ErrNotFound

// Get retrieves the master encryption key from the OS keychain.
func Get() ([]byte, error) {
	hexKey, err := zkr.Get(serviceName, accountName)
	if err != nil {
		return nil, fmt.Errorf("keychain get: %w", err)
	}
	return hex.DecodeString(hexKey)
}

// Set stores the master encryption key in the OS keychain.
func Set(key []byte) error {
	return zkr.Set(serviceName, accountName, hex.EncodeToString(key))
}

// Delete removes the master encryption key from the OS keychain.
func Delete() error {
	return zkr.Delete(serviceName, accountName)
}

// Available returns true if the OS keychain is functional.
// Returns false if SWITCHYARD_KEYRING_DISABLED=1 is set (headless/CI/Docker).
// Otherwise probes the keychain with a test write/read/delete cycle.
func Available() bool {
	if os.Getenv("SWITCHYARD_KEYRING_DISABLED") == "1" {
		return false
	}
	testService := "switchyard-keyring-probe"
	testAccount := "probe"
	if err := zkr.Set(testService, testAccount, "ok"); err != nil {
		return false
	}
	_ = zkr.Delete(testService, testAccount)
	return true
}

// MasterKey returns the 32-byte key sealing tokens at rest. Lookup order:
// SWITCHYARD_MASTER_KEY (hex), the OS keychain, then <dataDir>/.master-key.
// A missing key is generated and persisted where it was looked up.
func MasterKey(dataDir string) ([]byte, error) {
	if hexKey := os.Getenv("SWITCHYARD_MASTER_KEY"); hexKey != "" {
		key, err := hex.DecodeString(hexKey)
		if err != nil {
			return nil, fmt.Errorf("invalid SWITCHYARD_MASTER_KEY: must be hex encoded: %w", err)
		}
		if len(key) != keySize {
			return nil, fmt.Errorf("invalid SWITCHYARD_MASTER_KEY: must be %d bytes", keySize)
		}
		return key, nil
	}

	if Available() {
		key, err := Get()
		if err == nil && len(key) == keySize {
			return key, nil
		}
		if err != nil && !errors.Is(err, zkr.ErrNotFound) {
			logging.Warnf("[keyring] master key unreadable, regenerating: %v", err)
		}
		key, err = newKey()
		if err != nil {
			return nil, err
		}
		if err := Set(key); err == nil {
			return key, nil
		}
		logging.Warnf("[keyring] cannot store master key in keychain, using key file")
	}

	keyFile := filepath.Join(dataDir, ".master-key")
	if data, err := os.ReadFile(keyFile); err == nil {
		key, err := hex.DecodeString(string(data))
		if err == nil && len(key) == keySize {
			return key, nil
		}
	}
	key, err := newKey()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := fsutil.AtomicWriteFile(keyFile, []byte(hex.EncodeToString(key)), 0o600); err != nil {
		return nil, fmt.Errorf("failed to persist master key: %w", err)
	}
	return key, nil
}

func newKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate master key: %w", err)
	}
	return key, nil
}
