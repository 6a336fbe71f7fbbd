// Package credential seals token fields of switchyard's account store with
// the master key.
package credential

import (
	"errors"
	"strings"
	"sync"
)

const encPrefix = "enc:"

var (
	encKey []byte
	mu     sync.RWMutex
)

// ErrNoKey is returned when Init has not been called with a usable key.
var ErrNoKey = errors.New("credential: master key not initialized")

// Init sets the master encryption key. Called once at startup.
func Init(key []byte) {
	mu.Lock()
	defer mu.Unlock()
	encKey = key
}

func key() ([]byte, error) {
	mu.RLock()
	defer mu.RUnlock()
	if len(encKey) == 0 {
		return nil, ErrNoKey
	}
	return encKey, nil
}

// Encrypt encrypts a plaintext string and prepends the "enc:" prefix.
// Returns empty string for empty input.
func Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	k, err := key()
	if err != nil {
		return "", err
	}
	ct, err := encryptString(plaintext, k)
	if err != nil {
		return "", err
	}
	return encPrefix + ct, nil
}

// Decrypt decrypts an "enc:"-prefixed value. Values without the prefix are
// plaintext (hand-edited or imported files) and are returned unchanged.
// Returns empty string for empty input.
func Decrypt(value string) (string, error) {
	if value == "" || !IsEncrypted(value) {
		return value, nil
	}
	k, err := key()
	if err != nil {
		return "", err
	}
	return decryptString(strings.TrimPrefix(value, encPrefix), k)
}

// IsEncrypted returns true if the value has the "enc:" prefix.
func IsEncrypted(s string) bool {
	return strings.HasPrefix(s, encPrefix)
}
