package safestorage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

const gcmNonceSize = 12

// GCMCipher is the Windows backend: v10 + 12-byte nonce + AES-256-GCM.
type GCMCipher struct {
	aead cipher.AEAD
}

// NewGCM wraps the 32-byte key unwrapped from Local State.
func NewGCM(key []byte) (*GCMCipher, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: want 32-byte key, got %d", ErrNoKey, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, gcmNonceSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &GCMCipher{aead: aead}, nil
}

func (g *GCMCipher) DefaultScheme() Scheme { return V10 }

func (g *GCMCipher) Encrypt(scheme Scheme, plaintext []byte) ([]byte, error) {
	if scheme != V10 {
		return nil, fmt.Errorf("%w: %s", ErrNoKey, scheme)
	}
	out := make([]byte, 3+gcmNonceSize, 3+gcmNonceSize+len(plaintext)+g.aead.Overhead())
	copy(out, V10)
	nonce := out[3:]
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return g.aead.Seal(out, nonce, plaintext, nil), nil
}

func (g *GCMCipher) Decrypt(blob []byte) ([]byte, error) {
	scheme, err := SchemeOf(blob)
	if err != nil {
		return nil, err
	}
	if scheme != V10 {
		return nil, fmt.Errorf("%w: %s", ErrNoKey, scheme)
	}
	data := blob[3:]
	if len(data) < gcmNonceSize+g.aead.Overhead() {
		return nil, fmt.Errorf("%w: length %d", ErrMalformed, len(data))
	}
	plain, err := g.aead.Open(nil, data[:gcmNonceSize], data[gcmNonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plain, nil
}
