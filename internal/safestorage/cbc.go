package safestorage

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	cbcSalt   = "saltysalt"
	cbcKeyLen = 16

	// MacIterations is the PBKDF2 round count used on macOS.
	MacIterations = 1003
	// LinuxIterations is the PBKDF2 round count used on Linux.
	LinuxIterations = 1

	// LinuxV10Password keys v10 blobs when no secret service is available.
	LinuxV10Password = "peanuts"
)

// cbcIV is sixteen spaces.
var cbcIV = bytes.Repeat([]byte{' '}, aes.BlockSize)

// CBCCipher is the macOS and Linux backend: AES-128-CBC with PKCS#7 padding
// under a PBKDF2-HMAC-SHA1 key.
type CBCCipher struct {
	keys map[Scheme][]byte
	def  Scheme
}

// NewCBC derives one key per scheme from passwords.
func NewCBC(passwords map[Scheme]string, iterations int, def Scheme) (*CBCCipher, error) {
	if _, ok := passwords[def]; !ok {
		return nil, fmt.Errorf("%w: default %s", ErrNoKey, def)
	}
	keys := make(map[Scheme][]byte, len(passwords))
	for scheme, pw := range passwords {
		keys[scheme] = DeriveKey(pw, iterations)
	}
	return &CBCCipher{keys: keys, def: def}, nil
}

// DeriveKey is PBKDF2-HMAC-SHA1(password, "saltysalt", iterations, 16).
func DeriveKey(password string, iterations int) []byte {
	return pbkdf2.Key([]byte(password), []byte(cbcSalt), iterations, cbcKeyLen, sha1.New)
}

func (c *CBCCipher) DefaultScheme() Scheme { return c.def }

// HasScheme reports whether a key is available for scheme.
func (c *CBCCipher) HasScheme(s Scheme) bool {
	_, ok := c.keys[s]
	return ok
}

func (c *CBCCipher) Encrypt(scheme Scheme, plaintext []byte) ([]byte, error) {
	key, ok := c.keys[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoKey, scheme)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, 3+len(padded))
	copy(out, scheme)
	cipher.NewCBCEncrypter(block, cbcIV).CryptBlocks(out[3:], padded)
	return out, nil
}

func (c *CBCCipher) Decrypt(blob []byte) ([]byte, error) {
	scheme, err := SchemeOf(blob)
	if err != nil {
		return nil, err
	}
	key, ok := c.keys[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoKey, scheme)
	}
	data := blob[3:]
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: length %d", ErrMalformed, len(data))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	plain := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, cbcIV).CryptBlocks(plain, data)
	return pkcs7Unpad(plain, aes.BlockSize)
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(append(make([]byte, 0, len(b)+n), b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 {
		return nil, ErrMalformed
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, fmt.Errorf("%w: bad padding", ErrMalformed)
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrMalformed)
		}
	}
	return b[:len(b)-n], nil
}
