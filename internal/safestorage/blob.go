// Package safestorage encrypts and decrypts secrets the way Electron's
// safeStorage (Chromium os_crypt) does, so an editor can read what is
// written with its own unmodified logic.
package safestorage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Scheme is the 3-byte version tag leading every encrypted blob.
type Scheme string

const (
	V10 Scheme = "v10"
	V11 Scheme = "v11"
)

var (
	ErrUnknownScheme = errors.New("safestorage: unknown scheme")
	ErrNoKey         = errors.New("safestorage: no key for scheme")
	ErrMalformed     = errors.New("safestorage: malformed ciphertext")
)

// Cipher is one OS backend.
type Cipher interface {
	// Encrypt returns tag + ciphertext for scheme.
	Encrypt(scheme Scheme, plaintext []byte) ([]byte, error)
	// Decrypt reads the tag of blob and decrypts the rest.
	Decrypt(blob []byte) ([]byte, error)
	// DefaultScheme is what the editor itself would write on this machine.
	DefaultScheme() Scheme
}

// SchemeOf returns the tag of an encrypted blob.
func SchemeOf(blob []byte) (Scheme, error) {
	if len(blob) < 3 {
		return "", ErrMalformed
	}
	switch s := Scheme(blob[:3]); s {
	case V10, V11:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownScheme, blob[:3])
	}
}

type buffer struct {
	Type string `json:"type"`
	Data []int  `json:"data"`
}

// EncodeBuffer renders blob as Node's Buffer JSON: {"type":"Buffer","data":[...]}.
func EncodeBuffer(blob []byte) string {
	data := make([]int, len(blob))
	for i, b := range blob {
		data[i] = int(b)
	}
	out, _ := json.Marshal(buffer{Type: "Buffer", Data: data})
	return string(out)
}

// DecodeBuffer parses Node's Buffer JSON.
func DecodeBuffer(s string) ([]byte, error) {
	var b buffer
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if b.Type != "Buffer" {
		return nil, fmt.Errorf("%w: type %q", ErrMalformed, b.Type)
	}
	out := make([]byte, len(b.Data))
	for i, v := range b.Data {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("%w: byte %d out of range", ErrMalformed, v)
		}
		out[i] = byte(v)
	}
	return out, nil
}
