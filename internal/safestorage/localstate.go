package safestorage

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
)

const dpapiPrefix = "DPAPI"

// LocalStatePath is where Chromium keeps os_crypt settings for a data dir.
func LocalStatePath(dir string) string {
	return filepath.Join(dir, "Local State")
}

// wrappedKey reads os_crypt.encrypted_key from Local State and strips the
// DPAPI marker, leaving the blob CryptUnprotectData expects.
func wrappedKey(dir string) ([]byte, error) {
	data, err := os.ReadFile(LocalStatePath(dir))
	if err != nil {
		return nil, fmt.Errorf("read Local State: %w", err)
	}
	encoded := gjson.GetBytes(data, "os_crypt.encrypted_key").String()
	if encoded == "" {
		return nil, fmt.Errorf("Local State has no os_crypt.encrypted_key")
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode encrypted_key: %w", err)
	}
	if !bytes.HasPrefix(raw, []byte(dpapiPrefix)) {
		return nil, fmt.Errorf("encrypted_key lacks %s prefix", dpapiPrefix)
	}
	return raw[len(dpapiPrefix):], nil
}
