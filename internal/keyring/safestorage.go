package keyring

import (
	"fmt"

	zkr "github.com/zalando/go-keyring"
)

// SafeStoragePassword reads the password an Electron app stored in the macOS
// keychain (generic password, service "<App> Safe Storage", account "<App> Key").
func SafeStoragePassword(service, account string) (string, error) {
	pw, err := zkr.Get(service, account)
	if err != nil {
		return "", fmt.Errorf("keychain get %q: %w", service, err)
	}
	return pw, nil
}
