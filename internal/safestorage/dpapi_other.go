//go:build !windows

package safestorage

import "github.com/neboloop/switchyard/internal/apperr"

func unprotect([]byte) ([]byte, error) {
	return nil, apperr.PlatformUnsupported("safestorage.unprotect", "DPAPI is only available on Windows")
}
