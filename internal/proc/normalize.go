package proc

import (
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mitchellh/go-homedir"
)

// Normalize canonicalizes a data directory for comparison on the running OS.
func Normalize(p string) string {
	return NormalizeFor(p, runtime.GOOS)
}

// NormalizeFor canonicalizes p as goos would: "~" expanded, made absolute and
// cleaned, symlinks resolved when the path exists, and case-folded where the
// file system is case-insensitive (Windows). Resolution against the file
// system only happens when goos is the running OS.
func NormalizeFor(p, goos string) string {
	p = strings.TrimSpace(unquote(p))
	if p == "" {
		return ""
	}
	if expanded, err := homedir.Expand(p); err == nil {
		p = expanded
	}

	if goos == "windows" {
		if goos == runtime.GOOS {
			if abs, err := filepath.Abs(p); err == nil {
				p = abs
			}
			if resolved, err := filepath.EvalSymlinks(p); err == nil {
				p = resolved
			}
		}
		p = strings.ReplaceAll(p, "/", `\`)
		for strings.Contains(p, `\\`) && !strings.HasPrefix(p, `\\`) {
			p = strings.ReplaceAll(p, `\\`, `\`)
		}
		if len(p) > 3 {
			p = strings.TrimRight(p, `\`)
		}
		return strings.ToLower(p)
	}

	if goos == runtime.GOOS {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		if resolved, err := filepath.EvalSymlinks(p); err == nil {
			p = resolved
		}
		return filepath.Clean(p)
	}
	return path.Clean(p)
}
