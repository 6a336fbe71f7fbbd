package lifecycle

import (
	"strings"

	"github.com/google/shlex"

	"github.com/neboloop/switchyard/internal/proc"
)

// SplitArgs splits a user supplied argument string. Quotes group words; on
// Windows backslashes are path separators rather than escapes.
func SplitArgs(s, goos string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	if goos == "windows" {
		toks := proc.SplitCommandLine(s)
		for i, tok := range toks {
			toks[i] = strings.ReplaceAll(tok, `"`, "")
		}
		return toks, nil
	}
	return shlex.Split(s)
}
