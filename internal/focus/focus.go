// Package focus brings an editor's main window to the foreground.
package focus

import (
	"bufio"
	"context"
	"strconv"
	"strings"
)

// Focuser raises the top-level window owned by a process.
type Focuser interface {
	Focus(ctx context.Context, pid int) error
}

// New returns the Focuser for the running OS.
func New() Focuser {
	return systemFocuser{}
}

// wmctrlWindows picks the window ids owned by pid from `wmctrl -l -p` output:
//
//	0x03a00003  0 4242   host Title of the window
func wmctrlWindows(out string, pid int) []string {
	want := strconv.Itoa(pid)
	var ids []string
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 3 {
			continue
		}
		if fields[2] == want {
			ids = append(ids, fields[0])
		}
	}
	return ids
}

// firstLine returns the first non-empty line of command output.
func firstLine(out string) string {
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
