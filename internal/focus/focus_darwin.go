//go:build darwin

package focus

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/neboloop/switchyard/internal/apperr"
)

type systemFocuser struct{}

const raiseScript = `tell application "System Events"
	set procs to (every process whose unix id is %d)
	if procs is {} then return "not found"
	set frontmost of item 1 of procs to true
end tell
return "focused"`

func (systemFocuser) Focus(ctx context.Context, pid int) error {
	out, err := exec.CommandContext(ctx, "osascript", "-e", fmt.Sprintf(raiseScript, pid)).CombinedOutput()
	if err != nil {
		return apperr.FocusFailed(pid, fmt.Errorf("osascript: %w: %s", err, strings.TrimSpace(string(out))))
	}
	if strings.TrimSpace(string(out)) != "focused" {
		return apperr.FocusFailed(pid, fmt.Errorf("no process with unix id %d", pid))
	}
	return nil
}
