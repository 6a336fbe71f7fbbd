//go:build linux

package focus

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/neboloop/switchyard/internal/apperr"
	"github.com/neboloop/switchyard/internal/logging"
)

type systemFocuser struct{}

// Focus tries wmctrl first (it reports window pids directly) and falls back
// to xdotool.
func (systemFocuser) Focus(ctx context.Context, pid int) error {
	var errs []error

	if _, err := exec.LookPath("wmctrl"); err == nil {
		err := focusWmctrl(ctx, pid)
		if err == nil {
			return nil
		}
		logging.Debugf("[focus] wmctrl failed for pid=%d: %v", pid, err)
		errs = append(errs, err)
	}

	if _, err := exec.LookPath("xdotool"); err == nil {
		err := focusXdotool(ctx, pid)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return apperr.FocusFailed(pid, errors.New("window management unavailable (install wmctrl or xdotool)"))
	}
	return apperr.FocusFailed(pid, errors.Join(errs...))
}

func focusWmctrl(ctx context.Context, pid int) error {
	out, err := exec.CommandContext(ctx, "wmctrl", "-l", "-p").Output()
	if err != nil {
		return fmt.Errorf("wmctrl -l: %w", err)
	}
	ids := wmctrlWindows(string(out), pid)
	if len(ids) == 0 {
		return fmt.Errorf("no window for pid %d", pid)
	}
	if err := exec.CommandContext(ctx, "wmctrl", "-i", "-a", ids[0]).Run(); err != nil {
		return fmt.Errorf("wmctrl -a: %w", err)
	}
	return nil
}

func focusXdotool(ctx context.Context, pid int) error {
	out, err := exec.CommandContext(ctx, "xdotool", "search", "--onlyvisible", "--pid", strconv.Itoa(pid)).Output()
	if err != nil {
		return fmt.Errorf("xdotool search: %w", err)
	}
	id := firstLine(string(out))
	if id == "" {
		return fmt.Errorf("no window for pid %d", pid)
	}
	if err := exec.CommandContext(ctx, "xdotool", "windowactivate", id).Run(); err != nil {
		return fmt.Errorf("xdotool windowactivate: %w", err)
	}
	return nil
}
