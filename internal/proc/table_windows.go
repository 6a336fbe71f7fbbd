//go:build windows

package proc

import (
	"errors"
	"os/exec"
	"strconv"
	"syscall"

	"golang.org/x/sys/windows"
)

const stillActive = 259

type windowsTable struct{}

// SystemTable returns the process table of the running OS.
func SystemTable() Table {
	return windowsTable{}
}

func (windowsTable) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		// Elevated processes refuse the query but exist.
		return errors.Is(err, windows.ERROR_ACCESS_DENIED)
	}
	defer windows.CloseHandle(h)

	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return false
	}
	return code == stillActive
}

// Terminate closes the process tree politely: taskkill without /F posts
// WM_CLOSE to every window of the tree.
func (t windowsTable) Terminate(pid int) error {
	if !t.Alive(pid) {
		return nil
	}
	if err := taskkill(pid, false); err != nil && t.Alive(pid) {
		return err
	}
	return nil
}

// Kill ends the whole tree, falling back to TerminateProcess on the root.
func (t windowsTable) Kill(pid int) error {
	if !t.Alive(pid) {
		return nil
	}
	if err := taskkill(pid, true); err == nil || !t.Alive(pid) {
		return nil
	}
	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		return err
	}
	defer windows.CloseHandle(h)
	return windows.TerminateProcess(h, 1)
}

func taskkill(pid int, force bool) error {
	args := []string{"/PID", strconv.Itoa(pid), "/T"}
	if force {
		args = append(args, "/F")
	}
	cmd := exec.Command("taskkill", args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true, CreationFlags: windows.CREATE_NO_WINDOW}
	return cmd.Run()
}
