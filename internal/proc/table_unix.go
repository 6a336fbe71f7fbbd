//go:build !windows

package proc

import (
	"errors"
	"syscall"
)

type unixTable struct{}

// SystemTable returns the process table of the running OS.
func SystemTable() Table {
	return unixTable{}
}

// Alive uses signal 0: EPERM still means the pid exists. Zombies are dead.
func (unixTable) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	if err != nil && !errors.Is(err, syscall.EPERM) {
		return false
	}
	return !isZombie(pid)
}

func (unixTable) Terminate(pid int) error {
	return signal(pid, syscall.SIGTERM)
}

func (unixTable) Kill(pid int) error {
	return signal(pid, syscall.SIGKILL)
}

// signal treats an already-gone process as success.
func signal(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return nil
	}
	if err := syscall.Kill(pid, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		return err
	}
	return nil
}
