//go:build windows

package focus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/neboloop/switchyard/internal/apperr"
)

var (
	user32                       = windows.NewLazySystemDLL("user32.dll")
	procEnumWindows              = user32.NewProc("EnumWindows")
	procGetWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
	procIsWindowVisible          = user32.NewProc("IsWindowVisible")
	procGetWindow                = user32.NewProc("GetWindow")
	procIsIconic                 = user32.NewProc("IsIconic")
	procShowWindow               = user32.NewProc("ShowWindow")
	procSetForegroundWindow      = user32.NewProc("SetForegroundWindow")
)

const (
	gwOwner   = 4
	swShow    = 5
	swRestore = 9
)

// Callbacks are a scarce resource on Windows, so a single one is shared and
// searches are serialized.
var (
	enumMu    sync.Mutex
	enumPID   uint32
	enumFound uintptr
	enumProc  = windows.NewCallback(func(hwnd, _ uintptr) uintptr {
		var owner uint32
		procGetWindowThreadProcessId.Call(hwnd, uintptr(unsafe.Pointer(&owner)))
		if owner != enumPID {
			return 1
		}
		if visible, _, _ := procIsWindowVisible.Call(hwnd); visible == 0 {
			return 1
		}
		if parent, _, _ := procGetWindow.Call(hwnd, gwOwner); parent != 0 {
			return 1
		}
		enumFound = hwnd
		return 0
	})
)

type systemFocuser struct{}

func (systemFocuser) Focus(ctx context.Context, pid int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	hwnd := topLevelWindow(uint32(pid))
	if hwnd == 0 {
		return apperr.FocusFailed(pid, fmt.Errorf("no visible window for pid %d", pid))
	}

	if iconic, _, _ := procIsIconic.Call(hwnd); iconic != 0 {
		procShowWindow.Call(hwnd, swRestore)
	} else {
		procShowWindow.Call(hwnd, swShow)
	}
	if ok, _, err := procSetForegroundWindow.Call(hwnd); ok == 0 {
		if err == nil || errors.Is(err, windows.ERROR_SUCCESS) {
			err = errors.New("SetForegroundWindow refused")
		}
		return apperr.FocusFailed(pid, err)
	}
	return nil
}

func topLevelWindow(pid uint32) uintptr {
	enumMu.Lock()
	defer enumMu.Unlock()
	enumPID, enumFound = pid, 0
	procEnumWindows.Call(enumProc, 0)
	return enumFound
}
