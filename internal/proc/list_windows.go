//go:build windows

package proc

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/windows"
)

type systemLister struct{}

const cimTimeout = 15 * time.Second

// List queries Win32_Process through PowerShell. Command lines are the only
// source of the data directory here; environment blocks of other processes
// are not readable without injecting into them, so Query.WithEnv is ignored.
func (systemLister) List(ctx context.Context, q Query) ([]RawProcess, error) {
	ctx, cancel := context.WithTimeout(ctx, cimTimeout)
	defer cancel()

	script := "Get-CimInstance Win32_Process"
	if filter := nameFilter(q.Names); filter != "" {
		script += ` -Filter "` + filter + `"`
	}
	script += " | Select-Object ProcessId,ExecutablePath,CommandLine | ConvertTo-Json -Compress"

	cmd := exec.CommandContext(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true, CreationFlags: windows.CREATE_NO_WINDOW}
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("query Win32_Process: %w", err)
	}
	return parseCimProcesses(out, os.Getpid()), nil
}

func nameFilter(names []string) string {
	var parts []string
	for _, n := range names {
		parts = append(parts, "Name='"+strings.ReplaceAll(n, "'", "''")+"'")
	}
	return strings.Join(parts, " OR ")
}
