//go:build linux

package proc

import (
	"context"
	"fmt"
	"os"
	"strings"

	ps "github.com/mitchellh/go-ps"
)

type systemLister struct{}

// List walks /proc through go-ps and reads each candidate's argv (and
// environment when asked). Unreadable processes are skipped.
func (systemLister) List(ctx context.Context, q Query) ([]RawProcess, error) {
	procs, err := ps.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	self := os.Getpid()
	out := make([]RawProcess, 0, 16)
	for _, p := range procs {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		pid := p.Pid()
		if pid == self {
			continue
		}
		if len(q.Names) > 0 && !commMatches(p.Executable(), q.Names) {
			continue
		}

		cmdline, err := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", pid))
		if err != nil {
			continue
		}
		args := splitNUL(cmdline)
		if len(args) == 0 {
			continue // kernel thread or exiting
		}

		exe, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
		if err != nil {
			exe = args[0]
		}
		exe = strings.TrimSuffix(exe, " (deleted)")

		rp := RawProcess{PID: pid, Exe: exe, Args: args}
		if q.WithEnv {
			if environ, err := os.ReadFile(fmt.Sprintf("/proc/%d/environ", pid)); err == nil {
				rp.Env = splitNUL(environ)
			}
		}
		out = append(out, rp)
	}
	return out, nil
}

// commMatches compares against /proc/<pid>/stat comm, which the kernel
// truncates to 15 bytes.
func commMatches(comm string, names []string) bool {
	for _, name := range names {
		if len(name) > 15 {
			name = name[:15]
		}
		if comm == name {
			return true
		}
	}
	return false
}
