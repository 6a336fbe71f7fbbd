//go:build darwin

package proc

import (
	"context"
	"fmt"
	"os"

	ps "github.com/mitchellh/go-ps"
	"golang.org/x/sys/unix"
)

type systemLister struct{}

// List enumerates pids with go-ps and reads argv plus the environment block
// from kern.procargs2. Processes owned by other users fail the sysctl and are
// skipped.
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
		if pid <= 0 || pid == self {
			continue
		}

		buf, err := unix.SysctlRaw("kern.procargs2", pid)
		if err != nil {
			continue
		}
		exe, args, env, err := parseProcArgs2(buf)
		if err != nil || len(args) == 0 {
			continue
		}

		rp := RawProcess{PID: pid, Exe: exe, Args: args}
		if q.WithEnv {
			rp.Env = env
		}
		out = append(out, rp)
	}
	return out, nil
}
