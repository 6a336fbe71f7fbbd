package lifecycle

import (
	"os/exec"

	"github.com/neboloop/switchyard/internal/logging"
)

// Spawner starts a detached process and returns its pid.
type Spawner interface {
	Spawn(path string, args, env []string) (int, error)
}

type execSpawner struct{}

// Spawn starts path in its own session (process group on Windows) so the
// editor outlives this process. The child is reaped in the background.
func (execSpawner) Spawn(path string, args, env []string) (int, error) {
	cmd := exec.Command(path, args...)
	cmd.Env = env
	cmd.SysProcAttr = detachedAttr()
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	go func() {
		err := cmd.Wait()
		logging.Debugf("[lifecycle] pid=%d exited: %v", pid, err)
	}()
	return pid, nil
}
