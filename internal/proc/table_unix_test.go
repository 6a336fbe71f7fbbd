//go:build !windows

package proc

import (
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnixTableTerminate(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid

	table := SystemTable()
	assert.True(t, table.Alive(pid))
	require.NoError(t, table.Terminate(pid))

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sleep did not exit after SIGTERM")
	}
	assert.False(t, table.Alive(pid))

	// Signalling a gone process is not an error.
	assert.NoError(t, table.Terminate(pid))
	assert.NoError(t, table.Kill(pid))
}

func TestUnixTableZombieIsDead(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("zombie detection reads /proc")
	}
	cmd := exec.Command("true")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid
	defer cmd.Wait()

	assert.Eventually(t, func() bool { return !SystemTable().Alive(pid) }, 5*time.Second, 20*time.Millisecond)
}

func TestUnixTableNonPositive(t *testing.T) {
	assert.False(t, SystemTable().Alive(0))
	assert.NoError(t, SystemTable().Kill(0))
}
