package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommand(t *testing.T) {
	cmd := command("linux", "Switched", "Work\nis now octo")
	require.NotNil(t, cmd)
	assert.Equal(t, []string{"notify-send", "--app-name=switchyard", "Switched", "Work is now octo"}, cmd.Args)

	cmd = command("windows", "it's", "done")
	require.NotNil(t, cmd)
	assert.Contains(t, cmd.Args[len(cmd.Args)-1], "'it''s'")

	assert.Nil(t, command("plan9", "a", "b"))
}

func TestClip(t *testing.T) {
	long := strings.Repeat("x", 300)
	assert.Len(t, clip(long), maxLen+3)
}
