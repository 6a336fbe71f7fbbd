package proc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCimProcessesArray(t *testing.T) {
	out := []byte(`[
		{"ProcessId":4100,"ExecutablePath":"C:\\Program Files\\Microsoft VS Code\\Code.exe","CommandLine":"\"C:\\Program Files\\Microsoft VS Code\\Code.exe\" --user-data-dir \"C:\\p 1\""},
		{"ProcessId":4200,"ExecutablePath":null,"CommandLine":null},
		{"ProcessId":99,"ExecutablePath":"C:\\x\\Code.exe","CommandLine":"Code.exe"}
	]`)

	procs := parseCimProcesses(out, 99)
	require.Len(t, procs, 1)
	p := procs[0]
	assert.Equal(t, 4100, p.PID)
	assert.Equal(t, `C:\Program Files\Microsoft VS Code\Code.exe`, p.Exe)
	assert.True(t, p.Split)

	dir, ok := ExtractFlagValue(p.Args, "--user-data-dir", p.Split)
	assert.True(t, ok)
	assert.Equal(t, `C:\p 1`, dir)
}

func TestParseCimProcessesSingleObject(t *testing.T) {
	out := []byte(`{"ProcessId":12,"ExecutablePath":"C:\\w\\Windsurf.exe","CommandLine":"C:\\w\\Windsurf.exe"}`)
	procs := parseCimProcesses(out, 1)
	require.Len(t, procs, 1)
	assert.Equal(t, 12, procs[0].PID)
	assert.Equal(t, []string{`C:\w\Windsurf.exe`}, procs[0].Args)
}

func TestParseCimProcessesEmpty(t *testing.T) {
	assert.Empty(t, parseCimProcesses(nil, 1))
	assert.Empty(t, parseCimProcesses([]byte("  "), 1))
}
