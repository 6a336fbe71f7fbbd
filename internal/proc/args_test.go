package proc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractFlagValue(t *testing.T) {
	const flag = "--user-data-dir"
	tests := []struct {
		name   string
		args   []string
		split  bool
		want   string
		wantOK bool
	}{
		{"equals form", []string{"code", "--user-data-dir=/a/b"}, false, "/a/b", true},
		{"separate token", []string{"code", "--user-data-dir", "/a/b", "--new-window"}, false, "/a/b", true},
		{"argv value with spaces", []string{"code", "--user-data-dir", "/a b/c", "/proj"}, false, "/a b/c", true},
		{"quoted equals", []string{"Code.exe", `--user-data-dir="C:\Users\me\My Profiles\p1"`}, true, `C:\Users\me\My Profiles\p1`, true},
		{"quoted separate", []string{"Code.exe", "--user-data-dir", `"C:\a b"`, `C:\proj`}, true, `C:\a b`, true},
		{"whole token quoted", []string{"Code.exe", `"--user-data-dir=C:\a b"`}, true, `C:\a b`, true},
		{"split until next flag", []string{"Code.exe", `--user-data-dir=C:\My`, "Profiles", "p1", "--reuse-window"}, true, `C:\My Profiles p1`, true},
		{"split open quote", []string{"Code.exe", "--user-data-dir", `"C:\My`, `Profiles"`, `C:\proj`}, true, `C:\My Profiles`, true},
		{"no flag", []string{"code", "--new-window"}, false, "", false},
		{"flag without value", []string{"code", "--user-data-dir"}, false, "", false},
		{"empty value", []string{"code", "--user-data-dir="}, false, "", false},
		{"prefix collision", []string{"code", "--user-data-dir-extra=/x"}, false, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractFlagValue(tt.args, flag, tt.split)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitCommandLine(t *testing.T) {
	line := `"C:\Program Files\Microsoft VS Code\Code.exe" --user-data-dir "C:\Users\me\p 1"  --new-window`
	assert.Equal(t, []string{
		`"C:\Program Files\Microsoft VS Code\Code.exe"`,
		"--user-data-dir",
		`"C:\Users\me\p 1"`,
		"--new-window",
	}, SplitCommandLine(line))
	assert.Empty(t, SplitCommandLine("   "))
}

func TestEnvValue(t *testing.T) {
	env := []string{"PATH=/usr/bin", "CODEX_HOME=/home/me/.codex-work", "CODEX_HOME_X=nope"}
	v, ok := EnvValue(env, "CODEX_HOME")
	assert.True(t, ok)
	assert.Equal(t, "/home/me/.codex-work", v)

	_, ok = EnvValue(env, "HOME")
	assert.False(t, ok)
}

func TestIsHelper(t *testing.T) {
	assert.True(t, IsHelper("/usr/share/code/code", []string{"/usr/share/code/code", "--type=renderer"}))
	assert.True(t, IsHelper("/Applications/Visual Studio Code.app/Contents/Frameworks/Code Helper (GPU).app/Contents/MacOS/Code Helper (GPU)", nil))
	assert.True(t, IsHelper(`C:\x\chrome_crashpad_handler.exe`, nil))
	assert.True(t, IsHelper("/opt/windsurf/chrome-sandbox", nil))
	assert.True(t, IsHelper(`C:\x\Code Renderer.exe`, nil))
	assert.True(t, IsHelper("/opt/kiro/kiro-gpu-process", nil))
	assert.True(t, IsHelper("/opt/kiro/utility-process", nil))
	assert.False(t, IsHelper("/usr/share/code/code", []string{"/usr/share/code/code", "--user-data-dir=/tmp/x"}))
}
