package target

import (
	"os"
	"regexp"
	"strings"

	"github.com/mitchellh/go-homedir"
)

func init() {
	Register(VSCode)
	Register(Windsurf)
	Register(Kiro)
	Register(Antigravity)
	Register(Codex)
}

// VSCode is Visual Studio Code signed in with a GitHub account.
var VSCode = &Target{
	Name:        "vscode",
	DisplayName: "Code",
	Executables: PerOS[[]string]{
		Darwin:  []string{"Electron", "Code"},
		Linux:   []string{"code"},
		Windows: []string{"Code.exe"},
	},
	Bundles: []string{"Visual Studio Code.app"},
	InstallPaths: PerOS[[]string]{
		Darwin: []string{
			"/Applications/Visual Studio Code.app",
			"~/Applications/Visual Studio Code.app",
		},
		Linux: []string{
			"/usr/share/code/code",
			"/usr/bin/code",
			"/snap/code/current/usr/share/code/code",
			"/opt/visual-studio-code/code",
		},
		Windows: []string{
			`%LOCALAPPDATA%\Programs\Microsoft VS Code\Code.exe`,
			`%PROGRAMFILES%\Microsoft VS Code\Code.exe`,
		},
	},
	DataDirFlag: "--user-data-dir",
	DataDirName: "Code",
	SafeStorage: SafeStorage{
		KeychainService: "Code Safe Storage",
		KeychainAccount: "Code Key",
		Application:     "code",
	},
	Auth: &AuthLayout{
		ExtensionID:        "vscode.github-authentication",
		ProviderID:         "github",
		SessionsSecretKey:  "github.auth",
		ServerURLSecretKey: "github.auth.serverUrl",
		AuthStatusKey:      "github.copilot.authStatus",
		DefaultServerURL:   "https://api.github.com",
		DefaultScopes:      []string{"read:user", "user:email", "repo", "workflow"},
		Consumers: []Consumer{
			{ID: "github.copilot-chat", Name: "GitHub Copilot Chat"},
			{ID: "github.copilot", Name: "GitHub Copilot"},
		},
	},
}

// Windsurf is the Codeium editor.
var Windsurf = &Target{
	Name:        "windsurf",
	DisplayName: "Windsurf",
	Executables: PerOS[[]string]{
		Darwin:  []string{"Electron", "Windsurf"},
		Linux:   []string{"windsurf"},
		Windows: []string{"Windsurf.exe"},
	},
	Bundles: []string{"Windsurf.app"},
	InstallPaths: PerOS[[]string]{
		Darwin: []string{"/Applications/Windsurf.app", "~/Applications/Windsurf.app"},
		Linux:  []string{"/usr/share/windsurf/windsurf", "/usr/bin/windsurf", "/opt/Windsurf/windsurf"},
		Windows: []string{
			`%LOCALAPPDATA%\Programs\Windsurf\Windsurf.exe`,
			`%PROGRAMFILES%\Windsurf\Windsurf.exe`,
		},
	},
	DataDirFlag: "--user-data-dir",
	DataDirName: "Windsurf",
	SafeStorage: SafeStorage{
		KeychainService: "Windsurf Safe Storage",
		KeychainAccount: "Windsurf Key",
		Application:     "windsurf",
	},
	Auth: &AuthLayout{
		ExtensionID:        "codeium.windsurf",
		ProviderID:         "codeium",
		SessionsSecretKey:  "windsurf_auth.sessions",
		ServerURLSecretKey: "windsurf_auth.apiServerUrl",
		AuthStatusKey:      "windsurfAuthStatus",
		DefaultServerURL:   "https://server.codeium.com",
		DefaultScopes:      []string{"openid", "profile", "email"},
		Consumers:          []Consumer{{ID: "codeium.windsurf", Name: "Windsurf"}},
	},
}

// Kiro is the AWS editor; its accounts carry a profile ARN.
var Kiro = &Target{
	Name:        "kiro",
	DisplayName: "Kiro",
	Executables: PerOS[[]string]{
		Darwin:  []string{"Electron", "Kiro"},
		Linux:   []string{"kiro"},
		Windows: []string{"Kiro.exe"},
	},
	Bundles: []string{"Kiro.app"},
	InstallPaths: PerOS[[]string]{
		Darwin:  []string{"/Applications/Kiro.app", "~/Applications/Kiro.app"},
		Linux:   []string{"/usr/share/kiro/kiro", "/usr/bin/kiro", "/opt/Kiro/kiro"},
		Windows: []string{`%LOCALAPPDATA%\Programs\Kiro\Kiro.exe`},
	},
	DataDirFlag: "--user-data-dir",
	DataDirName: "Kiro",
	SafeStorage: SafeStorage{
		KeychainService: "Kiro Safe Storage",
		KeychainAccount: "Kiro Key",
		Application:     "kiro",
	},
	Auth: &AuthLayout{
		ExtensionID:        "kiro.kiroagent",
		ProviderID:         "kiro",
		SessionsSecretKey:  "kiro.auth.sessions",
		ServerURLSecretKey: "kiro.auth.endpoint",
		AuthStatusKey:      "kiro.authStatus",
		DefaultServerURL:   "https://codewhisperer.us-east-1.amazonaws.com",
		DefaultScopes:      []string{"codewhisperer:completions", "codewhisperer:analysis", "codewhisperer:conversations"},
		Consumers:          []Consumer{{ID: "kiro.kiroagent", Name: "Kiro Agent"}},
	},
}

// Antigravity is the Google editor.
var Antigravity = &Target{
	Name:        "antigravity",
	DisplayName: "Antigravity",
	Executables: PerOS[[]string]{
		Darwin:  []string{"Electron", "Antigravity"},
		Linux:   []string{"antigravity"},
		Windows: []string{"Antigravity.exe"},
	},
	Bundles: []string{"Antigravity.app"},
	InstallPaths: PerOS[[]string]{
		Darwin:  []string{"/Applications/Antigravity.app", "~/Applications/Antigravity.app"},
		Linux:   []string{"/usr/share/antigravity/antigravity", "/usr/bin/antigravity"},
		Windows: []string{`%LOCALAPPDATA%\Programs\Antigravity\Antigravity.exe`},
	},
	DataDirFlag: "--user-data-dir",
	DataDirName: "Antigravity",
	SafeStorage: SafeStorage{
		KeychainService: "Antigravity Safe Storage",
		KeychainAccount: "Antigravity Key",
		Application:     "antigravity",
	},
	Auth: &AuthLayout{
		ExtensionID:        "google.antigravity",
		ProviderID:         "antigravity",
		SessionsSecretKey:  "antigravity.auth.sessions",
		ServerURLSecretKey: "antigravity.auth.serverUrl",
		AuthStatusKey:      "antigravityAuthStatus",
		DefaultServerURL:   "https://cloudcode-pa.googleapis.com",
		DefaultScopes: []string{
			"https://www.googleapis.com/auth/cloud-platform",
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Consumers: []Consumer{{ID: "google.antigravity", Name: "Antigravity"}},
	},
}

// Codex is distinguished by CODEX_HOME rather than a flag. It has no state
// database, so it supports lifecycle control only.
var Codex = &Target{
	Name:        "codex",
	DisplayName: "Codex",
	Executables: PerOS[[]string]{
		Darwin:  []string{"Codex"},
		Linux:   []string{"codex"},
		Windows: []string{"Codex.exe"},
	},
	Bundles: []string{"Codex.app"},
	InstallPaths: PerOS[[]string]{
		Darwin:  []string{"/Applications/Codex.app"},
		Linux:   []string{"/usr/bin/codex", "/usr/local/bin/codex"},
		Windows: []string{`%LOCALAPPDATA%\Programs\Codex\Codex.exe`},
	},
	HomeEnv:     "CODEX_HOME",
	HomeDirName: ".codex",
}

var winEnvRe = regexp.MustCompile(`%([A-Za-z_][A-Za-z0-9_()]*)%`)

// InstallCandidates returns the expanded install locations for goos.
func (t *Target) InstallCandidates(goos string) []string {
	var out []string
	for _, p := range t.InstallPaths.For(goos) {
		if goos == "windows" {
			missing := false
			p = winEnvRe.ReplaceAllStringFunc(p, func(m string) string {
				v := os.Getenv(strings.Trim(m, "%"))
				if v == "" {
					missing = true
				}
				return v
			})
			if missing {
				continue
			}
		}
		if expanded, err := homedir.Expand(p); err == nil {
			p = expanded
		}
		out = append(out, p)
	}
	return out
}
