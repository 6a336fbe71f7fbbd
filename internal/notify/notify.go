// Package notify shows desktop notifications when long running switches
// finish.
package notify

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/neboloop/switchyard/internal/logging"
)

const maxLen = 200

// Send displays a native OS notification. Missing notification tools are
// logged and otherwise ignored.
func Send(title, body string) {
	cmd := command(runtime.GOOS, title, body)
	if cmd == nil {
		return
	}
	if err := cmd.Run(); err != nil {
		logging.Debugf("[notify] %s: %v", cmd.Path, err)
	}
}

func command(goos, title, body string) *exec.Cmd {
	title, body = clip(title), clip(body)
	switch goos {
	case "darwin":
		script := fmt.Sprintf(`display notification %q with title %q`, body, title)
		return exec.Command("osascript", "-e", script)

	case "linux":
		return exec.Command("notify-send", "--app-name=switchyard", title, body)

	case "windows":
		ps := fmt.Sprintf(`
[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] > $null
$template = [Windows.UI.Notifications.ToastNotificationManager]::GetTemplateContent([Windows.UI.Notifications.ToastTemplateType]::ToastText02)
$text = $template.GetElementsByTagName('text')
$text.Item(0).AppendChild($template.CreateTextNode('%s')) > $null
$text.Item(1).AppendChild($template.CreateTextNode('%s')) > $null
[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier('Switchyard').Show([Windows.UI.Notifications.ToastNotification]::new($template))
`, psQuote(title), psQuote(body))
		return exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", ps)
	}
	return nil
}

// psQuote escapes s for a single-quoted PowerShell string.
func psQuote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func clip(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > maxLen {
		s = s[:maxLen] + "..."
	}
	return s
}
