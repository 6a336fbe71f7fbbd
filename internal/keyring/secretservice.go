package keyring

import (
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	secretsDest    = "org.freedesktop.secrets"
	secretsPath    = dbus.ObjectPath("/org/freedesktop/secrets")
	serviceIface   = "org.freedesktop.Secret.Service"
	itemIface      = "org.freedesktop.Secret.Item"
	sessionIface   = "org.freedesktop.Secret.Session"
	noPrompt       = dbus.ObjectPath("/")
	plainAlgorithm = "plain"
)

// ErrLocked is returned when the matching item sits in a locked collection
// that would need an interactive unlock prompt.
var ErrLocked = errors.New("secret service collection is locked")

// secret mirrors the Secret Service (oayays) struct.
type secret struct {
	Session     dbus.ObjectPath
	Parameters  []byte
	Value       []byte
	ContentType string
}

// LookupSecret searches the freedesktop Secret Service on the session bus
// for an item carrying all attrs and returns its value. Chromium-based
// editors store their os_crypt password under {"application": "<app>"}.
func LookupSecret(attrs map[string]string) (string, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return "", fmt.Errorf("session bus: %w", err)
	}
	svc := conn.Object(secretsDest, secretsPath)

	var unlocked, locked []dbus.ObjectPath
	if err := svc.Call(serviceIface+".SearchItems", 0, attrs).Store(&unlocked, &locked); err != nil {
		return "", fmt.Errorf("search items: %w", err)
	}
	items := unlocked
	if len(items) == 0 && len(locked) > 0 {
		var prompt dbus.ObjectPath
		if err := svc.Call(serviceIface+".Unlock", 0, locked).Store(&items, &prompt); err != nil {
			return "", fmt.Errorf("unlock: %w", err)
		}
		if len(items) == 0 && prompt != noPrompt {
			return "", ErrLocked
		}
	}
	if len(items) == 0 {
		return "", ErrNotFound
	}

	var (
		output  dbus.Variant
		session dbus.ObjectPath
	)
	if err := svc.Call(serviceIface+".OpenSession", 0, plainAlgorithm, dbus.MakeVariant("")).Store(&output, &session); err != nil {
		return "", fmt.Errorf("open session: %w", err)
	}
	defer conn.Object(secretsDest, session).Call(sessionIface+".Close", 0)

	var s secret
	if err := conn.Object(secretsDest, items[0]).Call(itemIface+".GetSecret", 0, session).Store(&s); err != nil {
		return "", fmt.Errorf("get secret: %w", err)
	}
	return string(s.Value), nil
}
