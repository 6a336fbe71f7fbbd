// Package inject writes an account's session into an instance's state
// database so the editor starts up signed in.
package inject

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/neboloop/switchyard/internal/apperr"
	"github.com/neboloop/switchyard/internal/fsutil"
	"github.com/neboloop/switchyard/internal/identity"
	"github.com/neboloop/switchyard/internal/logging"
	"github.com/neboloop/switchyard/internal/safestorage"
	"github.com/neboloop/switchyard/internal/statedb"
	"github.com/neboloop/switchyard/internal/target"
)

// CipherFactory builds the safe-storage cipher for a data directory.
type CipherFactory func(t *target.Target, dir string) (safestorage.Cipher, error)

// Injector writes sessions for one target.
type Injector struct {
	t          *target.Target
	newCipher  CipherFactory
	hook       func(key string) error
	defaultDir string
	now        func() time.Time
}

// Option configures an Injector.
type Option func(*Injector)

// WithCipherFactory replaces the OS safe-storage backend.
func WithCipherFactory(f CipherFactory) Option {
	return func(in *Injector) { in.newCipher = f }
}

// WithWriteHook runs after each key is committed. A returned error aborts the
// injection at that point.
func WithWriteHook(fn func(key string) error) Option {
	return func(in *Injector) { in.hook = fn }
}

// WithDefaultDir sets the directory new instances are bootstrapped from.
func WithDefaultDir(dir string) Option {
	return func(in *Injector) { in.defaultDir = dir }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(in *Injector) { in.now = now }
}

// New returns an injector for t. Targets without an auth layout cannot be
// injected.
func New(t *target.Target, opts ...Option) (*Injector, error) {
	if t.Auth == nil {
		return nil, apperr.PlatformUnsupported("inject.New", t.DisplayName+" has no injectable auth layout")
	}
	in := &Injector{t: t, newCipher: safestorage.New, now: time.Now}
	for _, opt := range opts {
		opt(in)
	}
	if in.defaultDir == "" {
		if dir, err := t.DefaultDir(); err == nil {
			in.defaultDir = dir
		}
	}
	return in, nil
}

type sessionAccount struct {
	Label string `json:"label"`
	ID    string `json:"id"`
}

type session struct {
	ID          string         `json:"id"`
	AccessToken string         `json:"accessToken"`
	Account     sessionAccount `json:"account"`
	Scopes      []string       `json:"scopes"`
}

type usage struct {
	ExtensionID   string `json:"extensionId"`
	ExtensionName string `json:"extensionName"`
	LastUsed      int64  `json:"lastUsed"`
}

// SessionID is the session id written for an account. It is stable so
// consumers that remember a session keep it across switches.
func SessionID(accountID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("switchyard:session:"+accountID)).String()
}

// SecretKey is the ItemTable key of an extension secret.
func SecretKey(extensionID, key string) string {
	b, _ := json.Marshal(struct {
		ExtensionID string `json:"extensionId"`
		Key         string `json:"key"`
	}{extensionID, key})
	return "secret://" + string(b)
}

// Inject signs dir in as acct. The editor must not be running. Keys are
// written so that the selection marker lands last: a crash part-way leaves
// an instance that still reads as signed out.
func (in *Injector) Inject(ctx context.Context, dir string, acct identity.Account) error {
	layout := in.t.Auth
	if acct.AccessToken == "" {
		return apperr.InjectionFailed("account has no access token", nil)
	}

	if _, err := statedb.Bootstrap(ctx, dir, in.defaultDir); err != nil {
		return apperr.InjectionFailed("bootstrap state database", err)
	}
	if !samePath(dir, in.defaultDir) {
		if err := copyLocalState(dir, in.defaultDir); err != nil {
			return apperr.InjectionFailed("copy Local State", err)
		}
	}

	cipher, err := in.newCipher(in.t, dir)
	if err != nil {
		if apperr.Is(err, apperr.KindInjectionFailed) {
			return err
		}
		return apperr.InjectionFailed("safe storage unavailable", err)
	}

	db, err := statedb.OpenDir(dir)
	if err != nil {
		return apperr.InjectionFailed("open state database", err)
	}
	defer db.Close()

	w := &writer{db: db, cipher: cipher, hook: in.hook}
	now := in.now()
	sid := SessionID(acct.ID)
	label := acct.Label()
	scopes := acct.Scopes
	if len(scopes) == 0 {
		scopes = layout.DefaultScopes
	}
	accountID := acct.UserID
	if accountID == "" {
		accountID = acct.ID
	}

	sessionsKey := SecretKey(layout.ExtensionID, layout.SessionsSecretKey)
	current := session{
		ID:          sid,
		AccessToken: acct.AccessToken,
		Account:     sessionAccount{Label: label, ID: accountID},
		Scopes:      scopes,
	}
	previous, err := storedSessions(ctx, db, cipher, sessionsKey)
	if err != nil {
		return err
	}

	// Sessions the markers may still point at stay stored until the markers
	// move, then get pruned.
	kept := []session{current}
	for _, s := range previous {
		if s.ID != sid {
			kept = append(kept, s)
		}
	}
	sessions, err := json.Marshal(kept)
	if err != nil {
		return apperr.InjectionFailed("encode sessions", err)
	}
	if err := w.secret(ctx, sessionsKey, sessions); err != nil {
		return err
	}

	if layout.ServerURLSecretKey != "" {
		serverURL := acct.ServerURL
		if serverURL == "" {
			serverURL = layout.DefaultServerURL
		}
		if err := w.secret(ctx, SecretKey(layout.ExtensionID, layout.ServerURLSecretKey), []byte(serverURL)); err != nil {
			return err
		}
	}

	if len(layout.Consumers) > 0 {
		key := fmt.Sprintf("%s-%s-usages", layout.ProviderID, label)
		existing, _, err := db.Get(ctx, key)
		if err != nil {
			return apperr.InjectionFailed("read "+key, err)
		}
		if err := w.plain(ctx, key, mergeUsages(existing, layout.Consumers, now)); err != nil {
			return err
		}
	}

	if layout.AuthStatusKey != "" {
		existing, _, err := db.Get(ctx, layout.AuthStatusKey)
		if err != nil {
			return apperr.InjectionFailed("read "+layout.AuthStatusKey, err)
		}
		status, err := patchAuthStatus(existing, layout.ProviderID, sid, label, accountID, now)
		if err != nil {
			return apperr.InjectionFailed("encode auth status", err)
		}
		if err := w.plain(ctx, layout.AuthStatusKey, status); err != nil {
			return err
		}
	}

	for _, c := range layout.Consumers {
		if err := w.plain(ctx, MarkerKey(c.ID, layout.ProviderID, scopes), sid); err != nil {
			return err
		}
	}

	if len(kept) > 1 {
		pruned, err := json.Marshal([]session{current})
		if err != nil {
			return apperr.InjectionFailed("encode sessions", err)
		}
		if err := w.secret(ctx, sessionsKey, pruned); err != nil {
			return err
		}
	}

	logging.Infof("[inject] %s signed in as %s (%s)", dir, label, w.scheme)
	return nil
}

// MarkerKey is the session preference key a consumer reads to pick a session.
func MarkerKey(consumerID, providerID string, scopes []string) string {
	return consumerID + "-" + providerID + "-" + strings.Join(scopes, " ")
}

type writer struct {
	db     *statedb.DB
	cipher safestorage.Cipher
	hook   func(string) error
	scheme safestorage.Scheme
}

// secret encrypts value with the scheme the stored blob already uses, so the
// editor keeps reading it with the same key; new keys get the default.
func (w *writer) secret(ctx context.Context, key string, value []byte) error {
	scheme := w.cipher.DefaultScheme()
	if existing, ok, err := w.db.Get(ctx, key); err != nil {
		return apperr.InjectionFailed("read "+key, err)
	} else if ok {
		if blob, err := safestorage.DecodeBuffer(existing); err == nil {
			if s, err := safestorage.SchemeOf(blob); err == nil {
				scheme = s
			}
		}
	}

	blob, err := w.cipher.Encrypt(scheme, value)
	if err != nil {
		return apperr.InjectionFailed(fmt.Sprintf("encrypt %s with %s", key, scheme), err)
	}
	w.scheme = scheme
	return w.plain(ctx, key, safestorage.EncodeBuffer(blob))
}

func (w *writer) plain(ctx context.Context, key, value string) error {
	if err := w.db.Put(ctx, key, value); err != nil {
		return apperr.InjectionFailed("write "+key, err)
	}
	if w.hook != nil {
		if err := w.hook(key); err != nil {
			return apperr.InjectionFailed("interrupted after "+key, err)
		}
	}
	return nil
}

// storedSessions decrypts the sessions already written under key. A blob
// that cannot be read is treated as empty; the rewrite then reports the
// cipher problem.
func storedSessions(ctx context.Context, db *statedb.DB, c safestorage.Cipher, key string) ([]session, error) {
	raw, ok, err := db.Get(ctx, key)
	if err != nil {
		return nil, apperr.InjectionFailed("read "+key, err)
	}
	if !ok {
		return nil, nil
	}
	plain, _, err := open(c, raw)
	if err != nil {
		logging.Debugf("[inject] existing sessions unreadable: %v", err)
		return nil, nil
	}
	var sessions []session
	if err := json.Unmarshal(plain, &sessions); err != nil {
		logging.Debugf("[inject] discarding malformed sessions: %v", err)
		return nil, nil
	}
	return sessions, nil
}

// mergeUsages stamps every consumer as having just used the account and
// keeps usage entries of other extensions.
func mergeUsages(existing string, consumers []target.Consumer, now time.Time) string {
	var usages []usage
	if existing != "" {
		if err := json.Unmarshal([]byte(existing), &usages); err != nil {
			logging.Debugf("[inject] discarding unreadable usages: %v", err)
			usages = nil
		}
	}
	ms := now.UnixMilli()
	for _, c := range consumers {
		found := false
		for i := range usages {
			if usages[i].ExtensionID == c.ID {
				usages[i].ExtensionName = c.Name
				usages[i].LastUsed = ms
				found = true
			}
		}
		if !found {
			usages = append(usages, usage{ExtensionID: c.ID, ExtensionName: c.Name, LastUsed: ms})
		}
	}
	out, _ := json.Marshal(usages)
	return string(out)
}

// patchAuthStatus sets the signed-in fields and leaves any other field the
// extension keeps in the document alone.
func patchAuthStatus(existing, provider, sessionID, label, accountID string, now time.Time) (string, error) {
	doc := existing
	if !gjson.Valid(doc) || !gjson.Parse(doc).IsObject() {
		doc = "{}"
	}
	sets := []struct {
		path  string
		value any
	}{
		{"status", "signedIn"},
		{"provider", provider},
		{"sessionId", sessionID},
		{"account.label", label},
		{"account.id", accountID},
		{"updatedAt", now.UTC().Format(time.RFC3339)},
	}
	var err error
	for _, s := range sets {
		if doc, err = sjson.Set(doc, s.path, s.value); err != nil {
			return "", err
		}
	}
	return doc, nil
}

func copyLocalState(dir, defaultDir string) error {
	if defaultDir == "" {
		return nil
	}
	dst := safestorage.LocalStatePath(dir)
	if _, err := os.Stat(dst); err == nil {
		return nil
	}
	src := safestorage.LocalStatePath(defaultDir)
	if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return fsutil.CopyFile(src, dst)
}

func samePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return filepath.Clean(a) == filepath.Clean(b)
}
