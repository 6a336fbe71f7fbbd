package inject

import (
	"context"
	"encoding/json"
	"errors"
	"os"

	"github.com/tidwall/gjson"

	"github.com/neboloop/switchyard/internal/apperr"
	"github.com/neboloop/switchyard/internal/safestorage"
	"github.com/neboloop/switchyard/internal/statedb"
)

// Session describes who an instance is signed in as.
type Session struct {
	SignedIn  bool
	SessionID string
	Label     string
	AccountID string
	Scopes    []string
	ServerURL string
	Scheme    safestorage.Scheme
	Status    string // Auth-status "status" field, if any
}

// Inspect decrypts the stored sessions of dir. An instance without a state
// database or without sessions reports SignedIn false.
func (in *Injector) Inspect(ctx context.Context, dir string) (Session, error) {
	layout := in.t.Auth
	if _, err := os.Stat(statedb.Path(dir)); errors.Is(err, os.ErrNotExist) {
		return Session{}, nil
	}

	db, err := statedb.OpenDir(dir)
	if err != nil {
		return Session{}, err
	}
	defer db.Close()

	var out Session
	if layout.AuthStatusKey != "" {
		if v, ok, err := db.Get(ctx, layout.AuthStatusKey); err != nil {
			return Session{}, err
		} else if ok {
			out.Status = gjson.Get(v, "status").String()
		}
	}

	raw, ok, err := db.Get(ctx, SecretKey(layout.ExtensionID, layout.SessionsSecretKey))
	if err != nil || !ok {
		return out, err
	}

	cipher, err := in.newCipher(in.t, dir)
	if err != nil {
		return out, err
	}
	plain, scheme, err := open(cipher, raw)
	if err != nil {
		return out, apperr.E(apperr.Op("inject.Inspect"), "decrypt sessions", err)
	}
	var sessions []session
	if err := json.Unmarshal(plain, &sessions); err != nil {
		return out, apperr.E(apperr.Op("inject.Inspect"), "decode sessions", err)
	}
	if len(sessions) == 0 {
		return out, nil
	}

	s := sessions[0]
	out.SignedIn = true
	out.SessionID = s.ID
	out.Label = s.Account.Label
	out.AccountID = s.Account.ID
	out.Scopes = s.Scopes
	out.Scheme = scheme

	if layout.ServerURLSecretKey != "" {
		if v, ok, err := db.Get(ctx, SecretKey(layout.ExtensionID, layout.ServerURLSecretKey)); err == nil && ok {
			if url, _, err := open(cipher, v); err == nil {
				out.ServerURL = string(url)
			}
		}
	}
	return out, nil
}

func open(c safestorage.Cipher, stored string) ([]byte, safestorage.Scheme, error) {
	blob, err := safestorage.DecodeBuffer(stored)
	if err != nil {
		return nil, "", err
	}
	scheme, err := safestorage.SchemeOf(blob)
	if err != nil {
		return nil, "", err
	}
	plain, err := c.Decrypt(blob)
	return plain, scheme, err
}
