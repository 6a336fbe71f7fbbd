package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/neboloop/switchyard/internal/apperr"
	"github.com/neboloop/switchyard/internal/credential"
	"github.com/neboloop/switchyard/internal/fsutil"
)

const storeVersion = 1

type document struct {
	Version  int       `json:"version"`
	Accounts []Account `json:"accounts"`
}

// FileStore keeps accounts in a single JSON file. Token fields are sealed
// with the credential master key on write and opened on read.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. The file is created on the
// first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// List returns every account, tokens decrypted.
func (s *FileStore) List(ctx context.Context) ([]Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Get returns one account by id.
func (s *FileStore) Get(ctx context.Context, id string) (Account, error) {
	accounts, err := s.List(ctx)
	if err != nil {
		return Account{}, err
	}
	i := slices.IndexFunc(accounts, func(a Account) bool { return a.ID == id })
	if i < 0 {
		return Account{}, apperr.NotFound("identity.Get", "account", id)
	}
	return accounts[i], nil
}

// Save inserts or replaces a by id.
func (s *FileStore) Save(ctx context.Context, a Account) error {
	if a.ID == "" {
		return apperr.Invalid("identity.Save", "account has no id")
	}
	return s.update(ctx, func(accounts []Account) ([]Account, error) {
		if i := slices.IndexFunc(accounts, func(x Account) bool { return x.ID == a.ID }); i >= 0 {
			accounts[i] = a
			return accounts, nil
		}
		return append(accounts, a), nil
	})
}

// Delete removes an account by id.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	return s.update(ctx, func(accounts []Account) ([]Account, error) {
		i := slices.IndexFunc(accounts, func(x Account) bool { return x.ID == id })
		if i < 0 {
			return nil, apperr.NotFound("identity.Delete", "account", id)
		}
		return slices.Delete(accounts, i, i+1), nil
	})
}

func (s *FileStore) update(ctx context.Context, fn func([]Account) ([]Account, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := fsutil.Lock(ctx, s.path)
	if err != nil {
		return err
	}
	defer unlock()

	accounts, err := s.read()
	if err != nil {
		return err
	}
	accounts, err = fn(accounts)
	if err != nil {
		return err
	}
	return s.write(accounts)
}

func (s *FileStore) read() ([]Account, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read accounts: %w", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperr.StoreCorrupted(s.path, err)
	}
	for i := range doc.Accounts {
		a := &doc.Accounts[i]
		if err := credential.Open(&a.AccessToken, &a.RefreshToken); err != nil {
			return nil, fmt.Errorf("account %s: %w", a.ID, err)
		}
	}
	return doc.Accounts, nil
}

func (s *FileStore) write(accounts []Account) error {
	doc := document{Version: storeVersion, Accounts: make([]Account, len(accounts))}
	for i, a := range accounts {
		a = a.Clone()
		if _, err := credential.Seal(&a.AccessToken, &a.RefreshToken); err != nil {
			return fmt.Errorf("account %s: %w", a.ID, err)
		}
		doc.Accounts[i] = a
	}
	return fsutil.AtomicWriteJSON(s.path, doc, 0o600)
}

// MemStore is an in-memory Store.
type MemStore struct {
	mu       sync.Mutex
	accounts []Account
}

// NewMemStore returns a store seeded with accounts.
func NewMemStore(accounts ...Account) *MemStore {
	m := &MemStore{}
	for _, a := range accounts {
		m.accounts = append(m.accounts, a.Clone())
	}
	return m
}

func (m *MemStore) List(ctx context.Context) ([]Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Account, len(m.accounts))
	for i, a := range m.accounts {
		out[i] = a.Clone()
	}
	return out, nil
}

func (m *MemStore) Get(ctx context.Context, id string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.ID == id {
			return a.Clone(), nil
		}
	}
	return Account{}, apperr.NotFound("identity.Get", "account", id)
}

func (m *MemStore) Save(ctx context.Context, a Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.accounts {
		if m.accounts[i].ID == a.ID {
			m.accounts[i] = a.Clone()
			return nil
		}
	}
	m.accounts = append(m.accounts, a.Clone())
	return nil
}

func (m *MemStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := slices.IndexFunc(m.accounts, func(a Account) bool { return a.ID == id })
	if i < 0 {
		return apperr.NotFound("identity.Delete", "account", id)
	}
	m.accounts = slices.Delete(m.accounts, i, i+1)
	return nil
}
