// Package instance persists the managed instances of each target.
package instance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/neboloop/switchyard/internal/apperr"
	"github.com/neboloop/switchyard/internal/defaults"
	"github.com/neboloop/switchyard/internal/fsutil"
	"github.com/neboloop/switchyard/internal/logging"
	"github.com/neboloop/switchyard/internal/proc"
	"github.com/neboloop/switchyard/internal/target"
)

// DefaultID addresses the editor's own data directory.
const DefaultID = "default"

// IsDefault reports whether id names the implicit default instance.
func IsDefault(id string) bool {
	return id == "" || strings.EqualFold(id, DefaultID)
}

// Profile is one managed instance.
type Profile struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	UserDataDir    string    `json:"user_data_dir"`
	ExtraArgs      string    `json:"extra_args,omitempty"`
	BoundAccountID string    `json:"bound_account_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	LastLaunchedAt time.Time `json:"last_launched_at,omitzero"`
	LastPID        int       `json:"last_pid,omitempty"`
}

// DefaultSettings are the stored settings of the default instance.
type DefaultSettings struct {
	BoundAccountID string    `json:"bound_account_id,omitempty"`
	ExtraArgs      string    `json:"extra_args,omitempty"`
	LastPID        int       `json:"last_pid,omitempty"`
	LastLaunchedAt time.Time `json:"last_launched_at,omitzero"`
}

// Ref is an instance as the engine sees it, default or managed.
type Ref struct {
	ID             string
	Name           string
	Dir            string
	ExtraArgs      string
	BoundAccountID string
	LastPID        int
	Default        bool
}

type document struct {
	DefaultSettings DefaultSettings `json:"default_settings"`
	Instances       []Profile       `json:"instances"`
}

// CreateRequest describes a new instance. UserDataDir defaults to a fresh
// directory under the profiles dir; CopyFrom names an instance (or
// "default") whose directory seeds the new one.
type CreateRequest struct {
	Name           string
	UserDataDir    string
	ExtraArgs      string
	BoundAccountID string
	CopyFrom       string
}

// Store is the instance file of one target.
type Store struct {
	t           *target.Target
	path        string
	profilesDir string
	defaultDir  string
	now         func() time.Time
	copyDir     func(src, dst string) error

	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithDefaultDir overrides the target's default data directory.
func WithDefaultDir(dir string) Option {
	return func(s *Store) { s.defaultDir = dir }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore opens the instance file of t under dataDir.
func NewStore(dataDir string, t *target.Target, opts ...Option) (*Store, error) {
	s := &Store{
		t:           t,
		path:        filepath.Join(defaults.InstancesDir(dataDir), t.Name+".json"),
		profilesDir: filepath.Join(defaults.ProfilesDir(dataDir), t.Name),
		now:         time.Now,
		copyDir:     fsutil.CopyDir,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.defaultDir == "" {
		dir, err := t.DefaultDir()
		if err != nil {
			return nil, err
		}
		s.defaultDir = dir
	}
	return s, nil
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Target returns the target the store belongs to.
func (s *Store) Target() *target.Target { return s.t }

// DefaultDir returns the default instance's data directory.
func (s *Store) DefaultDir() string { return s.defaultDir }

// List returns the managed instances in creation order.
func (s *Store) List(ctx context.Context) ([]Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	return doc.Instances, nil
}

// Get returns a managed instance by id.
func (s *Store) Get(ctx context.Context, id string) (Profile, error) {
	profiles, err := s.List(ctx)
	if err != nil {
		return Profile{}, err
	}
	i := slices.IndexFunc(profiles, func(p Profile) bool { return p.ID == id })
	if i < 0 {
		return Profile{}, apperr.NotFound("instance.Get", "instance", id)
	}
	return profiles[i], nil
}

// Resolve returns id as a Ref; the empty id and "default" give the default
// instance.
func (s *Store) Resolve(ctx context.Context, id string) (Ref, error) {
	if IsDefault(id) {
		d, err := s.Defaults(ctx)
		if err != nil {
			return Ref{}, err
		}
		return Ref{
			ID: DefaultID, Name: s.t.DisplayName + " (default)", Dir: s.defaultDir,
			ExtraArgs: d.ExtraArgs, BoundAccountID: d.BoundAccountID, LastPID: d.LastPID, Default: true,
		}, nil
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return Ref{}, err
	}
	return Ref{
		ID: p.ID, Name: p.Name, Dir: p.UserDataDir,
		ExtraArgs: p.ExtraArgs, BoundAccountID: p.BoundAccountID, LastPID: p.LastPID,
	}, nil
}

// Refs returns the default instance followed by every managed one.
func (s *Store) Refs(ctx context.Context) ([]Ref, error) {
	def, err := s.Resolve(ctx, DefaultID)
	if err != nil {
		return nil, err
	}
	profiles, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	refs := []Ref{def}
	for _, p := range profiles {
		refs = append(refs, Ref{
			ID: p.ID, Name: p.Name, Dir: p.UserDataDir,
			ExtraArgs: p.ExtraArgs, BoundAccountID: p.BoundAccountID, LastPID: p.LastPID,
		})
	}
	return refs, nil
}

// Create adds an instance. Its name and directory must be unique within the
// target, and the directory must not be the default one.
func (s *Store) Create(ctx context.Context, req CreateRequest) (Profile, error) {
	const op apperr.Op = "instance.Create"
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Profile{}, apperr.Invalid(op, "instance name is required")
	}

	p := Profile{
		ID:             uuid.NewString(),
		Name:           name,
		ExtraArgs:      strings.TrimSpace(req.ExtraArgs),
		BoundAccountID: req.BoundAccountID,
		CreatedAt:      s.now().UTC(),
	}
	p.UserDataDir = strings.TrimSpace(req.UserDataDir)
	if p.UserDataDir == "" {
		p.UserDataDir = filepath.Join(s.profilesDir, p.ID)
	}
	p.UserDataDir = proc.Normalize(p.UserDataDir)

	// The directory is filled outside the store lock; uniqueness is checked
	// again on commit.
	src, err := s.precheck(op, p, req.CopyFrom)
	if err != nil {
		return Profile{}, err
	}

	_, statErr := os.Stat(p.UserDataDir)
	existed := statErr == nil
	discard := func() {
		if !existed {
			os.RemoveAll(p.UserDataDir)
		}
	}
	if err := os.MkdirAll(p.UserDataDir, 0o700); err != nil {
		return Profile{}, fmt.Errorf("create instance directory: %w", err)
	}
	if src != "" {
		if err := s.copyDir(src, p.UserDataDir); err != nil {
			discard()
			return Profile{}, fmt.Errorf("copy %s: %w", src, err)
		}
	}

	err = s.update(ctx, func(doc *document) error {
		if err := s.checkUnique(op, doc, p.ID, p.Name, p.UserDataDir); err != nil {
			return err
		}
		doc.Instances = append(doc.Instances, p)
		return nil
	})
	if err != nil {
		discard()
		return Profile{}, err
	}
	logging.Infof("[instance] created %s %q at %s", s.t.Name, p.Name, p.UserDataDir)
	return p, nil
}

func (s *Store) precheck(op apperr.Op, p Profile, copyFrom string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return "", err
	}
	if err := s.checkUnique(op, &doc, p.ID, p.Name, p.UserDataDir); err != nil {
		return "", err
	}
	if copyFrom == "" {
		return "", nil
	}
	return s.dirOf(&doc, copyFrom)
}

// Rename changes an instance's display name.
func (s *Store) Rename(ctx context.Context, id, name string) error {
	const op apperr.Op = "instance.Rename"
	name = strings.TrimSpace(name)
	if name == "" {
		return apperr.Invalid(op, "instance name is required")
	}
	return s.update(ctx, func(doc *document) error {
		p, err := find(doc, op, id)
		if err != nil {
			return err
		}
		if err := s.checkUnique(op, doc, id, name, p.UserDataDir); err != nil {
			return err
		}
		p.Name = name
		return nil
	})
}

// SetExtraArgs replaces the extra launch arguments of id.
func (s *Store) SetExtraArgs(ctx context.Context, id, args string) error {
	args = strings.TrimSpace(args)
	if IsDefault(id) {
		return s.UpdateDefaults(ctx, func(d *DefaultSettings) { d.ExtraArgs = args })
	}
	return s.update(ctx, func(doc *document) error {
		p, err := find(doc, "instance.SetExtraArgs", id)
		if err != nil {
			return err
		}
		p.ExtraArgs = args
		return nil
	})
}

// Bind sets the account injected into id on switch. An empty accountID
// unbinds.
func (s *Store) Bind(ctx context.Context, id, accountID string) error {
	if IsDefault(id) {
		return s.UpdateDefaults(ctx, func(d *DefaultSettings) { d.BoundAccountID = accountID })
	}
	return s.update(ctx, func(doc *document) error {
		p, err := find(doc, "instance.Bind", id)
		if err != nil {
			return err
		}
		p.BoundAccountID = accountID
		return nil
	})
}

// RecordLaunch remembers the pid of a launch so the next lookup can skip a
// process scan.
func (s *Store) RecordLaunch(ctx context.Context, id string, pid int) error {
	now := s.now().UTC()
	if IsDefault(id) {
		return s.UpdateDefaults(ctx, func(d *DefaultSettings) {
			d.LastPID = pid
			d.LastLaunchedAt = now
		})
	}
	return s.update(ctx, func(doc *document) error {
		p, err := find(doc, "instance.RecordLaunch", id)
		if err != nil {
			return err
		}
		p.LastPID = pid
		p.LastLaunchedAt = now
		return nil
	})
}

// Delete removes an instance and its data directory. The default instance
// and anything pointing at its directory cannot be deleted.
func (s *Store) Delete(ctx context.Context, id string) error {
	const op apperr.Op = "instance.Delete"
	if IsDefault(id) {
		return apperr.Invalid(op, "the default instance cannot be deleted")
	}
	var dir string
	err := s.update(ctx, func(doc *document) error {
		i := slices.IndexFunc(doc.Instances, func(p Profile) bool { return p.ID == id })
		if i < 0 {
			return apperr.NotFound(op, "instance", id)
		}
		dir = doc.Instances[i].UserDataDir
		if s.sameDir(dir, s.defaultDir) {
			return apperr.Invalid(op, "refusing to delete the default data directory "+dir)
		}
		doc.Instances = slices.Delete(doc.Instances, i, i+1)
		return nil
	})
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove %s: %w", dir, err)
	}
	logging.Infof("[instance] deleted %s %s (%s)", s.t.Name, id, dir)
	return nil
}

// Defaults returns the default instance's settings.
func (s *Store) Defaults(ctx context.Context) (DefaultSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return DefaultSettings{}, err
	}
	return doc.DefaultSettings, nil
}

// UpdateDefaults applies fn to the default instance's settings.
func (s *Store) UpdateDefaults(ctx context.Context, fn func(*DefaultSettings)) error {
	return s.update(ctx, func(doc *document) error {
		fn(&doc.DefaultSettings)
		return nil
	})
}

// RebindAccounts rewrites bindings after accounts were merged, old id to
// new id. Reports how many bindings changed.
func (s *Store) RebindAccounts(ctx context.Context, merged map[string]string) (int, error) {
	if len(merged) == 0 {
		return 0, nil
	}
	n := 0
	err := s.update(ctx, func(doc *document) error {
		if to, ok := merged[doc.DefaultSettings.BoundAccountID]; ok {
			doc.DefaultSettings.BoundAccountID = to
			n++
		}
		for i := range doc.Instances {
			if to, ok := merged[doc.Instances[i].BoundAccountID]; ok {
				doc.Instances[i].BoundAccountID = to
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s *Store) update(ctx context.Context, fn func(*document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := fsutil.Lock(ctx, s.path)
	if err != nil {
		return err
	}
	defer unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if err := fn(&doc); err != nil {
		return err
	}
	return fsutil.AtomicWriteJSON(s.path, doc, 0o600)
}

func (s *Store) read() (document, error) {
	var doc document
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("read instances: %w", err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, apperr.StoreCorrupted(s.path, err)
	}
	return doc, nil
}

func (s *Store) checkUnique(op apperr.Op, doc *document, id, name, dir string) error {
	if s.sameDir(dir, s.defaultDir) {
		return apperr.Conflict(op, fmt.Sprintf("%s is the default data directory", dir))
	}
	for _, p := range doc.Instances {
		if p.ID == id {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(p.Name), name) {
			return apperr.Conflict(op, fmt.Sprintf("an instance named %q already exists", p.Name))
		}
		if s.sameDir(p.UserDataDir, dir) {
			return apperr.Conflict(op, fmt.Sprintf("instance %q already uses %s", p.Name, dir))
		}
	}
	return nil
}

func (s *Store) dirOf(doc *document, id string) (string, error) {
	if IsDefault(id) {
		return s.defaultDir, nil
	}
	p, err := find(doc, "instance.Create", id)
	if err != nil {
		return "", err
	}
	return p.UserDataDir, nil
}

func (s *Store) sameDir(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return proc.Normalize(a) == proc.Normalize(b)
}

func find(doc *document, op apperr.Op, id string) (*Profile, error) {
	for i := range doc.Instances {
		if doc.Instances[i].ID == id {
			return &doc.Instances[i], nil
		}
	}
	return nil, apperr.NotFound(op, "instance", id)
}
