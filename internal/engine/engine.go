// Package engine runs switch, launch, focus and stop requests against the
// instances of every target, serializing work per instance.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/neboloop/switchyard/internal/apperr"
	"github.com/neboloop/switchyard/internal/config"
	"github.com/neboloop/switchyard/internal/focus"
	"github.com/neboloop/switchyard/internal/identity"
	"github.com/neboloop/switchyard/internal/inject"
	"github.com/neboloop/switchyard/internal/instance"
	"github.com/neboloop/switchyard/internal/lifecycle"
	"github.com/neboloop/switchyard/internal/logging"
	"github.com/neboloop/switchyard/internal/proc"
	"github.com/neboloop/switchyard/internal/target"
)

// CredentialSource returns the stored account for an id.
type CredentialSource interface {
	Get(ctx context.Context, id string) (identity.Account, error)
}

// Injector signs an instance directory in.
type Injector interface {
	Inject(ctx context.Context, dir string, acct identity.Account) error
	Inspect(ctx context.Context, dir string) (inject.Session, error)
}

// Components are the per-target collaborators of the engine.
type Components struct {
	Store      *instance.Store
	Controller *lifecycle.Controller
	Injector   Injector // nil for targets without an auth layout
}

// Builder wires Components for a target.
type Builder func(t *target.Target) (*Components, error)

// Engine is safe for concurrent use.
type Engine struct {
	cfg     *config.Config
	creds   CredentialSource
	focuser focus.Focuser
	tracker *lifecycle.Tracker
	build   Builder

	mu    sync.Mutex
	comps map[string]*Components
	locks keyedMutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithFocuser replaces the OS window focuser.
func WithFocuser(f focus.Focuser) Option {
	return func(e *Engine) { e.focuser = f }
}

// WithTracker sets the tracker every target's controller reports to.
func WithTracker(t *lifecycle.Tracker) Option {
	return func(e *Engine) { e.tracker = t }
}

// WithBuilder replaces how per-target components are wired.
func WithBuilder(b Builder) Option {
	return func(e *Engine) { e.build = b }
}

// New returns an engine reading accounts from creds.
func New(cfg *config.Config, creds CredentialSource, opts ...Option) *Engine {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	e := &Engine{
		cfg:     cfg,
		creds:   creds,
		focuser: focus.New(),
		tracker: lifecycle.NewTracker(),
		comps:   make(map[string]*Components),
	}
	e.build = e.systemComponents
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Tracker is shared by the controllers of every target this engine builds.
func (e *Engine) Tracker() *lifecycle.Tracker { return e.tracker }

func (e *Engine) systemComponents(t *target.Target) (*Components, error) {
	store, err := instance.NewStore(e.cfg.DataDir, t)
	if err != nil {
		return nil, err
	}
	c := &Components{
		Store:      store,
		Controller: lifecycle.NewController(proc.NewRegistry(t), e.cfg, lifecycle.WithTracker(e.tracker)),
	}
	if t.Auth != nil {
		in, err := inject.New(t, inject.WithDefaultDir(store.DefaultDir()))
		if err != nil {
			return nil, err
		}
		c.Injector = in
	}
	return c, nil
}

// Components returns the wiring of a target by name, building it once.
func (e *Engine) Components(name string) (*Components, error) {
	t, err := target.Get(name)
	if err != nil {
		return nil, apperr.E(apperr.Op("engine.Components"), apperr.KindNotFound, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.comps[t.Name]; ok {
		return c, nil
	}
	c, err := e.build(t)
	if err != nil {
		return nil, err
	}
	e.comps[t.Name] = c
	return c, nil
}

// launchDir is what the controller and registry take: "" for the default.
func launchDir(ref instance.Ref) string {
	if ref.Default {
		return ""
	}
	return ref.Dir
}

func (e *Engine) open(ctx context.Context, targetName, id string) (*Components, instance.Ref, func(), error) {
	c, err := e.Components(targetName)
	if err != nil {
		return nil, instance.Ref{}, nil, err
	}
	ref, err := c.Store.Resolve(ctx, id)
	if err != nil {
		return nil, instance.Ref{}, nil, err
	}
	unlock := e.locks.lock(targetName + "/" + ref.ID)
	// Re-read under the lock; a concurrent request may have changed it.
	if ref, err = c.Store.Resolve(ctx, id); err != nil {
		unlock()
		return nil, instance.Ref{}, nil, err
	}
	return c, ref, unlock, nil
}

// Switch restarts an instance signed in as its bound account: stop it if it
// runs, inject the account, start it again. Returns the new pid.
func (e *Engine) Switch(ctx context.Context, targetName, id string) (int, error) {
	c, ref, unlock, err := e.open(ctx, targetName, id)
	if err != nil {
		return 0, err
	}
	defer unlock()

	var acct identity.Account
	if ref.BoundAccountID != "" {
		if c.Injector == nil {
			return 0, apperr.PlatformUnsupported("engine.Switch", targetName+" accounts cannot be injected")
		}
		if acct, err = e.creds.Get(ctx, ref.BoundAccountID); err != nil {
			return 0, fmt.Errorf("bound account of %s: %w", ref.Name, err)
		}
	}

	if err := e.stopRef(ctx, c, ref); err != nil {
		return 0, err
	}

	if ref.BoundAccountID != "" {
		if err := c.Injector.Inject(ctx, ref.Dir, acct); err != nil {
			return 0, err
		}
	}

	pid, err := c.Controller.Start(ctx, lifecycle.StartRequest{Dir: launchDir(ref), ExtraArgs: ref.ExtraArgs, NewWindow: true})
	if err != nil {
		return 0, err
	}
	if err := c.Store.RecordLaunch(ctx, ref.ID, pid); err != nil {
		logging.Warnf("[engine] record launch of %s: %v", ref.Name, err)
	}
	logging.Infof("[engine] switched %s %q to %s (pid %d)", targetName, ref.Name, acct.Label(), pid)
	return pid, nil
}

// Launch starts an instance, or focuses it when it already runs.
func (e *Engine) Launch(ctx context.Context, targetName, id string) (int, error) {
	c, ref, unlock, err := e.open(ctx, targetName, id)
	if err != nil {
		return 0, err
	}
	defer unlock()

	pid, running, err := c.Controller.Registry().Resolve(ctx, ref.LastPID, launchDir(ref))
	if err != nil {
		return 0, err
	}
	if running {
		return pid, e.focusRunning(ctx, c, ref, pid)
	}
	return e.start(ctx, c, ref, true)
}

// Focus brings a running instance forward. When no window can be activated
// the editor is asked to reuse its window, which raises it; an instance
// that is not running is started.
func (e *Engine) Focus(ctx context.Context, targetName, id string) (int, error) {
	c, ref, unlock, err := e.open(ctx, targetName, id)
	if err != nil {
		return 0, err
	}
	defer unlock()

	pid, running, err := c.Controller.Registry().Resolve(ctx, ref.LastPID, launchDir(ref))
	if err != nil {
		return 0, err
	}
	if !running {
		return e.start(ctx, c, ref, false)
	}
	return pid, e.focusRunning(ctx, c, ref, pid)
}

func (e *Engine) focusRunning(ctx context.Context, c *Components, ref instance.Ref, pid int) error {
	err := e.focuser.Focus(ctx, pid)
	if err == nil || !apperr.Is(err, apperr.KindFocusFailed) && !apperr.Is(err, apperr.KindPlatformUnsupported) {
		return err
	}
	logging.Debugf("[engine] focus pid=%d failed, reusing window: %v", pid, err)
	_, err = c.Controller.Start(ctx, lifecycle.StartRequest{Dir: launchDir(ref), ExtraArgs: ref.ExtraArgs})
	return err
}

func (e *Engine) start(ctx context.Context, c *Components, ref instance.Ref, newWindow bool) (int, error) {
	pid, err := c.Controller.Start(ctx, lifecycle.StartRequest{Dir: launchDir(ref), ExtraArgs: ref.ExtraArgs, NewWindow: newWindow})
	if err != nil {
		return 0, err
	}
	if err := c.Store.RecordLaunch(ctx, ref.ID, pid); err != nil {
		logging.Warnf("[engine] record launch of %s: %v", ref.Name, err)
	}
	return pid, nil
}

// Stop stops an instance if it runs.
func (e *Engine) Stop(ctx context.Context, targetName, id string) error {
	c, ref, unlock, err := e.open(ctx, targetName, id)
	if err != nil {
		return err
	}
	defer unlock()
	return e.stopRef(ctx, c, ref)
}

func (e *Engine) stopRef(ctx context.Context, c *Components, ref instance.Ref) error {
	pid, running, err := c.Controller.Registry().Resolve(ctx, ref.LastPID, launchDir(ref))
	if err != nil {
		return err
	}
	if !running {
		return nil
	}
	return c.Controller.StopWithRetry(ctx, pid, e.cfg.StopTimeout)
}

// CloseAll stops the default instance and every managed one.
func (e *Engine) CloseAll(ctx context.Context, targetName string) error {
	c, err := e.Components(targetName)
	if err != nil {
		return err
	}
	refs, err := c.Store.Refs(ctx)
	if err != nil {
		return err
	}

	keys := make([]string, len(refs))
	dirs := make([]string, len(refs))
	for i, ref := range refs {
		keys[i] = targetName + "/" + ref.ID
		dirs[i] = launchDir(ref)
	}
	sort.Strings(keys)
	for _, k := range keys {
		defer e.locks.lock(k)()
	}
	return c.Controller.CloseMany(ctx, dirs, e.cfg.StopTimeout)
}

// SwitchResult is the outcome of one switch in SwitchMany.
type SwitchResult struct {
	ID  string
	PID int
	Err error
}

// SwitchMany switches several instances through the worker pool. Every
// switch runs to completion; the returned error joins the failures.
func (e *Engine) SwitchMany(ctx context.Context, targetName string, ids []string) ([]SwitchResult, error) {
	results := make([]SwitchResult, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	workers := e.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	g.SetLimit(workers)

	for i, id := range ids {
		g.Go(func() error {
			pid, err := e.Switch(gctx, targetName, id)
			results[i] = SwitchResult{ID: id, PID: pid, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.ID, r.Err))
		}
	}
	return results, errors.Join(errs...)
}

// Status is an instance with its running state.
type Status struct {
	instance.Ref
	PID     int
	Running bool
	State   lifecycle.State
}

// Status lists every instance of a target with the pid it runs as. One
// process scan serves all instances.
func (e *Engine) Status(ctx context.Context, targetName string) ([]Status, error) {
	c, err := e.Components(targetName)
	if err != nil {
		return nil, err
	}
	refs, err := c.Store.Refs(ctx)
	if err != nil {
		return nil, err
	}
	reg := c.Controller.Registry()
	entries, err := reg.Scan(ctx)
	if err != nil {
		return nil, err
	}
	defaultDir, err := reg.DefaultDir()
	if err != nil {
		return nil, err
	}

	out := make([]Status, len(refs))
	for i, ref := range refs {
		dir := defaultDir
		if !ref.Default {
			dir = reg.Normalize(ref.Dir)
		}
		s := Status{Ref: ref}
		if ref.LastPID > 0 && reg.Alive(ref.LastPID) {
			s.PID, s.Running = ref.LastPID, true
		} else if pid, ok := proc.Match(entries, dir, defaultDir); ok {
			s.PID, s.Running = pid, true
		}
		s.State, _ = c.Controller.Tracker().State(dir)
		out[i] = s
	}
	return out, nil
}

// Inspect reports who an instance is signed in as.
func (e *Engine) Inspect(ctx context.Context, targetName, id string) (inject.Session, error) {
	c, err := e.Components(targetName)
	if err != nil {
		return inject.Session{}, err
	}
	if c.Injector == nil {
		return inject.Session{}, apperr.PlatformUnsupported("engine.Inspect", targetName+" has no injectable auth layout")
	}
	ref, err := c.Store.Resolve(ctx, id)
	if err != nil {
		return inject.Session{}, err
	}
	return c.Injector.Inspect(ctx, ref.Dir)
}
