package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neboloop/switchyard/internal/apperr"
	"github.com/neboloop/switchyard/internal/config"
	"github.com/neboloop/switchyard/internal/identity"
	"github.com/neboloop/switchyard/internal/inject"
	"github.com/neboloop/switchyard/internal/instance"
	"github.com/neboloop/switchyard/internal/lifecycle"
	"github.com/neboloop/switchyard/internal/proc"
	"github.com/neboloop/switchyard/internal/target"
)

const codeExe = "/usr/share/code/code"

// fakeOS is a process table, lister and spawner in one.
type fakeOS struct {
	mu       sync.Mutex
	next     int
	procs    map[int]string // pid -> data dir, "" for the default
	stubborn map[int]bool
	spawns   [][]string
	terms    []int
}

func newFakeOS() *fakeOS {
	return &fakeOS{next: 1000, procs: make(map[int]string), stubborn: make(map[int]bool)}
}

func (f *fakeOS) run(pid int, dir string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.procs[pid] = dir
}

func (f *fakeOS) runningIn(dir string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.procs {
		if d == dir {
			return true
		}
	}
	return false
}

func (f *fakeOS) List(ctx context.Context, q proc.Query) ([]proc.RawProcess, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []proc.RawProcess
	for pid, dir := range f.procs {
		args := []string{codeExe}
		if dir != "" {
			args = append(args, "--user-data-dir="+dir)
		}
		out = append(out, proc.RawProcess{PID: pid, Exe: codeExe, Args: args})
	}
	return out, nil
}

func (f *fakeOS) Alive(pid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.procs[pid]
	return ok
}

func (f *fakeOS) Terminate(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terms = append(f.terms, pid)
	if !f.stubborn[pid] {
		delete(f.procs, pid)
	}
	return nil
}

func (f *fakeOS) Kill(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.procs, pid)
	return nil
}

func (f *fakeOS) Spawn(path string, args, env []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spawns = append(f.spawns, args)
	dir := ""
	if i := slices.Index(args, "--user-data-dir"); i >= 0 {
		dir = args[i+1]
	}
	f.next++
	f.procs[f.next] = dir
	return f.next, nil
}

type fakeInjector struct {
	mu       sync.Mutex
	os       *fakeOS
	injected map[string]string // dir -> account id
	err      error
	sawLive  bool
}

func (f *fakeInjector) Inject(ctx context.Context, dir string, acct identity.Account) error {
	live := f.os.runningIn(dir)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sawLive = f.sawLive || live
	if f.err != nil {
		return f.err
	}
	f.injected[dir] = acct.ID
	return nil
}

func (f *fakeInjector) Inspect(ctx context.Context, dir string) (inject.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.injected[dir]
	return inject.Session{SignedIn: ok, AccountID: id}, nil
}

type fakeFocuser struct {
	pids []int
	err  error
}

func (f *fakeFocuser) Focus(ctx context.Context, pid int) error {
	f.pids = append(f.pids, pid)
	return f.err
}

type fixture struct {
	engine   *Engine
	os       *fakeOS
	injector *fakeInjector
	focuser  *fakeFocuser
	store    *instance.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	exe := filepath.Join(t.TempDir(), "code")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.LaunchPaths["vscode"] = exe
	cfg.StopTimeout = 50 * time.Millisecond
	cfg.ForceTimeout = 50 * time.Millisecond
	cfg.Workers = 2

	fos := newFakeOS()
	store, err := instance.NewStore(cfg.DataDir, target.VSCode, instance.WithDefaultDir(filepath.Join(t.TempDir(), "Code")))
	require.NoError(t, err)
	injector := &fakeInjector{os: fos, injected: make(map[string]string)}
	focuser := &fakeFocuser{}

	creds := identity.NewMemStore(
		identity.Account{ID: "a1", Provider: "github", Login: "octo", AccessToken: "t1"},
		identity.Account{ID: "a2", Provider: "github", Login: "hubot", AccessToken: "t2"},
	)
	reg := proc.NewRegistryWith(target.VSCode, fos, fos, "linux")
	ctrl := lifecycle.NewController(reg, cfg,
		lifecycle.WithSpawner(fos),
		lifecycle.WithPollInterval(2*time.Millisecond),
		lifecycle.WithEnviron(func() []string { return nil }))

	e := New(cfg, creds,
		WithFocuser(focuser),
		WithBuilder(func(*target.Target) (*Components, error) {
			return &Components{Store: store, Controller: ctrl, Injector: injector}, nil
		}))
	return &fixture{engine: e, os: fos, injector: injector, focuser: focuser, store: store}
}

func (fx *fixture) create(t *testing.T, name, account string) instance.Profile {
	t.Helper()
	p, err := fx.store.Create(context.Background(), instance.CreateRequest{Name: name, BoundAccountID: account})
	require.NoError(t, err)
	return p
}

func TestSwitchRestartsSignedIn(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	p := fx.create(t, "Work", "a1")
	fx.os.run(500, p.UserDataDir)

	pid, err := fx.engine.Switch(ctx, "vscode", p.ID)
	require.NoError(t, err)

	assert.Equal(t, []int{500}, fx.os.terms)
	assert.False(t, fx.injector.sawLive, "inject only after the editor exited")
	assert.Equal(t, "a1", fx.injector.injected[p.UserDataDir])
	require.Len(t, fx.os.spawns, 1)
	assert.Equal(t, []string{"--user-data-dir", p.UserDataDir, "--new-window"}, fx.os.spawns[0])

	got, err := fx.store.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, pid, got.LastPID)
}

func TestSwitchUnknownAccountLeavesInstanceRunning(t *testing.T) {
	fx := newFixture(t)
	p := fx.create(t, "Work", "missing")
	fx.os.run(500, p.UserDataDir)

	_, err := fx.engine.Switch(context.Background(), "vscode", p.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.True(t, fx.os.Alive(500))
	assert.Empty(t, fx.os.spawns)
}

func TestSwitchInjectionFailureDoesNotStart(t *testing.T) {
	fx := newFixture(t)
	fx.injector.err = apperr.InjectionFailed("disk full", nil)
	p := fx.create(t, "Work", "a1")

	_, err := fx.engine.Switch(context.Background(), "vscode", p.ID)
	assert.True(t, apperr.Is(err, apperr.KindInjectionFailed))
	assert.Empty(t, fx.os.spawns)
}

func TestSwitchUnboundJustRestarts(t *testing.T) {
	fx := newFixture(t)
	p := fx.create(t, "Plain", "")

	_, err := fx.engine.Switch(context.Background(), "vscode", p.ID)
	require.NoError(t, err)
	assert.Empty(t, fx.injector.injected)
	assert.Len(t, fx.os.spawns, 1)
}

func TestLaunchFocusesRunning(t *testing.T) {
	fx := newFixture(t)
	p := fx.create(t, "Work", "")
	fx.os.run(700, p.UserDataDir)

	pid, err := fx.engine.Launch(context.Background(), "vscode", p.ID)
	require.NoError(t, err)
	assert.Equal(t, 700, pid)
	assert.Equal(t, []int{700}, fx.focuser.pids)
	assert.Empty(t, fx.os.spawns)
}

func TestLaunchStartsStopped(t *testing.T) {
	fx := newFixture(t)
	p := fx.create(t, "Work", "")

	pid, err := fx.engine.Launch(context.Background(), "vscode", p.ID)
	require.NoError(t, err)
	assert.True(t, fx.os.Alive(pid))
	assert.Empty(t, fx.focuser.pids)
	assert.Contains(t, fx.os.spawns[0], "--new-window")
}

func TestFocusFallsBackToReuseWindow(t *testing.T) {
	fx := newFixture(t)
	fx.focuser.err = apperr.FocusFailed(700, nil)
	p := fx.create(t, "Work", "")
	fx.os.run(700, p.UserDataDir)

	_, err := fx.engine.Focus(context.Background(), "vscode", p.ID)
	require.NoError(t, err)
	require.Len(t, fx.os.spawns, 1)
	assert.Contains(t, fx.os.spawns[0], "--reuse-window")
}

func TestFocusOtherErrorsSurface(t *testing.T) {
	fx := newFixture(t)
	fx.focuser.err = errors.New("boom")
	p := fx.create(t, "Work", "")
	fx.os.run(700, p.UserDataDir)

	_, err := fx.engine.Focus(context.Background(), "vscode", p.ID)
	assert.Error(t, err)
	assert.Empty(t, fx.os.spawns)
}

func TestStopAndCloseAll(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	a := fx.create(t, "A", "")
	b := fx.create(t, "B", "")
	fx.os.run(10, a.UserDataDir)
	fx.os.run(11, b.UserDataDir)
	fx.os.run(12, "")

	require.NoError(t, fx.engine.Stop(ctx, "vscode", a.ID))
	assert.False(t, fx.os.Alive(10))
	assert.True(t, fx.os.Alive(11))

	require.NoError(t, fx.engine.Stop(ctx, "vscode", a.ID), "stopping a stopped instance is a no-op")

	require.NoError(t, fx.engine.CloseAll(ctx, "vscode"))
	assert.False(t, fx.os.Alive(11))
	assert.False(t, fx.os.Alive(12), "default instance is closed too")
}

func TestSwitchMany(t *testing.T) {
	fx := newFixture(t)
	a := fx.create(t, "A", "a1")
	b := fx.create(t, "B", "a2")
	c := fx.create(t, "C", "gone")

	results, err := fx.engine.SwitchMany(context.Background(), "vscode", []string{a.ID, b.ID, c.ID})
	require.Error(t, err)
	assert.Contains(t, err.Error(), c.ID)
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.NoError(t, results[1].Err)
	assert.Error(t, results[2].Err)
	assert.Equal(t, "a2", fx.injector.injected[b.UserDataDir])
	assert.Len(t, fx.os.spawns, 2)
}

func TestStatus(t *testing.T) {
	fx := newFixture(t)
	a := fx.create(t, "A", "")
	fx.create(t, "B", "")
	fx.os.run(42, a.UserDataDir)

	statuses, err := fx.engine.Status(context.Background(), "vscode")
	require.NoError(t, err)
	require.Len(t, statuses, 3)
	assert.True(t, statuses[0].Default)
	assert.True(t, statuses[1].Running)
	assert.Equal(t, 42, statuses[1].PID)
	assert.False(t, statuses[2].Running)
}

func TestUnknownTarget(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.engine.Switch(context.Background(), "notepad", "x")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestKeyedMutex(t *testing.T) {
	var k keyedMutex
	unlock := k.lock("a")

	acquired := make(chan struct{})
	go func() {
		defer close(acquired)
		k.lock("a")()
	}()

	// A different key is independent.
	k.lock("b")()

	select {
	case <-acquired:
		t.Fatal("second holder got the lock")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	<-acquired

	k.mu.Lock()
	defer k.mu.Unlock()
	assert.Empty(t, k.locks)
}

func TestEnginesKeepSeparateTrackers(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	tr := lifecycle.NewTracker()

	e := New(cfg, nil, WithTracker(tr))
	c, err := e.Components(target.VSCode.Name)
	require.NoError(t, err)
	assert.Same(t, tr, c.Controller.Tracker())

	other := New(cfg, nil)
	assert.NotSame(t, tr, other.Tracker())
}
