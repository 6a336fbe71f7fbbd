package lifecycle

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neboloop/switchyard/internal/apperr"
	"github.com/neboloop/switchyard/internal/config"
	"github.com/neboloop/switchyard/internal/proc"
	"github.com/neboloop/switchyard/internal/target"
)

type fakeProc struct {
	alive      bool
	ignoreTerm bool // survives Terminate
	unkillable bool // survives Kill as well
}

type fakeTable struct {
	mu    sync.Mutex
	procs map[int]*fakeProc
	terms []int
	kills []int
}

func newFakeTable() *fakeTable {
	return &fakeTable{procs: make(map[int]*fakeProc)}
}

func (f *fakeTable) add(pid int, p fakeProc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.alive = true
	f.procs[pid] = &p
}

func (f *fakeTable) Alive(pid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.procs[pid]
	return ok && p.alive
}

func (f *fakeTable) Terminate(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terms = append(f.terms, pid)
	if p, ok := f.procs[pid]; ok && !p.ignoreTerm {
		p.alive = false
	}
	return nil
}

func (f *fakeTable) Kill(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kills = append(f.kills, pid)
	if p, ok := f.procs[pid]; ok && !p.unkillable {
		p.alive = false
	}
	return nil
}

type staticLister struct {
	procs []proc.RawProcess
}

func (l *staticLister) List(ctx context.Context, q proc.Query) ([]proc.RawProcess, error) {
	return l.procs, nil
}

type recordingSpawner struct {
	path string
	args []string
	env  []string
	pid  int
	err  error
}

func (s *recordingSpawner) Spawn(path string, args, env []string) (int, error) {
	s.path, s.args, s.env = path, args, env
	return s.pid, s.err
}

func newTestController(t *testing.T, tgt *target.Target, lister proc.Lister, table proc.Table, opts ...Option) *Controller {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.StopTimeout = 60 * time.Millisecond
	cfg.ForceTimeout = 40 * time.Millisecond
	if lister == nil {
		lister = &staticLister{}
	}
	reg := proc.NewRegistryWith(tgt, lister, table, runtime.GOOS)
	opts = append([]Option{WithPollInterval(5 * time.Millisecond)}, opts...)
	return NewController(reg, cfg, opts...)
}

func TestStopAlreadyDead(t *testing.T) {
	table := newFakeTable()
	c := newTestController(t, target.VSCode, nil, table)

	require.NoError(t, c.Stop(context.Background(), 4242, 0))
	assert.Empty(t, table.terms, "no signal for a dead pid")
}

func TestStopIdempotent(t *testing.T) {
	table := newFakeTable()
	table.add(10, fakeProc{})
	c := newTestController(t, target.VSCode, nil, table)

	require.NoError(t, c.Stop(context.Background(), 10, 0))
	require.NoError(t, c.Stop(context.Background(), 10, 0))
	assert.Equal(t, []int{10}, table.terms)
}

func TestStopTimesOut(t *testing.T) {
	table := newFakeTable()
	table.add(10, fakeProc{ignoreTerm: true})
	c := newTestController(t, target.VSCode, nil, table)

	start := time.Now()
	err := c.Stop(context.Background(), 10, 30*time.Millisecond)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindStopTimedOut))
	assert.Contains(t, err.Error(), "10")
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Empty(t, table.kills)
}

func TestStopWithRetryEscalates(t *testing.T) {
	table := newFakeTable()
	table.add(10, fakeProc{ignoreTerm: true})
	c := newTestController(t, target.VSCode, nil, table)

	require.NoError(t, c.StopWithRetry(context.Background(), 10, 20*time.Millisecond))
	assert.Equal(t, []int{10}, table.terms)
	assert.Equal(t, []int{10}, table.kills)
	assert.False(t, table.Alive(10))
}

func TestStopWithRetryUnkillable(t *testing.T) {
	table := newFakeTable()
	table.add(10, fakeProc{ignoreTerm: true, unkillable: true})
	c := newTestController(t, target.VSCode, nil, table)

	err := c.StopWithRetry(context.Background(), 10, 20*time.Millisecond)
	assert.True(t, apperr.Is(err, apperr.KindStopTimedOut))
}

func TestStopHonorsContext(t *testing.T) {
	table := newFakeTable()
	table.add(10, fakeProc{ignoreTerm: true})
	c := newTestController(t, target.VSCode, nil, table)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.Stop(ctx, 10, time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCloseManyTwoPhase(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	exe := "/usr/share/code/code"
	if runtime.GOOS == "darwin" {
		exe = "/Applications/Visual Studio Code.app/Contents/MacOS/Electron"
	}
	lister := &staticLister{procs: []proc.RawProcess{
		{PID: 21, Exe: exe, Args: []string{exe, "--user-data-dir", a}},
		{PID: 22, Exe: exe, Args: []string{exe, "--user-data-dir", b}},
		{PID: 23, Exe: exe, Args: []string{exe, "--user-data-dir", t.TempDir()}},
	}}
	if runtime.GOOS == "windows" {
		t.Skip("fixture uses POSIX executable names")
	}
	table := newFakeTable()
	table.add(21, fakeProc{})
	table.add(22, fakeProc{ignoreTerm: true})
	table.add(23, fakeProc{})
	c := newTestController(t, target.VSCode, lister, table)

	require.NoError(t, c.CloseMany(context.Background(), []string{a, b}, 0))
	assert.ElementsMatch(t, []int{21, 22}, table.terms)
	assert.Equal(t, []int{22}, table.kills, "only survivors are killed")
	assert.True(t, table.Alive(23), "unrequested instance untouched")
}

func TestCloseManyReportsSurvivors(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fixture uses POSIX executable names")
	}
	a := t.TempDir()
	exe := "/usr/share/code/code"
	if runtime.GOOS == "darwin" {
		exe = "/Applications/Visual Studio Code.app/Contents/MacOS/Electron"
	}
	lister := &staticLister{procs: []proc.RawProcess{
		{PID: 31, Exe: exe, Args: []string{exe, "--user-data-dir=" + a}},
	}}
	table := newFakeTable()
	table.add(31, fakeProc{ignoreTerm: true, unkillable: true})
	c := newTestController(t, target.VSCode, lister, table)

	err := c.CloseMany(context.Background(), []string{a}, 0)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindStopTimedOut))
	assert.Contains(t, err.Error(), "31")
}

func TestCloseManyNothingRunning(t *testing.T) {
	c := newTestController(t, target.VSCode, nil, newFakeTable())
	assert.NoError(t, c.CloseMany(context.Background(), []string{""}, 0))
}

func writeExecutable(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))
}

func TestStartBuildsArguments(t *testing.T) {
	exe := filepath.Join(t.TempDir(), "code")
	writeExecutable(t, exe)
	dir := t.TempDir()

	sp := &recordingSpawner{pid: 777}
	c := newTestController(t, target.VSCode, nil, newFakeTable(),
		WithSpawner(sp),
		WithEnviron(func() []string { return []string{"PATH=/bin", "ELECTRON_RUN_AS_NODE=1"} }))
	c.cfg.LaunchPaths["vscode"] = exe

	var events []Event
	c.Tracker().On(EventStarting, func(e Event, _ Transition) { events = append(events, e) })
	c.Tracker().On(EventRunning, func(e Event, tr Transition) {
		events = append(events, e)
		assert.Equal(t, 777, tr.PID)
		assert.Equal(t, StateStarting, tr.From)
	})

	pid, err := c.Start(context.Background(), StartRequest{Dir: dir, ExtraArgs: `--disable-extensions --log "trace level"`, NewWindow: true})
	require.NoError(t, err)
	assert.Equal(t, 777, pid)
	assert.Equal(t, exe, sp.path)
	assert.Equal(t, []string{"--user-data-dir", dir, "--new-window", "--disable-extensions", "--log", "trace level"}, sp.args)
	assert.Equal(t, []string{"PATH=/bin"}, sp.env)
	assert.Equal(t, []Event{EventStarting, EventRunning}, events)

	state, trackedPID := c.Tracker().State(c.Registry().Normalize(dir))
	assert.Equal(t, StateRunning, state)
	assert.Equal(t, 777, trackedPID)
}

func TestStartDefaultDirOmitsFlag(t *testing.T) {
	exe := filepath.Join(t.TempDir(), "code")
	writeExecutable(t, exe)
	sp := &recordingSpawner{pid: 1}
	c := newTestController(t, target.VSCode, nil, newFakeTable(), WithSpawner(sp))
	c.cfg.LaunchPaths["vscode"] = exe

	_, err := c.Start(context.Background(), StartRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"--reuse-window"}, sp.args)

	def, err := target.VSCode.DefaultDir()
	require.NoError(t, err)
	_, err = c.Start(context.Background(), StartRequest{Dir: def})
	require.NoError(t, err)
	assert.Equal(t, []string{"--reuse-window"}, sp.args)
}

func TestStartEnvHomeTarget(t *testing.T) {
	exe := filepath.Join(t.TempDir(), "codex")
	writeExecutable(t, exe)
	dir := t.TempDir()
	sp := &recordingSpawner{pid: 5}
	c := newTestController(t, target.Codex, nil, newFakeTable(),
		WithSpawner(sp),
		WithEnviron(func() []string { return []string{"CODEX_HOME=/elsewhere", "HOME=/home/me"} }))
	c.cfg.LaunchPaths["codex"] = exe

	_, err := c.Start(context.Background(), StartRequest{Dir: dir, NewWindow: true})
	require.NoError(t, err)
	assert.Empty(t, sp.args)
	assert.Equal(t, []string{"HOME=/home/me", "CODEX_HOME=" + dir}, sp.env)
}

func TestStartSpawnFailure(t *testing.T) {
	exe := filepath.Join(t.TempDir(), "code")
	writeExecutable(t, exe)
	sp := &recordingSpawner{err: os.ErrPermission}
	c := newTestController(t, target.VSCode, nil, newFakeTable(), WithSpawner(sp))
	c.cfg.LaunchPaths["vscode"] = exe

	var failed bool
	c.Tracker().On(EventStartFailed, func(Event, Transition) { failed = true })

	_, err := c.Start(context.Background(), StartRequest{Dir: t.TempDir()})
	assert.True(t, apperr.Is(err, apperr.KindSpawnFailed))
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.True(t, failed)
}

func TestLaunchPathFallsBackToRunningProcess(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("fixture uses the linux executable name")
	}
	exe := filepath.Join(t.TempDir(), "code")
	writeExecutable(t, exe)
	lister := &staticLister{procs: []proc.RawProcess{{PID: 3, Exe: exe, Args: []string{exe}}}}
	c := newTestController(t, target.VSCode, lister, newFakeTable())
	c.cfg.LaunchPaths["vscode"] = filepath.Join(t.TempDir(), "missing")

	got, err := c.LaunchPath(context.Background())
	require.NoError(t, err)
	assert.Equal(t, exe, got)
}

func TestLaunchPathNotFound(t *testing.T) {
	tgt := &target.Target{Name: "ghost", Executables: target.PerOS[[]string]{Linux: []string{"ghost"}, Darwin: []string{"ghost"}, Windows: []string{"ghost.exe"}}}
	c := newTestController(t, tgt, nil, newFakeTable())

	_, err := c.LaunchPath(context.Background())
	assert.True(t, apperr.Is(err, apperr.KindLaunchPathNotFound))
}

func TestLaunchPathAppBundle(t *testing.T) {
	app := filepath.Join(t.TempDir(), "Visual Studio Code.app")
	bin := filepath.Join(app, "Contents", "MacOS", "Code")
	writeExecutable(t, bin)
	c := newTestController(t, target.VSCode, nil, newFakeTable())
	c.cfg.LaunchPaths["vscode"] = app

	got, err := c.LaunchPath(context.Background())
	require.NoError(t, err)
	assert.Equal(t, bin, got)
}

func TestSplitArgs(t *testing.T) {
	got, err := SplitArgs(`--profile "My Work" --log=trace`, "linux")
	require.NoError(t, err)
	assert.Equal(t, []string{"--profile", "My Work", "--log=trace"}, got)

	got, err = SplitArgs(`--extensions-dir "C:\Users\me\ext dir" --verbose`, "windows")
	require.NoError(t, err)
	assert.Equal(t, []string{"--extensions-dir", `C:\Users\me\ext dir`, "--verbose"}, got)

	got, err = SplitArgs("   ", "linux")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTrackerStopEvents(t *testing.T) {
	table := newFakeTable()
	exe := filepath.Join(t.TempDir(), "code")
	writeExecutable(t, exe)
	dir := t.TempDir()
	sp := &recordingSpawner{pid: 55}
	c := newTestController(t, target.VSCode, nil, table, WithSpawner(sp))
	c.cfg.LaunchPaths["vscode"] = exe

	var stopped Transition
	c.Tracker().On(EventStopped, func(_ Event, tr Transition) { stopped = tr })

	_, err := c.Start(context.Background(), StartRequest{Dir: dir})
	require.NoError(t, err)
	table.add(55, fakeProc{})
	require.NoError(t, c.Stop(context.Background(), 55, 0))

	key := c.Registry().Normalize(dir)
	assert.Equal(t, key, stopped.Dir)
	assert.Equal(t, StateStopping, stopped.From)
	state, _ := c.Tracker().State(key)
	assert.Equal(t, StateStopped, state)
}
