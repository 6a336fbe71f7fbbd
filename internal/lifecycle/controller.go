package lifecycle

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"

	"github.com/neboloop/switchyard/internal/apperr"
	"github.com/neboloop/switchyard/internal/config"
	"github.com/neboloop/switchyard/internal/logging"
	"github.com/neboloop/switchyard/internal/proc"
)

// DefaultPollInterval is how often a stopping process is re-checked.
const DefaultPollInterval = 350 * time.Millisecond

// Controller starts and stops the instances of one target.
type Controller struct {
	reg     *proc.Registry
	cfg     *config.Config
	spawner Spawner
	tracker *Tracker
	poll    time.Duration
	goos    string
	environ func() []string
}

// Option configures a Controller.
type Option func(*Controller)

// WithSpawner replaces the process spawner.
func WithSpawner(s Spawner) Option {
	return func(c *Controller) { c.spawner = s }
}

// WithTracker shares a state tracker between controllers.
func WithTracker(t *Tracker) Option {
	return func(c *Controller) { c.tracker = t }
}

// WithPollInterval changes how often stop waits re-check liveness.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) { c.poll = d }
}

// WithEnviron replaces the environment inherited by spawned editors.
func WithEnviron(fn func() []string) Option {
	return func(c *Controller) { c.environ = fn }
}

// NewController builds a Controller for the registry's target.
func NewController(reg *proc.Registry, cfg *config.Config, opts ...Option) *Controller {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	c := &Controller{
		reg:     reg,
		cfg:     cfg,
		spawner: execSpawner{},
		tracker: NewTracker(),
		poll:    DefaultPollInterval,
		goos:    runtime.GOOS,
		environ: os.Environ,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the process registry the controller acts on.
func (c *Controller) Registry() *proc.Registry {
	return c.reg
}

// Tracker returns the state tracker.
func (c *Controller) Tracker() *Tracker {
	return c.tracker
}

// StartRequest describes one launch.
type StartRequest struct {
	Dir       string // Instance data directory, "" for the default one
	ExtraArgs string // User supplied arguments, split like a shell would
	NewWindow bool   // --new-window instead of --reuse-window
}

// Start launches the target for req.Dir and returns the spawned pid.
func (c *Controller) Start(ctx context.Context, req StartRequest) (int, error) {
	path, err := c.LaunchPath(ctx)
	if err != nil {
		return 0, err
	}
	args, err := c.BuildArgs(req)
	if err != nil {
		return 0, err
	}

	key := c.key(req.Dir)
	c.tracker.set(EventStarting, key, StateStarting, 0, nil)
	logging.Infof("[lifecycle] starting %s dir=%q", c.reg.Target().Name, key)

	pid, err := c.spawner.Spawn(path, args, c.buildEnv(req.Dir))
	if err != nil {
		err = apperr.SpawnFailed(path, err)
		c.tracker.set(EventStartFailed, key, StateStopped, 0, err)
		return 0, err
	}
	c.tracker.set(EventRunning, key, StateRunning, pid, nil)
	logging.Infof("[lifecycle] started %s pid=%d", c.reg.Target().Name, pid)
	return pid, nil
}

// BuildArgs returns the command line arguments for req.
func (c *Controller) BuildArgs(req StartRequest) ([]string, error) {
	t := c.reg.Target()
	var args []string
	if !t.UsesEnvHome() && t.DataDirFlag != "" && !c.isDefault(req.Dir) {
		args = append(args, t.DataDirFlag, expand(req.Dir))
	}
	if t.DataDirFlag != "" {
		if req.NewWindow {
			args = append(args, "--new-window")
		} else {
			args = append(args, "--reuse-window")
		}
	}
	extra, err := SplitArgs(req.ExtraArgs, c.goos)
	if err != nil {
		return nil, apperr.Invalid("lifecycle.Start", "extra args: "+err.Error())
	}
	return append(args, extra...), nil
}

// Variables that would make a spawned editor attach to the editor this
// process was started from.
var inheritedBlocklist = []string{
	"ELECTRON_RUN_AS_NODE=",
	"VSCODE_IPC_HOOK_CLI=",
	"VSCODE_PID=",
	"VSCODE_CWD=",
}

func (c *Controller) buildEnv(dir string) []string {
	t := c.reg.Target()
	var env []string
	for _, kv := range c.environ() {
		if t.UsesEnvHome() && strings.HasPrefix(kv, t.HomeEnv+"=") {
			continue
		}
		blocked := false
		for _, prefix := range inheritedBlocklist {
			if strings.HasPrefix(kv, prefix) {
				blocked = true
				break
			}
		}
		if !blocked {
			env = append(env, kv)
		}
	}
	if t.UsesEnvHome() && !c.isDefault(dir) {
		env = append(env, t.HomeEnv+"="+expand(dir))
	}
	return env
}

// LaunchPath resolves the executable to start: the configured path, then the
// executable of a running main process, then the known install locations.
func (c *Controller) LaunchPath(ctx context.Context) (string, error) {
	t := c.reg.Target()
	if p := c.cfg.LaunchPath(t.Name); p != "" {
		if exe, ok := c.resolveExecutable(p); ok {
			return exe, nil
		}
		logging.Warnf("[lifecycle] configured launch path for %s not usable: %s", t.Name, p)
	}

	entries, err := c.reg.Scan(ctx)
	if err != nil {
		logging.Debugf("[lifecycle] scan for running %s failed: %v", t.Name, err)
	}
	for _, e := range entries {
		if exe, ok := c.resolveExecutable(e.Exe); ok {
			return exe, nil
		}
	}

	for _, p := range t.InstallCandidates(c.goos) {
		if exe, ok := c.resolveExecutable(p); ok {
			return exe, nil
		}
	}
	return "", apperr.LaunchPathNotFound(t.Name)
}

// resolveExecutable accepts a regular file, or a macOS .app bundle which is
// resolved to its Contents/MacOS binary.
func (c *Controller) resolveExecutable(p string) (string, bool) {
	p = strings.Trim(strings.TrimSpace(p), `"`)
	if p == "" {
		return "", false
	}
	info, err := os.Stat(p)
	if err != nil {
		return "", false
	}
	if !info.IsDir() {
		return p, true
	}
	if !strings.HasSuffix(strings.ToLower(strings.TrimRight(p, `/\`)), ".app") {
		return "", false
	}
	return bundleBinary(p, c.reg.Target().Executables.Darwin)
}

func bundleBinary(app string, names []string) (string, bool) {
	macos := filepath.Join(app, "Contents", "MacOS")
	for _, name := range names {
		p := filepath.Join(macos, name)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p, true
		}
	}
	entries, err := os.ReadDir(macos)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if e.Type().IsRegular() {
			return filepath.Join(macos, e.Name()), true
		}
	}
	return "", false
}

// key is the tracker key for dir.
func (c *Controller) key(dir string) string {
	if dir != "" {
		return c.reg.Normalize(dir)
	}
	def, err := c.reg.DefaultDir()
	if err != nil {
		return ""
	}
	return def
}

func (c *Controller) isDefault(dir string) bool {
	if strings.TrimSpace(dir) == "" {
		return true
	}
	def, err := c.reg.DefaultDir()
	return err == nil && c.reg.Normalize(dir) == def
}

func expand(p string) string {
	if e, err := homedir.Expand(p); err == nil {
		return e
	}
	return p
}
