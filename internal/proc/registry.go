// Package proc discovers running processes of a target editor, maps each
// main process to the data directory it was launched with, and controls
// those processes through the OS process table.
package proc

import (
	"context"
	"runtime"
	"sort"

	"github.com/neboloop/switchyard/internal/logging"
	"github.com/neboloop/switchyard/internal/target"
)

// Entry is one main process found by a scan. Dir is the normalized data
// directory, or "" when the process carries no directory flag/env.
type Entry struct {
	PID int
	Dir string
	Exe string
}

// RawProcess is what an OS lister reports before filtering.
type RawProcess struct {
	PID  int
	Exe  string   // Full executable path when known
	Args []string // argv, including argv[0]
	Env  []string // KEY=VALUE, only when requested and readable
	// Split is set when Args came from splitting a command line string, so
	// flag values with spaces may span several tokens.
	Split bool
}

// Query narrows what a Lister has to inspect.
type Query struct {
	Names   []string // Executable base names of interest (a hint, may be ignored)
	WithEnv bool     // Read environment blocks
}

// Lister enumerates OS processes.
type Lister interface {
	List(ctx context.Context, q Query) ([]RawProcess, error)
}

// Table is the OS process table: liveness and signals.
type Table interface {
	Alive(pid int) bool
	// Terminate asks the process (tree) to exit.
	Terminate(pid int) error
	// Kill forcefully ends the process (tree).
	Kill(pid int) error
}

// Registry scans the process table for one target's main processes.
// Scans are stateless and safe for concurrent use.
type Registry struct {
	target *target.Target
	lister Lister
	table  Table
	goos   string
}

// NewRegistry returns a Registry backed by the running OS.
func NewRegistry(t *target.Target) *Registry {
	return &Registry{
		target: t,
		lister: systemLister{},
		table:  SystemTable(),
		goos:   runtime.GOOS,
	}
}

// NewRegistryWith builds a Registry over an arbitrary lister and table.
func NewRegistryWith(t *target.Target, lister Lister, table Table, goos string) *Registry {
	return &Registry{target: t, lister: lister, table: table, goos: goos}
}

// Target returns the target this registry scans for.
func (r *Registry) Target() *target.Target {
	return r.target
}

// Table returns the process table used for liveness and signals.
func (r *Registry) Table() Table {
	return r.table
}

// Alive reports whether pid is running.
func (r *Registry) Alive(pid int) bool {
	return pid > 0 && r.table.Alive(pid)
}

// Normalize canonicalizes a directory the same way scan results are.
func (r *Registry) Normalize(dir string) string {
	return NormalizeFor(dir, r.goos)
}

// DefaultDir returns the target's normalized default data directory.
func (r *Registry) DefaultDir() (string, error) {
	dir, err := r.target.DefaultDirFor(r.goos)
	if err != nil {
		return "", err
	}
	return r.Normalize(dir), nil
}

// Scan lists the target's main processes, sorted by pid. Processes that
// cannot be inspected are skipped.
func (r *Registry) Scan(ctx context.Context) ([]Entry, error) {
	raws, err := r.lister.List(ctx, Query{
		Names:   r.target.Executables.For(r.goos),
		WithEnv: r.target.UsesEnvHome(),
	})
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, 4)
	for _, rp := range raws {
		if e, ok := r.classify(rp); ok {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].PID < entries[j].PID })
	return entries, nil
}

func (r *Registry) classify(rp RawProcess) (Entry, bool) {
	if rp.PID <= 0 {
		return Entry{}, false
	}
	exe := rp.Exe
	if exe == "" && len(rp.Args) > 0 {
		exe = unquote(rp.Args[0])
	}
	if !r.target.IsMainExecutable(exe, r.goos) {
		return Entry{}, false
	}
	if IsHelper(exe, rp.Args) {
		logging.Debugf("[proc] skipping helper pid=%d exe=%s", rp.PID, exe)
		return Entry{}, false
	}

	var dir string
	if r.target.UsesEnvHome() {
		dir, _ = EnvValue(rp.Env, r.target.HomeEnv)
	} else {
		dir, _ = ExtractFlagValue(rp.Args, r.target.DataDirFlag, rp.Split)
	}
	if dir != "" {
		dir = r.Normalize(dir)
	}
	return Entry{PID: rp.PID, Dir: dir, Exe: exe}, true
}
