package proc

import (
	"context"
	"sort"
)

// Match picks the process owning targetDir from a scan. Both directories must
// already be normalized; an empty targetDir means the default directory.
// An entry matches when its directory equals the target, or when it has no
// directory at all and the target is the default directory (processes
// launched without a flag are the default instance). The smallest pid wins.
func Match(entries []Entry, targetDir, defaultDir string) (int, bool) {
	pids := MatchAll(entries, targetDir, defaultDir)
	if len(pids) == 0 {
		return 0, false
	}
	return pids[0], true
}

// MatchAll returns every pid matching targetDir, ascending.
func MatchAll(entries []Entry, targetDir, defaultDir string) []int {
	if targetDir == "" {
		targetDir = defaultDir
	}
	var pids []int
	for _, e := range entries {
		if matches(e, targetDir, defaultDir) {
			pids = append(pids, e.PID)
		}
	}
	sort.Ints(pids)
	return pids
}

func matches(e Entry, targetDir, defaultDir string) bool {
	if e.Dir != "" {
		return e.Dir == targetDir
	}
	return targetDir != "" && targetDir == defaultDir
}

// Resolve returns the running pid for dir ("" = default directory). A
// still-alive lastPID is returned without scanning, so a pid recorded for
// this instance is never re-attributed to another one.
func (r *Registry) Resolve(ctx context.Context, lastPID int, dir string) (int, bool, error) {
	if lastPID > 0 && r.Alive(lastPID) {
		return lastPID, true, nil
	}

	defaultDir, err := r.DefaultDir()
	if err != nil {
		return 0, false, err
	}
	targetDir := defaultDir
	if dir != "" {
		targetDir = r.Normalize(dir)
	}

	entries, err := r.Scan(ctx)
	if err != nil {
		return 0, false, err
	}
	pid, ok := Match(entries, targetDir, defaultDir)
	return pid, ok, nil
}

// ResolveAll returns every pid belonging to any of dirs using a single scan.
// "" in dirs stands for the default directory.
func (r *Registry) ResolveAll(ctx context.Context, dirs []string) ([]int, error) {
	defaultDir, err := r.DefaultDir()
	if err != nil {
		return nil, err
	}
	entries, err := r.Scan(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[int]bool)
	var pids []int
	for _, dir := range dirs {
		targetDir := defaultDir
		if dir != "" {
			targetDir = r.Normalize(dir)
		}
		for _, pid := range MatchAll(entries, targetDir, defaultDir) {
			if !seen[pid] {
				seen[pid] = true
				pids = append(pids, pid)
			}
		}
	}
	sort.Ints(pids)
	return pids, nil
}
