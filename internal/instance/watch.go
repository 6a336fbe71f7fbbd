package instance

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/neboloop/switchyard/internal/logging"
)

const watchDebounce = 100 * time.Millisecond

// Watch calls fn with the reloaded instance list whenever the store file is
// changed, by this or another process. It blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, fn func([]Profile)) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Atomic writes replace the file, so the directory is watched.
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	name := filepath.Base(s.path)
	fire := make(chan struct{}, 1)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			profiles, err := s.List(ctx)
			if err != nil {
				logging.Warnf("[instance] reload %s: %v", s.path, err)
				continue
			}
			fn(profiles)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warnf("[instance] watcher error: %v", err)
		}
	}
}
