// Package reload detects edits to the config file and the charger catalogues
// it references.
package reload

import (
	"context"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/timzifer/evcert/config"
)

// DefaultInterval is how often Run polls when no interval is given.
const DefaultInterval = 2 * time.Second

type fileState struct {
	modTime time.Time
	size    int64
}

// Watcher remembers the size and mtime of every config source file.
type Watcher struct {
	mu    sync.Mutex
	files map[string]fileState
}

// NewWatcher snapshots the files cfg was assembled from.
func NewWatcher(cfg *config.Config) *Watcher {
	w := &Watcher{}
	w.Track(cfg)
	return w
}

// Track replaces the snapshot with the sources of cfg. Files that do not
// exist yet are skipped.
func (w *Watcher) Track(cfg *config.Config) {
	if w == nil {
		return
	}
	states := make(map[string]fileState)
	for _, path := range config.SourceFiles(cfg) {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		states[path] = fileState{modTime: info.ModTime(), size: info.Size()}
	}
	w.mu.Lock()
	w.files = states
	w.mu.Unlock()
}

// Files lists the tracked paths.
func (w *Watcher) Files() []string {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	paths := make([]string, 0, len(w.files))
	for path := range w.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Changed reports tracked files that were modified or removed since the
// last snapshot.
func (w *Watcher) Changed() []string {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	var changed []string
	for path, state := range w.files {
		info, err := os.Stat(path)
		if err != nil {
			changed = append(changed, path)
			continue
		}
		if info.ModTime().After(state.modTime) || info.Size() != state.size {
			changed = append(changed, path)
		}
	}
	sort.Strings(changed)
	return changed
}

// Run polls until ctx is done and calls onChange with every non-empty
// change set. The callback is expected to Track the new config; otherwise it
// fires again on the next tick.
func (w *Watcher) Run(ctx context.Context, interval time.Duration, onChange func([]string)) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if changed := w.Changed(); len(changed) > 0 {
				onChange(changed)
			}
		}
	}
}
