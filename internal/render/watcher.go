package render

import (
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// addRecursive walks root and registers every directory with w, since
// fsnotify only watches the directories it is explicitly told about.
func addRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d == nil {
				return nil // root itself missing yet; dev mode tolerates this
			}
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}

// DevWatcher invalidates a Renderer's parsed-template cache as files
// change under its root, for local development against a checked-out
// docroot instead of purely through agent callbacks. Optional: a nil
// *DevWatcher is never constructed by production config, and Close is
// safe to call on it.
type DevWatcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// WatchDev starts watching r's root directory (recursively) for changes,
// invalidating the matching cache entry on every write/create/rename.
// Grounded on the pack's fsnotify watch-loop shape
// (kylesnowschwartz-tail-claude/watcher.go: NewWatcher, AddRecursive via
// WalkDir, a goroutine draining Events/Errors until Close).
func WatchDev(r *Renderer) (*DevWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := addRecursive(w, r.root); err != nil {
		w.Close()
		return nil, err
	}

	dw := &DevWatcher{watcher: w, done: make(chan struct{})}
	go dw.loop(r)
	return dw, nil
}

func (dw *DevWatcher) loop(r *Renderer) {
	defer close(dw.done)
	for {
		select {
		case event, ok := <-dw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			name := relativeTemplateName(r.root, event.Name)
			if name == "" {
				continue
			}
			slog.Debug("render.dev_watch_invalidate", "path", event.Name)
			r.Invalidate(name)
		case err, ok := <-dw.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("render.dev_watch_error", "error", err)
		}
	}
}

// Close stops the underlying fsnotify watcher and waits for the drain
// loop to exit. Safe to call on nil.
func (dw *DevWatcher) Close() error {
	if dw == nil {
		return nil
	}
	err := dw.watcher.Close()
	<-dw.done
	return err
}

func relativeTemplateName(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return ""
	}
	for _, ext := range candidateExtensions {
		if strings.HasSuffix(rel, ext) {
			return strings.TrimSuffix(rel, ext)
		}
	}
	return ""
}
