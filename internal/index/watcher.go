package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/doorlink/internal/tree"
)

// EventCallback is called for every file change under the project root.
// kind is one of "created", "updated", "deleted", or "synced" after the index
// has caught up with a burst of item changes (path is empty then).
type EventCallback func(kind string, path string)

// syncDelay debounces index syncs after item file changes.
const syncDelay = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the project root and processes file
// change events until ctx is cancelled.
//
// Any change reaches cb, since a source file edit can move a referenced
// keyword. Changes to .yml files additionally drop the repo's cached tree and
// schedule a debounced Sync. New directories created at runtime are added to
// the watch list; directories named in ignore are never watched.
func Watch(ctx context.Context, db ItemIndex, repo *tree.Repo, root string, ignore []string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	skip := make(map[string]struct{}, len(ignore))
	for _, name := range ignore {
		skip[name] = struct{}{}
	}

	if err := addDirsRecursive(w, root, skip); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	var syncTimer *time.Timer
	var syncCh <-chan time.Time

	scheduleSync := func() {
		if syncTimer == nil {
			syncTimer = time.NewTimer(syncDelay)
			syncCh = syncTimer.C
		} else {
			syncTimer.Reset(syncDelay)
		}
	}

	notify := func(kind, path string) {
		if cb != nil {
			cb(kind, path)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if syncTimer != nil {
				syncTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-syncCh:
			repo.Invalidate()
			if err := Sync(ctx, db, repo, logger); err != nil {
				logger.Warn("watcher: sync failed", slog.String("error", err.Error()))
				continue
			}
			notify("synced", "")

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}

			absPath := ev.Name
			base := filepath.Base(absPath)
			// Own files: the default index database and atomic-write temps.
			if strings.HasPrefix(base, ".doorlink") {
				continue
			}
			rel, relErr := filepath.Rel(root, absPath)
			if relErr != nil {
				continue
			}

			// --- Handle new directories: add to watcher ---
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if _, ignored := skip[base]; ignored {
						continue
					}
					if addErr := addDirsRecursive(w, absPath, skip); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					// The new directory may already hold items or a document.
					repo.Invalidate()
					scheduleSync()
					notify("created", rel)
					continue
				}
			}

			var kind string
			switch {
			case ev.Op&fsnotify.Create != 0:
				kind = "created"
			case ev.Op&fsnotify.Write != 0:
				kind = "updated"
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// fsnotify fires Rename on the old path only; the new path
				// arrives as a separate Create event.
				kind = "deleted"
			default:
				continue
			}

			if strings.HasSuffix(base, ".yml") {
				repo.Invalidate()
				scheduleSync()
			}
			logger.Debug("watcher: changed", slog.String("path", rel), slog.String("op", kind))
			notify(kind, rel)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher,
// skipping ignored directory names.
func addDirsRecursive(w *fsnotify.Watcher, root string, skip map[string]struct{}) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if _, ignored := skip[d.Name()]; ignored && path != root {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
