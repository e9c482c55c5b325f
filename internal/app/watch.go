package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// watch rebuilds and re-reports the project whenever one of its contributing
// files changes, until the context is cancelled. Watches are installed on the
// directories of every file the current graph draws from, so newly effective
// imports extend the watch set after the next rebuild.
func (a *App) watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	defer watcher.Close()

	if err := a.syncWatches(watcher); err != nil {
		return err
	}
	a.logger.Info("Watching for changes.", "project", a.config.ProjectPath)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			a.logger.Debug("Change detected.", "file", event.Name)

			g, err := a.ws.Rebuild(ctx, a.config.ProjectPath)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				a.logger.Warn("Rebuild failed; previous analysis remains current.", "error", err)
				continue
			}
			a.writeReport(g)
			if err := a.syncWatches(watcher); err != nil {
				a.logger.Warn("Failed to refresh watch set.", "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.logger.Warn("File watcher error.", "error", err)
		}
	}
}

// syncWatches points the watcher at the directories of every file the
// currently published graph draws from. Adding an already-watched directory
// is harmless.
func (a *App) syncWatches(watcher *fsnotify.Watcher) error {
	g, ok := a.ws.Snapshot(a.config.ProjectPath)
	if !ok {
		return watcher.Add(filepath.Dir(a.config.ProjectPath))
	}
	for _, file := range g.Files() {
		if err := watcher.Add(filepath.Dir(file)); err != nil {
			return fmt.Errorf("failed to watch %s: %w", filepath.Dir(file), err)
		}
	}
	return nil
}
