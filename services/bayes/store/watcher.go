// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher hot-reloads YAML network definitions from a directory.
//
// # Description
//
// Watches a directory for changes to *.yaml and *.yml files and keeps the
// store in sync: a created or modified file is loaded and stored under the
// network name declared inside it, a removed file deletes the network named
// after the file stem. Changes are debounced so an editor writing a file in
// several chunks triggers one reload, not one per chunk.
//
// # Thread Safety
//
// Safe for concurrent use. Reloads run on a single goroutine.
type Watcher struct {
	store    *Store
	dir      string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger

	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOptions configures the Watcher.
type WatcherOptions struct {
	// DebounceWindow is how long to wait for more changes before reloading.
	// Default: 100ms
	DebounceWindow time.Duration

	// Logger receives reload events. Nil means slog.Default().
	Logger *slog.Logger
}

// NewWatcher creates a watcher that syncs dir into the store.
//
// Inputs:
//
//	store - Destination registry. Must not be nil.
//	dir - Directory containing YAML network definitions.
//	opts - Optional configuration (nil uses defaults).
//
// Outputs:
//
//	*Watcher - Ready-to-use watcher. Call Start to begin watching.
func NewWatcher(store *Store, dir string, opts *WatcherOptions) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		store:    store,
		dir:      dir,
		watcher:  fw,
		debounce: 100 * time.Millisecond,
		logger:   slog.Default(),
		done:     make(chan struct{}),
	}
	if opts != nil {
		if opts.DebounceWindow > 0 {
			w.debounce = opts.DebounceWindow
		}
		if opts.Logger != nil {
			w.logger = opts.Logger
		}
	}
	return w, nil
}

// Start loads every definition already in the directory, then begins
// watching for changes. It returns after the initial sync; the watch loop
// runs until Stop is called or the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.syncAll(ctx); err != nil {
		return err
	}
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}
	go w.loop(ctx)
	return nil
}

// Stop halts the watch loop and releases the underlying watcher.
// Safe to call multiple times.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
}

// syncAll loads every network file present in the directory.
func (w *Watcher) syncAll(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !isNetworkFile(entry.Name()) {
			continue
		}
		w.reload(ctx, filepath.Join(w.dir, entry.Name()))
	}
	return nil
}

// loop is the debounced event pump.
func (w *Watcher) loop(ctx context.Context) {
	// Pending paths collected during the debounce window. Remove events are
	// tracked separately so a rapid delete-then-recreate resolves to the
	// final state on disk.
	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isNetworkFile(event.Name) {
				continue
			}
			pending[event.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("network watcher error", "error", err.Error())
		case <-timerC:
			for path := range pending {
				w.reload(ctx, path)
				delete(pending, path)
			}
			timer = nil
			timerC = nil
		}
	}
}

// reload applies the current on-disk state of one path to the store.
func (w *Watcher) reload(ctx context.Context, path string) {
	if _, err := os.Stat(path); err != nil {
		// File is gone: the network named after the file stem is removed.
		name := networkName(path)
		if err := w.store.Delete(ctx, name); err == nil {
			w.logger.Info("network unloaded", "network", name, "path", path)
		}
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("cannot read network file", "path", path, "error", err.Error())
		return
	}
	net, err := w.store.Put(ctx, data)
	if err != nil {
		w.logger.Warn("network file rejected", "path", path, "error", err.Error())
		return
	}
	w.logger.Info("network loaded", "network", net.Name(), "path", path)
}

func isNetworkFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// networkName maps a file path to a network name by stripping the
// extension: "models/burglary.yaml" names "burglary".
func networkName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
