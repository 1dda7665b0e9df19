// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package watch reloads the stored conversations whenever another process
// rewrites them.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dimibg-lab/Elevatorapp-ai/internal/model"
)

// DefaultDebounce coalesces the bursts of events one save produces.
const DefaultDebounce = 250 * time.Millisecond

// Loader reads the stored state. storage.Persistence implements it.
type Loader interface {
	Load() (*model.State, bool)
}

// Handler receives each reloaded state. ok is false when the slot was
// cleared or could not be read.
type Handler func(state *model.State, ok bool)

// =============================================================================
// WATCHER INTERFACE
// =============================================================================

// Watcher is the interface for file watching implementations.
type Watcher interface {
	// Watch starts watching for changes
	Watch() error

	// Close stops watching and releases resources
	Close() error
}

// =============================================================================
// FSNOTIFY WATCHER
// =============================================================================

// FsnotifyWatcher watches the directories of a set of files. Atomic saves
// replace the file by rename, so the directory is watched rather than the
// file itself.
type FsnotifyWatcher struct {
	files    map[string]bool
	loader   Loader
	onChange Handler
	debounce time.Duration

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	pending time.Time // zero when nothing is pending
	ctx     context.Context
	cancel  context.CancelFunc
	logger  zerolog.Logger
}

// NewFsnotifyWatcher creates a watcher for files.
func NewFsnotifyWatcher(files []string, loader Loader, debounce time.Duration, onChange Handler) (*FsnotifyWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	ctx, cancel := context.WithCancel(context.Background())
	fw := &FsnotifyWatcher{
		files:    make(map[string]bool, len(files)),
		loader:   loader,
		onChange: onChange,
		debounce: debounce,
		watcher:  watcher,
		ctx:      ctx,
		cancel:   cancel,
		logger:   log.Logger.With().Str("component", "watch").Logger(),
	}
	for _, f := range files {
		fw.files[filepath.Clean(f)] = true
	}
	return fw, nil
}

// Watch starts watching for changes.
func (fw *FsnotifyWatcher) Watch() error {
	dirs := make(map[string]bool)
	for f := range fw.files {
		dirs[filepath.Dir(f)] = true
	}
	for dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
		if err := fw.watcher.Add(dir); err != nil {
			return err
		}
	}

	go fw.processEvents()
	go fw.processPending()
	return nil
}

func (fw *FsnotifyWatcher) processEvents() {
	for {
		select {
		case <-fw.ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !fw.files[filepath.Clean(event.Name)] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				fw.mu.Lock()
				fw.pending = time.Now()
				fw.mu.Unlock()
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn().Err(err).Msg("file watcher error")
		}
	}
}

// processPending reloads once the last change is older than the debounce.
func (fw *FsnotifyWatcher) processPending() {
	ticker := time.NewTicker(fw.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-fw.ctx.Done():
			return

		case now := <-ticker.C:
			fw.mu.Lock()
			due := !fw.pending.IsZero() && now.Sub(fw.pending) >= fw.debounce
			if due {
				fw.pending = time.Time{}
			}
			fw.mu.Unlock()

			if due {
				reload(fw.loader, fw.onChange)
			}
		}
	}
}

// Close stops watching and releases resources.
func (fw *FsnotifyWatcher) Close() error {
	fw.cancel()
	if fw.watcher != nil {
		return fw.watcher.Close()
	}
	return nil
}

// =============================================================================
// POLLING WATCHER (FALLBACK)
// =============================================================================

// PollingWatcher compares modification times periodically.
type PollingWatcher struct {
	files    []string
	loader   Loader
	onChange Handler
	interval time.Duration

	mu     sync.Mutex
	seen   map[string]time.Time
	ctx    context.Context
	cancel context.CancelFunc
}

// NewPollingWatcher creates a polling watcher.
func NewPollingWatcher(files []string, loader Loader, interval time.Duration, onChange Handler) *PollingWatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &PollingWatcher{
		files:    files,
		loader:   loader,
		onChange: onChange,
		interval: interval,
		seen:     make(map[string]time.Time),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Watch records the current modification times and starts polling.
func (pw *PollingWatcher) Watch() error {
	pw.changed()
	go pw.poll()
	return nil
}

func (pw *PollingWatcher) poll() {
	ticker := time.NewTicker(pw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-pw.ctx.Done():
			return
		case <-ticker.C:
			if pw.changed() {
				reload(pw.loader, pw.onChange)
			}
		}
	}
}

// changed rescans the files and reports whether any differ from last time.
func (pw *PollingWatcher) changed() bool {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	current := make(map[string]time.Time, len(pw.files))
	for _, f := range pw.files {
		if info, err := os.Stat(f); err == nil {
			current[f] = info.ModTime()
		}
	}

	diff := len(current) != len(pw.seen)
	for f, mod := range current {
		if old, ok := pw.seen[f]; !ok || !old.Equal(mod) {
			diff = true
		}
	}
	pw.seen = current
	return diff
}

// Close stops watching.
func (pw *PollingWatcher) Close() error {
	pw.cancel()
	return nil
}

// =============================================================================
// WATCHER FACTORY
// =============================================================================

// Start watches files with fsnotify, falling back to polling.
func Start(files []string, loader Loader, debounce time.Duration, onChange Handler) (Watcher, error) {
	fw, err := NewFsnotifyWatcher(files, loader, debounce, onChange)
	if err == nil {
		if err := fw.Watch(); err == nil {
			return fw, nil
		}
		fw.Close()
	}

	pw := NewPollingWatcher(files, loader, 2*time.Second, onChange)
	if err := pw.Watch(); err != nil {
		return nil, err
	}
	return pw, nil
}

func reload(loader Loader, onChange Handler) {
	state, ok := loader.Load()
	if onChange != nil {
		onChange(state, ok)
	}
}
