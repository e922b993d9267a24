// Package watcher detects changes to the settings file so the server can be
// restarted with the new configuration.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce collapses the burst of events editors produce on save.
const DefaultDebounce = 250 * time.Millisecond

// Watcher calls onChange when the target file is written, created, replaced
// or removed. It watches the parent directory since fsnotify cannot watch
// files that do not exist yet, and editors often save by rename.
type Watcher struct {
	targetPath string
	parentPath string
	onChange   func()
	watcher    *fsnotify.Watcher
	ctx        context.Context
	cancel     context.CancelFunc
	mu         sync.Mutex
	running    bool
	debounce   time.Duration
}

// New creates a Watcher for targetPath.
func New(targetPath string, onChange func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	target := filepath.Clean(targetPath)

	return &Watcher{
		targetPath: target,
		parentPath: filepath.Dir(target),
		onChange:   onChange,
		watcher:    fsw,
		ctx:        ctx,
		cancel:     cancel,
		debounce:   DefaultDebounce,
	}, nil
}

// SetDebounce overrides the debounce interval. Call before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Start begins watching. The parent directory must exist.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	if _, err := os.Stat(w.parentPath); err != nil {
		return err
	}
	if err := w.watcher.Add(w.parentPath); err != nil {
		return err
	}
	w.running = true

	go w.watchLoop()
	return nil
}

// Stop stops the watcher and releases it, whether or not Start succeeded.
// A pending callback is dropped.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.running = false
	w.cancel()
	return w.watcher.Close()
}

const relevantOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove

func (w *Watcher) watchLoop() {
	var debounceTimer *time.Timer

	for {
		select {
		case <-w.ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.targetPath || event.Op&relevantOps == 0 {
				continue
			}

			log.Debug().Str("path", w.targetPath).Str("op", event.Op.String()).Msg("Settings file event")
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, w.fire)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) fire() {
	if w.ctx.Err() != nil {
		return
	}
	log.Info().Str("path", w.targetPath).Msg("Settings file changed")
	if w.onChange != nil {
		w.onChange()
	}
}
