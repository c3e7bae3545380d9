package config

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Watcher hot-reloads FeatureFlags from config/default.yaml. fsnotify drives
// reload on write events; a 60s poll is kept as a fallback for filesystems
// that don't deliver inotify events reliably (network mounts, some CI
// sandboxes), mirroring the dual-path reload the license watcher used.
type Watcher struct {
	path string

	mu    sync.RWMutex
	flags FeatureFlags

	lastReload time.Time
}

func NewWatcher(path string, initial FeatureFlags) *Watcher {
	return &Watcher{path: path, flags: initial}
}

func (w *Watcher) Flags() FeatureFlags {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.flags
}

// Run blocks until ctx is cancelled, reloading on fsnotify events and on a
// 60s poll tick as a fallback.
func (w *Watcher) Run(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("config: fsnotify unavailable (%v), relying on 60s poll only", err)
		w.pollLoop(ctx)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(w.path); err != nil {
		log.Printf("config: cannot watch %s (%v), relying on 60s poll only", w.path, err)
		w.pollLoop(ctx)
		return
	}

	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				debounce.Reset(250 * time.Millisecond)
			}
		case <-debounce.C:
			w.reload()
		case <-ticker.C:
			w.reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("config: watcher error: %v", err)
		}
	}
}

func (w *Watcher) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("config: reload read failed: %v", err)
		}
		return
	}

	var overlay fileOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		log.Printf("config: reload parse failed: %v", err)
		return
	}

	w.mu.Lock()
	w.flags = overlay.Flags
	w.lastReload = time.Now()
	w.mu.Unlock()
}
