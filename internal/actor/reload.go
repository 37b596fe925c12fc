package actor

import (
	"context"
	"sort"
	"sync"

	"github.com/yndnr/gedis-go/internal/infra/confloader"
	"github.com/yndnr/gedis-go/internal/telemetry/logger"
)

// ReloadObserver records the outcome of hot reloads.
type ReloadObserver interface {
	ObserveReload(err error)
}

// Reloader force-reloads Lua actors when their source file changes.
//
// It follows the registry: sources of newly registered Lua actors are
// watched, and a source is no longer watched once no actor uses it.
type Reloader struct {
	registry *Registry
	watcher  *confloader.Watcher
	observer ReloadObserver
	logger   logger.Logger

	mu    sync.Mutex
	paths map[string]string          // actor name -> source path
	users map[string]map[string]bool // source path -> actor names
}

// NewReloader attaches a reloader to r. It must be created before the
// registry is shared with other goroutines. obs may be nil.
func NewReloader(r *Registry, w *confloader.Watcher, obs ReloadObserver, log logger.Logger) *Reloader {
	if log == nil {
		log = logger.Default()
	}
	rl := &Reloader{
		registry: r,
		watcher:  w,
		observer: obs,
		logger:   log,
		paths:    make(map[string]string),
		users:    make(map[string]map[string]bool),
	}
	for name, path := range r.Paths() {
		rl.track(name, path)
	}
	r.Subscribe(rl.onEvent)
	w.OnChange(rl.onChange)
	return rl
}

// Watched returns the watched source paths.
func (rl *Reloader) Watched() []string {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	paths := make([]string, 0, len(rl.users))
	for p := range rl.users {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (rl *Reloader) onEvent(ev Event) {
	rl.untrack(ev.Name)
	if !ev.Removed {
		rl.track(ev.Name, ev.Path)
	}
}

func (rl *Reloader) track(name, path string) {
	if !IsLuaSource(path) {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.paths[name] = path
	if rl.users[path] == nil {
		rl.users[path] = make(map[string]bool)
		if err := rl.watcher.Watch(path); err != nil {
			rl.logger.Warn("cannot watch actor source",
				"path", path,
				"error", err,
			)
		}
	}
	rl.users[path][name] = true
}

func (rl *Reloader) untrack(name string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	path, ok := rl.paths[name]
	if !ok {
		return
	}
	delete(rl.paths, name)
	delete(rl.users[path], name)
	if len(rl.users[path]) > 0 {
		return
	}
	delete(rl.users, path)
	if err := rl.watcher.Unwatch(path); err != nil {
		rl.logger.Warn("cannot unwatch actor source",
			"path", path,
			"error", err,
		)
	}
}

func (rl *Reloader) onChange(path string) {
	rl.mu.Lock()
	names := make([]string, 0, len(rl.users[path]))
	for name := range rl.users[path] {
		names = append(names, name)
	}
	rl.mu.Unlock()
	sort.Strings(names)

	ctx := context.Background()
	for _, name := range names {
		_, err := rl.registry.Register(ctx, name, path, true)
		if rl.observer != nil {
			rl.observer.ObserveReload(err)
		}
		if err != nil {
			rl.logger.Error("actor reload failed",
				"actor", name,
				"path", path,
				"error", err,
			)
			continue
		}
		rl.logger.Info("actor reloaded",
			"actor", name,
			"path", path,
		)
	}
}
