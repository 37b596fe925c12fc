package actor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yndnr/gedis-go/internal/core/domain"
	"github.com/yndnr/gedis-go/internal/telemetry/logger"
)

// Store persists registrations made through register_actor.
type Store interface {
	SaveRegistration(ctx context.Context, reg domain.Registration) error
	DeleteRegistration(ctx context.Context, name string) error
	ListRegistrations(ctx context.Context) ([]domain.Registration, error)
}

// Event describes a change to the registry.
type Event struct {
	Name    string
	Path    string // Canonical source path, empty for in-process actors
	Removed bool
}

// Registry maps actor names to actor instances.
//
// Reads take a shared lock. Registration builds and validates the new
// instance without holding the lock and then swaps it in, so calls that
// already hold the previous Entry finish on the previous instance.
type Registry struct {
	mu        sync.RWMutex
	entries   map[string]*Entry
	protected map[string]bool

	loader    *Loader
	store     Store
	listeners []func(Event)
	logger    logger.Logger
	now       func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithStore persists registrations to s.
func WithStore(s Store) Option {
	return func(r *Registry) {
		r.store = s
	}
}

// WithLogger sets the registry logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// NewRegistry creates a registry holding the built-in system actor under
// the names "system" and "core".
func NewRegistry(loader *Loader, opts ...Option) *Registry {
	r := &Registry{
		entries:   make(map[string]*Entry),
		protected: make(map[string]bool),
		logger:    logger.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if loader == nil {
		loader = NewLoader(r.logger)
	}
	r.loader = loader

	sys := newSystemActor(r)
	for _, name := range []string{domain.SystemActor, domain.CoreActor} {
		e, err := newEntry(name, "", sys)
		if err != nil {
			// The system method table is static.
			panic(err)
		}
		r.entries[name] = e
		r.protected[name] = true
	}
	return r
}

// Loader returns the loader used for source paths.
func (r *Registry) Loader() *Loader {
	return r.loader
}

// Subscribe registers fn to be called after every change.
// Subscribe must not be called concurrently with registry changes.
func (r *Registry) Subscribe(fn func(Event)) {
	r.listeners = append(r.listeners, fn)
}

// Register loads the source at path and stores the instance under name.
//
// If name is already registered and force is false, Register is a no-op
// and returns true. With force, the source is loaded again and the new
// instance replaces the old one.
func (r *Registry) Register(ctx context.Context, name, path string, force bool) (bool, error) {
	return r.register(ctx, name, path, force, true)
}

// Preload registers an actor from static configuration. Unlike Register
// the registration is not written to the store.
func (r *Registry) Preload(ctx context.Context, name, path string) error {
	_, err := r.register(ctx, name, path, false, false)
	return err
}

func (r *Registry) register(ctx context.Context, name, path string, force, persist bool) (bool, error) {
	if name == "" {
		return false, domain.BadRequestf("actor name is empty")
	}
	if r.protected[name] {
		return false, domain.ErrProtectedActor.WithDetails(name)
	}

	if !force {
		r.mu.RLock()
		_, exists := r.entries[name]
		r.mu.RUnlock()
		if exists {
			return true, nil
		}
	}

	a, canonical, err := r.loader.Load(path, force)
	if err != nil {
		r.logger.Warn("actor registration failed",
			"actor", name,
			"path", path,
			"error", err,
		)
		return false, err
	}
	e, err := newEntry(name, canonical, a)
	if err != nil {
		closeActor(a)
		return false, err
	}

	if !r.install(e, force) {
		return true, nil
	}

	r.logger.Info("actor registered",
		"actor", name,
		"path", canonical,
		"forced", force,
	)

	if persist && r.store != nil {
		reg := domain.Registration{Name: name, Path: canonical, RegisteredAt: r.now()}
		if err := r.store.SaveRegistration(ctx, reg); err != nil {
			r.logger.Error("failed to persist actor registration",
				"actor", name,
				"error", err,
			)
		}
	}
	r.notify(Event{Name: name, Path: canonical})
	return true, nil
}

// RegisterActor stores an in-process actor under name, replacing any
// previous non built-in actor of that name.
func (r *Registry) RegisterActor(name string, a Actor) error {
	if name == "" {
		return domain.BadRequestf("actor name is empty")
	}
	if r.protected[name] {
		return domain.ErrProtectedActor.WithDetails(name)
	}
	e, err := newEntry(name, "", a)
	if err != nil {
		return err
	}
	r.install(e, true)
	r.notify(Event{Name: name})
	return nil
}

// install stores e. Without replace, an existing entry wins and e is
// discarded. It reports whether e was stored.
func (r *Registry) install(e *Entry, replace bool) bool {
	r.mu.Lock()
	old, exists := r.entries[e.Name]
	if exists && !replace {
		r.mu.Unlock()
		closeActor(e.Actor)
		return false
	}
	r.entries[e.Name] = e
	r.mu.Unlock()

	if old != nil && old.Actor != e.Actor {
		closeActor(old.Actor)
	}
	return true
}

// Unregister removes an actor. It returns false if name is not registered.
func (r *Registry) Unregister(ctx context.Context, name string) (bool, error) {
	if r.protected[name] {
		return false, domain.ErrProtectedActor.WithDetails(name)
	}

	r.mu.Lock()
	e, ok := r.entries[name]
	if ok {
		delete(r.entries, name)
	}
	r.mu.Unlock()

	if !ok {
		return false, nil
	}
	closeActor(e.Actor)

	r.logger.Info("actor unregistered", "actor", name)

	if r.store != nil && e.Path != "" {
		if err := r.store.DeleteRegistration(ctx, name); err != nil {
			r.logger.Error("failed to delete actor registration",
				"actor", name,
				"error", err,
			)
		}
	}
	r.notify(Event{Name: name, Path: e.Path, Removed: true})
	return true, nil
}

// Get returns the entry registered under name.
func (r *Registry) Get(name string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// List returns all registered names in sorted order, built-ins included.
func (r *Registry) List() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Describe returns the schema of the named actor.
func (r *Registry) Describe(name string) (domain.ActorDescriptor, error) {
	e, ok := r.Get(name)
	if !ok {
		return domain.ActorDescriptor{}, domain.ActorNotLoaded(name)
	}
	return e.Descriptor(), nil
}

// Paths returns the source path of every actor loaded from a source.
func (r *Registry) Paths() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paths := make(map[string]string)
	for name, e := range r.entries {
		if e.Path != "" {
			paths[name] = e.Path
		}
	}
	return paths
}

// Count returns the number of registered actors.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// ModuleLoads returns how many times actor sources were loaded.
func (r *Registry) ModuleLoads() int64 {
	return r.loader.Loads()
}

// Restore registers every persisted registration. Failures are logged and
// skipped. It returns the number of restored actors.
func (r *Registry) Restore(ctx context.Context) (int, error) {
	if r.store == nil {
		return 0, nil
	}
	regs, err := r.store.ListRegistrations(ctx)
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, reg := range regs {
		if _, err := r.register(ctx, reg.Name, reg.Path, false, false); err != nil {
			r.logger.Warn("failed to restore actor",
				"actor", reg.Name,
				"path", reg.Path,
				"error", err,
			)
			continue
		}
		restored++
	}
	return restored, nil
}

// Close releases every actor instance.
func (r *Registry) Close() error {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*Entry)
	r.mu.Unlock()

	for _, e := range entries {
		closeActor(e.Actor)
	}
	return nil
}

func (r *Registry) notify(ev Event) {
	for _, fn := range r.listeners {
		fn(ev)
	}
}

func closeActor(a Actor) {
	if c, ok := a.(Closer); ok {
		_ = c.Close()
	}
}
