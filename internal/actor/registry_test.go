package actor_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yndnr/gedis-go/internal/actor"
	"github.com/yndnr/gedis-go/internal/core/domain"
)

type memStore struct {
	mu    sync.Mutex
	regs  map[string]domain.Registration
	order []string
	err   error
}

func newMemStore() *memStore {
	return &memStore{regs: make(map[string]domain.Registration)}
}

func (s *memStore) SaveRegistration(_ context.Context, reg domain.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.regs[reg.Name]; !ok {
		s.order = append(s.order, reg.Name)
	}
	s.regs[reg.Name] = reg
	return nil
}

func (s *memStore) DeleteRegistration(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.regs, name)
	return nil
}

func (s *memStore) ListRegistrations(context.Context) ([]domain.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var regs []domain.Registration
	for _, name := range s.order {
		if reg, ok := s.regs[name]; ok {
			regs = append(regs, reg)
		}
	}
	return regs, nil
}

func TestRegistry_BuiltinActors(t *testing.T) {
	r := newTestRegistry(t)
	require.Equal(t, []string{"core", "system"}, r.List())
	require.Equal(t, 2, r.Count())

	desc, err := r.Describe("system")
	require.NoError(t, err)
	require.Equal(t, []string{"actor_paths", "info", "list_actors", "ping", "register_actor", "unregister_actor"}, desc.MethodNames())
	require.Equal(t, []string{"name", "path", "force_reload"}, desc.Methods["register_actor"].Args)
}

func TestRegistry_ProtectedActors(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	for _, name := range []string{"system", "core"} {
		_, err := r.Register(ctx, name, "builtin:greeter", true)
		require.ErrorIs(t, err, domain.ErrProtectedActor)

		_, err = r.Unregister(ctx, name)
		require.ErrorIs(t, err, domain.ErrProtectedActor)

		err = r.RegisterActor(name, actor.Funcs{{Name: "m", Handler: noop}})
		require.ErrorIs(t, err, domain.ErrProtectedActor)
	}
	require.Equal(t, []string{"core", "system"}, r.List())
}

func TestRegistry_Lifecycle(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	ok, err := r.Register(ctx, "greeter", "testdata/greeter.lua", false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, r.List(), "greeter")
	require.Equal(t, int64(1), r.ModuleLoads())

	// Same name, no force: the source is not executed again.
	ok, err = r.Register(ctx, "greeter", "testdata/greeter.lua", false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), r.ModuleLoads())

	// Same path under another name reuses the loaded module.
	_, err = r.Register(ctx, "greeter2", "testdata/greeter.lua", false)
	require.NoError(t, err)
	require.Equal(t, int64(1), r.ModuleLoads())

	ok, err = r.Register(ctx, "greeter", "testdata/greeter.lua", true)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(2), r.ModuleLoads())

	paths := r.Paths()
	require.Len(t, paths, 2)
	require.Equal(t, paths["greeter"], paths["greeter2"])

	ok, err = r.Unregister(ctx, "greeter")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotContains(t, r.List(), "greeter")

	ok, err = r.Unregister(ctx, "greeter")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRegistry_RegisterFailure(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Register(ctx, "", "builtin:greeter", false)
	require.ErrorIs(t, err, domain.ErrBadRequest)

	ok, err := r.Register(ctx, "ghost", "testdata/missing.lua", false)
	require.ErrorIs(t, err, domain.ErrBadRequest)
	require.False(t, ok)
	require.NotContains(t, r.List(), "ghost")

	// A failed forced reload keeps the previous instance.
	_, err = r.Register(ctx, "greeter", "builtin:greeter", false)
	require.NoError(t, err)
	_, err = r.Register(ctx, "greeter", "builtin:unknown", true)
	require.Error(t, err)
	e, ok := r.Get("greeter")
	require.True(t, ok)
	require.Equal(t, "builtin:greeter", e.Path)
}

func TestRegistry_Events(t *testing.T) {
	r := newTestRegistry(t)
	var events []actor.Event
	r.Subscribe(func(ev actor.Event) { events = append(events, ev) })

	ctx := context.Background()
	_, err := r.Register(ctx, "greeter", "builtin:greeter", false)
	require.NoError(t, err)
	_, err = r.Register(ctx, "greeter", "builtin:greeter", false)
	require.NoError(t, err)
	_, err = r.Unregister(ctx, "greeter")
	require.NoError(t, err)

	require.Equal(t, []actor.Event{
		{Name: "greeter", Path: "builtin:greeter"},
		{Name: "greeter", Path: "builtin:greeter", Removed: true},
	}, events)
}

func TestRegistry_PersistAndRestore(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	r1 := newTestRegistry(t, actor.WithStore(store))
	_, err := r1.Register(ctx, "greeter", "testdata/greeter.lua", false)
	require.NoError(t, err)
	_, err = r1.Register(ctx, "echo", "builtin:echo", false)
	require.NoError(t, err)
	_, err = r1.Register(ctx, "gone", "builtin:echo", false)
	require.NoError(t, err)
	_, err = r1.Unregister(ctx, "gone")
	require.NoError(t, err)
	require.NoError(t, r1.RegisterActor("inproc", actor.Funcs{{Name: "m", Handler: noop}}))

	regs, err := store.ListRegistrations(ctx)
	require.NoError(t, err)
	require.Len(t, regs, 2)

	// A registration whose source disappeared is skipped.
	require.NoError(t, store.SaveRegistration(ctx, domain.Registration{Name: "lost", Path: "builtin:lost"}))

	r2 := newTestRegistry(t, actor.WithStore(store))
	n, err := r2.Restore(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, []string{"core", "echo", "greeter", "system"}, r2.List())

	store.err = errors.New("disk on fire")
	_, err = r2.Restore(ctx)
	require.Error(t, err)
}

func TestRegistry_RestoreWithoutStore(t *testing.T) {
	r := newTestRegistry(t)
	n, err := r.Restore(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestRegistry_PreloadIsNotPersisted(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	r := newTestRegistry(t, actor.WithStore(store))
	require.NoError(t, r.Preload(ctx, "echo", "builtin:echo"))
	_, ok := r.Get("echo")
	require.True(t, ok)

	regs, err := store.ListRegistrations(ctx)
	require.NoError(t, err)
	require.Empty(t, regs)

	require.ErrorIs(t, r.Preload(ctx, "system", "builtin:echo"), domain.ErrPermission)
}
