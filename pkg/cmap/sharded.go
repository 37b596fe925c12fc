package cmap

import (
	"hash/maphash"
	"sync"
)

// shardCount is a power of two so a mask selects the shard.
const shardCount = 32

// Map is a concurrent map split over independently locked shards.
// The zero value is not usable; create maps with New.
type Map[K comparable, V any] struct {
	seed   maphash.Seed
	shards [shardCount]shard[K, V]
}

type shard[K comparable, V any] struct {
	sync.RWMutex
	m map[K]V
}

// New creates an empty map.
func New[K comparable, V any]() *Map[K, V] {
	m := &Map[K, V]{seed: maphash.MakeSeed()}
	for i := range m.shards {
		m.shards[i].m = make(map[K]V)
	}
	return m
}

func (m *Map[K, V]) shardFor(key K) *shard[K, V] {
	return &m.shards[maphash.Comparable(m.seed, key)&(shardCount-1)]
}

// Get returns the value stored under key.
func (m *Map[K, V]) Get(key K) (V, bool) {
	s := m.shardFor(key)
	s.RLock()
	v, ok := s.m[key]
	s.RUnlock()
	return v, ok
}

// Set stores value under key.
func (m *Map[K, V]) Set(key K, value V) {
	s := m.shardFor(key)
	s.Lock()
	s.m[key] = value
	s.Unlock()
}

// GetOrCreate returns the value stored under key. If there is none, it
// stores and returns create(). create runs under the shard lock and at
// most once per missing key.
func (m *Map[K, V]) GetOrCreate(key K, create func() V) V {
	if v, ok := m.Get(key); ok {
		return v
	}

	s := m.shardFor(key)
	s.Lock()
	defer s.Unlock()
	v, ok := s.m[key]
	if !ok {
		v = create()
		s.m[key] = v
	}
	return v
}

// Delete removes key.
func (m *Map[K, V]) Delete(key K) {
	s := m.shardFor(key)
	s.Lock()
	delete(s.m, key)
	s.Unlock()
}

// Count returns the number of entries.
func (m *Map[K, V]) Count() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.RLock()
		n += len(s.m)
		s.RUnlock()
	}
	return n
}

// Range calls fn for every entry until fn returns false. Shards are locked
// one at a time, so the view is not a snapshot. fn must not modify m.
func (m *Map[K, V]) Range(fn func(key K, value V) bool) {
	for i := range m.shards {
		s := &m.shards[i]
		s.RLock()
		for k, v := range s.m {
			if !fn(k, v) {
				s.RUnlock()
				return
			}
		}
		s.RUnlock()
	}
}

// Values returns every value in no particular order.
func (m *Map[K, V]) Values() []V {
	values := make([]V, 0, m.Count())
	m.Range(func(_ K, v V) bool {
		values = append(values, v)
		return true
	})
	return values
}

// DeleteIf removes every entry for which fn returns true and reports how
// many were removed. fn runs under the shard lock.
func (m *Map[K, V]) DeleteIf(fn func(key K, value V) bool) int {
	removed := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.Lock()
		for k, v := range s.m {
			if fn(k, v) {
				delete(s.m, k)
				removed++
			}
		}
		s.Unlock()
	}
	return removed
}
