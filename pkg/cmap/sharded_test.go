package cmap

import (
	"sort"
	"sync"
	"sync/atomic"
	"testing"
)

func TestSetGetDelete(t *testing.T) {
	m := New[string, int]()

	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("a", 3)

	if val, ok := m.Get("a"); !ok || val != 3 {
		t.Errorf("Get(a) = (%d, %v), want (3, true)", val, ok)
	}
	if m.Count() != 2 {
		t.Errorf("Count() = %d, want 2", m.Count())
	}

	m.Delete("a")
	m.Delete("missing")
	if _, ok := m.Get("a"); ok {
		t.Error("a should not exist after deletion")
	}
	if m.Count() != 1 {
		t.Errorf("Count() = %d, want 1", m.Count())
	}
}

func TestGetOrCreate(t *testing.T) {
	m := New[string, *int]()
	var created atomic.Int32
	create := func() *int {
		created.Add(1)
		v := 7
		return &v
	}

	var wg sync.WaitGroup
	results := make([]*int, 50)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = m.GetOrCreate("k", create)
		}(i)
	}
	wg.Wait()

	if created.Load() != 1 {
		t.Errorf("create called %d times, want 1", created.Load())
	}
	for i, r := range results {
		if r != results[0] {
			t.Fatalf("result %d differs from result 0", i)
		}
	}
}

func TestRangeAndValues(t *testing.T) {
	m := New[int, int]()
	for i := 0; i < 100; i++ {
		m.Set(i, i*2)
	}

	sum := 0
	m.Range(func(_ int, v int) bool {
		sum += v
		return true
	})
	if sum != 9900 {
		t.Errorf("sum = %d, want 9900", sum)
	}

	visited := 0
	m.Range(func(int, int) bool {
		visited++
		return visited < 5
	})
	if visited != 5 {
		t.Errorf("Range visited %d entries after early stop, want 5", visited)
	}

	values := m.Values()
	sort.Ints(values)
	if len(values) != 100 || values[0] != 0 || values[99] != 198 {
		t.Errorf("Values() = %d entries [%d..%d]", len(values), values[0], values[len(values)-1])
	}
}

func TestDeleteIf(t *testing.T) {
	m := New[int, int]()
	for i := 0; i < 10; i++ {
		m.Set(i, i)
	}

	removed := m.DeleteIf(func(k, _ int) bool { return k%2 == 0 })
	if removed != 5 {
		t.Errorf("DeleteIf removed %d, want 5", removed)
	}
	_, has4 := m.Get(4)
	_, has5 := m.Get(5)
	if has4 || !has5 {
		t.Error("DeleteIf removed the wrong entries")
	}
}

func TestConcurrentAccess(t *testing.T) {
	m := New[int, int]()
	var wg sync.WaitGroup
	numGoroutines := 50
	numOps := 200

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for j := 0; j < numOps; j++ {
				key := base*numOps + j
				m.Set(key, j)
				if v, ok := m.Get(key); !ok || v != j {
					t.Errorf("Get(%d) = (%d, %v)", key, v, ok)
				}
			}
		}(i)
	}
	wg.Wait()

	if m.Count() != numGoroutines*numOps {
		t.Errorf("Count() = %d, want %d", m.Count(), numGoroutines*numOps)
	}
}
