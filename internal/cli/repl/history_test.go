package repl

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestNewHistory(t *testing.T) {
	h := NewHistory("", 0)
	if h.maxSize != DefaultHistorySize {
		t.Errorf("maxSize = %d, want %d", h.maxSize, DefaultHistorySize)
	}
	if len(h.Entries()) != 0 {
		t.Error("new history should be empty")
	}
}

func TestHistory_Add(t *testing.T) {
	h := NewHistory("", 3)

	for _, cmd := range []string{"a", "b", "b", "c", "d"} {
		h.Add(cmd)
	}

	if got, want := h.Entries(), []string{"b", "c", "d"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Entries() = %q, want %q", got, want)
	}
	if h.Get(0) != "d" || h.Get(2) != "b" {
		t.Errorf("Get(0)=%q Get(2)=%q", h.Get(0), h.Get(2))
	}
	if h.Get(3) != "" || h.Get(-1) != "" {
		t.Error("out of range Get should return empty string")
	}
}

func TestHistory_SaveLoad(t *testing.T) {
	file := filepath.Join(t.TempDir(), "sub", "history")

	h := NewHistory(file, 10)
	h.Add("greeter hi")
	h.Add("greeter add2 1 2")
	if err := h.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(file)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("history mode = %o, want 600", perm)
	}

	h2 := NewHistory(file, 10)
	if err := h2.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got, want := h2.Entries(), []string{"greeter hi", "greeter add2 1 2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Entries() = %q, want %q", got, want)
	}
}

func TestHistory_LoadMissing(t *testing.T) {
	h := NewHistory(filepath.Join(t.TempDir(), "missing"), 10)
	if err := h.Load(); err != nil {
		t.Errorf("Load() of a missing file = %v", err)
	}
}

func TestHistory_InMemory(t *testing.T) {
	h := NewHistory("", 10)
	h.Add("x")
	if err := h.Save(); err != nil {
		t.Errorf("Save() = %v", err)
	}
	if err := h.Load(); err != nil {
		t.Errorf("Load() = %v", err)
	}
}
