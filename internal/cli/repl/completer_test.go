package repl

import (
	"reflect"
	"sort"
	"testing"
)

type fakeSource map[string][]string

func (f fakeSource) Actors() []string {
	names := make([]string, 0, len(f))
	for n := range f {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (f fakeSource) Methods(actor string) []string {
	return f[actor]
}

func TestCompleter_Complete(t *testing.T) {
	c := NewCompleter([]string{"actors", "call"}, fakeSource{
		"greeter": {"add2", "greet", "hi", "info"},
		"echo":    {"echo", "info"},
	})

	tests := []struct {
		line string
		want []string
	}{
		{"", []string{"actors", "call", "complete", "echo", "exit", "greeter", "history", "quit"}},
		{"g", []string{"greeter"}},
		{"ex", []string{"exit"}},
		{"greeter ", []string{"greeter add2", "greeter greet", "greeter hi", "greeter info"}},
		{"greeter gr", []string{"greeter greet"}},
		{"echo i", []string{"echo info"}},
		{"unknown ", nil},
		{"greeter hi ", nil},
		{"zzz", nil},
	}

	for _, tt := range tests {
		got := c.Complete(tt.line)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Complete(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestCompleter_NoSource(t *testing.T) {
	c := NewCompleter(nil, nil)

	if got := c.Complete("q"); !reflect.DeepEqual(got, []string{"quit"}) {
		t.Errorf("Complete(q) = %q", got)
	}
	if got := c.Complete("greeter "); got != nil {
		t.Errorf("Complete(greeter ) = %q, want nil", got)
	}
}
