// Package actor implements the actor registry and the invocation runtime.
//
// An actor is a named set of methods. Each actor declares its methods up
// front as a table of Method values; the table is validated when the actor
// is registered and is the only thing the runtime dispatches on.
//
// Actors come from three places:
//
//   - Lua sources (path ending in .lua), run by gopher-lua
//   - Go factories registered with Loader.RegisterBuiltin ("builtin:<name>")
//   - in-process values passed to Registry.RegisterActor
package actor

import (
	"context"
	"fmt"
	"strconv"

	"github.com/yndnr/gedis-go/internal/core/domain"
)

// Handler executes one method call with bound arguments.
type Handler func(ctx context.Context, args Args) (any, error)

// Method is one entry of an actor's method table.
type Method struct {
	Name     string
	Args     []string       // Parameter names, in positional order
	Doc      string
	Defaults map[string]any // Values for parameters the caller may omit
	Handler  Handler
}

// Actor is anything that exposes a method table.
type Actor interface {
	Methods() []Method
}

// Closer is implemented by actors holding resources.
// It is called once the actor has been replaced or unregistered.
type Closer interface {
	Close() error
}

// Args holds call arguments bound to parameter names.
type Args map[string]any

// Value returns the raw argument.
func (a Args) Value(name string) any {
	return a[name]
}

// String returns the argument formatted as a string.
func (a Args) String(name string) string {
	switch v := a[name].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the argument as an integer. Numeric strings are accepted.
func (a Args) Int(name string) (int64, error) {
	switch v := a[name].(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		if v != float64(int64(v)) {
			return 0, domain.BadRequestf("argument %s must be an integer", name)
		}
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, domain.BadRequestf("argument %s must be an integer", name)
		}
		return n, nil
	default:
		return 0, domain.BadRequestf("argument %s must be an integer", name)
	}
}

// Bool returns the argument as a boolean. Strings accepted by
// strconv.ParseBool and the integers 0 and 1 are accepted.
func (a Args) Bool(name string) (bool, error) {
	switch v := a[name].(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, domain.BadRequestf("argument %s must be a boolean", name)
		}
		return b, nil
	default:
		return false, domain.BadRequestf("argument %s must be a boolean", name)
	}
}

// Entry is a registered actor with its validated method table.
type Entry struct {
	Name  string
	Path  string // Source path, empty for in-process actors
	Actor Actor

	methods    map[string]Method
	descriptor domain.ActorDescriptor
}

// Method returns the named method.
func (e *Entry) Method(name string) (Method, bool) {
	m, ok := e.methods[name]
	return m, ok
}

// Descriptor returns the schema answered by the info method.
func (e *Entry) Descriptor() domain.ActorDescriptor {
	return e.descriptor
}

const infoDoc = "Describe the methods of this actor."

// newEntry validates the method table of a and adds the info method.
func newEntry(name, path string, a Actor) (*Entry, error) {
	if a == nil {
		return nil, domain.BadRequestf("actor %s is nil", name)
	}

	e := &Entry{
		Name:    name,
		Path:    path,
		Actor:   a,
		methods: make(map[string]Method),
		descriptor: domain.ActorDescriptor{
			Name:    name,
			Methods: make(map[string]domain.MethodInfo),
		},
	}

	for _, m := range a.Methods() {
		if err := validateMethod(m); err != nil {
			return nil, domain.BadRequestf("actor %s: %s", name, err)
		}
		if m.Name == domain.InfoMethod {
			return nil, domain.BadRequestf("actor %s: method %s is reserved", name, m.Name)
		}
		if _, dup := e.methods[m.Name]; dup {
			return nil, domain.BadRequestf("actor %s: duplicate method %s", name, m.Name)
		}
		e.methods[m.Name] = m
		e.descriptor.Methods[m.Name] = domain.MethodInfo{Args: argsOrEmpty(m.Args), Doc: m.Doc}
	}

	desc := e.descriptor
	e.methods[domain.InfoMethod] = Method{
		Name: domain.InfoMethod,
		Doc:  infoDoc,
		Handler: func(context.Context, Args) (any, error) {
			return desc.Methods, nil
		},
	}
	e.descriptor.Methods[domain.InfoMethod] = domain.MethodInfo{Args: []string{}, Doc: infoDoc}

	return e, nil
}

func validateMethod(m Method) error {
	if m.Name == "" {
		return fmt.Errorf("method name is empty")
	}
	if m.Handler == nil {
		return fmt.Errorf("method %s has no handler", m.Name)
	}
	seen := make(map[string]bool, len(m.Args))
	for _, arg := range m.Args {
		if arg == "" {
			return fmt.Errorf("method %s has an unnamed parameter", m.Name)
		}
		if seen[arg] {
			return fmt.Errorf("method %s declares parameter %s twice", m.Name, arg)
		}
		seen[arg] = true
	}
	for name := range m.Defaults {
		if !seen[name] {
			return fmt.Errorf("method %s has a default for unknown parameter %s", m.Name, name)
		}
	}
	return nil
}

func argsOrEmpty(args []string) []string {
	if args == nil {
		return []string{}
	}
	return append([]string(nil), args...)
}

// Funcs is an Actor backed by a static method list.
type Funcs []Method

// Methods implements Actor.
func (f Funcs) Methods() []Method { return f }
