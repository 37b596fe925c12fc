// Package builtin provides Go actors loadable as "builtin:<name>".
package builtin

import (
	"context"
	"time"

	"github.com/yndnr/gedis-go/internal/actor"
	"github.com/yndnr/gedis-go/internal/core/domain"
)

// Register makes every actor of this package loadable through l.
func Register(l *actor.Loader) {
	l.RegisterBuiltin("greeter", func() (actor.Actor, error) { return NewGreeter(), nil })
	l.RegisterBuiltin("echo", func() (actor.Actor, error) { return NewEcho(), nil })
}

// Greeter says hello and adds things.
type Greeter struct{}

// NewGreeter creates a Greeter.
func NewGreeter() *Greeter {
	return &Greeter{}
}

// Methods implements actor.Actor.
func (g *Greeter) Methods() []actor.Method {
	return []actor.Method{
		{
			Name:    "hi",
			Doc:     "Say hello.",
			Handler: g.hi,
		},
		{
			Name:    "add2",
			Args:    []string{"a", "b"},
			Doc:     "Add two numbers, or concatenate anything else.",
			Handler: g.add2,
		},
	}
}

func (g *Greeter) hi(context.Context, actor.Args) (any, error) {
	return "hello world", nil
}

func (g *Greeter) add2(_ context.Context, args actor.Args) (any, error) {
	a, b := args.Value("a"), args.Value("b")
	if x, ok := a.(int64); ok {
		if y, ok := b.(int64); ok {
			return x + y, nil
		}
	}
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			return x + y, nil
		}
	}
	return args.String("a") + args.String("b"), nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// Echo returns its input and is used to exercise the runtime.
type Echo struct{}

// NewEcho creates an Echo actor.
func NewEcho() *Echo {
	return &Echo{}
}

// Methods implements actor.Actor.
func (e *Echo) Methods() []actor.Method {
	return []actor.Method{
		{
			Name:    "echo",
			Args:    []string{"value"},
			Doc:     "Return value unchanged.",
			Handler: func(_ context.Context, args actor.Args) (any, error) { return args.Value("value"), nil },
		},
		{
			Name:     "sleep",
			Args:     []string{"ms"},
			Doc:      "Wait for ms milliseconds, or until the call is canceled.",
			Defaults: map[string]any{"ms": int64(100)},
			Handler:  e.sleep,
		},
		{
			Name:    "fail",
			Args:    []string{"kind", "message"},
			Doc:     "Fail with the given error kind.",
			Handler: e.fail,
		},
	}
}

func (e *Echo) sleep(ctx context.Context, args actor.Args) (any, error) {
	ms, err := args.Int("ms")
	if err != nil {
		return nil, err
	}
	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
		return true, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Echo) fail(_ context.Context, args actor.Args) (any, error) {
	kind := domain.ParseErrorKind(args.String("kind"))
	return nil, domain.NewActorError(kind, args.String("message"))
}
