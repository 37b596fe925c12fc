package actor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/yndnr/gedis-go/internal/core/domain"
	"github.com/yndnr/gedis-go/internal/telemetry/logger"
)

// DefaultCallTimeout bounds a single method call.
const DefaultCallTimeout = 30 * time.Second

// Observer records completed calls. An empty kind means success.
type Observer interface {
	ObserveCall(actor, method string, kind domain.ErrorKind, d time.Duration)
}

// InvokerConfig configures an Invoker.
type InvokerConfig struct {
	// CallTimeout bounds each call. Zero uses DefaultCallTimeout, a
	// negative value disables the timeout.
	CallTimeout time.Duration
	Observer    Observer
	Logger      logger.Logger
}

// Invoker resolves and executes actor method calls.
type Invoker struct {
	registry *Registry
	timeout  time.Duration
	observer Observer
	logger   logger.Logger
}

// NewInvoker creates an Invoker dispatching to r.
func NewInvoker(r *Registry, cfg InvokerConfig) *Invoker {
	timeout := cfg.CallTimeout
	if timeout == 0 {
		timeout = DefaultCallTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	return &Invoker{
		registry: r,
		timeout:  timeout,
		observer: cfg.Observer,
		logger:   log,
	}
}

// Registry returns the registry the invoker dispatches to.
func (i *Invoker) Registry() *Registry {
	return i.registry
}

// Invoke executes a call whose arguments are still in wire form.
func (i *Invoker) Invoke(ctx context.Context, actorName, method string, payload [][]byte) domain.ActorResult {
	e, m, err := i.resolve(actorName, method)
	if err != nil {
		return domain.Failure(err)
	}
	args, kwargs, err := DecodePayload(payload)
	if err != nil {
		return i.finish(ctx, actorName, method, 0, err, nil)
	}
	return i.call(ctx, e, m, args, kwargs)
}

// Execute runs a call with keyword arguments only.
func (i *Invoker) Execute(ctx context.Context, actorName, method string, kwargs map[string]any) domain.ActorResult {
	return i.Call(ctx, actorName, method, nil, kwargs)
}

// Call executes a call with decoded arguments.
func (i *Invoker) Call(ctx context.Context, actorName, method string, args []any, kwargs map[string]any) domain.ActorResult {
	e, m, err := i.resolve(actorName, method)
	if err != nil {
		return domain.Failure(err)
	}
	return i.call(ctx, e, m, args, kwargs)
}

func (i *Invoker) resolve(actorName, method string) (*Entry, Method, error) {
	e, ok := i.registry.Get(actorName)
	if !ok {
		return nil, Method{}, domain.ActorNotLoaded(actorName)
	}
	m, ok := e.Method(method)
	if !ok {
		return nil, Method{}, domain.MethodNotFound(actorName, method)
	}
	return e, m, nil
}

func (i *Invoker) call(ctx context.Context, e *Entry, m Method, args []any, kwargs map[string]any) domain.ActorResult {
	start := time.Now()
	ctx = logger.WithCall(ctx, e.Name, m.Name)

	bound, err := Bind(m, args, kwargs)
	if err != nil {
		return i.finish(ctx, e.Name, m.Name, time.Since(start), err, nil)
	}

	v, err := i.execute(ctx, e, m, bound)
	return i.finish(ctx, e.Name, m.Name, time.Since(start), err, v)
}

func (i *Invoker) finish(ctx context.Context, actorName, method string, d time.Duration, err error, v any) domain.ActorResult {
	var kind domain.ErrorKind
	if err != nil {
		kind = domain.KindOf(err)
		i.logger.WithContext(ctx).Debug("actor call failed", "error", err)
	}
	if i.observer != nil {
		i.observer.ObserveCall(actorName, method, kind, d)
	}
	if err != nil {
		return domain.Failure(err)
	}
	return domain.Success(v)
}

type outcome struct {
	value any
	err   error
}

// execute runs the handler under the call timeout. A handler that does not
// return in time is abandoned; it still holds its actor until it returns.
func (i *Invoker) execute(ctx context.Context, e *Entry, m Method, args Args) (any, error) {
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				i.logger.WithContext(ctx).Error("actor method panicked",
					"panic", fmt.Sprint(p),
					"stack", string(debug.Stack()),
				)
				done <- outcome{err: domain.Internalf("actor %s.%s panicked: %v", e.Name, m.Name, p)}
			}
		}()
		v, err := m.Handler(ctx, args)
		done <- outcome{value: v, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil && errors.Is(o.err, context.DeadlineExceeded) {
			return nil, domain.ErrCallTimeout
		}
		return o.value, o.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			i.logger.WithContext(ctx).Warn("actor call timed out",
				"timeout", i.timeout,
			)
			return nil, domain.ErrCallTimeout
		}
		return nil, domain.Internalf("call canceled").WithCause(ctx.Err())
	}
}

// Bind maps positional and keyword arguments onto the parameters of m.
func Bind(m Method, args []any, kwargs map[string]any) (Args, error) {
	if len(args) > len(m.Args) {
		return nil, domain.BadRequestf("%s() takes %d arguments but %d were given", m.Name, len(m.Args), len(args))
	}

	bound := make(Args, len(m.Args))
	for idx, v := range args {
		bound[m.Args[idx]] = v
	}

	for name, v := range kwargs {
		if !hasParam(m, name) {
			return nil, domain.BadRequestf("%s() got an unexpected keyword argument %s", m.Name, name)
		}
		if _, dup := bound[name]; dup {
			return nil, domain.BadRequestf("%s() got multiple values for argument %s", m.Name, name)
		}
		bound[name] = v
	}

	for _, name := range m.Args {
		if _, ok := bound[name]; ok {
			continue
		}
		if def, ok := m.Defaults[name]; ok {
			bound[name] = def
			continue
		}
		return nil, domain.BadRequestf("%s() missing argument %s", m.Name, name)
	}
	return bound, nil
}

func hasParam(m Method, name string) bool {
	for _, p := range m.Args {
		if p == name {
			return true
		}
	}
	return false
}

// DecodePayload turns the wire payload of a call into arguments.
//
// A single payload element holding JSON is decoded as:
//
//	[args, kwargs] or [args]  positional list and keyword object
//	{...}                     keyword arguments only
//	[...] (other)             positional arguments
//	scalar                    one positional argument
//
// A single element that is not JSON is one positional string. Several
// elements are positional strings.
func DecodePayload(payload [][]byte) ([]any, map[string]any, error) {
	switch len(payload) {
	case 0:
		return nil, nil, nil
	case 1:
	default:
		args := make([]any, len(payload))
		for idx, p := range payload {
			args[idx] = string(p)
		}
		return args, nil, nil
	}

	raw := bytes.TrimSpace(payload[0])
	if len(raw) == 0 {
		return nil, nil, nil
	}

	v, err := domain.DecodeJSON(raw)
	if err != nil {
		if raw[0] == '[' || raw[0] == '{' {
			return nil, nil, domain.ErrInvalidPayload.WithCause(err)
		}
		return []any{string(payload[0])}, nil, nil
	}

	switch t := v.(type) {
	case map[string]any:
		return nil, t, nil
	case []any:
		if args, kwargs, ok := splitCall(t); ok {
			return args, kwargs, nil
		}
		return t, nil, nil
	default:
		return []any{t}, nil, nil
	}
}

func splitCall(v []any) ([]any, map[string]any, bool) {
	if len(v) == 0 || len(v) > 2 {
		return nil, nil, false
	}
	args, ok := v[0].([]any)
	if !ok {
		return nil, nil, false
	}
	if len(v) == 1 || v[1] == nil {
		return args, nil, true
	}
	kwargs, ok := v[1].(map[string]any)
	if !ok {
		return nil, nil, false
	}
	return args, kwargs, true
}
