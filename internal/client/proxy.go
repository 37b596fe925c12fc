package client

import (
	"context"

	"github.com/yndnr/gedis-go/internal/core/domain"
)

// MethodFunc calls one remote method with positional arguments.
type MethodFunc func(ctx context.Context, args ...any) (domain.ActorResult, error)

// Proxy exposes the methods of one remote actor.
type Proxy struct {
	client *Client
	desc   domain.ActorDescriptor
}

// Name returns the actor name.
func (p *Proxy) Name() string {
	return p.desc.Name
}

// Descriptor returns the method schema fetched at discovery.
func (p *Proxy) Descriptor() domain.ActorDescriptor {
	return p.desc
}

// Methods returns the method names in sorted order.
func (p *Proxy) Methods() []string {
	return p.desc.MethodNames()
}

// Method returns a callable for a declared method.
func (p *Proxy) Method(name string) (MethodFunc, bool) {
	if !p.desc.HasMethod(name) {
		return nil, false
	}
	return func(ctx context.Context, args ...any) (domain.ActorResult, error) {
		return p.client.Execute(ctx, p.desc.Name, name, args, nil)
	}, true
}

// Call calls a method with positional arguments.
func (p *Proxy) Call(ctx context.Context, method string, args ...any) (domain.ActorResult, error) {
	return p.client.Execute(ctx, p.desc.Name, method, args, nil)
}

// CallKw calls a method with keyword arguments.
func (p *Proxy) CallKw(ctx context.Context, method string, kwargs map[string]any, opts ...CallOption) (domain.ActorResult, error) {
	return p.client.Execute(ctx, p.desc.Name, method, nil, kwargs, opts...)
}
