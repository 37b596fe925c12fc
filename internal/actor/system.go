package actor

import (
	"context"
)

// newSystemActor returns the built-in actor that manages the registry.
func newSystemActor(r *Registry) Actor {
	return Funcs{
		{
			Name: "list_actors",
			Doc:  "List the names of all registered actors.",
			Handler: func(context.Context, Args) (any, error) {
				return r.List(), nil
			},
		},
		{
			Name:     "register_actor",
			Args:     []string{"name", "path", "force_reload"},
			Doc:      "Load the actor source at path and register it under name.",
			Defaults: map[string]any{"force_reload": false},
			Handler: func(ctx context.Context, args Args) (any, error) {
				force, err := args.Bool("force_reload")
				if err != nil {
					return nil, err
				}
				return r.Register(ctx, args.String("name"), args.String("path"), force)
			},
		},
		{
			Name: "unregister_actor",
			Args: []string{"name"},
			Doc:  "Remove a registered actor.",
			Handler: func(ctx context.Context, args Args) (any, error) {
				return r.Unregister(ctx, args.String("name"))
			},
		},
		{
			Name: "actor_paths",
			Doc:  "Map each actor loaded from a source to its path.",
			Handler: func(context.Context, Args) (any, error) {
				return r.Paths(), nil
			},
		},
		{
			Name: "ping",
			Doc:  "Answer pong.",
			Handler: func(context.Context, Args) (any, error) {
				return "pong", nil
			},
		},
	}
}
