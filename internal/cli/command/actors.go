package command

import (
	"fmt"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/gedis-go/internal/cli/output"
	"github.com/yndnr/gedis-go/internal/client"
	"github.com/yndnr/gedis-go/internal/core/domain"
)

// ActorsCommand returns the actors subcommand group.
func ActorsCommand() *cli.Command {
	return &cli.Command{
		Name:  "actors",
		Usage: "Inspect and manage registered actors",
		Subcommands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List registered actors and their methods",
				Action:  actorsList,
			},
			{
				Name:      "info",
				Usage:     "Show the methods of an actor",
				ArgsUsage: "ACTOR",
				Action:    actorsInfo,
			},
			{
				Name:   "paths",
				Usage:  "Show the source path of each loaded actor",
				Action: actorsPaths,
			},
			{
				Name:      "register",
				Usage:     "Load an actor source and register it",
				ArgsUsage: "NAME PATH",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Reload the source even if NAME is registered",
					},
				},
				Action: actorsRegister,
			},
			{
				Name:      "unregister",
				Usage:     "Remove a registered actor",
				ArgsUsage: "NAME",
				Action:    actorsUnregister,
			},
		},
	}
}

func actorsList(c *cli.Context) error {
	e := getEnv(c)
	ctx, cancel := e.callContext(c.Context)
	defer cancel()

	cl, err := e.client(ctx)
	if err != nil {
		return err
	}

	table := &output.Table{Headers: []string{"NAME", "METHODS"}}
	for _, name := range cl.Actors() {
		p, ok := cl.Actor(name)
		if !ok {
			continue
		}
		table.AddRow(name, strings.Join(p.Methods(), ", "))
	}
	return e.print(table)
}

func actorsInfo(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return fmt.Errorf("actor name required")
	}

	e := getEnv(c)
	ctx, cancel := e.callContext(c.Context)
	defer cancel()

	cl, err := e.client(ctx)
	if err != nil {
		return err
	}
	desc, err := cl.Describe(ctx, name)
	if err != nil {
		return err
	}
	return e.print(describeTable(desc))
}

func describeTable(desc domain.ActorDescriptor) *output.Table {
	table := &output.Table{Headers: []string{"METHOD", "ARGS", "DOC"}}
	for _, m := range desc.MethodNames() {
		info := desc.Methods[m]
		table.AddRow(m, strings.Join(info.Args, ", "), info.Doc)
	}
	return table
}

func actorsPaths(c *cli.Context) error {
	e := getEnv(c)
	ctx, cancel := e.callContext(c.Context)
	defer cancel()

	cl, err := e.client(ctx)
	if err != nil {
		return err
	}
	res, err := cl.Execute(ctx, domain.SystemActor, "actor_paths", nil, nil, client.Die())
	if err != nil {
		return err
	}

	paths, _ := res.Result.(map[string]any)
	names := make([]string, 0, len(paths))
	for n := range paths {
		names = append(names, n)
	}
	sort.Strings(names)

	table := &output.Table{Headers: []string{"NAME", "PATH"}}
	for _, n := range names {
		table.AddRow(n, output.FormatValue(paths[n]))
	}
	return e.print(table)
}

func actorsRegister(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: %s actors register NAME PATH", c.App.Name)
	}
	name, path := c.Args().Get(0), c.Args().Get(1)

	e := getEnv(c)
	ctx, cancel := e.callContext(c.Context)
	defer cancel()

	cl, err := e.client(ctx)
	if err != nil {
		return err
	}
	res, err := cl.Execute(ctx, domain.SystemActor, "register_actor", nil, map[string]any{
		"name":         name,
		"path":         path,
		"force_reload": c.Bool("force"),
	}, client.Die())
	if err != nil {
		return err
	}

	if e.format != output.FormatTable {
		return e.print(res.Result)
	}
	e.println("registered %s from %s", name, path)
	return nil
}

func actorsUnregister(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return fmt.Errorf("actor name required")
	}

	e := getEnv(c)
	ctx, cancel := e.callContext(c.Context)
	defer cancel()

	cl, err := e.client(ctx)
	if err != nil {
		return err
	}
	res, err := cl.Execute(ctx, domain.SystemActor, "unregister_actor", nil, map[string]any{"name": name}, client.Die())
	if err != nil {
		return err
	}

	if e.format != output.FormatTable {
		return e.print(res.Result)
	}
	if removed, _ := res.Result.(int64); removed == 1 {
		e.println("unregistered %s", name)
	} else {
		e.println("%s was not registered", name)
	}
	return nil
}
