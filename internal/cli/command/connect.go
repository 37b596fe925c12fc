package command

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/gedis-go/internal/cli/config"
	"github.com/yndnr/gedis-go/internal/cli/output"
)

// ConnectCommand returns the connect command.
func ConnectCommand() *cli.Command {
	return &cli.Command{
		Name:      "connect",
		Usage:     "Check a server and save it as a profile",
		ArgsUsage: "[ADDR]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "Profile name",
				Value:   "default",
			},
		},
		Action: connectAction,
	}
}

func connectAction(c *cli.Context) error {
	e := getEnv(c)

	profile := e.profile
	if addr := c.Args().First(); addr != "" {
		profile.Addr = addr
	}
	name := c.String("name")

	ctx, cancel := e.callContext(c.Context)
	defer cancel()

	cl, err := e.conns.Connect(ctx, profile, e.timeout)
	if err != nil {
		return err
	}
	if err := cl.Ping(ctx); err != nil {
		return err
	}

	e.cfg.Profiles[name] = profile
	e.cfg.Current = name
	if err := config.Save(e.cfg, e.cfgPath); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	e.println("Connected to %s (%d actors), saved as profile %q", profile.Addr, len(cl.Actors()), name)
	return nil
}

// UseCommand returns the use command for switching profiles.
func UseCommand() *cli.Command {
	return &cli.Command{
		Name:      "use",
		Usage:     "Switch to a saved profile",
		ArgsUsage: "PROFILE",
		Action: func(c *cli.Context) error {
			name := c.Args().First()
			if name == "" {
				return fmt.Errorf("profile name required")
			}
			e := getEnv(c)
			if err := e.cfg.Use(name); err != nil {
				return err
			}
			if err := config.Save(e.cfg, e.cfgPath); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			e.println("Switched to profile %q (%s)", name, e.cfg.Profiles[name].Addr)
			return nil
		},
	}
}

// ProfilesCommand returns the profiles command.
func ProfilesCommand() *cli.Command {
	return &cli.Command{
		Name:  "profiles",
		Usage: "List saved profiles",
		Action: func(c *cli.Context) error {
			e := getEnv(c)

			names := make([]string, 0, len(e.cfg.Profiles))
			for n := range e.cfg.Profiles {
				names = append(names, n)
			}
			sort.Strings(names)

			table := &output.Table{Headers: []string{"CURRENT", "NAME", "ADDR", "KEY_FILE", "SERVER_ID"}}
			for _, n := range names {
				p := e.cfg.Profiles[n]
				current := ""
				if n == e.cfg.Current {
					current = "*"
				}
				serverID := "-"
				if p.ServerID != 0 {
					serverID = strconv.FormatInt(p.ServerID, 10)
				}
				table.AddRow(current, n, p.Addr, output.FormatValue(p.KeyFile), serverID)
			}
			return e.print(table)
		},
	}
}
