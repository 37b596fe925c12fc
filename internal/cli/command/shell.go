package command

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/gedis-go/internal/cli/repl"
	"github.com/yndnr/gedis-go/internal/client"
)

// shellCommands are the words the shell handles itself.
var shellCommands = []string{"actors", "info", "refresh", "help"}

// ShellCommand returns the interactive shell command.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Start an interactive shell",
		Description: `Each line is "ACTOR METHOD [ARG...] [NAME=VALUE...]", parsed like the
arguments of "call". The shell also understands: actors, info ACTOR,
refresh, history, complete PREFIX, help, exit.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "history-file",
				Usage: "History file (empty disables persistence)",
				Value: repl.DefaultHistoryFile(),
			},
		},
		Action: shellAction,
	}
}

func shellAction(c *cli.Context) error {
	e := getEnv(c)

	ctx, cancel := e.callContext(c.Context)
	cl, err := e.client(ctx)
	cancel()
	if err != nil {
		return err
	}

	history := repl.NewHistory(c.String("history-file"), repl.DefaultHistorySize)
	if err := history.Load(); err != nil {
		e.logger.Warn("failed to load history", "error", err)
	}
	defer func() {
		if err := history.Save(); err != nil {
			e.logger.Warn("failed to save history", "error", err)
		}
	}()

	in := c.App.Reader
	if in == nil {
		in = os.Stdin
	}
	r := repl.New(in, e.out, e.shellExecutor(cl), repl.NewCompleter(shellCommands, clientSource{cl}), history)
	r.SetPrompt(e.profile.Addr + "> ")
	return r.Run(c.Context)
}

func (e *env) shellExecutor(cl *client.Client) repl.Executor {
	return func(ctx context.Context, args []string) error {
		switch args[0] {
		case "help":
			fmt.Fprintln(e.out, "ACTOR METHOD [ARG...] [NAME=VALUE...] | actors | info ACTOR | refresh | history | complete PREFIX | exit")
			return nil
		case "actors":
			return e.print(cl.Actors())
		case "info":
			if len(args) != 2 {
				return fmt.Errorf("usage: info ACTOR")
			}
			callCtx, cancel := e.callContext(ctx)
			defer cancel()
			desc, err := cl.Describe(callCtx, args[1])
			if err != nil {
				return err
			}
			return e.print(describeTable(desc))
		case "refresh":
			callCtx, cancel := e.callContext(ctx)
			defer cancel()
			return cl.Refresh(callCtx)
		}
		if len(args) < 2 {
			return fmt.Errorf("usage: ACTOR METHOD [ARG...]")
		}
		return e.call(ctx, args)
	}
}

// clientSource completes the actors and methods the client discovered.
type clientSource struct {
	cl *client.Client
}

func (s clientSource) Actors() []string {
	return s.cl.Actors()
}

func (s clientSource) Methods(actor string) []string {
	p, ok := s.cl.Actor(actor)
	if !ok {
		return nil
	}
	return p.Methods()
}
