package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/gedis-go/internal/client"
	"github.com/yndnr/gedis-go/internal/core/domain"
)

// CallCommand returns the call command.
func CallCommand() *cli.Command {
	return &cli.Command{
		Name:      "call",
		Usage:     "Call an actor method",
		ArgsUsage: "ACTOR METHOD [ARG...] [NAME=VALUE...]",
		Description: `Positional arguments and NAME=VALUE keyword arguments are sent as JSON.
Values that parse as JSON (numbers, true, false, null, objects, arrays,
quoted strings) keep their type, anything else is sent as a string.

   gedis-cli call greeter add2 1 2
   gedis-cli call greeter greet name=jo punctuation='"?"'`,
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return fmt.Errorf("usage: %s call ACTOR METHOD [ARG...]", c.App.Name)
			}
			e := getEnv(c)
			return e.call(c.Context, c.Args().Slice())
		},
	}
}

// call runs "ACTOR METHOD ARGS..." and prints the result.
func (e *env) call(parent context.Context, words []string) error {
	if len(words) < 2 {
		return fmt.Errorf("actor and method required")
	}
	actorName, method := words[0], words[1]
	args, kwargs := ParseCallArgs(words[2:])

	ctx, cancel := e.callContext(parent)
	defer cancel()

	cl, err := e.client(ctx)
	if err != nil {
		return err
	}

	e.logger.Debug("calling actor", "actor", actorName, "method", method, "args", len(args), "kwargs", len(kwargs))
	res, err := cl.Execute(ctx, actorName, method, args, kwargs, client.Die())
	if err != nil {
		return err
	}
	return e.print(res.Result)
}

// ParseCallArgs splits command-line words into positional and keyword
// arguments. A word is a keyword argument when it starts with an
// identifier followed by "=".
func ParseCallArgs(words []string) ([]any, map[string]any) {
	var args []any
	var kwargs map[string]any

	for _, w := range words {
		if key, value, ok := strings.Cut(w, "="); ok && isIdentifier(key) {
			if kwargs == nil {
				kwargs = make(map[string]any)
			}
			kwargs[key] = ParseValue(value)
			continue
		}
		args = append(args, ParseValue(w))
	}
	return args, kwargs
}

// ParseValue decodes s as a JSON literal, falling back to the raw string.
func ParseValue(s string) any {
	if s == "" {
		return s
	}
	v, err := domain.DecodeJSON([]byte(s))
	if err != nil {
		return s
	}
	return v
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// PingCommand returns the ping command.
func PingCommand() *cli.Command {
	return &cli.Command{
		Name:  "ping",
		Usage: "Check that the server answers",
		Action: func(c *cli.Context) error {
			e := getEnv(c)
			ctx, cancel := e.callContext(c.Context)
			defer cancel()

			start := time.Now()
			cl, err := e.client(ctx)
			if err != nil {
				return err
			}
			if err := cl.Ping(ctx); err != nil {
				return err
			}
			e.println("PONG from %s in %s", e.profile.Addr, time.Since(start).Round(time.Microsecond))
			return nil
		},
	}
}
