package command

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/gedis-go/internal/cli/config"
	"github.com/yndnr/gedis-go/internal/cli/connection"
	"github.com/yndnr/gedis-go/internal/cli/output"
	"github.com/yndnr/gedis-go/internal/client"
	"github.com/yndnr/gedis-go/internal/infra/buildinfo"
	"github.com/yndnr/gedis-go/internal/telemetry/logger"
)

const envKey = "gedis.env"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:                 "gedis-cli",
		Usage:                "Call actors on a gedis server",
		Version:              buildinfo.String(),
		Flags:                globalFlags(),
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			ActorsCommand(),
			CallCommand(),
			PingCommand(),
			ConnectCommand(),
			UseCommand(),
			ProfilesCommand(),
			KeygenCommand(),
			ShellCommand(),
		},
		Before: setup,
		After:  teardown,
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "CLI config file",
			EnvVars: []string{"GEDIS_CLI_CONFIG"},
			Value:   config.DefaultConfigPath(),
		},
		&cli.StringFlag{
			Name:    "profile",
			Aliases: []string{"p"},
			Usage:   "Saved server profile to use",
		},
		&cli.StringFlag{
			Name:    "addr",
			Aliases: []string{"a"},
			Usage:   "Server address (host:port or unix:///path/to.sock)",
			EnvVars: []string{"GEDIS_ADDR"},
		},
		&cli.StringFlag{
			Name:  "key-file",
			Usage: "Client identity file for the AUTH handshake",
		},
		&cli.StringFlag{
			Name:  "directory-file",
			Usage: "Directory file with the server public keys",
		},
		&cli.Int64Flag{
			Name:  "server-id",
			Usage: "Peer id of the server in the directory",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Timeout of a single command",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Enable debug logging",
		},
	}
}

// env is the state shared by the commands of one invocation.
type env struct {
	cfg     *config.CLIConfig
	cfgPath string
	profile config.Profile
	format  output.Format
	timeout time.Duration
	conns   *connection.Manager
	logger  *slog.Logger
	out     io.Writer
}

func setup(c *cli.Context) error {
	cfgPath := c.String("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if name := c.String("profile"); name != "" {
		if err := cfg.Use(name); err != nil {
			return err
		}
	}
	profile := cfg.Active()
	if c.IsSet("addr") {
		profile.Addr = c.String("addr")
	}
	if c.IsSet("key-file") {
		profile.KeyFile = c.String("key-file")
	}
	if c.IsSet("directory-file") {
		profile.DirectoryFile = c.String("directory-file")
	}
	if c.IsSet("server-id") {
		profile.ServerID = c.Int64("server-id")
	}

	formatName := cfg.Output
	if c.IsSet("output") {
		formatName = c.String("output")
	}
	format, err := output.ParseFormat(formatName)
	if err != nil {
		return err
	}

	timeout := cfg.Timeout
	if c.IsSet("timeout") {
		timeout = c.Duration("timeout")
	}

	level := "warn"
	if c.Bool("verbose") {
		level = "debug"
	}
	log, err := logger.New(logger.Config{Level: level, Format: "text", Output: c.App.ErrWriter})
	if err != nil {
		return err
	}

	out := c.App.Writer
	if out == nil {
		out = os.Stdout
	}

	c.App.Metadata[envKey] = &env{
		cfg:     cfg,
		cfgPath: cfgPath,
		profile: profile,
		format:  format,
		timeout: timeout,
		conns:   connection.NewManager(logger.Slog(log)),
		logger:  logger.Slog(log),
		out:     out,
	}
	return nil
}

func teardown(c *cli.Context) error {
	if e, ok := c.App.Metadata[envKey].(*env); ok {
		return e.conns.Close()
	}
	return nil
}

// getEnv retrieves the invocation environment from context.
func getEnv(c *cli.Context) *env {
	for _, ctx := range c.Lineage() {
		if ctx.App == nil {
			continue
		}
		if e, ok := ctx.App.Metadata[envKey].(*env); ok {
			return e
		}
	}
	panic("command: environment not initialized")
}

// callContext returns a context bounded by the command timeout.
func (e *env) callContext(parent context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, e.timeout)
}

// client returns the connection to the selected server, opening it on
// first use.
func (e *env) client(ctx context.Context) (*client.Client, error) {
	if c, err := e.conns.Client(); err == nil {
		return c, nil
	}
	return e.conns.Connect(ctx, e.profile, e.timeout)
}

// print writes data in the selected output format.
func (e *env) print(data any) error {
	return output.NewFormatter(e.format).Format(e.out, data)
}

// println writes a status line. Machine-readable formats skip it.
func (e *env) println(format string, args ...any) {
	if e.format == output.FormatTable {
		fmt.Fprintf(e.out, format+"\n", args...)
	}
}
