package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/gedis-go/internal/infra/buildinfo"
	"github.com/yndnr/gedis-go/internal/infra/confloader"
	"github.com/yndnr/gedis-go/internal/server/config"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "gedis-server",
		Usage:   "Actor server speaking the Redis protocol",
		Version: buildinfo.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				EnvVars: []string{"GEDIS_CONFIG"},
			},
			&cli.StringFlag{Name: "addr", Usage: "Redis protocol listen address"},
			&cli.BoolFlag{Name: "require-auth", Usage: "Reject calls before a successful AUTH"},
			&cli.StringFlag{Name: "key-file", Usage: "Server identity file"},
			&cli.StringFlag{Name: "directory-file", Usage: "Peer public key directory"},
			&cli.BoolFlag{Name: "local", Usage: "Serve the local management socket"},
			&cli.StringFlag{Name: "local-socket", Usage: "Local management socket path"},
			&cli.BoolFlag{Name: "gateway", Usage: "Enable the HTTP gateway"},
			&cli.StringFlag{Name: "gateway-addr", Usage: "HTTP gateway listen address"},
			&cli.BoolFlag{Name: "storage", Usage: "Persist actor registrations"},
			&cli.StringFlag{Name: "data-dir", Usage: "Storage directory"},
			&cli.BoolFlag{Name: "watch", Usage: "Reload Lua actors when their source changes"},
			&cli.StringSliceFlag{Name: "preload", Usage: "Actor to load at startup, as NAME=PATH (repeatable)"},
			&cli.StringFlag{Name: "log-level", Usage: "Log level (debug, info, warn, error)"},
			&cli.StringFlag{Name: "log-format", Usage: "Log format (json, text)"},
		},
		Action: run,
	}
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"addr":           "server.redis.addr",
	"require-auth":   "server.redis.require_auth",
	"key-file":       "identity.key_file",
	"directory-file": "identity.directory_file",
	"local":          "server.local.enabled",
	"local-socket":   "server.local.socket",
	"gateway":        "server.gateway.enabled",
	"gateway-addr":   "server.gateway.addr",
	"storage":        "storage.enabled",
	"data-dir":       "storage.data_dir",
	"watch":          "actors.watch",
	"log-level":      "log.level",
	"log-format":     "log.format",
}

func run(c *cli.Context) error {
	overrides := make(map[string]any)
	for name, key := range flagKeys {
		if c.IsSet(name) {
			overrides[key] = c.Value(name)
		}
	}
	preload, err := parsePreload(c.StringSlice("preload"))
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c.String("config"), overrides, preload)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	log.Info("starting gedis-server",
		"version", buildinfo.String(),
		"config", c.String("config"),
	)
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	srv, err := newServer(cfg, log)
	if err != nil {
		return err
	}
	if err := srv.start(c.Context); err != nil {
		srv.stop(c.Context)
		return err
	}

	log.Info("server started, press Ctrl+C to stop")
	if err := srv.wait(c.Context); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig applies defaults, the configuration file, the environment,
// flag overrides and preload entries, in that order, then verifies.
func loadConfig(configFile string, overrides map[string]any, preload map[string]string) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{confloader.WithOverrides(overrides)}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}

	if cfg.Actors.Preload == nil {
		cfg.Actors.Preload = make(map[string]string)
	}
	for name, path := range preload {
		cfg.Actors.Preload[name] = path
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// parsePreload parses NAME=PATH pairs.
func parsePreload(values []string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for _, v := range values {
		name, path, ok := strings.Cut(v, "=")
		name = strings.TrimSpace(name)
		path = strings.TrimSpace(path)
		if !ok || name == "" || path == "" {
			return nil, fmt.Errorf("invalid --preload %q, expected NAME=PATH", v)
		}
		out[name] = path
	}
	return out, nil
}
