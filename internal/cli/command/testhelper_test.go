package command

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/gedis-go/internal/actor"
	"github.com/yndnr/gedis-go/internal/actor/builtin"
	"github.com/yndnr/gedis-go/internal/server/redisserver"
	"github.com/yndnr/gedis-go/internal/telemetry/logger"
)

const (
	greeterSource = "../../actor/testdata/greeter.lua"
	counterSource = "../../actor/testdata/counter.lua"
)

// startServer runs a RESP server with the greeter and echo actors.
func startServer(t *testing.T, cfg *redisserver.Config, opts ...redisserver.Option) string {
	t.Helper()

	loader := actor.NewLoader(logger.Nop())
	builtin.Register(loader)
	reg := actor.NewRegistry(loader, actor.WithLogger(logger.Nop()))
	ctx := context.Background()
	if _, err := reg.Register(ctx, "greeter", greeterSource, false); err != nil {
		t.Fatalf("register greeter: %v", err)
	}
	if _, err := reg.Register(ctx, "echo", "builtin:echo", false); err != nil {
		t.Fatalf("register echo: %v", err)
	}

	inv := actor.NewInvoker(reg, actor.InvokerConfig{CallTimeout: 2 * time.Second, Logger: logger.Nop()})
	if cfg == nil {
		cfg = redisserver.DefaultConfig()
	}
	cfg.Address = "127.0.0.1:0"
	cfg.RateLimit = 0
	opts = append([]redisserver.Option{redisserver.WithLogger(logger.Slog(logger.Nop()))}, opts...)
	srv := redisserver.New(cfg, inv, opts...)
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		_ = reg.Close()
	})
	return srv.Addr().String()
}

// cliRunner runs gedis-cli against one config file.
type cliRunner struct {
	t       *testing.T
	cfgPath string
	stdin   string
}

func newRunner(t *testing.T) *cliRunner {
	return &cliRunner{t: t, cfgPath: filepath.Join(t.TempDir(), "cli.yaml")}
}

// run executes the app and returns what it printed.
func (r *cliRunner) run(args ...string) (string, error) {
	r.t.Helper()

	app := App()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = io.Discard
	app.Reader = strings.NewReader(r.stdin)
	app.ExitErrHandler = func(*cli.Context, error) {}

	argv := append([]string{"gedis-cli", "--config", r.cfgPath, "--timeout", "5s"}, args...)
	err := app.Run(argv)
	return out.String(), err
}

// mustRun fails the test when the command fails.
func (r *cliRunner) mustRun(args ...string) string {
	r.t.Helper()
	out, err := r.run(args...)
	if err != nil {
		r.t.Fatalf("gedis-cli %s: %v", strings.Join(args, " "), err)
	}
	return out
}
