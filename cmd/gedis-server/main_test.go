package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yndnr/gedis-go/internal/client"
	"github.com/yndnr/gedis-go/internal/server/config"
	"github.com/yndnr/gedis-go/internal/telemetry/logger"
)

const greeterSource = "../../internal/actor/testdata/greeter.lua"

func TestParsePreload(t *testing.T) {
	got, err := parsePreload([]string{"greeter=./greeter.lua", " echo = builtin:echo "})
	require.NoError(t, err)
	require.Equal(t, map[string]string{
		"greeter": "./greeter.lua",
		"echo":    "builtin:echo",
	}, got)

	for _, bad := range []string{"greeter", "=x.lua", "greeter="} {
		_, err := parsePreload([]string{bad})
		require.Error(t, err, bad)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  redis:
    addr: 127.0.0.1:7000
    call_timeout: 5s
actors:
  preload:
    greeter: ./greeter.lua
log:
  level: debug
`), 0o600))

	cfg, err := loadConfig(path,
		map[string]any{"server.redis.addr": "127.0.0.1:7001", "log.format": "text"},
		map[string]string{"echo": "builtin:echo"},
	)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:7001", cfg.Server.Redis.Addr)
	require.Equal(t, 5*time.Second, cfg.Server.Redis.CallTimeout)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "text", cfg.Log.Format)
	require.Equal(t, map[string]string{
		"greeter": "./greeter.lua",
		"echo":    "builtin:echo",
	}, cfg.Actors.Preload)
	require.Equal(t, config.DefaultIdleTimeout, cfg.Server.Redis.IdleTimeout)

	_, err = loadConfig(path, map[string]any{"log.level": "loud"}, nil)
	require.ErrorContains(t, err, "invalid configuration")
}

func testConfig(dataDir string) *config.ServerConfig {
	cfg := config.Default()
	cfg.Server.Redis.Addr = "127.0.0.1:0"
	cfg.Server.Redis.RateLimit = 0
	cfg.Server.Gateway.Enabled = true
	cfg.Server.Gateway.Addr = "127.0.0.1:0"
	cfg.Server.Gateway.Audit = false
	cfg.Server.ShutdownTimeout = 5 * time.Second
	cfg.Storage.Enabled = true
	cfg.Storage.DataDir = dataDir
	cfg.Actors.Preload = map[string]string{"greeter": greeterSource}
	return cfg
}

// runServer starts srv and returns a stop function that waits for the
// shutdown hooks to finish.
func runServer(t *testing.T, cfg *config.ServerConfig) (*server, func()) {
	t.Helper()

	srv, err := newServer(cfg, logger.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, srv.start(ctx))

	done := make(chan error, 1)
	go func() { done <- srv.wait(ctx) }()

	stopped := false
	stop := func() {
		if stopped {
			return
		}
		stopped = true
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Fatal("server did not stop")
		}
	}
	t.Cleanup(stop)
	return srv, stop
}

func TestServer_EndToEnd(t *testing.T) {
	dataDir := t.TempDir()
	ctx := context.Background()

	cfg := testConfig(dataDir)
	cfg.Server.Local.Enabled = true
	cfg.Server.Local.Socket = filepath.Join(t.TempDir(), "gedis.sock")
	srv, stop := runServer(t, cfg)

	c, err := client.New(ctx, client.Config{Addr: srv.redisAddr().String()})
	require.NoError(t, err)

	res, err := c.Call(ctx, "greeter", "hi")
	require.NoError(t, err)
	require.Equal(t, "hello world", res.Result)

	res, err = c.Call(ctx, "system", "register_actor", "echo", "builtin:echo")
	require.NoError(t, err)
	require.True(t, res.Success)

	resp, err := http.Get("http://" + srv.gateway.Addr().String() + "/actors/greeter/hi")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, `"hello world"`, strings.TrimSpace(string(body)))

	resp, err = http.Get("http://" + srv.gateway.Addr().String() + "/metrics")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Contains(t, string(body), "gedis_")

	local, err := client.New(ctx, client.Config{Addr: client.UnixScheme + cfg.Server.Local.Socket})
	require.NoError(t, err)
	res, err = local.Call(ctx, "echo", "echo", "over the socket")
	require.NoError(t, err)
	require.Equal(t, "over the socket", res.Result)
	require.NoError(t, local.Close())

	require.NoError(t, c.Close())
	stop()
	require.NoFileExists(t, cfg.Server.Local.Socket)

	// The registration made over the wire survives a restart, the
	// preloaded actor comes from configuration only.
	cfg = testConfig(dataDir)
	cfg.Actors.Preload = nil
	srv, _ = runServer(t, cfg)

	c, err = client.New(ctx, client.Config{Addr: srv.redisAddr().String()})
	require.NoError(t, err)
	defer c.Close()

	res, err = c.Call(ctx, "system", "list_actors")
	require.NoError(t, err)
	require.Contains(t, res.Result, "echo")
	require.NotContains(t, res.Result, "greeter")
}

func TestNewServer_PreloadFailure(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Actors.Preload = map[string]string{"missing": "./does-not-exist.lua"}

	_, err := newServer(cfg, logger.Nop())
	require.ErrorContains(t, err, "preload actor missing")
}
