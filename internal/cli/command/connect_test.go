package command

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yndnr/gedis-go/internal/cli/config"
	"github.com/yndnr/gedis-go/internal/core/service"
	"github.com/yndnr/gedis-go/internal/server/redisserver"
	"github.com/yndnr/gedis-go/pkg/crypto/identity"
)

func TestConnectUseProfiles(t *testing.T) {
	addr := startServer(t, nil)
	r := newRunner(t)

	out := r.mustRun("connect", "--name", "local", addr)
	if !strings.Contains(out, `saved as profile "local"`) || !strings.Contains(out, "(4 actors)") {
		t.Errorf("connect output = %q", out)
	}

	cfg, err := config.Load(r.cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Current != "local" || cfg.Profiles["local"].Addr != addr {
		t.Errorf("saved config = %+v", cfg)
	}

	// The saved profile is used without --addr.
	if got := r.mustRun("call", "greeter", "hi"); got != "hello world\n" {
		t.Errorf("call via profile = %q", got)
	}

	r.mustRun("connect", "--name", "other", addr)
	out = r.mustRun("profiles")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[2], "*") || !strings.Contains(lines[2], "other") {
		t.Errorf("profiles = %q", out)
	}

	if got := r.mustRun("use", "local"); !strings.Contains(got, `Switched to profile "local"`) {
		t.Errorf("use output = %q", got)
	}
	if _, err := r.run("use", "missing"); err == nil {
		t.Error("use of an unknown profile should fail")
	}
	if _, err := r.run("--profile", "other", "ping"); err != nil {
		t.Errorf("ping with --profile: %v", err)
	}

	if _, err := r.run("connect", "--name", "dead", "127.0.0.1:1"); err == nil {
		t.Error("connect to a closed port should fail")
	}
	cfg, _ = config.Load(r.cfgPath)
	if _, ok := cfg.Profiles["dead"]; ok {
		t.Error("a failed connect should not save the profile")
	}
}

func TestKeygen(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "client.key")
	dirFile := filepath.Join(dir, "peers.yaml")
	r := newRunner(t)

	out := r.mustRun("-o", "json", "keygen", "--id", "42", "--out", keyFile, "--directory", dirFile)
	if !strings.Contains(out, `"id": 42`) || !strings.Contains(out, `"sign_key"`) {
		t.Errorf("keygen output = %q", out)
	}

	id, err := identity.Load(keyFile)
	if err != nil {
		t.Fatalf("load identity: %v", err)
	}
	if id.ID != 42 {
		t.Errorf("id = %d", id.ID)
	}

	r.mustRun("keygen", "--id", "43", "--out", filepath.Join(dir, "other.key"), "--directory", dirFile)
	peers, err := identity.LoadDirectory(dirFile)
	if err != nil {
		t.Fatal(err)
	}
	if peers.Len() != 2 {
		t.Errorf("directory has %d peers, want 2", peers.Len())
	}
	keys, err := peers.LookupPublicKey(context.Background(), 42)
	if err != nil || !keys.SignKey.Equal(id.Public().SignKey) {
		t.Errorf("directory keys for 42: %v", err)
	}

	if _, err := r.run("keygen", "--id", "42", "--out", keyFile); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("keygen over an existing file: err = %v", err)
	}
	r.mustRun("keygen", "--id", "44", "--out", keyFile, "--force")
	if id, _ := identity.Load(keyFile); id == nil || id.ID != 44 {
		t.Error("--force should overwrite the identity")
	}
}

func TestCall_Authenticated(t *testing.T) {
	dir := t.TempDir()
	r := newRunner(t)

	serverKey := filepath.Join(dir, "server.key")
	serverPeers := filepath.Join(dir, "server-peers.yaml")
	clientKey := filepath.Join(dir, "client.key")
	clientPeers := filepath.Join(dir, "client-peers.yaml")

	// Each side knows the other's public keys.
	r.mustRun("keygen", "--id", "1", "--out", serverKey, "--directory", clientPeers)
	r.mustRun("keygen", "--id", "42", "--out", clientKey, "--directory", serverPeers)

	serverID, err := identity.Load(serverKey)
	if err != nil {
		t.Fatal(err)
	}
	known, err := identity.LoadDirectory(serverPeers)
	if err != nil {
		t.Fatal(err)
	}
	cfg := redisserver.DefaultConfig()
	cfg.RequireAuth = true
	addr := startServer(t, cfg, redisserver.WithAuthenticator(service.NewHandshakeService(serverID, known, nil)))

	got := r.mustRun("-a", addr, "--key-file", clientKey, "--directory-file", clientPeers, "--server-id", "1", "call", "greeter", "hi")
	if got != "hello world\n" {
		t.Errorf("authenticated call = %q", got)
	}

	if _, err := r.run("-a", addr, "call", "greeter", "hi"); err == nil {
		t.Error("call without identity should be rejected")
	}
}

func TestShell(t *testing.T) {
	addr := startServer(t, nil)
	r := newRunner(t)
	r.stdin = strings.Join([]string{
		"greeter hi",
		"greeter add2 1 2",
		"actors",
		"info greeter",
		"greeter",
		"greeter find bob",
		"complete greeter gr",
		"exit",
	}, "\n") + "\n"

	out := r.mustRun("-a", addr, "shell", "--history-file", "")
	for _, want := range []string{
		addr + "> hello world\n",
		"3\n",
		"greeter\n",
		"Greet someone.",
		"error: usage: ACTOR METHOD",
		"error: NotFound: user bob not found",
		"greeter greet\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("shell output missing %q:\n%s", want, out)
		}
	}
}
