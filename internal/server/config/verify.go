package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/yndnr/gedis-go/internal/telemetry/logger"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyIdentity(&cfg.Identity, cfg.Server.Redis.RequireAuth); err != nil {
		return err
	}
	if err := verifyActors(&cfg.Actors); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyServer(cfg *ServerSection) error {
	if err := verifyAddr("server.redis.addr", cfg.Redis.Addr); err != nil {
		return err
	}
	if cfg.Redis.ReadTimeout < 0 || cfg.Redis.WriteTimeout < 0 || cfg.Redis.IdleTimeout < 0 {
		return errors.New("server.redis timeouts must not be negative")
	}
	if cfg.Redis.RateLimit < 0 {
		return errors.New("server.redis.rate_limit must not be negative")
	}
	if cfg.Redis.MaxConnections < 0 {
		return errors.New("server.redis.max_connections must not be negative")
	}

	if cfg.Gateway.Enabled {
		if err := verifyAddr("server.gateway.addr", cfg.Gateway.Addr); err != nil {
			return err
		}
		if cfg.Gateway.Addr == cfg.Redis.Addr {
			return fmt.Errorf("server.gateway.addr conflicts with server.redis.addr (%s)", cfg.Redis.Addr)
		}
		if cfg.Gateway.Package == "" || strings.Contains(cfg.Gateway.Package, "/") {
			return fmt.Errorf("server.gateway.package %q must be a single path segment", cfg.Gateway.Package)
		}
		for _, entry := range cfg.Gateway.AllowList {
			if err := verifyACLEntry(entry); err != nil {
				return err
			}
		}
	}

	if cfg.Local.Enabled && !filepath.IsAbs(cfg.Local.Socket) {
		return fmt.Errorf("server.local.socket %q must be an absolute path", cfg.Local.Socket)
	}
	return nil
}

func verifyAddr(key, addr string) error {
	if addr == "" {
		return fmt.Errorf("%s is required", key)
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("%s: invalid address %q: %w", key, addr, err)
	}
	return nil
}

func verifyACLEntry(entry string) error {
	if strings.Contains(entry, "/") {
		if _, _, err := net.ParseCIDR(entry); err != nil {
			return fmt.Errorf("server.gateway.allow_list: invalid CIDR %q", entry)
		}
		return nil
	}
	if net.ParseIP(entry) == nil {
		return fmt.Errorf("server.gateway.allow_list: invalid IP %q", entry)
	}
	return nil
}

func verifyIdentity(cfg *IdentitySection, requireAuth bool) error {
	if !requireAuth {
		return nil
	}
	if cfg.KeyFile == "" {
		return errors.New("identity.key_file is required when server.redis.require_auth is set")
	}
	if cfg.DirectoryFile == "" {
		return errors.New("identity.directory_file is required when server.redis.require_auth is set")
	}
	for _, path := range []string{cfg.KeyFile, cfg.DirectoryFile} {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("identity file: %w", err)
		}
	}
	if cfg.MaxClockSkew <= 0 {
		return errors.New("identity.max_clock_skew must be positive")
	}
	return nil
}

func verifyActors(cfg *ActorsSection) error {
	for name, path := range cfg.Preload {
		if name == "" || path == "" {
			return fmt.Errorf("actors.preload: empty name or path (%q: %q)", name, path)
		}
	}
	if cfg.Watch && cfg.WatchDebounce < 0 {
		return errors.New("actors.watch_debounce must not be negative")
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}

	// Check if data directory exists or can be created
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return errors.New("cannot create data directory: " + err.Error())
	}
	if cfg.GCInterval < 0 {
		return errors.New("storage.gc_interval must not be negative")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	if _, err := logger.ParseLevel(cfg.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch strings.ToLower(cfg.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("log.format %q is not one of json, text", cfg.Format)
	}
	return nil
}
