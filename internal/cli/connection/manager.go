package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yndnr/gedis-go/internal/cli/config"
	"github.com/yndnr/gedis-go/internal/client"
	"github.com/yndnr/gedis-go/pkg/crypto/identity"
)

// ErrNotConnected is returned when no connection is open.
var ErrNotConnected = errors.New("not connected to any server")

// Manager manages the connection to a gedis server.
type Manager struct {
	mu      sync.Mutex
	profile config.Profile
	client  *client.Client
	logger  *slog.Logger
}

// NewManager creates a new connection manager.
func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{logger: log}
}

// Connect opens a connection for p, replacing the current one.
func (m *Manager) Connect(ctx context.Context, p config.Profile, timeout time.Duration) (*client.Client, error) {
	cfg, err := ClientConfig(p)
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		cfg.ReadTimeout = timeout
	}

	c, err := client.New(ctx, cfg, client.WithLogger(m.logger))
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", p.Addr, err)
	}

	m.mu.Lock()
	old := m.client
	m.client, m.profile = c, p
	m.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return c, nil
}

// ClientConfig builds the client configuration for a profile.
func ClientConfig(p config.Profile) (client.Config, error) {
	cfg := client.Config{Addr: p.Addr, ServerID: p.ServerID}
	if cfg.Addr == "" {
		cfg.Addr = config.DefaultAddr
	}
	if p.KeyFile == "" {
		return cfg, nil
	}

	id, err := identity.Load(p.KeyFile)
	if err != nil {
		return client.Config{}, err
	}
	if p.DirectoryFile == "" {
		return client.Config{}, errors.New("directory_file is required with key_file")
	}
	dir, err := identity.LoadDirectory(p.DirectoryFile)
	if err != nil {
		return client.Config{}, err
	}
	cfg.Identity = id
	cfg.Directory = dir
	return cfg, nil
}

// Client returns the open client.
func (m *Manager) Client() (*client.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return nil, ErrNotConnected
	}
	return m.client, nil
}

// Profile returns the profile of the open connection.
func (m *Manager) Profile() config.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profile
}

// IsConnected returns true if connected to a server.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client != nil
}

// Close closes the current connection.
func (m *Manager) Close() error {
	m.mu.Lock()
	c := m.client
	m.client = nil
	m.profile = config.Profile{}
	m.mu.Unlock()

	if c == nil {
		return nil
	}
	return c.Close()
}
