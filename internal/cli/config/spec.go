package config

import (
	"fmt"
	"time"
)

// DefaultAddr is the address used when no profile is configured.
const DefaultAddr = "127.0.0.1:6379"

// CLIConfig is the configuration for gedis-cli.
type CLIConfig struct {
	// Output is the default output format (table, json, yaml).
	Output string `koanf:"output" yaml:"output"`

	// Timeout bounds a single command.
	Timeout time.Duration `koanf:"timeout" yaml:"timeout"`

	// Profiles are the saved servers.
	Profiles map[string]Profile `koanf:"profiles" yaml:"profiles"`

	// Current is the active profile name.
	Current string `koanf:"current" yaml:"current"`
}

// Profile stores how to reach one server.
type Profile struct {
	Addr string `koanf:"addr" yaml:"addr"`

	// KeyFile is the client identity. Empty skips the AUTH handshake.
	KeyFile string `koanf:"key_file" yaml:"key_file,omitempty"`

	// DirectoryFile holds the server public keys.
	DirectoryFile string `koanf:"directory_file" yaml:"directory_file,omitempty"`

	// ServerID is the peer id of the server in the directory.
	ServerID int64 `koanf:"server_id" yaml:"server_id,omitempty"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Output:   "table",
		Timeout:  30 * time.Second,
		Profiles: make(map[string]Profile),
	}
}

// Active returns the current profile, or a profile for DefaultAddr when
// none is selected.
func (c *CLIConfig) Active() Profile {
	if p, ok := c.Profiles[c.Current]; ok {
		return p
	}
	return Profile{Addr: DefaultAddr}
}

// Use selects a saved profile.
func (c *CLIConfig) Use(name string) error {
	if _, ok := c.Profiles[name]; !ok {
		return fmt.Errorf("profile %q not found", name)
	}
	c.Current = name
	return nil
}
