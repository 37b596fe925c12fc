package config

import "time"

// ServerConfig is the root configuration for gedis-server.
type ServerConfig struct {
	Server   ServerSection   `koanf:"server"`
	Identity IdentitySection `koanf:"identity"`
	Actors   ActorsSection   `koanf:"actors"`
	Storage  StorageSection  `koanf:"storage"`
	Log      LogSection      `koanf:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	Redis   RedisConfig   `koanf:"redis"`
	Gateway GatewayConfig `koanf:"gateway"`
	Local   LocalConfig   `koanf:"local"`

	// ShutdownTimeout bounds the graceful stop.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LocalConfig configures the Unix socket management listener. It serves
// the same protocol as the Redis listener without requiring AUTH.
type LocalConfig struct {
	Enabled bool   `koanf:"enabled"`
	Socket  string `koanf:"socket"`
}

// RedisConfig configures the RESP actor server.
type RedisConfig struct {
	Addr           string        `koanf:"addr"`
	ReadTimeout    time.Duration `koanf:"read_timeout"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
	IdleTimeout    time.Duration `koanf:"idle_timeout"`
	CallTimeout    time.Duration `koanf:"call_timeout"`
	RateLimit      int           `koanf:"rate_limit"`
	MaxConnections int           `koanf:"max_connections"`
	RequireAuth    bool          `koanf:"require_auth"`
}

// GatewayConfig configures the HTTP gateway.
type GatewayConfig struct {
	Enabled   bool     `koanf:"enabled"`
	Addr      string   `koanf:"addr"`
	Package   string   `koanf:"package"`
	RateLimit int      `koanf:"rate_limit"`
	AllowList []string `koanf:"allow_list"`
	CORS      []string `koanf:"cors_origins"`
	Audit     bool     `koanf:"audit"`
}

// IdentitySection configures the server identity used by AUTH.
type IdentitySection struct {
	// KeyFile holds the server identity (see gedis-cli keygen).
	KeyFile string `koanf:"key_file"`

	// DirectoryFile lists the public keys of known peers.
	DirectoryFile string `koanf:"directory_file"`

	// MaxClockSkew bounds the age of AUTH tokens.
	MaxClockSkew time.Duration `koanf:"max_clock_skew"`
}

// ActorsSection configures the actors loaded at startup.
type ActorsSection struct {
	// Preload maps actor names to source paths registered at startup.
	Preload map[string]string `koanf:"preload"`

	// Builtins registers the Go example actors (greeter, echo).
	Builtins bool `koanf:"builtins"`

	// Watch reloads Lua sources when they change on disk.
	Watch bool `koanf:"watch"`

	// WatchDebounce coalesces bursts of file events.
	WatchDebounce time.Duration `koanf:"watch_debounce"`
}

// StorageSection configures persistence of register_actor calls.
type StorageSection struct {
	Enabled    bool          `koanf:"enabled"`
	DataDir    string        `koanf:"data_dir"`
	GCInterval time.Duration `koanf:"gc_interval"`
	SyncWrites bool          `koanf:"sync_writes"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
