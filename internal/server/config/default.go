package config

import "time"

// Default configuration values.
const (
	DefaultRedisAddr       = "127.0.0.1:6379"
	DefaultGatewayAddr     = "127.0.0.1:5080"
	DefaultGatewayPackage  = "actors"
	DefaultLocalSocket     = "/run/gedis-server/gedis.sock"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 5 * time.Minute
	DefaultCallTimeout     = 30 * time.Second
	DefaultRateLimit       = 1000
	DefaultShutdownTimeout = 10 * time.Second

	DefaultMaxClockSkew  = 60 * time.Second
	DefaultWatchDebounce = 200 * time.Millisecond

	DefaultDataDir    = "/var/lib/gedis-server/data"
	DefaultGCInterval = 10 * time.Minute

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			Redis: RedisConfig{
				Addr:         DefaultRedisAddr,
				ReadTimeout:  DefaultReadTimeout,
				WriteTimeout: DefaultWriteTimeout,
				IdleTimeout:  DefaultIdleTimeout,
				CallTimeout:  DefaultCallTimeout,
				RateLimit:    DefaultRateLimit,
			},
			Gateway: GatewayConfig{
				Enabled:   false,
				Addr:      DefaultGatewayAddr,
				Package:   DefaultGatewayPackage,
				RateLimit: DefaultRateLimit,
				Audit:     true,
			},
			Local: LocalConfig{
				Socket: DefaultLocalSocket,
			},
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Identity: IdentitySection{
			MaxClockSkew: DefaultMaxClockSkew,
		},
		Actors: ActorsSection{
			Preload:       map[string]string{},
			Builtins:      true,
			WatchDebounce: DefaultWatchDebounce,
		},
		Storage: StorageSection{
			Enabled:    false,
			DataDir:    DefaultDataDir,
			GCInterval: DefaultGCInterval,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
