package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sort"

	"github.com/yndnr/gedis-go/internal/actor"
	"github.com/yndnr/gedis-go/internal/actor/builtin"
	"github.com/yndnr/gedis-go/internal/core/service"
	"github.com/yndnr/gedis-go/internal/infra/confloader"
	"github.com/yndnr/gedis-go/internal/infra/shutdown"
	"github.com/yndnr/gedis-go/internal/server/config"
	"github.com/yndnr/gedis-go/internal/server/httpserver"
	"github.com/yndnr/gedis-go/internal/server/httpserver/handler"
	"github.com/yndnr/gedis-go/internal/server/localserver"
	"github.com/yndnr/gedis-go/internal/server/redisserver"
	"github.com/yndnr/gedis-go/internal/storage"
	"github.com/yndnr/gedis-go/internal/telemetry/logger"
	"github.com/yndnr/gedis-go/internal/telemetry/metric"
	"github.com/yndnr/gedis-go/pkg/crypto/identity"
)

// server holds every component of a running gedis-server.
type server struct {
	cfg  *config.ServerConfig
	log  logger.Logger
	slog *slog.Logger

	metrics  *metric.Registry
	store    *storage.BadgerStore
	registry *actor.Registry
	watcher  *confloader.Watcher
	invoker  *actor.Invoker
	redis    *redisserver.Server
	local    *localserver.Server
	gateway  *httpserver.Server

	shutdown *shutdown.Handler
	errCh    chan error
}

// initLogger initializes the structured logger and makes it the default.
func initLogger(cfg *config.ServerConfig) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)
	return log, nil
}

// newServer builds every component. Nothing listens until start.
func newServer(cfg *config.ServerConfig, log logger.Logger) (*server, error) {
	s := &server{
		cfg:     cfg,
		log:     log,
		slog:    logger.Slog(log),
		metrics: metric.NewRegistry(),
		errCh:   make(chan error, 2),
	}
	s.shutdown = shutdown.NewHandler(cfg.Server.ShutdownTimeout, s.slog)

	if err := s.initActors(); err != nil {
		s.stop(context.Background())
		return nil, err
	}
	if err := s.initRedis(); err != nil {
		s.stop(context.Background())
		return nil, err
	}
	if cfg.Server.Gateway.Enabled {
		s.initGateway()
	}
	return s, nil
}

// initActors sets up storage, the registry, hot reload and the invoker.
func (s *server) initActors() error {
	loader := actor.NewLoader(s.log)
	if s.cfg.Actors.Builtins {
		builtin.Register(loader)
	}

	opts := []actor.Option{actor.WithLogger(s.log)}
	if s.cfg.Storage.Enabled {
		storageCfg := storage.DefaultConfig(s.cfg.Storage.DataDir)
		storageCfg.SyncWrites = s.cfg.Storage.SyncWrites
		if s.cfg.Storage.GCInterval > 0 {
			storageCfg.GCInterval = s.cfg.Storage.GCInterval
		}
		store, err := storage.Open(storageCfg, s.slog)
		if err != nil {
			return fmt.Errorf("init storage: %w", err)
		}
		s.store = store
		s.metrics.MustRegister(store.Collectors()...)
		opts = append(opts, actor.WithStore(store))

		s.shutdown.OnShutdown("storage", func(context.Context) error {
			return s.store.Close()
		})
	}

	s.registry = actor.NewRegistry(loader, opts...)
	s.metrics.MustRegister(metric.NewCollector(s.registry))
	s.shutdown.OnShutdown("registry", func(context.Context) error {
		return s.registry.Close()
	})

	if s.cfg.Actors.Watch {
		w, err := confloader.NewWatcher(
			confloader.WithDebounce(s.cfg.Actors.WatchDebounce),
			confloader.WithWatcherLogger(s.slog),
		)
		if err != nil {
			return fmt.Errorf("init watcher: %w", err)
		}
		s.watcher = w
		actor.NewReloader(s.registry, w, s.metrics, s.log)
		s.shutdown.OnShutdown("watcher", func(context.Context) error {
			return s.watcher.Stop()
		})
	}

	ctx := context.Background()
	restored, err := s.registry.Restore(ctx)
	if err != nil {
		return fmt.Errorf("restore actors: %w", err)
	}

	names := make([]string, 0, len(s.cfg.Actors.Preload))
	for name := range s.cfg.Actors.Preload {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.registry.Preload(ctx, name, s.cfg.Actors.Preload[name]); err != nil {
			return fmt.Errorf("preload actor %s: %w", name, err)
		}
	}

	s.log.Info("actors ready",
		"restored", restored,
		"preloaded", len(names),
		"total", s.registry.Count(),
	)

	s.invoker = actor.NewInvoker(s.registry, actor.InvokerConfig{
		CallTimeout: s.cfg.Server.Redis.CallTimeout,
		Observer:    s.metrics,
		Logger:      s.log,
	})
	return nil
}

// initRedis builds the Redis protocol server, its authenticator and the
// local socket listener.
func (s *server) initRedis() error {
	rc := s.cfg.Server.Redis
	opts := []redisserver.Option{
		redisserver.WithLogger(s.slog),
		redisserver.WithMetrics(s.metrics),
	}

	if rc.RequireAuth {
		self, err := identity.Load(s.cfg.Identity.KeyFile)
		if err != nil {
			return fmt.Errorf("load identity: %w", err)
		}
		dir, err := identity.LoadDirectory(s.cfg.Identity.DirectoryFile)
		if err != nil {
			return fmt.Errorf("load directory: %w", err)
		}
		hsCfg := service.DefaultHandshakeConfig()
		hsCfg.MaxClockSkew = s.cfg.Identity.MaxClockSkew
		opts = append(opts, redisserver.WithAuthenticator(service.NewHandshakeService(self, dir, hsCfg)))
		s.log.Info("authentication enabled", "server_id", self.ID, "peers", dir.Len())
	}

	s.redis = redisserver.New(&redisserver.Config{
		Address:        rc.Addr,
		ReadTimeout:    rc.ReadTimeout,
		WriteTimeout:   rc.WriteTimeout,
		IdleTimeout:    rc.IdleTimeout,
		RateLimit:      rc.RateLimit,
		RequireAuth:    rc.RequireAuth,
		MaxConnections: rc.MaxConnections,
	}, s.invoker, opts...)

	if s.cfg.Server.Local.Enabled {
		s.local = localserver.New(s.cfg.Server.Local.Socket, s.invoker,
			redisserver.WithLogger(s.slog.With("listener", "local")),
			redisserver.WithMetrics(s.metrics),
		)
	}
	return nil
}

// initGateway builds the HTTP gateway serving the configured package.
func (s *server) initGateway() {
	gc := s.cfg.Server.Gateway
	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Packages:           map[string]handler.Executor{gc.Package: s.invoker},
		Ready:              func() bool { return s.redis.Addr() != nil },
		ActorCount:         s.registry.Count,
		Metrics:            s.metrics,
		Logger:             s.slog,
		AllowList:          gc.AllowList,
		CORSAllowedOrigins: gc.CORS,
		GlobalRateLimit:    gc.RateLimit,
		EnableAudit:        gc.Audit,
	})
	s.gateway = httpserver.New(gc.Addr, router)
}

// start opens the listeners and registers their shutdown hooks. Hooks run
// in reverse order, so listeners stop before the registry and storage.
func (s *server) start(ctx context.Context) error {
	if s.watcher != nil {
		s.watcher.StartAsync()
	}

	if err := s.redis.Start(ctx); err != nil {
		return fmt.Errorf("start redis server: %w", err)
	}
	s.shutdown.OnShutdown("redis", s.redis.Shutdown)

	if s.local != nil {
		if err := s.local.Start(ctx); err != nil {
			return fmt.Errorf("start local socket: %w", err)
		}
		s.log.Info("local management socket listening", "path", s.local.Path())
		s.shutdown.OnShutdown("local", s.local.Shutdown)
	}

	if s.gateway != nil {
		if err := s.gateway.Start(s.errCh); err != nil {
			return fmt.Errorf("start gateway: %w", err)
		}
		s.log.Info("HTTP gateway listening",
			"addr", s.gateway.Addr().String(),
			"package", s.cfg.Server.Gateway.Package,
		)
		s.shutdown.OnShutdown("gateway", s.gateway.Shutdown)
	}

	go func() {
		select {
		case err := <-s.errCh:
			s.log.Error("listener failed", "error", err)
			s.shutdown.Trigger()
		case <-s.shutdown.Done():
		}
	}()
	return nil
}

// wait blocks until a signal, a listener failure or ctx cancellation, then
// runs the shutdown hooks.
func (s *server) wait(ctx context.Context) error {
	return s.shutdown.Wait(ctx)
}

// stop runs the shutdown hooks registered so far.
func (s *server) stop(ctx context.Context) {
	s.shutdown.Trigger()
	if err := s.shutdown.Wait(ctx); err != nil {
		s.log.Error("cleanup failed", "error", err)
	}
}

// redisAddr returns the bound Redis protocol address.
func (s *server) redisAddr() net.Addr {
	return s.redis.Addr()
}
