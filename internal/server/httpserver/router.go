package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/gedis-go/internal/server/httpserver/handler"
	"github.com/yndnr/gedis-go/internal/telemetry/metric"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Packages maps the first path segment of actor routes to executors.
	Packages map[string]handler.Executor

	// Ready reports whether the server accepts calls.
	Ready func() bool

	// ActorCount reports the number of registered actors.
	ActorCount func() int

	// Metrics serves /metrics and counts responses. Nil disables both.
	Metrics *metric.Registry

	// Logger for request logging.
	Logger *slog.Logger

	// AllowList is the IP/CIDR allowlist (empty = no restriction).
	AllowList []string

	// CORSAllowedOrigins is the list of allowed CORS origins (empty = no CORS headers).
	CORSAllowedOrigins []string

	// GlobalRateLimit is the rate limit per IP (requests/second, 0 = off).
	GlobalRateLimit int

	// EnableAudit enables audit logging for all requests.
	EnableAudit bool
}

// DefaultRouterConfig returns default router configuration.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		GlobalRateLimit: 1000,
		EnableAudit:     true,
	}
}

// NewRouter creates the gateway handler with all routes and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	h := handler.New(handler.Config{
		Packages:   cfg.Packages,
		Ready:      cfg.Ready,
		ActorCount: cfg.ActorCount,
		Logger:     log,
	})

	// Health endpoints skip rate limiting and the ACL.
	health := Chain(h, Recover(log), RequestID())

	middlewares := []Middleware{Recover(log), RequestID()}
	if len(cfg.CORSAllowedOrigins) > 0 {
		middlewares = append(middlewares, CORS(cfg.CORSAllowedOrigins))
	}
	if len(cfg.AllowList) > 0 {
		middlewares = append(middlewares, NetworkACL(cfg.AllowList, log))
	}
	if cfg.GlobalRateLimit > 0 {
		middlewares = append(middlewares, RateLimit(cfg.GlobalRateLimit))
	}
	if cfg.EnableAudit {
		middlewares = append(middlewares, Audit(log))
	}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, Metrics(cfg.Metrics))
	}
	calls := Chain(h, middlewares...)

	mux := http.NewServeMux()
	mux.Handle("GET /health", health)
	mux.Handle("GET /ready", health)

	if cfg.Metrics != nil {
		aclOnly := []Middleware{Recover(log)}
		if len(cfg.AllowList) > 0 {
			aclOnly = append(aclOnly, NetworkACL(cfg.AllowList, log))
		}
		mux.Handle("GET /metrics", Chain(cfg.Metrics.Handler(), aclOnly...))
	}

	mux.Handle("GET /{package}/{actor}/{method}", calls)
	mux.Handle("POST /{package}/{actor}/{method}", calls)
	mux.Handle("OPTIONS /{package}/{actor}/{method}", calls)

	return mux
}
