package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yndnr/gedis-go/internal/core/domain"
	"github.com/yndnr/gedis-go/internal/core/service"
	"github.com/yndnr/gedis-go/pkg/crypto/identity"
)

// UnixScheme prefixes addresses of Unix domain sockets.
const UnixScheme = "unix://"

// Config configures a Client.
type Config struct {
	// Addr is the server address (host:port), or unix:///path/to.sock
	// for the local management socket.
	Addr string

	// Identity signs the AUTH token. Nil skips the handshake.
	Identity *identity.Identity

	// Directory resolves the public keys of ServerID.
	Directory identity.Directory

	// ServerID is the peer id of the server.
	ServerID int64

	// DialTimeout bounds connection setup (default: 5s).
	DialTimeout time.Duration

	// ReadTimeout bounds a single reply. It should exceed the server call
	// timeout (default: 35s).
	ReadTimeout time.Duration

	// PoolSize is the number of connections (default: 1).
	PoolSize int
}

// DecodeHook rebuilds domain types from decoded results.
type DecodeHook func(v any) (any, error)

// HelperLoader loads the local counterpart of an actor source path.
type HelperLoader func(ctx context.Context, actor, path string) error

// Option configures a Client.
type Option func(*Client)

// WithDieOnError makes every failed call return a *RemoteError.
func WithDieOnError(die bool) Option {
	return func(c *Client) {
		c.die = die
	}
}

// WithDecodeHook sets the hook applied to every successful result.
func WithDecodeHook(h DecodeHook) Option {
	return func(c *Client) {
		c.decode = h
	}
}

// WithHelperLoader sets the loader called once per actor source path
// during discovery.
func WithHelperLoader(l HelperLoader) Option {
	return func(c *Client) {
		c.helpers = l
	}
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// CallOption configures a single call.
type CallOption func(*callOptions)

type callOptions struct {
	die bool
}

// Die makes a failed call return a *RemoteError.
func Die() CallOption {
	return func(o *callOptions) {
		o.die = true
	}
}

// Client calls actors on one gedis server.
type Client struct {
	rdb        *redis.Client
	cfg        Config
	serverKeys identity.PublicKeys
	die        bool
	decode     DecodeHook
	helpers    HelperLoader
	logger     *slog.Logger

	mu      sync.RWMutex
	proxies map[string]*Proxy

	helperMu sync.Mutex
	loaded   map[string]*helperLoad
}

type helperLoad struct {
	once sync.Once
	err  error
}

// New connects to the server, performs the handshake and discovers the
// registered actors.
func New(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("client: addr is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 35 * time.Second
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 1
	}

	c := &Client{
		cfg:     cfg,
		logger:  slog.Default(),
		proxies: make(map[string]*Proxy),
		loaded:  make(map[string]*helperLoad),
	}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.Identity != nil {
		if cfg.Directory == nil {
			return nil, errors.New("client: directory is required with an identity")
		}
		keys, err := cfg.Directory.LookupPublicKey(ctx, cfg.ServerID)
		if err != nil {
			return nil, fmt.Errorf("lookup server %d: %w", cfg.ServerID, err)
		}
		c.serverKeys = keys
	}

	network, addr := "tcp", cfg.Addr
	if path, ok := strings.CutPrefix(cfg.Addr, UnixScheme); ok {
		network, addr = "unix", path
	}

	ropts := &redis.Options{
		Network:         network,
		Addr:            addr,
		Protocol:        2,
		DisableIdentity: true,
		PoolSize:        cfg.PoolSize,
		MaxRetries:      -1,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.DialTimeout,
		PoolTimeout:     cfg.ReadTimeout + time.Second,
	}
	if cfg.Identity != nil {
		ropts.OnConnect = c.handshake
	}
	c.rdb = redis.NewClient(ropts)

	if err := c.rdb.Ping(ctx).Err(); err != nil {
		c.rdb.Close()
		var rerr redis.Error
		if errors.As(err, &rerr) {
			return nil, fmt.Errorf("%w: %v", ErrHandshake, err)
		}
		return nil, fmt.Errorf("connect %s: %w", cfg.Addr, err)
	}

	if err := c.Refresh(ctx); err != nil {
		c.rdb.Close()
		return nil, err
	}
	return c, nil
}

// handshake sends AUTH on a new connection.
func (c *Client) handshake(ctx context.Context, cn *redis.Conn) error {
	tok, err := service.IssueToken(c.cfg.Identity, c.serverKeys, time.Now())
	if err != nil {
		return fmt.Errorf("issue auth token: %w", err)
	}
	payload, err := service.EncodeAuthPayload(tok)
	if err != nil {
		return fmt.Errorf("encode auth token: %w", err)
	}
	return cn.Auth(ctx, string(payload)).Err()
}

// Close closes the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Refresh reloads the actor list and the descriptor of every actor.
func (c *Client) Refresh(ctx context.Context) error {
	res, err := c.Execute(ctx, domain.SystemActor, "list_actors", nil, nil, Die())
	if err != nil {
		return fmt.Errorf("list actors: %w", err)
	}
	names, err := stringList(res.Result)
	if err != nil {
		return fmt.Errorf("list actors: %w", err)
	}

	proxies := make(map[string]*Proxy, len(names))
	for _, name := range names {
		desc, err := c.Describe(ctx, name)
		if err != nil {
			// The actor may have been unregistered since list_actors.
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return fmt.Errorf("describe %s: %w", name, err)
		}
		proxies[name] = &Proxy{client: c, desc: desc}
	}

	c.mu.Lock()
	c.proxies = proxies
	c.mu.Unlock()

	if c.helpers != nil {
		c.loadHelpers(ctx)
	}
	return nil
}

// Describe fetches the method schema of an actor.
func (c *Client) Describe(ctx context.Context, name string) (domain.ActorDescriptor, error) {
	raw, err := c.do(ctx, name, domain.InfoMethod, nil, nil)
	if err != nil {
		return domain.ActorDescriptor{}, err
	}
	s, ok := raw.(string)
	if !ok {
		return domain.ActorDescriptor{}, fmt.Errorf("unexpected info reply %T", raw)
	}
	if res, failed := domain.ParseFailure([]byte(s)); failed {
		return domain.ActorDescriptor{}, remoteErrorOf(res)
	}
	desc := domain.ActorDescriptor{Name: name}
	if err := json.Unmarshal([]byte(s), &desc.Methods); err != nil {
		return domain.ActorDescriptor{}, fmt.Errorf("decode info reply: %w", err)
	}
	return desc, nil
}

// Actors returns the discovered actor names in sorted order.
func (c *Client) Actors() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.proxies))
	for name := range c.proxies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Actor returns the proxy of a discovered actor.
func (c *Client) Actor(name string) (*Proxy, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.proxies[name]
	return p, ok
}

// Execute calls actor.method with positional and keyword arguments.
//
// A failure reported by the server is returned as a failure envelope with
// a nil error, unless the client or the call is configured to die, in
// which case the error is a *RemoteError. Transport failures are always
// returned as errors.
func (c *Client) Execute(ctx context.Context, actor, method string, args []any, kwargs map[string]any, opts ...CallOption) (domain.ActorResult, error) {
	o := callOptions{die: c.die}
	for _, opt := range opts {
		opt(&o)
	}

	res, err := c.execute(ctx, actor, method, args, kwargs)
	if err != nil {
		return domain.ActorResult{}, err
	}
	if !res.Success && o.die {
		return res, remoteErrorOf(res)
	}
	return res, nil
}

// Call calls actor.method with positional arguments.
func (c *Client) Call(ctx context.Context, actor, method string, args ...any) (domain.ActorResult, error) {
	return c.Execute(ctx, actor, method, args, nil)
}

func (c *Client) execute(ctx context.Context, actor, method string, args []any, kwargs map[string]any) (domain.ActorResult, error) {
	raw, err := c.do(ctx, actor, method, args, kwargs)
	if err != nil {
		var re *RemoteError
		if errors.As(err, &re) {
			return domain.ActorResult{Success: false, Error: re.Message, ErrorType: re.Kind}, nil
		}
		return domain.ActorResult{}, err
	}

	v, failure, err := decodeReply(raw)
	if err != nil {
		return domain.ActorResult{}, err
	}
	if failure != nil {
		return *failure, nil
	}
	if c.decode != nil {
		if v, err = c.decode(v); err != nil {
			return domain.ActorResult{}, fmt.Errorf("decode hook: %w", err)
		}
	}
	return domain.Success(v), nil
}

// do sends one call and returns the raw reply. RESP error replies are
// returned as *RemoteError.
func (c *Client) do(ctx context.Context, actor, method string, args []any, kwargs map[string]any) (any, error) {
	payload, err := encodePayload(args, kwargs)
	if err != nil {
		return nil, err
	}

	raw, err := c.rdb.Do(ctx, actor, method, payload).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		var rerr redis.Error
		if errors.As(err, &rerr) {
			return nil, remoteErrorOf(serverErrorResult(strings.TrimSpace(rerr.Error())))
		}
		return nil, fmt.Errorf("call %s.%s: %w", actor, method, err)
	}
	return raw, nil
}

// loadHelpers runs the helper loader once per source path.
func (c *Client) loadHelpers(ctx context.Context) {
	res, err := c.Execute(ctx, domain.SystemActor, "actor_paths", nil, nil)
	if err != nil || !res.Success {
		c.logger.Warn("failed to fetch actor paths", "error", err, "result_error", res.Error)
		return
	}
	paths, ok := res.Result.(map[string]any)
	if !ok {
		return
	}

	for name, v := range paths {
		path, ok := v.(string)
		if !ok || path == "" {
			continue
		}
		if err := c.loadHelper(ctx, name, path); err != nil {
			c.logger.Warn("failed to load actor helper",
				"actor", name,
				"path", path,
				"error", err,
			)
		}
	}
}

func (c *Client) loadHelper(ctx context.Context, actor, path string) error {
	c.helperMu.Lock()
	l, ok := c.loaded[path]
	if !ok {
		l = &helperLoad{}
		c.loaded[path] = l
	}
	c.helperMu.Unlock()

	l.once.Do(func() {
		l.err = c.helpers(ctx, actor, path)
	})
	return l.err
}

func stringList(v any) ([]string, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string, got %T", item)
		}
		out = append(out, s)
	}
	return out, nil
}
