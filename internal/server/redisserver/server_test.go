package redisserver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/gedis-go/internal/actor"
	"github.com/yndnr/gedis-go/internal/actor/builtin"
	"github.com/yndnr/gedis-go/internal/core/domain"
	"github.com/yndnr/gedis-go/internal/core/service"
	"github.com/yndnr/gedis-go/internal/telemetry/logger"
	"github.com/yndnr/gedis-go/internal/telemetry/metric"
	"github.com/yndnr/gedis-go/pkg/crypto/identity"
)

const greeterSource = "../../actor/testdata/greeter.lua"

type testServer struct {
	*Server
	registry *actor.Registry
	metrics  *metric.Registry
}

func startTestServer(t *testing.T, cfg *Config, opts ...Option) *testServer {
	t.Helper()

	loader := actor.NewLoader(logger.Nop())
	builtin.Register(loader)
	reg := actor.NewRegistry(loader, actor.WithLogger(logger.Nop()))
	if _, err := reg.Register(context.Background(), "greeter", greeterSource, false); err != nil {
		t.Fatalf("register greeter: %v", err)
	}

	m := metric.NewRegistry()
	inv := actor.NewInvoker(reg, actor.InvokerConfig{
		CallTimeout: 2 * time.Second,
		Observer:    m,
		Logger:      logger.Nop(),
	})

	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.Address = "127.0.0.1:0"
	opts = append([]Option{WithLogger(logger.Slog(logger.Nop())), WithMetrics(m)}, opts...)
	srv := New(cfg, inv, opts...)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		_ = reg.Close()
	})
	return &testServer{Server: srv, registry: reg, metrics: m}
}

type testClient struct {
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer
}

func dial(t *testing.T, srv *testServer) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))
	return &testClient{conn: conn, r: bufio.NewReader(conn), w: bufio.NewWriter(conn)}
}

func (c *testClient) send(t *testing.T, args ...string) {
	t.Helper()
	_ = WriteArrayHeader(c.w, len(args))
	for _, a := range args {
		_ = WriteBulkString(c.w, a)
	}
	if err := c.w.Flush(); err != nil {
		t.Fatalf("send: %v", err)
	}
}

func (c *testClient) do(t *testing.T, args ...string) any {
	t.Helper()
	c.send(t, args...)
	reply, err := ReadReply(c.r)
	if err != nil {
		t.Fatalf("%v: read reply: %v", args, err)
	}
	return reply
}

func failureOf(t *testing.T, reply any) domain.ActorResult {
	t.Helper()
	s, ok := reply.(string)
	if !ok {
		t.Fatalf("reply %#v is not a bulk string", reply)
	}
	res, ok := domain.ParseFailure([]byte(s))
	if !ok {
		t.Fatalf("reply %q is not a failure envelope", s)
	}
	return res
}

func TestServer_Calls(t *testing.T) {
	srv := startTestServer(t, nil)
	c := dial(t, srv)

	tests := []struct {
		name string
		args []string
		want any
	}{
		{"hi", []string{"greeter", "hi"}, Status("hello world")},
		{"add numbers", []string{"greeter", "add2", "[[1, 2], {}]"}, int64(3)},
		{"concatenate", []string{"greeter", "add2", `[["jo", "deboeck"], {}]`}, Status("jodeboeck")},
		{"kwargs", []string{"greeter", "greet", `{"name": "bob", "punctuation": "?"}`}, Status("hello bob?")},
		{"list actors", []string{"system", "list_actors"}, []any{Status("core"), Status("greeter"), Status("system")}},
		{"core alias", []string{"core", "ping"}, Status("pong")},
		{"lowercase ping is a command", []string{"ping"}, Status("PONG")},
		{"ping with message", []string{"PING", "hey"}, "hey"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.do(t, tt.args...); fmt.Sprintf("%#v", got) != fmt.Sprintf("%#v", tt.want) {
				t.Errorf("%v = %#v, want %#v", tt.args, got, tt.want)
			}
		})
	}
}

func TestServer_Info(t *testing.T) {
	srv := startTestServer(t, nil)
	c := dial(t, srv)

	reply := c.do(t, "greeter", "info")
	s, ok := reply.(string)
	if !ok {
		t.Fatalf("info reply %#v is not a bulk string", reply)
	}
	var methods map[string]domain.MethodInfo
	if err := json.Unmarshal([]byte(s), &methods); err != nil {
		t.Fatalf("info reply is not JSON: %v", err)
	}
	if got := methods["add2"].Args; len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("add2 args = %v, want [a b]", got)
	}
	if methods["hi"].Doc != "Say hello." {
		t.Errorf("hi doc = %q", methods["hi"].Doc)
	}
}

func TestServer_Failures(t *testing.T) {
	srv := startTestServer(t, nil)
	c := dial(t, srv)

	tests := []struct {
		name string
		args []string
		kind domain.ErrorKind
		msg  string
	}{
		{"actor not loaded", []string{"nobody", "hi"}, domain.KindNotFound, "actor nobody isn't loaded"},
		{"unknown method", []string{"greeter", "bye"}, domain.KindNotFound, "actor greeter has no method bye"},
		{"raised kind", []string{"greeter", "find", `[["bob"]]`}, domain.KindNotFound, "user bob not found"},
		{"bad arguments", []string{"greeter", "add2", `[[1]]`}, domain.KindBadRequest, ""},
		{"lua error", []string{"greeter", "crash"}, domain.KindInternal, ""},
		{"timeout", []string{"greeter", "spin"}, domain.KindInternal, "call timed out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := failureOf(t, c.do(t, tt.args...))
			if res.Success || res.ErrorType != tt.kind {
				t.Errorf("%v = %+v, want kind %s", tt.args, res, tt.kind)
			}
			if tt.msg != "" && res.Error != tt.msg {
				t.Errorf("%v error = %q, want %q", tt.args, res.Error, tt.msg)
			}
		})
	}

	// The connection survives failures.
	if got := c.do(t, "greeter", "hi"); got != Status("hello world") {
		t.Errorf("hi after failures = %#v", got)
	}
}

func TestServer_ShortCommandsIgnored(t *testing.T) {
	srv := startTestServer(t, nil)
	c := dial(t, srv)

	c.send(t, "greeter")
	c.send(t)
	if got := c.do(t, "greeter", "hi"); got != Status("hello world") {
		t.Errorf("reply after ignored commands = %#v, want the reply to hi", got)
	}
}

func TestServer_ConnectionCommands(t *testing.T) {
	srv := startTestServer(t, nil)
	c := dial(t, srv)

	for _, cmd := range [][]string{{"HELLO", "3"}, {"CLIENT", "SETINFO", "LIB-NAME", "x"}} {
		got := c.do(t, cmd...)
		e, ok := got.(Error)
		if !ok || !strings.HasPrefix(string(e), "ERR unknown command") {
			t.Errorf("%v = %#v, want unknown command error", cmd, got)
		}
	}

	got := c.do(t, "AUTH", "{}")
	if e, ok := got.(Error); !ok || !strings.Contains(string(e), "not enabled") {
		t.Errorf("AUTH without authenticator = %#v", got)
	}

	if got := c.do(t, "QUIT"); got != Status("OK") {
		t.Errorf("QUIT = %#v, want OK", got)
	}
	if _, err := ReadReply(c.r); err == nil {
		t.Error("connection should be closed after QUIT")
	}
}

func TestServer_Pipelining(t *testing.T) {
	srv := startTestServer(t, nil)
	c := dial(t, srv)

	for i := 0; i < 10; i++ {
		_ = WriteArrayHeader(c.w, 3)
		_ = WriteBulkString(c.w, "greeter")
		_ = WriteBulkString(c.w, "add2")
		_ = WriteBulkString(c.w, fmt.Sprintf("[[%d, %d]]", i, i))
	}
	if err := c.w.Flush(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		got, err := ReadReply(c.r)
		if err != nil {
			t.Fatal(err)
		}
		if got != int64(2*i) {
			t.Errorf("reply %d = %#v, want %d", i, got, 2*i)
		}
	}
}

func TestServer_ProtocolError(t *testing.T) {
	srv := startTestServer(t, nil)
	c := dial(t, srv)

	_, _ = c.conn.Write([]byte("*1\r\n:5\r\n"))
	got, err := ReadReply(c.r)
	if err != nil {
		t.Fatal(err)
	}
	if e, ok := got.(Error); !ok || !strings.HasPrefix(string(e), "ERR protocol error") {
		t.Errorf("reply = %#v, want protocol error", got)
	}
	if _, err := ReadReply(c.r); err == nil {
		t.Error("connection should be closed after a protocol error")
	}
}

func TestServer_RateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit = 2
	srv := startTestServer(t, cfg)
	c := dial(t, srv)

	limited := false
	for i := 0; i < 10; i++ {
		if e, ok := c.do(t, "system", "ping").(Error); ok && e == "ERR rate limit exceeded" {
			limited = true
			break
		}
	}
	if !limited {
		t.Error("expected the rate limit to kick in")
	}
	// Connection commands are never limited.
	if got := c.do(t, "PING"); got != Status("PONG") {
		t.Errorf("PING = %#v", got)
	}
}

func TestServer_MaxConnections(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConnections = 1
	srv := startTestServer(t, cfg)

	first := dial(t, srv)
	if got := first.do(t, "PING"); got != Status("PONG") {
		t.Fatalf("PING = %#v", got)
	}

	second := dial(t, srv)
	got, err := ReadReply(second.r)
	if err != nil {
		t.Fatal(err)
	}
	if e, ok := got.(Error); !ok || !strings.Contains(string(e), "max number of clients") {
		t.Errorf("second connection got %#v", got)
	}
}

func TestServer_ConcurrentClients(t *testing.T) {
	srv := startTestServer(t, nil)
	const n = 100

	call := func(c *testClient, args ...string) (any, error) {
		_ = WriteArrayHeader(c.w, len(args))
		for _, a := range args {
			_ = WriteBulkString(c.w, a)
		}
		if err := c.w.Flush(); err != nil {
			return nil, err
		}
		return ReadReply(c.r)
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn, err := net.Dial("tcp", srv.Addr().String())
			if err != nil {
				errs <- err
				return
			}
			defer conn.Close()
			c := &testClient{conn: conn, r: bufio.NewReader(conn), w: bufio.NewWriter(conn)}

			name := fmt.Sprintf("echo%d", i)
			got, err := call(c, "system", "register_actor", fmt.Sprintf(`[[%q, "builtin:echo"]]`, name))
			if err != nil || got != int64(1) {
				errs <- fmt.Errorf("register %s = %#v, %v", name, got, err)
				return
			}
			for j := 0; j < 5; j++ {
				got, err := call(c, name, "echo", fmt.Sprintf("[[%d]]", i))
				if err != nil || got != int64(i) {
					errs <- fmt.Errorf("%s.echo = %#v, %v, want %d", name, got, err, i)
					return
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	if got := srv.registry.Count(); got != n+3 {
		t.Errorf("registry count = %d, want %d", got, n+3)
	}
}

func TestServer_Shutdown(t *testing.T) {
	srv := startTestServer(t, nil)
	c := dial(t, srv)
	if got := c.do(t, "PING"); got != Status("PONG") {
		t.Fatalf("PING = %#v", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if srv.ConnCount() != 0 {
		t.Errorf("ConnCount() = %d after shutdown", srv.ConnCount())
	}
	if _, err := net.DialTimeout("tcp", srv.Addr().String(), time.Second); err == nil {
		t.Error("listener should be closed")
	}
	// Second call is a no-op.
	if err := srv.Shutdown(ctx); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}

// ============================================================
// Auth
// ============================================================

type authFixture struct {
	server *identity.Identity
	client *identity.Identity
	dir    *identity.StaticDirectory
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	server, err := identity.Generate(1)
	if err != nil {
		t.Fatal(err)
	}
	client, err := identity.Generate(42)
	if err != nil {
		t.Fatal(err)
	}
	dir := identity.NewStaticDirectory()
	dir.AddIdentity(client)
	return &authFixture{server: server, client: client, dir: dir}
}

func (f *authFixture) token(t *testing.T, from *identity.Identity) string {
	t.Helper()
	tok, err := service.IssueToken(from, f.server.Public(), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	payload, err := service.EncodeAuthPayload(tok)
	if err != nil {
		t.Fatal(err)
	}
	return string(payload)
}

func TestServer_Auth(t *testing.T) {
	f := newAuthFixture(t)
	cfg := DefaultConfig()
	cfg.RequireAuth = true
	hs := service.NewHandshakeService(f.server, f.dir, nil)
	srv := startTestServer(t, cfg, WithAuthenticator(hs))

	c := dial(t, srv)
	// A command without a method is ignored before the auth check.
	c.send(t, "greeter")
	if got := c.do(t, "greeter", "hi"); got != Error("NOAUTH Authentication required") {
		t.Errorf("call before AUTH = %#v", got)
	}
	if got := c.do(t, "PING"); got != Status("PONG") {
		t.Errorf("PING before AUTH = %#v", got)
	}

	tok := f.token(t, f.client)
	if got := c.do(t, "AUTH", tok); got != Status("OK") {
		t.Fatalf("AUTH = %#v", got)
	}
	if got := c.do(t, "greeter", "hi"); got != Status("hello world") {
		t.Errorf("call after AUTH = %#v", got)
	}

	// The same token cannot be replayed on another connection.
	other := dial(t, srv)
	got := other.do(t, "AUTH", tok)
	if e, ok := got.(Error); !ok || !strings.HasPrefix(string(e), "ERR handshake rejected") {
		t.Errorf("replayed AUTH = %#v", got)
	}
}

func TestServer_AuthRejected(t *testing.T) {
	f := newAuthFixture(t)
	cfg := DefaultConfig()
	cfg.RequireAuth = true
	hs := service.NewHandshakeService(f.server, f.dir, nil)
	srv := startTestServer(t, cfg, WithAuthenticator(hs))

	stranger, err := identity.Generate(7)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"unknown peer", f.token(t, stranger)},
		{"malformed", "not json"},
		{"tampered", strings.Replace(f.token(t, f.client), `"encrypted_data":"`, `"encrypted_data":"00`, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := dial(t, srv)
			got := c.do(t, "AUTH", tt.token)
			if e, ok := got.(Error); !ok || !strings.HasPrefix(string(e), "ERR handshake rejected") {
				t.Errorf("AUTH = %#v, want rejection", got)
			}
			if got := c.do(t, "greeter", "hi"); got != Error("NOAUTH Authentication required") {
				t.Errorf("call after rejected AUTH = %#v", got)
			}
		})
	}
}
