package redisserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"runtime/debug"

	"golang.org/x/time/rate"

	"github.com/yndnr/gedis-go/internal/actor"
	"github.com/yndnr/gedis-go/internal/core/domain"
	"github.com/yndnr/gedis-go/internal/core/service"
	"github.com/yndnr/gedis-go/internal/telemetry/metric"
	"github.com/yndnr/gedis-go/pkg/cmap"
)

// Authenticator verifies the token sent with AUTH and returns the peer id.
type Authenticator interface {
	Verify(ctx context.Context, tok domain.AuthToken) (int64, error)
}

// rateLimiter keeps one token bucket per client IP.
type rateLimiter struct {
	limiters *cmap.Map[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
}

func newRateLimiter(requestsPerSecond int) *rateLimiter {
	return &rateLimiter{
		limiters: cmap.New[string, *rate.Limiter](),
		limit:    rate.Limit(requestsPerSecond),
		burst:    requestsPerSecond,
	}
}

// allow checks if a command from the given IP should be allowed.
func (rl *rateLimiter) allow(ip string) bool {
	l := rl.limiters.GetOrCreate(ip, func() *rate.Limiter {
		return rate.NewLimiter(rl.limit, rl.burst)
	})
	return l.Allow()
}

// prune drops the buckets of clients that have been idle long enough for
// their bucket to refill.
func (rl *rateLimiter) prune() int {
	full := float64(rl.burst)
	return rl.limiters.DeleteIf(func(_ string, l *rate.Limiter) bool {
		return l.Tokens() >= full
	})
}

// CommandHandler handles RESP commands.
type CommandHandler struct {
	invoker     *actor.Invoker
	auth        Authenticator
	requireAuth bool
	logger      *slog.Logger
	metrics     *metric.Registry
	rateLimiter *rateLimiter
}

// NewCommandHandler creates a new CommandHandler.
func NewCommandHandler(inv *actor.Invoker, cfg *Config) *CommandHandler {
	h := &CommandHandler{
		invoker: inv,
		logger:  slog.Default(),
	}
	if cfg != nil {
		h.requireAuth = cfg.RequireAuth
		if cfg.RateLimit > 0 {
			h.rateLimiter = newRateLimiter(cfg.RateLimit)
		}
	}
	return h
}

// Handle handles one command. A panic is logged and answered with an
// error reply; the connection stays open.
func (h *CommandHandler) Handle(ctx context.Context, conn *Conn, args [][]byte) {
	defer func() {
		if p := recover(); p != nil {
			h.logger.Error("command handler panicked",
				"conn_id", conn.id,
				"panic", fmt.Sprint(p),
				"stack", string(debug.Stack()),
			)
			_ = WriteError(conn.bw, "ERR internal error")
		}
	}()

	if len(args) == 0 {
		return
	}

	// Connection-level commands (do not require authentication).
	switch cmdName := normalizeCommandName(args[0]); cmdName {
	case "PING":
		h.handlePing(conn, args)
		return
	case "AUTH":
		h.handleAuth(ctx, conn, args)
		return
	case "QUIT":
		h.handleQuit(conn, args)
		return
	case "HELLO", "CLIENT":
		_ = WriteError(conn.bw, "ERR unknown command '"+cmdName+"'")
		return
	}

	if len(args) < 2 {
		h.metrics.CommandRejected("short")
		h.logger.Debug("ignoring command without method",
			"conn_id", conn.id,
			"command", string(args[0]),
		)
		return
	}

	if h.requireAuth && !conn.GetState().Authenticated {
		h.metrics.CommandRejected("noauth")
		_ = WriteError(conn.bw, "NOAUTH Authentication required")
		return
	}

	if h.rateLimiter != nil && !h.rateLimiter.allow(clientIP(conn.RemoteAddr())) {
		h.metrics.CommandRejected("rate_limit")
		_ = WriteError(conn.bw, "ERR rate limit exceeded")
		return
	}

	h.handleCall(ctx, conn, string(args[0]), string(args[1]), args[2:])
}

func (h *CommandHandler) handleCall(ctx context.Context, conn *Conn, actorName, method string, payload [][]byte) {
	h.logger.Debug("actor call",
		"conn_id", conn.id,
		"actor", actorName,
		"method", method,
		"payload", string(bytes.Join(payload, []byte(" "))),
	)

	res := h.invoker.Invoke(ctx, actorName, method, payload)
	if !res.Success {
		writeFailure(conn.bw, res)
		return
	}

	// Encode into a scratch buffer so a value that fails to encode never
	// leaves a partial reply on the wire.
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	err := WriteValue(bw, res.Result)
	if err == nil {
		err = bw.Flush()
	}
	if err != nil {
		h.logger.Error("cannot encode actor result",
			"conn_id", conn.id,
			"actor", actorName,
			"method", method,
			"error", err,
		)
		writeFailure(conn.bw, domain.Failure(domain.Internalf("cannot encode result of %s.%s", actorName, method).WithCause(err)))
		return
	}
	_, _ = conn.bw.Write(buf.Bytes())
}

// writeFailure writes the failure envelope as a bulk string.
func writeFailure(w *bufio.Writer, res domain.ActorResult) {
	data, err := json.Marshal(res)
	if err != nil {
		_ = WriteError(w, "ERR "+res.Error)
		return
	}
	_ = WriteBulk(w, data)
}

func (h *CommandHandler) handlePing(conn *Conn, args [][]byte) {
	if len(args) > 1 {
		_ = WriteBulk(conn.bw, args[1])
		return
	}
	_ = WriteSimpleString(conn.bw, "PONG")
}

// handleAuth handles AUTH <token>, where token is the JSON encoding of
// domain.AuthToken.
func (h *CommandHandler) handleAuth(ctx context.Context, conn *Conn, args [][]byte) {
	if len(args) != 2 {
		_ = WriteError(conn.bw, "ERR wrong number of arguments for 'AUTH' command")
		return
	}
	if h.auth == nil {
		_ = WriteError(conn.bw, "ERR AUTH is not enabled on this server")
		return
	}

	tok, err := service.ParseAuthPayload(args[1])
	if err == nil {
		var peerID int64
		peerID, err = h.auth.Verify(ctx, tok)
		if err == nil {
			h.metrics.ObserveAuth(nil)
			conn.SetState(ConnState{Authenticated: true, PeerID: peerID})
			h.logger.Info("peer authenticated",
				"conn_id", conn.id,
				"peer_id", peerID,
			)
			_ = WriteSimpleString(conn.bw, "OK")
			return
		}
	}

	h.metrics.ObserveAuth(err)
	h.logger.Warn("handshake rejected",
		"conn_id", conn.id,
		"remote", remoteString(conn.RemoteAddr()),
		"peer_id", tok.PeerID,
		"error", err,
	)
	reply := "ERR " + domain.ErrHandshakeRejected.Message
	if msg := domain.MessageOf(err); msg != domain.ErrHandshakeRejected.Message {
		reply += ": " + msg
	}
	_ = WriteError(conn.bw, reply)
}

func (h *CommandHandler) handleQuit(conn *Conn, _ [][]byte) {
	_ = WriteSimpleString(conn.bw, "OK")
	_ = conn.bw.Flush()
	_ = conn.Close()
}

func clientIP(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
