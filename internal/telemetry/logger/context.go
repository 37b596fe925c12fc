package logger

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	connIDKey ctxKey = iota
	requestIDKey
	callKey
)

type call struct {
	actor  string
	method string
}

// WithConnID records the id of the RESP connection serving ctx.
func WithConnID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, connIDKey, id)
}

// ConnIDFromContext returns the connection id stored by WithConnID.
func ConnIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(connIDKey).(string)
	return id
}

// WithRequestID records the id of the HTTP gateway request serving ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request id stored by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithCall records the actor method being executed under ctx.
func WithCall(ctx context.Context, actor, method string) context.Context {
	return context.WithValue(ctx, callKey, call{actor: actor, method: method})
}

// contextHandler adds the ids and call stored in the record context.
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		if id := ConnIDFromContext(ctx); id != "" {
			r.AddAttrs(slog.String("conn_id", id))
		}
		if id := RequestIDFromContext(ctx); id != "" {
			r.AddAttrs(slog.String("request_id", id))
		}
		if c, ok := ctx.Value(callKey).(call); ok {
			r.AddAttrs(slog.String("actor", c.actor), slog.String("method", c.method))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}
