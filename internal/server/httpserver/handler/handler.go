package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/yndnr/gedis-go/internal/core/domain"
	"github.com/yndnr/gedis-go/internal/telemetry/logger"
)

// Executor runs actor calls with keyword arguments.
type Executor interface {
	Execute(ctx context.Context, actor, method string, kwargs map[string]any) domain.ActorResult
}

// Config holds the handler dependencies.
type Config struct {
	// Packages maps the first path segment to the executor serving it.
	Packages map[string]Executor

	// Ready reports whether the server accepts calls. Nil means always.
	Ready func() bool

	// ActorCount reports the number of registered actors for /health.
	ActorCount func() int

	// MaxBodyBytes bounds request bodies (default: 1MB).
	MaxBodyBytes int64

	Logger *slog.Logger
}

// Handler routes gateway requests.
type Handler struct {
	packages   map[string]Executor
	ready      func() bool
	actorCount func() int
	maxBody    int64
	logger     *slog.Logger
	mux        *http.ServeMux
}

// New creates a Handler.
func New(cfg Config) *Handler {
	h := &Handler{
		packages:   cfg.Packages,
		ready:      cfg.Ready,
		actorCount: cfg.ActorCount,
		maxBody:    cfg.MaxBodyBytes,
		logger:     cfg.Logger,
		mux:        http.NewServeMux(),
	}
	if h.packages == nil {
		h.packages = make(map[string]Executor)
	}
	if h.maxBody <= 0 {
		h.maxBody = 1 << 20
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)

	h.mux.HandleFunc("GET /{package}/{actor}/{method}", h.handleCall)
	h.mux.HandleFunc("POST /{package}/{actor}/{method}", h.handleCall)
}

// writeJSON writes data as the JSON body.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to encode response", "error", err)
		h.writeFailure(w, r, domain.Internalf("result is not JSON encodable"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
	w.Write([]byte("\n"))
}

// writeFailure writes the failure envelope with the status of its kind.
func (h *Handler) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	res := domain.Failure(err)
	h.writeResult(w, r, res)
}

func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, res domain.ActorResult) {
	if res.Success {
		h.writeJSON(w, r, http.StatusOK, res.Result)
		return
	}

	status := domain.HTTPStatus(res.ErrorType)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Type", string(res.ErrorType))
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(res)
}

// getRequestID returns the id set by the RequestID middleware.
func getRequestID(r *http.Request) string {
	return logger.RequestIDFromContext(r.Context())
}
