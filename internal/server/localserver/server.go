package localserver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"

	"github.com/yndnr/gedis-go/internal/actor"
	"github.com/yndnr/gedis-go/internal/server/redisserver"
)

// SocketMode is the permission of the socket file.
const SocketMode fs.FileMode = 0o600

// Server represents the local management server.
type Server struct {
	path string
	srv  *redisserver.Server
}

// New creates a local server on socketPath dispatching calls to inv.
// Calls are accepted without AUTH.
func New(socketPath string, inv *actor.Invoker, opts ...redisserver.Option) *Server {
	cfg := redisserver.DefaultConfig()
	cfg.Address = socketPath
	cfg.RateLimit = 0
	cfg.RequireAuth = false
	return &Server{
		path: socketPath,
		srv:  redisserver.New(cfg, inv, opts...),
	}
}

// Path returns the socket path.
func (s *Server) Path() string {
	return s.path
}

// Start creates the socket and serves connections in the background. A
// stale socket left by a previous process is replaced; any other file at
// the path is an error.
func (s *Server) Start(ctx context.Context) error {
	if err := removeStale(s.path); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}

	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return err
	}
	if err := os.Chmod(s.path, SocketMode); err != nil {
		ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}

	s.srv.Serve(ctx, ln)
	return nil
}

// Shutdown stops the listener, drains connections and removes the socket.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	if rmErr := os.Remove(s.path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
		err = errors.Join(err, rmErr)
	}
	return err
}

// ConnCount returns the number of open connections.
func (s *Server) ConnCount() int {
	return s.srv.ConnCount()
}

func removeStale(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Mode()&fs.ModeSocket == 0 {
		return fmt.Errorf("%s exists and is not a socket", path)
	}
	return os.Remove(path)
}
