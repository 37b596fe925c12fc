// Package main provides the entry point for gedis-server.
//
// The server hosts actors and exposes them over:
//
//   - a Redis-protocol TCP listener (ACTOR.METHOD commands, AUTH handshake)
//   - an optional Unix socket for local management, without AUTH
//   - an optional HTTP gateway (/{package}/{actor}/{method})
//
// Usage:
//
//	gedis-server [flags]
//	gedis-server --config /etc/gedis/server.yaml
//	gedis-server --preload greeter=./actors/greeter.lua --watch
//
// Configuration is read from the file, then GEDIS_ environment variables,
// then command line flags.
package main
