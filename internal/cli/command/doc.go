// Package command provides the gedis-cli commands.
//
// This package defines all CLI commands using urfave/cli/v2:
//
//   - root.go: Application, global flags, per-invocation environment
//   - actors.go: actors list|info|paths|register|unregister
//   - call.go: call ACTOR METHOD [ARGS...] and ping
//   - connect.go: connect, use and profiles (saved servers)
//   - keygen.go: identity and directory files for the AUTH handshake
//   - shell.go: interactive shell
//
// Commands parse flags, call the server through internal/client and print
// with internal/cli/output.
package command
