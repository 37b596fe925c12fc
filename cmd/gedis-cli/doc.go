// Package main provides the entry point for gedis-cli.
//
// The CLI calls actors on a gedis-server and manages them:
//
//   - actors list, info, paths, register, unregister
//   - call ACTOR.METHOD [ARG...] [NAME=VALUE...]
//   - connection profiles (connect, use, profiles)
//   - identity key generation (keygen)
//
// Usage:
//
//	gedis-cli [global flags] command [args]
//	gedis-cli call greeter.add2 1 2
//	gedis-cli --output json actors info greeter
//	gedis-cli shell
package main
