// Package service provides domain services for Gedis.
//
// Domain services contain pure logic and orchestrate operations on domain
// models. They define interfaces for their dependencies, allowing for
// dependency injection and testability.
//
// This package contains:
//
//   - HandshakeService: verification of AUTH tokens on the server
//   - IssueToken: construction of AUTH tokens on the client
//
// Services are thread-safe.
package service
