// Package domain defines the core domain models for Gedis.
//
// Domain models are pure value objects without any IO dependencies.
// This package contains:
//
//   - ErrorKind and ActorError: the closed error classification carried
//     across the network boundary
//   - ActorResult: the success/error envelope every call resolves to
//   - ActorDescriptor and MethodInfo: the actor schema answered by "info"
//   - AuthToken: the payload of the AUTH handshake command
//   - Registration: a persisted actor registration
package domain
