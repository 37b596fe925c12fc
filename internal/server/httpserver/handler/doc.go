// Package handler provides the HTTP request handlers of the gateway.
//
//   - actor.go: GET|POST /{package}/{actor}/{method}
//   - health.go: health and readiness checks
//
// Actor calls answer 200 with the JSON-encoded result. Failures answer the
// status matching their error kind with the failure envelope as body.
package handler
