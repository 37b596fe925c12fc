// Package httpserver provides the HTTP gateway of a gedis server.
//
// The gateway exposes actors over plain HTTP:
//
//   - Actor calls: GET|POST /{package}/{actor}/{method}
//   - Health endpoints: /health, /ready
//   - Prometheus metrics: /metrics
//
// A JSON object body and query parameters become keyword arguments. The
// error kind of a failed call selects the HTTP status: NotFound is 404,
// BadRequest is 400, PermissionError is 403 and anything else is 500.
//
// Middleware chain: Recover, RequestID, CORS, NetworkACL, RateLimit, Audit,
// Metrics.
package httpserver
