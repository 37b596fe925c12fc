// Package output renders gedis-cli results.
//
//   - formatter.go: Formatter interface, JSON and YAML encoders
//   - table.go: Tables for actor lists, method schemas and call results
//
// Call results are the dynamic values decoded by the client (nil, bool,
// int64, float64, string, []any, map[string]any); the table formatter
// lays them out for humans, json and yaml keep them machine-readable.
package output
