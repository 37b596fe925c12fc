// Package benchmark measures the hot paths of gedis: invoking actors
// directly and over the wire, the RESP codec, the handshake and the
// registration store.
//
// Benchmarks share fixtures from internal/actor/testdata. Typical runs:
//
//	go test -run=^$ -bench=. -benchmem ./internal/tests/benchmark/
//	go test -run=^$ -bench=BenchmarkWireCall -benchtime=5s ./internal/tests/benchmark/
//
// Repeat with -count and compare runs with benchstat.
package benchmark
