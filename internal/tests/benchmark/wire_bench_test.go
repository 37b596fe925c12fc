package benchmark

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/yndnr/gedis-go/internal/client"
	"github.com/yndnr/gedis-go/internal/server/redisserver"
)

// BenchmarkWireCodec measures encoding and parsing one command.
func BenchmarkWireCodec(b *testing.B) {
	for _, size := range PayloadSizes {
		b.Run(sizeLabel(size), func(b *testing.B) {
			arg := strings.Repeat("a", size)
			var buf bytes.Buffer
			w := bufio.NewWriter(&buf)

			b.ReportAllocs()
			b.SetBytes(int64(size))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				buf.Reset()
				w.Reset(&buf)
				_ = redisserver.WriteArrayHeader(w, 3)
				_ = redisserver.WriteBulkString(w, "echo")
				_ = redisserver.WriteBulkString(w, "echo")
				_ = redisserver.WriteBulkString(w, arg)
				if err := w.Flush(); err != nil {
					b.Fatal(err)
				}
				if _, err := redisserver.ReadCommand(bufio.NewReader(&buf)); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkWireCall measures a full call through the client and the
// server over loopback TCP.
func BenchmarkWireCall(b *testing.B) {
	inv := newInvoker(b)
	addr := startServer(b, inv)
	ctx := context.Background()

	c, err := client.New(ctx, client.Config{Addr: addr})
	if err != nil {
		b.Fatal(err)
	}
	defer c.Close()

	b.Run("lua_hi", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			res, err := c.Call(ctx, "greeter", "hi")
			if err != nil || !res.Success {
				b.Fatalf("call failed: %v %v", err, res.Err())
			}
		}
	})

	b.Run("go_echo_4KB", func(b *testing.B) {
		arg := strings.Repeat("a", 4096)
		b.ReportAllocs()
		b.SetBytes(4096)
		for i := 0; i < b.N; i++ {
			res, err := c.Call(ctx, "echo", "echo", arg)
			if err != nil || !res.Success {
				b.Fatalf("call failed: %v %v", err, res.Err())
			}
		}
	})
}

// BenchmarkWireCallParallel measures pooled clients calling concurrently.
func BenchmarkWireCallParallel(b *testing.B) {
	inv := newInvoker(b)
	addr := startServer(b, inv)
	ctx := context.Background()

	c, err := client.New(ctx, client.Config{Addr: addr, PoolSize: 8})
	if err != nil {
		b.Fatal(err)
	}
	defer c.Close()

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			res, err := c.Call(ctx, "echo", "echo", "x")
			if err != nil || !res.Success {
				b.Errorf("call failed: %v", err)
				return
			}
		}
	})
}
