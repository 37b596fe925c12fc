package benchmark

import (
	"context"
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/yndnr/gedis-go/internal/actor"
	"github.com/yndnr/gedis-go/internal/actor/builtin"
	"github.com/yndnr/gedis-go/internal/server/redisserver"
	"github.com/yndnr/gedis-go/internal/telemetry/logger"
)

const (
	greeterSource = "../../actor/testdata/greeter.lua"
	counterSource = "../../actor/testdata/counter.lua"
)

// ActorCounts defines registry sizes for lookup benchmarks.
var ActorCounts = []int{10, 100, 1000, 10000}

// PayloadSizes defines argument sizes in bytes.
var PayloadSizes = []int{16, 256, 4096, 65536}

// newRegistry returns a registry holding greeter, counter and echo.
func newRegistry(b *testing.B) *actor.Registry {
	b.Helper()

	loader := actor.NewLoader(logger.Nop())
	builtin.Register(loader)
	reg := actor.NewRegistry(loader, actor.WithLogger(logger.Nop()))
	ctx := context.Background()
	for name, path := range map[string]string{
		"greeter": greeterSource,
		"counter": counterSource,
		"echo":    "builtin:echo",
	} {
		if _, err := reg.Register(ctx, name, path, false); err != nil {
			b.Fatalf("register %s: %v", name, err)
		}
	}
	b.Cleanup(func() { _ = reg.Close() })
	return reg
}

// newInvoker returns an invoker over newRegistry.
func newInvoker(b *testing.B) *actor.Invoker {
	b.Helper()
	return actor.NewInvoker(newRegistry(b), actor.InvokerConfig{
		CallTimeout: 5 * time.Second,
		Logger:      logger.Nop(),
	})
}

// startServer serves inv on a random local port and returns its address.
func startServer(b *testing.B, inv *actor.Invoker, opts ...redisserver.Option) string {
	b.Helper()

	cfg := redisserver.DefaultConfig()
	cfg.Address = "127.0.0.1:0"
	cfg.RateLimit = 0
	opts = append([]redisserver.Option{redisserver.WithLogger(logger.Slog(logger.Nop()))}, opts...)
	srv := redisserver.New(cfg, inv, opts...)
	if err := srv.Start(context.Background()); err != nil {
		b.Fatalf("start server: %v", err)
	}
	b.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv.Addr().String()
}

// reportMemory reports memory usage.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
	b.ReportMetric(float64(m.NumGC), prefix+"_GC")
}

// sizeLabel returns a human-readable size label.
func sizeLabel(size int) string {
	switch {
	case size >= 1024*1024:
		return fmt.Sprintf("%dMB", size/(1024*1024))
	case size >= 1024:
		return fmt.Sprintf("%dKB", size/1024)
	default:
		return fmt.Sprintf("%dB", size)
	}
}
