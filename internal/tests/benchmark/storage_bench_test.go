package benchmark

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/yndnr/gedis-go/internal/core/domain"
	"github.com/yndnr/gedis-go/internal/storage"
)

func openStore(b *testing.B, sync bool) *storage.BadgerStore {
	b.Helper()
	cfg := storage.DefaultConfig(b.TempDir())
	cfg.SyncWrites = sync
	cfg.GCInterval = time.Hour
	s, err := storage.Open(cfg, nil)
	if err != nil {
		b.Fatalf("open store: %v", err)
	}
	b.Cleanup(func() { _ = s.Close() })
	return s
}

// BenchmarkStoreSaveRegistration measures persisting register_actor calls.
func BenchmarkStoreSaveRegistration(b *testing.B) {
	for _, sync := range []bool{false, true} {
		b.Run(fmt.Sprintf("sync_%v", sync), func(b *testing.B) {
			s := openStore(b, sync)
			ctx := context.Background()

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				reg := domain.Registration{
					Name:         fmt.Sprintf("actor-%d", i%1000),
					Path:         "/srv/actors/actor.lua",
					RegisteredAt: time.Now(),
				}
				if err := s.SaveRegistration(ctx, reg); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkStoreListRegistrations measures the startup restore scan.
func BenchmarkStoreListRegistrations(b *testing.B) {
	for _, count := range ActorCounts {
		b.Run(fmt.Sprintf("actors_%d", count), func(b *testing.B) {
			s := openStore(b, false)
			ctx := context.Background()
			for i := 0; i < count; i++ {
				reg := domain.Registration{
					Name: fmt.Sprintf("actor-%d", i),
					Path: fmt.Sprintf("/srv/actors/actor-%d.lua", i),
				}
				if err := s.SaveRegistration(ctx, reg); err != nil {
					b.Fatal(err)
				}
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				regs, err := s.ListRegistrations(ctx)
				if err != nil {
					b.Fatal(err)
				}
				if len(regs) != count {
					b.Fatalf("listed %d registrations, want %d", len(regs), count)
				}
			}
		})
	}
}
