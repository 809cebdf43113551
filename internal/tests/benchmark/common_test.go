package benchmark

import (
	"context"
	"fmt"
	"runtime"
	"testing"

	"github.com/yndnr/moeckpt/internal/checkpoint"
	"github.com/yndnr/moeckpt/internal/expert"
	"github.com/yndnr/moeckpt/internal/storage/snapshot"
)

// ExpertDims are parameter vector sizes to benchmark.
var ExpertDims = []int{1 << 10, 1 << 14, 1 << 17}

// ExpertCounts are component counts to benchmark.
var ExpertCounts = []int{1, 8, 32}

func newExperts(count, dim int) map[string]checkpoint.StateSource {
	sources := make(map[string]checkpoint.StateSource, count)
	for i := 0; i < count; i++ {
		name := fmt.Sprintf("expert.%d", i)
		sources[name] = expert.New(name, dim, uint64(i)+1)
	}
	return sources
}

func newStore(b *testing.B, cfg checkpoint.Config, sources map[string]checkpoint.StateSource) *checkpoint.Store {
	b.Helper()
	cfg.Dir = b.TempDir()
	if cfg.Pointer == "" {
		cfg.Pointer = snapshot.PointerFile
	}
	s, err := checkpoint.NewStore(cfg, sources)
	if err != nil {
		b.Fatalf("NewStore: %v", err)
	}
	return s
}

func mustSaveAll(b *testing.B, s *checkpoint.Store) {
	b.Helper()
	if _, err := s.SaveAll(context.Background()); err != nil {
		b.Fatalf("SaveAll: %v", err)
	}
}

// reportMemory adds heap metrics to benchmark output.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
	b.ReportMetric(float64(m.NumGC), prefix+"_GC")
}
