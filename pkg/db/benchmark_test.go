package db

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"heapcache/pkg/buffer"
	"heapcache/pkg/storage/disk"
	"heapcache/pkg/storage/page"
)

// Run with: go test -bench . heapcache/pkg/db
// Working set is 4x the pool, so most fetches miss and evict.
func BenchmarkFetchPage(b *testing.B) {
	const (
		poolSize = 256
		numPages = 4 * poolSize
	)

	e, err := OpenEngine(filepath.Join(b.TempDir(), "bench.db"), poolSize)
	if err != nil {
		b.Fatal(err)
	}
	defer e.Close()

	for i := 0; i < numPages; i++ {
		h, err := e.BPM.NewPage()
		if err != nil {
			b.Fatal(err)
		}
		h.Write(func(p *page.Page) { copy(p[:], fmt.Sprintf("data-%090d", i)) })
		h.Release()
	}

	rng := rand.New(rand.NewSource(7))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h, err := e.BPM.FetchPage(page.PageID(rng.Intn(numPages)))
		if err != nil {
			b.Fatal(err)
		}
		if i%4 == 0 {
			h.Write(func(p *page.Page) { p[page.PageSize-1]++ })
		}
		h.Release()
	}
	b.StopTimer()

	s := e.BPM.Stats()
	b.ReportMetric(s.HitRatio(), "hit-ratio")
}

func BenchmarkFetchPageHot(b *testing.B) {
	bpm := buffer.NewBufferPoolManager(disk.NewMemoryDiskManager(), 64)
	h, err := bpm.NewPage()
	if err != nil {
		b.Fatal(err)
	}
	h.Release()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h, err := bpm.FetchPage(0)
		if err != nil {
			b.Fatal(err)
		}
		h.Release()
	}
}
