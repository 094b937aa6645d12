package buffer

import "sync/atomic"

// Stats is a point-in-time copy of the manager's counters.
type Stats struct {
	Requests   int64 // FetchPage calls
	Hits       int64
	Misses     int64
	NewPages   int64 // pages created by NewPage; not requests
	Reads      int64 // pages read from disk
	WriteBacks int64 // dirty pages written to disk
	Evictions  int64 // cached pages dropped to make room
	NoFree     int64 // requests failed with ErrNoFreeBuffer
}

func (s Stats) HitRatio() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Requests)
}

type counters struct {
	requests   int64
	hits       int64
	misses     int64
	newPages   int64
	reads      int64
	writeBacks int64
	evictions  int64
	noFree     int64
}

func (c *counters) recordRequest(hit bool) {
	atomic.AddInt64(&c.requests, 1)
	if hit {
		atomic.AddInt64(&c.hits, 1)
	} else {
		atomic.AddInt64(&c.misses, 1)
	}
}

func (c *counters) snapshot() Stats {
	return Stats{
		Requests:   atomic.LoadInt64(&c.requests),
		Hits:       atomic.LoadInt64(&c.hits),
		Misses:     atomic.LoadInt64(&c.misses),
		NewPages:   atomic.LoadInt64(&c.newPages),
		Reads:      atomic.LoadInt64(&c.reads),
		WriteBacks: atomic.LoadInt64(&c.writeBacks),
		Evictions:  atomic.LoadInt64(&c.evictions),
		NoFree:     atomic.LoadInt64(&c.noFree),
	}
}
