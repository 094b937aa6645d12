package buffer

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"heapcache/pkg/logger"
	"heapcache/pkg/storage/disk"
	"heapcache/pkg/storage/page"
)

// BufferPoolManager caches pages of one DiskManager in a fixed number of frames.
//
// All page table and frame changes happen under mu, so at most one frame ever
// holds a given page. Callers work on page bytes through PageHandles without
// holding mu; a handle pins its frame until Release.
type BufferPoolManager struct {
	mu          sync.Mutex
	diskManager disk.DiskManager
	pool        *BufferPool
	pageTable   map[page.PageID]FrameID
	// fresh holds ids allocated through AllocatePage that have not been
	// written to disk yet; their first fetch is zero-filled instead of read.
	fresh map[page.PageID]struct{}

	stats counters
	log   *logrus.Entry
}

type Option func(*BufferPoolManager)

func WithLogger(entry *logrus.Entry) Option {
	return func(b *BufferPoolManager) {
		b.log = entry
	}
}

// NewBufferPoolManager takes ownership of diskManager. poolSize must be positive.
func NewBufferPoolManager(diskManager disk.DiskManager, poolSize int, opts ...Option) *BufferPoolManager {
	if poolSize <= 0 {
		panic("buffer: pool size must be positive")
	}

	bpm := &BufferPoolManager{
		diskManager: diskManager,
		pool:        NewBufferPool(poolSize),
		pageTable:   make(map[page.PageID]FrameID, poolSize),
		fresh:       make(map[page.PageID]struct{}),
		log:         logger.WithComponent("buffer"),
	}
	for _, opt := range opts {
		opt(bpm)
	}
	return bpm
}

// FetchPage returns a pinned handle on pageID, reading it from disk on a miss.
// It fails with ErrNoFreeBuffer when every frame is pinned, and with the
// disk's IOError when the victim's write-back or the read fails.
func (b *BufferPoolManager) FetchPage(pageID page.PageID) (*PageHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if frameID, ok := b.pageTable[pageID]; ok {
		b.stats.recordRequest(true)
		frame := b.pool.Frame(frameID)
		frame.touch()
		return newPageHandle(frame.buffer), nil
	}
	b.stats.recordRequest(false)

	frameID, err := b.claimFrame()
	if err != nil {
		return nil, errors.WithMessagef(err, "fetch page %d", pageID)
	}

	frame := b.pool.Frame(frameID)
	buf := frame.buffer
	buf.reset(pageID)

	if _, ok := b.fresh[pageID]; ok {
		// Allocated but never written: there is nothing on disk to read.
		buf.dirty.Store(true)
	} else if err := b.diskManager.ReadPage(pageID, &buf.data); err != nil {
		// The victim is already gone from the page table; leave the frame empty.
		buf.reset(page.InvalidPageID)
		frame.usageCount = 0
		return nil, errors.WithMessagef(err, "fetch page %d", pageID)
	} else {
		atomic.AddInt64(&b.stats.reads, 1)
	}

	frame.usageCount = 1
	b.pageTable[pageID] = frameID
	return newPageHandle(buf), nil
}

// AllocatePage reserves a new page id. It does not cache the page; the first
// FetchPage of the id installs a zero-filled, dirty buffer.
func (b *BufferPoolManager) AllocatePage() page.PageID {
	b.mu.Lock()
	defer b.mu.Unlock()

	pageID := b.diskManager.AllocatePage()
	b.fresh[pageID] = struct{}{}
	return pageID
}

// NewPage allocates a page id and caches a zero-filled, dirty page for it.
// The frame is claimed before the id is allocated, so a failure does not
// use up an id.
func (b *BufferPoolManager) NewPage() (*PageHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	frameID, err := b.claimFrame()
	if err != nil {
		return nil, errors.WithMessage(err, "new page")
	}
	atomic.AddInt64(&b.stats.newPages, 1)

	pageID := b.diskManager.AllocatePage()

	frame := b.pool.Frame(frameID)
	buf := frame.buffer
	buf.reset(pageID)
	buf.dirty.Store(true)
	frame.usageCount = 1
	b.pageTable[pageID] = frameID

	b.log.WithField("page", pageID).WithField("frame", frameID).Debug("new page")
	return newPageHandle(buf), nil
}

// FlushPage writes pageID back to disk if it is cached and dirty.
// Pinned pages can be flushed; concurrent writers through handles wait.
func (b *BufferPoolManager) FlushPage(pageID page.PageID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	frameID, ok := b.pageTable[pageID]
	if !ok {
		return errors.Wrapf(ErrPageNotCached, "flush page %d", pageID)
	}

	buf := b.pool.Frame(frameID).buffer
	if !buf.IsDirty() {
		return nil
	}
	return b.writeBack(buf)
}

// FlushAllPages writes back every dirty cached page. It keeps going after a
// failure and returns the first error.
func (b *BufferPoolManager) FlushAllPages() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var firstErr error
	for i := 0; i < b.pool.Size(); i++ {
		buf := b.pool.Frame(FrameID(i)).buffer
		if buf.pageID.IsValid() && buf.IsDirty() {
			if err := b.writeBack(buf); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Close flushes every dirty page, syncs and closes the disk manager.
// Outstanding handles must not be used afterwards.
func (b *BufferPoolManager) Close() error {
	if err := b.FlushAllPages(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.diskManager.Sync(); err != nil {
		return err
	}
	return b.diskManager.Close()
}

func (b *BufferPoolManager) PoolSize() int {
	return b.pool.Size()
}

// NumPages is the number of page ids allocated so far.
func (b *BufferPoolManager) NumPages() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.diskManager.NumPages()
}

func (b *BufferPoolManager) IsCached(pageID page.PageID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.pageTable[pageID]
	return ok
}

// PinCount returns the number of outstanding handles on pageID, or 0 if it is not cached.
func (b *BufferPoolManager) PinCount(pageID page.PageID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	frameID, ok := b.pageTable[pageID]
	if !ok {
		return 0
	}
	return b.pool.Frame(frameID).buffer.PinCount()
}

func (b *BufferPoolManager) Stats() Stats {
	return b.stats.snapshot()
}

// claimFrame finds a victim frame and makes it safe to overwrite: a dirty
// victim is written back and its page table entry removed. If the write-back
// fails the victim stays cached, dirty and mapped. Caller holds mu.
func (b *BufferPoolManager) claimFrame() (FrameID, error) {
	frameID, ok := b.pool.Evict()
	if !ok {
		atomic.AddInt64(&b.stats.noFree, 1)
		return -1, errors.WithStack(ErrNoFreeBuffer)
	}

	victim := b.pool.Frame(frameID).buffer
	if !victim.pageID.IsValid() {
		return frameID, nil
	}

	if victim.IsDirty() {
		if err := b.writeBack(victim); err != nil {
			b.log.WithField("page", victim.pageID).WithField("frame", frameID).
				Warnf("write-back failed, keeping page cached: %v", err)
			return -1, errors.WithMessagef(err, "write back page %d", victim.pageID)
		}
	}

	delete(b.pageTable, victim.pageID)
	atomic.AddInt64(&b.stats.evictions, 1)
	b.log.WithField("page", victim.pageID).WithField("frame", frameID).Debug("evicted")
	return frameID, nil
}

// writeBack writes buf to disk and clears its dirty flag. Holding the
// buffer's read lock keeps handle writers out until the flag is cleared.
// Caller holds mu.
func (b *BufferPoolManager) writeBack(buf *Buffer) error {
	buf.mu.RLock()
	defer buf.mu.RUnlock()

	if err := b.diskManager.WritePage(buf.pageID, &buf.data); err != nil {
		return err
	}
	buf.dirty.Store(false)
	delete(b.fresh, buf.pageID)
	atomic.AddInt64(&b.stats.writeBacks, 1)
	b.log.WithField("page", buf.pageID).Debug("written back")
	return nil
}
