package buffer

import (
	"sync"
	"sync/atomic"

	"heapcache/pkg/storage/page"
)

// Buffer is the cached copy of one page.
//
// The manager owns every Buffer; each PageHandle is one pin on it.
// A Buffer is only repurposed for another page while its pin count is zero.
type Buffer struct {
	pageID page.PageID

	mu    sync.RWMutex // guards data
	data  page.Page
	dirty atomic.Bool

	pins atomic.Int32 // outstanding handles
}

func newBuffer() *Buffer {
	return &Buffer{pageID: page.InvalidPageID}
}

func (b *Buffer) PageID() page.PageID {
	return b.pageID
}

func (b *Buffer) IsDirty() bool {
	return b.dirty.Load()
}

func (b *Buffer) PinCount() int {
	return int(b.pins.Load())
}

func (b *Buffer) isPinned() bool {
	return b.pins.Load() > 0
}

// reset gives the buffer a new identity with zeroed contents.
// The caller guarantees the buffer is unpinned.
func (b *Buffer) reset(pageID page.PageID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pageID = pageID
	b.data.Clear()
	b.dirty.Store(false)
}

// PageHandle is a caller's pin on a cached page.
// Release it exactly when done with the page, typically with defer.
// A handle must not be used after Release.
type PageHandle struct {
	buf      *Buffer
	pageID   page.PageID
	released atomic.Bool
}

func newPageHandle(buf *Buffer) *PageHandle {
	buf.pins.Add(1)
	return &PageHandle{buf: buf, pageID: buf.pageID}
}

func (h *PageHandle) PageID() page.PageID {
	return h.pageID
}

// Read runs fn with shared access to the page bytes.
// fn must not keep the pointer after it returns.
func (h *PageHandle) Read(fn func(p *page.Page)) {
	h.checkLive()
	h.buf.mu.RLock()
	defer h.buf.mu.RUnlock()
	fn(&h.buf.data)
}

// Write runs fn with exclusive access to the page bytes and marks the page dirty.
func (h *PageHandle) Write(fn func(p *page.Page)) {
	h.checkLive()
	h.buf.mu.Lock()
	defer h.buf.mu.Unlock()
	fn(&h.buf.data)
	h.buf.dirty.Store(true)
}

// Snapshot returns a copy of the page bytes.
func (h *PageHandle) Snapshot() page.Page {
	var p page.Page
	h.Read(func(data *page.Page) {
		p = *data
	})
	return p
}

func (h *PageHandle) IsDirty() bool {
	h.checkLive()
	return h.buf.IsDirty()
}

// Clone returns another handle on the same page; both must be released.
func (h *PageHandle) Clone() *PageHandle {
	h.checkLive()
	return newPageHandle(h.buf)
}

// Release drops this handle's pin. Calling it again is a no-op.
func (h *PageHandle) Release() {
	if h.released.CompareAndSwap(false, true) {
		h.buf.pins.Add(-1)
	}
}

func (h *PageHandle) checkLive() {
	if h.released.Load() {
		panic("buffer: use of released page handle")
	}
}
