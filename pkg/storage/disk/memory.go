package disk

import "heapcache/pkg/storage/page"

// MemoryDiskManager keeps pages in a map instead of a file.
// It follows DiskManagerImpl's semantics, including the short-read error
// for pages that were allocated but never written.
type MemoryDiskManager struct {
	nextPageID page.PageID
	pages      map[page.PageID]*page.Page
	closed     bool
}

var _ DiskManager = (*MemoryDiskManager)(nil)

func NewMemoryDiskManager() *MemoryDiskManager {
	return &MemoryDiskManager{pages: make(map[page.PageID]*page.Page)}
}

func (m *MemoryDiskManager) ReadPage(pageID page.PageID, p *page.Page) error {
	stored, ok := m.pages[pageID]
	if !ok {
		return newIOError("read", pageID, ErrShortRead)
	}
	*p = *stored
	return nil
}

func (m *MemoryDiskManager) WritePage(pageID page.PageID, p *page.Page) error {
	stored := *p
	m.pages[pageID] = &stored
	return nil
}

func (m *MemoryDiskManager) AllocatePage() page.PageID {
	ret := m.nextPageID
	m.nextPageID++
	return ret
}

func (m *MemoryDiskManager) NumPages() int64 {
	return int64(m.nextPageID)
}

func (m *MemoryDiskManager) Sync() error {
	return nil
}

func (m *MemoryDiskManager) Close() error {
	m.closed = true
	return nil
}
