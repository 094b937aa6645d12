package db

import (
	"sync"

	"github.com/pkg/errors"

	"heapcache/pkg/buffer"
	"heapcache/pkg/logger"
	"heapcache/pkg/storage/disk"
	"heapcache/pkg/storage/page"
)

// Engine owns one heap file and the buffer pool in front of it.
// Sessions share the engine; the buffer pool manager serializes them.
type Engine struct {
	BPM      *buffer.BufferPoolManager
	DataFile string
}

func OpenEngine(dataFile string, poolSize int) (*Engine, error) {
	dm, err := disk.NewDiskManager(dataFile)
	if err != nil {
		return nil, errors.WithMessagef(err, "open engine on %s", dataFile)
	}

	logger.WithComponent("engine").
		WithField("file", dataFile).
		WithField("pages", dm.NumPages()).
		WithField("pool", poolSize).
		Info("engine opened")

	return &Engine{
		BPM:      buffer.NewBufferPoolManager(dm, poolSize),
		DataFile: dataFile,
	}, nil
}

// Close flushes all dirty pages and closes the heap file.
func (e *Engine) Close() error {
	return e.BPM.Close()
}

// NewSession returns a session over the shared buffer pool. Pins taken by
// the session are its own and are dropped by Session.Close.
func (e *Engine) NewSession() *Session {
	return &Session{
		engine: e,
		pinned: make(map[page.PageID][]*buffer.PageHandle),
	}
}

// Session tracks the page handles one client holds.
type Session struct {
	engine *Engine

	mu     sync.Mutex
	pinned map[page.PageID][]*buffer.PageHandle
}

func (s *Session) Engine() *Engine {
	return s.engine
}

// Pin fetches pageID and keeps the handle until Unpin or Close.
// It returns the number of pins this session now holds on the page.
func (s *Session) Pin(pageID page.PageID) (int, error) {
	h, err := s.engine.BPM.FetchPage(pageID)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pinned[pageID] = append(s.pinned[pageID], h)
	return len(s.pinned[pageID]), nil
}

// PinNew creates a page and keeps the handle.
func (s *Session) PinNew() (page.PageID, error) {
	h, err := s.engine.BPM.NewPage()
	if err != nil {
		return page.InvalidPageID, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pinned[h.PageID()] = append(s.pinned[h.PageID()], h)
	return h.PageID(), nil
}

// Unpin releases the most recent pin this session took on pageID.
func (s *Session) Unpin(pageID page.PageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	handles := s.pinned[pageID]
	if len(handles) == 0 {
		return errors.Errorf("page %d is not pinned by this session", pageID)
	}

	last := handles[len(handles)-1]
	last.Release()
	if len(handles) == 1 {
		delete(s.pinned, pageID)
	} else {
		s.pinned[pageID] = handles[:len(handles)-1]
	}
	return nil
}

// Pinned returns the number of handles the session holds on pageID.
func (s *Session) Pinned(pageID page.PageID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pinned[pageID])
}

// WithPage runs fn on pageID, reusing a handle the session already holds or
// fetching one for the duration of the call.
func (s *Session) WithPage(pageID page.PageID, fn func(h *buffer.PageHandle) error) error {
	s.mu.Lock()
	handles := s.pinned[pageID]
	var h *buffer.PageHandle
	if len(handles) > 0 {
		h = handles[0].Clone()
	}
	s.mu.Unlock()

	if h == nil {
		var err error
		if h, err = s.engine.BPM.FetchPage(pageID); err != nil {
			return err
		}
	}
	defer h.Release()
	return fn(h)
}

// Close releases every handle the session holds.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for pageID, handles := range s.pinned {
		for _, h := range handles {
			h.Release()
		}
		delete(s.pinned, pageID)
	}
}
