package buffer

import "github.com/pkg/errors"

var (
	// ErrNoFreeBuffer means every frame is pinned by an outstanding handle.
	// The manager never waits for a frame; release handles and retry.
	ErrNoFreeBuffer = errors.New("no free buffer: all frames are pinned")
	// ErrPageNotCached is returned by FlushPage for a page outside the page table.
	ErrPageNotCached = errors.New("page not in buffer pool")
)

func IsNoFreeBuffer(err error) bool {
	return errors.Is(err, ErrNoFreeBuffer)
}
