package page

import "github.com/OneOfOne/xxhash"

// PageSize is the size of one page, 4KB.
// The heap file is a plain sequence of pages of this size, page 0 first.
const PageSize = 4096

// PageID identifies a page of the heap file.
// Valid ids are non-negative; -1 marks a frame that holds no page yet.
type PageID int64

const (
	InvalidPageID PageID = -1
)

// Offset returns the byte offset of the page in the heap file.
func (id PageID) Offset() int64 {
	return int64(id) * PageSize
}

func (id PageID) IsValid() bool {
	return id >= 0
}

// Page is the raw content of one page. This layer never interprets it.
type Page [PageSize]byte

// Clear zeroes the page (used when a frame is reused for a fresh page).
func (p *Page) Clear() {
	*p = Page{}
}

// IsZero reports whether every byte of the page is zero.
func (p *Page) IsZero() bool {
	return *p == Page{}
}

// Fingerprint returns the xxhash64 of the page contents.
// It is a diagnostic aid for comparing pages, not an integrity checksum.
func (p *Page) Fingerprint() uint64 {
	h := xxhash.New64()
	h.Write(p[:])
	return h.Sum64()
}
