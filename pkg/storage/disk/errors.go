package disk

import (
	"fmt"

	"github.com/pkg/errors"

	"heapcache/pkg/storage/page"
)

var (
	// ErrShortRead means fewer than PageSize bytes exist at the page offset.
	// Reading a page that was allocated but never written ends up here.
	ErrShortRead = errors.New("read less than a full page")
	// ErrPartialPage means the heap file length is not a multiple of PageSize.
	ErrPartialPage = errors.New("heap file ends with a partial page")
)

// IOError describes a failed operation on the heap file.
type IOError struct {
	Op     string // open, stat, seek, read, write, sync, close
	PageID page.PageID
	Err    error
}

func (e *IOError) Error() string {
	if e.PageID.IsValid() {
		return fmt.Sprintf("disk: %s page %d: %v", e.Op, e.PageID, e.Err)
	}
	return fmt.Sprintf("disk: %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func newIOError(op string, pageID page.PageID, err error) error {
	return errors.WithStack(&IOError{Op: op, PageID: pageID, Err: err})
}

// IsIOError reports whether err carries an IOError anywhere in its chain.
func IsIOError(err error) bool {
	var ioErr *IOError
	return errors.As(err, &ioErr)
}
