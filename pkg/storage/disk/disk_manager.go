package disk

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"heapcache/pkg/storage/page"
)

// DiskManager stores fixed-size pages in a single heap file.
// Implementations do no caching and no locking; the buffer pool manager
// serializes every call.
type DiskManager interface {
	ReadPage(pageID page.PageID, p *page.Page) error
	WritePage(pageID page.PageID, p *page.Page) error
	AllocatePage() page.PageID
	NumPages() int64
	Sync() error
	Close() error
}

type DiskManagerImpl struct {
	dbFile     *os.File
	fileName   string
	nextPageID page.PageID // next id AllocatePage hands out
}

var _ DiskManager = (*DiskManagerImpl)(nil)

// NewDiskManager opens the heap file, creating it (and its directory) if absent.
// The first id handed out is the number of pages already in the file.
func NewDiskManager(dbFileName string) (*DiskManagerImpl, error) {
	dir := filepath.Dir(dbFileName)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return nil, newIOError("open", page.InvalidPageID, err)
		}
	}

	file, err := os.OpenFile(dbFileName, os.O_RDWR|os.O_CREATE, 0664)
	if err != nil {
		return nil, newIOError("open", page.InvalidPageID, err)
	}

	dm, err := newDiskManager(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	return dm, nil
}

func newDiskManager(file *os.File) (*DiskManagerImpl, error) {
	fileInfo, err := file.Stat()
	if err != nil {
		return nil, newIOError("stat", page.InvalidPageID, err)
	}

	// 8192 bytes hold pages 0 and 1, so the next id is 2.
	size := fileInfo.Size()
	if size%page.PageSize != 0 {
		return nil, newIOError("open", page.InvalidPageID,
			errors.Wrapf(ErrPartialPage, "%s is %d bytes", file.Name(), size))
	}

	return &DiskManagerImpl{
		dbFile:     file,
		fileName:   file.Name(),
		nextPageID: page.PageID(size / page.PageSize),
	}, nil
}

func (d *DiskManagerImpl) FileName() string {
	return d.fileName
}

// ReadPage reads exactly one page at pageID's offset into p.
func (d *DiskManagerImpl) ReadPage(pageID page.PageID, p *page.Page) error {
	if _, err := d.dbFile.Seek(pageID.Offset(), io.SeekStart); err != nil {
		return newIOError("seek", pageID, err)
	}

	if _, err := io.ReadFull(d.dbFile, p[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			err = ErrShortRead
		}
		return newIOError("read", pageID, err)
	}
	return nil
}

// WritePage writes p at pageID's offset, growing the file if the offset is past its end.
func (d *DiskManagerImpl) WritePage(pageID page.PageID, p *page.Page) error {
	if _, err := d.dbFile.Seek(pageID.Offset(), io.SeekStart); err != nil {
		return newIOError("seek", pageID, err)
	}

	if _, err := d.dbFile.Write(p[:]); err != nil {
		return newIOError("write", pageID, err)
	}

	// Durability is left to Sync; a write is not fsynced on its own.
	return nil
}

// AllocatePage hands out the next page id. Nothing is written: the file
// grows the first time the page is written.
func (d *DiskManagerImpl) AllocatePage() page.PageID {
	ret := d.nextPageID
	d.nextPageID++
	return ret
}

func (d *DiskManagerImpl) NumPages() int64 {
	return int64(d.nextPageID)
}

func (d *DiskManagerImpl) Sync() error {
	if err := d.dbFile.Sync(); err != nil {
		return newIOError("sync", page.InvalidPageID, err)
	}
	return nil
}

func (d *DiskManagerImpl) Close() error {
	if err := d.dbFile.Close(); err != nil {
		return newIOError("close", page.InvalidPageID, err)
	}
	return nil
}
