package db

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"heapcache/pkg/buffer"
	"heapcache/pkg/storage/page"
)

// Console parses one command per line and runs it against a session.
type Console struct {
	Session *Session
	Output  io.Writer // client connection
}

func NewConsole(session *Session, output io.Writer) *Console {
	return &Console{Session: session, Output: output}
}

const defaultReadLen = 64

var (
	reHelp    = regexp.MustCompile(`(?i)^help$`)
	reAlloc   = regexp.MustCompile(`(?i)^alloc$`)
	reNew     = regexp.MustCompile(`(?i)^new$`)
	reFetch   = regexp.MustCompile(`(?i)^fetch\s+(\d+)$`)
	reRelease = regexp.MustCompile(`(?i)^release\s+(\d+)$`)
	reWrite   = regexp.MustCompile(`(?i)^write\s+(\d+)\s+(\d+)\s+(.+)$`)
	reRead    = regexp.MustCompile(`(?i)^read\s+(\d+)(?:\s+(\d+))?$`)
	reFlush   = regexp.MustCompile(`(?i)^flush(?:\s+(\d+))?$`)
	reStats   = regexp.MustCompile(`(?i)^stats$`)
	reDump    = regexp.MustCompile(`(?i)^dump$`)
)

// Execute runs a single command line.
func (c *Console) Execute(line string) error {
	line = strings.TrimSpace(line)
	line = strings.TrimSuffix(line, ";")

	bpm := c.Session.Engine().BPM

	switch {
	case reHelp.MatchString(line):
		c.printHelp()
		return nil

	case reAlloc.MatchString(line):
		fmt.Fprintf(c.Output, "Allocated page %d.\n", bpm.AllocatePage())
		return nil

	case reNew.MatchString(line):
		h, err := bpm.NewPage()
		if err != nil {
			return err
		}
		h.Release()
		fmt.Fprintf(c.Output, "Created page %d.\n", h.PageID())
		return nil

	case reFetch.MatchString(line):
		matches := reFetch.FindStringSubmatch(line)
		return c.handleFetch(parsePageID(matches[1]))

	case reRelease.MatchString(line):
		matches := reRelease.FindStringSubmatch(line)
		pageID := parsePageID(matches[1])
		if err := c.Session.Unpin(pageID); err != nil {
			return err
		}
		fmt.Fprintf(c.Output, "Page %d released.\n", pageID)
		return nil

	case reWrite.MatchString(line):
		matches := reWrite.FindStringSubmatch(line)
		offset, err := strconv.Atoi(matches[2])
		if err != nil {
			return errors.Errorf("bad offset: %v", err)
		}
		return c.handleWrite(parsePageID(matches[1]), offset, matches[3])

	case reRead.MatchString(line):
		matches := reRead.FindStringSubmatch(line)
		n := defaultReadLen
		if matches[2] != "" {
			var err error
			if n, err = strconv.Atoi(matches[2]); err != nil {
				return errors.Errorf("bad length: %v", err)
			}
		}
		return c.handleRead(parsePageID(matches[1]), n)

	case reFlush.MatchString(line):
		matches := reFlush.FindStringSubmatch(line)
		if matches[1] == "" {
			if err := bpm.FlushAllPages(); err != nil {
				return err
			}
			fmt.Fprintln(c.Output, "All dirty pages flushed.")
			return nil
		}
		pageID := parsePageID(matches[1])
		if err := bpm.FlushPage(pageID); err != nil {
			return err
		}
		fmt.Fprintf(c.Output, "Page %d flushed.\n", pageID)
		return nil

	case reStats.MatchString(line):
		c.handleStats()
		return nil

	case reDump.MatchString(line):
		c.handleDump()
		return nil

	default:
		return errors.Errorf("unknown command: %s", line)
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.Output, "--- heapcache console ---")
	fmt.Fprintln(c.Output, "1.  alloc                         reserve a page id")
	fmt.Fprintln(c.Output, "2.  new                           create and cache a zeroed page")
	fmt.Fprintln(c.Output, "3.  fetch <id>                    pin a page in this session")
	fmt.Fprintln(c.Output, "4.  release <id>                  drop one pin")
	fmt.Fprintln(c.Output, "5.  write <id> <offset> <text>    write text into a page")
	fmt.Fprintln(c.Output, "6.  read <id> [n]                 show the first n bytes")
	fmt.Fprintln(c.Output, "7.  flush [<id>]                  write dirty pages back")
	fmt.Fprintln(c.Output, "8.  stats                         buffer pool counters")
	fmt.Fprintln(c.Output, "9.  dump                          fingerprint every page")
	fmt.Fprintln(c.Output, "10. quit")
}

// parsePageID is only called on \d+ matches; out-of-range input yields an
// id no page has.
func parsePageID(s string) page.PageID {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return page.InvalidPageID
	}
	return page.PageID(id)
}

func (c *Console) handleFetch(pageID page.PageID) error {
	held, err := c.Session.Pin(pageID)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Output, "Page %d pinned (session: %d, total: %d).\n",
		pageID, held, c.Session.Engine().BPM.PinCount(pageID))
	return nil
}

func (c *Console) handleWrite(pageID page.PageID, offset int, text string) error {
	text = strings.Trim(text, "'\"")
	if len(text) > page.PageSize || offset < 0 || offset > page.PageSize-len(text) {
		return errors.Errorf("write of %d bytes at offset %d overflows the page", len(text), offset)
	}

	err := c.Session.WithPage(pageID, func(h *buffer.PageHandle) error {
		h.Write(func(p *page.Page) {
			copy(p[offset:], text)
		})
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Output, "Wrote %d bytes to page %d.\n", len(text), pageID)
	return nil
}

func (c *Console) handleRead(pageID page.PageID, n int) error {
	if n <= 0 || n > page.PageSize {
		n = page.PageSize
	}

	return c.Session.WithPage(pageID, func(h *buffer.PageHandle) error {
		var out []byte
		h.Read(func(p *page.Page) {
			out = append(out, bytes.TrimRight(p[:n], "\x00")...)
		})
		state := "clean"
		if h.IsDirty() {
			state = "dirty"
		}
		fmt.Fprintf(c.Output, "[%d] (%s) %q\n", pageID, state, out)
		return nil
	})
}

func (c *Console) handleStats() {
	bpm := c.Session.Engine().BPM
	s := bpm.Stats()
	fmt.Fprintf(c.Output, "pool size:   %d\n", bpm.PoolSize())
	fmt.Fprintf(c.Output, "pages:       %d\n", bpm.NumPages())
	fmt.Fprintf(c.Output, "requests:    %d (hits %d, misses %d, hit ratio %.2f)\n",
		s.Requests, s.Hits, s.Misses, s.HitRatio())
	fmt.Fprintf(c.Output, "new pages:   %d\n", s.NewPages)
	fmt.Fprintf(c.Output, "disk reads:  %d\n", s.Reads)
	fmt.Fprintf(c.Output, "write-backs: %d\n", s.WriteBacks)
	fmt.Fprintf(c.Output, "evictions:   %d\n", s.Evictions)
	fmt.Fprintf(c.Output, "no free:     %d\n", s.NoFree)
}

// handleDump fetches every allocated page in turn. Pages that cannot be read
// (allocated but never written before a restart) are reported and skipped.
func (c *Console) handleDump() {
	numPages := c.Session.Engine().BPM.NumPages()
	for id := int64(0); id < numPages; id++ {
		pageID := page.PageID(id)
		err := c.Session.WithPage(pageID, func(h *buffer.PageHandle) error {
			snap := h.Snapshot()
			kind := "data"
			if snap.IsZero() {
				kind = "zero"
			}
			fmt.Fprintf(c.Output, "page %-6d %016x %s\n", pageID, snap.Fingerprint(), kind)
			return nil
		})
		if err != nil {
			fmt.Fprintf(c.Output, "page %-6d error: %v\n", pageID, err)
		}
	}
	fmt.Fprintf(c.Output, "(%d pages)\n", numPages)
}
