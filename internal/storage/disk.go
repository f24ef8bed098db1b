// Package storage implements the paged storage engine: a disk manager,
// a pin-counted LRU buffer pool, and a B+ tree of fixed-width int32 keys
// built on top of them.
//
// EDUCATIONAL NOTES:
// ------------------
// Three layers, leaves first:
//  1. DiskManager gives page-granular persistent I/O over a single file.
//  2. BufferPool mediates every page access through a fixed-size array of
//     pinned, LRU-evicted frames.
//  3. BTree stores ordered (key, value) pairs in B+ tree node pages,
//     mutated only through the buffer pool.
//
// This file is the disk manager: the lowest layer, and the only one that
// talks to the filesystem.
package storage

import (
	"fmt"
	"io"
	"os"

	"github.com/cabewaldrop/kvengine/internal/config"
)

// InvalidPageID is the sentinel value for "no page".
const InvalidPageID int32 = -1

// MetaPageID is the reserved page that stores the tree's root page ID.
const MetaPageID int32 = 0

// DiskManager owns a single regular file and presents it as a sequence
// of fixed-size, page-indexed blocks.
//
// DiskManager is not safe for concurrent use; the engine is single
// threaded end to end.
type DiskManager struct {
	file     *os.File
	filePath string
	numPages int32
}

// OpenDiskManager opens (creating if necessary) the database file at
// path and computes the current page count from its size.
func OpenDiskManager(path string) (*DiskManager, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("disk manager: open %s: %w", path, err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("disk manager: stat %s: %w", path, err)
	}

	return &DiskManager{
		file:     file,
		filePath: path,
		numPages: int32(stat.Size() / config.PageSize),
	}, nil
}

// Close releases the underlying file descriptor.
func (d *DiskManager) Close() error {
	if err := d.file.Close(); err != nil {
		return fmt.Errorf("disk manager: close %s: %w", d.filePath, err)
	}
	return nil
}

// ReadPage reads exactly PageSize bytes for pageID into buf. A short
// read (the page lies past the current end of file) is tolerated by
// zero-padding the remainder, matching a fresh, never-written page.
func (d *DiskManager) ReadPage(pageID int32, buf []byte) error {
	if len(buf) != config.PageSize {
		return fmt.Errorf("disk manager: read page %d: buffer size %d != page size %d", pageID, len(buf), config.PageSize)
	}

	offset := int64(pageID) * config.PageSize
	n, err := d.file.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return fmt.Errorf("disk manager: read page %d: %w", pageID, err)
	}
	// ReadAt at or past EOF returns io.EOF with n < len(buf); zero-pad
	// the remainder, matching the original's zero-pad-on-short-read.
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	return nil
}

// WritePage writes exactly PageSize bytes for pageID. No forced flush
// to the host's disk is performed; durability across a crash is not
// guaranteed.
func (d *DiskManager) WritePage(pageID int32, buf []byte) error {
	if len(buf) != config.PageSize {
		return fmt.Errorf("disk manager: write page %d: buffer size %d != page size %d", pageID, len(buf), config.PageSize)
	}

	offset := int64(pageID) * config.PageSize
	n, err := d.file.WriteAt(buf, offset)
	if err != nil {
		return fmt.Errorf("disk manager: write page %d: %w", pageID, err)
	}
	if n != config.PageSize {
		return fmt.Errorf("disk manager: write page %d: short write %d of %d bytes", pageID, n, config.PageSize)
	}
	return nil
}

// AllocatePage returns the next page ID and advances the counter. It
// does not write any bytes; the page only materializes on disk the
// next time WritePage is called for that ID.
func (d *DiskManager) AllocatePage() int32 {
	id := d.numPages
	d.numPages++
	return id
}

// GetNumPages returns the current page count.
func (d *DiskManager) GetNumPages() int32 {
	return d.numPages
}
