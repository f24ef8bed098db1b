package storage

import "errors"

// Sentinel errors for conditions callers are expected to branch on.
// "Not found" conditions (absent key, tombstoned value) are never
// reported as errors; they are reported as a boolean or a (value, bool)
// pair — see BTree.Search and BTree.Remove.
var (
	// ErrPoolExhausted is returned when FetchPage or NewPage cannot find
	// a victim frame: every resident frame is pinned and the free list
	// is empty. Under correct pin/unpin discipline and a pool sized per
	// config.MaxPagesInRAM this should never happen; the tree treats it
	// as a programming error, not a recoverable runtime condition.
	ErrPoolExhausted = errors.New("buffer pool: exhausted, no victim frame available")

	// ErrPageNotResident is returned by UnpinPage and FlushPage when the
	// requested page is not currently cached.
	ErrPageNotResident = errors.New("buffer pool: page not resident")

	// ErrPageNotPinned is returned by UnpinPage when the page's pin
	// count is already zero.
	ErrPageNotPinned = errors.New("buffer pool: page not pinned")

	// ErrPagePinned is returned by DeletePage when the page is resident
	// but still pinned by a caller.
	ErrPagePinned = errors.New("buffer pool: page is pinned")
)
