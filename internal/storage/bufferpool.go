package storage

import (
	"container/list"

	"github.com/cabewaldrop/kvengine/internal/config"
)

// frame is one slot of the buffer pool's fixed-size frame array. It
// caches at most one page image; ownership of that image is shared
// between the frame itself and zero-or-more logical pins held by
// callers.
type frame struct {
	pageID   int32
	data     [config.PageSize]byte
	isDirty  bool
	pinCount int
}

// BufferPool owns a fixed-size array of frames and mediates all page
// access for the tree. It is the only component that talks to the
// disk manager.
//
// Invariants:
//   - a frame is in the free list XOR resides in the page table;
//   - a resident frame is in the LRU list iff pinCount == 0;
//   - isDirty is never set on a frame that is not resident.
type BufferPool struct {
	disk   *DiskManager
	frames []frame

	// pageTable maps a resident page ID to its frame index.
	pageTable map[int32]int

	// freeList holds indices of frames with no resident page.
	freeList []int

	// lru holds frame indices of unpinned resident frames, front =
	// most-recently-unpinned, back = least-recently-unpinned (the next
	// eviction victim). lruElem lets UnpinPage/FetchPage locate and
	// remove a frame's entry in O(1).
	lru     *list.List
	lruElem map[int]*list.Element
}

// NewBufferPool creates a pool of config.MaxPagesInRAM frames backed by disk.
func NewBufferPool(disk *DiskManager) *BufferPool {
	size := config.MaxPagesInRAM
	bp := &BufferPool{
		disk:      disk,
		frames:    make([]frame, size),
		pageTable: make(map[int32]int, size),
		freeList:  make([]int, size),
		lru:       list.New(),
		lruElem:   make(map[int]*list.Element, size),
	}
	for i := 0; i < size; i++ {
		bp.frames[i].pageID = InvalidPageID
		bp.freeList[i] = i
	}
	return bp
}

// FetchPage pins pageID, reading it from disk into a frame if it is
// not already resident. Returns ErrPoolExhausted if every frame is
// pinned and no free frame is available. Every successful FetchPage
// must be paired with exactly one UnpinPage for the same page ID.
func (bp *BufferPool) FetchPage(pageID int32) ([]byte, error) {
	if idx, ok := bp.pageTable[pageID]; ok {
		f := &bp.frames[idx]
		f.pinCount++
		bp.removeFromLRU(idx)
		return f.data[:], nil
	}

	idx, err := bp.findVictim()
	if err != nil {
		return nil, err
	}

	f := &bp.frames[idx]
	if err := bp.evict(idx); err != nil {
		return nil, err
	}

	if err := bp.disk.ReadPage(pageID, f.data[:]); err != nil {
		return nil, err
	}
	f.pageID = pageID
	f.isDirty = false
	f.pinCount = 1
	bp.pageTable[pageID] = idx

	return f.data[:], nil
}

// UnpinPage decrements pageID's pin count and latches mark_dirty onto
// its dirty bit. It returns ErrPageNotResident / ErrPageNotPinned if
// the page is not resident or already unpinned; callers should treat
// either as a bug, not a recoverable condition. When the pin count
// reaches zero the frame becomes eligible for eviction and is pushed
// to the front of the LRU list.
func (bp *BufferPool) UnpinPage(pageID int32, markDirty bool) error {
	idx, ok := bp.pageTable[pageID]
	if !ok {
		return ErrPageNotResident
	}

	f := &bp.frames[idx]
	if f.pinCount <= 0 {
		return ErrPageNotPinned
	}

	f.pinCount--
	if markDirty {
		f.isDirty = true
	}

	if f.pinCount == 0 {
		bp.lruElem[idx] = bp.lru.PushFront(idx)
	}

	return nil
}

// NewPage allocates a fresh page ID via the disk manager, pins a
// zeroed frame for it, and returns the frame's data slice alongside
// the new page ID. Callers typically write into the slice immediately
// and then UnpinPage with markDirty = true.
func (bp *BufferPool) NewPage() (int32, []byte, error) {
	idx, err := bp.findVictim()
	if err != nil {
		return InvalidPageID, nil, err
	}

	f := &bp.frames[idx]
	if err := bp.evict(idx); err != nil {
		return InvalidPageID, nil, err
	}

	pageID := bp.disk.AllocatePage()
	for i := range f.data {
		f.data[i] = 0
	}
	f.pageID = pageID
	f.isDirty = false
	f.pinCount = 1
	bp.pageTable[pageID] = idx

	return pageID, f.data[:], nil
}

// FlushPage writes a resident page's bytes to disk and clears its
// dirty bit. Returns ErrPageNotResident if the page is not cached.
func (bp *BufferPool) FlushPage(pageID int32) error {
	idx, ok := bp.pageTable[pageID]
	if !ok {
		return ErrPageNotResident
	}
	return bp.flushFrame(idx)
}

// DeletePage evicts pageID from the pool without writing anything
// back. Succeeds (no-op) if the page is not resident. Fails with
// ErrPagePinned if the page is resident but still pinned.
func (bp *BufferPool) DeletePage(pageID int32) error {
	idx, ok := bp.pageTable[pageID]
	if !ok {
		return nil
	}

	f := &bp.frames[idx]
	if f.pinCount > 0 {
		return ErrPagePinned
	}

	bp.removeFromLRU(idx)
	delete(bp.pageTable, pageID)

	f.pageID = InvalidPageID
	f.isDirty = false
	f.pinCount = 0
	bp.freeList = append(bp.freeList, idx)

	return nil
}

// FlushAllPages writes every dirty resident page to disk. Called by
// the engine on shutdown.
func (bp *BufferPool) FlushAllPages() error {
	for pageID := range bp.pageTable {
		idx := bp.pageTable[pageID]
		if bp.frames[idx].isDirty {
			if err := bp.flushFrame(idx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (bp *BufferPool) flushFrame(idx int) error {
	f := &bp.frames[idx]
	if err := bp.disk.WritePage(f.pageID, f.data[:]); err != nil {
		return err
	}
	f.isDirty = false
	return nil
}

// evict flushes the frame at idx if it currently holds a dirty
// resident page and removes it from the page table, leaving the frame
// ready to receive a new page image.
func (bp *BufferPool) evict(idx int) error {
	f := &bp.frames[idx]
	if f.pageID == InvalidPageID {
		return nil
	}
	if f.isDirty {
		if err := bp.disk.WritePage(f.pageID, f.data[:]); err != nil {
			return err
		}
	}
	delete(bp.pageTable, f.pageID)
	return nil
}

// findVictim selects a frame to receive a new page image: the free
// list first, then the least-recently-used unpinned resident frame.
// Returns ErrPoolExhausted if no frame qualifies.
func (bp *BufferPool) findVictim() (int, error) {
	if n := len(bp.freeList); n > 0 {
		idx := bp.freeList[n-1]
		bp.freeList = bp.freeList[:n-1]
		return idx, nil
	}

	for bp.lru.Len() > 0 {
		back := bp.lru.Back()
		idx := back.Value.(int)
		bp.lru.Remove(back)
		delete(bp.lruElem, idx)

		// Defensive: in a correctly maintained LRU list every entry has
		// pinCount == 0, so this always succeeds on the first iteration.
		if bp.frames[idx].pinCount == 0 {
			return idx, nil
		}
	}

	return 0, ErrPoolExhausted
}

func (bp *BufferPool) removeFromLRU(idx int) {
	if elem, ok := bp.lruElem[idx]; ok {
		bp.lru.Remove(elem)
		delete(bp.lruElem, idx)
	}
}
