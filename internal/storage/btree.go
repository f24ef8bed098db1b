// B+ tree implementation.
//
// EDUCATIONAL NOTES:
// ------------------
// This is a B+ tree keyed by 32-bit signed integers with fixed-width
// byte-string values, built directly on top of BufferPool: every node
// access is a Fetch/mutate/Unpin, never a raw pointer held across a
// call boundary.
//
// Node bytes are overlaid in place (see page.go) rather than decoded
// into a separate struct and re-encoded on every mutation — the entry
// size and count are fixed at compile time, so there is nothing a
// decode step would buy us that a direct accessor doesn't already
// give for free.
//
// All leaves live at the same depth. Leaves are threaded into a
// singly linked list via next_page_id so range scans never need to
// re-descend the tree. Deletion is lazy: Remove zeroes a value's bytes
// in place and leaves the key where it is; Search and Scan treat a
// zero-valued entry as absent.
package storage

import "fmt"

// BTree stores ordered (key int32 -> fixed-width value) pairs in a set
// of pages reachable through a BufferPool, with its root page ID
// persisted in the pool's page 0 (the meta page).
type BTree struct {
	bp         *BufferPool
	rootPageID int32
}

// OpenBTree constructs a tree over bp. If the underlying disk manager
// reports zero pages, the tree starts empty; otherwise page 0 is
// fetched and its persisted root page ID adopted.
func OpenBTree(bp *BufferPool, disk *DiskManager) (*BTree, error) {
	t := &BTree{bp: bp, rootPageID: InvalidPageID}

	if disk.GetNumPages() == 0 {
		return t, nil
	}

	buf, err := bp.FetchPage(MetaPageID)
	if err != nil {
		return nil, fmt.Errorf("btree: open: %w", err)
	}
	t.rootPageID = newMetaPage(buf).RootPageID()
	if err := bp.UnpinPage(MetaPageID, false); err != nil {
		return nil, fmt.Errorf("btree: open: %w", err)
	}

	return t, nil
}

// Close flushes the meta page. If the tree was never inserted into,
// page 0 was never allocated and there is nothing to flush.
func (t *BTree) Close() error {
	if err := t.bp.FlushPage(MetaPageID); err != nil && err != ErrPageNotResident {
		return fmt.Errorf("btree: close: %w", err)
	}
	return nil
}

// IsEmpty reports whether the tree currently has no root page.
func (t *BTree) IsEmpty() bool {
	return t.rootPageID == InvalidPageID
}

// leafFindKey binary-searches n's sorted entries for the lowest index
// i with entries[i].key >= k. Returns NumKeys() if k exceeds every key.
func leafFindKey(n node, k int32) int {
	lo, hi := 0, n.NumKeys()
	for lo < hi {
		mid := (lo + hi) / 2
		if n.EntryKey(mid) < k {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// internalFindChildIndex binary-searches n's sorted keys for the
// lowest index i with keys[i] > k.
func internalFindChildIndex(n node, k int32) int {
	lo, hi := 0, n.NumKeys()
	for lo < hi {
		mid := (lo + hi) / 2
		if n.Key(mid) <= k {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// internalFindChild returns the child page ID that the search for k
// must follow from internal node n.
func internalFindChild(n node, k int32) int32 {
	return n.Child(internalFindChildIndex(n, k))
}

// findLeafPage descends from the root to the leaf that would contain
// key, fetching and pinning exactly that leaf (unpinning every
// internal node visited along the way, clean). The caller owns the
// single pin on the returned page and must unpin it exactly once.
func (t *BTree) findLeafPage(key int32) (int32, []byte, error) {
	pageID := t.rootPageID
	buf, err := t.bp.FetchPage(pageID)
	if err != nil {
		return InvalidPageID, nil, err
	}

	for newNode(buf).PageType() == PageTypeInternal {
		n := newNode(buf)
		childID := internalFindChild(n, key)
		if err := t.bp.UnpinPage(pageID, false); err != nil {
			return InvalidPageID, nil, err
		}
		pageID = childID
		buf, err = t.bp.FetchPage(pageID)
		if err != nil {
			return InvalidPageID, nil, err
		}
	}

	return pageID, buf, nil
}

// Search looks up key and returns its value and true if present and
// not tombstoned, or ("", false) otherwise.
func (t *BTree) Search(key int32) (string, bool, error) {
	if t.IsEmpty() {
		return "", false, nil
	}

	leafID, buf, err := t.findLeafPage(key)
	if err != nil {
		return "", false, err
	}
	n := newNode(buf)

	var value string
	found := false
	idx := leafFindKey(n, key)
	if idx < n.NumKeys() && n.EntryKey(idx) == key {
		v := n.EntryValue(idx)
		if !isTombstone(v) {
			value = entryValueString(v)
			found = true
		}
	}

	if err := t.bp.UnpinPage(leafID, false); err != nil {
		return "", false, err
	}
	return value, found, nil
}

// leafInsertAt shifts entries [idx, NumKeys()) right by one and
// writes the new entry at idx. Requires NumKeys() < LeafMaxEntries.
func leafInsertAt(n node, idx int, key int32, value []byte) {
	numKeys := n.NumKeys()
	e := n.entries()
	copyEntries(e, idx+1, e, idx, numKeys-idx)
	e.SetKey(idx, key)
	e.SetValue(idx, value)
	n.SetNumKeys(numKeys + 1)
}

// internalInsertAt shifts keys [idx, NumKeys()) and children
// [idx+1, NumKeys()+1) right by one and writes key at keys[idx] and
// rightChild at children[idx+1].
// Requires NumKeys() < InternalMaxKeys.
func internalInsertAt(n node, idx int, key int32, rightChild int32) {
	numKeys := n.NumKeys()
	n.shiftKeysRight(idx, numKeys)
	n.shiftChildrenRight(idx+1, numKeys+1)
	n.SetKey(idx, key)
	n.SetChild(idx+1, rightChild)
	n.SetNumKeys(numKeys + 1)
}

// Insert adds (key, value) to the tree, overwriting any existing
// value for key in place. Values longer than ValueSize-1 bytes are
// truncated; a value whose first byte is zero is indistinguishable
// from a tombstone and must not be used. Insert never fails on a
// well-formed store.
func (t *BTree) Insert(key int32, value []byte) (bool, error) {
	if t.IsEmpty() {
		return t.insertIntoEmpty(key, value)
	}

	leafID, buf, err := t.findLeafPage(key)
	if err != nil {
		return false, err
	}
	n := newNode(buf)

	idx := leafFindKey(n, key)
	if idx < n.NumKeys() && n.EntryKey(idx) == key {
		// Duplicate key: route to the overwrite path before ever
		// checking fullness, so splitLeaf is only ever invoked with a
		// genuinely new key.
		n.entries().SetValue(idx, value)
		if err := t.bp.UnpinPage(leafID, true); err != nil {
			return false, err
		}
		return true, nil
	}

	if n.NumKeys() < LeafMaxEntries {
		leafInsertAt(n, idx, key, value)
		if err := t.bp.UnpinPage(leafID, true); err != nil {
			return false, err
		}
		return true, nil
	}

	if err := t.splitLeaf(leafID, n, key, value); err != nil {
		t.bp.UnpinPage(leafID, true)
		return false, err
	}
	if err := t.bp.UnpinPage(leafID, true); err != nil {
		return false, err
	}
	return true, nil
}

// insertIntoEmpty bootstraps a fresh tree: allocate the meta page
// (which must come out as page 0, or an error is returned), allocate a
// root leaf, insert the first entry, and persist the new root page ID.
func (t *BTree) insertIntoEmpty(key int32, value []byte) (bool, error) {
	metaID, metaBuf, err := t.bp.NewPage()
	if err != nil {
		return false, err
	}
	if metaID != MetaPageID {
		return false, fmt.Errorf("btree: expected meta page id %d, got %d", MetaPageID, metaID)
	}
	_ = metaBuf // already zeroed by NewPage
	if err := t.bp.UnpinPage(metaID, true); err != nil {
		return false, err
	}

	rootID, rootBuf, err := t.bp.NewPage()
	if err != nil {
		return false, err
	}
	root := newNode(rootBuf)
	root.SetPageType(PageTypeLeaf)
	root.SetNumKeys(0)
	root.SetParentPageID(InvalidPageID)
	root.SetNextPageID(InvalidPageID)
	leafInsertAt(root, 0, key, value)

	t.rootPageID = rootID
	if err := t.persistRootPageID(); err != nil {
		t.bp.UnpinPage(rootID, true)
		return false, err
	}
	if err := t.bp.UnpinPage(rootID, true); err != nil {
		return false, err
	}
	return true, nil
}

// persistRootPageID writes the current root page ID to the meta page.
func (t *BTree) persistRootPageID() error {
	buf, err := t.bp.FetchPage(MetaPageID)
	if err != nil {
		return err
	}
	newMetaPage(buf).SetRootPageID(t.rootPageID)
	return t.bp.UnpinPage(MetaPageID, true)
}

// splitLeaf handles inserting (key, value) into a full leaf: merge the
// new entry into a scratch array of LeafMaxEntries+1 entries, split it
// half-and-half between the old leaf (left, in place) and a newly
// allocated leaf (right), thread the sibling list, and promote the new
// leaf's first key into the parent. The page behind old must already
// be pinned; the caller unpins it.
func (t *BTree) splitLeaf(oldPageID int32, old node, key int32, value []byte) error {
	numKeys := old.NumKeys()
	idx := leafFindKey(old, key)
	total := numKeys + 1

	scratch := entryList{buf: make([]byte, total*leafEntrySize)}
	copyEntries(scratch, 0, old.entries(), 0, idx)
	scratch.SetKey(idx, key)
	scratch.SetValue(idx, value)
	copyEntries(scratch, idx+1, old.entries(), idx, numKeys-idx)

	newLeafID, newBuf, err := t.bp.NewPage()
	if err != nil {
		return err
	}
	newLeaf := newNode(newBuf)

	split := total / 2

	copyEntries(old.entries(), 0, scratch, 0, split)
	old.SetNumKeys(split)

	newLeaf.SetPageType(PageTypeLeaf)
	newLeaf.SetNumKeys(total - split)
	newLeaf.SetParentPageID(old.ParentPageID())
	newLeaf.SetNextPageID(old.NextPageID())
	old.SetNextPageID(newLeafID)
	copyEntries(newLeaf.entries(), 0, scratch, split, total-split)

	middleKey := newLeaf.EntryKey(0)

	if err := t.insertIntoParent(oldPageID, old, middleKey, newLeafID, newLeaf); err != nil {
		t.bp.UnpinPage(newLeafID, true)
		return err
	}

	return t.bp.UnpinPage(newLeafID, true)
}

// insertIntoParent links a newly split right page into left's parent,
// creating a new root if left was the root, splitting the parent if it
// is itself full, or inserting directly if it has room. left and right
// are already pinned by the caller; only parent is fetched here.
func (t *BTree) insertIntoParent(leftID int32, left node, key int32, rightID int32, right node) error {
	if left.ParentPageID() == InvalidPageID {
		return t.createNewRoot(leftID, key, rightID, left, right)
	}

	parentID := left.ParentPageID()
	parentBuf, err := t.bp.FetchPage(parentID)
	if err != nil {
		return err
	}
	parent := newNode(parentBuf)
	right.SetParentPageID(parentID)

	if parent.NumKeys() < InternalMaxKeys {
		idx := internalFindChildIndex(parent, key)
		internalInsertAt(parent, idx, key, rightID)
		return t.bp.UnpinPage(parentID, true)
	}

	if err := t.splitInternal(parentID, parent, key, rightID); err != nil {
		t.bp.UnpinPage(parentID, true)
		return err
	}
	return t.bp.UnpinPage(parentID, true)
}

// createNewRoot allocates a fresh internal root over left and right,
// reparents both (already pinned by the caller), and persists the new
// root page ID.
func (t *BTree) createNewRoot(leftID int32, key int32, rightID int32, left node, right node) error {
	newRootID, newRootBuf, err := t.bp.NewPage()
	if err != nil {
		return err
	}
	newRoot := newNode(newRootBuf)
	newRoot.SetPageType(PageTypeInternal)
	newRoot.SetNumKeys(1)
	newRoot.SetParentPageID(InvalidPageID)
	newRoot.SetChild(0, leftID)
	newRoot.SetChild(1, rightID)
	newRoot.SetKey(0, key)

	left.SetParentPageID(newRootID)
	right.SetParentPageID(newRootID)

	t.rootPageID = newRootID
	if err := t.persistRootPageID(); err != nil {
		t.bp.UnpinPage(newRootID, true)
		return err
	}

	return t.bp.UnpinPage(newRootID, true)
}

// setParentPageID fetches pageID, overwrites its parent pointer, and
// unpins it dirty. Used by splitInternal to reparent every child that
// moved to the new internal node.
func (t *BTree) setParentPageID(pageID int32, parentID int32) error {
	buf, err := t.bp.FetchPage(pageID)
	if err != nil {
		return err
	}
	newNode(buf).SetParentPageID(parentID)
	return t.bp.UnpinPage(pageID, true)
}

// splitInternal handles inserting (key, rightChild) into a full
// internal node: merge into scratch key/child arrays, split half and
// half, reparent every child that moved to the new node, and promote
// the split's middle key into the grandparent.
func (t *BTree) splitInternal(oldPageID int32, old node, key int32, rightChild int32) error {
	n := old.NumKeys()
	idx := internalFindChildIndex(old, key)

	tempKeys := make([]int32, n+1)
	tempChildren := make([]int32, n+2)

	j := 0
	for i := 0; i < n; i++ {
		if i == idx {
			tempKeys[j] = key
			j++
		}
		tempKeys[j] = old.Key(i)
		j++
	}
	if idx == n {
		tempKeys[j] = key
		j++
	}
	totalKeys := j

	j = 0
	for i := 0; i <= n; i++ {
		if i == idx+1 {
			tempChildren[j] = rightChild
			j++
		}
		tempChildren[j] = old.Child(i)
		j++
	}
	if idx+1 == n+1 {
		tempChildren[j] = rightChild
		j++
	}

	split := totalKeys / 2
	middleKey := tempKeys[split]

	newInternalID, newBuf, err := t.bp.NewPage()
	if err != nil {
		return err
	}
	newInternal := newNode(newBuf)

	old.SetNumKeys(split)
	for i := 0; i < split; i++ {
		old.SetKey(i, tempKeys[i])
		old.SetChild(i, tempChildren[i])
	}
	old.SetChild(split, tempChildren[split])

	newInternal.SetPageType(PageTypeInternal)
	newNumKeys := totalKeys - split - 1
	newInternal.SetNumKeys(newNumKeys)
	newInternal.SetParentPageID(old.ParentPageID())
	for i := split + 1; i < totalKeys; i++ {
		newInternal.SetKey(i-split-1, tempKeys[i])
		newInternal.SetChild(i-split-1, tempChildren[i])
	}
	newInternal.SetChild(newNumKeys, tempChildren[totalKeys])

	for i := 0; i <= newNumKeys; i++ {
		if err := t.setParentPageID(newInternal.Child(i), newInternalID); err != nil {
			t.bp.UnpinPage(newInternalID, true)
			return err
		}
	}

	if err := t.insertIntoParent(oldPageID, old, middleKey, newInternalID, newInternal); err != nil {
		t.bp.UnpinPage(newInternalID, true)
		return err
	}

	return t.bp.UnpinPage(newInternalID, true)
}

// Remove tombstones key's value if present, leaving the key itself in
// place (lazy deletion: no rebalancing, no space reclamation). Returns
// false if the tree is empty or the key is not present.
func (t *BTree) Remove(key int32) (bool, error) {
	if t.IsEmpty() {
		return false, nil
	}

	leafID, buf, err := t.findLeafPage(key)
	if err != nil {
		return false, err
	}
	n := newNode(buf)

	idx := leafFindKey(n, key)
	if idx >= n.NumKeys() || n.EntryKey(idx) != key {
		if err := t.bp.UnpinPage(leafID, false); err != nil {
			return false, err
		}
		return false, nil
	}

	n.ClearEntryValue(idx)
	if err := t.bp.UnpinPage(leafID, true); err != nil {
		return false, err
	}
	return true, nil
}

