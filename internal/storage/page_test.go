package storage

import (
	"testing"

	"github.com/cabewaldrop/kvengine/internal/config"
)

func TestNodeHeaderFields(t *testing.T) {
	buf := make([]byte, config.PageSize)
	n := newNode(buf)

	n.SetPageType(PageTypeLeaf)
	n.SetNumKeys(3)
	n.SetParentPageID(7)
	n.SetNextPageID(InvalidPageID)

	if got := n.PageType(); got != PageTypeLeaf {
		t.Errorf("PageType() = %v, want PageTypeLeaf", got)
	}
	if got := n.NumKeys(); got != 3 {
		t.Errorf("NumKeys() = %d, want 3", got)
	}
	if got := n.ParentPageID(); got != 7 {
		t.Errorf("ParentPageID() = %d, want 7", got)
	}
	if got := n.NextPageID(); got != InvalidPageID {
		t.Errorf("NextPageID() = %d, want InvalidPageID", got)
	}
	if !n.IsLeaf() {
		t.Errorf("IsLeaf() = false, want true")
	}
}

func TestNodeLeafEntryAccessors(t *testing.T) {
	buf := make([]byte, config.PageSize)
	n := newNode(buf)
	n.SetPageType(PageTypeLeaf)

	n.SetEntryKey(0, 42)
	n.SetEntryValue(0, []byte("hello"))

	if got := n.EntryKey(0); got != 42 {
		t.Errorf("EntryKey(0) = %d, want 42", got)
	}
	if got := entryValueString(n.EntryValue(0)); got != "hello" {
		t.Errorf("EntryValue(0) = %q, want %q", got, "hello")
	}
	if isTombstone(n.EntryValue(0)) {
		t.Errorf("EntryValue(0) reported as tombstone")
	}

	n.ClearEntryValue(0)
	if !isTombstone(n.EntryValue(0)) {
		t.Errorf("EntryValue(0) after ClearEntryValue should be a tombstone")
	}
	if got := n.EntryKey(0); got != 42 {
		t.Errorf("EntryKey(0) after ClearEntryValue = %d, want 42 (lazy delete keeps the key)", got)
	}
}

func TestNodeLeafValueTruncatesAndNulTerminates(t *testing.T) {
	buf := make([]byte, config.PageSize)
	n := newNode(buf)

	long := make([]byte, config.ValueSize*2)
	for i := range long {
		long[i] = 'x'
	}
	n.SetEntryValue(0, long)

	v := n.EntryValue(0)
	if len(v) != config.ValueSize {
		t.Fatalf("stored value slot length = %d, want %d", len(v), config.ValueSize)
	}
	if v[config.ValueSize-1] != 0 {
		t.Errorf("last byte of a truncated value must be the NUL terminator")
	}
}

func TestNodeInternalAccessorsAndShift(t *testing.T) {
	buf := make([]byte, config.PageSize)
	n := newNode(buf)
	n.SetPageType(PageTypeInternal)
	n.SetNumKeys(2)
	n.SetChild(0, 10)
	n.SetKey(0, 100)
	n.SetChild(1, 11)
	n.SetKey(1, 200)
	n.SetChild(2, 12)

	// Insert a new key/child at index 1, as internalInsertAt would.
	internalInsertAt(n, 1, 150, 99)

	if got := n.NumKeys(); got != 3 {
		t.Fatalf("NumKeys() after insert = %d, want 3", got)
	}
	wantKeys := []int32{100, 150, 200}
	wantChildren := []int32{10, 11, 99, 12}
	for i, want := range wantKeys {
		if got := n.Key(i); got != want {
			t.Errorf("Key(%d) = %d, want %d", i, got, want)
		}
	}
	for i, want := range wantChildren {
		if got := n.Child(i); got != want {
			t.Errorf("Child(%d) = %d, want %d", i, got, want)
		}
	}
}

func TestLeafAndInternalCapacityConstants(t *testing.T) {
	if LeafMaxEntries <= 0 {
		t.Fatalf("LeafMaxEntries = %d, want > 0", LeafMaxEntries)
	}
	if InternalMaxKeys <= 0 {
		t.Fatalf("InternalMaxKeys = %d, want > 0", InternalMaxKeys)
	}
	// Header + (InternalMaxKeys+1) children + InternalMaxKeys keys must
	// fit within one page.
	used := commonHeaderSize + (InternalMaxKeys+1)*4 + InternalMaxKeys*4
	if used > config.PageSize {
		t.Errorf("internal page layout uses %d bytes, exceeds PageSize %d", used, config.PageSize)
	}
}

func TestMetaPageRootPageID(t *testing.T) {
	buf := make([]byte, config.PageSize)
	m := newMetaPage(buf)

	m.SetRootPageID(InvalidPageID)
	if got := m.RootPageID(); got != InvalidPageID {
		t.Errorf("RootPageID() = %d, want InvalidPageID", got)
	}

	m.SetRootPageID(5)
	if got := m.RootPageID(); got != 5 {
		t.Errorf("RootPageID() = %d, want 5", got)
	}
}
