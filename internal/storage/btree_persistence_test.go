package storage

import (
	"fmt"
	"os"
	"testing"
)

// TestBTreePersistenceAcrossReopen mirrors the end-to-end stress
// scenario: insert 10000 shuffled keys, verify every one, close
// everything, reopen on the same file, and verify again plus a few
// range scans — the shape of original_source/src/main.cpp's own
// three-phase run.
func TestBTreePersistenceAcrossReopen(t *testing.T) {
	const n = 10000
	path := t.Name() + ".db"
	defer os.Remove(path)

	dm, err := OpenDiskManager(path)
	if err != nil {
		t.Fatalf("OpenDiskManager failed: %v", err)
	}
	bp := NewBufferPool(dm)
	tree, err := OpenBTree(bp, dm)
	if err != nil {
		t.Fatalf("OpenBTree failed: %v", err)
	}

	keys := shuffledKeys(n)
	for _, k := range keys {
		if _, err := tree.Insert(k, []byte(fmt.Sprintf("value_%d", k))); err != nil {
			t.Fatalf("Insert(%d) failed: %v", k, err)
		}
	}

	for i := int32(0); i < n; i++ {
		want := fmt.Sprintf("value_%d", i)
		v, found, err := tree.Search(i)
		if err != nil || !found || v != want {
			t.Fatalf("pre-reopen Search(%d) = (%q, %v, %v), want (%q, true, nil)", i, v, found, err, want)
		}
	}
	if _, found, _ := tree.Search(-1); found {
		t.Fatalf("Search(-1) should not find anything")
	}
	if _, found, _ := tree.Search(999999); found {
		t.Fatalf("Search(999999) should not find anything")
	}

	if err := tree.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := bp.FlushAllPages(); err != nil {
		t.Fatalf("FlushAllPages failed: %v", err)
	}
	if err := dm.Close(); err != nil {
		t.Fatalf("disk Close failed: %v", err)
	}

	dm2, err := OpenDiskManager(path)
	if err != nil {
		t.Fatalf("reopen OpenDiskManager failed: %v", err)
	}
	defer dm2.Close()
	bp2 := NewBufferPool(dm2)
	tree2, err := OpenBTree(bp2, dm2)
	if err != nil {
		t.Fatalf("reopen OpenBTree failed: %v", err)
	}
	defer tree2.Close()

	for i := int32(0); i < n; i++ {
		want := fmt.Sprintf("value_%d", i)
		v, found, err := tree2.Search(i)
		if err != nil || !found || v != want {
			t.Fatalf("post-reopen Search(%d) = (%q, %v, %v), want (%q, true, nil)", i, v, found, err, want)
		}
	}

	scanCases := []struct {
		start, end int32
		wantCount  int
	}{
		{100, 200, 101},
		{1000, 2000, 1001},
		{250, 250, 1},
		{0, 99, 100},
		{400, 499, 100},
	}
	for _, c := range scanCases {
		entries, err := tree2.Scan(c.start, c.end)
		if err != nil {
			t.Fatalf("Scan(%d,%d) failed: %v", c.start, c.end, err)
		}
		if len(entries) != c.wantCount {
			t.Fatalf("Scan(%d,%d) returned %d entries, want %d", c.start, c.end, len(entries), c.wantCount)
		}
	}
}

// TestBTreePersistenceWithPartialKeyRangeScanIsEmpty verifies that,
// after inserting only keys [0, 500) and reopening the store, a Scan
// entirely past the inserted key range returns zero results, distinct
// from the full-range-inserted case above.
func TestBTreePersistenceWithPartialKeyRangeScanIsEmpty(t *testing.T) {
	path := t.Name() + ".db"
	defer os.Remove(path)

	dm, err := OpenDiskManager(path)
	if err != nil {
		t.Fatalf("OpenDiskManager failed: %v", err)
	}
	bp := NewBufferPool(dm)
	tree, err := OpenBTree(bp, dm)
	if err != nil {
		t.Fatalf("OpenBTree failed: %v", err)
	}

	for i := int32(0); i < 500; i++ {
		tree.Insert(i, []byte(fmt.Sprintf("value_%d", i)))
	}

	if err := tree.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := bp.FlushAllPages(); err != nil {
		t.Fatalf("FlushAllPages failed: %v", err)
	}
	if err := dm.Close(); err != nil {
		t.Fatalf("disk Close failed: %v", err)
	}

	dm2, err := OpenDiskManager(path)
	if err != nil {
		t.Fatalf("reopen OpenDiskManager failed: %v", err)
	}
	defer dm2.Close()
	bp2 := NewBufferPool(dm2)
	tree2, err := OpenBTree(bp2, dm2)
	if err != nil {
		t.Fatalf("reopen OpenBTree failed: %v", err)
	}
	defer tree2.Close()

	entries, err := tree2.Scan(1000, 2000)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("Scan(1000,2000) over keys [0,500) returned %d entries, want 0", len(entries))
	}
}

// shuffledKeys returns [0, n) in a fixed, deterministic permutation
// (a linear-congruential-style shuffle) so the test needs no math/rand
// seeding to be reproducible.
func shuffledKeys(n int) []int32 {
	keys := make([]int32, n)
	for i := range keys {
		keys[i] = int32(i)
	}
	for i := 0; i < n; i++ {
		j := (i*2654435761 + 40503) % n
		if j < 0 {
			j += n
		}
		keys[i], keys[j] = keys[j], keys[i]
	}
	return keys
}
