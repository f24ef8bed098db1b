package storage

// Entry is one (key, value) pair returned by Scan.
type Entry struct {
	Key   int32
	Value string
}

// Scan returns every non-tombstoned entry with a key in [start, end],
// inclusive on both ends, in ascending key order. It materializes the
// whole result before returning; no lazy cursor is exposed.
//
// EDUCATIONAL NOTE:
// -----------------
// The first leaf is located with a single root-to-leaf descent via
// findLeafPage; every leaf after that is reached by following
// next_page_id, never by re-descending the tree. Threading leaves into
// a sibling list at split time is what buys this.
func (t *BTree) Scan(start, end int32) ([]Entry, error) {
	var results []Entry
	if t.IsEmpty() {
		return results, nil
	}

	leafID, buf, err := t.findLeafPage(start)
	if err != nil {
		return nil, err
	}

	first := true
	for {
		n := newNode(buf)
		numKeys := n.NumKeys()

		startIdx := 0
		if first {
			startIdx = leafFindKey(n, start)
			first = false
		}

		stop := false
		for i := startIdx; i < numKeys; i++ {
			k := n.EntryKey(i)
			if k > end {
				stop = true
				break
			}
			if k >= start {
				v := n.EntryValue(i)
				if !isTombstone(v) {
					results = append(results, Entry{Key: k, Value: entryValueString(v)})
				}
			}
		}

		nextID := n.NextPageID()
		if err := t.bp.UnpinPage(leafID, false); err != nil {
			return nil, err
		}
		if stop || nextID == InvalidPageID {
			return results, nil
		}

		leafID = nextID
		buf, err = t.bp.FetchPage(leafID)
		if err != nil {
			return nil, err
		}
	}
}
