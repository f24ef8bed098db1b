package storage

import (
	"encoding/binary"

	"github.com/cabewaldrop/kvengine/internal/config"
)

// PageType discriminates a tree node page's variant. It is a closed,
// three-member tag, not an extension point — no inheritance, no
// dynamic dispatch.
type PageType int32

const (
	// PageTypeInvalid marks an uninitialized page.
	PageTypeInvalid PageType = 0
	// PageTypeLeaf marks a leaf node: header + entries.
	PageTypeLeaf PageType = 1
	// PageTypeInternal marks an internal node: header + children + keys.
	PageTypeInternal PageType = 2
)

// Common node header layout, shared by leaf and internal pages:
//
//	offset 0:  page_type       (int32)
//	offset 4:  num_keys        (int32)
//	offset 8:  parent_page_id  (int32)
const (
	offPageType      = 0
	offNumKeys       = 4
	offParentPageID  = 8
	commonHeaderSize = 12
)

// Leaf page layout: common header, then next_page_id, then a densely
// packed, ascending-sorted array of (key int32, value [ValueSize]byte)
// entries.
const (
	offLeafNextPageID = commonHeaderSize
	leafHeaderSize    = commonHeaderSize + 4
	leafEntrySize     = 4 + config.ValueSize
)

// LeafMaxEntries is the maximum number of entries a leaf page can hold.
var LeafMaxEntries = (config.PageSize - leafHeaderSize) / leafEntrySize

// Internal page layout: common header, then a children array of
// InternalMaxKeys+1 int32 slots, then a keys array of InternalMaxKeys
// int32 slots. Only the first num_keys+1 children and num_keys keys
// are meaningful; the rest of each array is unused padding.
const (
	internalMaxChildrenCap = (config.PageSize - commonHeaderSize - 4) / (2 * 4)
)

// InternalMaxKeys is the maximum number of keys an internal page can
// hold (one fewer than its maximum children count).
var InternalMaxKeys = internalMaxChildrenCap

var (
	offInternalChildren = commonHeaderSize
	offInternalKeys     = commonHeaderSize + (InternalMaxKeys+1)*4
)

// node is a typed view over a frame's raw page bytes: field accessors
// read and write directly through the slice rather than decoding into
// a separate Go struct and re-encoding on every mutation. buf must be
// exactly config.PageSize bytes, the frame's own backing array.
type node struct {
	buf []byte
}

func newNode(buf []byte) node {
	return node{buf: buf}
}

func (n node) PageType() PageType {
	return PageType(int32(binary.LittleEndian.Uint32(n.buf[offPageType:])))
}

func (n node) SetPageType(t PageType) {
	binary.LittleEndian.PutUint32(n.buf[offPageType:], uint32(int32(t)))
}

func (n node) NumKeys() int {
	return int(int32(binary.LittleEndian.Uint32(n.buf[offNumKeys:])))
}

func (n node) SetNumKeys(k int) {
	binary.LittleEndian.PutUint32(n.buf[offNumKeys:], uint32(int32(k)))
}

func (n node) ParentPageID() int32 {
	return int32(binary.LittleEndian.Uint32(n.buf[offParentPageID:]))
}

func (n node) SetParentPageID(id int32) {
	binary.LittleEndian.PutUint32(n.buf[offParentPageID:], uint32(id))
}

func (n node) IsLeaf() bool {
	return n.PageType() == PageTypeLeaf
}

// --- leaf accessors ---

func (n node) NextPageID() int32 {
	return int32(binary.LittleEndian.Uint32(n.buf[offLeafNextPageID:]))
}

func (n node) SetNextPageID(id int32) {
	binary.LittleEndian.PutUint32(n.buf[offLeafNextPageID:], uint32(id))
}

// entryList is a flat (key int32, value [ValueSize]byte) array with no
// header of its own, at some base offset into a larger buffer. A real
// leaf page's entry area and a split's scratch array are both
// entryLists; only the base offset differs.
type entryList struct {
	buf []byte
}

func (e entryList) entryOffset(i int) int {
	return i * leafEntrySize
}

func (e entryList) Key(i int) int32 {
	return int32(binary.LittleEndian.Uint32(e.buf[e.entryOffset(i):]))
}

func (e entryList) SetKey(i int, key int32) {
	binary.LittleEndian.PutUint32(e.buf[e.entryOffset(i):], uint32(key))
}

func (e entryList) Value(i int) []byte {
	off := e.entryOffset(i) + 4
	return e.buf[off : off+config.ValueSize]
}

// SetValue zeroes the value slot then copies up to ValueSize-1 bytes
// of v, leaving a trailing NUL, matching the C-string convention
// values are stored under (first byte zero == tombstone).
func (e entryList) SetValue(i int, v []byte) {
	dst := e.Value(i)
	for j := range dst {
		dst[j] = 0
	}
	if len(v) > config.ValueSize-1 {
		v = v[:config.ValueSize-1]
	}
	copy(dst, v)
}

// ClearValue zeroes the value slot, tombstoning the entry while
// leaving its key in place.
func (e entryList) ClearValue(i int) {
	dst := e.Value(i)
	for j := range dst {
		dst[j] = 0
	}
}

// CopyEntry copies entry src onto entry dst within the same list.
func (e entryList) CopyEntry(dst, src int) {
	copy(e.buf[e.entryOffset(dst):e.entryOffset(dst)+leafEntrySize], e.buf[e.entryOffset(src):e.entryOffset(src)+leafEntrySize])
}

// copyEntries copies count consecutive entries starting at srcBase in
// src to entries starting at dstBase in dst. Used to move a
// contiguous run of entries in one shot (memmove-safe on overlap).
func copyEntries(dst entryList, dstBase int, src entryList, srcBase int, count int) {
	copy(dst.buf[dst.entryOffset(dstBase):dst.entryOffset(dstBase+count)], src.buf[src.entryOffset(srcBase):src.entryOffset(srcBase+count)])
}

// entries returns the view over this leaf page's entry array.
func (n node) entries() entryList {
	return entryList{buf: n.buf[leafHeaderSize:]}
}

func (n node) EntryKey(i int) int32 {
	return n.entries().Key(i)
}

func (n node) SetEntryKey(i int, key int32) {
	n.entries().SetKey(i, key)
}

func (n node) EntryValue(i int) []byte {
	return n.entries().Value(i)
}

func (n node) SetEntryValue(i int, v []byte) {
	n.entries().SetValue(i, v)
}

// ClearEntryValue zeroes the value slot, tombstoning the entry while
// leaving its key in place.
func (n node) ClearEntryValue(i int) {
	n.entries().ClearValue(i)
}

// entryValueString trims the stored value at its first NUL byte.
func entryValueString(v []byte) string {
	for i, b := range v {
		if b == 0 {
			return string(v[:i])
		}
	}
	return string(v)
}

func isTombstone(v []byte) bool {
	return len(v) == 0 || v[0] == 0
}

// --- internal accessors ---

func (n node) Child(i int) int32 {
	off := offInternalChildren + i*4
	return int32(binary.LittleEndian.Uint32(n.buf[off:]))
}

func (n node) SetChild(i int, pageID int32) {
	off := offInternalChildren + i*4
	binary.LittleEndian.PutUint32(n.buf[off:], uint32(pageID))
}

func (n node) Key(i int) int32 {
	off := offInternalKeys + i*4
	return int32(binary.LittleEndian.Uint32(n.buf[off:]))
}

func (n node) SetKey(i int, key int32) {
	off := offInternalKeys + i*4
	binary.LittleEndian.PutUint32(n.buf[off:], uint32(key))
}

// shiftKeysRight moves keys[from:count) to keys[from+1:count+1),
// making room for an insertion at index from.
func (n node) shiftKeysRight(from, count int) {
	src := n.buf[offInternalKeys+from*4 : offInternalKeys+count*4]
	dst := n.buf[offInternalKeys+(from+1)*4 : offInternalKeys+(count+1)*4]
	copy(dst, src)
}

// shiftChildrenRight moves children[from:count) to children[from+1:count+1).
func (n node) shiftChildrenRight(from, count int) {
	src := n.buf[offInternalChildren+from*4 : offInternalChildren+count*4]
	dst := n.buf[offInternalChildren+(from+1)*4 : offInternalChildren+(count+1)*4]
	copy(dst, src)
}

// --- meta page (page 0) ---

// metaPage overlays the root-page-id field stored at offset 0 of page 0.
type metaPage struct {
	buf []byte
}

func newMetaPage(buf []byte) metaPage {
	return metaPage{buf: buf}
}

func (m metaPage) RootPageID() int32 {
	return int32(binary.LittleEndian.Uint32(m.buf[0:]))
}

func (m metaPage) SetRootPageID(id int32) {
	binary.LittleEndian.PutUint32(m.buf[0:], uint32(id))
}
