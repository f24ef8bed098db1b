// Package config holds the compile-time-overridable size constants that
// determine the on-disk format and buffer pool footprint of the storage
// engine. Changing any of these changes the on-disk format; a database
// file written with one set of constants cannot be read with another.
package config

const (
	// PageSize is the size in bytes of every page, on disk and in the
	// buffer pool. Page 0 is always the meta page.
	PageSize = 4096

	// MaxPagesInRAM is the number of frames the buffer pool holds.
	// Must comfortably exceed the maximum pin count reached during a
	// split cascade (tree depth plus a small constant).
	MaxPagesInRAM = 64

	// ValueSize is the fixed width, in bytes, of every value stored in a
	// leaf entry, including the trailing NUL terminator.
	ValueSize = 128
)
