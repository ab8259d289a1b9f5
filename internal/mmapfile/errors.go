package mmapfile

import "errors"

// Sentinel errors for the file + mapping manager (spec.md §7).
var (
	// ErrFormatInvalid is returned by Open when the magic or version does
	// not match, or the header is otherwise structurally unreadable.
	ErrFormatInvalid = errors.New("mmapfile: invalid file format")

	// ErrIO wraps an underlying OS failure on the file or its mapping
	// (create, open, extend, mmap, munmap, msync).
	ErrIO = errors.New("mmapfile: I/O failure")

	// ErrCapacity is returned by Grow when doubling the mapped size would
	// overflow.
	ErrCapacity = errors.New("mmapfile: capacity exceeded")

	// ErrClosed is returned by Grow and Flush on a File that has already
	// failed a grow or been closed. Close on such a File returns nil.
	ErrClosed = errors.New("mmapfile: handle is closed")
)
