// Package mmapfile is the file + mapping manager of spec.md §4.3: it
// creates/opens the backing file, establishes and grows the memory
// mapping, enforces header invariants, and issues durability syncs.
//
// Grounded on the grow/remap protocol used for mmap-backed append logs
// elsewhere in the corpus (dittofs's pkg/wal/mmap.go, calvinalkan's
// slotcache) — unmap, truncate, remap, with the caller's raw pointers into
// the old mapping never surviving the call.
package mmapfile

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const (
	// InitialSize is the mapped size (and minimum file size) of a
	// freshly created table file.
	InitialSize = 1 << 20 // 1 MiB
	// GrowthFactor is the multiplier applied to the mapped size each time
	// an append would overflow it.
	GrowthFactor = 2

	dirPerm = 0o755
)

// File owns the backing file descriptor and the current mapping for one
// Table V2 file. All operations assume a single caller thread, per
// spec.md §5 ("single-threaded with respect to a given table handle").
type File struct {
	f     *os.File
	data  []byte // the current mapping; re-derived on every grow
	size  int64  // len(data); always a power-of-two multiple of InitialSize
	path  string
	dirty *dirtyPages

	// closed is set the moment the File can no longer serve Append/Flush
	// (a failed Grow, or a call to Close) — it guards against further use.
	closed bool
	// released is set only once Close has actually torn down the mapping
	// and file descriptor. It is deliberately distinct from closed: a
	// failed Grow sets closed without releasing anything, and Close must
	// still run its teardown in that case instead of short-circuiting.
	released bool
}

// Create makes a new table file at path with the given header, sized to
// InitialSize, and maps it read/write shared. The storage directory is
// created (mode 0755) if it does not already exist.
func Create(path string, header *Header) (*File, error) {
	if err := ensureStorageDir(path); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("mmapfile: create %q: %w: %v", path, ErrIO, err)
	}

	if err := f.Truncate(InitialSize); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("mmapfile: size %q: %w: %v", path, ErrIO, err)
	}

	data, err := mmapFile(f, InitialSize)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}

	headerBuf, err := EncodeHeader(header)
	if err != nil {
		unix.Munmap(data)
		f.Close()
		os.Remove(path)
		return nil, err
	}
	copy(data[:HeaderSize], headerBuf)

	return &File{
		f:     f,
		data:  data,
		size:  InitialSize,
		path:  path,
		dirty: newDirtyPages(InitialSize),
	}, nil
}

// ensureStorageDir creates the parent directory of path if it is absent.
// Per spec.md §9 open question (i), any error other than "already exists
// and is usable" is surfaced, not swallowed.
func ensureStorageDir(path string) error {
	dir := dirOf(path)
	if dir == "" {
		return nil
	}
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("mmapfile: %w: %q exists and is not a directory", ErrIO, dir)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("mmapfile: stat %q: %w: %v", dir, ErrIO, err)
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("mmapfile: mkdir %q: %w: %v", dir, ErrIO, err)
	}
	return nil
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return ""
}

// Open opens an existing table file, validates its header, and maps it
// for its entire current length.
func Open(path string) (*File, *Header, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("mmapfile: open %q: %w: %v", path, ErrIO, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("mmapfile: stat %q: %w: %v", path, ErrIO, err)
	}
	if info.Size() < HeaderSize {
		f.Close()
		return nil, nil, fmt.Errorf("mmapfile: %q: %w: smaller than header", path, ErrFormatInvalid)
	}

	data, err := mmapFile(f, info.Size())
	if err != nil {
		f.Close()
		return nil, nil, err
	}

	header, err := DecodeHeader(data)
	if err != nil {
		unix.Munmap(data)
		f.Close()
		return nil, nil, err
	}

	return &File{
		f:     f,
		data:  data,
		size:  info.Size(),
		path:  path,
		dirty: newDirtyPages(info.Size()),
	}, header, nil
}

func mmapFile(f *os.File, size int64) ([]byte, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmapfile: mmap: %w: %v", ErrIO, err)
	}
	return data, nil
}

// Data returns the current mapped region. The slice is only valid until
// the next call to Grow; callers must not retain it across a potential
// grow boundary (spec.md §9).
func (mf *File) Data() []byte { return mf.data }

// Size returns the current mapped size in bytes.
func (mf *File) Size() int64 { return mf.size }

// Grow doubles the mapped size and re-establishes the mapping. On any
// failure the File refuses further Append/Flush calls (spec.md §4.3 "Grow
// (remap)"), but its file descriptor and any still-valid mapping remain
// open for Close to release — Grow never closes the descriptor itself.
func (mf *File) Grow() error {
	if mf.closed {
		return ErrClosed
	}

	newSize := mf.size * GrowthFactor
	if newSize <= mf.size {
		mf.closed = true
		return fmt.Errorf("mmapfile: %w: size overflow", ErrCapacity)
	}

	if err := unix.Munmap(mf.data); err != nil {
		mf.closed = true
		return fmt.Errorf("mmapfile: munmap: %w: %v", ErrIO, err)
	}
	mf.data = nil

	if err := mf.f.Truncate(newSize); err != nil {
		mf.closed = true
		return fmt.Errorf("mmapfile: extend: %w: %v", ErrIO, err)
	}

	data, err := mmapFile(mf.f, newSize)
	if err != nil {
		mf.closed = true
		return err
	}

	mf.data = data
	mf.size = newSize
	mf.dirty = newDirtyPages(newSize)
	return nil
}

// MarkDirty records that the byte range [start, end) was just written,
// for the dirty-page bookkeeping consulted by Flush.
func (mf *File) MarkDirty(start, end int64) {
	mf.dirty.markRange(start, end)
}

// Flush issues an asynchronous memory sync (MS_ASYNC) covering
// data[0:liveEnd), the live prefix of the map, and clears the dirty-page
// tracker. If nothing has been written since the last flush, it is a
// no-op — spec.md §4.5 describes syncing the live prefix, and skipping a
// redundant syscall over an unchanged prefix does not change what is
// observable on disk.
func (mf *File) Flush(liveEnd int64) error {
	if mf.closed {
		return ErrClosed
	}
	if !mf.dirty.anyDirty() {
		return nil
	}
	if err := unix.Msync(mf.data[:liveEnd], unix.MS_ASYNC); err != nil {
		return fmt.Errorf("mmapfile: msync: %w: %v", ErrIO, err)
	}
	mf.dirty.clear()
	return nil
}

// Close flushes, unmaps, and closes the file descriptor. Close is
// idempotent, and it still performs its teardown on a File that a prior
// failed Grow already marked closed — refusing new Append/Flush calls
// must never be confused with having nothing left to release.
func (mf *File) Close(liveEnd int64) error {
	if mf.released {
		return nil
	}
	mf.closed = true
	mf.released = true

	var firstErr error
	if mf.data != nil {
		// Same MS_ASYNC call as Flush (spec.md §4.5): Close waits for the
		// syscall to return, not for the device to finish writing.
		if err := unix.Msync(mf.data[:liveEnd], unix.MS_ASYNC); err != nil {
			firstErr = fmt.Errorf("mmapfile: msync on close: %w: %v", ErrIO, err)
		}
		if err := unix.Munmap(mf.data); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("mmapfile: munmap: %w: %v", ErrIO, err)
		}
		mf.data = nil
	}
	if mf.f != nil {
		if err := mf.f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("mmapfile: close: %w: %v", ErrIO, err)
		}
	}
	return firstErr
}
