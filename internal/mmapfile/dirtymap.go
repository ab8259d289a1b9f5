package mmapfile

import "github.com/bits-and-blooms/bitset"

// dirtyPages tracks which fixed-size pages of the mapped region have been
// touched since the last flush. It answers one question cheaply: "is
// there anything to sync at all" — so a Flush() call issued when nothing
// has changed since the last one (spec.md §4.5, redundant Flush calls)
// skips the msync syscall entirely instead of re-syncing a clean region.
//
// The bitset is sized for the region as mapped; growth rebuilds it rather
// than trying to preserve bit positions across a remap, since a grow also
// invalidates the dirty/clean distinction of every page (the header alias
// itself moved).
type dirtyPages struct {
	bits     *bitset.BitSet
	pageSize uint64
}

const defaultPageSize = 4096

func newDirtyPages(mappedSize int64) *dirtyPages {
	pageCount := uint(mappedSize/defaultPageSize) + 1
	return &dirtyPages{
		bits:     bitset.New(pageCount),
		pageSize: defaultPageSize,
	}
}

// markRange marks every page touched by the half-open byte range
// [start, end) as dirty.
func (d *dirtyPages) markRange(start, end int64) {
	if end <= start {
		return
	}
	firstPage := uint(start / int64(d.pageSize))
	lastPage := uint((end - 1) / int64(d.pageSize))
	for p := firstPage; p <= lastPage; p++ {
		d.bits.Set(p)
	}
}

func (d *dirtyPages) anyDirty() bool {
	return d.bits.Any()
}

func (d *dirtyPages) clear() {
	d.bits.ClearAll()
}
