// Package table implements RistrettoDB's Table V2: an append-only,
// memory-mapped, fixed-width-row table engine (spec.md §1-§7). It is the
// sole surface the rest of the system (the general SQL engine, the
// interactive shell, language bindings — all out of scope here) is meant
// to talk to.
package table

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ristrettodb/ristretto-tablev2/internal/mmapfile"
	"github.com/ristrettodb/ristretto-tablev2/internal/rowcodec"
	"github.com/ristrettodb/ristretto-tablev2/internal/schema"
)

// ABI constants (spec.md §6). SyncRowsLimit and SyncTimeLimit are the
// engine's built-in dual-trigger flush defaults; a caller (tablectl, via
// internal/config) may override them per handle with WithFlushPolicy.
const (
	MaxColumns    = schema.MaxColumns
	MaxNameLength = schema.MaxNameLength
	HeaderSize    = mmapfile.HeaderSize
	InitialSize   = mmapfile.InitialSize
	GrowthFactor  = mmapfile.GrowthFactor
	SyncRowsLimit = 512
	SyncTimeLimit = 100 * time.Millisecond
	fileSuffix    = ".rdb"
)

// Value and Kind are the row codec's tagged union; re-exported so
// collaborators only need to import the table package.
type Value = rowcodec.Value
type Kind = rowcodec.Kind

const (
	KindInteger = rowcodec.KindInteger
	KindReal    = rowcodec.KindReal
	KindText    = rowcodec.KindText
	KindNull    = rowcodec.KindNull
)

func Int(v int64) Value     { return rowcodec.Int(v) }
func Float(v float64) Value { return rowcodec.Float(v) }
func Str(v []byte) Value    { return rowcodec.Str(v) }
func Null() Value           { return rowcodec.Null() }

// ColumnDescriptor describes one column of a table's compiled schema.
type ColumnDescriptor struct {
	Name   string
	Type   schema.Type
	Length uint8
	Offset uint16
}

// Table is a handle to one open Table V2 file. It is not safe for
// concurrent use by more than one goroutine (spec.md §5): append, select,
// and flush on a single Table must be serialized by the caller.
type Table struct {
	mf          *mmapfile.File
	path        string
	columns     []schema.Column
	rowStride   uint32
	writeOffset int64

	syncRows     int
	syncInterval time.Duration

	rowsSinceFlush int
	lastFlush      time.Time

	// closed refuses further Append/Flush/Select calls; released tracks
	// whether Close has actually torn down the underlying mmapfile.File.
	// A failed Grow sets closed without releasing anything, so Close must
	// key off released, not closed, or the fd leaks (see mmapfile.File).
	closed   bool
	released bool
}

// Path builds the on-disk path for a table named name under storageRoot.
func Path(storageRoot, name string) string {
	return filepath.Join(storageRoot, name+fileSuffix)
}

// Option configures a Table at Create/Open time.
type Option func(*Table)

// WithFlushPolicy overrides the dual-trigger flush policy's row count and
// time interval for this handle. rows <= 0 or interval <= 0 leave the
// corresponding trigger at its built-in default (SyncRowsLimit /
// SyncTimeLimit); this is how internal/config's [flush] table reaches the
// engine, since the engine itself never reads a config file directly.
func WithFlushPolicy(rows int, interval time.Duration) Option {
	return func(t *Table) {
		if rows > 0 {
			t.syncRows = rows
		}
		if interval > 0 {
			t.syncInterval = interval
		}
	}
}

func newTable(mf *mmapfile.File, path string, columns []schema.Column, rowStride uint32, writeOffset int64, opts []Option) *Table {
	t := &Table{
		mf:           mf,
		path:         path,
		columns:      columns,
		rowStride:    rowStride,
		writeOffset:  writeOffset,
		syncRows:     SyncRowsLimit,
		syncInterval: SyncTimeLimit,
		lastFlush:    time.Now(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Create compiles schemaSQL and creates a new table file at
// <storageRoot>/<name>.rdb. If the schema is rejected, no file is created
// (spec.md §4.8).
func Create(storageRoot, name, schemaSQL string, opts ...Option) (*Table, error) {
	compiled, err := schema.Compile(schemaSQL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaInvalid, err)
	}

	header := &mmapfile.Header{
		Magic:       mmapfile.Magic,
		Version:     mmapfile.Version,
		RowStride:   compiled.RowStride,
		ColumnCount: uint32(len(compiled.Columns)),
		Columns:     compiled.Columns,
	}

	mf, err := mmapfile.Create(Path(storageRoot, name), header)
	if err != nil {
		return nil, err
	}

	return newTable(mf, Path(storageRoot, name), compiled.Columns, compiled.RowStride, mmapfile.HeaderSize, opts), nil
}

// Open validates and opens an existing table file.
func Open(storageRoot, name string, opts ...Option) (*Table, error) {
	path := Path(storageRoot, name)
	mf, header, err := mmapfile.Open(path)
	if err != nil {
		return nil, err
	}

	writeOffset := mmapfile.HeaderSize + int64(header.RowCount)*int64(header.RowStride)
	return newTable(mf, path, header.Columns, header.RowStride, writeOffset, opts), nil
}

// RowCount returns the table's live row count, read from the header
// resident in the mapped region — it is always exactly up to date with
// the last successful Append (spec.md §3 invariant).
func (t *Table) RowCount() uint64 {
	return binary.LittleEndian.Uint64(t.mf.Data()[16:24])
}

func (t *Table) setRowCount(n uint64) {
	binary.LittleEndian.PutUint64(t.mf.Data()[16:24], n)
}

// ColumnDesc returns the descriptor for the named column, if present.
func (t *Table) ColumnDesc(name string) (ColumnDescriptor, bool) {
	for _, c := range t.columns {
		if c.Name == name {
			return ColumnDescriptor{Name: c.Name, Type: c.Type, Length: c.Length, Offset: c.Offset}, true
		}
	}
	return ColumnDescriptor{}, false
}

// ColumnCount returns the number of columns in the table's schema.
func (t *Table) ColumnCount() int { return len(t.columns) }

// ColumnAt returns the descriptor for the column at the given storage
// position.
func (t *Table) ColumnAt(i int) ColumnDescriptor {
	c := t.columns[i]
	return ColumnDescriptor{Name: c.Name, Type: c.Type, Length: c.Length, Offset: c.Offset}
}

// Append packs values into the next row slot, growing the mapping first
// if needed. On success the row is resident in the mapped region and the
// row count has incremented by exactly one. On failure — a type mismatch,
// a closed handle, or a failed grow — no counters change and no partial
// row is written (spec.md §4.4).
func (t *Table) Append(values []Value) error {
	if t.closed {
		return ErrHandleClosed
	}
	if len(values) != len(t.columns) {
		return fmt.Errorf("%w: got %d values, want %d", ErrTypeMismatch, len(values), len(t.columns))
	}

	if t.writeOffset+int64(t.rowStride) > t.mf.Size() {
		if err := t.mf.Grow(); err != nil {
			t.closed = true
			return err
		}
	}

	data := t.mf.Data()
	slot := data[t.writeOffset : t.writeOffset+int64(t.rowStride)]
	if err := rowcodec.Pack(t.columns, values, slot); err != nil {
		return fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}

	t.mf.MarkDirty(t.writeOffset, t.writeOffset+int64(t.rowStride))
	t.writeOffset += int64(t.rowStride)
	t.setRowCount(t.RowCount() + 1)
	t.rowsSinceFlush++

	if t.rowsSinceFlush >= t.syncRows || time.Since(t.lastFlush) >= t.syncInterval {
		// A failed triggered flush does not undo the append that just
		// succeeded; per spec.md §4.8 it only leaves the flush counters
		// unreset so the very next qualifying append retries it.
		_ = t.flush()
	}

	return nil
}

// Flush requests an asynchronous durability sync over the live prefix of
// the mapped region. It returns an error (and leaves the flush counters
// untouched) if the underlying msync call fails.
func (t *Table) Flush() error {
	if t.closed {
		return ErrHandleClosed
	}
	return t.flush()
}

func (t *Table) flush() error {
	if err := t.mf.Flush(t.writeOffset); err != nil {
		return err
	}
	t.rowsSinceFlush = 0
	t.lastFlush = time.Now()
	return nil
}

// Select scans every live row in storage order, invoking visit with each
// row's unpacked values. The predicate string is accepted for interface
// parity with the rest of the system's query surface but is never
// evaluated here — Table V2 has no expression engine (spec.md §4.6 /
// Non-goals); callers filter inside visit. Returning an error from visit
// stops the scan and Select returns that error.
//
// The C-style cursor/context handle of the original interface is dropped:
// visit is an ordinary Go closure, which already captures whatever state
// a cursor would have held.
func (t *Table) Select(predicate string, visit func(row []Value) error) error {
	if t.closed {
		return ErrHandleClosed
	}

	data := t.mf.Data()
	n := t.RowCount()
	offset := int64(mmapfile.HeaderSize)
	for i := uint64(0); i < n; i++ {
		slot := data[offset : offset+int64(t.rowStride)]
		row, err := rowcodec.Unpack(t.columns, slot)
		if err != nil {
			return err
		}
		err = visit(row)
		rowcodec.Release(row)
		if err != nil {
			return err
		}
		offset += int64(t.rowStride)
	}
	return nil
}

// Close flushes, unmaps, and releases the table file. Close is
// idempotent, and it still tears down the underlying file even if a
// prior failed Append (via a failed Grow) already marked the handle
// closed to new operations.
func (t *Table) Close() error {
	if t.released {
		return nil
	}
	t.closed = true
	t.released = true
	return t.mf.Close(t.writeOffset)
}
