package mmapfile

import (
	"encoding/binary"
	"fmt"

	"github.com/ristrettodb/ristretto-tablev2/internal/schema"
)

// On-disk layout constants (spec.md §3, §6). The 256-byte header is split
// into a 40-byte fixed prefix, a fixed-size column descriptor array, and a
// reserved tail.
const (
	HeaderSize  = 256
	DescSize    = 16 // bytes per column descriptor
	FixedPrefix = 40 // bytes 0..39: magic, version, stride, row count, column count, reserved

	Version = 1
)

// MaxColumns is schema.MaxColumns, re-exported here because the header
// layout is what makes that number 13 rather than the ABI's nominal 14;
// see schema.MaxColumns and DESIGN.md.
const MaxColumns = schema.MaxColumns

// Magic is the fixed 8-byte file signature: ASCII "RSTRDB" followed by two
// NUL bytes.
var Magic = [8]byte{'R', 'S', 'T', 'R', 'D', 'B', 0, 0}

// header field offsets within the fixed prefix.
const (
	offMagic       = 0
	offVersion     = 8
	offRowStride   = 12
	offRowCount    = 16
	offColumnCount = 24
	offReserved    = 28
	// offReserved runs through byte 39 (12 bytes).
)

// column descriptor field offsets, relative to the start of the descriptor.
const (
	descOffName   = 0
	descOffType   = 8
	descOffLength = 9
	descOffOffset = 10
	descOffRsvd   = 12
)

// Header mirrors the first 256 bytes of a Table V2 file. It is decoded
// from / encoded to the mapped region; callers never retain a Header
// across a potential grow boundary (spec.md §9 "Pointer invalidation").
type Header struct {
	Magic       [8]byte
	Version     uint32
	RowStride   uint32
	RowCount    uint64
	ColumnCount uint32
	Columns     []schema.Column
}

// EncodeHeader serializes h into a freshly allocated 256-byte buffer.
func EncodeHeader(h *Header) ([]byte, error) {
	if len(h.Columns) > MaxColumns {
		return nil, fmt.Errorf("mmapfile: %d columns exceeds header capacity %d", len(h.Columns), MaxColumns)
	}

	buf := make([]byte, HeaderSize)
	copy(buf[offMagic:], h.Magic[:])
	binary.LittleEndian.PutUint32(buf[offVersion:], h.Version)
	binary.LittleEndian.PutUint32(buf[offRowStride:], h.RowStride)
	binary.LittleEndian.PutUint64(buf[offRowCount:], h.RowCount)
	binary.LittleEndian.PutUint32(buf[offColumnCount:], h.ColumnCount)

	for i, col := range h.Columns {
		d := buf[FixedPrefix+i*DescSize : FixedPrefix+(i+1)*DescSize]
		var nameBuf [8]byte
		copy(nameBuf[:], col.Name)
		copy(d[descOffName:], nameBuf[:])
		d[descOffType] = byte(col.Type)
		d[descOffLength] = col.Length
		binary.LittleEndian.PutUint16(d[descOffOffset:], col.Offset)
	}
	return buf, nil
}

// DecodeHeader parses a >=256-byte buffer into a Header. It validates the
// magic and version per spec.md §4.3 "Open"; it does not validate
// structural invariants (ascending offsets etc.) — callers that need that
// should re-run schema.Compile against the recovered column list instead.
func DecodeHeader(buf []byte) (*Header, error) {
	if len(buf) < HeaderSize {
		return nil, fmt.Errorf("mmapfile: header buffer too small: %d bytes", len(buf))
	}

	var h Header
	copy(h.Magic[:], buf[offMagic:offMagic+8])
	if h.Magic != Magic {
		return nil, fmt.Errorf("mmapfile: %w: bad magic", ErrFormatInvalid)
	}

	h.Version = binary.LittleEndian.Uint32(buf[offVersion:])
	if h.Version != Version {
		return nil, fmt.Errorf("mmapfile: %w: version %d", ErrFormatInvalid, h.Version)
	}

	h.RowStride = binary.LittleEndian.Uint32(buf[offRowStride:])
	h.RowCount = binary.LittleEndian.Uint64(buf[offRowCount:])
	h.ColumnCount = binary.LittleEndian.Uint32(buf[offColumnCount:])

	if h.ColumnCount < 1 || h.ColumnCount > MaxColumns {
		return nil, fmt.Errorf("mmapfile: %w: column count %d", ErrFormatInvalid, h.ColumnCount)
	}

	h.Columns = make([]schema.Column, h.ColumnCount)
	for i := range h.Columns {
		d := buf[FixedPrefix+i*DescSize : FixedPrefix+(i+1)*DescSize]
		nameEnd := 0
		for nameEnd < 8 && d[descOffName+nameEnd] != 0 {
			nameEnd++
		}
		h.Columns[i] = schema.Column{
			Name:   string(d[descOffName : descOffName+nameEnd]),
			Type:   schema.Type(d[descOffType]),
			Length: d[descOffLength],
			Offset: binary.LittleEndian.Uint16(d[descOffOffset:]),
		}
	}
	return &h, nil
}
