package rowcodec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ristrettodb/ristretto-tablev2/internal/schema"
)

// Pack writes values into buf, which must be exactly rowStride bytes (the
// caller owns buf; Pack never allocates). It returns an error if the
// number of values doesn't match the column count, or any value's kind
// disagrees with its column's declared type — in either case buf is left
// exactly as it was and nothing has been written, matching the append engine's
// "no partial row" guarantee (spec.md §4.4).
func Pack(cols []schema.Column, values []Value, buf []byte) error {
	if len(values) != len(cols) {
		return fmt.Errorf("rowcodec: got %d values, want %d", len(values), len(cols))
	}
	for i := range cols {
		if !values[i].matchesColumn(cols[i].Type) {
			return fmt.Errorf("rowcodec: column %q: value kind %d does not match type %s",
				cols[i].Name, values[i].Kind, cols[i].Type)
		}
	}

	for i := range buf {
		buf[i] = 0
	}

	for i, col := range cols {
		slot := buf[col.Offset : col.Offset+uint16(col.Length)]
		v := values[i]
		if v.Kind == KindNull {
			continue // slot stays zeroed
		}
		switch col.Type {
		case schema.Integer:
			binary.LittleEndian.PutUint64(slot, uint64(v.I))
		case schema.Real:
			binary.LittleEndian.PutUint64(slot, math.Float64bits(v.R))
		case schema.Text:
			n := len(v.Text)
			max := int(col.Length) - 1 // last byte reserved for NUL
			if n > max {
				n = max
			}
			copy(slot[:n], v.Text[:n])
			slot[n] = 0
		}
	}
	return nil
}

// Unpack reads a row buffer (exactly rowStride bytes) into one Value per
// column. Each TEXT column allocates a fresh, NUL-terminated buffer that
// the caller owns and must discard (e.g. via Release) when done.
func Unpack(cols []schema.Column, buf []byte) ([]Value, error) {
	out := make([]Value, len(cols))
	for i, col := range cols {
		slot := buf[col.Offset : col.Offset+uint16(col.Length)]
		switch col.Type {
		case schema.Integer:
			out[i] = Int(int64(binary.LittleEndian.Uint64(slot)))
		case schema.Real:
			out[i] = Float(math.Float64frombits(binary.LittleEndian.Uint64(slot)))
		case schema.Text:
			n := 0
			for n < len(slot) && slot[n] != 0 {
				n++
			}
			text := make([]byte, n+1)
			copy(text, slot[:n])
			text[n] = 0
			out[i] = Str(text[:n])
		default:
			return nil, fmt.Errorf("rowcodec: column %q: unknown on-disk type %d", col.Name, col.Type)
		}
	}
	return out, nil
}

// Release discards the owned buffers in values (the Text buffers produced
// by Unpack). Integer, Real, and Null values own nothing and are no-ops.
func Release(values []Value) {
	for i := range values {
		if values[i].Kind == KindText {
			values[i].Text = nil
		}
	}
}
