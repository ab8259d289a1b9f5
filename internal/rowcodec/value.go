// Package rowcodec packs typed values into a fixed-width row buffer and
// unpacks them back out, per spec.md §4.2. Pack never allocates; Unpack
// allocates exactly one buffer per TEXT column.
package rowcodec

import "github.com/ristrettodb/ristretto-tablev2/internal/schema"

// Kind tags a Value's variant. It mirrors schema.Type for the scalar kinds
// and adds Null, which has no on-disk type tag of its own — it is encoded
// as a zeroed slot (spec.md §4.2, §9 "Null vs. zero ambiguity").
type Kind uint8

const (
	KindInteger Kind = iota
	KindReal
	KindText
	KindNull
)

// Value is the runtime tagged union packed into / unpacked from a row.
// Text values own their buffer; Integer, Real, and Null own nothing.
type Value struct {
	Kind Kind
	I    int64
	R    float64
	Text []byte
}

func Int(v int64) Value    { return Value{Kind: KindInteger, I: v} }
func Float(v float64) Value { return Value{Kind: KindReal, R: v} }
func Str(v []byte) Value   { return Value{Kind: KindText, Text: v} }
func Null() Value          { return Value{Kind: KindNull} }

// matchesColumn reports whether v's kind is legal for a column of type t.
// Null is legal against any column type (§4.2 "Null on non-text: leave the
// slot zeroed").
func (v Value) matchesColumn(t schema.Type) bool {
	if v.Kind == KindNull {
		return true
	}
	switch t {
	case schema.Integer:
		return v.Kind == KindInteger
	case schema.Real:
		return v.Kind == KindReal
	case schema.Text:
		return v.Kind == KindText
	default:
		return false
	}
}
