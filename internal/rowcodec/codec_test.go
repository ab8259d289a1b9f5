package rowcodec

import (
	"bytes"
	"testing"

	"github.com/ristrettodb/ristretto-tablev2/internal/schema"
)

func mustCompile(t *testing.T, sql string) *schema.Table {
	t.Helper()
	tbl, err := schema.Compile(sql)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return tbl
}

func TestPackUnpackRoundTrip(t *testing.T) {
	tbl := mustCompile(t, "CREATE TABLE users (id INTEGER, name TEXT(32), age INTEGER)")
	buf := make([]byte, tbl.RowStride)

	in := []Value{Int(42), Str([]byte("alice")), Int(30)}
	if err := Pack(tbl.Columns, in, buf); err != nil {
		t.Fatalf("pack: %v", err)
	}

	out, err := Unpack(tbl.Columns, buf)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	defer Release(out)

	if out[0].I != 42 {
		t.Errorf("id = %d, want 42", out[0].I)
	}
	if !bytes.Equal(out[1].Text, []byte("alice")) {
		t.Errorf("name = %q, want %q", out[1].Text, "alice")
	}
	if out[2].I != 30 {
		t.Errorf("age = %d, want 30", out[2].I)
	}
}

func TestPackTextTruncation(t *testing.T) {
	tbl := mustCompile(t, "CREATE TABLE t (s TEXT(8))")
	buf := make([]byte, tbl.RowStride)

	if err := Pack(tbl.Columns, []Value{Str([]byte("abcdefghij"))}, buf); err != nil {
		t.Fatalf("pack: %v", err)
	}

	out, err := Unpack(tbl.Columns, buf)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if got, want := string(out[0].Text), "abcdefg"; got != want {
		t.Fatalf("text = %q, want %q", got, want)
	}
}

func TestPackRejectsTypeMismatch(t *testing.T) {
	tbl := mustCompile(t, "CREATE TABLE t (id INTEGER)")
	buf := make([]byte, tbl.RowStride)

	if err := Pack(tbl.Columns, []Value{Str([]byte("nope"))}, buf); err == nil {
		t.Fatal("expected type mismatch error")
	}
	for _, b := range buf {
		if b != 0 {
			t.Fatal("buffer must remain zeroed after a rejected pack")
		}
	}
}

func TestPackNullLeavesSlotZeroed(t *testing.T) {
	tbl := mustCompile(t, "CREATE TABLE t (id INTEGER, s TEXT(8))")
	buf := make([]byte, tbl.RowStride)

	if err := Pack(tbl.Columns, []Value{Null(), Null()}, buf); err != nil {
		t.Fatalf("pack: %v", err)
	}
	for _, b := range buf {
		if b != 0 {
			t.Fatal("null columns must leave their slots zeroed")
		}
	}

	out, err := Unpack(tbl.Columns, buf)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if out[0].I != 0 {
		t.Fatal("null integer reads back as zero (accepted ambiguity, spec.md §9)")
	}
}

func TestPackRejectsWrongValueCount(t *testing.T) {
	tbl := mustCompile(t, "CREATE TABLE t (id INTEGER, age INTEGER)")
	buf := make([]byte, tbl.RowStride)
	if err := Pack(tbl.Columns, []Value{Int(1)}, buf); err == nil {
		t.Fatal("expected error for mismatched value count")
	}
}
