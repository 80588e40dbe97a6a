package column

import (
	"bytes"
	"testing"
)

func u32le(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func TestChunkPushValuesFixedWidth(t *testing.T) {
	c := New(Type{Kind: KindUInt32})
	var buf []byte
	for _, v := range []uint32{1, 2, 3} {
		buf = append(buf, u32le(v)...)
	}
	if err := c.PushValues(buf); err != nil {
		t.Fatalf("PushValues: %v", err)
	}
	if c.Len() != 3 {
		t.Fatalf("want 3 rows, got %d", c.Len())
	}
	if c.Uint64At(1) != 2 {
		t.Fatalf("want row 1 == 2, got %d", c.Uint64At(1))
	}
}

func TestChunkPushStrings(t *testing.T) {
	c := New(Type{Kind: KindString})
	if err := c.PushStrings([][]byte{[]byte("hello"), []byte(""), []byte("world")}); err != nil {
		t.Fatalf("PushStrings: %v", err)
	}
	if c.Len() != 3 {
		t.Fatalf("want 3 rows, got %d", c.Len())
	}
	if !bytes.Equal(c.StringAt(0), []byte("hello")) {
		t.Fatalf("row 0 mismatch: %q", c.StringAt(0))
	}
	if !bytes.Equal(c.StringAt(1), []byte("")) {
		t.Fatalf("row 1 mismatch: %q", c.StringAt(1))
	}
	if !bytes.Equal(c.StringAt(2), []byte("world")) {
		t.Fatalf("row 2 mismatch: %q", c.StringAt(2))
	}
}

func TestChunkNullable(t *testing.T) {
	inner := Type{Kind: KindInt32}
	c := New(Type{Kind: KindNullable, Inner: &inner})
	var buf []byte
	for _, v := range []uint32{10, 20, 30} {
		buf = append(buf, u32le(v)...)
	}
	if err := c.PushValues(buf); err != nil {
		t.Fatalf("PushValues: %v", err)
	}
	if err := c.SetNull(1); err != nil {
		t.Fatalf("SetNull: %v", err)
	}
	if c.IsNull(0) || !c.IsNull(1) || c.IsNull(2) {
		t.Fatalf("unexpected null pattern: %v %v %v", c.IsNull(0), c.IsNull(1), c.IsNull(2))
	}
}

func TestChunkLowCardinality(t *testing.T) {
	inner := Type{Kind: KindString}
	c := New(Type{Kind: KindLowCardinality, Inner: &inner})
	for _, v := range []string{"a", "b", "a", "c", "b"} {
		if err := c.PushDictKey([]byte(v)); err != nil {
			t.Fatalf("PushDictKey: %v", err)
		}
	}
	if c.Len() != 5 {
		t.Fatalf("want 5 rows, got %d", c.Len())
	}
	if c.Dict.Len() != 3 {
		t.Fatalf("want 3 distinct dict entries, got %d", c.Dict.Len())
	}
	if c.DictKeys[0] != c.DictKeys[2] {
		t.Fatalf("expected rows 0 and 2 (both \"a\") to share a dict key")
	}
}

func TestChunkSliceFixedWidth(t *testing.T) {
	c := New(Type{Kind: KindUInt32})
	var buf []byte
	for _, v := range []uint32{1, 2, 3, 4, 5} {
		buf = append(buf, u32le(v)...)
	}
	if err := c.PushValues(buf); err != nil {
		t.Fatalf("PushValues: %v", err)
	}
	s, err := c.Slice(1, 4)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("want 3 rows, got %d", s.Len())
	}
	if s.Uint64At(0) != 2 || s.Uint64At(2) != 4 {
		t.Fatalf("slice values wrong: %d, %d", s.Uint64At(0), s.Uint64At(2))
	}
}

func TestChunkSliceString(t *testing.T) {
	c := New(Type{Kind: KindString})
	if err := c.PushStrings([][]byte{[]byte("aa"), []byte("bbb"), []byte("c"), []byte("dddd")}); err != nil {
		t.Fatalf("PushStrings: %v", err)
	}
	s, err := c.Slice(1, 3)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("want 2 rows, got %d", s.Len())
	}
	if !bytes.Equal(s.StringAt(0), []byte("bbb")) || !bytes.Equal(s.StringAt(1), []byte("c")) {
		t.Fatalf("slice string values wrong: %q, %q", s.StringAt(0), s.StringAt(1))
	}
}

func TestChunkGatherFixedWidth(t *testing.T) {
	c := New(Type{Kind: KindUInt32})
	var buf []byte
	for _, v := range []uint32{10, 20, 30, 40} {
		buf = append(buf, u32le(v)...)
	}
	if err := c.PushValues(buf); err != nil {
		t.Fatalf("PushValues: %v", err)
	}
	g, err := c.Gather([]int{3, 0, 0})
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if g.Len() != 3 {
		t.Fatalf("want 3 rows, got %d", g.Len())
	}
	if g.Uint64At(0) != 40 || g.Uint64At(1) != 10 || g.Uint64At(2) != 10 {
		t.Fatalf("gather values wrong: %d %d %d", g.Uint64At(0), g.Uint64At(1), g.Uint64At(2))
	}
}

func TestChunkGatherString(t *testing.T) {
	c := New(Type{Kind: KindString})
	if err := c.PushStrings([][]byte{[]byte("aa"), []byte("bbb"), []byte("c")}); err != nil {
		t.Fatalf("PushStrings: %v", err)
	}
	g, err := c.Gather([]int{2, 0})
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if !bytes.Equal(g.StringAt(0), []byte("c")) || !bytes.Equal(g.StringAt(1), []byte("aa")) {
		t.Fatalf("gather string values wrong: %q, %q", g.StringAt(0), g.StringAt(1))
	}
}

func TestChunkSliceOutOfRange(t *testing.T) {
	c := New(Type{Kind: KindUInt8})
	if err := c.PushValues([]byte{1, 2, 3}); err != nil {
		t.Fatalf("PushValues: %v", err)
	}
	if _, err := c.Slice(2, 5); err == nil {
		t.Fatalf("expected error slicing past end")
	}
}
