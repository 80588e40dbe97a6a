package block

import (
	"bytes"
	"testing"

	"basedb/internal/column"
)

func u32le(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func buildSampleBlock(t *testing.T) *Block {
	t.Helper()
	b := New()

	ids := column.New(column.Type{Kind: column.KindUInt32})
	var buf []byte
	for _, v := range []uint32{1, 2, 3} {
		buf = append(buf, u32le(v)...)
	}
	if err := ids.PushValues(buf); err != nil {
		t.Fatalf("PushValues: %v", err)
	}
	if err := b.AddColumn("id", ids); err != nil {
		t.Fatalf("AddColumn id: %v", err)
	}

	names := column.New(column.Type{Kind: column.KindString})
	if err := names.PushStrings([][]byte{[]byte("alpha"), []byte("beta"), []byte("gamma")}); err != nil {
		t.Fatalf("PushStrings: %v", err)
	}
	if err := b.AddColumn("name", names); err != nil {
		t.Fatalf("AddColumn name: %v", err)
	}

	nullableType := column.Type{Kind: column.KindNullable, Inner: &column.Type{Kind: column.KindInt64}}
	scores := column.New(nullableType)
	var sbuf []byte
	for _, v := range []uint64{100, 200, 300} {
		var b8 [8]byte
		for i := 0; i < 8; i++ {
			b8[i] = byte(v >> (8 * i))
		}
		sbuf = append(sbuf, b8[:]...)
	}
	if err := scores.PushValues(sbuf); err != nil {
		t.Fatalf("PushValues scores: %v", err)
	}
	if err := scores.SetNull(1); err != nil {
		t.Fatalf("SetNull: %v", err)
	}
	if err := b.AddColumn("score", scores); err != nil {
		t.Fatalf("AddColumn score: %v", err)
	}

	tagType := column.Type{Kind: column.KindLowCardinality, Inner: &column.Type{Kind: column.KindString}}
	tags := column.New(tagType)
	for _, v := range []string{"x", "y", "x"} {
		if err := tags.PushDictKey([]byte(v)); err != nil {
			t.Fatalf("PushDictKey: %v", err)
		}
	}
	if err := b.AddColumn("tag", tags); err != nil {
		t.Fatalf("AddColumn tag: %v", err)
	}

	return b
}

func TestBlockRoundTrip(t *testing.T) {
	b := buildSampleBlock(t)

	encoded, err := Encode(b)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, remaining, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected no remainder, got %d bytes", len(remaining))
	}
	if decoded.NumRows() != 3 || decoded.NumColumns() != 4 {
		t.Fatalf("shape mismatch: %d rows, %d cols", decoded.NumRows(), decoded.NumColumns())
	}

	id := decoded.ColumnByName("id")
	if id.Uint64At(0) != 1 || id.Uint64At(2) != 3 {
		t.Fatalf("id column mismatch")
	}

	name := decoded.ColumnByName("name")
	if !bytes.Equal(name.StringAt(1), []byte("beta")) {
		t.Fatalf("name column mismatch: %q", name.StringAt(1))
	}

	score := decoded.ColumnByName("score")
	if score.IsNull(0) || !score.IsNull(1) || score.IsNull(2) {
		t.Fatalf("score null pattern mismatch")
	}

	tag := decoded.ColumnByName("tag")
	if tag.Dict.Len() != 2 {
		t.Fatalf("want 2 distinct tag values, got %d", tag.Dict.Len())
	}
	if tag.DictKeys[0] != tag.DictKeys[2] {
		t.Fatalf("expected rows 0 and 2 to share a dict key")
	}
}

func TestBlockAddColumnRowCountMismatch(t *testing.T) {
	b := New()
	a := column.New(column.Type{Kind: column.KindUInt8})
	if err := a.PushValues([]byte{1, 2, 3}); err != nil {
		t.Fatalf("PushValues: %v", err)
	}
	if err := b.AddColumn("a", a); err != nil {
		t.Fatalf("AddColumn a: %v", err)
	}
	c := column.New(column.Type{Kind: column.KindUInt8})
	if err := c.PushValues([]byte{1, 2}); err != nil {
		t.Fatalf("PushValues: %v", err)
	}
	if err := b.AddColumn("c", c); err == nil {
		t.Fatalf("expected row-count mismatch error")
	}
}

func TestBlockEmpty(t *testing.T) {
	b := New()
	if !b.Empty() {
		t.Fatalf("new block should be empty")
	}
	a := column.New(column.Type{Kind: column.KindUInt8})
	if err := a.PushValues([]byte{1}); err != nil {
		t.Fatalf("PushValues: %v", err)
	}
	if err := b.AddColumn("a", a); err != nil {
		t.Fatalf("AddColumn: %v", err)
	}
	if b.Empty() {
		t.Fatalf("block with rows should not be empty")
	}
}
