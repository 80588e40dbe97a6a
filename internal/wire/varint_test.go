package wire

import (
	"bufio"
	"bytes"
	"testing"
)

func TestVarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 300, 1 << 20, 1 << 40, ^uint64(0)}
	for _, v := range values {
		buf := PutUvarint(nil, v)
		if len(buf) != UvarintSize(v) {
			t.Fatalf("UvarintSize(%d) = %d, encoded length %d", v, UvarintSize(v), len(buf))
		}
		got, err := ReadUvarint(bufio.NewReader(bytes.NewReader(buf)))
		if err != nil {
			t.Fatalf("decode(%d): %v", v, err)
		}
		if got != v {
			t.Fatalf("round trip mismatch: want %d got %d", v, got)
		}
	}
}

func TestVarintRejectsEleventhByte(t *testing.T) {
	// 10 bytes, all with the continuation bit set: invalid.
	buf := bytes.Repeat([]byte{0x80}, 10)
	_, err := ReadUvarint(bufio.NewReader(bytes.NewReader(buf)))
	if err == nil {
		t.Fatalf("expected error decoding an unterminated 10-byte varint")
	}
}
