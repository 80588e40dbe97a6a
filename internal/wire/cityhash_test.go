package wire

import (
	"bytes"
	"testing"
)

func TestCityHash128Deterministic(t *testing.T) {
	inputs := [][]byte{
		nil,
		[]byte("a"),
		[]byte("hello, world"),
		bytes.Repeat([]byte("x"), 15),
		bytes.Repeat([]byte("x"), 16),
		bytes.Repeat([]byte("x"), 17),
		bytes.Repeat([]byte("base"), 40),     // 160 bytes: exercises the >=128 branch
		bytes.Repeat([]byte("columnar"), 20), // 160 bytes, different content
	}
	seen := map[[16]byte]bool{}
	for _, in := range inputs {
		h1 := CityHash128Bytes(in)
		h2 := CityHash128Bytes(append([]byte(nil), in...))
		if h1 != h2 {
			t.Fatalf("hash not deterministic for input of length %d", len(in))
		}
		seen[h1] = true
	}
	if len(seen) != len(inputs) {
		t.Fatalf("expected distinct hashes for distinct inputs, got %d distinct out of %d", len(seen), len(inputs))
	}
}
