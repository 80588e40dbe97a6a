package catalog

import (
	"bytes"
	"testing"
)

func TestPartKeyEncodingPreservesOrder(t *testing.T) {
	keys := []int64{-100, -1, 0, 1, 100, 1 << 40}
	var encoded [][]byte
	for _, k := range keys {
		encoded = append(encoded, partIndexKey(7, k))
	}
	for i := 1; i < len(encoded); i++ {
		if bytes.Compare(encoded[i-1], encoded[i]) >= 0 {
			t.Fatalf("expected strictly increasing key encoding at index %d", i)
		}
	}
	for _, k := range keys {
		if got := partKeyDecode(partKeyEncode(k)); got != k {
			t.Fatalf("round trip failed for %d, got %d", k, got)
		}
	}
}
