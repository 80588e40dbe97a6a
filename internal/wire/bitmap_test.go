package wire

import "testing"

func fill(b *Bitmap, bits ...int) *Bitmap {
	for _, i := range bits {
		b.Set(i, true)
	}
	return b
}

func TestBitmapAlgebra(t *testing.T) {
	const n = 37
	a := fill(NewBitmap(n), 0, 1, 5, 36)
	b := fill(NewBitmap(n), 1, 2, 6, 36)

	notB := b.Not()
	lhs := a.And(b).Or(a.And(notB))
	if !lhs.Equal(a) {
		t.Fatalf("(A & B) | (A & !B) != A")
	}
}

func TestBitmapEqualityIgnoresCapacity(t *testing.T) {
	a := NewBitmap(3)
	b := NewBitmap(3)
	a.Set(0, true)
	b.Set(0, true)
	// wide holds the same 3 logical bits as a, on a backing array taken
	// from the logical prefix of a much larger bitmap, so only the
	// capacity differs.
	big := NewBitmap(1000)
	big.Set(0, true)
	wide := &Bitmap{bits: big.Bytes()[:1], n: 3}
	if !a.Equal(b) {
		t.Fatalf("expected equal bitmaps")
	}
	if cap(wide.Bytes()) == cap(a.Bytes()) {
		t.Fatalf("expected different backing capacities for the test to be meaningful")
	}
	if !a.Equal(wide) {
		t.Fatalf("expected bitmaps differing only in capacity to be equal")
	}
}

func TestBitmapCount(t *testing.T) {
	b := fill(NewBitmap(10), 0, 3, 9)
	if b.Count() != 3 {
		t.Fatalf("want 3 set bits, got %d", b.Count())
	}
}
