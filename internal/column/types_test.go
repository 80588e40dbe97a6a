package column

import "testing"

func TestTypeName(t *testing.T) {
	cases := []struct {
		t    Type
		want string
	}{
		{Type{Kind: KindUInt32}, "UInt32"},
		{Type{Kind: KindFixedString, FixedStringLen: 16}, "FixedString(16)"},
		{Type{Kind: KindDecimal, DecimalPrecision: 18, DecimalScale: 4}, "Decimal(18,4)"},
		{Type{Kind: KindNullable, Inner: &Type{Kind: KindString}}, "Nullable(String)"},
		{Type{Kind: KindLowCardinality, Inner: &Type{Kind: KindString}}, "LowCardinality(String)"},
	}
	for _, c := range cases {
		if got := c.t.Name(); got != c.want {
			t.Errorf("Name() = %q, want %q", got, c.want)
		}
	}
}

func TestTypeElementSize(t *testing.T) {
	if (Type{Kind: KindUInt64}).ElementSize() != 8 {
		t.Fatalf("UInt64 should be 8 bytes")
	}
	if (Type{Kind: KindDecimal, DecimalPrecision: 38}).ElementSize() != 16 {
		t.Fatalf("Decimal(38) should be 16 bytes")
	}
	if (Type{Kind: KindString}).ElementSize() != 0 {
		t.Fatalf("String should report 0 (variable width)")
	}
}

func TestTypeIsFixedWidth(t *testing.T) {
	if (Type{Kind: KindString}).IsFixedWidth() {
		t.Fatalf("String must not be fixed width")
	}
	nullableString := Type{Kind: KindNullable, Inner: &Type{Kind: KindString}}
	if nullableString.IsFixedWidth() {
		t.Fatalf("Nullable(String) must not be fixed width")
	}
	nullableInt := Type{Kind: KindNullable, Inner: &Type{Kind: KindInt32}}
	if !nullableInt.IsFixedWidth() {
		t.Fatalf("Nullable(Int32) must be fixed width")
	}
}

func TestParseTypeRoundTrip(t *testing.T) {
	cases := []Type{
		{Kind: KindUInt32},
		{Kind: KindFixedString, FixedStringLen: 16},
		{Kind: KindDecimal, DecimalPrecision: 18, DecimalScale: 4},
		{Kind: KindDateTime64, DateTime64Scale: 3, Timezone: "UTC"},
		{Kind: KindEnum8, EnumNames: []string{"a", "b"}, EnumValues: []int32{0, 1}},
		{Kind: KindNullable, Inner: &Type{Kind: KindString}},
		{Kind: KindLowCardinality, Inner: &Type{Kind: KindString}},
		{Kind: KindNullable, Inner: &Type{Kind: KindDecimal, DecimalPrecision: 9, DecimalScale: 2}},
	}
	for _, want := range cases {
		s := want.Name()
		got, err := ParseType(s)
		if err != nil {
			t.Fatalf("ParseType(%q): %v", s, err)
		}
		if got.Name() != s {
			t.Fatalf("ParseType(%q).Name() = %q", s, got.Name())
		}
	}
}

func TestTypeIsNumeric(t *testing.T) {
	if !(Type{Kind: KindFloat64}).IsNumeric() {
		t.Fatalf("Float64 should be numeric")
	}
	if (Type{Kind: KindString}).IsNumeric() {
		t.Fatalf("String should not be numeric")
	}
	nullableNum := Type{Kind: KindNullable, Inner: &Type{Kind: KindInt64}}
	if !nullableNum.IsNumeric() {
		t.Fatalf("Nullable(Int64) should be numeric")
	}
}
