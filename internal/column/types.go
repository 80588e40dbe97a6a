// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package column implements the typed, contiguous in-memory representation
// of one column's cells for a row range (spec §3, §4.2): a closed set of
// logical types realized as a tagged variant (Type) plus the Chunk
// that carries the actual bytes, offsets, null bitmap, or dictionary.
package column

import (
	"fmt"
	"strconv"
	"strings"

	"basedb/internal/baseerr"
)

// Kind enumerates the logical types spec §3 defines. It is a closed set by
// design (the "dynamic dispatch over any column" redesign note in spec §9):
// every operation on a Type switches over Kind once; a Kind a switch does
// not list falls to its default case (ElementSize returns 0, Name returns
// "Unknown").
type Kind int

const (
	KindInt8 Kind = iota
	KindInt16
	KindInt32
	KindInt64
	KindUInt8
	KindUInt16
	KindUInt32
	KindUInt64
	KindFloat32
	KindFloat64
	KindFixedString
	KindString
	KindDate
	KindDateTime
	KindDateTime64
	KindDecimal
	KindIPv4
	KindIPv6
	KindUUID
	KindEnum8
	KindEnum16
	KindNullable
	KindLowCardinality
	KindArray
)

// Type is the tagged variant over the closed logical type set. Only the
// fields relevant to Kind are meaningful; zero otherwise.
type Type struct {
	Kind Kind

	FixedStringLen int // FixedString: L, 1..255

	DecimalPrecision int // Decimal: P, 1..38
	DecimalScale     int // Decimal: S, 0..P

	DateTime64Scale int    // DateTime64: 0..9
	Timezone        string // DateTime/DateTime64: optional IANA timezone name

	EnumNames  []string // Enum8/Enum16, index-aligned with EnumValues
	EnumValues []int32

	Inner *Type // Nullable(T), LowCardinality(T), Array(T)
}

// ElementSize returns the fixed per-row byte width of t, or 0 if t is
// variable-width (String, Array) or a wrapper type whose size depends on
// the inner type (Nullable, LowCardinality).
func (t Type) ElementSize() int {
	switch t.Kind {
	case KindInt8, KindUInt8, KindEnum8:
		return 1
	case KindInt16, KindUInt16, KindEnum16, KindDate:
		return 2
	case KindInt32, KindUInt32, KindFloat32, KindDateTime, KindIPv4:
		return 4
	case KindInt64, KindUInt64, KindFloat64, KindDateTime64:
		return 8
	case KindIPv6, KindUUID:
		return 16
	case KindFixedString:
		return t.FixedStringLen
	case KindDecimal:
		switch {
		case t.DecimalPrecision <= 9:
			return 4
		case t.DecimalPrecision <= 18:
			return 8
		default:
			return 16
		}
	default:
		return 0
	}
}

// IsFixedWidth reports whether t has a constant per-row byte width.
func (t Type) IsFixedWidth() bool {
	switch t.Kind {
	case KindString, KindArray:
		return false
	case KindNullable, KindLowCardinality:
		return t.Inner != nil && t.Inner.IsFixedWidth()
	default:
		return true
	}
}

// Name renders t in the wire/SQL type-string form used by spec §4.3's
// per-column type string (e.g. "UInt32", "Nullable(String)",
// "FixedString(16)", "Decimal(18,4)").
func (t Type) Name() string {
	switch t.Kind {
	case KindInt8:
		return "Int8"
	case KindInt16:
		return "Int16"
	case KindInt32:
		return "Int32"
	case KindInt64:
		return "Int64"
	case KindUInt8:
		return "UInt8"
	case KindUInt16:
		return "UInt16"
	case KindUInt32:
		return "UInt32"
	case KindUInt64:
		return "UInt64"
	case KindFloat32:
		return "Float32"
	case KindFloat64:
		return "Float64"
	case KindFixedString:
		return fmt.Sprintf("FixedString(%d)", t.FixedStringLen)
	case KindString:
		return "String"
	case KindDate:
		return "Date"
	case KindDateTime:
		if t.Timezone != "" {
			return fmt.Sprintf("DateTime(%q)", t.Timezone)
		}
		return "DateTime"
	case KindDateTime64:
		if t.Timezone != "" {
			return fmt.Sprintf("DateTime64(%d, %q)", t.DateTime64Scale, t.Timezone)
		}
		return fmt.Sprintf("DateTime64(%d)", t.DateTime64Scale)
	case KindDecimal:
		return fmt.Sprintf("Decimal(%d,%d)", t.DecimalPrecision, t.DecimalScale)
	case KindIPv4:
		return "IPv4"
	case KindIPv6:
		return "IPv6"
	case KindUUID:
		return "UUID"
	case KindEnum8:
		return "Enum8" + enumSuffix(t)
	case KindEnum16:
		return "Enum16" + enumSuffix(t)
	case KindNullable:
		return "Nullable(" + t.Inner.Name() + ")"
	case KindLowCardinality:
		return "LowCardinality(" + t.Inner.Name() + ")"
	case KindArray:
		return "Array(" + t.Inner.Name() + ")"
	default:
		return "Unknown"
	}
}

func enumSuffix(t Type) string {
	s := "("
	for i, n := range t.EnumNames {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%q = %d", n, t.EnumValues[i])
	}
	return s + ")"
}

// IsNumeric reports whether t (unwrapping Nullable) is an integer or float
// type eligible for the arithmetic aggregates in spec §4.8.
func (t Type) IsNumeric() bool {
	k := t.Kind
	if k == KindNullable {
		return t.Inner.IsNumeric()
	}
	switch k {
	case KindInt8, KindInt16, KindInt32, KindInt64,
		KindUInt8, KindUInt16, KindUInt32, KindUInt64,
		KindFloat32, KindFloat64:
		return true
	default:
		return false
	}
}

// IsSigned reports whether t is a signed integer type.
func (t Type) IsSigned() bool {
	switch t.Kind {
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return true
	default:
		return false
	}
}

// IsUnsigned reports whether t is an unsigned integer type.
func (t Type) IsUnsigned() bool {
	switch t.Kind {
	case KindUInt8, KindUInt16, KindUInt32, KindUInt64:
		return true
	default:
		return false
	}
}

var simpleTypeNames = map[string]Kind{
	"Int8": KindInt8, "Int16": KindInt16, "Int32": KindInt32, "Int64": KindInt64,
	"UInt8": KindUInt8, "UInt16": KindUInt16, "UInt32": KindUInt32, "UInt64": KindUInt64,
	"Float32": KindFloat32, "Float64": KindFloat64,
	"String": KindString, "Date": KindDate,
	"DateTime": KindDateTime, "IPv4": KindIPv4, "IPv6": KindIPv6, "UUID": KindUUID,
}

// ParseType parses the wire/SQL type-string form Name produces back into a
// Type. It is the inverse of Name, needed on the decode side of a Block's
// per-column type string (spec §4.3).
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	if kind, ok := simpleTypeNames[s]; ok {
		return Type{Kind: kind}, nil
	}
	switch {
	case strings.HasPrefix(s, "FixedString("):
		arg := unwrap(s, "FixedString(")
		n, err := strconv.Atoi(arg)
		if err != nil {
			return Type{}, baseerr.New(baseerr.SchemaMismatch, "bad FixedString length %q", arg)
		}
		return Type{Kind: KindFixedString, FixedStringLen: n}, nil
	case strings.HasPrefix(s, "Decimal("):
		parts := splitArgs(unwrap(s, "Decimal("))
		if len(parts) != 2 {
			return Type{}, baseerr.New(baseerr.SchemaMismatch, "bad Decimal args %q", s)
		}
		p, err1 := strconv.Atoi(parts[0])
		sc, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil {
			return Type{}, baseerr.New(baseerr.InvalidPrecisionOrScale, "bad Decimal args %q", s)
		}
		return Type{Kind: KindDecimal, DecimalPrecision: p, DecimalScale: sc}, nil
	case strings.HasPrefix(s, "DateTime64("):
		parts := splitArgs(unwrap(s, "DateTime64("))
		scale, err := strconv.Atoi(parts[0])
		if err != nil {
			return Type{}, baseerr.New(baseerr.SchemaMismatch, "bad DateTime64 scale %q", s)
		}
		t := Type{Kind: KindDateTime64, DateTime64Scale: scale}
		if len(parts) > 1 {
			t.Timezone = trimQuotes(parts[1])
		}
		return t, nil
	case strings.HasPrefix(s, "DateTime("):
		arg := unwrap(s, "DateTime(")
		return Type{Kind: KindDateTime, Timezone: trimQuotes(arg)}, nil
	case strings.HasPrefix(s, "Enum8(") || strings.HasPrefix(s, "Enum16("):
		kind := KindEnum8
		prefix := "Enum8("
		if strings.HasPrefix(s, "Enum16(") {
			kind = KindEnum16
			prefix = "Enum16("
		}
		t := Type{Kind: kind}
		inner := unwrap(s, prefix)
		if inner != "" {
			for _, part := range splitArgs(inner) {
				eq := strings.LastIndex(part, "=")
				if eq < 0 {
					return Type{}, baseerr.New(baseerr.EnumValueMismatch, "bad enum member %q", part)
				}
				name := trimQuotes(strings.TrimSpace(part[:eq]))
				v, err := strconv.Atoi(strings.TrimSpace(part[eq+1:]))
				if err != nil {
					return Type{}, baseerr.New(baseerr.EnumValueMismatch, "bad enum value %q", part)
				}
				t.EnumNames = append(t.EnumNames, name)
				t.EnumValues = append(t.EnumValues, int32(v))
			}
		}
		return t, nil
	case strings.HasPrefix(s, "Nullable("):
		inner, err := ParseType(unwrap(s, "Nullable("))
		if err != nil {
			return Type{}, err
		}
		return Type{Kind: KindNullable, Inner: &inner}, nil
	case strings.HasPrefix(s, "LowCardinality("):
		inner, err := ParseType(unwrap(s, "LowCardinality("))
		if err != nil {
			return Type{}, err
		}
		return Type{Kind: KindLowCardinality, Inner: &inner}, nil
	case strings.HasPrefix(s, "Array("):
		inner, err := ParseType(unwrap(s, "Array("))
		if err != nil {
			return Type{}, err
		}
		return Type{Kind: KindArray, Inner: &inner}, nil
	default:
		return Type{}, baseerr.New(baseerr.SchemaMismatch, "unrecognized type string %q", s)
	}
}

// unwrap strips prefix and a trailing ")" from s, assuming s starts with
// prefix and ends with the matching close paren of prefix's open paren.
func unwrap(s, prefix string) string {
	return strings.TrimSuffix(strings.TrimPrefix(s, prefix), ")")
}

func trimQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// splitArgs splits s on top-level commas, ignoring commas nested inside
// parentheses or double-quoted strings (needed for e.g. Enum8 member lists
// and nested Decimal/DateTime64 argument lists).
func splitArgs(s string) []string {
	var parts []string
	depth := 0
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inQuote = !inQuote
		case inQuote:
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	parts = append(parts, strings.TrimSpace(s[start:]))
	return parts
}
