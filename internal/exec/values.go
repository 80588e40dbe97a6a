// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package exec

import (
	"bytes"
	"encoding/binary"
	"math"

	"basedb/internal/baseerr"
	"basedb/internal/column"
	"basedb/internal/parsedtree"
)

// valueKind tags which field of a value is meaningful.
type valueKind int

const (
	valInt valueKind = iota
	valUint
	valFloat
	valString
	valNull
)

// value is a single scalar evaluated from either a column chunk or a
// literal during WHERE/aggregate evaluation. It is the executor's
// equivalent of spec §4.8's "scalar expression" result.
type value struct {
	kind valueKind
	i    int64
	u    uint64
	f    float64
	s    []byte
}

func floatAt(chunk *column.Chunk, i int) float64 {
	b := chunk.ValueAt(i)
	switch len(b) {
	case 4:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case 8:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	default:
		panic("exec: floatAt on unsupported element width")
	}
}

// columnValueAt reads row i of chunk (typed typ) into a value. Supported
// kinds are every numeric Int/UInt/Float type, Date/DateTime/DateTime64,
// String and FixedString. Every other kind, including fixed-width kinds
// internal/colfile does store (Decimal, IPv4/IPv6, UUID, Enum8/16,
// Nullable or LowCardinality over a fixed-width type), fails with
// UnsupportedFunctionality.
func columnValueAt(typ column.Type, chunk *column.Chunk, i int) (value, error) {
	switch typ.Kind {
	case column.KindString, column.KindFixedString:
		return value{kind: valString, s: chunk.StringAt(i)}, nil
	case column.KindFloat32, column.KindFloat64:
		return value{kind: valFloat, f: floatAt(chunk, i)}, nil
	case column.KindDateTime64:
		return value{kind: valInt, i: chunk.Int64At(i)}, nil
	case column.KindDate, column.KindDateTime:
		return value{kind: valUint, u: chunk.Uint64At(i)}, nil
	default:
		if typ.IsSigned() {
			return value{kind: valInt, i: chunk.Int64At(i)}, nil
		}
		if typ.IsUnsigned() {
			return value{kind: valUint, u: chunk.Uint64At(i)}, nil
		}
		return value{}, baseerr.New(baseerr.UnsupportedFunctionality, "exec: %s columns are not supported in expressions", typ.Name())
	}
}

func literalValue(e parsedtree.Expr) value {
	switch e.LitKind {
	case parsedtree.LiteralInt:
		return value{kind: valInt, i: e.IntVal}
	case parsedtree.LiteralFloat:
		return value{kind: valFloat, f: e.FltVal}
	case parsedtree.LiteralString:
		return value{kind: valString, s: []byte(e.StrVal)}
	default:
		return value{kind: valNull}
	}
}

// asFloat widens v to float64. Only valid for numeric kinds.
func (v value) asFloat() float64 {
	switch v.kind {
	case valInt:
		return float64(v.i)
	case valUint:
		return float64(v.u)
	case valFloat:
		return v.f
	default:
		return 0
	}
}

func (v value) isNumeric() bool {
	return v.kind == valInt || v.kind == valUint || v.kind == valFloat
}

// compareValues implements spec §4.8's comparison tie-break rule: mixed
// signedness widens to signed 64 when both fit, otherwise fails with a
// type-mismatch error; floats compare as float64; strings compare
// byte-wise; cross-kind (string vs numeric) comparisons are a type
// mismatch.
func compareValues(l, r value) (int, error) {
	if l.kind == valString || r.kind == valString {
		if l.kind != valString || r.kind != valString {
			return 0, baseerr.New(baseerr.UnsupportedValueConversion, "exec: cannot compare string and numeric values")
		}
		return bytes.Compare(l.s, r.s), nil
	}
	if l.kind == valFloat || r.kind == valFloat {
		lf, rf := l.asFloat(), r.asFloat()
		switch {
		case lf < rf:
			return -1, nil
		case lf > rf:
			return 1, nil
		default:
			return 0, nil
		}
	}
	if l.kind == valInt && r.kind == valInt {
		return cmpInt64(l.i, r.i), nil
	}
	if l.kind == valUint && r.kind == valUint {
		return cmpUint64(l.u, r.u), nil
	}
	// Mixed signed/unsigned: widen to signed 64 when both fit.
	var su, si uint64
	var iv int64
	if l.kind == valUint {
		su, iv = l.u, r.i
	} else {
		su, iv = r.u, l.i
	}
	if iv < 0 {
		// A negative signed value is always less than any unsigned value.
		if l.kind == valUint {
			return 1, nil
		}
		return -1, nil
	}
	if su > math.MaxInt64 {
		return 0, baseerr.New(baseerr.UnsupportedValueConversion, "exec: integers %d and %d do not both fit in a signed 64-bit comparison", su, iv)
	}
	si = uint64(iv)
	cmp := cmpUint64(su, si)
	if l.kind == valUint {
		return cmp, nil
	}
	return -cmp, nil
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
