// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package partexpr implements the partition-key expression spec §3 allows
// on a table's PARTITION BY clause: identity, modulus(col, N) (also
// spelled rem), and toYYYYMM(col). It is deliberately a closed set rather
// than a general expression evaluator, matching spec §3's "must be a
// simple unary function of one column".
package partexpr

import (
	"strconv"

	"basedb/internal/baseerr"
	"basedb/internal/caldate"
	"basedb/internal/parsedtree"
)

// Func tags which of the three allowed partition-key shapes an Expr is.
type Func int

const (
	FuncIdentity Func = iota
	FuncModulus
	FuncToYYYYMM
)

// Expr is a compiled partition-key expression: one source column plus the
// unary integer function applied to it.
type Expr struct {
	Func     Func
	Column   string
	Modulus  int64
}

// Compile resolves a parsedtree.Expr (the PARTITION BY clause's parsed
// form) into an Expr, failing with UnsupportedFunctionality if it is not
// one of the three shapes spec §3 allows.
func Compile(e parsedtree.Expr) (*Expr, error) {
	switch e.Kind {
	case parsedtree.ExprColumn:
		return &Expr{Func: FuncIdentity, Column: e.Column}, nil
	case parsedtree.ExprFuncCall:
		switch e.FuncName {
		case "rem", "modulus":
			if len(e.Args) != 2 || e.Args[0].Kind != parsedtree.ExprColumn || e.Args[1].Kind != parsedtree.ExprLiteral {
				return nil, baseerr.New(baseerr.UnsupportedFunctionality, "partexpr: %s() requires (column, integer literal)", e.FuncName)
			}
			return &Expr{Func: FuncModulus, Column: e.Args[0].Column, Modulus: e.Args[1].IntVal}, nil
		case "toYYYYMM":
			if len(e.Args) != 1 || e.Args[0].Kind != parsedtree.ExprColumn {
				return nil, baseerr.New(baseerr.UnsupportedFunctionality, "partexpr: toYYYYMM() requires a single column argument")
			}
			return &Expr{Func: FuncToYYYYMM, Column: e.Args[0].Column}, nil
		default:
			return nil, baseerr.New(baseerr.UnsupportedFunctionality, "partexpr: unsupported partition function %q", e.FuncName)
		}
	default:
		return nil, baseerr.New(baseerr.UnsupportedFunctionality, "partexpr: partition-key expression must be a column reference or a supported function call")
	}
}

// Eval evaluates e against v, the source column's integer value for one
// row (spec §3: "Partition-key expression result is a 64-bit unsigned
// integer"; toYYYYMM additionally needs the session timezone offset).
func (e *Expr) Eval(v int64, tzOffsetSeconds int32) int64 {
	switch e.Func {
	case FuncModulus:
		m := e.Modulus
		if m == 0 {
			return 0
		}
		r := v % m
		if r < 0 {
			r += m
		}
		return r
	case FuncToYYYYMM:
		return caldate.ToYYYYMM(v, tzOffsetSeconds)
	default:
		return v
	}
}

// Attrs are the catalog table-entity attribute keys this engine stores a
// compiled partition-key expression under, so CREATE TABLE's parsed
// PartitionExpr survives a catalog round-trip as plain strings (spec
// §4.4's Entity.Attrs is a flat string map).
const (
	AttrFunc    = "partition_func"
	AttrColumn  = "partition_column"
	AttrModulus = "partition_modulus"
)

// ToAttrs renders e into the catalog attribute strings Attrs names.
func (e *Expr) ToAttrs() map[string]string {
	attrs := map[string]string{AttrColumn: e.Column}
	switch e.Func {
	case FuncModulus:
		attrs[AttrFunc] = "modulus"
		attrs[AttrModulus] = strconv.FormatInt(e.Modulus, 10)
	case FuncToYYYYMM:
		attrs[AttrFunc] = "toYYYYMM"
	default:
		attrs[AttrFunc] = "identity"
	}
	return attrs
}

// FromAttrs is the inverse of ToAttrs, reconstructing an Expr from a
// table entity's stored Attrs.
func FromAttrs(attrs map[string]string) (*Expr, error) {
	col := attrs[AttrColumn]
	if col == "" {
		return nil, baseerr.New(baseerr.IntegrityMismatch, "partexpr: table entity missing partition column attribute")
	}
	switch attrs[AttrFunc] {
	case "modulus":
		m, err := strconv.ParseInt(attrs[AttrModulus], 10, 64)
		if err != nil {
			return nil, baseerr.New(baseerr.IntegrityMismatch, "partexpr: bad stored modulus %q", attrs[AttrModulus])
		}
		return &Expr{Func: FuncModulus, Column: col, Modulus: m}, nil
	case "toYYYYMM":
		return &Expr{Func: FuncToYYYYMM, Column: col}, nil
	default:
		return &Expr{Func: FuncIdentity, Column: col}, nil
	}
}
