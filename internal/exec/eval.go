// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package exec

import (
	"basedb/internal/baseerr"
	"basedb/internal/column"
	"basedb/internal/engine"
	"basedb/internal/parsedtree"
)

// rowCursor is the per-row evaluation context: one materialized chunk per
// required column for the partition currently being scanned, plus the
// table schema to resolve each column's type.
type rowCursor struct {
	table  *engine.TableMeta
	chunks map[string]*column.Chunk
	row    int
}

func (c *rowCursor) columnValue(name string) (value, error) {
	cm := c.table.ColumnByName(name)
	if cm == nil {
		return value{}, baseerr.New(baseerr.ColumnNotExist, "exec: unknown column %q", name)
	}
	chunk, ok := c.chunks[name]
	if !ok {
		return value{}, baseerr.New(baseerr.Generic, "exec: column %q was not materialized for this scan", name)
	}
	return columnValueAt(cm.Type, chunk, c.row)
}

// evalScalar evaluates a scalar expression (column reference, literal, or
// arithmetic) at the cursor's current row.
func evalScalar(e parsedtree.Expr, c *rowCursor) (value, error) {
	switch e.Kind {
	case parsedtree.ExprColumn:
		return c.columnValue(e.Column)
	case parsedtree.ExprLiteral:
		return literalValue(e), nil
	case parsedtree.ExprUnaryOp:
		v, err := evalScalar(*e.Left, c)
		if err != nil {
			return value{}, err
		}
		if e.Op == "-" {
			switch v.kind {
			case valInt:
				return value{kind: valInt, i: -v.i}, nil
			case valUint:
				return value{kind: valInt, i: -int64(v.u)}, nil
			case valFloat:
				return value{kind: valFloat, f: -v.f}, nil
			}
		}
		return value{}, baseerr.New(baseerr.UnsupportedFunctionality, "exec: unsupported unary operator %q", e.Op)
	case parsedtree.ExprBinaryOp:
		return evalArith(e, c)
	default:
		return value{}, baseerr.New(baseerr.UnsupportedFunctionality, "exec: unsupported expression in this context")
	}
}

func evalArith(e parsedtree.Expr, c *rowCursor) (value, error) {
	l, err := evalScalar(*e.Left, c)
	if err != nil {
		return value{}, err
	}
	r, err := evalScalar(*e.Right, c)
	if err != nil {
		return value{}, err
	}
	if !l.isNumeric() || !r.isNumeric() {
		return value{}, baseerr.New(baseerr.UnsupportedValueConversion, "exec: arithmetic requires numeric operands")
	}
	useFloat := l.kind == valFloat || r.kind == valFloat
	if useFloat {
		lf, rf := l.asFloat(), r.asFloat()
		switch e.Op {
		case "+":
			return value{kind: valFloat, f: lf + rf}, nil
		case "-":
			return value{kind: valFloat, f: lf - rf}, nil
		case "*":
			return value{kind: valFloat, f: lf * rf}, nil
		case "/":
			if rf == 0 {
				return value{}, baseerr.New(baseerr.DivisionByZero, "exec: division by zero")
			}
			return value{kind: valFloat, f: lf / rf}, nil
		}
	}
	// Integer arithmetic: widen to signed 64 (spec §4.8's sum widening rule
	// extends naturally to binary arithmetic here).
	asInt := func(v value) int64 {
		if v.kind == valUint {
			return int64(v.u)
		}
		return v.i
	}
	li, ri := asInt(l), asInt(r)
	switch e.Op {
	case "+":
		return value{kind: valInt, i: li + ri}, nil
	case "-":
		return value{kind: valInt, i: li - ri}, nil
	case "*":
		return value{kind: valInt, i: li * ri}, nil
	case "/":
		if ri == 0 {
			return value{}, baseerr.New(baseerr.DivisionByZero, "exec: division by zero")
		}
		return value{kind: valInt, i: li / ri}, nil
	case "%":
		if ri == 0 {
			return value{}, baseerr.New(baseerr.DivisionByZero, "exec: division by zero")
		}
		return value{kind: valInt, i: li % ri}, nil
	default:
		return value{}, baseerr.New(baseerr.UnsupportedFunctionality, "exec: unsupported operator %q", e.Op)
	}
}

var cmpOps = map[string]bool{"=": true, "!=": true, "<>": true, "<": true, "<=": true, ">": true, ">=": true}

// evalBool evaluates a WHERE predicate at the cursor's current row.
func evalBool(e parsedtree.Expr, c *rowCursor) (bool, error) {
	if e.Kind == parsedtree.ExprBinaryOp {
		switch e.Op {
		case "AND":
			l, err := evalBool(*e.Left, c)
			if err != nil || !l {
				return false, err
			}
			return evalBool(*e.Right, c)
		case "OR":
			l, err := evalBool(*e.Left, c)
			if err != nil {
				return false, err
			}
			if l {
				return true, nil
			}
			return evalBool(*e.Right, c)
		default:
			if cmpOps[e.Op] {
				l, err := evalScalar(*e.Left, c)
				if err != nil {
					return false, err
				}
				r, err := evalScalar(*e.Right, c)
				if err != nil {
					return false, err
				}
				if l.kind == valNull || r.kind == valNull {
					return false, nil
				}
				cmp, err := compareValues(l, r)
				if err != nil {
					return false, err
				}
				switch e.Op {
				case "=":
					return cmp == 0, nil
				case "!=", "<>":
					return cmp != 0, nil
				case "<":
					return cmp < 0, nil
				case "<=":
					return cmp <= 0, nil
				case ">":
					return cmp > 0, nil
				case ">=":
					return cmp >= 0, nil
				}
			}
		}
	}
	return false, baseerr.New(baseerr.UnsupportedFunctionality, "exec: unsupported WHERE expression")
}
