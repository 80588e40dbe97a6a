// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package partexpr

import (
	"testing"

	"github.com/stretchr/testify/require"

	"basedb/internal/parsedtree"
)

func TestCompileModulusAndEval(t *testing.T) {
	expr := parsedtree.Expr{
		Kind:     parsedtree.ExprFuncCall,
		FuncName: "rem",
		Args: []parsedtree.Expr{
			{Kind: parsedtree.ExprColumn, Column: "a"},
			{Kind: parsedtree.ExprLiteral, LitKind: parsedtree.LiteralInt, IntVal: 100},
		},
	}
	e, err := Compile(expr)
	require.NoError(t, err)
	require.Equal(t, int64(23), e.Eval(123, 0))
	require.Equal(t, int64(0), e.Eval(5000, 0))
}

func TestAttrsRoundTrip(t *testing.T) {
	e := &Expr{Func: FuncModulus, Column: "a", Modulus: 10}
	attrs := e.ToAttrs()
	got, err := FromAttrs(attrs)
	require.NoError(t, err)
	require.Equal(t, e, got)
}

func TestCompileIdentity(t *testing.T) {
	e, err := Compile(parsedtree.Expr{Kind: parsedtree.ExprColumn, Column: "id"})
	require.NoError(t, err)
	require.Equal(t, FuncIdentity, e.Func)
	require.Equal(t, int64(42), e.Eval(42, 0))
}

func TestCompileRejectsUnsupported(t *testing.T) {
	_, err := Compile(parsedtree.Expr{Kind: parsedtree.ExprFuncCall, FuncName: "murmurHash"})
	require.Error(t, err)
}
