// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package sqlmini

import (
	"testing"

	"github.com/stretchr/testify/require"

	"basedb/internal/parsedtree"
)

func TestParseCreateTable(t *testing.T) {
	stmt, err := Parse("CREATE TABLE test.t (a UInt32, b String) ENGINE=BaseStorage PARTITION BY rem(a,100)")
	require.NoError(t, err)
	require.Equal(t, parsedtree.KindCreateTable, stmt.Kind)
	ct := stmt.CreateTable
	require.Equal(t, "test", ct.Table.Database)
	require.Equal(t, "t", ct.Table.Table)
	require.Equal(t, "BaseStorage", ct.Engine)
	require.Len(t, ct.Columns, 2)
	require.Equal(t, "UInt32", ct.Columns[0].Type)
	require.Equal(t, "String", ct.Columns[1].Type)
	require.NotNil(t, ct.PartitionExpr)
	require.Equal(t, parsedtree.ExprFuncCall, ct.PartitionExpr.Kind)
	require.Equal(t, "rem", ct.PartitionExpr.FuncName)
}

func TestParseInsertInline(t *testing.T) {
	stmt, err := Parse("INSERT INTO test.t VALUES (1,'x'),(2,'y'),(3,'z')")
	require.NoError(t, err)
	require.Equal(t, parsedtree.KindInsert, stmt.Kind)
	require.True(t, stmt.Insert.HasInlineValues)
	require.Len(t, stmt.Insert.Values, 3)
	require.Equal(t, int64(1), stmt.Insert.Values[0][0].IntVal)
	require.Equal(t, "x", stmt.Insert.Values[0][1].StrVal)
}

func TestParseSelectSum(t *testing.T) {
	stmt, err := Parse("SELECT sum(a) FROM test.t")
	require.NoError(t, err)
	sel := stmt.Select
	require.Len(t, sel.Projections, 1)
	require.Equal(t, parsedtree.ExprFuncCall, sel.Projections[0].Expr.Kind)
	require.Equal(t, "sum", sel.Projections[0].Expr.FuncName)
}

func TestParseSelectWhereLimit(t *testing.T) {
	stmt, err := Parse("SELECT count() FROM test.t WHERE a >= 5000 LIMIT 10")
	require.NoError(t, err)
	sel := stmt.Select
	require.NotNil(t, sel.Where)
	require.Equal(t, ">=", sel.Where.Op)
	require.True(t, sel.HasLimit)
	require.Equal(t, int64(10), sel.Limit)
}

func TestParseShowTables(t *testing.T) {
	stmt, err := Parse("SHOW TABLES FROM test")
	require.NoError(t, err)
	require.Equal(t, parsedtree.ShowTables, stmt.Show.Kind)
	require.Equal(t, "test", stmt.Show.Database)
}

func TestParseUnsupported(t *testing.T) {
	_, err := Parse("ALTER TABLE t ADD COLUMN c Int32")
	require.Error(t, err)
}
