// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"basedb/internal/block"
	"basedb/internal/catalog"
	"basedb/internal/column"
	"basedb/internal/engine"
	"basedb/internal/ingest"
	"basedb/internal/partexpr"
	"basedb/internal/partstore"
	"basedb/internal/planner"
	"basedb/internal/sqlmini"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	cat := catalog.NewMemoryStore()
	parts := partstore.New([]string{t.TempDir()})
	t.Cleanup(func() { _ = parts.Close() })
	return engine.New(cat, parts)
}

func u32Column(t *testing.T, vals []uint32) *column.Chunk {
	t.Helper()
	c := column.New(column.Type{Kind: column.KindUInt32})
	var buf []byte
	for _, v := range vals {
		buf = append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	}
	require.NoError(t, c.PushValues(buf))
	return c
}

func i32Column(t *testing.T, vals []int32) *column.Chunk {
	t.Helper()
	c := column.New(column.Type{Kind: column.KindInt32})
	var buf []byte
	for _, v := range vals {
		u := uint32(v)
		buf = append(buf, byte(u), byte(u>>8), byte(u>>16), byte(u>>24))
	}
	require.NoError(t, c.PushValues(buf))
	return c
}

func setupOrders(t *testing.T) (*engine.Engine, *engine.TableMeta) {
	t.Helper()
	ctx := context.Background()
	e := newTestEngine(t)

	_, err := e.CreateDatabase(ctx, "shop", true)
	require.NoError(t, err)

	_, err = e.CreateTable(ctx, engine.CreateTableSpec{
		Database: "shop",
		Table:    "orders",
		Columns: []engine.ColumnSpec{
			{Name: "id", Type: column.Type{Kind: column.KindUInt32}},
			{Name: "region", Type: column.Type{Kind: column.KindUInt32}},
			{Name: "amount", Type: column.Type{Kind: column.KindInt32}},
		},
		Engine:        engine.NativeEngineName,
		PartitionExpr: &partexpr.Expr{Func: partexpr.FuncModulus, Column: "id", Modulus: 2},
	}, "")
	require.NoError(t, err)

	table, err := e.ResolveTable(ctx, "shop", "orders", "")
	require.NoError(t, err)

	blk := block.New()
	require.NoError(t, blk.AddColumn("id", u32Column(t, []uint32{1, 2, 3, 4, 5})))
	require.NoError(t, blk.AddColumn("region", u32Column(t, []uint32{1, 1, 2, 2, 1})))
	require.NoError(t, blk.AddColumn("amount", i32Column(t, []int32{10, 20, 30, 40, 5})))

	ing := ingest.New(e)
	require.NoError(t, ing.Insert(ctx, table, blk, 0))

	return e, table
}

func planAndRun(t *testing.T, e *engine.Engine, sql string) *block.Block {
	t.Helper()
	ctx := context.Background()
	stmt, err := sqlmini.Parse(sql)
	require.NoError(t, err)
	require.NotNil(t, stmt.Select)
	plan, err := planner.Build(ctx, e, stmt.Select, "shop")
	require.NoError(t, err)
	blk, err := Execute(ctx, e, plan, 0)
	require.NoError(t, err)
	return blk
}

func TestExecuteWhereFilterAcrossPartitions(t *testing.T) {
	e, _ := setupOrders(t)
	blk := planAndRun(t, e, "SELECT id FROM orders WHERE region = 1")

	col := blk.ColumnByName("id")
	require.NotNil(t, col)
	require.Equal(t, 3, col.Len())
	got := map[uint64]bool{}
	for i := 0; i < col.Len(); i++ {
		got[col.Uint64At(i)] = true
	}
	require.Equal(t, map[uint64]bool{1: true, 2: true, 5: true}, got)
}

func TestExecuteGroupBySum(t *testing.T) {
	e, _ := setupOrders(t)
	blk := planAndRun(t, e, "SELECT region, sum(amount) FROM orders GROUP BY region")

	region := blk.ColumnByName("region")
	sum := blk.ColumnByName("sum(amount)")
	require.NotNil(t, region)
	require.NotNil(t, sum)
	require.Equal(t, 2, region.Len())

	totals := map[uint64]int64{}
	for i := 0; i < region.Len(); i++ {
		totals[region.Uint64At(i)] = sum.Int64At(i)
	}
	require.Equal(t, map[uint64]int64{1: 35, 2: 70}, totals)
}

func TestExecuteCountStar(t *testing.T) {
	e, _ := setupOrders(t)
	blk := planAndRun(t, e, "SELECT count() FROM orders")

	col := blk.ColumnByName("count()")
	require.NotNil(t, col)
	require.Equal(t, 1, col.Len())
	require.Equal(t, uint64(5), col.Uint64At(0))
}

func TestExecuteOrderByLimitOffset(t *testing.T) {
	e, _ := setupOrders(t)
	blk := planAndRun(t, e, "SELECT id FROM orders ORDER BY amount DESC LIMIT 1, 2")

	col := blk.ColumnByName("id")
	require.NotNil(t, col)
	require.Equal(t, 2, col.Len())
	// amounts sorted desc: 40(id4), 30(id3), 20(id2), 10(id1), 5(id5)
	// offset 1, limit 2 -> id3, id2
	require.Equal(t, uint64(3), col.Uint64At(0))
	require.Equal(t, uint64(2), col.Uint64At(1))
}

func TestExecuteGroupKeyNotInProjectionRejected(t *testing.T) {
	e, _ := setupOrders(t)
	ctx := context.Background()
	stmt, err := sqlmini.Parse("SELECT id, sum(amount) FROM orders GROUP BY region")
	require.NoError(t, err)
	_, err = planner.Build(ctx, e, stmt.Select, "shop")
	require.Error(t, err)
}
