// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"basedb/internal/block"
	"basedb/internal/catalog"
	"basedb/internal/colfile"
	"basedb/internal/column"
	"basedb/internal/engine"
	"basedb/internal/partexpr"
	"basedb/internal/partstore"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	cat := catalog.NewMemoryStore()
	parts := partstore.New([]string{t.TempDir()})
	t.Cleanup(func() { _ = parts.Close() })
	return engine.New(cat, parts)
}

func u32Block(t *testing.T, rows []uint32, partCol string, extra map[string][]uint32) *block.Block {
	t.Helper()
	blk := block.New()
	mk := func(vals []uint32) *column.Chunk {
		c := column.New(column.Type{Kind: column.KindUInt32})
		var buf []byte
		for _, v := range vals {
			buf = append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
		}
		require.NoError(t, c.PushValues(buf))
		return c
	}
	require.NoError(t, blk.AddColumn(partCol, mk(rows)))
	for name, vals := range extra {
		require.NoError(t, blk.AddColumn(name, mk(vals)))
	}
	return blk
}

func TestInsertSplitsByPartitionAndCommits(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	dbID, err := e.CreateDatabase(ctx, "testdb", true)
	require.NoError(t, err)
	_ = dbID

	partExpr := &partexpr.Expr{Func: partexpr.FuncModulus, Column: "id", Modulus: 2}
	tableID, err := e.CreateTable(ctx, engine.CreateTableSpec{
		Database: "testdb",
		Table:    "events",
		Columns: []engine.ColumnSpec{
			{Name: "id", Type: column.Type{Kind: column.KindUInt32}},
			{Name: "val", Type: column.Type{Kind: column.KindUInt32}},
		},
		Engine:        engine.NativeEngineName,
		PartitionExpr: partExpr,
	}, "")
	require.NoError(t, err)
	_ = tableID

	table, err := e.ResolveTable(ctx, "testdb", "events", "")
	require.NoError(t, err)
	require.NotNil(t, table.PartitionExpr)

	blk := u32Block(t, []uint32{1, 2, 3, 4}, "id", map[string][]uint32{"val": {10, 20, 30, 40}})

	ing := New(e)
	require.NoError(t, ing.Insert(ctx, table, blk, 0))

	entries0, err := e.Catalog.ReadPartIndex(ctx, table.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, entries0, 1)
	require.Equal(t, uint64(2), entries0[0].RowCount)

	entries1, err := e.Catalog.ReadPartIndex(ctx, table.ID, 1, 1)
	require.NoError(t, err)
	require.Len(t, entries1, 1)
	require.Equal(t, uint64(2), entries1[0].RowCount)

	parts, err := e.Parts.FillCoPaInfos(table.ID, []uint64{table.Columns[1].ID}, []partstore.PartitionSizes{
		{PartitionKey: 0, RowCount: entries0[0].RowCount, ColumnSizes: entries0[0].ColumnSizes},
	})
	require.NoError(t, err)
	chunk, err := colfile.ReadChunk(table.Columns[1].Type, parts[0][0], nil)
	require.NoError(t, err)
	require.Equal(t, 2, chunk.Len())
	require.Equal(t, uint64(20), chunk.Uint64At(0))
	require.Equal(t, uint64(40), chunk.Uint64At(1))
}

func TestInsertRejectsSchemaMismatch(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	_, err := e.CreateDatabase(ctx, "testdb", true)
	require.NoError(t, err)
	_, err = e.CreateTable(ctx, engine.CreateTableSpec{
		Database: "testdb",
		Table:    "t",
		Columns:  []engine.ColumnSpec{{Name: "id", Type: column.Type{Kind: column.KindUInt32}}},
		Engine:   engine.NativeEngineName,
	}, "")
	require.NoError(t, err)
	table, err := e.ResolveTable(ctx, "testdb", "t", "")
	require.NoError(t, err)

	blk := u32Block(t, []uint32{1, 2}, "id", map[string][]uint32{"extra": {1, 2}})
	ing := New(e)
	err = ing.Insert(ctx, table, blk, 0)
	require.Error(t, err)
}

func TestInsertNoPartitionExprUsesSingleBucket(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	_, err := e.CreateDatabase(ctx, "testdb", true)
	require.NoError(t, err)
	_, err = e.CreateTable(ctx, engine.CreateTableSpec{
		Database: "testdb",
		Table:    "t",
		Columns:  []engine.ColumnSpec{{Name: "id", Type: column.Type{Kind: column.KindUInt32}}},
		Engine:   engine.NativeEngineName,
	}, "")
	require.NoError(t, err)
	table, err := e.ResolveTable(ctx, "testdb", "t", "")
	require.NoError(t, err)

	blk := u32Block(t, []uint32{1, 2, 3}, "id", nil)
	ing := New(e)
	require.NoError(t, ing.Insert(ctx, table, blk, 0))

	entries, err := e.Catalog.ReadPartIndex(ctx, table.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, uint64(3), entries[0].RowCount)
}
