// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package ingest implements the insert pipeline spec §4.9 describes: a
// client-provided Block is validated against a table's schema, split into
// one sub-block per partition key, and each sub-block is committed to the
// part store and the catalog's part index as one atomic unit.
package ingest

import (
	"context"

	"basedb/internal/baseerr"
	"basedb/internal/block"
	"basedb/internal/catalog"
	"basedb/internal/colfile"
	"basedb/internal/column"
	"basedb/internal/engine"
)

// Ingester commits insert blocks into one Engine's catalog and part store.
type Ingester struct {
	Engine *engine.Engine
}

// New returns an Ingester over e.
func New(e *engine.Engine) *Ingester {
	return &Ingester{Engine: e}
}

// Insert validates blk against table's schema, splits it by partition key,
// and commits each resulting sub-block (spec §4.9 steps 1-5). tzOffsetSeconds
// is the session timezone offset the toYYYYMM partition function needs.
func (ing *Ingester) Insert(ctx context.Context, table *engine.TableMeta, blk *block.Block, tzOffsetSeconds int32) error {
	if err := validateSchema(table, blk); err != nil {
		return err
	}
	if blk.Empty() {
		return nil
	}

	groups, order, err := groupRowsByPartition(table, blk, tzOffsetSeconds)
	if err != nil {
		return err
	}

	for _, key := range order {
		rows := groups[key]
		sub := make([]*column.Chunk, len(table.Columns))
		for i, col := range table.Columns {
			chunk := blk.ColumnByName(col.Name)
			gathered, err := chunk.Gather(rows)
			if err != nil {
				return err
			}
			sub[i] = gathered
		}
		if err := ing.commitSubBlock(ctx, table, key, sub); err != nil {
			return err
		}
	}
	return nil
}

// validateSchema checks blk's columns against table's declared schema
// (spec §4.9 step 1): every declared column must be present, with a
// matching type, and no extra columns are allowed.
func validateSchema(table *engine.TableMeta, blk *block.Block) error {
	if blk.NumColumns() != len(table.Columns) {
		return baseerr.New(baseerr.SchemaMismatch, "ingest: block has %d columns, table %q declares %d", blk.NumColumns(), table.Name, len(table.Columns))
	}
	for _, col := range table.Columns {
		chunk := blk.ColumnByName(col.Name)
		if chunk == nil {
			return baseerr.New(baseerr.SchemaMismatch, "ingest: block is missing column %q", col.Name)
		}
		if chunk.Typ.Name() != col.Type.Name() {
			return baseerr.New(baseerr.SchemaMismatch, "ingest: column %q has type %s, table declares %s", col.Name, chunk.Typ.Name(), col.Type.Name())
		}
	}
	return nil
}

// groupRowsByPartition evaluates table's partition-key expression for every
// row of blk and buckets row indices by the resulting key, returning the
// buckets plus the keys in first-seen order (so commits happen in a stable,
// deterministic order across otherwise-equivalent inserts).
func groupRowsByPartition(table *engine.TableMeta, blk *block.Block, tzOffsetSeconds int32) (map[int64][]int, []int64, error) {
	groups := map[int64][]int{}
	var order []int64

	if table.PartitionExpr == nil {
		n := blk.NumRows()
		rows := make([]int, n)
		for i := range rows {
			rows[i] = i
		}
		groups[0] = rows
		order = []int64{0}
		return groups, order, nil
	}

	srcCol := table.ColumnByName(table.PartitionExpr.Column)
	if srcCol == nil {
		return nil, nil, baseerr.New(baseerr.IntegrityMismatch, "ingest: partition column %q not found in table %q", table.PartitionExpr.Column, table.Name)
	}
	chunk := blk.ColumnByName(srcCol.Name)

	n := blk.NumRows()
	for i := 0; i < n; i++ {
		var v int64
		if srcCol.Type.IsSigned() {
			v = chunk.Int64At(i)
		} else {
			v = int64(chunk.Uint64At(i))
		}
		key := table.PartitionExpr.Eval(v, tzOffsetSeconds)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}
	return groups, order, nil
}

// commitSubBlock appends every column of sub to its on-disk file(s) for
// partitionKey and atomically advances the catalog's part index, rolling
// every column back to its pre-append size if any step fails (spec §4.9
// steps 4-5).
func (ing *Ingester) commitSubBlock(ctx context.Context, table *engine.TableMeta, partitionKey int64, sub []*column.Chunk) error {
	preSizes, preRowCount, err := readPreSizes(ctx, ing.Engine.Catalog, table.ID, partitionKey, table.Columns)
	if err != nil {
		return err
	}

	newSizes := make(map[uint64]uint64, len(table.Columns)*2)
	var committed []engine.ColumnMeta

	rollback := func() {
		for _, col := range committed {
			_ = colfile.TruncateTo(ing.Engine.Parts, table.ID, partitionKey, col.ID, col.Type, preSizes[col.ID])
		}
	}

	for i, col := range table.Columns {
		newSize, err := colfile.AppendRows(ing.Engine.Parts, table.ID, partitionKey, col.ID, col.Type, sub[i], preSizes[col.ID])
		if err != nil {
			rollback()
			return baseerr.Wrap(baseerr.PartIndexUpdateFailed, err, "ingest: appending column %q", col.Name)
		}
		committed = append(committed, col)
		newSizes[col.ID] = newSize.Data
		if col.Type.Kind == column.KindString {
			newSizes[colfile.OffsetsColumnID(col.ID)] = newSize.Offsets
		}
	}

	rowCount := preRowCount + uint64(sub[0].Len())
	if err := ing.Engine.Catalog.UpdatePartIndex(ctx, table.ID, partitionKey, newSizes, rowCount); err != nil {
		rollback()
		return baseerr.Wrap(baseerr.PartIndexUpdateFailed, err, "ingest: committing part index for partition %d", partitionKey)
	}
	return nil
}

// readPreSizes reads the currently-committed colfile.Sizes and row count for
// (tableID, partitionKey) from the catalog's part index, defaulting to zero
// for a partition that has never been written.
func readPreSizes(ctx context.Context, cat catalog.Store, tableID uint64, partitionKey int64, cols []engine.ColumnMeta) (map[uint64]colfile.Sizes, uint64, error) {
	entries, err := cat.ReadPartIndex(ctx, tableID, partitionKey, partitionKey)
	if err != nil {
		return nil, 0, err
	}

	sizes := make(map[uint64]colfile.Sizes, len(cols))
	var rowCount uint64
	var have map[uint64]uint64
	if len(entries) > 0 {
		have = entries[0].ColumnSizes
		rowCount = entries[0].RowCount
	}
	for _, col := range cols {
		s := colfile.Sizes{Data: have[col.ID]}
		if col.Type.Kind == column.KindString {
			s.Offsets = have[colfile.OffsetsColumnID(col.ID)]
		}
		sizes[col.ID] = s
	}
	return sizes, rowCount, nil
}
