// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package block implements the unit of request/response that carries
// columnar data on the wire: an ordered set of named column chunks sharing
// one row count, plus its wire serialization.
package block

import (
	"basedb/internal/baseerr"
	"basedb/internal/column"
)

// NamedColumn pairs a column chunk with the name it is addressed by within
// a Block.
type NamedColumn struct {
	Name string
	Data *column.Chunk
}

// Block is an ordered collection of named column chunks that all share the
// same row count (spec §4.3). BucketNum mirrors the upstream protocol's
// "bucket number" field for two-level aggregation; this engine does not
// implement two-level aggregation, so it is always the -1 sentinel on
// blocks this engine produces, but is preserved on decode so the info byte
// round-trips exactly.
type Block struct {
	Columns   []NamedColumn
	Overflow  bool
	BucketNum int32
}

// New returns an empty block.
func New() *Block {
	return &Block{BucketNum: -1}
}

// NumRows returns the block's row count (0 for a block with no columns).
func (b *Block) NumRows() int {
	if len(b.Columns) == 0 {
		return 0
	}
	return b.Columns[0].Data.Len()
}

// NumColumns returns the number of columns in b.
func (b *Block) NumColumns() int { return len(b.Columns) }

// AddColumn appends a named column chunk to b, failing if its row count
// disagrees with the block's existing columns (spec §8's "all columns in B
// have the same row count as B's header" invariant).
func (b *Block) AddColumn(name string, data *column.Chunk) error {
	if len(b.Columns) > 0 && data.Len() != b.NumRows() {
		return baseerr.New(baseerr.SchemaMismatch, "block: column %q has %d rows, want %d", name, data.Len(), b.NumRows())
	}
	b.Columns = append(b.Columns, NamedColumn{Name: name, Data: data})
	return nil
}

// ColumnByName returns the column named name, or nil if absent.
func (b *Block) ColumnByName(name string) *column.Chunk {
	for _, c := range b.Columns {
		if c.Name == name {
			return c.Data
		}
	}
	return nil
}

// Empty reports whether b carries zero rows, the end-of-stream marker for
// both insert data blocks (spec §4.9 step 6) and query result blocks
// (spec §6.1's terminating empty Data packet for a Query request).
func (b *Block) Empty() bool {
	return b.NumRows() == 0
}
