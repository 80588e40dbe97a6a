// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package colfile bridges internal/column's in-memory Chunk
// representation and internal/partstore's raw mmap'd column files: it
// decides, per logical Type, which bytes an append actually writes and
// how a read reconstructs a Chunk view back out of one or two mapped
// regions (spec §4.5/§4.9).
//
// Fixed-width types store exactly their packed element bytes in the
// column's file, matching spec §3's "column file's byte length is
// exactly element_size * row_count" invariant directly.
//
// Variable-width (String) columns need an offsets structure that can
// grow by simple file append the same way the data bytes do. A
// cumulative offsets array cannot be appended to in place (appending N
// new rows shifts no existing offset, but the array's final entry is
// recomputed from current total length every time, which is still
// append-only, so cumulative offsets work after all for appends: each
// append's new offsets are simply "previous total length plus running
// sum of the new rows' lengths"). This package stores exactly that: a
// per-row cumulative end-offset array in a sibling file addressed by
// OffsetsColumnID(columnID), kept purely as an implementation detail
// between this package and partstore; the catalog's part index still
// only ever names the data column id.
package colfile

import (
	"encoding/binary"

	"basedb/internal/baseerr"
	"basedb/internal/column"
	"basedb/internal/partstore"
)

// offsetsColumnIDBit distinguishes a variable-width column's offsets
// sidecar file from its data file within partstore's single
// (table, partition, column) addressing scheme (spec §6.2): real column
// ids are catalog-allocated, monotonic, small integers, so the high bit
// is never a legitimate data column id and is safe to reserve here.
const offsetsColumnIDBit = uint64(1) << 63

// OffsetsColumnID returns the synthetic column id colfile uses to store
// columnID's cumulative end-offsets array.
func OffsetsColumnID(columnID uint64) uint64 { return columnID | offsetsColumnIDBit }

// Sizes is the pre/post-append byte size of a column's on-disk file(s):
// Data always applies; Offsets only applies to variable-width columns.
type Sizes struct {
	Data    uint64
	Offsets uint64
}

// AppendRows appends chunk's rows to the column file(s) for
// (tableID, partitionKey, columnID) under typ, returning the new Sizes.
// preSize is the size(s) already committed in the catalog's part index,
// which is where every append's write offset comes from (spec §4.5: never
// stat the file).
func AppendRows(store *partstore.Store, tableID uint64, partitionKey int64, columnID uint64, typ column.Type, chunk *column.Chunk, preSize Sizes) (Sizes, error) {
	if typ.Kind == column.KindString {
		return appendStringRows(store, tableID, partitionKey, columnID, chunk, preSize)
	}
	if !typ.IsFixedWidth() {
		return Sizes{}, baseerr.New(baseerr.UnsupportedFunctionality, "colfile: on-disk storage of %s columns is not implemented", typ.Name())
	}
	newDataSize, err := store.Append(tableID, partitionKey, columnID, int64(preSize.Data), chunk.Data)
	if err != nil {
		return Sizes{}, err
	}
	return Sizes{Data: uint64(newDataSize)}, nil
}

func appendStringRows(store *partstore.Store, tableID uint64, partitionKey int64, columnID uint64, chunk *column.Chunk, preSize Sizes) (Sizes, error) {
	newDataSize, err := store.Append(tableID, partitionKey, columnID, int64(preSize.Data), chunk.Data)
	if err != nil {
		return Sizes{}, err
	}

	offBuf := make([]byte, 0, 8*chunk.Len())
	base := preSize.Data
	for i := 0; i < chunk.Len(); i++ {
		rowEnd := base + chunk.Offsets[i+1]
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], rowEnd)
		offBuf = append(offBuf, b[:]...)
	}
	newOffSize, err := store.Append(tableID, partitionKey, OffsetsColumnID(columnID), int64(preSize.Offsets), offBuf)
	if err != nil {
		// Roll the data file back to its pre-append size so the two
		// sidecar files never disagree on row count (spec §4.9 step 5's
		// truncate-on-failure semantics, extended across both files).
		_ = store.TruncateTo(tableID, partitionKey, columnID, int64(preSize.Data))
		return Sizes{}, err
	}
	return Sizes{Data: uint64(newDataSize), Offsets: uint64(newOffSize)}, nil
}

// TruncateTo truncates the column's file(s) back to size, used to roll
// back a failed sub-block commit (spec §4.9 step 5).
func TruncateTo(store *partstore.Store, tableID uint64, partitionKey int64, columnID uint64, typ column.Type, size Sizes) error {
	if err := store.TruncateTo(tableID, partitionKey, columnID, int64(size.Data)); err != nil {
		return err
	}
	if typ.Kind == column.KindString {
		return store.TruncateTo(tableID, partitionKey, OffsetsColumnID(columnID), int64(size.Offsets))
	}
	return nil
}

// ReadChunk reconstructs a read-only Chunk view over a partition's mapped
// column file(s) for typ, given the data CoPaInfo (and, for String
// columns, the sidecar offsets CoPaInfo). The returned chunk's Data slice
// aliases the mmap'd region directly and callers must not mutate it; a
// String chunk's Offsets are decoded into a newly allocated slice.
func ReadChunk(typ column.Type, data partstore.CoPaInfo, offsets *partstore.CoPaInfo) (*column.Chunk, error) {
	c := column.New(typ)
	if typ.Kind == column.KindString {
		if offsets == nil {
			return nil, baseerr.New(baseerr.IntegrityMismatch, "colfile: missing offsets region for String column")
		}
		n := int(data.RowCount)
		offs := make([]uint64, n+1)
		for i := 0; i < n; i++ {
			offs[i+1] = binary.LittleEndian.Uint64(offsets.Addr[i*8 : i*8+8])
		}
		c.Data = data.Addr
		c.Offsets = offs
		c.SetRows(n)
		return c, nil
	}
	if !typ.IsFixedWidth() {
		return nil, baseerr.New(baseerr.UnsupportedFunctionality, "colfile: on-disk storage of %s columns is not implemented", typ.Name())
	}
	c.Data = data.Addr
	c.SetRows(int(data.RowCount))
	return c, nil
}
