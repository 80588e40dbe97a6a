// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package column

import (
	"encoding/binary"

	"basedb/internal/baseerr"
	"basedb/internal/wire"
)

// Chunk is a single column's values for a contiguous row range (spec §4.2).
// Fixed-width types store their cells packed in Data at ElementSize()-byte
// strides. Variable-width types (String) store concatenated bytes in Data
// and cumulative end offsets in Offsets, mirroring ClickHouse's own String
// column layout. Nullable wraps an inner chunk plus a null bitmap.
// LowCardinality wraps a dictionary of distinct values plus a per-row index
// into it.
type Chunk struct {
	Typ Type

	Data    []byte   // fixed-width cells, or concatenated variable-width bytes
	Offsets []uint64 // variable-width only: row i spans Offsets[i]..Offsets[i+1]; Offsets[0] is 0

	Nulls *wire.Bitmap // Nullable only: Nulls.Get(i) true means row i is NULL

	Dict     *Chunk   // LowCardinality only: distinct values, index-addressed
	DictKeys []uint32 // LowCardinality only: per-row index into Dict

	rows int
}

// maxStringLen is the 2^31 ceiling spec §3 places on any single String
// cell's byte length.
const maxStringLen = 1 << 31

// New returns an empty chunk of type t.
func New(t Type) *Chunk {
	c := &Chunk{Typ: t}
	switch t.Kind {
	case KindNullable:
		c.Nulls = wire.NewBitmap(0)
		c.Dict = New(*t.Inner) // reuse Dict slot to hold the wrapped inner chunk
	case KindLowCardinality:
		c.Dict = New(*t.Inner)
		c.DictKeys = nil
	case KindString:
		c.Offsets = []uint64{0}
	}
	return c
}

// Len returns the number of rows currently stored.
func (c *Chunk) Len() int { return c.rows }

// SetRows overrides the row count directly. It exists for decoders that
// build a chunk's Data/Offsets/Nulls/DictKeys fields by hand (wire decode)
// rather than through Push*, and must publish the resulting row count
// afterwards.
func (c *Chunk) SetRows(n int) { c.rows = n }

// inner returns the wrapped chunk for Nullable, panicking if c is not one.
// Reusing the Dict field to store it avoids a separate struct field that
// would sit unused on every non-Nullable chunk.
func (c *Chunk) inner() *Chunk {
	if c.Typ.Kind != KindNullable {
		panic("column: inner called on non-Nullable chunk")
	}
	return c.Dict
}

// PushValues appends len(buf)/elemSize fixed-width cells, where elemSize is
// c.Typ.ElementSize() (or c.Typ.Inner.ElementSize() for Nullable). It is a
// programming error to call PushValues on a variable-width or
// LowCardinality chunk; use PushStrings or PushDictKey instead.
func (c *Chunk) PushValues(buf []byte) error {
	if c.Typ.Kind == KindNullable {
		if err := c.inner().PushValues(buf); err != nil {
			return err
		}
		added := len(buf) / c.Typ.Inner.ElementSize()
		c.Nulls.Grow(c.rows + added)
		for i := 0; i < added; i++ {
			c.Nulls.Set(c.rows+i, false)
		}
		c.rows += added
		return nil
	}
	elemSize := c.Typ.ElementSize()
	if elemSize == 0 {
		return baseerr.New(baseerr.TypeMismatch, "PushValues: %s is not fixed-width", c.Typ.Name())
	}
	if len(buf)%elemSize != 0 {
		return baseerr.New(baseerr.TypeMismatch, "PushValues: buffer length %d not a multiple of element size %d", len(buf), elemSize)
	}
	c.Data = append(c.Data, buf...)
	c.rows += len(buf) / elemSize
	return nil
}

// PushStrings appends a sequence of variable-length values to a String
// chunk (or a Nullable(String) chunk, none of which are NULL).
func (c *Chunk) PushStrings(values [][]byte) error {
	if c.Typ.Kind == KindNullable {
		if err := c.inner().PushStrings(values); err != nil {
			return err
		}
		for range values {
			c.Nulls.Grow(c.rows + 1)
			c.Nulls.Set(c.rows, false)
			c.rows++
		}
		return nil
	}
	if c.Typ.Kind != KindString {
		return baseerr.New(baseerr.TypeMismatch, "PushStrings: %s is not String", c.Typ.Name())
	}
	for _, v := range values {
		if len(v) >= maxStringLen {
			return baseerr.New(baseerr.EncodingTooLongString, "PushStrings: string of length %d exceeds the %d byte ceiling", len(v), maxStringLen)
		}
		c.Data = append(c.Data, v...)
		c.Offsets = append(c.Offsets, uint64(len(c.Data)))
		c.rows++
	}
	return nil
}

// SetNull marks row i of a Nullable chunk as NULL, overwriting whatever
// value PushValues/PushStrings already placed there (the inner storage
// keeps a placeholder cell so row indices stay aligned).
func (c *Chunk) SetNull(i int) error {
	if c.Typ.Kind != KindNullable {
		return baseerr.New(baseerr.TypeMismatch, "SetNull: %s is not Nullable", c.Typ.Name())
	}
	if i < 0 || i >= c.rows {
		return baseerr.New(baseerr.Generic, "SetNull: row %d out of range [0,%d)", i, c.rows)
	}
	c.Nulls.Set(i, true)
	return nil
}

// IsNull reports whether row i is NULL. Only valid on Nullable chunks.
func (c *Chunk) IsNull(i int) bool {
	if c.Typ.Kind != KindNullable {
		return false
	}
	return c.Nulls.Get(i)
}

// PushDictKey appends one row to a LowCardinality chunk, looking up val in
// the dictionary (appending it if not already present) and recording its
// index for this row.
func (c *Chunk) PushDictKey(val []byte) error {
	if c.Typ.Kind != KindLowCardinality {
		return baseerr.New(baseerr.TypeMismatch, "PushDictKey: %s is not LowCardinality", c.Typ.Name())
	}
	idx := c.dictIndex(val)
	if idx < 0 {
		if c.Dict.Typ.Kind == KindString {
			if err := c.Dict.PushStrings([][]byte{val}); err != nil {
				return err
			}
		} else {
			if err := c.Dict.PushValues(val); err != nil {
				return err
			}
		}
		idx = c.Dict.Len() - 1
	}
	c.DictKeys = append(c.DictKeys, uint32(idx))
	c.rows++
	return nil
}

func (c *Chunk) dictIndex(val []byte) int {
	if c.Dict.Typ.Kind == KindString {
		for i := 0; i < c.Dict.Len(); i++ {
			if bytesEqual(c.Dict.StringAt(i), val) {
				return i
			}
		}
		return -1
	}
	elemSize := c.Dict.Typ.ElementSize()
	for i := 0; i < c.Dict.Len(); i++ {
		if bytesEqual(c.Dict.Data[i*elemSize:(i+1)*elemSize], val) {
			return i
		}
	}
	return -1
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// StringAt returns the raw bytes of row i of a String chunk.
func (c *Chunk) StringAt(i int) []byte {
	return c.Data[c.Offsets[i]:c.Offsets[i+1]]
}

// ValueAt returns the raw fixed-width cell bytes of row i.
func (c *Chunk) ValueAt(i int) []byte {
	elemSize := c.Typ.ElementSize()
	return c.Data[i*elemSize : (i+1)*elemSize]
}

// Uint64At interprets row i as an unsigned integer of the chunk's width,
// zero-extended to 64 bits. It panics on variable-width or wrapper types.
func (c *Chunk) Uint64At(i int) uint64 {
	b := c.ValueAt(i)
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	case 8:
		return binary.LittleEndian.Uint64(b)
	default:
		panic("column: Uint64At on unsupported element width")
	}
}

// Int64At interprets row i as a signed integer of the chunk's width,
// sign-extended to 64 bits. It panics on variable-width or wrapper types.
func (c *Chunk) Int64At(i int) int64 {
	b := c.ValueAt(i)
	switch len(b) {
	case 1:
		return int64(int8(b[0]))
	case 2:
		return int64(int16(binary.LittleEndian.Uint16(b)))
	case 4:
		return int64(int32(binary.LittleEndian.Uint32(b)))
	case 8:
		return int64(binary.LittleEndian.Uint64(b))
	default:
		panic("column: Int64At on unsupported element width")
	}
}

// Gather returns a new chunk holding the rows at rows, in the given
// order, copying the cells rather than sharing c's backing storage (a
// LowCardinality result still shares c's dictionary). Unlike Slice, rows need not be
// contiguous or increasing; the ingest pipeline uses this to split a
// multi-partition insert block into one sub-block per partition key
// (spec §4.9 step 3).
func (c *Chunk) Gather(rows []int) (*Chunk, error) {
	out := &Chunk{Typ: c.Typ, rows: len(rows)}
	switch c.Typ.Kind {
	case KindString:
		out.Offsets = make([]uint64, len(rows)+1)
		for i, r := range rows {
			if r < 0 || r >= c.rows {
				return nil, baseerr.New(baseerr.Generic, "Gather: row %d out of range [0,%d)", r, c.rows)
			}
			out.Data = append(out.Data, c.StringAt(r)...)
			out.Offsets[i+1] = uint64(len(out.Data))
		}
	case KindNullable:
		innerRows := rows
		inner, err := c.inner().Gather(innerRows)
		if err != nil {
			return nil, err
		}
		out.Dict = inner
		out.Nulls = wire.NewBitmap(len(rows))
		for i, r := range rows {
			out.Nulls.Set(i, c.Nulls.Get(r))
		}
	case KindLowCardinality:
		out.Dict = c.Dict
		out.DictKeys = make([]uint32, len(rows))
		for i, r := range rows {
			out.DictKeys[i] = c.DictKeys[r]
		}
	default:
		elemSize := c.Typ.ElementSize()
		out.Data = make([]byte, 0, len(rows)*elemSize)
		for _, r := range rows {
			if r < 0 || r >= c.rows {
				return nil, baseerr.New(baseerr.Generic, "Gather: row %d out of range [0,%d)", r, c.rows)
			}
			out.Data = append(out.Data, c.ValueAt(r)...)
		}
	}
	return out, nil
}

// Slice returns a new chunk holding rows [start,end) of c. Per spec §4.2
// this is a zero-copy logical slice: Data and DictKeys share c's backing
// array rather than being copied, three-index sliced (lo:hi:hi) so that an
// append to the result can never grow into and corrupt c's trailing bytes.
// Offsets and Nulls cannot themselves be shared — their values are
// positional (row-0-relative end offsets, bit-packed indices) and must be
// rebuilt relative to start — but that rebuild is a small index-sized
// allocation, not a copy of the chunk's actual data. Callers must not
// mutate a sliced chunk's Data/DictKeys in place; only the original owner
// of c may extend it, and c.Slice must not be called concurrently with an
// append to c.
func (c *Chunk) Slice(start, end int) (*Chunk, error) {
	if start < 0 || end > c.rows || start > end {
		return nil, baseerr.New(baseerr.Generic, "Slice: range [%d,%d) invalid for chunk of %d rows", start, end, c.rows)
	}
	out := &Chunk{Typ: c.Typ, rows: end - start}
	switch c.Typ.Kind {
	case KindString:
		lo, hi := c.Offsets[start], c.Offsets[end]
		out.Data = c.Data[lo:hi:hi]
		out.Offsets = make([]uint64, end-start+1)
		for i := range out.Offsets {
			out.Offsets[i] = c.Offsets[start+i] - lo
		}
	case KindNullable:
		inner, err := c.inner().Slice(start, end)
		if err != nil {
			return nil, err
		}
		out.Dict = inner
		out.Nulls = wire.NewBitmap(end - start)
		for i := 0; i < end-start; i++ {
			out.Nulls.Set(i, c.Nulls.Get(start+i))
		}
	case KindLowCardinality:
		out.Dict = c.Dict // dictionary is shared and immutable under slicing
		out.DictKeys = c.DictKeys[start:end:end]
	default:
		elemSize := c.Typ.ElementSize()
		lo, hi := start*elemSize, end*elemSize
		out.Data = c.Data[lo:hi:hi]
	}
	return out, nil
}
