// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package block

import (
	"bytes"
	"encoding/binary"
	"io"

	"basedb/internal/baseerr"
	"basedb/internal/column"
	"basedb/internal/wire"
)

// byteReader is the minimal interface Decode's internals need: both
// *bytes.Reader (decoding an already-buffered packet body) and
// *bufio.Reader (streaming an uncompressed Data packet straight off a
// connection) satisfy it, so netframe never has to fully buffer a block
// before decoding it.
type byteReader interface {
	io.Reader
	io.ByteReader
}

// lowCardinalityVersion is this engine's own version tag for the
// LowCardinality flags word; it is not required to match the upstream
// protocol's internal enum bit layout since LowCardinality's wire shape is
// private to this engine's own client/server pairing.
const lowCardinalityVersion = 1

// Encode serializes b in the order spec §4.3 defines: the block info
// bytes, varint column count, varint row count, then each column's
// varint-prefixed name, varint-prefixed type string, and payload.
func Encode(b *Block) ([]byte, error) {
	var out []byte

	overflow := byte(0)
	if b.Overflow {
		overflow = 1
	}
	out = append(out, 1, overflow, 2)
	var bucket [4]byte
	binary.LittleEndian.PutUint32(bucket[:], uint32(b.BucketNum))
	out = append(out, bucket[:]...)
	out = append(out, 0)

	out = wire.PutUvarint(out, uint64(len(b.Columns)))
	out = wire.PutUvarint(out, uint64(b.NumRows()))

	for _, nc := range b.Columns {
		out = putVarstr(out, []byte(nc.Name))
		out = putVarstr(out, []byte(nc.Data.Typ.Name()))
		var err error
		out, err = encodeChunk(out, nc.Data)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func putVarstr(dst []byte, s []byte) []byte {
	dst = wire.PutUvarint(dst, uint64(len(s)))
	return append(dst, s...)
}

func encodeChunk(out []byte, c *column.Chunk) ([]byte, error) {
	t := c.Typ
	switch t.Kind {
	case column.KindString:
		for i := 0; i < c.Len(); i++ {
			out = putVarstr(out, c.StringAt(i))
		}
		return out, nil
	case column.KindNullable:
		for i := 0; i < c.Len(); i++ {
			if c.IsNull(i) {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		}
		return encodeChunk(out, innerChunk(c))
	case column.KindLowCardinality:
		keyWidth := dictKeyWidth(c.Dict.Len())
		flags := uint64(lowCardinalityVersion)<<32 | uint64(keyWidthCode(keyWidth))
		var flagsBuf [8]byte
		binary.LittleEndian.PutUint64(flagsBuf[:], flags)
		out = append(out, flagsBuf[:]...)

		var dictLenBuf [8]byte
		binary.LittleEndian.PutUint64(dictLenBuf[:], uint64(c.Dict.Len()))
		out = append(out, dictLenBuf[:]...)

		var err error
		out, err = encodeChunk(out, c.Dict)
		if err != nil {
			return nil, err
		}

		var keysLenBuf [8]byte
		binary.LittleEndian.PutUint64(keysLenBuf[:], uint64(len(c.DictKeys)))
		out = append(out, keysLenBuf[:]...)
		for _, k := range c.DictKeys {
			out = appendKey(out, k, keyWidth)
		}
		return out, nil
	case column.KindArray:
		return nil, baseerr.New(baseerr.UnsupportedFunctionality, "Array column wire encoding not implemented")
	default:
		return append(out, c.Data...), nil
	}
}

func innerChunk(c *column.Chunk) *column.Chunk {
	return c.Dict // Chunk reuses the Dict field to hold a Nullable's wrapped inner chunk
}

func dictKeyWidth(dictLen int) int {
	switch {
	case dictLen <= 1<<8:
		return 1
	case dictLen <= 1<<16:
		return 2
	case dictLen <= 1<<32:
		return 4
	default:
		return 8
	}
}

func keyWidthCode(width int) int {
	switch width {
	case 1:
		return 0
	case 2:
		return 1
	case 4:
		return 2
	default:
		return 3
	}
}

func widthFromCode(code int) int {
	switch code {
	case 0:
		return 1
	case 1:
		return 2
	case 2:
		return 4
	default:
		return 8
	}
}

func appendKey(out []byte, k uint32, width int) []byte {
	switch width {
	case 1:
		return append(out, byte(k))
	case 2:
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(k))
		return append(out, b[:]...)
	case 4:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], k)
		return append(out, b[:]...)
	default:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(k))
		return append(out, b[:]...)
	}
}

// Decode reads one Block from the front of data, returning the block and
// the unconsumed remainder. It is a thin buffering wrapper around
// DecodeFrom for callers that already hold the whole packet body in
// memory (e.g. a decompressed LZ4 frame).
func Decode(data []byte) (*Block, []byte, error) {
	r := bytes.NewReader(data)
	b, err := DecodeFrom(r)
	if err != nil {
		return nil, nil, err
	}
	remaining := make([]byte, r.Len())
	if _, err := io.ReadFull(r, remaining); err != nil && r.Len() > 0 {
		return nil, nil, baseerr.Wrap(baseerr.IncompleteWireFormat, err, "block: reading remainder")
	}
	return b, remaining, nil
}

// DecodeFrom reads one Block from r, consuming exactly the bytes that
// belong to it and no more. This is the form netframe uses to stream an
// uncompressed Data packet's block directly off a connection's
// *bufio.Reader, without first learning or buffering the block's total
// serialized length.
func DecodeFrom(r byteReader) (*Block, error) {
	var info [8]byte
	if _, err := io.ReadFull(r, info[:]); err != nil {
		return nil, baseerr.Wrap(baseerr.IncompleteWireFormat, err, "block: reading info header")
	}
	if info[0] != 1 || info[2] != 2 || info[7] != 0 {
		return nil, baseerr.New(baseerr.InvalidWireFormat, "block: malformed info header")
	}
	b := &Block{
		Overflow:  info[1] != 0,
		BucketNum: int32(binary.LittleEndian.Uint32(info[3:7])),
	}

	numColumns, err := wire.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	numRows, err := wire.ReadUvarint(r)
	if err != nil {
		return nil, err
	}

	for i := uint64(0); i < numColumns; i++ {
		name, err := readVarstr(r)
		if err != nil {
			return nil, err
		}
		typStr, err := readVarstr(r)
		if err != nil {
			return nil, err
		}
		typ, err := column.ParseType(string(typStr))
		if err != nil {
			return nil, err
		}
		chunk, err := decodeChunk(r, typ, int(numRows))
		if err != nil {
			return nil, err
		}
		b.Columns = append(b.Columns, NamedColumn{Name: string(name), Data: chunk})
	}
	return b, nil
}

func readVarstr(r byteReader) ([]byte, error) {
	n, err := wire.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, baseerr.Wrap(baseerr.IncompleteWireFormat, err, "reading varstr body")
		}
	}
	return buf, nil
}

func decodeChunk(r byteReader, t column.Type, numRows int) (*column.Chunk, error) {
	c := column.New(t)
	switch t.Kind {
	case column.KindString:
		for i := 0; i < numRows; i++ {
			v, err := readVarstr(r)
			if err != nil {
				return nil, err
			}
			if err := c.PushStrings([][]byte{v}); err != nil {
				return nil, err
			}
		}
		return c, nil
	case column.KindNullable:
		nulls := make([]bool, numRows)
		for i := 0; i < numRows; i++ {
			b, err := r.ReadByte()
			if err != nil {
				return nil, baseerr.Wrap(baseerr.IncompleteWireFormat, err, "reading null map")
			}
			nulls[i] = b != 0
		}
		inner, err := decodeChunk(r, *t.Inner, numRows)
		if err != nil {
			return nil, err
		}
		c.Dict = inner
		c.Nulls = wire.NewBitmap(numRows)
		for i, n := range nulls {
			c.Nulls.Set(i, n)
		}
		c.SetRows(numRows)
		return c, nil
	case column.KindLowCardinality:
		var flagsBuf [8]byte
		if _, err := io.ReadFull(r, flagsBuf[:]); err != nil {
			return nil, baseerr.Wrap(baseerr.IncompleteWireFormat, err, "reading lowcardinality flags")
		}
		flags := binary.LittleEndian.Uint64(flagsBuf[:])
		keyWidth := widthFromCode(int(flags & 0xff))

		var dictLenBuf [8]byte
		if _, err := io.ReadFull(r, dictLenBuf[:]); err != nil {
			return nil, baseerr.Wrap(baseerr.IncompleteWireFormat, err, "reading dict length")
		}
		dictLen := int(binary.LittleEndian.Uint64(dictLenBuf[:]))

		dict, err := decodeChunk(r, *t.Inner, dictLen)
		if err != nil {
			return nil, err
		}

		var keysLenBuf [8]byte
		if _, err := io.ReadFull(r, keysLenBuf[:]); err != nil {
			return nil, baseerr.Wrap(baseerr.IncompleteWireFormat, err, "reading keys length")
		}
		keysLen := int(binary.LittleEndian.Uint64(keysLenBuf[:]))

		c.Dict = dict
		c.DictKeys = make([]uint32, keysLen)
		for i := 0; i < keysLen; i++ {
			k, err := readKey(r, keyWidth)
			if err != nil {
				return nil, err
			}
			c.DictKeys[i] = k
		}
		c.SetRows(keysLen)
		return c, nil
	case column.KindArray:
		return nil, baseerr.New(baseerr.UnsupportedFunctionality, "Array column wire decoding not implemented")
	default:
		elemSize := t.ElementSize()
		buf := make([]byte, numRows*elemSize)
		if numRows > 0 {
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, baseerr.Wrap(baseerr.IncompleteWireFormat, err, "reading fixed-width payload")
			}
		}
		if err := c.PushValues(buf); err != nil {
			return nil, err
		}
		return c, nil
	}
}

func readKey(r byteReader, width int) (uint32, error) {
	buf := make([]byte, width)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, baseerr.Wrap(baseerr.IncompleteWireFormat, err, "reading dict key")
	}
	switch width {
	case 1:
		return uint32(buf[0]), nil
	case 2:
		return uint32(binary.LittleEndian.Uint16(buf)), nil
	case 4:
		return binary.LittleEndian.Uint32(buf), nil
	default:
		return uint32(binary.LittleEndian.Uint64(buf)), nil
	}
}
