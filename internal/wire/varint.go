// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package wire implements the bit/byte primitives the rest of the engine
// builds on: varints, a 64-byte-aligned growable buffer, a byte-packed
// bitmap, and the compressed-frame codec used for LZ4 block transport.
package wire

import (
	"bufio"
	"io"

	"basedb/internal/baseerr"
)

// maxVarintBytes is the most bytes a valid varint-encoded uint64 may occupy:
// ceil(64/7) == 10 groups of 7 bits.
const maxVarintBytes = 10

// PutUvarint appends the varint encoding of v to dst and returns the
// extended slice. Each byte carries 7 bits of v, little-endian group order,
// with the high bit set on every byte but the last.
func PutUvarint(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// ReadUvarint reads a varint-encoded uint64 from r. It rejects any encoding
// that runs past maxVarintBytes groups without a terminating (high-bit-clear)
// byte.
func ReadUvarint(r io.ByteReader) (uint64, error) {
	var v uint64
	for i := 0; i < maxVarintBytes; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, baseerr.Wrap(baseerr.IncompleteWireFormat, err, "reading varint")
		}
		if i == maxVarintBytes-1 && b >= 0x80 {
			return 0, baseerr.New(baseerr.InvalidVarInt, "varint exceeds %d bytes", maxVarintBytes)
		}
		v |= uint64(b&0x7f) << (7 * uint(i))
		if b < 0x80 {
			return v, nil
		}
	}
	return 0, baseerr.New(baseerr.InvalidVarInt, "varint exceeds %d bytes", maxVarintBytes)
}

// ReadUvarintBuf is a convenience wrapper for callers holding a *bufio.Reader,
// which is the common case in the framing layer.
func ReadUvarintBuf(r *bufio.Reader) (uint64, error) {
	return ReadUvarint(r)
}

// UvarintSize returns the number of bytes PutUvarint would emit for v.
func UvarintSize(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}
