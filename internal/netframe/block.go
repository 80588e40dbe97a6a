// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package netframe

import (
	"bufio"
	"encoding/binary"
	"io"

	"basedb/internal/baseerr"
	"basedb/internal/block"
	"basedb/internal/wire"
)

// innerFrameHeaderLen is the number of bytes of a compressed frame's
// body that precede the LZ4 payload: 1-byte algo plus two 4-byte sizes
// (see internal/wire/frame.go's frameHeaderLen, which compressedSize is
// measured relative to).
const innerFrameHeaderLen = 1 + 4 + 4

// hashPrefixLen is the CityHash128 prefix length before a compressed
// frame's body.
const hashPrefixLen = 16

// limitedByteReader enforces spec §4.6's 100 MiB maximum in-flight
// buffered packet size across however many individual reads a Block
// decode performs, since ClickHouse's uncompressed block wire form
// carries no single up-front total length to check against.
type limitedByteReader struct {
	r         *bufio.Reader
	remaining int64
}

func newLimitedByteReader(r *bufio.Reader, max int64) *limitedByteReader {
	return &limitedByteReader{r: r, remaining: max}
}

func (l *limitedByteReader) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		return 0, baseerr.New(baseerr.TooBigMessageSize, "netframe: packet exceeds max message size")
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	return n, err
}

func (l *limitedByteReader) ReadByte() (byte, error) {
	if l.remaining <= 0 {
		return 0, baseerr.New(baseerr.TooBigMessageSize, "netframe: packet exceeds max message size")
	}
	b, err := l.r.ReadByte()
	if err == nil {
		l.remaining--
	}
	return b, err
}

// ReadBlock reads one Data packet's block body off the connection,
// transparently decompressing it first when compression was negotiated
// (spec §4.6: "if the peer negotiated compression, all blocks inside
// Data packets are wrapped"). The read is bounded by MaxMessageSize
// regardless of compression.
func (c *Conn) ReadBlock() (*block.Block, error) {
	if !c.CompressionEnabled {
		lr := newLimitedByteReader(c.r, MaxMessageSize)
		return block.DecodeFrom(lr)
	}

	var header [hashPrefixLen + innerFrameHeaderLen]byte
	if _, err := io.ReadFull(c.r, header[:]); err != nil {
		return nil, baseerr.Wrap(baseerr.IncompleteWireFormat, err, "netframe: reading compressed frame header")
	}
	compressedSize := binary.LittleEndian.Uint32(header[hashPrefixLen+1 : hashPrefixLen+5])
	if compressedSize < innerFrameHeaderLen {
		return nil, baseerr.New(baseerr.InvalidWireFormat, "netframe: compressed frame size field too small")
	}
	if int64(compressedSize)+hashPrefixLen > MaxMessageSize {
		return nil, baseerr.New(baseerr.TooBigMessageSize, "netframe: compressed frame size %d exceeds max message size", compressedSize)
	}

	frame := make([]byte, 16+int(compressedSize))
	copy(frame, header[:])
	rest := frame[len(header):]
	if len(rest) > 0 {
		if _, err := io.ReadFull(c.r, rest); err != nil {
			return nil, baseerr.Wrap(baseerr.IncompleteWireFormat, err, "netframe: reading compressed frame body")
		}
	}

	payload, err := wire.DecompressFrame(frame)
	if err != nil {
		return nil, err
	}
	blk, _, err := block.Decode(payload)
	return blk, err
}

// WriteBlock serializes blk, compressing it through the same LZ4 frame
// codec ReadBlock expects when compression is negotiated, and writes it
// to the connection. Flush is not called; the caller flushes once per
// logical server message.
func (c *Conn) WriteBlock(blk *block.Block) error {
	encoded, err := block.Encode(blk)
	if err != nil {
		return err
	}
	if !c.CompressionEnabled {
		_, err := c.w.Write(encoded)
		return err
	}
	frame, err := wire.CompressFrame(encoded)
	if err != nil {
		return err
	}
	_, err = c.w.Write(frame)
	return err
}
