// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package netframe

import (
	"bufio"
	"io"
	"net"

	"basedb/internal/baseerr"
	"basedb/internal/wire"
)

// Conn wraps one accepted connection with the buffered reader/writer the
// framing layer reads packet codes and bodies through, plus the
// compression flag, which the protocol layer sets from each Query
// packet's compression byte (spec §4.6: single-threaded, cooperative
// I/O per connection).
type Conn struct {
	raw net.Conn
	r   *bufio.Reader
	w   *bufio.Writer

	CompressionEnabled bool
}

// NewConn wraps raw for packet-level reads and writes.
func NewConn(raw net.Conn) *Conn {
	return &Conn{raw: raw, r: bufio.NewReader(raw), w: bufio.NewWriter(raw)}
}

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.raw.Close() }

// RemoteAddr returns the underlying connection's remote address.
func (c *Conn) RemoteAddr() net.Addr { return c.raw.RemoteAddr() }

// ReadPacketCode reads the varint packet code that begins every inbound
// packet (spec §6.1).
func (c *Conn) ReadPacketCode() (uint64, error) {
	return wire.ReadUvarint(c.r)
}

// WritePacketCode writes a packet's leading varint code.
func (c *Conn) WritePacketCode(code uint64) error {
	var buf []byte
	buf = wire.PutUvarint(buf, code)
	_, err := c.w.Write(buf)
	return err
}

// Flush flushes any packets buffered by WritePacketCode/WriteString/
// WriteBlock, making them visible to the peer. The protocol layer calls
// this once per logical server message, not per field, to avoid a
// flood of small writes.
func (c *Conn) Flush() error { return c.w.Flush() }

// ReadUvarint reads one varint off the connection.
func (c *Conn) ReadUvarint() (uint64, error) { return wire.ReadUvarint(c.r) }

// WriteUvarint writes one varint to the connection.
func (c *Conn) WriteUvarint(v uint64) error {
	var buf []byte
	buf = wire.PutUvarint(buf, v)
	_, err := c.w.Write(buf)
	return err
}

// ReadByte satisfies io.ByteReader so a Conn can itself be passed to
// block.DecodeFrom or wire.ReadUvarint.
func (c *Conn) ReadByte() (byte, error) { return c.r.ReadByte() }

// Read satisfies io.Reader for the same reason.
func (c *Conn) Read(p []byte) (int, error) { return c.r.Read(p) }

// ReadString reads a varint-length-prefixed UTF-8 string, the encoding
// every textual field in Hello/Query/ClientInfo uses (spec §4.7).
func (c *Conn) ReadString() (string, error) {
	n, err := wire.ReadUvarint(c.r)
	if err != nil {
		return "", err
	}
	if n > MaxMessageSize {
		return "", baseerr.New(baseerr.TooBigMessageSize, "netframe: string field length %d exceeds max message size", n)
	}
	buf := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(c.r, buf); err != nil {
			return "", baseerr.Wrap(baseerr.IncompleteWireFormat, err, "netframe: reading string body")
		}
	}
	return string(buf), nil
}

// WriteString writes s as a varint-length-prefixed string.
func (c *Conn) WriteString(s string) error {
	var buf []byte
	buf = wire.PutUvarint(buf, uint64(len(s)))
	buf = append(buf, s...)
	_, err := c.w.Write(buf)
	return err
}

// ReadByteField reads a single raw byte (used for the compression flag,
// stage byte, and has_nested exception field).
func (c *Conn) ReadByteField() (byte, error) {
	b, err := c.r.ReadByte()
	if err != nil {
		return 0, baseerr.Wrap(baseerr.IncompleteWireFormat, err, "netframe: reading byte field")
	}
	return b, nil
}

// WriteByteField writes a single raw byte.
func (c *Conn) WriteByteField(b byte) error {
	return c.w.WriteByte(b)
}

// ReadUint32 reads a little-endian u32 (the Exception packet's code
// field; revision and version fields are varints, read with ReadUvarint).
func (c *Conn) ReadUint32() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(c.r, buf[:]); err != nil {
		return 0, baseerr.Wrap(baseerr.IncompleteWireFormat, err, "netframe: reading u32 field")
	}
	return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24, nil
}

// WriteUint32 writes a little-endian u32.
func (c *Conn) WriteUint32(v uint32) error {
	var buf [4]byte
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v >> 16)
	buf[3] = byte(v >> 24)
	_, err := c.w.Write(buf[:])
	return err
}
