// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package protocol

import (
	"context"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"basedb/internal/block"
	"basedb/internal/catalog"
	"basedb/internal/engine"
	"basedb/internal/netframe"
	"basedb/internal/partstore"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	cat := catalog.NewMemoryStore()
	parts := partstore.New([]string{t.TempDir()})
	t.Cleanup(func() { _ = parts.Close() })
	return engine.New(cat, parts)
}

// testClient drives the client side of the wire protocol directly
// through netframe.Conn, the same primitives Session itself uses, so
// these tests exercise the real framing rather than an ad hoc format.
type testClient struct {
	conn *netframe.Conn
}

func newTestClient(raw net.Conn) *testClient {
	return &testClient{conn: netframe.NewConn(raw)}
}

func (c *testClient) hello(database string) error {
	if err := c.conn.WritePacketCode(netframe.ClientHello); err != nil {
		return err
	}
	if err := c.conn.WriteString("test-client"); err != nil {
		return err
	}
	if err := c.conn.WriteUvarint(1); err != nil {
		return err
	}
	if err := c.conn.WriteUvarint(0); err != nil {
		return err
	}
	if err := c.conn.WriteUvarint(netframe.ClientRevision); err != nil {
		return err
	}
	if err := c.conn.WriteString(database); err != nil {
		return err
	}
	if err := c.conn.WriteString("default"); err != nil {
		return err
	}
	if err := c.conn.WriteString(""); err != nil {
		return err
	}
	return c.conn.Flush()
}

func (c *testClient) readHello() error {
	code, err := c.conn.ReadPacketCode()
	if err != nil {
		return err
	}
	if code != netframe.ServerHello {
		return fmt.Errorf("expected ServerHello, got code %d", code)
	}
	if _, err := c.conn.ReadString(); err != nil { // name
		return err
	}
	if _, err := c.conn.ReadUvarint(); err != nil { // major
		return err
	}
	if _, err := c.conn.ReadUvarint(); err != nil { // minor
		return err
	}
	if _, err := c.conn.ReadUvarint(); err != nil { // revision
		return err
	}
	if _, err := c.conn.ReadString(); err != nil { // timezone
		return err
	}
	if _, err := c.conn.ReadString(); err != nil { // display name
		return err
	}
	if _, err := c.conn.ReadUvarint(); err != nil { // patch
		return err
	}
	return nil
}

func (c *testClient) ping() error {
	if err := c.conn.WritePacketCode(netframe.ClientPing); err != nil {
		return err
	}
	if err := c.conn.Flush(); err != nil {
		return err
	}
	code, err := c.conn.ReadPacketCode()
	if err != nil {
		return err
	}
	if code != netframe.ServerPong {
		return fmt.Errorf("expected ServerPong, got code %d", code)
	}
	return nil
}

// sendQuery writes a full Query message: client-info, empty settings,
// the Complete stage, no compression, the query string, and an empty
// terminator Data block (every query carries one, whether or not the
// statement is an INSERT).
func (c *testClient) sendQuery(query string) error {
	if err := c.conn.WritePacketCode(netframe.ClientQuery); err != nil {
		return err
	}
	if err := c.conn.WriteString("1"); err != nil { // query id
		return err
	}
	if err := c.conn.WriteByteField(1); err != nil { // client info kind
		return err
	}
	if err := c.conn.WriteString(""); err != nil { // initial user
		return err
	}
	if err := c.conn.WriteString(""); err != nil { // initial query id
		return err
	}
	if err := c.conn.WriteString(""); err != nil { // address
		return err
	}
	if err := c.conn.WriteByteField(1); err != nil { // iface
		return err
	}
	if err := c.conn.WriteString(""); err != nil { // os user
		return err
	}
	if err := c.conn.WriteString(""); err != nil { // hostname
		return err
	}
	if err := c.conn.WriteString("test-client"); err != nil { // client name
		return err
	}
	if err := c.conn.WriteUvarint(1); err != nil { // version major
		return err
	}
	if err := c.conn.WriteUvarint(0); err != nil { // version minor
		return err
	}
	if err := c.conn.WriteUvarint(netframe.ClientRevision); err != nil { // version revision
		return err
	}
	if err := c.conn.WriteUvarint(0); err != nil { // version patch
		return err
	}
	if err := c.conn.WriteString(""); err != nil { // quota key
		return err
	}
	if err := c.conn.WriteString(""); err != nil { // empty settings terminator
		return err
	}
	if err := c.conn.WriteByteField(2); err != nil { // stage: Complete
		return err
	}
	if err := c.conn.WriteByteField(0); err != nil { // compression: off
		return err
	}
	if err := c.conn.WriteString(query); err != nil {
		return err
	}
	if err := c.conn.Flush(); err != nil {
		return err
	}
	if err := c.conn.WritePacketCode(netframe.ClientData); err != nil {
		return err
	}
	if err := c.conn.WriteBlock(block.New()); err != nil {
		return err
	}
	return c.conn.Flush()
}

// drainToEndOfStream reads packets until ServerEndOfStream, returning the
// first Data block it saw (nil if none). It fails on an Exception packet.
func (c *testClient) drainToEndOfStream() (*block.Block, error) {
	var result *block.Block
	for {
		code, err := c.conn.ReadPacketCode()
		if err != nil {
			return nil, err
		}
		switch code {
		case netframe.ServerData:
			blk, err := c.conn.ReadBlock()
			if err != nil {
				return nil, err
			}
			if result == nil {
				result = blk
			}
		case netframe.ServerProgress:
			if _, err := c.conn.ReadUvarint(); err != nil {
				return nil, err
			}
			if _, err := c.conn.ReadUvarint(); err != nil {
				return nil, err
			}
		case netframe.ServerProfileInfo:
			if _, err := c.conn.ReadUvarint(); err != nil {
				return nil, err
			}
		case netframe.ServerException:
			exc, err := c.conn.ReadException()
			if err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("server exception: %s", exc.Message)
		case netframe.ServerEndOfStream:
			return result, nil
		default:
			return nil, fmt.Errorf("unexpected packet code %d while draining", code)
		}
	}
}

func pipeSession(t *testing.T, e *engine.Engine) (*testClient, func()) {
	t.Helper()
	clientRaw, serverRaw := net.Pipe()
	sess := NewSession(serverRaw, e, nil)
	done := make(chan error, 1)
	go func() { done <- sess.Serve(context.Background()) }()
	cleanup := func() {
		_ = clientRaw.Close()
		<-done
	}
	return newTestClient(clientRaw), cleanup
}

func TestHandshakeAndPing(t *testing.T) {
	e := newTestEngine(t)
	client, cleanup := pipeSession(t, e)
	defer cleanup()

	require.NoError(t, client.hello(""))
	require.NoError(t, client.readHello())
	require.NoError(t, client.ping())
}

func TestCreateInsertSelectScenario(t *testing.T) {
	e := newTestEngine(t)
	client, cleanup := pipeSession(t, e)
	defer cleanup()

	require.NoError(t, client.hello(""))
	require.NoError(t, client.readHello())

	require.NoError(t, client.sendQuery("CREATE DATABASE shop"))
	_, err := client.drainToEndOfStream()
	require.NoError(t, err)

	require.NoError(t, client.sendQuery("CREATE TABLE shop.orders (id UInt32, amount Int32) ENGINE = BaseStorage"))
	_, err = client.drainToEndOfStream()
	require.NoError(t, err)

	require.NoError(t, client.sendQuery("INSERT INTO shop.orders (id, amount) VALUES (1, 10), (2, -20)"))
	_, err = client.drainToEndOfStream()
	require.NoError(t, err)

	require.NoError(t, client.sendQuery("SELECT id, amount FROM shop.orders"))
	blk, err := client.drainToEndOfStream()
	require.NoError(t, err)
	require.NotNil(t, blk)
	require.Equal(t, 2, blk.NumRows())

	idCol := blk.ColumnByName("id")
	amountCol := blk.ColumnByName("amount")
	require.NotNil(t, idCol)
	require.NotNil(t, amountCol)

	got := map[uint64]int64{}
	for i := 0; i < idCol.Len(); i++ {
		got[idCol.Uint64At(i)] = amountCol.Int64At(i)
	}
	require.Equal(t, map[uint64]int64{1: 10, 2: -20}, got)
}
